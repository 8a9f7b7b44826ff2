package share

import (
	"context"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixshare/pixshare/internal/middleware"
)

// collidingStore wraps a real store and forces Put to report an id collision
// a fixed number of times before letting the write through.
type collidingStore struct {
	Store
	collisions int
	attempts   int
}

func (s *collidingStore) Put(ctx context.Context, link *ShareLink) error {
	s.attempts++
	if s.attempts <= s.collisions {
		return ErrLinkExists
	}
	return s.Store.Put(ctx, link)
}

func newTestManager(t *testing.T) (Manager, Store) {
	store := storeFactories["badger"](t)
	return NewManager(store), store
}

func int64Ptr(v int64) *int64 { return &v }

func TestManagerCreate(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	before := time.Now().UTC()
	link, err := mgr.Create(ctx, "alice", "photo-1", int64Ptr(3600))
	require.NoError(t, err)

	assert.Len(t, link.LinkID, LinkIDLength)
	assert.Equal(t, "alice", link.OwnerID)
	assert.Equal(t, "photo-1", link.PhotoID)
	assert.WithinDuration(t, before.Add(time.Hour), link.ExpiresAt, 5*time.Second)

	got, err := store.GetByID(ctx, link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, link.LinkID, got.LinkID)
}

func TestManagerCreateDefaultTTL(t *testing.T) {
	mgr, _ := newTestManager(t)

	link, err := mgr.Create(context.Background(), "alice", "photo-1", nil)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(DefaultTTL), link.ExpiresAt, 5*time.Second)
}

func TestManagerCreateValidation(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "", "photo-1", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = mgr.Create(ctx, "alice", "", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = mgr.Create(ctx, "alice", "photo-1", int64Ptr(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = mgr.Create(ctx, "alice", "photo-1", int64Ptr(-60))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManagerCreateRetriesOnCollision(t *testing.T) {
	inner := storeFactories["badger"](t)
	store := &collidingStore{Store: inner, collisions: 3}
	mgr := NewManager(store)

	link, err := mgr.Create(context.Background(), "alice", "photo-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, store.attempts)

	_, err = inner.GetByID(context.Background(), link.LinkID)
	assert.NoError(t, err)
}

func TestManagerCreateExhaustsRetries(t *testing.T) {
	inner := storeFactories["badger"](t)
	store := &collidingStore{Store: inner, collisions: 1000}
	mgr := NewManager(store)

	_, err := mgr.Create(context.Background(), "alice", "photo-1", nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, maxLinkIDRetries, store.attempts)
}

func TestManagerCreateDistinctIDs(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		link, err := mgr.Create(ctx, "alice", "photo-1", nil)
		require.NoError(t, err)
		assert.False(t, seen[link.LinkID], "duplicate link id %s", link.LinkID)
		seen[link.LinkID] = true
	}
}

// Concurrent creates must all succeed with distinct ids on every backend;
// writers serialize in the store rather than erroring out.
func TestManagerCreateConcurrent(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			mgr := NewManager(store)
			ctx := context.Background()

			const n = 20
			type result struct {
				id  string
				err error
			}
			results := make(chan result, n)

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					link, err := mgr.Create(ctx, "alice", "photo-1", nil)
					if err != nil {
						results <- result{err: err}
						return
					}
					results <- result{id: link.LinkID}
				}()
			}
			wg.Wait()
			close(results)

			seen := make(map[string]bool)
			for r := range results {
				require.NoError(t, r.err)
				assert.False(t, seen[r.id], "duplicate link id %s", r.id)
				seen[r.id] = true
			}
			assert.Len(t, seen, n)

			links, err := store.ListByPhoto(ctx, "photo-1")
			require.NoError(t, err)
			assert.Len(t, links, n)
		})
	}
}

func TestManagerLogsCarryTraceID(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	mgr, _ := newTestManager(t)
	ctx := context.WithValue(context.Background(), middleware.TraceIDKey, "trace-123")

	link, err := mgr.Create(ctx, "alice", "photo-1", nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Revoke(ctx, "alice", link.LinkID))

	var matched int
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "Share link created", "Share link revoked":
			assert.Equal(t, "trace-123", entry.Data["trace_id"])
			matched++
		}
	}
	assert.Equal(t, 2, matched)
}

func TestManagerListForPhoto(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "alice", "photo-1", nil)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "bob", "photo-1", nil)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "alice", "photo-2", nil)
	require.NoError(t, err)

	links, err := mgr.ListForPhoto(ctx, "photo-1")
	require.NoError(t, err)
	assert.Len(t, links, 2)

	_, err = mgr.ListForPhoto(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManagerRenewWithTTL(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", int64Ptr(60))
	require.NoError(t, err)

	renewed, err := mgr.Renew(ctx, "alice", link.LinkID, RenewRequest{TTLSeconds: int64Ptr(7200)})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), renewed.ExpiresAt, 5*time.Second)

	got, err := store.GetByID(ctx, link.LinkID)
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.Equal(got.ExpiresAt))
}

func TestManagerRenewWithAbsoluteDate(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", nil)
	require.NoError(t, err)

	at := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	renewed, err := mgr.Renew(ctx, "alice", link.LinkID, RenewRequest{ExpiryDate: &at})
	require.NoError(t, err)
	assert.True(t, at.Equal(renewed.ExpiresAt))
}

func TestManagerRenewDefaultsToStandardTTL(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", int64Ptr(60))
	require.NoError(t, err)

	renewed, err := mgr.Renew(ctx, "alice", link.LinkID, RenewRequest{})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(DefaultTTL), renewed.ExpiresAt, 5*time.Second)
}

func TestManagerRenewValidation(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", nil)
	require.NoError(t, err)

	// Both expiry forms at once is ambiguous.
	at := time.Now().UTC().Add(time.Hour)
	_, err = mgr.Renew(ctx, "alice", link.LinkID, RenewRequest{TTLSeconds: int64Ptr(60), ExpiryDate: &at})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// A renewal into the past is rejected, not stored.
	past := time.Now().UTC().Add(-time.Hour)
	_, err = mgr.Renew(ctx, "alice", link.LinkID, RenewRequest{ExpiryDate: &past})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = mgr.Renew(ctx, "alice", "", RenewRequest{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManagerRenewNotOwner(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", int64Ptr(3600))
	require.NoError(t, err)

	_, err = mgr.Renew(ctx, "mallory", link.LinkID, RenewRequest{TTLSeconds: int64Ptr(7200)})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := store.GetByID(ctx, link.LinkID)
	require.NoError(t, err)
	assert.True(t, link.ExpiresAt.Equal(got.ExpiresAt))
}

func TestManagerRevoke(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, "alice", link.LinkID))

	_, err = store.GetByID(ctx, link.LinkID)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	// Revoking again: the link no longer exists.
	err = mgr.Revoke(ctx, "alice", link.LinkID)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestManagerRevokeNotOwner(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	link, err := mgr.Create(ctx, "alice", "photo-1", nil)
	require.NoError(t, err)

	err = mgr.Revoke(ctx, "mallory", link.LinkID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = store.GetByID(ctx, link.LinkID)
	assert.NoError(t, err)
}
