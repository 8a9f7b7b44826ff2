package share

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// maxLinkIDRetries bounds regeneration when a generated link id collides with
// a stored one. Hitting the bound is logged at error level since it suggests
// the id space is too small or generation is biased.
const maxLinkIDRetries = 5

// Manager handles the share link lifecycle: create, list, renew, revoke.
type Manager interface {
	Create(ctx context.Context, ownerID, photoID string, ttlSeconds *int64) (*ShareLink, error)
	ListForPhoto(ctx context.Context, photoID string) ([]*ShareLink, error)
	ListForOwner(ctx context.Context, ownerID string) ([]*ShareLink, error)
	Renew(ctx context.Context, ownerID, linkID string, req RenewRequest) (*ShareLink, error)
	Revoke(ctx context.Context, ownerID, linkID string) error
}

// shareManager implements Manager over a Store
type shareManager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a new share link manager
func NewManager(store Store) Manager {
	return &shareManager{
		store: store,
		now:   time.Now,
	}
}

// Create validates the request, computes the expiry and persists a new share
// link, regenerating the link id on collision up to maxLinkIDRetries times.
func (m *shareManager) Create(ctx context.Context, ownerID, photoID string, ttlSeconds *int64) (*ShareLink, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner id", ErrInvalidArgument)
	}
	if photoID == "" {
		return nil, fmt.Errorf("%w: missing photoId", ErrInvalidArgument)
	}

	now := m.now().UTC()

	ttl := int64(DefaultTTL / time.Second)
	if ttlSeconds != nil {
		ttl = *ttlSeconds
	}
	expiresAt, err := ExpiryFromTTL(now, ttl)
	if err != nil {
		return nil, err
	}

	link := &ShareLink{
		OwnerID:   ownerID,
		PhotoID:   photoID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	for attempt := 0; attempt < maxLinkIDRetries; attempt++ {
		link.LinkID = NewLinkID()

		err := m.store.Put(ctx, link)
		if err == nil {
			logWith(ctx).WithFields(logrus.Fields{
				"link_id":    link.LinkID,
				"photo_id":   photoID,
				"expires_at": expiresAt.Unix(),
			}).Info("Share link created")
			return link, nil
		}
		if err != ErrLinkExists {
			return nil, err
		}

		logWith(ctx).WithFields(logrus.Fields{
			"link_id": link.LinkID,
			"attempt": attempt + 1,
		}).Warn("Share link id collision, regenerating")
	}

	logWith(ctx).WithFields(logrus.Fields{
		"photo_id": photoID,
		"retries":  maxLinkIDRetries,
	}).Error("Exhausted share link id generation retries")

	return nil, ErrRetriesExhausted
}

// ListForPhoto returns all share links for a photo. Expired links are
// included so owners can see and clean them up; an empty result is not an
// error.
func (m *shareManager) ListForPhoto(ctx context.Context, photoID string) ([]*ShareLink, error) {
	if photoID == "" {
		return nil, fmt.Errorf("%w: missing photoId", ErrInvalidArgument)
	}
	return m.store.ListByPhoto(ctx, photoID)
}

// ListForOwner returns all share links created by the caller
func (m *shareManager) ListForOwner(ctx context.Context, ownerID string) ([]*ShareLink, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner id", ErrInvalidArgument)
	}
	return m.store.ListByOwner(ctx, ownerID)
}

// Renew updates the link's expiry. The ownership check happens inside the
// store's conditional update, not as a separate read, so two concurrent
// renewals cannot race the authorization check.
func (m *shareManager) Renew(ctx context.Context, ownerID, linkID string, req RenewRequest) (*ShareLink, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner id", ErrInvalidArgument)
	}
	if linkID == "" {
		return nil, fmt.Errorf("%w: missing linkId", ErrInvalidArgument)
	}
	if req.TTLSeconds != nil && req.ExpiryDate != nil {
		return nil, fmt.Errorf("%w: supply either expirySeconds or expiryDate, not both", ErrInvalidArgument)
	}

	now := m.now().UTC()

	var expiresAt time.Time
	var err error
	switch {
	case req.TTLSeconds != nil:
		expiresAt, err = ExpiryFromTTL(now, *req.TTLSeconds)
	case req.ExpiryDate != nil:
		expiresAt, err = ExpiryFromAbsolute(now, *req.ExpiryDate)
	default:
		expiresAt, err = ExpiryFromTTL(now, int64(DefaultTTL/time.Second))
	}
	if err != nil {
		return nil, err
	}

	link, err := m.store.UpdateExpiry(ctx, linkID, ownerID, expiresAt)
	if err != nil {
		return nil, err
	}

	logWith(ctx).WithFields(logrus.Fields{
		"link_id":    linkID,
		"expires_at": expiresAt.Unix(),
	}).Info("Share link renewed")

	return link, nil
}

// Revoke deletes the link with the store's ownership check
func (m *shareManager) Revoke(ctx context.Context, ownerID, linkID string) error {
	if ownerID == "" {
		return fmt.Errorf("%w: missing owner id", ErrInvalidArgument)
	}
	if linkID == "" {
		return fmt.Errorf("%w: missing linkId", ErrInvalidArgument)
	}

	if err := m.store.Delete(ctx, linkID, ownerID); err != nil {
		return err
	}

	logWith(ctx).WithField("link_id", linkID).Info("Share link revoked")
	return nil
}
