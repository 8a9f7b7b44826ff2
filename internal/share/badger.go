package share

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// BadgerStore implements the Store interface using BadgerDB. Badger
// transactions are serializable, which gives Put its conditional-insert
// guarantee and UpdateExpiry/Delete their check-and-set guarantee without any
// application-level locking.
type BadgerStore struct {
	db     *badger.DB
	logger *logrus.Logger
}

// BadgerOptions contains configuration options for BadgerStore
type BadgerOptions struct {
	DataDir    string
	SyncWrites bool // If true, every write is synced to disk (slower but safer)
	Logger     *logrus.Logger
}

// NewBadgerStore creates a new BadgerDB-backed share link store
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	dbPath := filepath.Join(opts.DataDir, "shares")

	badgerOpts := badger.DefaultOptions(dbPath).
		WithLogger(newBadgerLogger(opts.Logger)).
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	opts.Logger.WithField("path", dbPath).Info("BadgerDB share store initialized")

	return &BadgerStore{db: db, logger: opts.Logger}, nil
}

// ==================== Key Naming Scheme ====================

func linkKey(linkID string) []byte {
	return []byte(fmt.Sprintf("link:%s", linkID))
}

func photoIndexKey(photoID, linkID string) []byte {
	return []byte(fmt.Sprintf("photo_idx:%s:%s", photoID, linkID))
}

func photoIndexPrefix(photoID string) []byte {
	return []byte(fmt.Sprintf("photo_idx:%s:", photoID))
}

func ownerIndexKey(ownerID, linkID string) []byte {
	return []byte(fmt.Sprintf("owner_idx:%s:%s", ownerID, linkID))
}

func ownerIndexPrefix(ownerID string) []byte {
	return []byte(fmt.Sprintf("owner_idx:%s:", ownerID))
}

// Put inserts a new share link with a conditional write on the link id.
func (s *BadgerStore) Put(ctx context.Context, link *ShareLink) error {
	key := linkKey(link.LinkID)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrLinkExists
		}
		if err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to check link existence: %w", err)
		}

		data, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("failed to marshal share link: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to store share link: %w", err)
		}
		if err := txn.Set(photoIndexKey(link.PhotoID, link.LinkID), nil); err != nil {
			return fmt.Errorf("failed to store photo index entry: %w", err)
		}
		if err := txn.Set(ownerIndexKey(link.OwnerID, link.LinkID), nil); err != nil {
			return fmt.Errorf("failed to store owner index entry: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"link_id":  link.LinkID,
			"photo_id": link.PhotoID,
		}).Debug("Share link created in store")

		return nil
	})
}

// GetByID retrieves a share link by id
func (s *BadgerStore) GetByID(ctx context.Context, linkID string) (*ShareLink, error) {
	var link *ShareLink

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		link, err = getLink(txn, linkID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return link, nil
}

// ListByPhoto returns all share links for a photo via the photo index
func (s *BadgerStore) ListByPhoto(ctx context.Context, photoID string) ([]*ShareLink, error) {
	return s.listByIndex(photoIndexPrefix(photoID))
}

// ListByOwner returns all share links created by a caller via the owner index
func (s *BadgerStore) ListByOwner(ctx context.Context, ownerID string) ([]*ShareLink, error) {
	return s.listByIndex(ownerIndexPrefix(ownerID))
}

func (s *BadgerStore) listByIndex(prefix []byte) ([]*ShareLink, error) {
	var links []*ShareLink

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			linkID := string(key[len(prefix):])

			link, err := getLink(txn, linkID)
			if err == ErrLinkNotFound {
				// Index entry without a record: skip rather than fail the listing.
				s.logger.WithField("link_id", linkID).Warn("Dangling share index entry")
				continue
			}
			if err != nil {
				return err
			}
			links = append(links, link)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return links, nil
}

// UpdateExpiry sets a new expiry on the link inside a single transaction,
// verifying the caller owns it.
func (s *BadgerStore) UpdateExpiry(ctx context.Context, linkID, ownerID string, expiresAt time.Time) (*ShareLink, error) {
	var updated *ShareLink

	err := s.db.Update(func(txn *badger.Txn) error {
		link, err := getLink(txn, linkID)
		if err != nil {
			return err
		}
		if link.OwnerID != ownerID {
			return ErrForbidden
		}

		link.ExpiresAt = expiresAt

		data, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("failed to marshal share link: %w", err)
		}
		if err := txn.Set(linkKey(linkID), data); err != nil {
			return fmt.Errorf("failed to update share link: %w", err)
		}

		updated = link
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes the link and its index entries, verifying ownership in the
// same transaction.
func (s *BadgerStore) Delete(ctx context.Context, linkID, ownerID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		link, err := getLink(txn, linkID)
		if err != nil {
			return err
		}
		if link.OwnerID != ownerID {
			return ErrForbidden
		}

		if err := txn.Delete(linkKey(linkID)); err != nil {
			return fmt.Errorf("failed to delete share link: %w", err)
		}
		if err := txn.Delete(photoIndexKey(link.PhotoID, linkID)); err != nil {
			return fmt.Errorf("failed to delete photo index entry: %w", err)
		}
		if err := txn.Delete(ownerIndexKey(link.OwnerID, linkID)); err != nil {
			return fmt.Errorf("failed to delete owner index entry: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"link_id":  linkID,
			"photo_id": link.PhotoID,
		}).Debug("Share link deleted from store")

		return nil
	})
}

// Close closes the underlying BadgerDB
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// getLink reads and unmarshals a link inside an open transaction
func getLink(txn *badger.Txn, linkID string) (*ShareLink, error) {
	item, err := txn.Get(linkKey(linkID))
	if err == badger.ErrKeyNotFound {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read share link: %w", err)
	}

	var link ShareLink
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &link)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal share link: %w", err)
	}

	return &link, nil
}

// badgerLogger adapts logrus to badger's Logger interface
type badgerLogger struct {
	logger *logrus.Logger
}

func newBadgerLogger(logger *logrus.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}
