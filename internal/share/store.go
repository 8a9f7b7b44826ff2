package share

import (
	"context"
	"time"
)

// Store defines the interface for share link persistence.
//
// All mutations must be atomic conditional operations: Put is an insert-only
// conditional write keyed on the link id, and UpdateExpiry/Delete verify
// ownership and mutate in a single check-and-set, never as a separate read
// followed by a write. A revoked link must stop resolving on the very next
// read, so implementations must not cache records.
type Store interface {
	// Put inserts a new share link. Returns ErrLinkExists if a link with the
	// same id is already stored; it must never overwrite.
	Put(ctx context.Context, link *ShareLink) error

	// GetByID retrieves a share link by id. Returns ErrLinkNotFound if absent.
	GetByID(ctx context.Context, linkID string) (*ShareLink, error)

	// ListByPhoto returns all share links for a photo, expired ones included.
	// Ordering is unspecified.
	ListByPhoto(ctx context.Context, photoID string) ([]*ShareLink, error)

	// ListByOwner returns all share links created by a caller.
	ListByOwner(ctx context.Context, ownerID string) ([]*ShareLink, error)

	// UpdateExpiry sets a new expiry on the link, verifying that ownerID
	// matches the stored owner in the same atomic operation. Returns the
	// updated link, or ErrLinkNotFound / ErrForbidden.
	UpdateExpiry(ctx context.Context, linkID, ownerID string, expiresAt time.Time) (*ShareLink, error)

	// Delete removes the link, with the same ownership check as UpdateExpiry.
	Delete(ctx context.Context, linkID, ownerID string) error

	// Close releases the underlying database.
	Close() error
}
