package share

import (
	"errors"
	"time"
)

// ShareLink represents a capability link granting time-limited access to a photo.
// The link id itself is the capability: whoever holds it can resolve the photo
// until ExpiresAt passes or the owner revokes the link.
type ShareLink struct {
	LinkID    string    `json:"linkId"`
	OwnerID   string    `json:"ownerId"`
	PhotoID   string    `json:"photoId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Grant is the successful result of resolving a share link: a temporary URL
// for the underlying photo.
type Grant struct {
	URL       string    `json:"presignedUrl"`
	PhotoID   string    `json:"photoId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RenewRequest carries the new expiry for a renewal, either as a relative TTL
// or an absolute instant. Exactly one of the two fields must be set.
type RenewRequest struct {
	TTLSeconds *int64
	ExpiryDate *time.Time
}

// Common errors
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrLinkNotFound     = errors.New("share link not found")
	ErrForbidden        = errors.New("share link not owned by caller")
	ErrLinkExpired      = errors.New("share link has expired")
	ErrLinkExists       = errors.New("share link id already exists")
	ErrRetriesExhausted = errors.New("exhausted link id generation retries")
	ErrIssuerFailure    = errors.New("failed to issue photo access URL")
)

// IsLive reports whether the link grants access at the given instant.
// Liveness is re-evaluated on every read and never cached.
func (l *ShareLink) IsLive(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}
