package share

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Issuer mints a temporary, scoped access URL for a photo key. Implemented by
// the presign package; the photo storage itself lives elsewhere.
type Issuer interface {
	Issue(ctx context.Context, photoKey string, ttl time.Duration) (string, error)
}

// Resolver is the unauthenticated read path: it exchanges a link id for a
// temporary photo URL. The link id is the capability; no caller identity is
// consulted, and only exact ids match.
type Resolver struct {
	store  Store
	issuer Issuer
	now    func() time.Time
}

// NewResolver creates a new capability resolver
func NewResolver(store Store, issuer Issuer) *Resolver {
	return &Resolver{
		store:  store,
		issuer: issuer,
		now:    time.Now,
	}
}

// Resolve validates the link id against the store, re-checks expiry, and asks
// the issuer for a presigned URL. Absent and expired links surface as
// ErrLinkNotFound and ErrLinkExpired; the HTTP layer collapses both into one
// client-visible outcome so callers cannot probe when a link expired.
func (r *Resolver) Resolve(ctx context.Context, linkID string) (*Grant, error) {
	if linkID == "" {
		return nil, fmt.Errorf("%w: missing linkId", ErrInvalidArgument)
	}

	link, err := r.store.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if !link.IsLive(now) {
		logWith(ctx).WithFields(logrus.Fields{
			"link_id":    linkID,
			"expires_at": link.ExpiresAt.Unix(),
		}).Debug("Rejected resolve of expired share link")
		return nil, ErrLinkExpired
	}

	// Clamp the URL window to the link's remaining lifetime. A sub-second
	// remainder still gets a one-second URL; presign expiries carry whole
	// seconds and would otherwise round down to an already-dead URL.
	ttl := GrantTTL
	if remaining := link.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	url, err := r.issuer.Issue(ctx, link.PhotoID, ttl)
	if err != nil {
		logWith(ctx).WithError(err).WithFields(logrus.Fields{
			"link_id":  linkID,
			"photo_id": link.PhotoID,
		}).Error("Failed to issue presigned URL for share link")
		return nil, fmt.Errorf("%w: %v", ErrIssuerFailure, err)
	}

	logWith(ctx).WithFields(logrus.Fields{
		"link_id":  linkID,
		"photo_id": link.PhotoID,
	}).Info("Share link resolved")

	return &Grant{
		URL:       url,
		PhotoID:   link.PhotoID,
		ExpiresAt: now.Add(ttl),
	}, nil
}
