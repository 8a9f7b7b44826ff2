package share

import (
	"fmt"
	"time"
)

const (
	// DefaultTTL is applied when a create request carries no expirySeconds.
	DefaultTTL = 7 * 24 * time.Hour

	// GrantTTL is the lifetime of a presigned URL minted on resolve. The URL
	// window is clamped to the link's remaining lifetime so a URL never
	// outlives its link by more than the issuer allows.
	GrantTTL = time.Hour
)

// ExpiryFromTTL computes an absolute expiry from a relative TTL in seconds.
// The TTL must be a positive integer.
func ExpiryFromTTL(now time.Time, seconds int64) (time.Time, error) {
	if seconds <= 0 {
		return time.Time{}, fmt.Errorf("%w: expirySeconds must be positive, got %d", ErrInvalidArgument, seconds)
	}
	return now.Add(time.Duration(seconds) * time.Second), nil
}

// ExpiryFromAbsolute validates an absolute expiry instant. The instant must be
// strictly in the future.
func ExpiryFromAbsolute(now, at time.Time) (time.Time, error) {
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%w: expiry date must be in the future", ErrInvalidArgument)
	}
	return at, nil
}

// IsLive reports whether a link with the given expiry grants access at the
// given instant. Pure comparison, no I/O.
func IsLive(expiresAt, now time.Time) bool {
	return now.Before(expiresAt)
}
