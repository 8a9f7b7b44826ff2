// Package presign issues temporary, scoped access URLs for photo objects.
// Two backends are provided: an AWS S3 presign client for deployments whose
// photos live in S3, and a self-contained HMAC signer for local and test use.
package presign

import (
	"context"
	"time"
)

// Issuer mints a presigned GET URL for a photo key, valid for ttl.
type Issuer interface {
	Issue(ctx context.Context, photoKey string, ttl time.Duration) (string, error)
}
