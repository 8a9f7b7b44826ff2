package presign

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *LocalIssuer {
	issuer, err := NewLocalIssuer(LocalOptions{
		Endpoint:  "http://localhost:9000",
		Bucket:    "pixshare-photos",
		Region:    "ap-southeast-5",
		AccessKey: "test-access",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	return issuer
}

func TestLocalIssuerOptions(t *testing.T) {
	_, err := NewLocalIssuer(LocalOptions{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err, "endpoint is required")

	_, err = NewLocalIssuer(LocalOptions{Endpoint: "http://h", Bucket: "b"})
	assert.Error(t, err, "credentials are required")

	issuer, err := NewLocalIssuer(LocalOptions{
		Endpoint: "http://h", Bucket: "b", AccessKey: "a", SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", issuer.opts.Region, "region defaults when unset")
}

func TestLocalIssuerIssue(t *testing.T) {
	issuer := newTestIssuer(t)

	url, err := issuer.Issue(context.Background(), "alice/photo-1.jpg", time.Hour)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/pixshare-photos/alice/photo-1.jpg?"))
	assert.Contains(t, url, "X-Amz-Algorithm=AWS4-HMAC-SHA256")
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-SignedHeaders=host")
}

func TestLocalIssuerRejectsBadInput(t *testing.T) {
	issuer := newTestIssuer(t)
	ctx := context.Background()

	_, err := issuer.Issue(ctx, "", time.Hour)
	assert.Error(t, err)

	_, err = issuer.Issue(ctx, "key", 0)
	assert.Error(t, err)

	_, err = issuer.Issue(ctx, "key", -time.Minute)
	assert.Error(t, err)

	_, err = issuer.Issue(ctx, "key", 8*24*time.Hour)
	assert.Error(t, err, "ttl above the presign cap")
}

func TestValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	url, err := issuer.Issue(context.Background(), "alice/photo-1.jpg", time.Hour)
	require.NoError(t, err)

	assert.NoError(t, Validate(url, "test-secret", time.Now()))
}

func TestValidateWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)

	url, err := issuer.Issue(context.Background(), "alice/photo-1.jpg", time.Hour)
	require.NoError(t, err)

	err = Validate(url, "other-secret", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestValidateTamperedURL(t *testing.T) {
	issuer := newTestIssuer(t)

	url, err := issuer.Issue(context.Background(), "alice/photo-1.jpg", time.Hour)
	require.NoError(t, err)

	// Swapping the photo key invalidates the signature.
	tampered := strings.Replace(url, "photo-1.jpg", "photo-2.jpg", 1)
	assert.Error(t, Validate(tampered, "test-secret", time.Now()))

	// So does extending the expiry window.
	tampered = strings.Replace(url, "X-Amz-Expires=3600", "X-Amz-Expires=86400", 1)
	assert.Error(t, Validate(tampered, "test-secret", time.Now()))
}

func TestValidateExpiredURL(t *testing.T) {
	issuer := newTestIssuer(t)

	url, err := issuer.Issue(context.Background(), "alice/photo-1.jpg", time.Minute)
	require.NoError(t, err)

	err = Validate(url, "test-secret", time.Now().Add(2*time.Minute))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
