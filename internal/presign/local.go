package presign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	algorithm   = "AWS4-HMAC-SHA256"
	service     = "s3"
	requestType = "aws4_request"

	// maxExpiration caps URL lifetime at 7 days, matching S3's presign limit
	maxExpiration = 7 * 24 * time.Hour
)

// LocalOptions configures the self-contained HMAC issuer
type LocalOptions struct {
	Endpoint  string // base URL photos are served from, e.g. http://localhost:8080
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// LocalIssuer signs GET URLs with the S3 query-string scheme but without any
// AWS dependency, so the service runs and tests against a non-AWS photo host.
// URLs it produces verify with Validate.
type LocalIssuer struct {
	opts LocalOptions
	now  func() time.Time
}

// NewLocalIssuer creates a local HMAC issuer
func NewLocalIssuer(opts LocalOptions) (*LocalIssuer, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("endpoint and bucket are required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("access key credentials are required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	return &LocalIssuer{opts: opts, now: time.Now}, nil
}

// Issue produces a query-signed GET URL for the photo key
func (i *LocalIssuer) Issue(ctx context.Context, photoKey string, ttl time.Duration) (string, error) {
	if photoKey == "" {
		return "", fmt.Errorf("photo key is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	if ttl > maxExpiration {
		return "", fmt.Errorf("ttl cannot exceed %s", maxExpiration)
	}

	now := i.now().UTC()
	dateStamp := now.Format("20060102")
	amzDate := now.Format("20060102T150405Z")

	credentialScope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, i.opts.Region, service, requestType)
	credential := fmt.Sprintf("%s/%s", i.opts.AccessKey, credentialScope)

	urlPath := fmt.Sprintf("/%s/%s", i.opts.Bucket, photoKey)

	queryParams := map[string]string{
		"X-Amz-Algorithm":     algorithm,
		"X-Amz-Credential":    credential,
		"X-Amz-Date":          amzDate,
		"X-Amz-Expires":       fmt.Sprintf("%d", int64(ttl/time.Second)),
		"X-Amz-SignedHeaders": "host",
	}

	canonicalQueryString := buildCanonicalQueryString(queryParams)

	host := extractHost(i.opts.Endpoint)
	canonicalHeaders := fmt.Sprintf("host:%s\n", host)

	canonicalRequest := fmt.Sprintf("GET\n%s\n%s\n%s\nhost\nUNSIGNED-PAYLOAD",
		urlPath,
		canonicalQueryString,
		canonicalHeaders,
	)

	requestHash := sha256Hash([]byte(canonicalRequest))
	stringToSign := fmt.Sprintf("%s\n%s\n%s\n%s",
		algorithm,
		amzDate,
		credentialScope,
		requestHash,
	)

	signingKey := getSignatureKey(i.opts.SecretKey, dateStamp, i.opts.Region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	queryParams["X-Amz-Signature"] = signature
	finalQueryString := buildCanonicalQueryString(queryParams)

	return fmt.Sprintf("%s%s?%s", strings.TrimSuffix(i.opts.Endpoint, "/"), urlPath, finalQueryString), nil
}

// buildCanonicalQueryString builds a sorted, URL-encoded query string
func buildCanonicalQueryString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(k), url.QueryEscape(params[k])))
	}

	return strings.Join(parts, "&")
}

// extractHost extracts the host from an endpoint URL
func extractHost(endpoint string) string {
	host := strings.TrimPrefix(endpoint, "http://")
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimSuffix(host, "/")
}

func sha256Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// getSignatureKey derives the signing key
func getSignatureKey(secretKey, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(requestType))
}
