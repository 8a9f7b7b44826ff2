package presign

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Validate checks a URL produced by LocalIssuer: scheme fields, expiry window
// and signature. It exists so a photo host fronted by the local issuer can
// verify URLs, and so tests can prove round-trip integrity without AWS.
func Validate(rawURL, secretKey string, now time.Time) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	query := u.Query()

	if query.Get("X-Amz-Algorithm") != algorithm {
		return fmt.Errorf("invalid algorithm: %s", query.Get("X-Amz-Algorithm"))
	}

	credential := query.Get("X-Amz-Credential")
	credParts := strings.Split(credential, "/")
	if len(credParts) != 5 {
		return fmt.Errorf("invalid credential format")
	}
	dateStamp := credParts[1]
	region := credParts[2]
	if credParts[3] != service || credParts[4] != requestType {
		return fmt.Errorf("invalid service or request type")
	}

	amzDate := query.Get("X-Amz-Date")
	signedAt, err := time.Parse("20060102T150405Z", amzDate)
	if err != nil {
		return fmt.Errorf("invalid X-Amz-Date: %w", err)
	}

	expiresIn, err := strconv.ParseInt(query.Get("X-Amz-Expires"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid X-Amz-Expires: %w", err)
	}
	if now.UTC().After(signedAt.Add(time.Duration(expiresIn) * time.Second)) {
		return fmt.Errorf("presigned URL has expired")
	}

	// Rebuild the canonical request without the signature parameter
	params := make(map[string]string)
	for k, v := range query {
		if k != "X-Amz-Signature" && len(v) > 0 {
			params[k] = v[0]
		}
	}
	canonicalQuery := buildCanonicalQueryString(params)

	credentialScope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, region, service, requestType)
	canonicalHeaders := fmt.Sprintf("host:%s\n", u.Host)
	canonicalRequest := fmt.Sprintf("GET\n%s\n%s\n%s\nhost\nUNSIGNED-PAYLOAD",
		u.Path,
		canonicalQuery,
		canonicalHeaders,
	)

	stringToSign := fmt.Sprintf("%s\n%s\n%s\n%s",
		algorithm,
		amzDate,
		credentialScope,
		sha256Hash([]byte(canonicalRequest)),
	)

	signingKey := getSignatureKey(secretKey, dateStamp, region)
	expected := fmt.Sprintf("%x", hmacSHA256(signingKey, []byte(stringToSign)))

	if !strings.EqualFold(query.Get("X-Amz-Signature"), expected) {
		return fmt.Errorf("signature does not match")
	}

	return nil
}
