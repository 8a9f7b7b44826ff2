package share

import (
	"crypto/rand"
	"encoding/hex"
)

// LinkIDLength is the length of a link id in hex characters.
const LinkIDLength = 16

// NewLinkID generates an opaque 16-character hex link id from 8 random bytes.
// The id space is small enough that the store must enforce uniqueness on
// insert; callers regenerate on collision (see Manager.Create).
func NewLinkID() string {
	bytes := make([]byte, LinkIDLength/2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
