package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenFingerprint is the cache key for a token. Raw tokens are never used as
// keys or logged.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
