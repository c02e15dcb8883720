package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSessionKey returns a storage-safe identifier for a session ID.
func HashSessionKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
