package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey derives the cache key for a dependency manifest. The key is a pure
// function of the manifest bytes: identical content always yields the same key.
func CacheKey(prefix string, manifest []byte) string {
	sum := sha256.Sum256(manifest)
	return prefix + "-" + hex.EncodeToString(sum[:])
}

// RestoreKeyPrefix is the fallback used when no exact key matches; the most
// recent entry sharing this prefix is restored instead.
func RestoreKeyPrefix(prefix string) string {
	return prefix + "-"
}
