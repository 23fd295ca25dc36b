package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	t.Run("success - key is deterministic for identical manifests", func(t *testing.T) {
		manifest := []byte("[[package]]\nname = \"tokio\"\nversion = \"1.35.0\"\n")
		assert.Equal(t, CacheKey("deps", manifest), CacheKey("deps", manifest))
	})

	t.Run("success - key changes when the manifest changes", func(t *testing.T) {
		a := CacheKey("deps", []byte("version = \"1.35.0\""))
		b := CacheKey("deps", []byte("version = \"1.36.0\""))
		assert.NotEqual(t, a, b)
	})

	t.Run("success - key starts with the restore-key prefix", func(t *testing.T) {
		key := CacheKey("deps", []byte("manifest"))
		assert.True(t, strings.HasPrefix(key, RestoreKeyPrefix("deps")))
	})

	t.Run("success - hash part is hex encoded sha256", func(t *testing.T) {
		key := CacheKey("deps", []byte("manifest"))
		hash := strings.TrimPrefix(key, "deps-")
		assert.Len(t, hash, 64)
	})
}
