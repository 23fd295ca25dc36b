package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripDots(t *testing.T) {
	t.Run("success - dots are removed from version string", func(t *testing.T) {
		assert.Equal(t, "1750", StripDots("1.75.0"))
	})

	t.Run("success - string without dots is unchanged", func(t *testing.T) {
		assert.Equal(t, "nightly", StripDots("nightly"))
	})
}
