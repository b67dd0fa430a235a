package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateBoardingCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := GenerateBoardingCode()
		assert.True(t, strings.HasPrefix(code, "bp_"))
		assert.Len(t, code, 3+32)
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}

func TestFallbackCodeNeedsNoEntropyPool(t *testing.T) {
	// The fallback path runs precisely when crypto/rand is failing, so it
	// must produce a usable code without it.
	first := generateFallbackCode()
	second := generateFallbackCode()
	assert.True(t, strings.HasPrefix(first, "bp_"))
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
