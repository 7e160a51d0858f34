// Package util provides utility functions for the Interlude Engine.
package util

import (
	"math/rand"
	"strings"
	"time"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
// Uses math/rand for non-cryptographic random generation.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand for non-cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateWorkID generates an enrichment work ID with "w_" prefix.
// Used by tests and tooling; production work IDs come from the enrichment service.
func GenerateWorkID() string {
	return GenerateRandomID("w_", 32)
}

// JitterDuration returns base shifted by a uniform random offset in [-jitter, +jitter].
// A non-positive jitter returns base unchanged. The result is clamped positive so a
// jitter larger than base can never produce an instant or negative delay.
func JitterDuration(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int63n(int64(2*jitter+1))) - jitter
	result := base + offset
	if result <= 0 {
		result = time.Millisecond
	}
	return result
}
