package util

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(32)
	if len(hex) != 32 {
		t.Errorf("Expected hex string of length 32, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("Expected only hex characters, got %q", c)
		}
	}
}

func TestGenerateRandomHexZeroLength(t *testing.T) {
	if hex := GenerateRandomHex(0); hex != "" {
		t.Errorf("Expected empty string for zero length, got %q", hex)
	}
	if hex := GenerateRandomHex(-5); hex != "" {
		t.Errorf("Expected empty string for negative length, got %q", hex)
	}
}

func TestGenerateWorkID(t *testing.T) {
	id := GenerateWorkID()
	if !strings.HasPrefix(id, "w_") {
		t.Errorf("Expected work ID with w_ prefix, got %q", id)
	}
	if len(id) != 34 {
		t.Errorf("Expected work ID of length 34, got %d", len(id))
	}
}

func TestGenerateWorkIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateWorkID()
		if seen[id] {
			t.Fatalf("Generated duplicate work ID %q", id)
		}
		seen[id] = true
	}
}

func TestJitterDuration(t *testing.T) {
	base := 3 * time.Second
	jitter := 400 * time.Millisecond
	for i := 0; i < 200; i++ {
		d := JitterDuration(base, jitter)
		if d < base-jitter || d > base+jitter {
			t.Fatalf("Expected duration within [%v, %v], got %v", base-jitter, base+jitter, d)
		}
	}
}

func TestJitterDurationNoJitter(t *testing.T) {
	base := 3 * time.Second
	if d := JitterDuration(base, 0); d != base {
		t.Errorf("Expected base duration %v with zero jitter, got %v", base, d)
	}
	if d := JitterDuration(base, -time.Second); d != base {
		t.Errorf("Expected base duration %v with negative jitter, got %v", base, d)
	}
}

func TestJitterDurationClampedPositive(t *testing.T) {
	// Jitter larger than base must never yield a non-positive delay.
	for i := 0; i < 200; i++ {
		d := JitterDuration(time.Millisecond, time.Second)
		if d <= 0 {
			t.Fatalf("Expected positive duration, got %v", d)
		}
	}
}
