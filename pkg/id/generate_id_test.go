package id

import (
	"encoding/hex"
	"regexp"
	"strings"
	"testing"
	"time"
)

var reHex32Test = regexp.MustCompile(`^[a-f0-9]{32}$`)

func TestNewID32_FormatAndDecode(t *testing.T) {
	got := NewID32()

	// length
	if len(got) != 32 {
		t.Fatalf("length = %d, want 32 (got=%q)", len(got), got)
	}
	// lowercase hex only (no separators/prefixes)
	if !reHex32Test.MatchString(got) {
		t.Fatalf("not 32-char lowercase hex: %q", got)
	}
	// decodes to exactly 16 bytes
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("hex.DecodeString error: %v", err)
	}
	if len(b) != 16 {
		t.Fatalf("decoded bytes = %d, want 16", len(b))
	}
}

func TestNewID32_Uniqueness(t *testing.T) {
	const n = 200
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewID32()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id after %d iterations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestIsID32(t *testing.T) {
	if !IsID32(NewID32()) {
		t.Fatal("fresh id rejected")
	}
	for _, s := range []string{
		"",
		"deadbeef",
		strings.Repeat("A", 32),
		strings.Repeat("g", 32),
		strings.Repeat("a", 33),
		"../../etc/passwd",
	} {
		if IsID32(s) {
			t.Fatalf("IsID32(%q) = true, want false", s)
		}
	}
}

func TestDisplayID(t *testing.T) {
	ts := time.UnixMilli(1_736_123_456_789)
	if got := DisplayID(ts); got != "APP-456789" {
		t.Fatalf("DisplayID = %q, want APP-456789", got)
	}
	// short suffixes are zero padded
	if got := DisplayID(time.UnixMilli(1_000_000_000_042)); got != "APP-000042" {
		t.Fatalf("DisplayID = %q, want APP-000042", got)
	}
}
