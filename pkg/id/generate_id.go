package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

var reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

// NewID32 returns exactly 32 hex characters (no separators/prefixes).
func NewID32() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// IsID32 reports whether s has the NewID32 shape.
func IsID32(s string) bool { return reHex32.MatchString(s) }

// DisplayID builds the human-facing receipt reference "APP-" + the last six
// digits of t in unix milliseconds.
func DisplayID(t time.Time) string {
	return fmt.Sprintf("APP-%06d", t.UnixMilli()%1_000_000)
}
