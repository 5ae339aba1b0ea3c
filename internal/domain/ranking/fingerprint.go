package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	wordRe       = regexp.MustCompile(`\b\w+\b`)
	digitsRe     = regexp.MustCompile(`\d+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Fingerprint hashes the shape of code: names, numbers and string literals
// are replaced by placeholders so that structurally equal lines collide.
func Fingerprint(code string) string {
	normalized := wordRe.ReplaceAllString(code, "VAR")
	normalized = digitsRe.ReplaceAllString(normalized, "NUM")
	normalized = stringRe.ReplaceAllString(normalized, "STR")
	normalized = strings.TrimSpace(whitespaceRe.ReplaceAllString(normalized, " "))

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])[:16]
}
