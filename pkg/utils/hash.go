package utils

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var idUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:8])
}

// SanitizeID reduces an arbitrary source name to something safe for use
// inside a vector primary key.
func SanitizeID(input string) string {
	s := idUnsafe.ReplaceAllString(strings.TrimSpace(input), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "doc"
	}
	if len(s) > 48 {
		s = s[:48]
	}
	return s
}
