// Package slug derives URL-safe identifiers from story titles.
package slug

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	separators   = regexp.MustCompile(`[\s-]+`)
	validSlug    = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Generate lower-cases the text, strips everything outside [a-z0-9 -],
// collapses runs of whitespace and hyphens, and trims edge hyphens.
func Generate(text string) string {
	s := strings.ToLower(text)
	s = invalidChars.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IsValid reports whether s is at least three characters of hyphen-separated
// lowercase alphanumeric groups.
func IsValid(s string) bool {
	return len(s) >= 3 && validSlug.MatchString(s)
}

// EnsureUnique returns base unchanged when it is absent from existing,
// otherwise the base with the smallest unused numeric suffix appended.
func EnsureUnique(base string, existing map[string]struct{}) string {
	if _, taken := existing[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}
