package domain

import "strings"

// ExcerptLength is the teaser length used for listings and meta descriptions.
const ExcerptLength = 200

// Excerpt derives a short teaser from the first maxLen characters of content,
// cut at a word boundary.
func Excerpt(content string, maxLen int) string {
	clean := strings.Join(strings.Fields(content), " ")
	if len(clean) <= maxLen {
		return clean
	}
	cut := clean[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
