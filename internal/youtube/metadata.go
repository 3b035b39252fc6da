package youtube

import "strings"

// YouTube metadata limits.
const (
	maxTitleLen       = 100
	maxDescriptionLen = 5000
	maxTags           = 30
	maxTagLen         = 100
)

// defaultPrivacy is the safe fallback when the catalog supplies an invalid
// privacy value: never publish wider than asked.
const defaultPrivacy = "private"

var validPrivacy = map[string]bool{
	"public":   true,
	"unlisted": true,
	"private":  true,
}

// VideoMetadata is the sanitized payload handed to the upload call.
type VideoMetadata struct {
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	PrivacyStatus string
}

// SanitizeMetadata trims title and description to the target's length limits,
// deduplicates and caps tags, validates the privacy value, and forwards the
// category as an opaque string.
func SanitizeMetadata(title, description string, tags []string, categoryID, privacy string) VideoMetadata {
	meta := VideoMetadata{
		Title:         truncate(strings.TrimSpace(title), maxTitleLen),
		Description:   truncate(strings.TrimSpace(description), maxDescriptionLen),
		CategoryID:    categoryID,
		PrivacyStatus: strings.ToLower(strings.TrimSpace(privacy)),
	}

	if meta.Title == "" {
		meta.Title = "Untitled"
	}
	if !validPrivacy[meta.PrivacyStatus] {
		meta.PrivacyStatus = defaultPrivacy
	}

	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = truncate(strings.TrimSpace(tag), maxTagLen)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		meta.Tags = append(meta.Tags, tag)
		if len(meta.Tags) == maxTags {
			break
		}
	}

	return meta
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
