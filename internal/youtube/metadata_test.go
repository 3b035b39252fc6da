package youtube

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestSanitizeMetadata_TrimsTitleAndDescription(t *testing.T) {
	longTitle := strings.Repeat("t", 150)
	longDesc := strings.Repeat("d", 6000)

	meta := SanitizeMetadata("  "+longTitle+"  ", longDesc, nil, "22", "public")

	if len(meta.Title) != maxTitleLen {
		t.Errorf("expected title trimmed to %d chars, got %d", maxTitleLen, len(meta.Title))
	}
	if len(meta.Description) != maxDescriptionLen {
		t.Errorf("expected description trimmed to %d chars, got %d", maxDescriptionLen, len(meta.Description))
	}
	if meta.CategoryID != "22" {
		t.Errorf("expected category forwarded untouched, got %q", meta.CategoryID)
	}
}

func TestSanitizeMetadata_EmptyTitleFallback(t *testing.T) {
	meta := SanitizeMetadata("   ", "desc", nil, "", "public")
	if meta.Title != "Untitled" {
		t.Errorf("expected fallback title, got %q", meta.Title)
	}
}

func TestSanitizeMetadata_TagsDeduplicatedAndCapped(t *testing.T) {
	tags := []string{"go", "GO", " go ", "", "video"}
	for i := 0; i < 50; i++ {
		tags = append(tags, strings.Repeat("x", 3)+string(rune('a'+i)))
	}

	meta := SanitizeMetadata("title", "", tags, "", "public")

	if len(meta.Tags) != maxTags {
		t.Errorf("expected tags capped at %d, got %d", maxTags, len(meta.Tags))
	}
	if meta.Tags[0] != "go" || meta.Tags[1] != "video" {
		t.Errorf("expected case-insensitive dedup keeping first occurrence, got %v", meta.Tags[:2])
	}
}

func TestSanitizeMetadata_TagLengthCapped(t *testing.T) {
	meta := SanitizeMetadata("title", "", []string{strings.Repeat("a", 200)}, "", "public")
	if len(meta.Tags) != 1 || len(meta.Tags[0]) != maxTagLen {
		t.Errorf("expected single tag capped to %d chars, got %v", maxTagLen, meta.Tags)
	}
}

func TestSanitizeMetadata_PrivacyValidation(t *testing.T) {
	cases := map[string]string{
		"public":   "public",
		"PUBLIC":   "public",
		"unlisted": "unlisted",
		"private":  "private",
		"friends":  "private",
		"":         "private",
	}
	for input, expected := range cases {
		meta := SanitizeMetadata("title", "", nil, "", input)
		if meta.PrivacyStatus != expected {
			t.Errorf("privacy %q: expected %q, got %q", input, expected, meta.PrivacyStatus)
		}
	}
}

func TestClassifyUploadError_Quota(t *testing.T) {
	apiErr := &googleapi.Error{
		Code: http.StatusForbidden,
		Errors: []googleapi.ErrorItem{
			{Reason: "quotaExceeded"},
		},
	}
	if err := classifyUploadError(apiErr); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestClassifyUploadError_QuotaByMessage(t *testing.T) {
	apiErr := &googleapi.Error{
		Code:    http.StatusForbidden,
		Message: "The request cannot be completed because you have exceeded your quota.",
	}
	if err := classifyUploadError(apiErr); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestClassifyUploadError_Auth(t *testing.T) {
	apiErr := &googleapi.Error{Code: http.StatusUnauthorized}
	if err := classifyUploadError(apiErr); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestClassifyUploadError_Other(t *testing.T) {
	plain := errors.New("connection reset")
	err := classifyUploadError(plain)
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrFileVanished) {
		t.Errorf("expected plain wrapped error, got %v", err)
	}
	if !errors.Is(err, plain) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
}
