package profile

import (
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/backseat/internal/errors"
)

// Normalize trims every scalar field and cleans the list fields.
// List fields are never nil after normalization so they export as [].
func Normalize(p Profile) Profile {
	return Profile{
		Name:           strings.TrimSpace(p.Name),
		InferenceURL:   strings.TrimSpace(p.InferenceURL),
		InferenceModel: strings.TrimSpace(p.InferenceModel),
		OCRURL:         strings.TrimSpace(p.OCRURL),
		OCRLanguages:   CleanList(p.OCRLanguages),
		SystemPrompt:   strings.TrimSpace(p.SystemPrompt),
		Filters: FilterSpec{
			Regex:      strings.TrimSpace(p.Filters.Regex),
			DOMInclude: CleanList(p.Filters.DOMInclude),
			DOMExclude: CleanList(p.Filters.DOMExclude),
		},
	}
}

// Validate checks the save-time invariants of an already normalized profile.
func Validate(p Profile) error {
	if p.Name == "" {
		return errors.NewConfiguration("name", "profile name is required")
	}
	if p.InferenceURL == "" {
		return errors.NewConfiguration("ollamaUrl", "inference URL and model are required")
	}
	if p.InferenceModel == "" {
		return errors.NewConfiguration("model", "inference URL and model are required")
	}
	if len(p.OCRLanguages) == 0 {
		return errors.NewConfiguration("ocrLanguages", "at least one OCR language is required")
	}
	return nil
}

// CleanList trims entries, drops blanks and duplicates, and keeps first-seen order.
func CleanList(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

// SplitList splits a delimited string (comma or newline) into a cleaned list.
func SplitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return CleanList(strings.Split(s, sep))
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
