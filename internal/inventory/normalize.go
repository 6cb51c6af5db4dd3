package inventory

import (
	"errors"
	"regexp"
	"strings"
)

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)
	tagNamePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// ErrInvalidHexColor is returned for colors not in #rrggbb form.
var ErrInvalidHexColor = errors.New("Color must be a hex value like #2563eb.")

// ErrInvalidTagName is returned for tag names outside the allowed charset.
var ErrInvalidTagName = errors.New("Tag names may only use lowercase letters, digits, dots, dashes, and underscores.")

const maxTagNameLength = 32

// NormalizeHexColor validates a hex color and returns it lowercased.
// An empty string passes through unchanged so callers can apply defaults.
func NormalizeHexColor(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	lowered := strings.ToLower(trimmed)
	if !hexColorPattern.MatchString(lowered) {
		return "", ErrInvalidHexColor
	}
	return lowered, nil
}

// NormalizeTagName trims and lowercases a tag name and validates its charset.
func NormalizeTagName(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || len(normalized) > maxTagNameLength || !tagNamePattern.MatchString(normalized) {
		return "", ErrInvalidTagName
	}
	return normalized, nil
}

// NormalizeTagNames normalizes each name and removes duplicates while
// preserving first-seen order. Invalid names are dropped.
func NormalizeTagNames(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		normalized, err := NormalizeTagName(v)
		if err != nil {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, normalized)
	}
	return result
}

// SplitTagString splits a comma-separated tag string into trimmed,
// non-empty parts. It does not normalize or validate them.
func SplitTagString(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
