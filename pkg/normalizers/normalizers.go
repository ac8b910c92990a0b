// Package normalizers provides the text normalization applied to staged job fields
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = make(map[string]Normalizer)

func init() {
	Register("trim", Trim)
	Register("title", TitleCase)
	Register("lowercase", Lowercase)
	Register("collapse_whitespace", CollapseWhitespace)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

func Lowercase(s string) string {
	return strings.ToLower(s)
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "OPERATIONS" -> "Operations", "South africa" -> "South Africa",
// "r&d" -> "R&D". Any non-letter, including digits and apostrophes, starts a new word.
func TitleCase(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if inWord {
				result.WriteRune(unicode.ToLower(r))
			} else {
				result.WriteRune(unicode.ToTitle(r))
			}
			inWord = true
			continue
		}
		result.WriteRune(r)
		inWord = false
	}
	return result.String()
}

// CollapseWhitespace replaces every run of whitespace with a single space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsBlank reports whether s is empty or whitespace only
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// NullIfBlank trims s and returns nil when nothing is left
func NullIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// DefaultIfBlank returns the normalized value, or fallback when the input is nil or blank
func DefaultIfBlank(s *string, fallback string, chain ...string) (string, bool) {
	if s == nil || IsBlank(*s) {
		return fallback, true
	}
	return ApplyChain(*s, chain...), false
}
