package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var normalizeReplacer = strings.NewReplacer(
	"-", " ",
	".", " ",
	"_", " ",
	",", " ",
	":", " ",
	";", " ",
	"!", " ",
	"?", " ",
	"(", " ",
	")", " ",
	"[", " ",
	"]", " ",
	"'", " ",
	"\"", " ",
	"/", " ",
	"\\", " ",
	"|", " ",
	"+", " ",
	"#", " ",
	"&", " ",
	"*", " ",
)

var listDelimiterReplacer = strings.NewReplacer(
	"|", "\n",
	";", "\n",
	"•", "\n",
	"،", "\n",
	" / ", "\n",
	",", "\n",
)

// Normalize lower-cases value and folds punctuation into single spaces so two
// spellings of the same name compare equal.
func Normalize(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	if clean == "" {
		return ""
	}
	clean = normalizeReplacer.Replace(clean)
	return strings.Join(strings.Fields(clean), " ")
}

func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// UniqueNonEmpty keeps the first spelling of every normalized value.
func UniqueNonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	unique := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		trimmed := CollapseWhitespace(raw)
		if trimmed == "" {
			continue
		}
		key := Normalize(trimmed)
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, trimmed)
	}

	return unique
}

// SplitList breaks a free-form "a, b / c; d" block into trimmed items.
func SplitList(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	parts := strings.Split(listDelimiterReplacer.Replace(trimmed), "\n")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		candidate := CollapseWhitespace(part)
		if candidate == "" {
			continue
		}
		result = append(result, candidate)
	}

	return result
}

// Slugify keeps letters and digits of any script, lower-cased, joined by
// single dashes.
func Slugify(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			if pendingDash && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			pendingDash = false
			builder.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return builder.String()
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
