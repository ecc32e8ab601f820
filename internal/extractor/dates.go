package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeUnitPattern = regexp.MustCompile(`(?i)(\d+)\s*(second|seconds|minute|minutes|mins?|hour|hours|day|days|week|weeks|month|months|year|years|ثانية|ثواني|دقيقة|دقائق|ساعة|ساعات|يوم|أيام|ايام|أسبوع|أسابيع|اسبوع|شهر|أشهر|شهور|سنة|سنوات)`)
	dateLayouts         = []string{
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"2006-01-02T15:04:05Z07:00",
	}
)

// ParseReleaseDate reads the release date text printed next to a chapter.
// It understands absolute dates in common layouts and relative phrases such
// as "3 days ago" or "منذ 3 أيام". Unknown text yields nil.
func ParseReleaseDate(raw string, now time.Time) *time.Time {
	normalized := strings.Join(strings.Fields(easternDigits.Replace(raw)), " ")
	if normalized == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, normalized)
		if err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}

	lower := strings.ToLower(normalized)
	if strings.Contains(lower, "just now") || strings.Contains(lower, "الآن") {
		result := now.UTC()
		return &result
	}
	if strings.Contains(lower, "yesterday") || strings.Contains(lower, "أمس") {
		result := now.UTC().AddDate(0, 0, -1)
		return &result
	}

	matches := relativeUnitPattern.FindAllStringSubmatch(lower, -1)
	if len(matches) == 0 {
		return nil
	}

	result := now.UTC()
	for _, match := range matches {
		quantity, err := strconv.Atoi(match[1])
		if err != nil || quantity <= 0 {
			continue
		}
		switch match[2] {
		case "second", "seconds", "ثانية", "ثواني":
			result = result.Add(-time.Duration(quantity) * time.Second)
		case "minute", "minutes", "min", "mins", "دقيقة", "دقائق":
			result = result.Add(-time.Duration(quantity) * time.Minute)
		case "hour", "hours", "ساعة", "ساعات":
			result = result.Add(-time.Duration(quantity) * time.Hour)
		case "day", "days", "يوم", "أيام", "ايام":
			result = result.AddDate(0, 0, -quantity)
		case "week", "weeks", "أسبوع", "أسابيع", "اسبوع":
			result = result.AddDate(0, 0, -7*quantity)
		case "month", "months", "شهر", "أشهر", "شهور":
			result = result.AddDate(0, -quantity, 0)
		case "year", "years", "سنة", "سنوات":
			result = result.AddDate(-quantity, 0, 0)
		}
	}

	return &result
}
