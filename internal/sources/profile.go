package sources

import (
	"fmt"
	"net/url"
	"strings"
)

// Selectors holds comma-separated CSS selector lists. Each list is tried in
// order and the first selector that yields a value wins.
type Selectors struct {
	Title        string `yaml:"title" json:"title"`
	Cover        string `yaml:"cover" json:"cover"`
	Description  string `yaml:"description" json:"description"`
	Status       string `yaml:"status" json:"status"`
	Genres       string `yaml:"genres" json:"genres"`
	Author       string `yaml:"author" json:"author"`
	Artist       string `yaml:"artist" json:"artist"`
	ChapterList  string `yaml:"chapter_list" json:"chapterList"`
	ChapterTitle string `yaml:"chapter_title" json:"chapterTitle"`
	ChapterURL   string `yaml:"chapter_url" json:"chapterUrl"`
	ChapterDate  string `yaml:"chapter_date" json:"chapterDate"`
	PageImages   string `yaml:"page_images" json:"pageImages"`
}

type Profile struct {
	Name      string    `yaml:"name" json:"name"`
	BaseURL   string    `yaml:"base_url" json:"baseUrl"`
	Enabled   *bool     `yaml:"enabled" json:"enabled,omitempty"`
	Selectors Selectors `yaml:"selectors" json:"selectors"`
}

// Normalize trims every field, fills optional selector defaults and rejects
// profiles that cannot drive a scrape.
func (p *Profile) Normalize() error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")

	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	parsed, err := url.Parse(p.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("base_url %q must be an absolute http(s) url", p.BaseURL)
	}

	s := &p.Selectors
	for _, field := range []*string{
		&s.Title, &s.Cover, &s.Description, &s.Status, &s.Genres, &s.Author, &s.Artist,
		&s.ChapterList, &s.ChapterTitle, &s.ChapterURL, &s.ChapterDate, &s.PageImages,
	} {
		*field = strings.Join(SplitSelectors(*field), ", ")
	}

	if s.Title == "" {
		return fmt.Errorf("selectors.title is required")
	}
	if s.ChapterList == "" {
		return fmt.Errorf("selectors.chapter_list is required")
	}
	if s.PageImages == "" {
		return fmt.Errorf("selectors.page_images is required")
	}
	if s.ChapterURL == "" {
		s.ChapterURL = "a"
	}

	return nil
}

func (p Profile) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// Host returns the lower-cased base url host without a leading www.
func (p Profile) Host() string {
	parsed, err := url.Parse(p.BaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// SplitSelectors splits a selector list on top-level commas. Commas inside
// brackets, parentheses or quotes belong to the selector itself.
func SplitSelectors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := make([]string, 0, 4)
	depth := 0
	var quote rune
	start := 0
	for index, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case (r == ']' || r == ')') && depth > 0:
			depth--
		case r == ',' && depth == 0:
			parts = appendSelector(parts, raw[start:index])
			start = index + 1
		}
	}
	parts = appendSelector(parts, raw[start:])

	return parts
}

func appendSelector(parts []string, candidate string) []string {
	trimmed := strings.Join(strings.Fields(candidate), " ")
	if trimmed == "" {
		return parts
	}
	return append(parts, trimmed)
}
