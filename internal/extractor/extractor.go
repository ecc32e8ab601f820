package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
	"github.com/ssanime/manga-nexus-hub/internal/textutil"
)

type MangaInfo struct {
	Title       string
	Cover       string
	Description string
	Status      string
	Author      string
	Artist      string
	Genres      []string
}

func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ExtractMangaInfo reads series metadata from a detail page. Every field is
// the first non-empty match of its selector list; genres collect every match.
func ExtractMangaInfo(doc *goquery.Document, profile sources.Profile) MangaInfo {
	s := profile.Selectors
	root := doc.Selection

	info := MangaInfo{
		Title:       firstText(root, s.Title),
		Description: firstBlockText(root, s.Description),
		Author:      firstText(root, s.Author),
		Artist:      firstText(root, s.Artist),
		Status:      NormalizeStatus(firstText(root, s.Status)),
		Cover:       firstImage(root, s.Cover, profile.BaseURL),
	}

	for _, selector := range sources.SplitSelectors(s.Genres) {
		root.Find(selector).Each(func(_ int, item *goquery.Selection) {
			if genre := textutil.CollapseWhitespace(item.Text()); genre != "" {
				info.Genres = append(info.Genres, genre)
			}
		})
	}

	return info
}

// NormalizeStatus maps free status text to ongoing or completed. Anything not
// recognisably ongoing, empty text included, counts as completed.
func NormalizeStatus(raw string) string {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "ongoing") || strings.Contains(lower, "مستمر") {
		return models.MangaStatusOngoing
	}
	return models.MangaStatusCompleted
}

func firstText(root *goquery.Selection, selectorList string) string {
	return firstMatch(root, selectorList, func(item *goquery.Selection) string {
		return textutil.CollapseWhitespace(item.Text())
	})
}

// firstBlockText keeps line breaks inside the matched text.
func firstBlockText(root *goquery.Selection, selectorList string) string {
	return firstMatch(root, selectorList, func(item *goquery.Selection) string {
		return strings.TrimSpace(item.Text())
	})
}

func firstImage(root *goquery.Selection, selectorList string, baseURL string) string {
	return firstMatch(root, selectorList, func(item *goquery.Selection) string {
		return absoluteURL(baseURL, imageSource(item, "src", "data-src"))
	})
}

func firstMatch(root *goquery.Selection, selectorList string, value func(*goquery.Selection) string) string {
	for _, selector := range sources.SplitSelectors(selectorList) {
		found := ""
		root.Find(selector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
			found = value(item)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// firstMatching returns the matches of the first selector in the list that
// matches anything, or nil. Lists like ".reading-content img, .page-break img"
// often hit the same nodes, so their matches are never merged.
func firstMatching(root *goquery.Selection, selectorList string) *goquery.Selection {
	for _, selector := range sources.SplitSelectors(selectorList) {
		if matched := root.Find(selector); matched.Length() > 0 {
			return matched
		}
	}
	return nil
}

// imageSource reads the first non-empty attribute of item, or of its first
// <img> descendant when item is a wrapper.
func imageSource(item *goquery.Selection, attributes ...string) string {
	if goquery.NodeName(item) != "img" {
		if nested := item.Find("img").First(); nested.Length() > 0 {
			item = nested
		}
	}
	for _, attribute := range attributes {
		if value := strings.TrimSpace(item.AttrOr(attribute, "")); value != "" {
			return value
		}
	}
	return ""
}

func absoluteURL(baseURL string, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "//") {
		return "https:" + trimmed
	}
	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(trimmed, "/") {
		return base + trimmed
	}
	return base + "/" + trimmed
}
