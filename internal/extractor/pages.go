package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

type PageStub struct {
	PageNumber int
	ImageURL   string
}

var placeholderMarkers = []string{"loading", "placeholder"}

// ExtractPageImages returns the reader images of a chapter page numbered from
// 1 with no gaps. Lazy-load placeholders are dropped before numbering.
func ExtractPageImages(doc *goquery.Document, profile sources.Profile) []PageStub {
	images := firstMatching(doc.Selection, profile.Selectors.PageImages)
	if images == nil {
		return nil
	}

	pages := make([]PageStub, 0, images.Length())
	images.Each(func(_ int, image *goquery.Selection) {
		source := imageSource(image, "src", "data-src", "data-lazy-src")
		if source == "" || isPlaceholder(source) {
			return
		}
		pages = append(pages, PageStub{
			PageNumber: len(pages) + 1,
			ImageURL:   absoluteURL(profile.BaseURL, source),
		})
	})

	return pages
}

func isPlaceholder(source string) bool {
	lower := strings.ToLower(source)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
