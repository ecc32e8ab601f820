package scrape

import (
	"net/url"
	"strings"

	"github.com/ssanime/manga-nexus-hub/internal/textutil"
)

var seriesPathSegments = map[string]struct{}{
	"manga":   {},
	"series":  {},
	"comic":   {},
	"comics":  {},
	"webtoon": {},
	"manhwa":  {},
	"manhua":  {},
	"title":   {},
}

// SlugFromURL derives the manga slug from a series or chapter url: the
// segment after /manga/ (or a similar prefix), else the first path segment.
func SlugFromURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	rawPath := parsed.Path
	if unescaped, err := url.PathUnescape(parsed.EscapedPath()); err == nil {
		rawPath = unescaped
	}

	segments := make([]string, 0, 4)
	for _, segment := range strings.Split(rawPath, "/") {
		if segment = strings.TrimSpace(segment); segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		return ""
	}

	for index := 0; index < len(segments)-1; index++ {
		if _, ok := seriesPathSegments[strings.ToLower(segments[index])]; ok {
			return textutil.Slugify(segments[index+1])
		}
	}
	return textutil.Slugify(segments[0])
}
