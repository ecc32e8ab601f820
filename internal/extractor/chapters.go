package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
	"github.com/ssanime/manga-nexus-hub/internal/textutil"
)

type ChapterStub struct {
	Number   float64
	Title    string
	URL      string
	DateText string
}

var (
	titleNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	urlNumberPattern   = regexp.MustCompile(`(?i)chapter[-_/]?(\d+(?:\.\d+)?)`)
	easternDigits      = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
		"٫", ".",
	)
)

// ExtractChapterList returns one stub per chapter row in document order.
// Rows without a link are skipped. The chapter number comes from the title,
// then from the link, then from the row's distance to the end of the list,
// which suits sites that list newest first.
func ExtractChapterList(doc *goquery.Document, profile sources.Profile) []ChapterStub {
	s := profile.Selectors
	rows := firstMatching(doc.Selection, s.ChapterList)
	if rows == nil {
		return nil
	}

	total := rows.Length()
	chapters := make([]ChapterStub, 0, total)
	rows.Each(func(index int, row *goquery.Selection) {
		link := chapterLink(row, s.ChapterURL)
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" {
			return
		}

		title := ""
		if goquery.NodeName(row) != "a" {
			title = firstText(row, s.ChapterTitle)
		}
		if title == "" {
			title = textutil.CollapseWhitespace(link.Text())
		}
		if title == "" {
			title = textutil.CollapseWhitespace(row.Text())
		}

		chapterURL := absoluteURL(profile.BaseURL, href)
		number, ok := ChapterNumberFromTitle(title)
		if !ok {
			number, ok = ChapterNumberFromURL(chapterURL)
		}
		if !ok {
			number = float64(total - index)
		}

		chapters = append(chapters, ChapterStub{
			Number:   number,
			Title:    title,
			URL:      chapterURL,
			DateText: firstText(row, s.ChapterDate),
		})
	})

	return chapters
}

func chapterLink(row *goquery.Selection, selectorList string) *goquery.Selection {
	if goquery.NodeName(row) == "a" {
		return row
	}
	for _, selector := range sources.SplitSelectors(selectorList) {
		if link := row.Find(selector).First(); link.Length() > 0 {
			return link
		}
	}
	return row.Find("a").First()
}

// ChapterNumberFromTitle reads the first number in title. Eastern Arabic
// digits are accepted.
func ChapterNumberFromTitle(title string) (float64, bool) {
	token := titleNumberPattern.FindString(easternDigits.Replace(title))
	if token == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ChapterNumberFromURL reads the number following "chapter" in a link, as in
// /manga/x/chapter-12/ or /chapter_12.5.
func ChapterNumberFromURL(rawURL string) (float64, bool) {
	match := urlNumberPattern.FindStringSubmatch(rawURL)
	if len(match) < 2 {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
