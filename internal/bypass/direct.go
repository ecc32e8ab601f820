package bypass

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
)

// collectPage performs one stealth GET with a fresh collector so no cookies
// or connection state leak between attempts.
func collectPage(targetURL string, userAgent string, timeout time.Duration) (int, []byte, error) {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(userAgent),
	)
	collector.SetRequestTimeout(timeout)
	collector.ParseHTTPErrorResponse = true

	referer := ""
	if parsed, err := url.Parse(targetURL); err == nil && parsed.Host != "" {
		referer = parsed.Scheme + "://" + parsed.Host
	}

	collector.OnRequest(func(r *colly.Request) {
		fetcher.ApplyBrowserHeaders(*r.Headers, userAgent, referer)
	})

	var (
		status  int
		body    []byte
		readErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		encoding := ""
		if r.Headers != nil {
			encoding = r.Headers.Get("Content-Encoding")
		}
		body, readErr = fetcher.DecodeBody(r.Body, encoding)
	})

	if err := collector.Visit(targetURL); err != nil {
		return 0, nil, fmt.Errorf("direct request: %w", err)
	}
	if readErr != nil {
		return status, nil, readErr
	}
	if status == 0 {
		return 0, nil, fmt.Errorf("direct request: no response")
	}
	return status, body, nil
}
