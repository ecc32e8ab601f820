package fetcher

import (
	"net/http"
	"strings"
)

type browserIdentity struct {
	userAgent string
	secCHUA   string
	platform  string
}

var defaultIdentities = []browserIdentity{
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		secCHUA:   `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
		platform:  `"Windows"`,
	},
	{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		secCHUA:   `"Chromium";v="123", "Google Chrome";v="123", "Not:A-Brand";v="8"`,
		platform:  `"macOS"`,
	},
	{
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		secCHUA:   `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
		platform:  `"Linux"`,
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		secCHUA:   `"Chromium";v="124", "Microsoft Edge";v="124", "Not-A.Brand";v="99"`,
		platform:  `"Windows"`,
	},
}

// UserAgents lists the rotated User-Agent strings.
func UserAgents() []string {
	items := make([]string, 0, len(defaultIdentities))
	for _, identity := range defaultIdentities {
		items = append(items, identity.userAgent)
	}
	return items
}

// ApplyBrowserHeaders makes a request look like a top-level navigation from
// a browser that arrived from baseURL.
func ApplyBrowserHeaders(header http.Header, userAgent string, baseURL string) {
	header.Set("User-Agent", userAgent)
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	header.Set("Accept-Language", "ar,en-US;q=0.9,en;q=0.8")
	header.Set("Accept-Encoding", "gzip, deflate, br")
	header.Set("Cache-Control", "max-age=0")
	header.Set("Upgrade-Insecure-Requests", "1")
	header.Set("Sec-Fetch-Dest", "document")
	header.Set("Sec-Fetch-Mode", "navigate")
	header.Set("Sec-Fetch-Site", "same-origin")
	header.Set("Sec-Fetch-User", "?1")

	for _, identity := range defaultIdentities {
		if identity.userAgent == userAgent {
			header.Set("sec-ch-ua", identity.secCHUA)
			header.Set("sec-ch-ua-mobile", "?0")
			header.Set("sec-ch-ua-platform", identity.platform)
			break
		}
	}

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" {
		header.Set("Referer", base+"/")
		header.Set("Origin", base)
	}
}
