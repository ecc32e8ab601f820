package fetcher

import (
	"bytes"
	"fmt"
	"net/http"
)

// Each marker alone identifies an interstitial instead of real content.
var challengeMarkers = []struct {
	marker string
	reason string
}{
	{marker: "cloudflare-browser-verification", reason: "browser verification challenge"},
	{marker: "challenge-form", reason: "challenge form"},
	{marker: "cf-chl-", reason: "challenge token"},
	{marker: "checking your browser", reason: "browser check"},
	{marker: "verify you are human", reason: "human verification"},
	{marker: "attention required! | cloudflare", reason: "browser integrity check"},
	{marker: "<title>just a moment", reason: "just a moment interstitial"},
	{marker: "cf-turnstile", reason: "turnstile widget"},
	{marker: "ddos-guard", reason: "ddos-guard interstitial"},
}

// ChallengeError reports an anti-bot interstitial served instead of the page.
type ChallengeError struct {
	URL        string
	StatusCode int
	Indicators []string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("challenge detected: status=%d url=%s indicators=%v", e.StatusCode, e.URL, e.Indicators)
}

// FetchError wraps the last failure after every attempt was used.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DetectChallenge reports whether a response is a bot challenge. 403 and 503
// always count; any other status counts when the body carries a marker.
func DetectChallenge(statusCode int, body []byte) (bool, []string) {
	indicators := make([]string, 0, 2)
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		indicators = append(indicators, fmt.Sprintf("status %d", statusCode))
	}

	lower := bytes.ToLower(body)
	for _, check := range challengeMarkers {
		if bytes.Contains(lower, []byte(check.marker)) {
			indicators = append(indicators, check.reason)
		}
	}

	return len(indicators) > 0, indicators
}
