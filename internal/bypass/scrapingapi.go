package bypass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
	"github.com/ssanime/manga-nexus-hub/internal/textutil"
)

const maxHostedBodyBytes = 16 << 20

// RenderOptions tune one hosted render. Zero values fall back to a full
// JavaScript render with a 60 second upstream timeout.
type RenderOptions struct {
	WaitForSelector string
	Wait            time.Duration
	Timeout         time.Duration
	SkipJS          bool
}

// ScrapingAPI calls a hosted headless-browser scraping service that takes the
// target URL and credentials as query parameters and answers with the page.
type ScrapingAPI struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewScrapingAPI(endpoint string, apiKey string, client *http.Client) *ScrapingAPI {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &ScrapingAPI{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		client:   client,
	}
}

// Enabled reports whether both the endpoint and the key are configured.
func (a *ScrapingAPI) Enabled() bool {
	return a != nil && a.endpoint != "" && a.apiKey != ""
}

// Render returns the rendered body of targetURL together with the status the
// service answered with.
func (a *ScrapingAPI) Render(ctx context.Context, targetURL string, opts RenderOptions) (string, int, error) {
	if !a.Enabled() {
		return "", 0, fmt.Errorf("scraping api is not configured")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	wait := opts.Wait
	if wait <= 0 && !opts.SkipJS {
		wait = 5 * time.Second
	}

	params := url.Values{}
	params.Set("api_key", a.apiKey)
	params.Set("url", targetURL)
	params.Set("render_js", strconv.FormatBool(!opts.SkipJS))
	params.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	if wait > 0 {
		params.Set("wait", strconv.FormatInt(wait.Milliseconds(), 10))
	}
	if selector := strings.TrimSpace(opts.WaitForSelector); selector != "" {
		params.Set("wait_for", selector)
	}

	separator := "?"
	if strings.Contains(a.endpoint, "?") {
		separator = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+separator+params.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("create scraping api request: %w", err)
	}

	res, err := a.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("call scraping api: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxHostedBodyBytes))
	if err != nil {
		return "", res.StatusCode, fmt.Errorf("read scraping api body: %w", err)
	}
	body, err := fetcher.DecodeBody(raw, res.Header.Get("Content-Encoding"))
	if err != nil {
		return "", res.StatusCode, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", res.StatusCode, fmt.Errorf("scraping api returned status %d: %s", res.StatusCode, textutil.Truncate(textutil.CollapseWhitespace(string(body)), 200))
	}

	return string(body), res.StatusCode, nil
}
