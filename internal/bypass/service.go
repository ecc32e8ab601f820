package bypass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
)

const (
	MethodScrapingAPI = "scraping_api"
	MethodBrowser     = "headless_browser"
	MethodDirect      = "direct"
	MethodFailed      = "failed"

	DefaultTimeout        = 60 * time.Second
	DefaultMinHostedBytes = 20000
	DefaultDirectAttempts = 3
	DefaultDirectDelay    = 2 * time.Second
)

var ErrAllStrategiesFailed = errors.New("all bypass strategies failed")

// Positive signals that a body is a manga series or reader page rather than
// an error or interstitial.
var mangaPageSelectors = []string{
	"li.wp-manga-chapter",
	".wp-manga-chapter",
	".chapter-list",
	".listing-chapters_wrap",
	".reading-content",
	".page-break",
	"img.wp-manga-chapter-img",
	".summary_image",
	".post-title",
	"#chapterlist",
	".eplister",
	"#readerarea",
}

var mangaPageKeywords = []string{"chapter", "manga", "manhwa", "الفصل", "مانجا", "مانهوا"}

type Config struct {
	BrowserEnabled bool
	// MinHostedBytes rejects hosted renders smaller than this as incomplete.
	MinHostedBytes int
	DirectAttempts int
	DirectDelay    time.Duration
}

type Request struct {
	URL             string
	WaitForSelector string
	TimeoutMs       int
}

type Result struct {
	HTML   string `json:"html"`
	Status int    `json:"status"`
	Method string `json:"method"`
}

// FailureError lists why every strategy failed. Challenged is set when at
// least one strategy reached the site and was served an interstitial.
type FailureError struct {
	Reasons    []string
	Challenged bool
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAllStrategiesFailed.Error(), strings.Join(e.Reasons, "; "))
}

func (e *FailureError) Is(target error) bool {
	return target == ErrAllStrategiesFailed
}

type renderFunc func(ctx context.Context, targetURL string, waitForSelector string, timeout time.Duration) (string, error)

// Service fetches pages that sit behind anti-bot protection. Strategies run
// in order: hosted scraping API, headless browser, direct stealth requests.
type Service struct {
	hosted         *ScrapingAPI
	render         renderFunc
	browserEnabled bool
	minHostedBytes int
	directAttempts int
	directDelay    time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	userAgents     []string
	logger         *slog.Logger
}

func NewService(hosted *ScrapingAPI, cfg Config, logger *slog.Logger) *Service {
	if cfg.MinHostedBytes <= 0 {
		cfg.MinHostedBytes = DefaultMinHostedBytes
	}
	if cfg.DirectAttempts <= 0 {
		cfg.DirectAttempts = DefaultDirectAttempts
	}
	if cfg.DirectDelay <= 0 {
		cfg.DirectDelay = DefaultDirectDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		hosted:         hosted,
		render:         renderWithChrome,
		browserEnabled: cfg.BrowserEnabled,
		minHostedBytes: cfg.MinHostedBytes,
		directAttempts: cfg.DirectAttempts,
		directDelay:    cfg.DirectDelay,
		sleep:          fetcher.SleepContext,
		userAgents:     fetcher.UserAgents(),
		logger:         logger,
	}
}

// Bypass returns the first strategy result that passes its checks. When all
// of them fail the error is a *FailureError matching ErrAllStrategiesFailed.
func (s *Service) Bypass(ctx context.Context, req Request) (*Result, error) {
	targetURL := strings.TrimSpace(req.URL)
	if targetURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	timeout := DefaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	failure := &FailureError{}

	if s.hosted.Enabled() {
		result, err := s.viaScrapingAPI(ctx, targetURL, req.WaitForSelector, timeout)
		if err == nil {
			return result, nil
		}
		s.recordFailure(failure, MethodScrapingAPI, targetURL, err)
	}

	if s.browserEnabled && s.render != nil {
		result, err := s.viaBrowser(ctx, targetURL, req.WaitForSelector, timeout)
		if err == nil {
			return result, nil
		}
		s.recordFailure(failure, MethodBrowser, targetURL, err)
	}

	for attempt := 1; attempt <= s.directAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, time.Duration(attempt-1)*s.directDelay); err != nil {
				return nil, fmt.Errorf("bypass %s: %w", targetURL, err)
			}
		}
		result, err := s.viaDirect(ctx, targetURL, timeout)
		if err == nil {
			return result, nil
		}
		s.recordFailure(failure, fmt.Sprintf("%s attempt %d", MethodDirect, attempt), targetURL, err)
	}

	return nil, failure
}

func (s *Service) recordFailure(failure *FailureError, method string, targetURL string, err error) {
	var challenge *fetcher.ChallengeError
	if errors.As(err, &challenge) {
		failure.Challenged = true
	}
	failure.Reasons = append(failure.Reasons, fmt.Sprintf("%s: %v", method, err))
	s.logger.Warn("bypass strategy failed", "method", method, "url", targetURL, "error", err)
}

func (s *Service) viaScrapingAPI(ctx context.Context, targetURL string, waitFor string, timeout time.Duration) (*Result, error) {
	html, status, err := s.hosted.Render(ctx, targetURL, RenderOptions{WaitForSelector: waitFor, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	if len(html) < s.minHostedBytes {
		return nil, fmt.Errorf("response too small (%d bytes), page likely incomplete", len(html))
	}
	if challenged, indicators := fetcher.DetectChallenge(status, []byte(html)); challenged {
		return nil, &fetcher.ChallengeError{URL: targetURL, StatusCode: status, Indicators: indicators}
	}

	s.logger.Info("bypass succeeded", "method", MethodScrapingAPI, "url", targetURL, "bytes", len(html))
	return &Result{HTML: html, Status: status, Method: MethodScrapingAPI}, nil
}

func (s *Service) viaBrowser(ctx context.Context, targetURL string, waitFor string, timeout time.Duration) (*Result, error) {
	html, err := s.render(ctx, targetURL, waitFor, timeout)
	if err != nil {
		return nil, err
	}
	if challenged, indicators := fetcher.DetectChallenge(200, []byte(html)); challenged {
		return nil, &fetcher.ChallengeError{URL: targetURL, StatusCode: 200, Indicators: indicators}
	}

	s.logger.Info("bypass succeeded", "method", MethodBrowser, "url", targetURL, "bytes", len(html))
	return &Result{HTML: html, Status: 200, Method: MethodBrowser}, nil
}

func (s *Service) viaDirect(ctx context.Context, targetURL string, timeout time.Duration) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userAgent := s.userAgents[rand.IntN(len(s.userAgents))]
	status, body, err := collectPage(targetURL, userAgent, timeout)
	if err != nil {
		return nil, err
	}
	if challenged, indicators := fetcher.DetectChallenge(status, body); challenged {
		return nil, &fetcher.ChallengeError{URL: targetURL, StatusCode: status, Indicators: indicators}
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("unexpected status %d", status)
	}
	if !looksLikeMangaPage(body) {
		return nil, fmt.Errorf("response does not look like a manga page")
	}

	s.logger.Info("bypass succeeded", "method", MethodDirect, "url", targetURL, "bytes", len(body))
	return &Result{HTML: string(body), Status: status, Method: MethodDirect}, nil
}

func looksLikeMangaPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return false
	}
	for _, selector := range mangaPageSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}

	text := strings.ToLower(doc.Find("title").Text() + " " + doc.Find("h1").Text())
	for _, keyword := range mangaPageKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
