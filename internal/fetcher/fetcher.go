package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/sources"
	"golang.org/x/net/publicsuffix"
)

const maxBodyBytes = 16 << 20

var defaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

type Options struct {
	Client    *http.Client
	JitterMin time.Duration
	JitterMax time.Duration
	// Backoff holds the waits between attempts; its length is the retry count.
	Backoff []time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
	Logger  *slog.Logger
}

// Fetcher downloads pages from third-party sites with browser-like headers,
// a politeness jitter before every attempt and fixed backoff between retries.
type Fetcher struct {
	client     *http.Client
	jitterMin  time.Duration
	jitterMax  time.Duration
	backoff    []time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
	userAgents []string
}

func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = NewHTTPClient()
	}
	if opts.JitterMin <= 0 && opts.JitterMax <= 0 {
		opts.JitterMin = 2 * time.Second
		opts.JitterMax = 5 * time.Second
	}
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin
	}
	if opts.Backoff == nil {
		opts.Backoff = defaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Fetcher{
		client:     client,
		jitterMin:  opts.JitterMin,
		jitterMax:  opts.JitterMax,
		backoff:    opts.Backoff,
		sleep:      opts.Sleep,
		logger:     opts.Logger,
		userAgents: UserAgents(),
	}
}

// NewHTTPClient returns a client whose cookie jar keeps clearance cookies
// between attempts against the same site.
func NewHTTPClient() *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return &http.Client{}
	}
	return &http.Client{Jar: jar}
}

// Fetch returns the decoded HTML of rawURL. Challenges and HTTP failures are
// retried; the last one is returned inside a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, profile sources.Profile) (string, error) {
	attempts := len(f.backoff) + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := f.sleep(ctx, f.jitter()); err != nil {
			return "", fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		html, err := f.fetchOnce(ctx, rawURL, profile)
		if err == nil {
			if attempt > 1 {
				f.logger.Info("fetch recovered", "url", rawURL, "attempt", attempt)
			}
			return html, nil
		}
		lastErr = err
		f.logger.Warn("fetch attempt failed", "url", rawURL, "attempt", attempt, "maxAttempts", attempts, "error", err)

		if attempt < attempts {
			if err := f.sleep(ctx, f.backoff[attempt-1]); err != nil {
				return "", fmt.Errorf("fetch %s: %w", rawURL, err)
			}
		}
	}

	return "", &FetchError{URL: rawURL, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string, profile sources.Profile) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	ApplyBrowserHeaders(req.Header, f.userAgents[rand.IntN(len(f.userAgents))], profile.BaseURL)

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	body, err := DecodeBody(raw, res.Header.Get("Content-Encoding"))
	if err != nil {
		return "", err
	}

	if challenged, indicators := DetectChallenge(res.StatusCode, body); challenged {
		return "", &ChallengeError{URL: rawURL, StatusCode: res.StatusCode, Indicators: indicators}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	return string(body), nil
}

func (f *Fetcher) jitter() time.Duration {
	span := f.jitterMax - f.jitterMin
	if span <= 0 {
		return f.jitterMin
	}
	return f.jitterMin + rand.N(span)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
