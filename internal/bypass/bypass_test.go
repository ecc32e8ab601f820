package bypass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const mangaPage = `<html><head><title>Solo Leveling - Lek Manga</title></head><body>
<div class="post-title"><h1>Solo Leveling</h1></div>
<ul><li class="wp-manga-chapter"><a href="/manga/solo-leveling/chapter-1/">Chapter 1</a></li></ul>
</body></html>`

const challengePage = `<html><head><title>Just a moment...</title></head><body>
<div id="challenge-form">Checking your browser before accessing the site.</div></body></html>`

func newTestService(hosted *ScrapingAPI, cfg Config) (*Service, *[]time.Duration) {
	service := NewService(hosted, cfg, nil)
	sleeps := []time.Duration{}
	service.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return service, &sleeps
}

func TestBypassUsesScrapingAPIFirst(t *testing.T) {
	rendered := "<html><body>" + strings.Repeat(`<div class="page-break">x</div>`, 1000) + "</body></html>"
	var query atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		_, _ = w.Write([]byte(rendered))
	}))
	defer api.Close()

	service, _ := newTestService(NewScrapingAPI(api.URL, "secret", nil), Config{})
	result, err := service.Bypass(context.Background(), Request{URL: "https://lekmanga.net/manga/solo-leveling/", WaitForSelector: ".page-break"})
	if err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if result.Method != MethodScrapingAPI || result.Status != http.StatusOK || result.HTML != rendered {
		t.Fatalf("unexpected result method=%s status=%d bytes=%d", result.Method, result.Status, len(result.HTML))
	}

	params := query.Load().(url.Values)
	checks := map[string]string{
		"api_key":   "secret",
		"url":       "https://lekmanga.net/manga/solo-leveling/",
		"render_js": "true",
		"timeout":   "60000",
		"wait_for":  ".page-break",
	}
	for key, want := range checks {
		if got := params[key]; len(got) != 1 || got[0] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, got)
		}
	}
}

func TestBypassRejectsSmallHostedRenderAndFallsBackToDirect(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>loading</body></html>"))
	}))
	defer api.Close()

	var userAgent atomic.Value
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(mangaPage))
	}))
	defer site.Close()

	service, sleeps := newTestService(NewScrapingAPI(api.URL, "secret", nil), Config{})
	result, err := service.Bypass(context.Background(), Request{URL: site.URL + "/manga/solo-leveling/"})
	if err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if result.Method != MethodDirect || !strings.Contains(result.HTML, "Solo Leveling") {
		t.Fatalf("expected direct result, got %+v", result)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected the first direct attempt to succeed without waiting, got %v", *sleeps)
	}
	if ua, _ := userAgent.Load().(string); !strings.HasPrefix(ua, "Mozilla/5.0") {
		t.Fatalf("expected a browser user agent, got %q", ua)
	}
}

func TestBypassFailsAfterChallengedDirectAttempts(t *testing.T) {
	var hits atomic.Int32
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(challengePage))
	}))
	defer site.Close()

	service, sleeps := newTestService(NewScrapingAPI("", "", nil), Config{})
	_, err := service.Bypass(context.Background(), Request{URL: site.URL + "/manga/solo-leveling/"})
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("expected ErrAllStrategiesFailed, got %v", err)
	}

	var failure *FailureError
	if !errors.As(err, &failure) || !failure.Challenged || len(failure.Reasons) != DefaultDirectAttempts {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if hits.Load() != DefaultDirectAttempts {
		t.Fatalf("expected %d direct requests, got %d", DefaultDirectAttempts, hits.Load())
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != 2*time.Second || (*sleeps)[1] != 4*time.Second {
		t.Fatalf("expected increasing delays between attempts, got %v", *sleeps)
	}
}

func TestBypassRejectsPagesWithoutMangaSignals(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Parked domain</title></head><body>For sale</body></html>"))
	}))
	defer site.Close()

	service, _ := newTestService(nil, Config{DirectAttempts: 1})
	_, err := service.Bypass(context.Background(), Request{URL: site.URL})

	var failure *FailureError
	if !errors.As(err, &failure) || failure.Challenged {
		t.Fatalf("expected a non-challenge failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "does not look like a manga page") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBypassUsesBrowserWhenEnabled(t *testing.T) {
	service, _ := newTestService(nil, Config{BrowserEnabled: true})
	var gotTimeout time.Duration
	service.render = func(_ context.Context, targetURL string, waitFor string, timeout time.Duration) (string, error) {
		gotTimeout = timeout
		if waitFor != "#readerarea" {
			t.Fatalf("expected wait selector to be forwarded, got %q", waitFor)
		}
		return mangaPage, nil
	}

	result, err := service.Bypass(context.Background(), Request{URL: "https://azoramoon.com/series/x/", WaitForSelector: "#readerarea", TimeoutMs: 15000})
	if err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if result.Method != MethodBrowser || gotTimeout != 15*time.Second {
		t.Fatalf("unexpected browser result %+v timeout=%v", result, gotTimeout)
	}
}

func TestScrapingAPIReportsUpstreamStatus(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid api key"}`))
	}))
	defer api.Close()

	_, status, err := NewScrapingAPI(api.URL, "bad", nil).Render(context.Background(), "https://lekmanga.net", RenderOptions{})
	if err == nil || status != http.StatusUnauthorized || !strings.Contains(err.Error(), "Invalid api key") {
		t.Fatalf("expected upstream error with status, got status=%d err=%v", status, err)
	}
}
