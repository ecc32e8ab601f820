package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const seriesHTML = `<html><body>
<div class="post-title"><h1>Solo Leveling</h1></div>
<div class="summary_image"><img src="/covers/solo.jpg"></div>
<div class="post-status"><div class="summary-content">Ongoing</div></div>
<div class="genres-content"><a>Action</a><a>Fantasy</a></div>
<ul>
<li class="wp-manga-chapter"><a href="/manga/solo-leveling/chapter-5/">Chapter 5</a><span class="chapter-release-date"><i>2024-03-01</i></span></li>
</ul>
</body></html>`

const readerHTML = `<html><body><div class="reading-content">
<img src="https://cdn.example/5/01.jpg">
<img src="https://cdn.example/placeholder.gif">
<img data-src="https://cdn.example/5/02.jpg">
</div></body></html>`

func TestHealth(t *testing.T) {
	_, server := setupTestApp(t, testConfig())

	status, body := doJSON(t, server, http.MethodGet, "/v1/health", nil, nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health %d %+v", status, body)
	}
	if body["sources"].(float64) < 2 {
		t.Fatalf("expected default source profiles, got %v", body["sources"])
	}
}

func TestScrapeAndQueueEndToEnd(t *testing.T) {
	services, server := setupTestApp(t, testConfig())
	site := upstream(map[string]string{
		"/manga/solo-leveling/":           seriesHTML,
		"/manga/solo-leveling/chapter-5/": readerHTML,
	})
	defer site.Close()
	registerSite(t, services, "testsite", site.URL)

	status, body := doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{
		"url": site.URL + "/manga/solo-leveling/", "jobType": "manga_info", "source": "testsite",
	}, nil)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("manga_info failed: %d %+v", status, body)
	}
	manga := body["data"].(map[string]any)["manga"].(map[string]any)
	if manga["slug"] != "solo-leveling" || manga["title"] != "Solo Leveling" || manga["status"] != "ongoing" {
		t.Fatalf("unexpected manga %+v", manga)
	}

	status, body = doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{
		"url": site.URL + "/manga/solo-leveling/", "jobType": "chapters", "source": "testsite",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("chapters failed: %d %+v", status, body)
	}
	chapters := body["data"].(map[string]any)["chapters"].([]any)
	chapter := chapters[0].(map[string]any)
	if len(chapters) != 1 || chapter["chapterNumber"].(float64) != 5 || chapter["sourceUrl"] != site.URL+"/manga/solo-leveling/chapter-5/" {
		t.Fatalf("unexpected chapters %+v", chapters)
	}

	status, body = doJSON(t, server, http.MethodPost, "/v1/queue", map[string]any{"mangaId": manga["id"]}, nil)
	if status != http.StatusCreated || body["queued"].(float64) != 1 {
		t.Fatalf("enqueue failed: %d %+v", status, body)
	}

	status, body = doJSON(t, server, http.MethodPost, "/functions/v1/process-download-queue", map[string]any{}, nil)
	if status != http.StatusOK {
		t.Fatalf("process queue failed: %d %+v", status, body)
	}
	if body["processed"].(float64) != 1 || body["failed"].(float64) != 0 || body["remaining"].(float64) != 0 {
		t.Fatalf("unexpected queue summary %+v", body)
	}
	if body["message"] != "Processed 1 chapters, 0 failed, 0 remaining" {
		t.Fatalf("unexpected queue message %q", body["message"])
	}

	pages, err := services.Pages.ListByChapter(chapter["id"].(string))
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	if len(pages) != 2 || pages[1].PageNumber != 2 || pages[1].ImageURL != "https://cdn.example/5/02.jpg" {
		t.Fatalf("unexpected pages %+v", pages)
	}

	status, body = doJSON(t, server, http.MethodGet, "/v1/queue/stats", nil, nil)
	counts := body["counts"].(map[string]any)
	if status != http.StatusOK || counts["completed"].(float64) != 1 || counts["pending"].(float64) != 0 {
		t.Fatalf("unexpected queue stats %d %+v", status, body)
	}
}

func TestScrapeValidationAndFailures(t *testing.T) {
	services, server := setupTestApp(t, testConfig())
	site := upstream(map[string]string{})
	defer site.Close()
	registerSite(t, services, "testsite", site.URL)

	status, body := doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{"url": site.URL + "/manga/x/", "jobType": "everything"}, nil)
	if status != http.StatusBadRequest || body["success"] != false || !strings.Contains(body["error"].(string), "invalid job type") {
		t.Fatalf("expected 400 for invalid job type, got %d %+v", status, body)
	}

	status, body = doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{"url": site.URL + "/manga/x/", "jobType": "chapters", "source": "testsite"}, nil)
	if status != http.StatusInternalServerError || !strings.Contains(body["error"].(string), "manga not found") {
		t.Fatalf("expected manga not found, got %d %+v", status, body)
	}

	status, body = doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{"url": site.URL + "/manga/missing/", "jobType": "manga_info", "source": "testsite"}, nil)
	if status != http.StatusInternalServerError || !strings.Contains(body["error"].(string), "404") {
		t.Fatalf("expected upstream failure, got %d %+v", status, body)
	}

	status, body = doJSON(t, server, http.MethodGet, "/v1/jobs?status=pending", nil, nil)
	if status != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("expected the upstream failure to stay retryable, got %d %+v", status, body)
	}
	status, body = doJSON(t, server, http.MethodGet, "/v1/jobs?status=failed", nil, nil)
	if status != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("expected the missing manga to fail its job, got %d %+v", status, body)
	}
	status, _ = doJSON(t, server, http.MethodGet, "/v1/jobs?status=stuck", nil, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status filter, got %d", status)
	}
}

func TestCloudflareBypassEndpoint(t *testing.T) {
	_, server := setupTestApp(t, testConfig())
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocked" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("<html><title>Just a moment...</title></html>"))
			return
		}
		_, _ = w.Write([]byte(seriesHTML))
	}))
	defer site.Close()

	status, body := doJSON(t, server, http.MethodPost, "/functions/v1/cloudflare-bypass", map[string]any{"url": site.URL + "/manga/solo-leveling/"}, nil)
	if status != http.StatusOK || body["success"] != true || body["method"] != "direct" || !strings.Contains(body["html"].(string), "Solo Leveling") {
		t.Fatalf("unexpected bypass response %d %+v", status, body)
	}

	status, body = doJSON(t, server, http.MethodPost, "/functions/v1/cloudflare-bypass", map[string]any{"url": site.URL + "/blocked"}, nil)
	if status != http.StatusForbidden || body["success"] != false || body["method"] != "failed" {
		t.Fatalf("expected 403 failure, got %d %+v", status, body)
	}

	status, _ = doJSON(t, server, http.MethodPost, "/functions/v1/cloudflare-bypass", map[string]any{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", status)
	}
}

func TestExtractMangaInfoEndpoint(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer gateway.Close()
	site := upstream(map[string]string{"/manga/solo-leveling/": seriesHTML})
	defer site.Close()

	cfg := testConfig()
	cfg.LLMAPIURL = gateway.URL
	cfg.LLMAPIKey = "llm-key"
	_, server := setupTestApp(t, cfg)

	status, body := doJSON(t, server, http.MethodPost, "/functions/v1/extract-manga-info", map[string]any{"url": site.URL + "/manga/solo-leveling/"}, nil)
	if status != http.StatusTooManyRequests || body["success"] != false {
		t.Fatalf("expected 429, got %d %+v", status, body)
	}

	status, _ = doJSON(t, server, http.MethodPost, "/functions/v1/extract-manga-info", map[string]any{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", status)
	}
}

func TestFunctionsRequireJWTWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "super-secret"
	_, server := setupTestApp(t, cfg)

	status, _ := doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{"jobType": "everything"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"})
	forgedToken, _ := forged.SignedString([]byte("other-secret"))
	status, _ = doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{"jobType": "everything"}, map[string]string{"Authorization": "Bearer " + forgedToken})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a token signed with another key, got %d", status)
	}

	valid := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin", "exp": time.Now().Add(time.Hour).Unix()})
	token, err := valid.SignedString([]byte("super-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	status, _ = doJSON(t, server, http.MethodPost, "/functions/v1/scrape", map[string]any{"jobType": "everything"}, map[string]string{"Authorization": "Bearer " + token})
	if status != http.StatusBadRequest {
		t.Fatalf("expected the request to reach the handler, got %d", status)
	}

	status, _ = doJSON(t, server, http.MethodGet, "/health", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("expected health to stay public, got %d", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "super-secret"
	_, server := setupTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/scrape", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	res, err := server.Test(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive origin, got %q", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "x-client-info") {
		t.Fatalf("expected allowed headers, got %q", got)
	}
}
