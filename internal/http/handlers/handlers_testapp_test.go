package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/bypass"
	"github.com/ssanime/manga-nexus-hub/internal/config"
	"github.com/ssanime/manga-nexus-hub/internal/database"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
	apihttp "github.com/ssanime/manga-nexus-hub/internal/http"
	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() config.Config {
	return config.Config{
		AppName:          "test-app",
		CORSAllowOrigins: "*",
		LLMModel:         "test-model",
	}
}

func setupTestApp(t *testing.T, cfg config.Config) (*app.Services, *fiber.App) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(currentFile), "..", "..", "..", "migrations")
	if err := database.ApplyMigrations(db, migrationsPath); err != nil {
		_ = db.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	if err := database.SeedDefaults(db); err != nil {
		_ = db.Close()
		t.Fatalf("seed defaults: %v", err)
	}

	services, err := app.New(cfg, db, app.Options{
		Fetcher: fetcher.Options{Backoff: []time.Duration{}, Sleep: noSleep},
		Bypass:  bypass.Config{DirectDelay: time.Millisecond},
	})
	if err != nil {
		_ = db.Close()
		t.Fatalf("build services: %v", err)
	}

	server := apihttp.NewServer(cfg, services)
	t.Cleanup(func() {
		_ = server.Shutdown()
		_ = db.Close()
	})

	return services, server
}

// registerSite points a Madara-style profile at a local upstream server.
func registerSite(t *testing.T, services *app.Services, name string, baseURL string) {
	t.Helper()
	profile := sources.DefaultProfiles()[0]
	profile.Name = name
	profile.BaseURL = baseURL
	if err := services.Profiles.Put(profile); err != nil {
		t.Fatalf("register profile: %v", err)
	}
}

func doJSON(t *testing.T, server *fiber.App, method string, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := server.Test(req, 10000)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	decoded := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, string(raw), err)
		}
	}
	return res.StatusCode, decoded
}

func upstream(pages map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(html))
	}))
}
