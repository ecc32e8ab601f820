package aiextract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	openai "github.com/sashabaranov/go-openai"
	"github.com/ssanime/manga-nexus-hub/internal/bypass"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/repository"
	"github.com/ssanime/manga-nexus-hub/internal/textutil"
)

const (
	DefaultMaxTextChars = 15000
	toolName            = "extract_manga_info"
	maxPageBytes        = 8 << 20
)

var (
	ErrURLRequired   = errors.New("url is required")
	ErrNotConfigured = errors.New("llm api key is not configured")
	ErrRateLimited   = errors.New("rate limited by llm gateway, try again later")
	ErrNoMetadata    = errors.New("model returned no structured metadata")
	ErrMangaNotFound = errors.New("manga not found")
	ErrEmptyPageText = errors.New("page has no readable text")
)

type Config struct {
	APIURL       string
	APIKey       string
	Model        string
	MaxTextChars int
}

type Request struct {
	URL     string `json:"url"`
	MangaID string `json:"mangaId,omitempty"`
}

// Metadata mirrors the function-calling schema sent to the model.
type Metadata struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Genres            []string `json:"genres"`
	Author            string   `json:"author"`
	Artist            string   `json:"artist"`
	Status            string   `json:"status"`
	Year              *int     `json:"year,omitempty"`
	Country           string   `json:"country"`
	AlternativeTitles []string `json:"alternative_titles"`
}

type Result struct {
	Metadata Metadata      `json:"metadata"`
	Manga    *models.Manga `json:"manga,omitempty"`
}

type pageRenderer interface {
	Enabled() bool
	Render(ctx context.Context, targetURL string, opts bypass.RenderOptions) (string, int, error)
}

type metadataStore interface {
	ApplyMetadata(id string, update repository.MetadataUpdate) (*models.Manga, error)
}

// Extractor turns an arbitrary manga page into structured metadata by
// handing its visible text to an OpenAI-compatible chat completions API.
type Extractor struct {
	apiURL       string
	apiKey       string
	model        string
	maxTextChars int
	renderer     pageRenderer
	store        metadataStore
	client       *http.Client
	llm          *openai.Client
	userAgent    string
	logger       *slog.Logger
}

func NewExtractor(cfg Config, renderer pageRenderer, store metadataStore, client *http.Client, logger *slog.Logger) *Extractor {
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiURL := strings.TrimSpace(cfg.APIURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	llmConfig := openai.DefaultConfig(apiKey)
	if apiURL != "" {
		llmConfig.BaseURL = gatewayBaseURL(apiURL)
	}
	llmConfig.HTTPClient = client

	return &Extractor{
		apiURL:       apiURL,
		apiKey:       apiKey,
		model:        strings.TrimSpace(cfg.Model),
		maxTextChars: cfg.MaxTextChars,
		renderer:     renderer,
		store:        store,
		client:       client,
		llm:          openai.NewClientWithConfig(llmConfig),
		userAgent:    fetcher.UserAgents()[0],
		logger:       logger,
	}
}

// Extract scrapes req.URL, asks the model for metadata and, when req.MangaID
// is set, writes the non-empty fields onto that manga.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	targetURL := strings.TrimSpace(req.URL)
	if targetURL == "" {
		return nil, ErrURLRequired
	}
	if e.apiKey == "" || e.apiURL == "" {
		return nil, ErrNotConfigured
	}

	html, err := e.loadPage(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	text, err := PageText(html, e.maxTextChars)
	if err != nil {
		return nil, err
	}

	metadata, err := e.complete(ctx, targetURL, text)
	if err != nil {
		return nil, err
	}
	e.logger.Info("ai metadata extracted", "url", targetURL, "title", metadata.Title, "genres", len(metadata.Genres))

	result := &Result{Metadata: metadata}
	mangaID := strings.TrimSpace(req.MangaID)
	if mangaID == "" || e.store == nil {
		return result, nil
	}

	manga, err := e.store.ApplyMetadata(mangaID, repository.MetadataUpdate{
		Title:             metadata.Title,
		Description:       metadata.Description,
		Genres:            metadata.Genres,
		Author:            metadata.Author,
		Artist:            metadata.Artist,
		Status:            metadata.Status,
		Year:              metadata.Year,
		Country:           metadata.Country,
		AlternativeTitles: metadata.AlternativeTitles,
	})
	if err != nil {
		return nil, fmt.Errorf("save extracted metadata: %w", err)
	}
	if manga == nil {
		return nil, ErrMangaNotFound
	}
	result.Manga = manga
	return result, nil
}

func (e *Extractor) loadPage(ctx context.Context, targetURL string) (string, error) {
	if e.renderer != nil && e.renderer.Enabled() {
		html, _, err := e.renderer.Render(ctx, targetURL, bypass.RenderOptions{})
		if err == nil {
			return html, nil
		}
		e.logger.Warn("scraping api failed, falling back to direct fetch", "url", targetURL, "error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	fetcher.ApplyBrowserHeaders(req.Header, e.userAgent, "")

	res, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("fetch page: unexpected status %d", res.StatusCode)
	}
	body, err := fetcher.DecodeBody(raw, res.Header.Get("Content-Encoding"))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PageText strips scripts, styles and markup from html and returns at most
// limit runes of collapsed visible text.
func PageText(html string, limit int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, noscript, svg, iframe, template").Remove()

	parts := make([]string, 0, 2)
	if title := textutil.CollapseWhitespace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if body := textutil.CollapseWhitespace(doc.Find("body").Text()); body != "" {
		parts = append(parts, body)
	}

	text := strings.Join(parts, "\n")
	if text == "" {
		return "", ErrEmptyPageText
	}
	return textutil.Truncate(text, limit), nil
}

func sanitizeMetadata(metadata Metadata) Metadata {
	metadata.Title = textutil.CollapseWhitespace(metadata.Title)
	metadata.Description = strings.TrimSpace(metadata.Description)
	metadata.Author = textutil.CollapseWhitespace(metadata.Author)
	metadata.Artist = textutil.CollapseWhitespace(metadata.Artist)
	metadata.Country = textutil.CollapseWhitespace(metadata.Country)
	metadata.Genres = textutil.UniqueNonEmpty(metadata.Genres)
	metadata.AlternativeTitles = textutil.UniqueNonEmpty(metadata.AlternativeTitles)

	switch strings.ToLower(strings.TrimSpace(metadata.Status)) {
	case models.MangaStatusOngoing:
		metadata.Status = models.MangaStatusOngoing
	case models.MangaStatusCompleted:
		metadata.Status = models.MangaStatusCompleted
	default:
		metadata.Status = ""
	}

	if metadata.Year != nil && (*metadata.Year < 1900 || *metadata.Year > 2100) {
		metadata.Year = nil
	}
	return metadata
}

func (e *Extractor) complete(ctx context.Context, targetURL string, text string) (Metadata, error) {
	completion, err := e.llm.CreateChatCompletion(ctx, newCompletionRequest(e.model, targetURL, text))
	if err != nil {
		if rateLimited(err) {
			return Metadata{}, ErrRateLimited
		}
		return Metadata{}, fmt.Errorf("call llm gateway: %w", err)
	}

	for _, choice := range completion.Choices {
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name != toolName {
				continue
			}
			var metadata Metadata
			if err := json.Unmarshal([]byte(call.Function.Arguments), &metadata); err != nil {
				return Metadata{}, fmt.Errorf("decode tool arguments: %w", err)
			}
			return sanitizeMetadata(metadata), nil
		}
	}

	return Metadata{}, ErrNoMetadata
}

func rateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// gatewayBaseURL accepts either the full chat completions endpoint or the API root.
func gatewayBaseURL(apiURL string) string {
	return strings.TrimSuffix(strings.TrimRight(apiURL, "/"), "/chat/completions")
}
