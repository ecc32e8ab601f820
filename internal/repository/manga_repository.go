package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssanime/manga-nexus-hub/internal/models"
)

const mangaColumns = `
	id, slug, title, description, cover_url, banner_url, status, genres, author, artist,
	release_year, country, alternative_titles, source, source_url, views, favorites,
	chapter_count, last_scraped_at, created_at, updated_at
`

type MangaUpsert struct {
	Slug        string
	Title       string
	Description string
	CoverURL    string
	Status      string
	Genres      []string
	Author      string
	Artist      string
	Source      string
	SourceURL   string
	ScrapedAt   time.Time
}

// MetadataUpdate carries AI-extracted fields; empty values leave the stored
// value untouched.
type MetadataUpdate struct {
	Title             string
	Description       string
	Genres            []string
	Author            string
	Artist            string
	Status            string
	Year              *int
	Country           string
	AlternativeTitles []string
}

type MangaRepository struct {
	db *sql.DB
}

func NewMangaRepository(db *sql.DB) *MangaRepository {
	return &MangaRepository{db: db}
}

// UpsertScraped inserts or updates the manga identified by slug.
func (r *MangaRepository) UpsertScraped(input MangaUpsert) (*models.Manga, error) {
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		return nil, fmt.Errorf("manga slug is required")
	}
	status := input.Status
	if status != models.MangaStatusOngoing {
		status = models.MangaStatusCompleted
	}
	scrapedAt := input.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO manga (
			id, slug, title, description, cover_url, status, genres, author, artist,
			source, source_url, last_scraped_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug)
		DO UPDATE SET
			title = excluded.title,
			description = COALESCE(excluded.description, manga.description),
			cover_url = COALESCE(excluded.cover_url, manga.cover_url),
			status = excluded.status,
			genres = CASE WHEN excluded.genres = '[]' THEN manga.genres ELSE excluded.genres END,
			author = COALESCE(excluded.author, manga.author),
			artist = COALESCE(excluded.artist, manga.artist),
			source = COALESCE(excluded.source, manga.source),
			source_url = COALESCE(excluded.source_url, manga.source_url),
			last_scraped_at = excluded.last_scraped_at,
			updated_at = excluded.updated_at
	`,
		uuid.New().String(),
		slug,
		strings.TrimSpace(input.Title),
		nullableString(input.Description),
		nullableString(input.CoverURL),
		status,
		encodeStringList(input.Genres),
		nullableString(input.Author),
		nullableString(input.Artist),
		nullableString(input.Source),
		nullableString(input.SourceURL),
		sqliteTime(scrapedAt),
		sqliteTime(scrapedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert manga: %w", err)
	}

	manga, err := r.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if manga == nil {
		return nil, fmt.Errorf("upsert manga: row for slug %q not found", slug)
	}
	return manga, nil
}

func (r *MangaRepository) GetBySlug(slug string) (*models.Manga, error) {
	row := r.db.QueryRow(`SELECT `+mangaColumns+` FROM manga WHERE slug = ?`, strings.TrimSpace(slug))
	manga, err := scanManga(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get manga by slug: %w", err)
	}
	return manga, nil
}

func (r *MangaRepository) GetByID(id string) (*models.Manga, error) {
	row := r.db.QueryRow(`SELECT `+mangaColumns+` FROM manga WHERE id = ?`, strings.TrimSpace(id))
	manga, err := scanManga(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get manga by id: %w", err)
	}
	return manga, nil
}

func (r *MangaRepository) RefreshChapterCount(id string) error {
	_, err := r.db.Exec(`
		UPDATE manga
		SET chapter_count = (SELECT COUNT(1) FROM chapters WHERE manga_id = manga.id)
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("refresh chapter count: %w", err)
	}
	return nil
}

func (r *MangaRepository) ApplyMetadata(id string, update MetadataUpdate) (*models.Manga, error) {
	genres := update.Genres
	alternativeTitles := update.AlternativeTitles
	status := strings.ToLower(strings.TrimSpace(update.Status))
	if status != models.MangaStatusOngoing && status != models.MangaStatusCompleted {
		status = ""
	}

	result, err := r.db.Exec(`
		UPDATE manga
		SET
			title = COALESCE(?, title),
			description = COALESCE(?, description),
			genres = CASE WHEN ? = '[]' THEN genres ELSE ? END,
			author = COALESCE(?, author),
			artist = COALESCE(?, artist),
			status = COALESCE(?, status),
			release_year = COALESCE(?, release_year),
			country = COALESCE(?, country),
			alternative_titles = CASE WHEN ? = '[]' THEN alternative_titles ELSE ? END,
			updated_at = ?
		WHERE id = ?
	`,
		nullableString(update.Title),
		nullableString(update.Description),
		encodeStringList(genres), encodeStringList(genres),
		nullableString(update.Author),
		nullableString(update.Artist),
		nullableString(status),
		update.Year,
		nullableString(update.Country),
		encodeStringList(alternativeTitles), encodeStringList(alternativeTitles),
		sqliteTime(time.Now()),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("apply manga metadata: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("apply manga metadata rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetByID(id)
}

func scanManga(scanner rowScanner) (*models.Manga, error) {
	var manga models.Manga
	var description, coverURL, bannerURL, author, artist, country, source, sourceURL sql.NullString
	var genresRaw, alternativeTitlesRaw sql.NullString
	var releaseYear sql.NullInt64
	var lastScrapedAt sql.NullTime

	err := scanner.Scan(
		&manga.ID,
		&manga.Slug,
		&manga.Title,
		&description,
		&coverURL,
		&bannerURL,
		&manga.Status,
		&genresRaw,
		&author,
		&artist,
		&releaseYear,
		&country,
		&alternativeTitlesRaw,
		&source,
		&sourceURL,
		&manga.Views,
		&manga.Favorites,
		&manga.ChapterCount,
		&lastScrapedAt,
		&manga.CreatedAt,
		&manga.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	manga.Description = stringPtr(description)
	manga.CoverURL = stringPtr(coverURL)
	manga.BannerURL = stringPtr(bannerURL)
	manga.Author = stringPtr(author)
	manga.Artist = stringPtr(artist)
	manga.Country = stringPtr(country)
	manga.Source = stringPtr(source)
	manga.SourceURL = stringPtr(sourceURL)
	manga.Genres = decodeStringList(genresRaw)
	manga.AlternativeTitles = decodeStringList(alternativeTitlesRaw)
	manga.LastScrapedAt = timePtr(lastScrapedAt)
	if releaseYear.Valid {
		year := int(releaseYear.Int64)
		manga.ReleaseYear = &year
	}

	return &manga, nil
}
