package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssanime/manga-nexus-hub/internal/models"
)

const scrapeJobColumns = `
	id, job_type, status, source_url, source, manga_id, chapter_id, retry_count,
	max_retries, error_message, created_at, updated_at, completed_at
`

type ScrapeJobCreate struct {
	JobType    string
	SourceURL  string
	Source     string
	MangaID    string
	ChapterID  string
	MaxRetries int
}

type ScrapeJobRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewScrapeJobRepository(db *sql.DB) *ScrapeJobRepository {
	return &ScrapeJobRepository{db: db, now: time.Now}
}

// Create records a job that is already being processed.
func (r *ScrapeJobRepository) Create(input ScrapeJobCreate) (*models.ScrapeJob, error) {
	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	id := uuid.New().String()
	now := sqliteTime(r.now())

	_, err := r.db.Exec(`
		INSERT INTO scrape_jobs (id, job_type, status, source_url, source, manga_id, chapter_id, max_retries, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		input.JobType,
		models.StatusProcessing,
		strings.TrimSpace(input.SourceURL),
		nullableString(input.Source),
		nullableString(input.MangaID),
		nullableString(input.ChapterID),
		maxRetries,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("create scrape job: %w", err)
	}

	return r.GetByID(id)
}

func (r *ScrapeJobRepository) MarkCompleted(id string, mangaID string, chapterID string) error {
	now := sqliteTime(r.now())
	_, err := r.db.Exec(`
		UPDATE scrape_jobs
		SET
			status = ?,
			manga_id = COALESCE(?, manga_id),
			chapter_id = COALESCE(?, chapter_id),
			error_message = NULL,
			updated_at = ?,
			completed_at = ?
		WHERE id = ?
	`, models.StatusCompleted, nullableString(mangaID), nullableString(chapterID), now, now, id)
	if err != nil {
		return fmt.Errorf("mark scrape job completed: %w", err)
	}
	return nil
}

// MarkFailure counts one more failed try and returns the resulting status:
// failed once retry_count reaches max_retries, pending otherwise.
func (r *ScrapeJobRepository) MarkFailure(id string, message string) (string, error) {
	var status string
	err := r.db.QueryRow(`
		UPDATE scrape_jobs
		SET
			retry_count = retry_count + 1,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
			error_message = ?,
			updated_at = ?
		WHERE id = ?
		RETURNING status
	`, message, sqliteTime(r.now()), id).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("mark scrape job failure: %w", err)
	}
	return status, nil
}

// MarkFailed ends the job without spending a retry; used for failures a
// rerun cannot fix.
func (r *ScrapeJobRepository) MarkFailed(id string, message string) error {
	now := sqliteTime(r.now())
	_, err := r.db.Exec(`
		UPDATE scrape_jobs
		SET
			status = ?,
			error_message = ?,
			updated_at = ?,
			completed_at = ?
		WHERE id = ?
	`, models.StatusFailed, message, now, now, id)
	if err != nil {
		return fmt.Errorf("mark scrape job failed: %w", err)
	}
	return nil
}

// LinkChapter records the chapter a pages job resolved to.
func (r *ScrapeJobRepository) LinkChapter(id string, chapter models.Chapter) error {
	sourceURL := ""
	if chapter.SourceURL != nil {
		sourceURL = strings.TrimSpace(*chapter.SourceURL)
	}
	_, err := r.db.Exec(`
		UPDATE scrape_jobs
		SET
			chapter_id = ?,
			manga_id = ?,
			source_url = CASE WHEN ? = '' THEN source_url ELSE ? END,
			updated_at = ?
		WHERE id = ?
	`, chapter.ID, chapter.MangaID, sourceURL, sourceURL, sqliteTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("link scrape job chapter: %w", err)
	}
	return nil
}

func (r *ScrapeJobRepository) GetByID(id string) (*models.ScrapeJob, error) {
	row := r.db.QueryRow(`SELECT `+scrapeJobColumns+` FROM scrape_jobs WHERE id = ?`, id)
	job, err := scanScrapeJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get scrape job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs first, optionally filtered by status.
func (r *ScrapeJobRepository) List(status string, limit int) ([]models.ScrapeJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + scrapeJobColumns + ` FROM scrape_jobs`
	args := make([]any, 0, 2)
	if trimmed := strings.TrimSpace(status); trimmed != "" {
		query += ` WHERE status = ?`
		args = append(args, trimmed)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scrape jobs: %w", err)
	}
	defer rows.Close()

	items := make([]models.ScrapeJob, 0)
	for rows.Next() {
		job, err := scanScrapeJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scrape job: %w", err)
		}
		items = append(items, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape jobs: %w", err)
	}

	return items, nil
}

func scanScrapeJob(scanner rowScanner) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	var source, mangaID, chapterID, errorMessage sql.NullString
	var completedAt sql.NullTime

	if err := scanner.Scan(
		&job.ID,
		&job.JobType,
		&job.Status,
		&job.SourceURL,
		&source,
		&mangaID,
		&chapterID,
		&job.RetryCount,
		&job.MaxRetries,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	job.Source = stringPtr(source)
	job.MangaID = stringPtr(mangaID)
	job.ChapterID = stringPtr(chapterID)
	job.ErrorMessage = stringPtr(errorMessage)
	job.CompletedAt = timePtr(completedAt)
	return &job, nil
}
