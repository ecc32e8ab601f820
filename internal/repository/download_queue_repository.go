package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssanime/manga-nexus-hub/internal/models"
)

const queueColumns = `
	id, chapter_id, manga_id, source_url, source, priority, status, attempts,
	max_attempts, error_message, created_at, updated_at, completed_at
`

type DownloadQueueRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDownloadQueueRepository(db *sql.DB) *DownloadQueueRepository {
	return &DownloadQueueRepository{db: db, now: time.Now}
}

// ResetStale moves processing items not touched since cutoff back to pending.
func (r *DownloadQueueRepository) ResetStale(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE background_download_queue
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`, models.StatusPending, sqliteTime(r.now()), models.StatusProcessing, sqliteTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("reset stale queue items: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale queue items rows affected: %w", err)
	}
	return affected, nil
}

// ListPending returns the next pending items, highest priority first and
// oldest first within a priority.
func (r *DownloadQueueRepository) ListPending(mangaID string, limit int) ([]models.DownloadQueueItem, error) {
	if limit <= 0 {
		limit = 3
	}

	query := `SELECT ` + queueColumns + ` FROM background_download_queue WHERE status = ?`
	args := []any{models.StatusPending}
	if trimmed := strings.TrimSpace(mangaID); trimmed != "" {
		query += ` AND manga_id = ?`
		args = append(args, trimmed)
	}
	query += ` ORDER BY priority DESC, created_at ASC, rowid ASC LIMIT ?`
	args = append(args, limit)

	return r.list(query, args...)
}

// MarkProcessing claims a pending item and counts the attempt. It reports
// false when another run claimed the item first.
func (r *DownloadQueueRepository) MarkProcessing(id string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE background_download_queue
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.StatusProcessing, sqliteTime(r.now()), id, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark queue item processing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark queue item processing rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *DownloadQueueRepository) MarkCompleted(id string) error {
	now := sqliteTime(r.now())
	_, err := r.db.Exec(`
		UPDATE background_download_queue
		SET status = ?, error_message = NULL, updated_at = ?, completed_at = ?
		WHERE id = ?
	`, models.StatusCompleted, now, now, id)
	if err != nil {
		return fmt.Errorf("mark queue item completed: %w", err)
	}
	return nil
}

func (r *DownloadQueueRepository) MarkPending(id string, message string) error {
	return r.setStatus(id, models.StatusPending, message)
}

func (r *DownloadQueueRepository) MarkFailed(id string, message string) error {
	return r.setStatus(id, models.StatusFailed, message)
}

func (r *DownloadQueueRepository) setStatus(id string, status string, message string) error {
	_, err := r.db.Exec(`
		UPDATE background_download_queue
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, status, nullableString(message), sqliteTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark queue item %s: %w", status, err)
	}
	return nil
}

func (r *DownloadQueueRepository) CountPending(mangaID string) (int, error) {
	query := `SELECT COUNT(1) FROM background_download_queue WHERE status = ?`
	args := []any{models.StatusPending}
	if trimmed := strings.TrimSpace(mangaID); trimmed != "" {
		query += ` AND manga_id = ?`
		args = append(args, trimmed)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending queue items: %w", err)
	}
	return count, nil
}

func (r *DownloadQueueRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(1) FROM background_download_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queue items by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		models.StatusPending:    0,
		models.StatusProcessing: 0,
		models.StatusCompleted:  0,
		models.StatusFailed:     0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue status counts: %w", err)
	}

	return counts, nil
}

// EnqueueChapters queues the manga's chapters that have a source url, no
// pages yet and no pending or processing queue row. chapterIDs narrows the
// selection when non-empty.
func (r *DownloadQueueRepository) EnqueueChapters(mangaID string, chapterIDs []string, source string, priority int) (int, error) {
	query := `
		SELECT c.id, c.source_url
		FROM chapters c
		WHERE c.manga_id = ?
			AND c.source_url IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM chapter_pages p WHERE p.chapter_id = c.id)
			AND NOT EXISTS (
				SELECT 1 FROM background_download_queue q
				WHERE q.chapter_id = c.id AND q.status IN ('pending', 'processing')
			)
	`
	args := []any{mangaID}
	if len(chapterIDs) > 0 {
		query += ` AND c.id IN (` + sqlPlaceholders(len(chapterIDs)) + `)`
		args = append(args, stringArgs(chapterIDs)...)
	}
	query += ` ORDER BY c.chapter_number ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("select chapters to enqueue: %w", err)
	}

	type candidate struct {
		chapterID string
		sourceURL string
	}
	candidates := make([]candidate, 0)
	for rows.Next() {
		var item candidate
		if err := rows.Scan(&item.chapterID, &item.sourceURL); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan chapter to enqueue: %w", err)
		}
		candidates = append(candidates, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate chapters to enqueue: %w", err)
	}
	rows.Close()

	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin enqueue tx: %w", err)
	}

	// One timestamp per call; rowid keeps chapter order inside the batch.
	createdAt := sqliteTime(r.now())
	for _, item := range candidates {
		if _, err := tx.Exec(`
			INSERT INTO background_download_queue (id, chapter_id, manga_id, source_url, source, priority, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), item.chapterID, mangaID, item.sourceURL, nullableString(source), priority, createdAt, createdAt); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("enqueue chapter %s: %w", item.chapterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enqueue tx: %w", err)
	}

	return len(candidates), nil
}

func (r *DownloadQueueRepository) GetByID(id string) (*models.DownloadQueueItem, error) {
	row := r.db.QueryRow(`SELECT `+queueColumns+` FROM background_download_queue WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

func (r *DownloadQueueRepository) list(query string, args ...any) ([]models.DownloadQueueItem, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items := make([]models.DownloadQueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}

	return items, nil
}

func scanQueueItem(scanner rowScanner) (*models.DownloadQueueItem, error) {
	var item models.DownloadQueueItem
	var mangaID, source, errorMessage sql.NullString
	var completedAt sql.NullTime

	if err := scanner.Scan(
		&item.ID,
		&item.ChapterID,
		&mangaID,
		&item.SourceURL,
		&source,
		&item.Priority,
		&item.Status,
		&item.Attempts,
		&item.MaxAttempts,
		&errorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	item.MangaID = stringPtr(mangaID)
	item.Source = stringPtr(source)
	item.ErrorMessage = stringPtr(errorMessage)
	item.CompletedAt = timePtr(completedAt)
	return &item, nil
}
