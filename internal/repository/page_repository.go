package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ssanime/manga-nexus-hub/internal/models"
)

type PageUpsert struct {
	PageNumber int
	ImageURL   string
}

type PageRepository struct {
	db *sql.DB
}

func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{db: db}
}

// ReplaceForChapter upserts pages keyed by (chapter_id, page_number) and
// drops numbers beyond the new last page so the set stays 1..N.
func (r *PageRepository) ReplaceForChapter(chapterID string, pages []PageUpsert) ([]models.ChapterPage, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin pages tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chapter_pages (id, chapter_id, page_number, image_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chapter_id, page_number)
		DO UPDATE SET image_url = excluded.image_url
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("prepare page upsert: %w", err)
	}
	defer stmt.Close()

	for _, page := range pages {
		if _, err := stmt.Exec(uuid.New().String(), chapterID, page.PageNumber, strings.TrimSpace(page.ImageURL)); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("upsert page %d: %w", page.PageNumber, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM chapter_pages WHERE chapter_id = ? AND page_number > ?`, chapterID, len(pages)); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("trim stale pages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pages tx: %w", err)
	}

	return r.ListByChapter(chapterID)
}

func (r *PageRepository) CountByChapter(chapterID string) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(1) FROM chapter_pages WHERE chapter_id = ?`, chapterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chapter pages: %w", err)
	}
	return count, nil
}

func (r *PageRepository) ListByChapter(chapterID string) ([]models.ChapterPage, error) {
	rows, err := r.db.Query(`
		SELECT id, chapter_id, page_number, image_url, created_at
		FROM chapter_pages
		WHERE chapter_id = ?
		ORDER BY page_number ASC
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter pages: %w", err)
	}
	defer rows.Close()

	items := make([]models.ChapterPage, 0)
	for rows.Next() {
		var page models.ChapterPage
		if err := rows.Scan(&page.ID, &page.ChapterID, &page.PageNumber, &page.ImageURL, &page.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter page: %w", err)
		}
		items = append(items, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter pages: %w", err)
	}

	return items, nil
}
