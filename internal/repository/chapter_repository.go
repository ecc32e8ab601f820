package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssanime/manga-nexus-hub/internal/models"
)

const chapterColumns = `id, manga_id, chapter_number, title, source_url, release_date, views, created_at, updated_at`

type ChapterUpsert struct {
	Number      float64
	Title       string
	SourceURL   string
	ReleaseDate *time.Time
}

type ChapterRepository struct {
	db *sql.DB
}

func NewChapterRepository(db *sql.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// UpsertMany writes chapters one by one keyed by (manga_id, chapter_number).
// On error the chapters saved so far are returned together with the error.
func (r *ChapterRepository) UpsertMany(mangaID string, chapters []ChapterUpsert) ([]models.Chapter, error) {
	ids := make([]string, 0, len(chapters))
	now := sqliteTime(time.Now())

	var upsertErr error
	for _, chapter := range chapters {
		var id string
		err := r.db.QueryRow(`
			INSERT INTO chapters (id, manga_id, chapter_number, title, source_url, release_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(manga_id, chapter_number)
			DO UPDATE SET
				title = COALESCE(excluded.title, chapters.title),
				source_url = COALESCE(excluded.source_url, chapters.source_url),
				release_date = COALESCE(excluded.release_date, chapters.release_date),
				updated_at = excluded.updated_at
			RETURNING id
		`,
			uuid.New().String(),
			mangaID,
			chapter.Number,
			nullableString(chapter.Title),
			nullableString(chapter.SourceURL),
			nullableTime(chapter.ReleaseDate),
			now,
		).Scan(&id)
		if err != nil {
			upsertErr = fmt.Errorf("upsert chapter %v: %w", chapter.Number, err)
			break
		}
		ids = append(ids, id)
	}

	saved, err := r.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	return saved, upsertErr
}

func (r *ChapterRepository) GetByID(id string) (*models.Chapter, error) {
	row := r.db.QueryRow(`SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, strings.TrimSpace(id))
	chapter, err := scanChapter(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get chapter by id: %w", err)
	}
	return chapter, nil
}

func (r *ChapterRepository) ListByManga(mangaID string) ([]models.Chapter, error) {
	return r.list(`SELECT `+chapterColumns+` FROM chapters WHERE manga_id = ? ORDER BY chapter_number ASC`, mangaID)
}

func (r *ChapterRepository) ListByIDs(ids []string) ([]models.Chapter, error) {
	if len(ids) == 0 {
		return []models.Chapter{}, nil
	}
	query := `SELECT ` + chapterColumns + ` FROM chapters WHERE id IN (` + sqlPlaceholders(len(ids)) + `) ORDER BY chapter_number ASC`
	return r.list(query, stringArgs(ids)...)
}

func (r *ChapterRepository) list(query string, args ...any) ([]models.Chapter, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := make([]models.Chapter, 0)
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, *chapter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}

	return items, nil
}

func scanChapter(scanner rowScanner) (*models.Chapter, error) {
	var chapter models.Chapter
	var title, sourceURL sql.NullString
	var releaseDate sql.NullTime

	if err := scanner.Scan(
		&chapter.ID,
		&chapter.MangaID,
		&chapter.ChapterNumber,
		&title,
		&sourceURL,
		&releaseDate,
		&chapter.Views,
		&chapter.CreatedAt,
		&chapter.UpdatedAt,
	); err != nil {
		return nil, err
	}

	chapter.Title = stringPtr(title)
	chapter.SourceURL = stringPtr(sourceURL)
	chapter.ReleaseDate = timePtr(releaseDate)
	return &chapter, nil
}
