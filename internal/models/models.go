package models

import "time"

const (
	MangaStatusOngoing   = "ongoing"
	MangaStatusCompleted = "completed"
)

const (
	JobTypeMangaInfo = "manga_info"
	JobTypeChapters  = "chapters"
	JobTypePages     = "pages"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const DefaultMaxRetries = 3

type Manga struct {
	ID                string     `json:"id"`
	Slug              string     `json:"slug"`
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	CoverURL          *string    `json:"coverUrl,omitempty"`
	BannerURL         *string    `json:"bannerUrl,omitempty"`
	Status            string     `json:"status"`
	Genres            []string   `json:"genres"`
	Author            *string    `json:"author,omitempty"`
	Artist            *string    `json:"artist,omitempty"`
	ReleaseYear       *int       `json:"releaseYear,omitempty"`
	Country           *string    `json:"country,omitempty"`
	AlternativeTitles []string   `json:"alternativeTitles,omitempty"`
	Source            *string    `json:"source,omitempty"`
	SourceURL         *string    `json:"sourceUrl,omitempty"`
	Views             int64      `json:"views"`
	Favorites         int64      `json:"favorites"`
	ChapterCount      int64      `json:"chapterCount"`
	LastScrapedAt     *time.Time `json:"lastScrapedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type Chapter struct {
	ID            string     `json:"id"`
	MangaID       string     `json:"mangaId"`
	ChapterNumber float64    `json:"chapterNumber"`
	Title         *string    `json:"title,omitempty"`
	SourceURL     *string    `json:"sourceUrl,omitempty"`
	ReleaseDate   *time.Time `json:"releaseDate,omitempty"`
	Views         int64      `json:"views"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ChapterPage struct {
	ID         string    `json:"id"`
	ChapterID  string    `json:"chapterId"`
	PageNumber int       `json:"pageNumber"`
	ImageURL   string    `json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ScrapeJob struct {
	ID           string     `json:"id"`
	JobType      string     `json:"jobType"`
	Status       string     `json:"status"`
	SourceURL    string     `json:"sourceUrl"`
	Source       *string    `json:"source,omitempty"`
	MangaID      *string    `json:"mangaId,omitempty"`
	ChapterID    *string    `json:"chapterId,omitempty"`
	RetryCount   int        `json:"retryCount"`
	MaxRetries   int        `json:"maxRetries"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type DownloadQueueItem struct {
	ID           string     `json:"id"`
	ChapterID    string     `json:"chapterId"`
	MangaID      *string    `json:"mangaId,omitempty"`
	SourceURL    string     `json:"sourceUrl"`
	Source       *string    `json:"source,omitempty"`
	Priority     int        `json:"priority"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"maxAttempts"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}
