package scrape

import "errors"

var (
	ErrInvalidJobType   = errors.New("invalid job type")
	ErrUnknownSource    = errors.New("unknown source")
	ErrMangaNotFound    = errors.New("manga not found, scrape manga info first")
	ErrChapterNotFound  = errors.New("chapter not found")
	ErrChapterIDMissing = errors.New("chapterId is required for pages jobs")
	ErrURLMissing       = errors.New("url is required")
	ErrNoTitle          = errors.New("no title found on page")
	ErrNoSlug           = errors.New("could not derive manga slug from url")
)
