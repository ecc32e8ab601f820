package sources

import "fmt"

var madaraSelectors = Selectors{
	Title:        ".post-title h1, h1.entry-title, .post-title h3",
	Cover:        ".summary_image img, .tab-summary img",
	Description:  ".description-summary .summary__content, .summary__content, .manga-excerpt",
	Status:       ".post-status .summary-content, .post-content_item .summary-content",
	Genres:       ".genres-content a",
	Author:       ".author-content a, .author-content",
	Artist:       ".artist-content a, .artist-content",
	ChapterList:  "li.wp-manga-chapter",
	ChapterTitle: "a",
	ChapterURL:   "a",
	ChapterDate:  ".chapter-release-date i, .chapter-release-date",
	PageImages:   ".reading-content img, .page-break img, img.wp-manga-chapter-img",
}

func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "lekmanga", BaseURL: "https://lekmanga.net", Selectors: madaraSelectors},
		{Name: "azoramoon", BaseURL: "https://azoramoon.com", Selectors: madaraSelectors},
	}
}

// LoadRegistry builds a registry from the built-in profiles with the YAML
// profiles in yamlPath layered on top.
func LoadRegistry(yamlPath string) (*Registry, error) {
	registry := NewRegistry()
	for _, profile := range DefaultProfiles() {
		_ = registry.Register(profile)
	}

	loaded, loadErr := LoadFromDir(yamlPath)
	for _, profile := range loaded {
		if err := registry.Put(profile); err != nil && loadErr == nil {
			loadErr = fmt.Errorf("register yaml profile %q: %w", profile.Name, err)
		}
	}

	return registry, loadErr
}
