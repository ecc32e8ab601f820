package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

// SeedDefaults stores the built-in source profiles without touching rows an
// administrator already edited.
func SeedDefaults(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}

	for _, profile := range sources.DefaultProfiles() {
		if err := profile.Normalize(); err != nil {
			tx.Rollback()
			return fmt.Errorf("normalize default profile %s: %w", profile.Name, err)
		}
		selectors, err := json.Marshal(profile.Selectors)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal selectors %s: %w", profile.Name, err)
		}

		_, err = tx.Exec(`
			INSERT OR IGNORE INTO source_profiles (name, base_url, selectors, enabled)
			VALUES (?, ?, ?, 1)
		`, profile.Name, profile.BaseURL, string(selectors))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("seed source profile %s: %w", profile.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}

	return nil
}
