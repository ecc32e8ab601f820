package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/sources"
)

type SourceProfileRepository struct {
	db *sql.DB
}

func NewSourceProfileRepository(db *sql.DB) *SourceProfileRepository {
	return &SourceProfileRepository{db: db}
}

// List returns the stored profiles ordered by name. Disabled rows are
// included only when includeDisabled is set.
func (r *SourceProfileRepository) List(includeDisabled bool) ([]sources.Profile, error) {
	query := `
		SELECT name, base_url, selectors, enabled
		FROM source_profiles
		WHERE enabled = 1 OR ?
		ORDER BY name ASC
	`
	rows, err := r.db.Query(query, includeDisabled)
	if err != nil {
		return nil, fmt.Errorf("list source profiles: %w", err)
	}
	defer rows.Close()

	items := make([]sources.Profile, 0)
	for rows.Next() {
		profile, err := scanSourceProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source profile: %w", err)
		}
		items = append(items, *profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source profiles: %w", err)
	}

	return items, nil
}

func (r *SourceProfileRepository) GetByName(name string) (*sources.Profile, error) {
	row := r.db.QueryRow(`
		SELECT name, base_url, selectors, enabled
		FROM source_profiles
		WHERE name = ?
	`, name)

	profile, err := scanSourceProfile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get source profile: %w", err)
	}
	return profile, nil
}

// Upsert validates and stores profile, replacing any row with the same name.
func (r *SourceProfileRepository) Upsert(profile sources.Profile) (*sources.Profile, error) {
	if err := profile.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid source profile: %w", err)
	}
	selectors, err := json.Marshal(profile.Selectors)
	if err != nil {
		return nil, fmt.Errorf("marshal selectors: %w", err)
	}

	if _, err := r.db.Exec(`
		INSERT INTO source_profiles (name, base_url, selectors, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name)
		DO UPDATE SET
			base_url = excluded.base_url,
			selectors = excluded.selectors,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, profile.Name, profile.BaseURL, string(selectors), profile.IsEnabled(), sqliteTime(time.Now())); err != nil {
		return nil, fmt.Errorf("upsert source profile: %w", err)
	}

	return &profile, nil
}

func scanSourceProfile(scanner rowScanner) (*sources.Profile, error) {
	var profile sources.Profile
	var selectorsRaw string
	var enabled bool
	if err := scanner.Scan(&profile.Name, &profile.BaseURL, &selectorsRaw, &enabled); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(selectorsRaw), &profile.Selectors); err != nil {
		return nil, fmt.Errorf("decode selectors for %s: %w", profile.Name, err)
	}
	profile.Enabled = &enabled
	return &profile, nil
}
