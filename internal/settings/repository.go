package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
)

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS plugin_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	server_url TEXT NOT NULL,
	intercept_enabled INTEGER NOT NULL,
	min_file_size_mb INTEGER NOT NULL,
	ignored_domains TEXT NOT NULL,
	modifier_key TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Open opens (or creates) the settings database and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// Repository persists the single PluginSettings row.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSettingsTable); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

// Load reads the stored settings. found is false when nothing has been saved
// yet, in which case the caller should fall back to defaults.
func (r *Repository) Load(ctx context.Context) (settings domain.PluginSettings, found bool, err error) {
	row := r.db.QueryRowContext(ctx, `
SELECT server_url, intercept_enabled, min_file_size_mb, ignored_domains, modifier_key
FROM plugin_settings
WHERE id = 1`)

	var interceptEnabled int
	var ignoredDomains string
	var modifierKey string
	if err := row.Scan(
		&settings.ServerURL,
		&interceptEnabled,
		&settings.MinFileSizeToIntercept,
		&ignoredDomains,
		&modifierKey,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PluginSettings{}, false, nil
		}
		return domain.PluginSettings{}, false, fmt.Errorf("scan settings: %w", err)
	}

	settings.IsInterceptEnabled = interceptEnabled != 0
	settings.ModifierKey = domain.ModifierKey(modifierKey)
	if err := json.Unmarshal([]byte(ignoredDomains), &settings.IgnoredDomains); err != nil {
		return domain.PluginSettings{}, false, fmt.Errorf("decode ignored domains: %w", err)
	}
	return settings, true, nil
}

// Save upserts the settings row.
func (r *Repository) Save(ctx context.Context, settings domain.PluginSettings) error {
	domains := settings.IgnoredDomains
	if domains == nil {
		domains = []string{}
	}
	encoded, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("encode ignored domains: %w", err)
	}

	interceptEnabled := 0
	if settings.IsInterceptEnabled {
		interceptEnabled = 1
	}

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO plugin_settings (id, server_url, intercept_enabled, min_file_size_mb, ignored_domains, modifier_key, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	server_url = excluded.server_url,
	intercept_enabled = excluded.intercept_enabled,
	min_file_size_mb = excluded.min_file_size_mb,
	ignored_domains = excluded.ignored_domains,
	modifier_key = excluded.modifier_key,
	updated_at = excluded.updated_at`,
		settings.ServerURL,
		interceptEnabled,
		settings.MinFileSizeToIntercept,
		string(encoded),
		string(settings.ModifierKey),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
