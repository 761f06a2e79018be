package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tmorling/credvault/internal/domain/model"
	"github.com/tmorling/credvault/internal/domain/port/driven"
)

const themeSlotKey = "theme"

// Compile-time interface satisfaction check.
var _ driven.SettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the SettingsStore port,
// sharing the slots table with the credential collection.
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo creates a new SettingsRepo backed by the given DB.
func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Theme returns the persisted theme flag. An absent or unrecognized value
// yields the light theme.
func (r *SettingsRepo) Theme(ctx context.Context) (model.Theme, error) {
	const query = `SELECT value FROM slots WHERE key = ?`

	var raw []byte
	err := r.db.Reader.QueryRowContext(ctx, query, themeSlotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ThemeLight, nil
	}
	if err != nil {
		return model.ThemeLight, fmt.Errorf("read theme slot: %w", err)
	}

	return model.ParseTheme(string(raw)), nil
}

// SetTheme overwrites the theme slot with the literal flag value.
func (r *SettingsRepo) SetTheme(ctx context.Context, theme model.Theme) error {
	const query = `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query, themeSlotKey, []byte(theme), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write theme slot: %w", err)
	}

	return nil
}
