package driven

import (
	"context"

	"github.com/tmorling/credvault/internal/domain/model"
)

// SettingsStore defines the driven port for small single-value UI settings.
type SettingsStore interface {
	// Theme returns the persisted theme flag, defaulting to light when the
	// flag is absent or unrecognized.
	Theme(ctx context.Context) (model.Theme, error)

	// SetTheme overwrites the persisted theme flag.
	SetTheme(ctx context.Context, theme model.Theme) error
}
