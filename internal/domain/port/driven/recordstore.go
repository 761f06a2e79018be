package driven

import (
	"context"

	"github.com/tmorling/credvault/internal/domain/model"
)

// RecordStore defines the driven port for durable persistence of the full
// credential collection. The collection is always written and read as a
// whole; there is no partial or delta persistence.
type RecordStore interface {
	// Load reads the persisted collection. An absent, unparsable, or
	// non-array slot yields an empty collection and a nil error; entries
	// that fail the shape check (object with string-typed id and loginId)
	// are silently dropped. The returned slice preserves stored order.
	Load(ctx context.Context) ([]model.Credential, error)

	// Save serializes the full collection and overwrites the slot. Callers
	// treat a failure as non-fatal: the in-memory collection remains
	// authoritative for the session and the error is only logged.
	Save(ctx context.Context, creds []model.Credential) error
}
