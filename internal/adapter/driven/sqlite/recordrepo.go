package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tmorling/credvault/internal/domain/model"
	"github.com/tmorling/credvault/internal/domain/port/driven"
)

// CredentialSlotKey is the slot under which the serialized credential
// collection lives. Changing the payload format requires a new key; the
// payload itself carries no version tag.
const CredentialSlotKey = "credential_management_data"

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the RecordStore port. The whole
// collection is kept as one JSON array in a single slot row, mirroring the
// single-key storage contract of the original local store.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new RecordRepo backed by the given DB.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Load reads the credential slot. An absent slot, an unparsable payload, or
// a payload that is not a JSON array all yield an empty collection with no
// error. Individual entries are shape-checked and malformed ones are
// silently dropped; there is no partial-entry repair.
func (r *RecordRepo) Load(ctx context.Context) ([]model.Credential, error) {
	const query = `SELECT value FROM slots WHERE key = ?`

	var raw []byte
	err := r.db.Reader.QueryRowContext(ctx, query, CredentialSlotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential slot: %w", err)
	}

	if !gjson.ValidBytes(raw) {
		return []model.Credential{}, nil
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return []model.Credential{}, nil
	}

	creds := []model.Credential{}
	for _, entry := range parsed.Array() {
		if !validShape(entry) {
			continue
		}
		var c model.Credential
		if err := json.Unmarshal([]byte(entry.Raw), &c); err != nil {
			continue
		}
		creds = append(creds, c)
	}

	return creds, nil
}

// Save serializes the full collection and overwrites the slot.
func (r *RecordRepo) Save(ctx context.Context, creds []model.Credential) error {
	const query = `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if creds == nil {
		creds = []model.Credential{}
	}

	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("serialize credential collection: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query, CredentialSlotKey, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write credential slot: %w", err)
	}

	return nil
}

// validShape keeps only entries that are objects with string-typed id and
// loginId fields.
func validShape(entry gjson.Result) bool {
	if !entry.IsObject() {
		return false
	}
	return entry.Get("id").Type == gjson.String && entry.Get("loginId").Type == gjson.String
}
