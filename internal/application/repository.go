// Package application holds the credential repository and the query pipeline
// that sit between the driving HTTP adapter and the persistence ports.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/tmorling/credvault/internal/domain/model"
	"github.com/tmorling/credvault/internal/domain/port/driven"
)

// idAlphabet is the character set for the random id suffix.
const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Repository owns the authoritative in-memory credential collection for the
// session. Every mutation re-persists the full collection through the
// injected RecordStore; persistence failures are logged and never surfaced,
// so the in-memory state keeps working for the rest of the session.
//
// The mutex stands in for the original single UI turn: mutations never
// interleave mid-update.
type Repository struct {
	mu     sync.RWMutex
	store  driven.RecordStore
	logger *slog.Logger
	creds  []model.Credential

	now   func() time.Time
	newID func(now time.Time) string
}

// NewRepository creates a Repository and loads its initial state, exactly
// once, from the record store. A load failure is recovered locally: the
// repository starts with an empty collection and the error is only logged.
func NewRepository(ctx context.Context, store driven.RecordStore, logger *slog.Logger) *Repository {
	creds, err := store.Load(ctx)
	if err != nil {
		logger.Error("failed to load credential collection, starting empty", "error", err)
		creds = []model.Credential{}
	}

	return &Repository{
		store:  store,
		logger: logger,
		creds:  creds,
		now:    time.Now,
		newID:  generateID,
	}
}

// generateID builds an id from the creation timestamp and a random suffix,
// unique with overwhelming probability within a collection.
func generateID(now time.Time) string {
	suffix := gonanoid.MustGenerate(idAlphabet, 9)
	return fmt.Sprintf("cred_%d_%s", now.UnixMilli(), suffix)
}

// List returns the collection in insertion order. The returned slice is a
// copy; callers may not mutate repository state through it.
func (r *Repository) List() []model.Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Credential, len(r.creds))
	copy(out, r.creds)
	return out
}

// Get returns the credential with the given id, if present.
func (r *Repository) Get(id string) (model.Credential, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.creds {
		if c.ID == id {
			return c, true
		}
	}
	return model.Credential{}, false
}

// Create appends a new credential built from the form, stamping a fresh id
// and CreatedAt == UpdatedAt, then persists the collection.
func (r *Repository) Create(ctx context.Context, form model.CredentialForm) model.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cred := applyForm(model.Credential{
		ID:        r.newID(now),
		CreatedAt: now.UnixMilli(),
		UpdatedAt: now.UnixMilli(),
	}, form)

	r.creds = append(r.creds, cred)
	r.persist(ctx)

	return cred
}

// Update replaces every editable field of the matching record and refreshes
// UpdatedAt. Id and CreatedAt never change. An unknown id is a no-op; the
// boolean reports whether a record was found.
func (r *Repository) Update(ctx context.Context, id string, form model.CredentialForm) (model.Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.creds {
		if c.ID != id {
			continue
		}

		updated := applyForm(c, form)
		updated.UpdatedAt = r.now().UnixMilli()
		r.creds[i] = updated
		r.persist(ctx)

		return updated, true
	}

	return model.Credential{}, false
}

// Delete removes the matching record if present. An unknown id is a no-op;
// the boolean reports whether a record was removed.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.creds {
		if c.ID != id {
			continue
		}

		r.creds = append(r.creds[:i], r.creds[i+1:]...)
		r.persist(ctx)

		return true
	}

	return false
}

// persist rewrites the full collection through the record store. Must be
// called with the write lock held. Failures are logged, never propagated:
// an unsaved session keeps running on its in-memory state.
//
// The write-through runs on a detached context: the mutation has already
// been applied in memory, so a caller disconnecting mid-request must not
// abort the save.
func (r *Repository) persist(ctx context.Context) {
	if err := r.store.Save(context.WithoutCancel(ctx), r.creds); err != nil {
		r.logger.Error("failed to persist credential collection", "error", err)
	}
}

// applyForm copies the editable fields from form onto cred, leaving id and
// timestamps untouched. Multi-value fields are copied so later form reuse
// cannot alias repository state.
func applyForm(cred model.Credential, form model.CredentialForm) model.Credential {
	cred.Category = form.Category
	cred.Name = form.Name
	cred.Designation = form.Designation
	cred.Ranges = append([]string(nil), form.Ranges...)
	cred.Branch = append([]string(nil), form.Branch...)
	cred.LoginID = form.LoginID
	cred.Password = form.Password
	cred.Mobile = form.Mobile
	cred.EmailURL = form.EmailURL
	cred.Remarks = form.Remarks
	return cred
}
