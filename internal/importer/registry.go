package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/model"
)

// ErrNotFound is returned for unknown or expired imports.
var ErrNotFound = errors.New("import not found")

// Registry runs flows on behalf of the API and keeps them in a DraftStore.
// Each call loads, changes and saves one flow. Confirm holds a store claim
// for the whole commit; other concurrent calls on the same flow are
// last-write-wins.
type Registry struct {
	store     DraftStore
	extractor extract.Extractor
	creator   Creator
	now       func() time.Time
}

// NewRegistry creates a registry.
func NewRegistry(store DraftStore, ex extract.Extractor, c Creator) *Registry {
	return &Registry{store: store, extractor: ex, creator: c, now: time.Now}
}

// Start creates a flow and extracts drafts from src. The flow is saved even
// when extraction fails so the error can be shown; it is returned together
// with the extraction error.
func (r *Registry) Start(ctx context.Context, src Source, by string) (*Flow, error) {
	f := NewFlow(uuid.NewString(), by, r.now())
	extractErr := f.Extract(ctx, r.extractor, src)
	if err := r.store.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, extractErr
}

// Get returns a flow.
func (r *Registry) Get(ctx context.Context, id string) (*Flow, error) {
	f, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	return f, nil
}

// Retry extracts again into a flow that is back in input.
func (r *Registry) Retry(ctx context.Context, id string, src Source) (*Flow, error) {
	f, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	extractErr := f.Extract(ctx, r.extractor, src)
	if errors.Is(extractErr, ErrWrongState) {
		return nil, extractErr
	}
	if err := r.store.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, extractErr
}

// Revise replaces the drafts of a flow under review.
func (r *Registry) Revise(ctx context.Context, id string, drafts []model.Draft) (*Flow, error) {
	f, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.Revise(drafts); err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Confirm commits a flow's drafts. The committed flow is kept until it
// expires so its result can be read back. A confirm that runs while
// another is committing the same flow gets ErrWrongState.
func (r *Registry) Confirm(ctx context.Context, id, by string) (*Flow, error) {
	ok, err := r.store.Claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongState
	}
	defer func() {
		if err := r.store.Release(context.WithoutCancel(ctx), id); err != nil {
			slog.Warn("failed to release import claim", "id", id, "error", err)
		}
	}()

	f, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	_, confirmErr := f.Confirm(ctx, r.creator, by)
	if errors.Is(confirmErr, ErrWrongState) {
		return nil, confirmErr
	}
	if err := r.store.Save(ctx, f); err != nil {
		return f, fmt.Errorf("saving confirmed import: %w", err)
	}
	return f, confirmErr
}

// Cancel discards a flow.
func (r *Registry) Cancel(ctx context.Context, id string) error {
	f, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := f.Cancel(); err != nil {
		return err
	}
	return r.store.Delete(ctx, id)
}
