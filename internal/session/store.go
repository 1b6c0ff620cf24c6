// Package session provides the store for clone sessions. The store is the
// only shared mutable state in the service; the pipeline runner and the
// HTTP handlers both go through it.
package session

import (
	"context"
	"errors"

	"github.com/sitecloner/api/internal/model"
)

// ErrNotFound is returned for lookups, updates and deletes on an unknown
// session ID. Deleting an unknown session is NotFound rather than a no-op,
// matching the read semantics.
var ErrNotFound = errors.New("session not found")

// ListQuery selects a page of sessions ordered by created_at descending.
// Ordering is stable for a fixed store snapshot: ties on created_at are
// broken by session ID.
type ListQuery struct {
	Offset int
	Limit  int
	// Status filters to sessions currently in the given status. Empty
	// means no filter. TotalCount reflects the filtered set.
	Status model.CloneStatus
}

// Store maps session IDs to sessions.
//
// Update applies an atomic read-modify-write: concurrent mutations of the
// same session are serialized, so a stage-completion write can never
// interleave with another writer into an inconsistent record. Reads may
// observe a stale-but-monotonically-advancing snapshot, never a regression.
type Store interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, id string, mutate func(*model.Session)) (*model.Session, error)
	List(ctx context.Context, q ListQuery) ([]*model.Session, int, error)
	Delete(ctx context.Context, id string) error
}
