package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sitecloner/api/internal/model"
	"github.com/sitecloner/api/internal/pipeline"
	"github.com/sitecloner/api/internal/session"
	"github.com/sitecloner/api/internal/urlcheck"
)

// ErrInvalidPagination marks bad page/page_size parameters.
var ErrInvalidPagination = errors.New("invalid pagination parameters")

const (
	minPageSize = 1
	maxPageSize = 100
)

// CloneService is the entry point for the session API: it validates
// submissions, owns session creation and deletion, and reads status. It
// never mutates stage state — that is the pipeline runner's job.
type CloneService struct {
	store      session.Store
	validator  urlcheck.Validator
	dispatcher pipeline.Dispatcher
}

func NewCloneService(store session.Store, validator urlcheck.Validator, dispatcher pipeline.Dispatcher) *CloneService {
	return &CloneService{
		store:      store,
		validator:  validator,
		dispatcher: dispatcher,
	}
}

// SubmitClone validates the request, creates a pending session and
// dispatches the pipeline without waiting for it. Validation failures never
// allocate a session ID.
func (s *CloneService) SubmitClone(ctx context.Context, req *model.CloneRequest) (*model.Session, error) {
	req.ApplyDefaults()
	if err := s.validator.Validate(req.URL); err != nil {
		return nil, err
	}

	sess := model.NewSession(req)
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, sess.SessionID); err != nil {
		// The caller already holds a session ID at this point, so the
		// failure is recorded inside the session like any post-submission
		// error.
		log.Printf("session %s: dispatch failed: %v", sess.SessionID, err)
		failed, uerr := s.store.Update(ctx, sess.SessionID, func(m *model.Session) {
			m.FailStage(model.StatusPending, "failed to queue clone job: "+err.Error(), time.Now())
		})
		if uerr != nil {
			return nil, fmt.Errorf("failed to record dispatch failure: %w", uerr)
		}
		return failed, nil
	}

	return sess, nil
}

// GetStatus returns the latest committed snapshot of a session.
func (s *CloneService) GetStatus(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// ListSessions returns one page of sessions, newest first, optionally
// filtered by status. Page numbering is 1-based.
func (s *CloneService) ListSessions(ctx context.Context, page, pageSize int, status string) (*model.SessionListResponse, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrInvalidPagination)
	}
	if pageSize < minPageSize || pageSize > maxPageSize {
		return nil, fmt.Errorf("%w: page_size must be between %d and %d", ErrInvalidPagination, minPageSize, maxPageSize)
	}
	filter := model.CloneStatus(status)
	if status != "" && !filter.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPagination, status)
	}

	sessions, total, err := s.store.List(ctx, session.ListQuery{
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
		Status: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return &model.SessionListResponse{
		Sessions:   sessions,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// DeleteSession removes a session. Unknown IDs are NotFound, consistent
// with read semantics.
func (s *CloneService) DeleteSession(ctx context.Context, sessionID string) (*model.DeleteResponse, error) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return nil, err
	}
	log.Printf("Deleted session %s", sessionID)
	return &model.DeleteResponse{
		Message:   fmt.Sprintf("Session %s deleted successfully", sessionID),
		DeletedAt: time.Now().UTC(),
	}, nil
}
