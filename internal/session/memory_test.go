package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sitecloner/api/internal/model"
)

func newStoredSession(t *testing.T, store *MemoryStore, createdAt time.Time) *model.Session {
	t.Helper()
	req := &model.CloneRequest{URL: "https://example.com"}
	req.ApplyDefaults()
	s := model.NewSession(req)
	s.CreatedAt = createdAt
	if err := store.Create(context.Background(), s); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return s
}

func TestMemoryStore_CreateGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := newStoredSession(t, store, time.Now())

	got, err := store.Get(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SessionID != s.SessionID {
		t.Errorf("expected %s, got %s", s.SessionID, got.SessionID)
	}
	if got.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}

	if err := store.Create(ctx, s); err == nil {
		t.Error("expected error on duplicate create")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_GetReturnsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s := newStoredSession(t, store, time.Now())

	got, _ := store.Get(ctx, s.SessionID)
	got.Status = model.StatusFailed
	got.ErrorMessage = "tampered"

	fresh, _ := store.Get(ctx, s.SessionID)
	if fresh.Status != model.StatusPending {
		t.Error("caller mutation leaked into the store")
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s := newStoredSession(t, store, time.Now())

	updated, err := store.Update(ctx, s.SessionID, func(m *model.Session) {
		m.BeginStage(model.StatusAnalyzing, time.Now())
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != model.StatusAnalyzing {
		t.Errorf("expected analyzing, got %s", updated.Status)
	}

	_, err = store.Update(ctx, "no-such-id", func(m *model.Session) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s := newStoredSession(t, store, time.Now())

	if _, err := store.Update(ctx, s.SessionID, func(m *model.Session) {
		m.BeginStage(model.StatusAnalyzing, time.Now())
	}); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(pct float64) {
			defer wg.Done()
			_, _ = store.Update(ctx, s.SessionID, func(m *model.Session) {
				m.SetStageProgress(model.StatusAnalyzing, pct, "", time.Now())
			})
		}(float64(i * 2))
	}
	wg.Wait()

	got, _ := store.Get(ctx, s.SessionID)
	rec := got.Stage(model.StatusAnalyzing)
	if rec == nil || rec.ProgressPercentage != 100 {
		t.Errorf("expected 100%% after all updates, got %+v", rec)
	}
	if len(got.Progress) != 1 {
		t.Errorf("expected a single stage record, got %d", len(got.Progress))
	}
}

func TestMemoryStore_ListOrderAndPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		s := newStoredSession(t, store, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, s.SessionID)
	}

	page1, total, err := store.List(ctx, ListQuery{Offset: 0, Limit: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(page1))
	}
	// Newest first
	if page1[0].SessionID != ids[4] || page1[1].SessionID != ids[3] {
		t.Error("expected newest-first ordering")
	}

	page2, _, _ := store.List(ctx, ListQuery{Offset: 2, Limit: 2})
	page3, _, _ := store.List(ctx, ListQuery{Offset: 4, Limit: 2})
	if len(page2) != 2 || len(page3) != 1 {
		t.Fatalf("unexpected page sizes: %d, %d", len(page2), len(page3))
	}

	seen := map[string]bool{}
	for _, s := range append(append(page1, page2...), page3...) {
		if seen[s.SessionID] {
			t.Errorf("session %s appeared twice across pages", s.SessionID)
		}
		seen[s.SessionID] = true
	}

	empty, total, _ := store.List(ctx, ListQuery{Offset: 10, Limit: 2})
	if len(empty) != 0 || total != 5 {
		t.Errorf("expected empty page with total 5, got %d items, total %d", len(empty), total)
	}
}

func TestMemoryStore_ListStatusFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := newStoredSession(t, store, time.Now())
	newStoredSession(t, store, time.Now())

	_, _ = store.Update(ctx, a.SessionID, func(m *model.Session) {
		m.BeginStage(model.StatusAnalyzing, time.Now())
		m.FailStage(model.StatusAnalyzing, "boom", time.Now())
	})

	failed, total, err := store.List(ctx, ListQuery{Offset: 0, Limit: 10, Status: model.StatusFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(failed) != 1 {
		t.Fatalf("expected exactly one failed session, got %d (total %d)", len(failed), total)
	}
	if failed[0].SessionID != a.SessionID {
		t.Errorf("expected %s, got %s", a.SessionID, failed[0].SessionID)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s := newStoredSession(t, store, time.Now())

	if err := store.Delete(ctx, s.SessionID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, s.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, s.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
