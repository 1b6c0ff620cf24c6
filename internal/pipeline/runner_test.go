package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sitecloner/api/internal/model"
	"github.com/sitecloner/api/internal/session"
)

// fakeCollaborators succeed by default; individual steps can be made to
// fail, stall or record call order.
type fakeCollaborators struct {
	mu         sync.Mutex
	calls      []string
	analyzeErr error
	scrapeErr  error
	genErr     error
	refineErr  error
	stall      map[string]time.Duration
}

func (f *fakeCollaborators) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeCollaborators) wait(ctx context.Context, name string) error {
	d, ok := f.stall[name]
	if !ok {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (f *fakeCollaborators) Analyze(ctx context.Context, req *model.CloneRequest, report ProgressFunc) (*PageAnalysis, error) {
	f.record("analyze")
	if err := f.wait(ctx, "analyze"); err != nil {
		return nil, err
	}
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	report(50, "analyzing")
	return &PageAnalysis{Title: "Fake page"}, nil
}

func (f *fakeCollaborators) Scrape(ctx context.Context, req *model.CloneRequest, analysis *PageAnalysis, report ProgressFunc) (*PageContent, error) {
	f.record("scrape")
	if err := f.wait(ctx, "scrape"); err != nil {
		return nil, err
	}
	if f.scrapeErr != nil {
		return nil, f.scrapeErr
	}
	report(50, "scraping")
	return &PageContent{HTML: "<html><body>original</body></html>", Assets: []string{"https://example.com/logo.png"}}, nil
}

func (f *fakeCollaborators) Generate(ctx context.Context, req *model.CloneRequest, analysis *PageAnalysis, content *PageContent, report ProgressFunc) (*GeneratedPage, error) {
	f.record("generate")
	if err := f.wait(ctx, "generate"); err != nil {
		return nil, err
	}
	if f.genErr != nil {
		return nil, f.genErr
	}
	report(50, "generating")
	return &GeneratedPage{HTML: "<html><body>generated</body></html>", TokensUsed: 100}, nil
}

func (f *fakeCollaborators) Refine(ctx context.Context, req *model.CloneRequest, content *PageContent, page *GeneratedPage, report ProgressFunc) (*GeneratedPage, error) {
	f.record("refine")
	if err := f.wait(ctx, "refine"); err != nil {
		return nil, err
	}
	if f.refineErr != nil {
		return nil, f.refineErr
	}
	report(50, "refining")
	return &GeneratedPage{HTML: "<html><body>refined</body></html>", TokensUsed: 40}, nil
}

func (f *fakeCollaborators) Score(ctx context.Context, content *PageContent, html string) (float64, error) {
	f.record("score")
	return 85, nil
}

func newTestRunner(fake *fakeCollaborators, store session.Store, timeout time.Duration) *Runner {
	collab := Collaborators{
		Analyzer:  fake,
		Scraper:   fake,
		Generator: fake,
		Refiner:   fake,
		Scorer:    fake,
	}
	return NewRunner(store, collab, nil, nil, timeout)
}

func createPending(t *testing.T, store session.Store) *model.Session {
	t.Helper()
	req := &model.CloneRequest{URL: "https://example.com"}
	req.ApplyDefaults()
	s := model.NewSession(req)
	if err := store.Create(context.Background(), s); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return s
}

func TestRunner_SuccessPath(t *testing.T) {
	store := session.NewMemoryStore()
	fake := &fakeCollaborators{}
	runner := newTestRunner(fake, store, 0)
	s := createPending(t, store)

	if err := runner.Run(context.Background(), s.SessionID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, err := store.Get(context.Background(), s.SessionID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Result == nil {
		t.Fatal("expected a result")
	}
	if got.Result.HTMLContent != "<html><body>refined</body></html>" {
		t.Errorf("unexpected html: %q", got.Result.HTMLContent)
	}
	if got.Result.SimilarityScore != 85 {
		t.Errorf("expected similarity 85, got %f", got.Result.SimilarityScore)
	}
	if got.Result.TokensUsed != 140 {
		t.Errorf("expected 140 tokens, got %d", got.Result.TokensUsed)
	}
	if got.OverallProgress() != 100 {
		t.Errorf("expected 100%% overall, got %f", got.OverallProgress())
	}

	if len(got.Progress) != len(model.StageOrder) {
		t.Fatalf("expected %d stage records, got %d", len(model.StageOrder), len(got.Progress))
	}
	for i, step := range model.StageOrder {
		rec := got.Progress[i]
		if rec.StepName != step {
			t.Errorf("stage %d: expected %s, got %s", i, step, rec.StepName)
		}
		if rec.Status != model.StatusCompleted || rec.ProgressPercentage != 100 {
			t.Errorf("stage %s not completed: %+v", step, rec)
		}
		if rec.StartedAt == nil || rec.CompletedAt == nil {
			t.Errorf("stage %s missing timestamps", step)
		}
	}
}

func TestRunner_MidPipelineFailureHaltsLaterStages(t *testing.T) {
	store := session.NewMemoryStore()
	fake := &fakeCollaborators{scrapeErr: errors.New("browser crashed")}
	runner := newTestRunner(fake, store, 0)
	s := createPending(t, store)

	if err := runner.Run(context.Background(), s.SessionID); err == nil {
		t.Fatal("expected run to report the failure")
	}

	got, _ := store.Get(context.Background(), s.SessionID)
	if got.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "scraping failed") {
		t.Errorf("unexpected error message: %q", got.ErrorMessage)
	}
	if got.Result != nil {
		t.Error("failed session must not carry a result")
	}

	// analyzing completed, scraping failed, nothing after ran.
	if len(got.Progress) != 2 {
		t.Fatalf("expected 2 stage records, got %d", len(got.Progress))
	}
	if got.Progress[0].Status != model.StatusCompleted {
		t.Errorf("analyzing should have completed: %+v", got.Progress[0])
	}
	if got.Progress[1].Status != model.StatusFailed || got.Progress[1].Error == "" {
		t.Errorf("scraping should have failed: %+v", got.Progress[1])
	}
	for _, call := range fake.calls {
		if call == "generate" || call == "refine" {
			t.Errorf("stage %s ran after a failure", call)
		}
	}
}

func TestRunner_StageTimeout(t *testing.T) {
	store := session.NewMemoryStore()
	fake := &fakeCollaborators{stall: map[string]time.Duration{"generate": time.Second}}
	runner := newTestRunner(fake, store, 50*time.Millisecond)
	s := createPending(t, store)

	start := time.Now()
	if err := runner.Run(context.Background(), s.SessionID); err == nil {
		t.Fatal("expected run to report the timeout")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout did not interrupt the stalled stage")
	}

	got, _ := store.Get(context.Background(), s.SessionID)
	if got.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "timed out") {
		t.Errorf("expected timeout in error message, got %q", got.ErrorMessage)
	}
}

func TestRunner_SkipsNonPendingSession(t *testing.T) {
	store := session.NewMemoryStore()
	fake := &fakeCollaborators{}
	runner := newTestRunner(fake, store, 0)
	s := createPending(t, store)

	_, _ = store.Update(context.Background(), s.SessionID, func(m *model.Session) {
		m.BeginStage(model.StatusAnalyzing, time.Now())
		m.FailStage(model.StatusAnalyzing, "already failed", time.Now())
	})

	if err := runner.Run(context.Background(), s.SessionID); err != nil {
		t.Fatalf("run of terminal session should be a no-op, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("collaborators called on a terminal session: %v", fake.calls)
	}

	got, _ := store.Get(context.Background(), s.SessionID)
	if got.ErrorMessage != "already failed" {
		t.Errorf("terminal session mutated: %q", got.ErrorMessage)
	}
}

func TestRunner_UnknownSession(t *testing.T) {
	store := session.NewMemoryStore()
	runner := newTestRunner(&fakeCollaborators{}, store, 0)

	err := runner.Run(context.Background(), "no-such-id")
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunner_ConcurrentSessions(t *testing.T) {
	store := session.NewMemoryStore()
	fake := &fakeCollaborators{}
	runner := newTestRunner(fake, store, 0)

	a := createPending(t, store)
	b := createPending(t, store)

	var wg sync.WaitGroup
	for _, id := range []string{a.SessionID, b.SessionID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := runner.Run(context.Background(), id); err != nil {
				t.Errorf("run %s failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{a.SessionID, b.SessionID} {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s failed: %v", id, err)
		}
		if got.Status != model.StatusCompleted {
			t.Errorf("session %s: expected completed, got %s", id, got.Status)
		}
		if len(got.Progress) != len(model.StageOrder) {
			t.Errorf("session %s: expected %d stage records, got %d", id, len(model.StageOrder), len(got.Progress))
		}
	}
}
