package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sitecloner/api/internal/model"
	"github.com/sitecloner/api/internal/session"
)

// Runner executes the stage sequence for one session. All session mutation
// goes through the store's atomic Update; the runner itself holds no
// session state, so any number of sessions can run concurrently.
type Runner struct {
	store        session.Store
	collab       Collaborators
	notifier     Notifier
	artifacts    ArtifactStore
	stageTimeout time.Duration
}

// NewRunner wires a runner. notifier and artifacts may be nil. stageTimeout
// bounds each stage; on expiry the session fails exactly as if the stage's
// collaborator had returned an error. Zero disables the timeout.
func NewRunner(store session.Store, collab Collaborators, notifier Notifier, artifacts ArtifactStore, stageTimeout time.Duration) *Runner {
	return &Runner{
		store:        store,
		collab:       collab,
		notifier:     notifier,
		artifacts:    artifacts,
		stageTimeout: stageTimeout,
	}
}

// Run drives a pending session to a terminal state. Post-submission errors
// are recorded inside the session — the submitting caller has already moved
// on to polling — and also returned for the task queue's logs.
func (r *Runner) Run(ctx context.Context, sessionID string) error {
	s, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	if s.Status != model.StatusPending {
		log.Printf("session %s is %s, not pending; skipping run", sessionID, s.Status)
		return nil
	}
	req := s.Request
	start := time.Now()

	var (
		analysis *PageAnalysis
		content  *PageContent
		page     *GeneratedPage
		refined  *GeneratedPage
		score    float64
	)

	stages := []struct {
		step model.CloneStatus
		run  func(ctx context.Context, report ProgressFunc) error
	}{
		{model.StatusAnalyzing, func(ctx context.Context, report ProgressFunc) error {
			var err error
			analysis, err = r.collab.Analyzer.Analyze(ctx, req, report)
			return err
		}},
		{model.StatusScraping, func(ctx context.Context, report ProgressFunc) error {
			var err error
			content, err = r.collab.Scraper.Scrape(ctx, req, analysis, report)
			return err
		}},
		{model.StatusGenerating, func(ctx context.Context, report ProgressFunc) error {
			var err error
			page, err = r.collab.Generator.Generate(ctx, req, analysis, content, report)
			return err
		}},
		{model.StatusRefining, func(ctx context.Context, report ProgressFunc) error {
			var err error
			refined, err = r.collab.Refiner.Refine(ctx, req, content, page, report)
			if err != nil {
				return err
			}
			score, err = r.collab.Scorer.Score(ctx, content, refined.HTML)
			return err
		}},
	}

	for _, stage := range stages {
		if err := r.runStage(ctx, sessionID, stage.step, stage.run); err != nil {
			return err
		}
	}

	result := &model.CloneResult{
		HTMLContent:     refined.HTML,
		CSSContent:      refined.CSS,
		Assets:          append([]string(nil), content.Assets...),
		SimilarityScore: score,
		GenerationTime:  time.Since(start).Seconds(),
		TokensUsed:      page.TokensUsed + refined.TokensUsed,
	}

	if r.artifacts != nil {
		// Artifact publishing is auxiliary: the document is already in the
		// result, so a storage hiccup does not fail the session.
		if url, err := r.artifacts.Publish(ctx, sessionID, refined.HTML); err != nil {
			log.Printf("session %s: artifact publish failed: %v", sessionID, err)
		} else if url != "" {
			result.Assets = append(result.Assets, url)
		}
	}

	if _, err := r.store.Update(ctx, sessionID, func(s *model.Session) {
		s.SetCompleted(result, time.Now())
	}); err != nil {
		return fmt.Errorf("session %s: failed to store result: %w", sessionID, err)
	}
	if r.notifier != nil {
		r.notifier.NotifyComplete(sessionID, result)
	}
	log.Printf("session %s completed: similarity %.1f%%, %d tokens", sessionID, score, result.TokensUsed)
	return nil
}

func (r *Runner) runStage(ctx context.Context, sessionID string, step model.CloneStatus, run func(context.Context, ProgressFunc) error) error {
	if err := r.beginStage(ctx, sessionID, step); err != nil {
		return err
	}

	stageCtx := ctx
	if r.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, r.stageTimeout)
		defer cancel()
	}

	report := func(percent float64, message string) {
		r.reportProgress(ctx, sessionID, step, percent, message)
	}

	if err := run(stageCtx, report); err != nil {
		msg := fmt.Sprintf("%s failed: %v", step, err)
		if errors.Is(err, context.DeadlineExceeded) && stageCtx != ctx {
			msg = fmt.Sprintf("%s timed out after %s", step, r.stageTimeout)
		}
		r.failSession(ctx, sessionID, step, msg)
		return fmt.Errorf("session %s: %s", sessionID, msg)
	}

	return r.completeStage(ctx, sessionID, step)
}

func (r *Runner) beginStage(ctx context.Context, sessionID string, step model.CloneStatus) error {
	updated, err := r.store.Update(ctx, sessionID, func(s *model.Session) {
		s.BeginStage(step, time.Now())
	})
	if err != nil {
		return fmt.Errorf("session %s: failed to begin %s: %w", sessionID, step, err)
	}
	if r.notifier != nil {
		r.notifier.NotifyProgress(sessionID, updated.Status, step, 0, updated.OverallProgress(), "")
	}
	return nil
}

func (r *Runner) reportProgress(ctx context.Context, sessionID string, step model.CloneStatus, percent float64, message string) {
	updated, err := r.store.Update(ctx, sessionID, func(s *model.Session) {
		s.SetStageProgress(step, percent, message, time.Now())
	})
	if err != nil {
		log.Printf("session %s: failed to update %s progress: %v", sessionID, step, err)
		return
	}
	if r.notifier != nil {
		if rec := updated.Stage(step); rec != nil {
			r.notifier.NotifyProgress(sessionID, updated.Status, step, rec.ProgressPercentage, updated.OverallProgress(), message)
		}
	}
}

func (r *Runner) completeStage(ctx context.Context, sessionID string, step model.CloneStatus) error {
	updated, err := r.store.Update(ctx, sessionID, func(s *model.Session) {
		s.CompleteStage(step, time.Now())
	})
	if err != nil {
		return fmt.Errorf("session %s: failed to complete %s: %w", sessionID, step, err)
	}
	if r.notifier != nil {
		r.notifier.NotifyProgress(sessionID, updated.Status, step, 100, updated.OverallProgress(), "")
	}
	return nil
}

func (r *Runner) failSession(ctx context.Context, sessionID string, step model.CloneStatus, msg string) {
	if _, err := r.store.Update(ctx, sessionID, func(s *model.Session) {
		s.FailStage(step, msg, time.Now())
	}); err != nil {
		log.Printf("session %s: failed to record failure: %v", sessionID, err)
	}
	if r.notifier != nil {
		r.notifier.NotifyFailed(sessionID, msg)
	}
	log.Printf("session %s failed: %s", sessionID, msg)
}
