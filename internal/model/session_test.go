package model

import (
	"testing"
	"time"
)

func newTestSession() *Session {
	req := &CloneRequest{URL: "https://example.com"}
	req.ApplyDefaults()
	return NewSession(req)
}

func TestNewSession_Defaults(t *testing.T) {
	s := newTestSession()

	if s.SessionID == "" {
		t.Error("expected a session ID")
	}
	if s.Status != StatusPending {
		t.Errorf("expected status pending, got %s", s.Status)
	}
	if s.Progress == nil || len(s.Progress) != 0 {
		t.Errorf("expected empty progress slice, got %v", s.Progress)
	}
	if s.Result != nil {
		t.Error("expected nil result on a new session")
	}
	if s.EstimatedCompletion == nil {
		t.Error("expected estimated_completion to be set")
	}
}

func TestNewSession_DistinctIDs(t *testing.T) {
	a := newTestSession()
	b := newTestSession()
	if a.SessionID == b.SessionID {
		t.Errorf("two sessions share ID %s", a.SessionID)
	}
}

func TestOverallProgress_Mean(t *testing.T) {
	s := newTestSession()
	now := time.Now()

	if got := s.OverallProgress(); got != 0 {
		t.Errorf("expected 0%% before any stage, got %f", got)
	}

	s.BeginStage(StatusAnalyzing, now)
	s.CompleteStage(StatusAnalyzing, now)
	if got := s.OverallProgress(); got != 25 {
		t.Errorf("expected 25%% after one completed stage, got %f", got)
	}

	s.BeginStage(StatusScraping, now)
	s.SetStageProgress(StatusScraping, 50, "", now)
	if got := s.OverallProgress(); got != 37.5 {
		t.Errorf("expected 37.5%%, got %f", got)
	}

	s.CompleteStage(StatusScraping, now)
	for _, step := range []CloneStatus{StatusGenerating, StatusRefining} {
		s.BeginStage(step, now)
		s.CompleteStage(step, now)
	}
	if got := s.OverallProgress(); got != 100 {
		t.Errorf("expected 100%% after all stages, got %f", got)
	}
}

func TestSetStageProgress_ClampAndNoRegress(t *testing.T) {
	s := newTestSession()
	now := time.Now()
	s.BeginStage(StatusAnalyzing, now)

	s.SetStageProgress(StatusAnalyzing, 60, "working", now)
	s.SetStageProgress(StatusAnalyzing, 40, "late report", now)
	if got := s.Stage(StatusAnalyzing).ProgressPercentage; got != 60 {
		t.Errorf("progress regressed: expected 60, got %f", got)
	}

	s.SetStageProgress(StatusAnalyzing, 250, "", now)
	if got := s.Stage(StatusAnalyzing).ProgressPercentage; got != 100 {
		t.Errorf("expected clamp to 100, got %f", got)
	}
}

func TestSetStageProgress_UnstartedStageIgnored(t *testing.T) {
	s := newTestSession()
	s.SetStageProgress(StatusScraping, 50, "", time.Now())
	if s.Stage(StatusScraping) != nil {
		t.Error("progress report must not create a stage record")
	}
}

func TestFailStage_Terminal(t *testing.T) {
	s := newTestSession()
	now := time.Now()
	s.BeginStage(StatusAnalyzing, now)
	s.FailStage(StatusAnalyzing, "analyzing failed: boom", now)

	if s.Status != StatusFailed {
		t.Errorf("expected failed, got %s", s.Status)
	}
	if s.ErrorMessage == "" {
		t.Error("expected error_message to be set")
	}
	if s.Result != nil {
		t.Error("failed session must not carry a result")
	}
	rec := s.Stage(StatusAnalyzing)
	if rec.Status != StatusFailed || rec.Error == "" {
		t.Errorf("expected failed stage record with error, got %+v", rec)
	}

	// Terminal sessions ignore all further transitions.
	s.BeginStage(StatusScraping, now)
	s.SetCompleted(&CloneResult{HTMLContent: "<html></html>"}, now)
	if s.Status != StatusFailed {
		t.Errorf("terminal status mutated to %s", s.Status)
	}
	if s.Stage(StatusScraping) != nil {
		t.Error("stage begun after terminal state")
	}
	if s.Result != nil {
		t.Error("result set after terminal state")
	}
}

func TestSetCompleted_Terminal(t *testing.T) {
	s := newTestSession()
	now := time.Now()
	result := &CloneResult{HTMLContent: "<html></html>", SimilarityScore: 80}
	s.SetCompleted(result, now)

	if s.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", s.Status)
	}
	if s.Result == nil {
		t.Error("expected result on completed session")
	}
	if s.ErrorMessage != "" {
		t.Error("completed session must not carry an error message")
	}

	s.FailStage(StatusRefining, "too late", now)
	if s.Status != StatusCompleted || s.Result == nil {
		t.Error("completed session mutated by late failure")
	}
}

func TestClone_DeepCopy(t *testing.T) {
	s := newTestSession()
	now := time.Now()
	s.BeginStage(StatusAnalyzing, now)

	cp := s.Clone()
	cp.Progress[0].ProgressPercentage = 99
	cp.Request.URL = "https://tampered.example"

	if s.Progress[0].ProgressPercentage == 99 {
		t.Error("progress shared between copy and original")
	}
	if s.Request.URL != "https://example.com" {
		t.Error("request shared between copy and original")
	}
}

func TestQuality_EstimatedDuration(t *testing.T) {
	cases := []struct {
		q    Quality
		want time.Duration
	}{
		{QualityFast, 30 * time.Second},
		{QualityBalanced, 60 * time.Second},
		{QualityHigh, 120 * time.Second},
	}
	for _, c := range cases {
		if got := c.q.EstimatedDuration(); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.q, c.want, got)
		}
	}
}

func TestCloneStatus_IsTerminal(t *testing.T) {
	for _, s := range []CloneStatus{StatusCompleted, StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []CloneStatus{StatusPending, StatusAnalyzing, StatusScraping, StatusGenerating, StatusRefining} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
