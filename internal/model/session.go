package model

import (
	"time"

	"github.com/google/uuid"
)

// StageRecord is the progress snapshot for one pipeline stage within a
// session. There is at most one record per step_name; a record is created
// when its stage starts and updated in place until the stage completes or
// fails, so the progress array preserves execution order.
type StageRecord struct {
	StepName           CloneStatus `json:"step_name"`
	Status             CloneStatus `json:"status"`
	ProgressPercentage float64     `json:"progress_percentage"`
	StartedAt          *time.Time  `json:"started_at,omitempty"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	Message            string      `json:"message,omitempty"`
	Error              string      `json:"error,omitempty"`
}

// CloneResult holds the output of a successful clone.
type CloneResult struct {
	HTMLContent     string   `json:"html_content"`
	CSSContent      string   `json:"css_content,omitempty"`
	Assets          []string `json:"assets"`
	SimilarityScore float64  `json:"similarity_score"`
	GenerationTime  float64  `json:"generation_time"`
	TokensUsed      int      `json:"tokens_used"`
}

// Session is one cloning job and its full state. It is created by the
// service on submission, mutated exclusively by the pipeline runner through
// Store.Update, and read by polling clients.
type Session struct {
	SessionID           string        `json:"session_id"`
	Status              CloneStatus   `json:"status"`
	Request             *CloneRequest `json:"request"`
	Progress            []StageRecord `json:"progress"`
	Result              *CloneResult  `json:"result,omitempty"`
	ErrorMessage        string        `json:"error_message,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	EstimatedCompletion *time.Time    `json:"estimated_completion,omitempty"`
}

// NewSession allocates a fresh pending session for a clone request.
func NewSession(req *CloneRequest) *Session {
	now := time.Now().UTC()
	eta := now.Add(req.Quality.EstimatedDuration())
	return &Session{
		SessionID:           uuid.New().String(),
		Status:              StatusPending,
		Request:             req,
		Progress:            []StageRecord{},
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedCompletion: &eta,
	}
}

// Clone returns a deep copy so stores can hand out snapshots without
// sharing mutable state with callers.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Progress = make([]StageRecord, len(s.Progress))
	copy(cp.Progress, s.Progress)
	if s.Request != nil {
		req := *s.Request
		cp.Request = &req
	}
	if s.Result != nil {
		res := *s.Result
		res.Assets = append([]string(nil), s.Result.Assets...)
		cp.Result = &res
	}
	if s.EstimatedCompletion != nil {
		t := *s.EstimatedCompletion
		cp.EstimatedCompletion = &t
	}
	return &cp
}

// Stage returns the record for a step, or nil if the stage has not started.
func (s *Session) Stage(step CloneStatus) *StageRecord {
	for i := range s.Progress {
		if s.Progress[i].StepName == step {
			return &s.Progress[i]
		}
	}
	return nil
}

// OverallProgress is the unweighted arithmetic mean of all stage
// percentages; stages that have not started count as zero. Stages are
// deliberately not weighted by expected duration.
func (s *Session) OverallProgress() float64 {
	if len(StageOrder) == 0 {
		return 0
	}
	var sum float64
	for _, step := range StageOrder {
		if rec := s.Stage(step); rec != nil {
			sum += rec.ProgressPercentage
		}
	}
	return sum / float64(len(StageOrder))
}

// BeginStage opens a stage record and advances the session status. It is a
// no-op on a terminal session.
func (s *Session) BeginStage(step CloneStatus, now time.Time) {
	if s.Status.IsTerminal() {
		return
	}
	started := now.UTC()
	s.Progress = append(s.Progress, StageRecord{
		StepName:           step,
		Status:             step,
		ProgressPercentage: 0,
		StartedAt:          &started,
	})
	s.Status = step
	s.touch(now)
}

// SetStageProgress records collaborator-reported progress. The percentage
// is clamped to [0,100] and never regresses within a stage.
func (s *Session) SetStageProgress(step CloneStatus, percent float64, message string, now time.Time) {
	rec := s.Stage(step)
	if rec == nil || s.Status.IsTerminal() {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent > rec.ProgressPercentage {
		rec.ProgressPercentage = percent
	}
	if message != "" {
		rec.Message = message
	}
	s.touch(now)
}

// CompleteStage closes a stage record at 100%.
func (s *Session) CompleteStage(step CloneStatus, now time.Time) {
	rec := s.Stage(step)
	if rec == nil || s.Status.IsTerminal() {
		return
	}
	done := now.UTC()
	rec.ProgressPercentage = 100
	rec.CompletedAt = &done
	rec.Status = StatusCompleted
	s.touch(now)
}

// FailStage records a stage failure and moves the session to its terminal
// failed state. No further stage transitions are possible afterwards.
func (s *Session) FailStage(step CloneStatus, errMsg string, now time.Time) {
	if s.Status.IsTerminal() {
		return
	}
	if rec := s.Stage(step); rec != nil {
		done := now.UTC()
		rec.Status = StatusFailed
		rec.Error = errMsg
		rec.CompletedAt = &done
	}
	s.Status = StatusFailed
	s.ErrorMessage = errMsg
	s.Result = nil
	s.touch(now)
}

// SetCompleted stores the result and moves the session to completed.
func (s *Session) SetCompleted(result *CloneResult, now time.Time) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = StatusCompleted
	s.Result = result
	s.ErrorMessage = ""
	s.touch(now)
}

func (s *Session) touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}
