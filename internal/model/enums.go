package model

import "time"

// Clone status
type CloneStatus string

const (
	StatusPending    CloneStatus = "pending"
	StatusAnalyzing  CloneStatus = "analyzing"
	StatusScraping   CloneStatus = "scraping"
	StatusGenerating CloneStatus = "generating"
	StatusRefining   CloneStatus = "refining"
	StatusCompleted  CloneStatus = "completed"
	StatusFailed     CloneStatus = "failed"
)

// StageOrder is the execution order of the pipeline stages. A session moves
// forward through these and never backward; "failed" is reachable from any
// non-terminal status.
var StageOrder = []CloneStatus{
	StatusAnalyzing, StatusScraping, StatusGenerating, StatusRefining,
}

var ValidStatuses = []CloneStatus{
	StatusPending, StatusAnalyzing, StatusScraping, StatusGenerating,
	StatusRefining, StatusCompleted, StatusFailed,
}

// IsTerminal reports whether no further transitions are allowed.
func (s CloneStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is a known status value.
func (s CloneStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Quality tiers
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityBalanced Quality = "balanced"
	QualityHigh     Quality = "high"
)

var ValidQualities = []Quality{QualityFast, QualityBalanced, QualityHigh}

// EstimatedDuration returns the advisory end-to-end duration for a quality
// tier, used to populate estimated_completion at submission.
func (q Quality) EstimatedDuration() time.Duration {
	switch q {
	case QualityFast:
		return 30 * time.Second
	case QualityHigh:
		return 120 * time.Second
	default:
		return 60 * time.Second
	}
}
