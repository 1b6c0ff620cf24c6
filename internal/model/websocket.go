package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage carries a stage progress update for one session.
type WSProgressMessage struct {
	Type            string      `json:"type"`
	SessionID       string      `json:"session_id"`
	Status          CloneStatus `json:"status"`
	Step            CloneStatus `json:"step"`
	StepProgress    float64     `json:"step_progress"`
	OverallProgress float64     `json:"overall_progress"`
	Message         string      `json:"message,omitempty"`
}

// WSCompleteMessage announces that a session reached completed.
type WSCompleteMessage struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Result    *CloneResult `json:"result"`
}

// WSErrorMessage announces that a session reached failed.
type WSErrorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}
