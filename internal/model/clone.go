package model

import "time"

// CloneRequest is the submission body for POST /clone. The URL is
// additionally screened by the urlcheck validator against loopback and
// private-network hosts, which struct tags cannot express.
type CloneRequest struct {
	URL                string  `json:"url" validate:"required,url"`
	Quality            Quality `json:"quality" validate:"omitempty,oneof=fast balanced high"`
	IncludeImages      bool    `json:"include_images"`
	IncludeStyling     bool    `json:"include_styling"`
	MaxDepth           int     `json:"max_depth" validate:"omitempty,min=1,max=3"`
	CustomInstructions string  `json:"custom_instructions" validate:"omitempty,max=500"`
}

// ApplyDefaults fills the optional fields the way the API documents them.
func (r *CloneRequest) ApplyDefaults() {
	if r.Quality == "" {
		r.Quality = QualityBalanced
	}
	if r.MaxDepth == 0 {
		r.MaxDepth = 1
	}
}

// SessionListResponse is the paginated payload for GET /sessions.
type SessionListResponse struct {
	Sessions   []*Session `json:"sessions"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// DeleteResponse confirms a session deletion.
type DeleteResponse struct {
	Message   string    `json:"message"`
	DeletedAt time.Time `json:"deleted_at"`
}
