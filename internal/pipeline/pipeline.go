// Package pipeline sequences a clone job through its stages. The runner
// owns stage ordering, progress bookkeeping and failure propagation; the
// actual work is delegated to collaborator interfaces so it can be tested
// with fakes that succeed, stall or fail deterministically.
package pipeline

import (
	"context"

	"github.com/sitecloner/api/internal/model"
)

// ProgressFunc lets a collaborator report incremental progress for its
// stage. Percent is 0-100; the runner never lets a stage percentage
// regress.
type ProgressFunc func(percent float64, message string)

// PageAnalysis is the output of the analyzing stage.
type PageAnalysis struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	MainColors      []string `json:"main_colors"`
	FontFamilies    []string `json:"font_families"`
	LayoutType      string   `json:"layout_type"`
	ComplexityScore float64  `json:"complexity_score"`
}

// PageContent is the output of the scraping stage.
type PageContent struct {
	HTML   string   `json:"html"`
	Text   string   `json:"text"`
	Assets []string `json:"assets"`
}

// GeneratedPage is the output of the generating and refining stages.
type GeneratedPage struct {
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	TokensUsed int    `json:"tokens_used"`
}

// Analyzer inspects the target page's structure before scraping.
type Analyzer interface {
	Analyze(ctx context.Context, req *model.CloneRequest, report ProgressFunc) (*PageAnalysis, error)
}

// Scraper extracts page content and assets for a URL and quality tier.
type Scraper interface {
	Scrape(ctx context.Context, req *model.CloneRequest, analysis *PageAnalysis, report ProgressFunc) (*PageContent, error)
}

// Generator produces HTML/CSS from scraped content and instructions.
type Generator interface {
	Generate(ctx context.Context, req *model.CloneRequest, analysis *PageAnalysis, content *PageContent, report ProgressFunc) (*GeneratedPage, error)
}

// Refiner improves a generated page against the original content.
type Refiner interface {
	Refine(ctx context.Context, req *model.CloneRequest, content *PageContent, page *GeneratedPage, report ProgressFunc) (*GeneratedPage, error)
}

// Scorer rates how close a generated page is to the original, 0-100.
type Scorer interface {
	Score(ctx context.Context, content *PageContent, html string) (float64, error)
}

// ArtifactStore publishes the finished HTML document to object storage and
// returns its public URL. Optional; a nil store skips publishing.
type ArtifactStore interface {
	Publish(ctx context.Context, sessionID, html string) (string, error)
}

// Collaborators bundles everything a runner delegates to.
type Collaborators struct {
	Analyzer  Analyzer
	Scraper   Scraper
	Generator Generator
	Refiner   Refiner
	Scorer    Scorer
}

// Notifier receives push updates as a session advances. Implementations
// must not block; the websocket hub is the only production implementation.
type Notifier interface {
	NotifyProgress(sessionID string, status model.CloneStatus, step model.CloneStatus, stepProgress, overall float64, message string)
	NotifyComplete(sessionID string, result *model.CloneResult)
	NotifyFailed(sessionID string, message string)
}
