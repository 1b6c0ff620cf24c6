package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sitecloner/api/internal/client"
	"github.com/sitecloner/api/internal/model"
	"github.com/sitecloner/api/internal/pipeline"
)

// NewCollaborators builds the production pipeline collaborators from the
// external clients. Each falls back to a deterministic mock when its client
// is unconfigured, so the service stays usable in development without a
// browser sidecar or an API key.
func NewCollaborators(browser *client.BrowserClient, llm *client.AnthropicClient) pipeline.Collaborators {
	return pipeline.Collaborators{
		Analyzer:  &browserAnalyzer{browser: browser},
		Scraper:   &browserScraper{browser: browser},
		Generator: &llmGenerator{llm: llm},
		Refiner:   &llmRefiner{llm: llm},
		Scorer:    &heuristicScorer{},
	}
}

type browserAnalyzer struct {
	browser *client.BrowserClient
}

func (a *browserAnalyzer) Analyze(ctx context.Context, req *model.CloneRequest, report pipeline.ProgressFunc) (*pipeline.PageAnalysis, error) {
	if !a.browser.IsConfigured() {
		return mockAnalyze(ctx, req, report)
	}

	report(10, "Analyzing page structure...")
	resp, err := a.browser.Analyze(ctx, &client.AnalyzeRequest{
		URL:      req.URL,
		MaxDepth: req.MaxDepth,
	})
	if err != nil {
		return nil, err
	}
	report(90, "Page structure analyzed")
	return &pipeline.PageAnalysis{
		Title:           resp.Title,
		Description:     resp.Description,
		MainColors:      resp.MainColors,
		FontFamilies:    resp.FontFamilies,
		LayoutType:      resp.LayoutType,
		ComplexityScore: resp.ComplexityScore,
	}, nil
}

type browserScraper struct {
	browser *client.BrowserClient
}

func (s *browserScraper) Scrape(ctx context.Context, req *model.CloneRequest, analysis *pipeline.PageAnalysis, report pipeline.ProgressFunc) (*pipeline.PageContent, error) {
	if !s.browser.IsConfigured() {
		return mockScrape(ctx, req, report)
	}

	report(10, "Extracting page content...")
	resp, err := s.browser.Scrape(ctx, &client.ScrapeRequest{
		URL:           req.URL,
		Quality:       string(req.Quality),
		IncludeImages: req.IncludeImages,
		MaxDepth:      req.MaxDepth,
	})
	if err != nil {
		return nil, err
	}
	report(90, fmt.Sprintf("Extracted %d assets", len(resp.Assets)))
	assets := resp.Assets
	if !req.IncludeImages {
		assets = nil
	}
	return &pipeline.PageContent{
		HTML:   resp.HTML,
		Text:   resp.Text,
		Assets: assets,
	}, nil
}

type llmGenerator struct {
	llm *client.AnthropicClient
}

func (g *llmGenerator) Generate(ctx context.Context, req *model.CloneRequest, analysis *pipeline.PageAnalysis, content *pipeline.PageContent, report pipeline.ProgressFunc) (*pipeline.GeneratedPage, error) {
	if !g.llm.IsConfigured() {
		return mockGenerate(ctx, req, analysis, content, report)
	}

	report(10, "AI is generating HTML...")
	text, tokens, err := g.llm.Complete(ctx, generationSystemPrompt, buildGenerationPrompt(req, analysis, content))
	if err != nil {
		return nil, err
	}
	report(90, fmt.Sprintf("Generated HTML (%d tokens)", tokens))

	page := &pipeline.GeneratedPage{
		HTML:       extractFencedBlock(text, "html"),
		TokensUsed: tokens,
	}
	if req.IncludeStyling {
		page.CSS = extractFencedBlock(text, "css")
	}
	if page.HTML == "" {
		// Model answered without code fences; take the whole reply.
		page.HTML = text
	}
	return page, nil
}

type llmRefiner struct {
	llm *client.AnthropicClient
}

func (r *llmRefiner) Refine(ctx context.Context, req *model.CloneRequest, content *pipeline.PageContent, page *pipeline.GeneratedPage, report pipeline.ProgressFunc) (*pipeline.GeneratedPage, error) {
	if !r.llm.IsConfigured() {
		report(50, "Refinement skipped (no LLM configured)")
		return &pipeline.GeneratedPage{HTML: page.HTML, CSS: page.CSS}, nil
	}

	report(10, "AI is refining the generated page...")
	text, tokens, err := r.llm.Complete(ctx, refinementSystemPrompt, buildRefinementPrompt(req, content, page))
	if err != nil {
		return nil, err
	}
	report(90, "Refinement applied")

	refined := &pipeline.GeneratedPage{
		HTML:       extractFencedBlock(text, "html"),
		CSS:        page.CSS,
		TokensUsed: tokens,
	}
	if css := extractFencedBlock(text, "css"); css != "" && req.IncludeStyling {
		refined.CSS = css
	}
	if refined.HTML == "" {
		refined.HTML = page.HTML
	}
	return refined, nil
}

// heuristicScorer rates structural similarity without an external service.
// It is intentionally cheap: the score is advisory, shown next to the
// preview, and never gates completion.
type heuristicScorer struct{}

func (heuristicScorer) Score(ctx context.Context, content *pipeline.PageContent, html string) (float64, error) {
	if html == "" {
		return 0, nil
	}
	if content == nil || content.HTML == "" {
		return 50, nil
	}

	score := 40.0

	// Length ratio of generated vs original markup, capped at parity.
	ratio := float64(len(html)) / float64(len(content.HTML))
	if ratio > 1 {
		ratio = 1 / ratio
	}
	score += 30 * ratio

	for _, tag := range []string{"<header", "<nav", "<main", "<footer", "<img", "<a "} {
		if strings.Contains(content.HTML, tag) == strings.Contains(html, tag) {
			score += 5
		}
	}

	if score > 100 {
		score = 100
	}
	return score, nil
}

// Mock fallbacks: deterministic staged output for development and tests.

func mockAnalyze(ctx context.Context, req *model.CloneRequest, report pipeline.ProgressFunc) (*pipeline.PageAnalysis, error) {
	if err := mockSteps(ctx, report, "Analyzing page structure..."); err != nil {
		return nil, err
	}
	return &pipeline.PageAnalysis{
		Title:           "Mock page",
		Description:     "Mock analysis of " + req.URL,
		MainColors:      []string{"#ffffff", "#1a1a2e"},
		FontFamilies:    []string{"system-ui"},
		LayoutType:      "single-column",
		ComplexityScore: 25,
	}, nil
}

func mockScrape(ctx context.Context, req *model.CloneRequest, report pipeline.ProgressFunc) (*pipeline.PageContent, error) {
	if err := mockSteps(ctx, report, "Extracting page content..."); err != nil {
		return nil, err
	}
	content := &pipeline.PageContent{
		HTML: fmt.Sprintf("<html><head><title>Mock page</title></head><body><main><h1>Mock page</h1><p>Scraped from %s</p></main></body></html>", req.URL),
		Text: "Mock page scraped from " + req.URL,
	}
	if req.IncludeImages {
		content.Assets = []string{req.URL + "/logo.png"}
	}
	return content, nil
}

func mockGenerate(ctx context.Context, req *model.CloneRequest, analysis *pipeline.PageAnalysis, content *pipeline.PageContent, report pipeline.ProgressFunc) (*pipeline.GeneratedPage, error) {
	if err := mockSteps(ctx, report, "Generating HTML..."); err != nil {
		return nil, err
	}
	log.Printf("LLM not configured, generating mock clone for %s", req.URL)
	page := &pipeline.GeneratedPage{
		HTML: fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><title>%s</title></head>\n<body>\n<main>\n<h1>%s</h1>\n<p>Cloned from %s</p>\n</main>\n</body>\n</html>\n", analysis.Title, analysis.Title, req.URL),
	}
	if req.IncludeStyling {
		page.CSS = "body { font-family: system-ui; margin: 0; }\nmain { max-width: 960px; margin: 0 auto; padding: 2rem; }\n"
	}
	return page, nil
}

// mockSteps simulates staged collaborator progress while honoring
// cancellation, so per-stage timeouts behave the same as in production.
func mockSteps(ctx context.Context, report pipeline.ProgressFunc, message string) error {
	for _, pct := range []float64{20, 50, 80} {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
		report(pct, message)
	}
	return nil
}
