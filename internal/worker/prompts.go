package worker

import (
	"fmt"
	"strings"

	"github.com/sitecloner/api/internal/model"
	"github.com/sitecloner/api/internal/pipeline"
)

const (
	generationSystemPrompt = "You are an expert front-end developer. You rebuild web pages as clean, " +
		"self-contained HTML documents that visually match the original as closely as possible. " +
		"Respond with the HTML in a ```html code fence and, if styling is requested, the CSS in a ```css code fence."

	refinementSystemPrompt = "You are an expert front-end developer reviewing a generated clone of a web page. " +
		"Improve its visual fidelity to the original content. " +
		"Respond with the full revised HTML in a ```html code fence."

	// Scraped markup beyond this many characters is truncated in prompts to
	// stay inside the model's context window.
	maxPromptHTML = 60000
)

func buildGenerationPrompt(req *model.CloneRequest, analysis *pipeline.PageAnalysis, content *pipeline.PageContent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rebuild the page at %s as a single HTML document.\n\n", req.URL)
	fmt.Fprintf(&b, "Quality tier: %s\n", req.Quality)
	fmt.Fprintf(&b, "Include images: %t\nInclude styling: %t\n\n", req.IncludeImages, req.IncludeStyling)

	if analysis != nil {
		fmt.Fprintf(&b, "Page analysis:\n- Title: %s\n- Layout: %s\n", analysis.Title, analysis.LayoutType)
		if len(analysis.MainColors) > 0 {
			fmt.Fprintf(&b, "- Main colors: %s\n", strings.Join(analysis.MainColors, ", "))
		}
		if len(analysis.FontFamilies) > 0 {
			fmt.Fprintf(&b, "- Fonts: %s\n", strings.Join(analysis.FontFamilies, ", "))
		}
		b.WriteString("\n")
	}

	if req.CustomInstructions != "" {
		fmt.Fprintf(&b, "Additional instructions from the user:\n%s\n\n", req.CustomInstructions)
	}

	fmt.Fprintf(&b, "Original page markup:\n```html\n%s\n```\n", truncate(content.HTML, maxPromptHTML))
	return b.String()
}

func buildRefinementPrompt(req *model.CloneRequest, content *pipeline.PageContent, page *pipeline.GeneratedPage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The original page is %s.\n\n", req.URL)
	fmt.Fprintf(&b, "Original page text:\n%s\n\n", truncate(content.Text, 4000))
	fmt.Fprintf(&b, "Current generated clone:\n```html\n%s\n```\n\n", truncate(page.HTML, maxPromptHTML))
	b.WriteString("Fix missing sections, wrong ordering and obvious styling mismatches. Keep the document self-contained.\n")
	return b.String()
}

// extractFencedBlock returns the body of the first ```lang fenced code
// block in s, or "" if there is none.
func extractFencedBlock(s, lang string) string {
	marker := "```" + lang
	start := strings.Index(s, marker)
	if start < 0 {
		return ""
	}
	rest := s[start+len(marker):]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n<!-- truncated -->"
}
