package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/llm"
)

// Generator produces the final report from the plan and the accumulated
// learnings.
type Generator struct {
	llm llm.Caller

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

// New creates a report generator.
func New(caller llm.Caller) *Generator {
	return &Generator{llm: caller, now: time.Now}
}

const reportSystemPrompt = `You are a research writer producing a comprehensive Markdown report.
Rules:
- Target at least 1500 words; cover every section of the outline in depth.
- Cite facts with bracketed source indices like [3], using ONLY the indices listed with the findings. Never invent an index or a URL.
- Do NOT write a References or Sources section; it is appended automatically.
- Output the Markdown document only, without surrounding code fences.`

// Generate renders the final Markdown report. On LLM failure it degrades
// to the emergency report; both paths end with a References section and a
// generation timestamp, so the result is always a complete document.
func (g *Generator) Generate(ctx context.Context, plan *research.ReportPlan, learnings []research.Learning) string {
	idx := BuildSourceIndex(learnings)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Report title: %s\n\nOutline:\n", plan.ReportTitle)
	for i, section := range plan.ReportOutline {
		fmt.Fprintf(&sb, "%d. %s\n   Key question: %s\n", i+1, section.Title, section.KeyQuestion)
	}
	sb.WriteString("\nResearch findings:\n")
	for _, l := range learnings {
		if k, ok := idx.Index(strings.TrimSpace(l.Source)); ok {
			fmt.Fprintf(&sb, "- [%d] %s\n", k, l.Text)
		} else {
			fmt.Fprintf(&sb, "- %s\n", l.Text)
		}
	}

	raw, err := g.llm.Generate(ctx, llm.TierReasoning, reportSystemPrompt, sb.String())
	if err != nil || strings.TrimSpace(raw) == "" {
		log.Warn("report generation failed, using emergency report: %v", err)
		return g.Emergency(plan.ReportTitle, learnings)
	}

	body := LinkCitations(stripArtifacts(raw), idx)
	body += referencesSection(citedIndices(body, idx), idx)
	body += timestampLine(g.now())
	return body
}

// Emergency builds a minimal report directly from the learnings, grouped
// by source. It is the fallback when report generation fails and the
// whole-run fallback when no learnings exist at all.
func (g *Generator) Emergency(title string, learnings []research.Learning) string {
	idx := BuildSourceIndex(learnings)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString("*Automatic report generation was unavailable; findings are listed verbatim.*\n")

	if idx.Len() == 0 {
		sb.WriteString("\nNo valid source URLs were cited.\n")
		for _, l := range learnings {
			fmt.Fprintf(&sb, "\n- %s", l.Text)
		}
		if len(learnings) > 0 {
			sb.WriteString("\n")
		}
	} else {
		var cited []int
		for k := 1; k <= idx.Len(); k++ {
			u, _ := idx.URL(k)
			fmt.Fprintf(&sb, "\n## [%d](%s) %s\n\n", k, u, idx.label(u))
			for _, l := range learnings {
				if strings.TrimSpace(l.Source) == u {
					fmt.Fprintf(&sb, "- %s [%d](%s)\n", l.Text, k, u)
				}
			}
			cited = append(cited, k)
		}
		// Learnings with no usable source still belong in the report.
		var unsourced []research.Learning
		for _, l := range learnings {
			if _, ok := idx.Index(strings.TrimSpace(l.Source)); !ok {
				unsourced = append(unsourced, l)
			}
		}
		if len(unsourced) > 0 {
			sb.WriteString("\n## Additional findings\n\n")
			for _, l := range unsourced {
				fmt.Fprintf(&sb, "- %s\n", l.Text)
			}
		}
		sb.WriteString(referencesSection(cited, idx))
	}

	sb.WriteString(timestampLine(g.now()))
	return sb.String()
}

// RenderHTML converts a Markdown report to standalone HTML, for consumers
// that display reports in a browser.
func RenderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	return string(markdown.Render(doc, renderer))
}
