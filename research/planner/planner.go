// Package planner turns the user query into a structured report plan: a
// title plus 3 to 5 sections, each anchored by one searchable key question.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/llm"
)

const (
	minSections = 3
	maxSections = 5
	// maxContextSnippets caps the exploratory snippets fed to the prompt.
	maxContextSnippets = 3
)

// Planner creates report plans on the reasoning tier, optionally primed
// with a quick exploratory search.
type Planner struct {
	llm    llm.Caller
	search research.SearchClient

	// Objectives and Deliverables are user-supplied steering lists,
	// both optional.
	Objectives   []string
	Deliverables []string
}

// New creates a planner. search may be nil to skip exploratory context.
func New(caller llm.Caller, search research.SearchClient) *Planner {
	return &Planner{llm: caller, search: search}
}

const planSystemPrompt = `You are a research planning assistant. Given a research query, design a report outline.
Respond with ONLY a JSON object of this exact shape:
{"report_title": "...", "report_outline": [{"title": "...", "key_question": "..."}]}
Rules:
- 3 to 5 sections, each covering a distinct aspect of the query.
- Every key_question must be a self-contained question usable verbatim as a web search query.
- No markdown, no commentary, JSON only.`

// Plan produces a valid report plan for the query. LLM or parse failures
// degrade to a single-section fallback plan instead of an error.
func (p *Planner) Plan(ctx context.Context, query string) *research.ReportPlan {
	contextSnippets := p.exploratoryContext(ctx, query)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n", query)
	if len(p.Objectives) > 0 {
		sb.WriteString("\nObjectives:\n")
		for _, o := range p.Objectives {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}
	if len(p.Deliverables) > 0 {
		sb.WriteString("\nDeliverables:\n")
		for _, d := range p.Deliverables {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}
	if len(contextSnippets) > 0 {
		sb.WriteString("\nPreliminary context from a quick search:\n")
		for _, s := range contextSnippets {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}

	raw, err := p.llm.Generate(ctx, llm.TierReasoning, planSystemPrompt, sb.String())
	if err != nil {
		log.Warn("planner: llm call failed, using fallback plan: %v", err)
		return FallbackPlan(query)
	}

	plan, err := parsePlan(raw)
	if err != nil {
		log.Warn("planner: %v, using fallback plan", err)
		return FallbackPlan(query)
	}
	return plan
}

// exploratoryContext runs one best-effort search and returns up to three
// short snippets. Failures are logged and ignored.
func (p *Planner) exploratoryContext(ctx context.Context, query string) []string {
	if p.search == nil {
		return nil
	}
	results, err := p.search.SearchWeb(ctx, query)
	if err != nil {
		log.Debug("planner: exploratory search failed: %v", err)
		return nil
	}

	snippets := make([]string, 0, maxContextSnippets)
	for _, r := range results {
		s := strings.TrimSpace(r.Snippet)
		if s == "" {
			continue
		}
		if len(s) > 300 {
			s = s[:300]
		}
		snippets = append(snippets, s)
		if len(snippets) == maxContextSnippets {
			break
		}
	}
	return snippets
}

func parsePlan(raw string) (*research.ReportPlan, error) {
	jsonText := llm.ExtractJSON(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("parse plan: no JSON object in response")
	}

	var plan research.ReportPlan
	if err := json.Unmarshal([]byte(jsonText), &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	if plan.ReportTitle == "" || len(plan.ReportOutline) == 0 {
		return nil, fmt.Errorf("parse plan: empty title or outline")
	}
	if len(plan.ReportOutline) < minSections || len(plan.ReportOutline) > maxSections {
		return nil, fmt.Errorf("parse plan: %d sections, want %d to %d",
			len(plan.ReportOutline), minSections, maxSections)
	}
	if !plan.Valid() {
		return nil, fmt.Errorf("parse plan: section with empty title or key question")
	}
	return &plan, nil
}

// FallbackPlan is the degenerate single-section plan used when planning
// fails. It keeps the run viable: the section key question is the query.
func FallbackPlan(query string) *research.ReportPlan {
	return &research.ReportPlan{
		ReportTitle: query,
		ReportOutline: []research.ReportSection{
			{Title: "Main Research", KeyQuestion: query},
		},
	}
}
