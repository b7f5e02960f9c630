// Package gap decides whether a key question has been answered by the
// latest learnings and, when not, proposes ranked gaps and targeted
// follow-up search queries.
package gap

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
	maxGaps = 3
	// maxTargetedQueries caps queries generated per gap.
	maxTargetedQueries = 2
	// fallbackQueryWords is how many words of the gap text the fallback
	// query keeps.
	fallbackQueryWords = 6
)

// Analyzer evaluates research completeness on the reasoning tier.
type Analyzer struct {
	llm llm.Caller
}

// New creates an analyzer.
func New(caller llm.Caller) *Analyzer {
	return &Analyzer{llm: caller}
}

const analyzeSystemPrompt = `You judge whether research findings answer a question.
Respond with ONLY a JSON object of this exact shape:
{"is_complete": true|false, "remaining_gaps": [{"text": "...", "severity": 1|2|3, "confidence": 0.0-1.0}]}
Rules:
- is_complete true means the findings fully answer the question; remaining_gaps must then be empty.
- List at most 3 gaps, most critical first. severity: 3 critical, 2 important, 1 minor.
- confidence is how certain you are the gap is real.`

// AnalyzeKnowledgeGaps reports whether the latest learnings answer the key
// question. Empty learnings short-circuit to a critical "need initial
// information" gap; LLM or parse failures return a conservative
// re-evaluation gap. Neither path returns an error.
func (a *Analyzer) AnalyzeKnowledgeGaps(ctx context.Context, keyQuestion string, latestLearnings []research.Learning) research.GapAnalysisResult {
	if len(latestLearnings) == 0 {
		return research.GapAnalysisResult{
			IsComplete: false,
			RemainingGaps: []research.Gap{
				{Text: "Need initial information", Severity: 3, Confidence: 0.5},
			},
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nLatest findings:\n", keyQuestion)
	for _, l := range latestLearnings {
		fmt.Fprintf(&sb, "- %s\n", l.Text)
	}

	raw, err := a.llm.Generate(ctx, llm.TierReasoning, analyzeSystemPrompt, sb.String())
	if err != nil {
		log.Warn("gap analysis failed, assuming incomplete: %v", err)
		return fallbackResult(keyQuestion)
	}

	result, err := parseGapResult(raw)
	if err != nil {
		log.Warn("gap analysis: %v, assuming incomplete", err)
		return fallbackResult(keyQuestion)
	}
	return result
}

func fallbackResult(keyQuestion string) research.GapAnalysisResult {
	return research.GapAnalysisResult{
		IsComplete: false,
		RemainingGaps: []research.Gap{
			{Text: "Re-evaluate findings for " + keyQuestion, Severity: 3, Confidence: 0.5},
		},
	}
}

func parseGapResult(raw string) (research.GapAnalysisResult, error) {
	jsonText := llm.ExtractJSON(raw)
	if jsonText == "" {
		return research.GapAnalysisResult{}, fmt.Errorf("no JSON object in response")
	}

	var result research.GapAnalysisResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return research.GapAnalysisResult{}, err
	}

	if result.IsComplete {
		result.RemainingGaps = nil
		return result, nil
	}
	if len(result.RemainingGaps) == 0 {
		return research.GapAnalysisResult{}, fmt.Errorf("incomplete with no gaps")
	}
	if len(result.RemainingGaps) > maxGaps {
		result.RemainingGaps = result.RemainingGaps[:maxGaps]
	}
	for i := range result.RemainingGaps {
		g := &result.RemainingGaps[i]
		if g.Severity < 1 {
			g.Severity = 1
		} else if g.Severity > 3 {
			g.Severity = 3
		}
		if g.Confidence < 0 {
			g.Confidence = 0
		} else if g.Confidence > 1 {
			g.Confidence = 1
		}
	}
	return result, nil
}

const queriesSystemPrompt = `You write web search queries that address ONE specific knowledge gap.
Respond with ONLY a JSON array of 1 or 2 strings.
Rules:
- Each query is 3 to 7 words, specific to the gap, not the broad topic.
- You may add a site: filter when an authoritative source is obvious.`

// GenerateTargetedQueries proposes one or two short search queries for the
// gap. On any failure it falls back to the first words of the gap text.
func (a *Analyzer) GenerateTargetedQueries(ctx context.Context, g research.Gap, originalQuery, keyQuestion string) []string {
	user := fmt.Sprintf("Broad topic: %s\nKey question: %s\nKnowledge gap: %s\n",
		originalQuery, keyQuestion, g.Text)

	raw, err := a.llm.Generate(ctx, llm.TierReasoning, queriesSystemPrompt, user)
	if err != nil {
		log.Warn("targeted query generation failed: %v", err)
		return []string{fallbackQuery(g.Text)}
	}

	queries, err := parseQueries(raw)
	if err != nil {
		log.Warn("targeted query generation: %v", err)
		return []string{fallbackQuery(g.Text)}
	}
	return queries
}

func parseQueries(raw string) ([]string, error) {
	jsonText := llm.ExtractJSON(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var queries []string
	if err := json.Unmarshal([]byte(jsonText), &queries); err != nil {
		return nil, err
	}

	out := make([]string, 0, maxTargetedQueries)
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == maxTargetedQueries {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty query list")
	}
	return out, nil
}

// fallbackQuery is the first words of the gap text.
func fallbackQuery(gapText string) string {
	words := strings.Fields(gapText)
	if len(words) > fallbackQueryWords {
		words = words[:fallbackQueryWords]
	}
	return strings.Join(words, " ")
}
