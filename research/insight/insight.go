// Package insight extracts cited learnings for a specific question from
// retrieved chunks, then synthesizes near-duplicate learnings into
// consolidated ones.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/llm"
)

// retrievalTopK is how many chunks are pulled from the vector store per
// question.
const retrievalTopK = 10

// Insight is the structured outcome of answering one specific question.
type Insight struct {
	Answer            string              `json:"answer"`
	Learnings         []research.Learning `json:"learnings"`
	Analysis          string              `json:"analysis"`
	FollowUpQuestions []string            `json:"followUpQuestions"`
}

// Generator runs insight extraction against the vector store.
type Generator struct {
	llm   llm.Caller
	store research.VectorStore
}

// New creates a generator over the given caller and store.
func New(caller llm.Caller, store research.VectorStore) *Generator {
	return &Generator{llm: caller, store: store}
}

const insightSystemPrompt = `You are a research analyst. Answer the specific question using ONLY the provided source excerpts.
Respond with ONLY a JSON object of this exact shape:
{"answer": "...", "learnings": [{"text": "...", "source": "https://..."}], "analysis": "...", "followUpQuestions": ["..."]}
Rules:
- Each learning is one self-contained factual statement backed by an excerpt; set source to that excerpt's URL.
- Do not invent facts or URLs.
- followUpQuestions lists open questions the excerpts raise but do not answer.`

// Generate answers the specific question from the store's content. The
// original query gives broader framing in the prompt. A store retrieval
// error is returned; LLM output that cannot be parsed as JSON degrades to
// heuristic extraction.
func (g *Generator) Generate(ctx context.Context, specificQuestion, originalQuery string) (*Insight, error) {
	chunks, err := g.store.Search(ctx, specificQuestion, retrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}
	if len(chunks) == 0 {
		return &Insight{}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Broader research topic: %s\n", originalQuery)
	fmt.Fprintf(&sb, "Specific question: %s\n\nSource excerpts:\n", specificQuestion)
	for i, c := range chunks {
		fmt.Fprintf(&sb, "\n[Excerpt %d] URL: %s\nTitle: %s\n%s\n",
			i+1, c.Chunk.Metadata.URL, c.Chunk.Metadata.Title, c.Chunk.Text)
	}

	raw, err := g.llm.Generate(ctx, llm.TierDefault, insightSystemPrompt, sb.String())
	if err != nil {
		return nil, fmt.Errorf("insight generation: %w", err)
	}

	insight := parseInsight(raw)
	insight.FollowUpQuestions = normalizeQuestions(insight.FollowUpQuestions)
	insight.Learnings = dropEmptyLearnings(insight.Learnings)
	return insight, nil
}

// parseInsight tries strict JSON first, then falls back to heuristic
// section extraction on free-form output.
func parseInsight(raw string) *Insight {
	if jsonText := llm.ExtractJSON(raw); jsonText != "" {
		var insight Insight
		if err := json.Unmarshal([]byte(jsonText), &insight); err == nil {
			return &insight
		}
	}
	log.Warn("insight: response is not valid JSON, extracting sections heuristically")
	return extractSections(raw)
}

// extractSections recovers an insight from free-form text by locating
// section markers like "Answer:", "Learnings:", "Analysis:" and
// "Follow-up questions:". Bullet lines under learnings and follow-ups
// become individual items.
func extractSections(raw string) *Insight {
	insight := &Insight{}
	section := ""
	var answer, analysis []string

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(line, "#*"))
		lower := strings.ToLower(trimmed)

		switch {
		case strings.HasPrefix(lower, "answer"):
			section = "answer"
			if rest := markerRest(trimmed); rest != "" {
				answer = append(answer, rest)
			}
			continue
		case strings.HasPrefix(lower, "learning"):
			section = "learnings"
			continue
		case strings.HasPrefix(lower, "analysis"):
			section = "analysis"
			if rest := markerRest(trimmed); rest != "" {
				analysis = append(analysis, rest)
			}
			continue
		case strings.HasPrefix(lower, "follow"):
			section = "followups"
			continue
		}

		if trimmed == "" {
			continue
		}
		switch section {
		case "answer":
			answer = append(answer, trimmed)
		case "analysis":
			analysis = append(analysis, trimmed)
		case "learnings":
			if item := bulletText(trimmed); item != "" {
				insight.Learnings = append(insight.Learnings, research.Learning{Text: item})
			}
		case "followups":
			if item := bulletText(trimmed); item != "" {
				insight.FollowUpQuestions = append(insight.FollowUpQuestions, item)
			}
		}
	}

	insight.Answer = strings.Join(answer, " ")
	insight.Analysis = strings.Join(analysis, " ")
	return insight
}

// markerRest returns the text after the first colon on a marker line.
func markerRest(line string) string {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

// bulletText strips a leading list marker; plain lines pass through.
func bulletText(line string) string {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	// "1. item" style
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

func normalizeQuestions(questions []string) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if !strings.HasSuffix(q, "?") {
			q += "?"
		}
		out = append(out, q)
	}
	return out
}

func dropEmptyLearnings(learnings []research.Learning) []research.Learning {
	out := make([]research.Learning, 0, len(learnings))
	for _, l := range learnings {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		l.Text = strings.TrimSpace(l.Text)
		out = append(out, l)
	}
	return out
}
