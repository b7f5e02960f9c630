package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/llm"
	"github.com/smallnest/deepresearch/research/vectorstore"
)

// clusterThreshold is the cosine similarity above which two learnings are
// considered to state the same fact.
const clusterThreshold = 0.85

// Synthesizer merges near-duplicate learnings. Clustering is greedy
// single linkage over learning embeddings; each multi-learning cluster is
// consolidated by one LLM call.
type Synthesizer struct {
	llm      llm.Caller
	embedder research.Embedder
}

// NewSynthesizer creates a synthesizer over the given caller and embedder.
func NewSynthesizer(caller llm.Caller, embedder research.Embedder) *Synthesizer {
	return &Synthesizer{llm: caller, embedder: embedder}
}

const consolidateSystemPrompt = `You merge overlapping research findings. Given several statements of the same underlying fact, write ONE sentence that preserves all specifics (numbers, names, qualifiers). Respond with the sentence only.`

// Synthesize returns learnings with near-duplicates merged. Fewer than two
// learnings pass through unchanged, as does the input on embedding
// failure. Order follows the first member of each cluster.
func (s *Synthesizer) Synthesize(ctx context.Context, learnings []research.Learning) []research.Learning {
	if len(learnings) < 2 || s.embedder == nil {
		return learnings
	}

	texts := make([]string, len(learnings))
	for i, l := range learnings {
		texts[i] = l.Text
	}
	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		log.Warn("synthesis: embedding failed, keeping learnings as-is: %v", err)
		return learnings
	}

	clusters := clusterBySimilarity(embeddings, clusterThreshold)

	out := make([]research.Learning, 0, len(clusters))
	for _, cluster := range clusters {
		if len(cluster) == 1 {
			out = append(out, learnings[cluster[0]])
			continue
		}
		out = append(out, s.consolidate(ctx, learnings, cluster))
	}
	return out
}

// clusterBySimilarity groups indices by greedy single linkage: an item
// joins the first existing cluster containing any member within the
// threshold, otherwise starts a new cluster. Items with a nil embedding
// become singletons. Deterministic for a fixed input order.
func clusterBySimilarity(embeddings [][]float32, threshold float64) [][]int {
	var clusters [][]int
next:
	for i, emb := range embeddings {
		if emb != nil {
			for ci, cluster := range clusters {
				for _, j := range cluster {
					if embeddings[j] == nil {
						continue
					}
					if vectorstore.CosineSimilarity(emb, embeddings[j]) >= threshold {
						clusters[ci] = append(clusters[ci], i)
						continue next
					}
				}
			}
		}
		clusters = append(clusters, []int{i})
	}
	return clusters
}

// consolidate merges one cluster into a single learning. The first
// member's source is kept as representative; on LLM failure the first
// member passes through unchanged.
func (s *Synthesizer) consolidate(ctx context.Context, learnings []research.Learning, cluster []int) research.Learning {
	var sb strings.Builder
	sb.WriteString("Statements to merge:\n")
	for _, i := range cluster {
		fmt.Fprintf(&sb, "- %s\n", learnings[i].Text)
	}

	merged, err := s.llm.Generate(ctx, llm.TierDefault, consolidateSystemPrompt, sb.String())
	first := learnings[cluster[0]]
	if err != nil || strings.TrimSpace(merged) == "" {
		log.Warn("synthesis: consolidation failed for %d learnings: %v", len(cluster), err)
		return first
	}
	return research.Learning{
		Text:   strings.TrimSpace(merged),
		Source: first.Source,
		Title:  first.Title,
	}
}
