package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/deepresearch/research"
)

// vecEmbedder returns a fixed embedding per exact text.
type vecEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *vecEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out, nil
}

func TestSynthesizeMergesNearDuplicates(t *testing.T) {
	learnings := []research.Learning{
		{Text: "Raft elects one leader per term.", Source: "https://a.example.com"},
		{Text: "Each Raft term has a single elected leader.", Source: "https://b.example.com"},
		{Text: "Paxos has no distinguished leader role.", Source: "https://c.example.com"},
	}
	embedder := &vecEmbedder{vectors: map[string][]float32{
		learnings[0].Text: {1, 0.05, 0},
		learnings[1].Text: {1, 0, 0.05},
		learnings[2].Text: {0, 1, 0},
	}}
	caller := &stubCaller{responses: []string{"Raft elects exactly one leader in every term."}}

	s := NewSynthesizer(caller, embedder)
	out := s.Synthesize(context.Background(), learnings)

	require.Len(t, out, 2)
	assert.Equal(t, "Raft elects exactly one leader in every term.", out[0].Text)
	assert.Equal(t, "https://a.example.com", out[0].Source, "first source is representative")
	assert.Equal(t, learnings[2], out[1])
	assert.Equal(t, 1, caller.calls, "one consolidation call per multi-learning cluster")
}

func TestSynthesizeAllDistinct(t *testing.T) {
	learnings := []research.Learning{
		{Text: "a"}, {Text: "b"}, {Text: "c"},
	}
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0, 0, 1},
	}}
	caller := &stubCaller{responses: []string{"unused"}}

	s := NewSynthesizer(caller, embedder)
	out := s.Synthesize(context.Background(), learnings)

	assert.Equal(t, learnings, out)
	assert.Zero(t, caller.calls)
}

func TestSynthesizeNeverGrows(t *testing.T) {
	learnings := []research.Learning{
		{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"},
	}
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"a": {1, 0}, "b": {1, 0.01}, "c": {1, 0.02}, "d": {0, 1},
	}}
	s := NewSynthesizer(&stubCaller{responses: []string{"merged"}}, embedder)

	out := s.Synthesize(context.Background(), learnings)
	assert.LessOrEqual(t, len(out), len(learnings))
	assert.Len(t, out, 2)
}

func TestSynthesizeFewerThanTwoPassThrough(t *testing.T) {
	s := NewSynthesizer(&stubCaller{}, &vecEmbedder{})

	one := []research.Learning{{Text: "only one"}}
	assert.Equal(t, one, s.Synthesize(context.Background(), one))
	assert.Empty(t, s.Synthesize(context.Background(), nil))
}

func TestSynthesizeEmbeddingFailureKeepsInput(t *testing.T) {
	learnings := []research.Learning{{Text: "a"}, {Text: "b"}}
	s := NewSynthesizer(&stubCaller{}, &vecEmbedder{err: errors.New("embed down")})

	out := s.Synthesize(context.Background(), learnings)
	assert.Equal(t, learnings, out)
}

func TestSynthesizeConsolidationFailureKeepsFirst(t *testing.T) {
	learnings := []research.Learning{
		{Text: "a", Source: "https://a.example.com"},
		{Text: "b", Source: "https://b.example.com"},
	}
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"a": {1, 0}, "b": {1, 0.01},
	}}
	s := NewSynthesizer(&stubCaller{err: errors.New("rate limited")}, embedder)

	out := s.Synthesize(context.Background(), learnings)
	require.Len(t, out, 1)
	assert.Equal(t, learnings[0], out[0])
}

func TestClusterDeterministic(t *testing.T) {
	embeddings := [][]float32{
		{1, 0}, {1, 0.01}, {0, 1}, {1, 0.02}, nil,
	}
	first := clusterBySimilarity(embeddings, 0.85)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, clusterBySimilarity(embeddings, 0.85))
	}
	require.Len(t, first, 3)
	assert.Equal(t, []int{0, 1, 3}, first[0])
	assert.Equal(t, []int{2}, first[1])
	assert.Equal(t, []int{4}, first[2])
}
