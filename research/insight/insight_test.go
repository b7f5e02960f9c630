package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/llm"
)

type stubCaller struct {
	responses []string
	err       error
	calls     int
	lastUser  string
}

func (s *stubCaller) Generate(ctx context.Context, tier llm.Tier, system, user string) (string, error) {
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return resp, nil
}

type stubStore struct {
	chunks []research.ScoredChunk
	err    error
	lastK  int
}

func (s *stubStore) AddDocument(ctx context.Context, url, title, text string) (int, error) {
	return 0, nil
}
func (s *stubStore) Search(ctx context.Context, query string, k int) ([]research.ScoredChunk, error) {
	s.lastK = k
	return s.chunks, s.err
}
func (s *stubStore) Clear()   {}
func (s *stubStore) Len() int { return len(s.chunks) }

func raftChunks() []research.ScoredChunk {
	return []research.ScoredChunk{
		{Chunk: research.TextChunk{
			Text:     "Raft elects a single leader per term.",
			Metadata: research.ChunkMetadata{URL: "https://raft.github.io", Title: "Raft"},
		}, Score: 0.9},
		{Chunk: research.TextChunk{
			Text:     "Paxos separates proposers and acceptors.",
			Metadata: research.ChunkMetadata{URL: "https://paxos.example.com", Title: "Paxos"},
		}, Score: 0.8},
	}
}

const insightJSON = `{
  "answer": "Raft uses leader election while Paxos uses proposers.",
  "learnings": [
    {"text": "Raft elects one leader per term.", "source": "https://raft.github.io"},
    {"text": "", "source": "https://ignored.example.com"},
    {"text": "Paxos has no distinguished leader role.", "source": "https://paxos.example.com"}
  ],
  "analysis": "The two algorithms differ in role structure.",
  "followUpQuestions": ["How does Raft handle split votes", "What is Multi-Paxos?"]
}`

func TestGenerateParsesJSON(t *testing.T) {
	caller := &stubCaller{responses: []string{insightJSON}}
	store := &stubStore{chunks: raftChunks()}
	g := New(caller, store)

	insight, err := g.Generate(context.Background(), "How do Raft and Paxos differ?", "consensus algorithms")
	require.NoError(t, err)

	assert.Equal(t, 10, store.lastK)
	assert.Contains(t, caller.lastUser, "https://raft.github.io")
	assert.Contains(t, caller.lastUser, "Raft elects a single leader per term.")

	assert.Equal(t, "Raft uses leader election while Paxos uses proposers.", insight.Answer)
	require.Len(t, insight.Learnings, 2, "empty-text learning must be dropped")
	assert.Equal(t, "https://raft.github.io", insight.Learnings[0].Source)

	require.Len(t, insight.FollowUpQuestions, 2)
	assert.Equal(t, "How does Raft handle split votes?", insight.FollowUpQuestions[0])
	assert.Equal(t, "What is Multi-Paxos?", insight.FollowUpQuestions[1])
}

func TestGenerateEmptyStore(t *testing.T) {
	g := New(&stubCaller{responses: []string{insightJSON}}, &stubStore{})

	insight, err := g.Generate(context.Background(), "q", "orig")
	require.NoError(t, err)
	assert.Empty(t, insight.Learnings)
	assert.Empty(t, insight.Answer)
}

func TestGenerateStoreError(t *testing.T) {
	g := New(&stubCaller{responses: []string{insightJSON}}, &stubStore{err: errors.New("embed down")})

	_, err := g.Generate(context.Background(), "q", "orig")
	assert.ErrorContains(t, err, "retrieve chunks")
}

func TestGenerateLLMError(t *testing.T) {
	g := New(&stubCaller{err: errors.New("rate limited")}, &stubStore{chunks: raftChunks()})

	_, err := g.Generate(context.Background(), "q", "orig")
	assert.ErrorContains(t, err, "insight generation")
}

func TestGenerateHeuristicFallback(t *testing.T) {
	freeForm := `Answer: Raft and Paxos both reach consensus but structure roles differently.

Learnings:
- Raft elects one leader per term.
- Paxos has no distinguished leader role.

Analysis: role structure is the key difference.

Follow-up questions:
1. How does Raft handle split votes
2. What is Multi-Paxos?`

	g := New(&stubCaller{responses: []string{freeForm}}, &stubStore{chunks: raftChunks()})

	insight, err := g.Generate(context.Background(), "q", "orig")
	require.NoError(t, err)

	assert.Contains(t, insight.Answer, "structure roles differently")
	require.Len(t, insight.Learnings, 2)
	assert.Equal(t, "Raft elects one leader per term.", insight.Learnings[0].Text)
	assert.Contains(t, insight.Analysis, "role structure")
	require.Len(t, insight.FollowUpQuestions, 2)
	assert.Equal(t, "How does Raft handle split votes?", insight.FollowUpQuestions[0])
}
