package planner

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
	response string
	err      error
	lastUser string
	lastTier llm.Tier
}

func (s *stubCaller) Generate(ctx context.Context, tier llm.Tier, system, user string) (string, error) {
	s.lastTier = tier
	s.lastUser = user
	return s.response, s.err
}

type stubSearch struct {
	results []research.SearchResult
	err     error
}

func (s *stubSearch) SearchWeb(ctx context.Context, query string) ([]research.SearchResult, error) {
	return s.results, s.err
}

const goodPlanJSON = `{
  "report_title": "Raft vs Paxos",
  "report_outline": [
    {"title": "Background", "key_question": "What problem do consensus algorithms solve?"},
    {"title": "Raft", "key_question": "How does the Raft algorithm work?"},
    {"title": "Paxos", "key_question": "How does the Paxos algorithm work?"}
  ]
}`

func TestPlanParsesValidOutline(t *testing.T) {
	caller := &stubCaller{response: goodPlanJSON}
	p := New(caller, nil)

	plan := p.Plan(context.Background(), "Compare Raft and Paxos")

	require.True(t, plan.Valid())
	assert.Equal(t, "Raft vs Paxos", plan.ReportTitle)
	assert.Len(t, plan.ReportOutline, 3)
	assert.Equal(t, llm.TierReasoning, caller.lastTier)
}

func TestPlanAcceptsFencedJSON(t *testing.T) {
	caller := &stubCaller{response: "```json\n" + goodPlanJSON + "\n```"}
	p := New(caller, nil)

	plan := p.Plan(context.Background(), "Compare Raft and Paxos")
	require.True(t, plan.Valid())
	assert.Len(t, plan.ReportOutline, 3)
}

func TestPlanIncludesObjectivesAndContext(t *testing.T) {
	caller := &stubCaller{response: goodPlanJSON}
	search := &stubSearch{results: []research.SearchResult{
		{Snippet: "Raft was introduced in 2014."},
		{Snippet: "Paxos dates to 1989."},
		{Snippet: ""},
		{Snippet: "Both tolerate minority failures."},
		{Snippet: "A fourth snippet that must be cut."},
	}}
	p := New(caller, search)
	p.Objectives = []string{"Focus on production systems"}
	p.Deliverables = []string{"Latency comparison table"}

	p.Plan(context.Background(), "Compare Raft and Paxos")

	assert.Contains(t, caller.lastUser, "Focus on production systems")
	assert.Contains(t, caller.lastUser, "Latency comparison table")
	assert.Contains(t, caller.lastUser, "Raft was introduced in 2014.")
	assert.Contains(t, caller.lastUser, "Both tolerate minority failures.")
	assert.NotContains(t, caller.lastUser, "fourth snippet")
}

func TestPlanSearchFailureIgnored(t *testing.T) {
	caller := &stubCaller{response: goodPlanJSON}
	p := New(caller, &stubSearch{err: errors.New("engine down")})

	plan := p.Plan(context.Background(), "Compare Raft and Paxos")
	require.True(t, plan.Valid())
	assert.Len(t, plan.ReportOutline, 3)
}

func TestPlanFallbackOnLLMError(t *testing.T) {
	p := New(&stubCaller{err: errors.New("timeout")}, nil)

	plan := p.Plan(context.Background(), "Explain the CAP theorem")

	require.True(t, plan.Valid())
	assert.Equal(t, "Explain the CAP theorem", plan.ReportTitle)
	require.Len(t, plan.ReportOutline, 1)
	assert.Equal(t, "Main Research", plan.ReportOutline[0].Title)
	assert.Equal(t, "Explain the CAP theorem", plan.ReportOutline[0].KeyQuestion)
}

func TestPlanFallbackOnBadOutput(t *testing.T) {
	cases := map[string]string{
		"not json":       "Here is my plan: first research, then write.",
		"empty outline":  `{"report_title": "T", "report_outline": []}`,
		"too few":        `{"report_title": "T", "report_outline": [{"title": "A", "key_question": "Q?"}]}`,
		"too many":       `{"report_title": "T", "report_outline": [{"title":"1","key_question":"q"},{"title":"2","key_question":"q"},{"title":"3","key_question":"q"},{"title":"4","key_question":"q"},{"title":"5","key_question":"q"},{"title":"6","key_question":"q"}]}`,
		"blank question": `{"report_title": "T", "report_outline": [{"title":"1","key_question":""},{"title":"2","key_question":"q"},{"title":"3","key_question":"q"}]}`,
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			p := New(&stubCaller{response: response}, nil)
			plan := p.Plan(context.Background(), "some query")
			require.True(t, plan.Valid())
			assert.Equal(t, "Main Research", plan.ReportOutline[0].Title)
		})
	}
}
