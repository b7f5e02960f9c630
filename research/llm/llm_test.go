package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// mockModel is a simple mock for llms.Model.
type mockModel struct {
	responses []string
	callCount int
	err       error
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	resp := "default response"
	if m.callCount < len(m.responses) {
		resp = m.responses[m.callCount]
	}
	m.callCount++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: resp}},
	}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", nil
}

func TestGenerateUsesTierModel(t *testing.T) {
	reasoning := &mockModel{responses: []string{"reasoning answer"}}
	def := &mockModel{responses: []string{"default answer"}}

	client := NewClientWithModels(map[Tier]llms.Model{
		TierReasoning: reasoning,
		TierDefault:   def,
	}, time.Second)

	out, err := client.Generate(context.Background(), TierReasoning, "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "reasoning answer", out)
	assert.Equal(t, 1, reasoning.callCount)
	assert.Equal(t, 0, def.callCount)
}

func TestGenerateFallsBackToDefaultTier(t *testing.T) {
	def := &mockModel{responses: []string{"fallback"}}
	client := NewClientWithModels(map[Tier]llms.Model{TierDefault: def}, time.Second)

	out, err := client.Generate(context.Background(), TierLight, "", "user")
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestGeneratePropagatesError(t *testing.T) {
	def := &mockModel{err: errors.New("provider down")}
	client := NewClientWithModels(map[Tier]llms.Model{TierDefault: def}, time.Second)

	_, err := client.Generate(context.Background(), TierDefault, "", "user")
	assert.ErrorContains(t, err, "provider down")
}

func TestNewClientRequiresDefaultModel(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "fenced with language tag",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "prose around object",
			in:   "Here is the result:\n{\"a\": {\"b\": 2}}\nHope that helps!",
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "array before object",
			in:   `["x", "y"] trailing`,
			want: `["x", "y"]`,
		},
		{
			name: "braces inside strings",
			in:   `{"text": "a } tricky { value"}`,
			want: `{"text": "a } tricky { value"}`,
		},
		{
			name: "escaped quote inside string",
			in:   `{"text": "she said \"}\" loudly"}`,
			want: `{"text": "she said \"}\" loudly"}`,
		},
		{
			name: "nothing json-like",
			in:   "no structured data here",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", StripFences("plain"))
}
