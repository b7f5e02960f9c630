package vectorstore

import (
	"context"
	"fmt"

	"github.com/smallnest/deepresearch/research"
)

// Manager composes the chunker, the embedder and the in-memory index into
// the research.VectorStore the orchestrator consumes.
type Manager struct {
	chunker  *Chunker
	embedder research.Embedder
	store    *MemoryStore
}

var _ research.VectorStore = (*Manager)(nil)

// NewManager creates a store manager around the given embedder.
func NewManager(embedder research.Embedder) *Manager {
	return &Manager{
		chunker:  NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		embedder: embedder,
		store:    NewMemoryStore(),
	}
}

// AddDocument chunks the text, embeds all chunks in one batch and indexes
// them. It returns the number of chunks indexed. An embedding failure
// rejects the whole document batch.
func (m *Manager) AddDocument(ctx context.Context, url, title, text string) (int, error) {
	chunks, err := m.chunker.Chunk(url, title, text)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed document %s: %w", url, err)
	}

	records := make([]Record, 0, len(chunks))
	for i, c := range chunks {
		if embeddings[i] == nil {
			continue
		}
		records = append(records, Record{
			ID:     fmt.Sprintf("%s-%d", url, c.Metadata.Position),
			Values: embeddings[i],
			Chunk:  c,
		})
	}
	m.store.Add(records...)
	return len(records), nil
}

// Search embeds the query and returns the top-k most similar chunks.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]research.ScoredChunk, error) {
	embeddings, err := m.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, fmt.Errorf("embed query: empty embedding")
	}
	return m.store.Search(embeddings[0], k)
}

// Clear empties the index.
func (m *Manager) Clear() {
	m.store.Clear()
}

// Len returns the number of indexed chunks.
func (m *Manager) Len() int {
	return m.store.Len()
}
