package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/smallnest/deepresearch/research"
)

// Record is one indexed chunk: its embedding plus the chunk itself.
// The ID is url + "-" + chunk position.
type Record struct {
	ID     string
	Values []float32
	Chunk  research.TextChunk
}

// MemoryStore is an in-memory vector index with cosine top-k search.
// Stages of a run are serialized, so no locking is needed; concurrent runs
// each get their own store.
type MemoryStore struct {
	records []Record
}

// NewMemoryStore creates an empty index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends records to the index.
func (s *MemoryStore) Add(records ...Record) {
	s.records = append(s.records, records...)
}

// Len returns the number of indexed records.
func (s *MemoryStore) Len() int {
	return len(s.records)
}

// Clear empties the index. It is called at the start of every run.
func (s *MemoryStore) Clear() {
	s.records = s.records[:0]
}

// Search returns the top-k records by cosine similarity to the query
// embedding.
func (s *MemoryStore) Search(query []float32, k int) ([]research.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if len(s.records) == 0 {
		return []research.ScoredChunk{}, nil
	}

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(s.records))
	for i, rec := range s.records {
		scores[i] = scored{index: i, score: CosineSimilarity(query, rec.Values)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]research.ScoredChunk, k)
	for i := 0; i < k; i++ {
		results[i] = research.ScoredChunk{
			Chunk: s.records[scores[i].index].Chunk,
			Score: scores[i].score,
		}
	}
	return results, nil
}

// CosineSimilarity calculates cosine similarity between two float32
// vectors. Mismatched or zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
