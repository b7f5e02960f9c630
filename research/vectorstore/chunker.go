// Package vectorstore chunks scraped content, obtains embeddings from an
// external endpoint and serves cosine top-k retrieval from an in-memory
// index. Each research run owns one store and clears it at start.
package vectorstore

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/smallnest/deepresearch/research"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the overlap between consecutive chunks.
	DefaultChunkOverlap = 200
	// minChunkLength drops fragments too short to be meaningful.
	minChunkLength = 10
)

// Chunker splits document text into paragraph-aware chunks.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given size and overlap; zero values
// select the defaults.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " "}),
		),
	}
}

// Chunk splits text into research.TextChunk values carrying source
// metadata. Chunks shorter than 10 characters after trimming are dropped.
func (c *Chunker) Chunk(url, title, text string) ([]research.TextChunk, error) {
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]research.TextChunk, 0, len(parts))
	position := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) < minChunkLength {
			continue
		}
		chunks = append(chunks, research.TextChunk{
			Text: p,
			Metadata: research.ChunkMetadata{
				URL:      url,
				Title:    title,
				Position: position,
			},
		})
		position++
	}
	return chunks, nil
}
