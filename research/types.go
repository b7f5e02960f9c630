package research

import (
	"context"
	"time"
)

// SearchResult is a single ranked hit returned by a web search engine.
type SearchResult struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Snippet       string  `json:"snippet"`
	PublishedDate string  `json:"publishedDate,omitempty"`
	Source        string  `json:"source,omitempty"`
	Relevance     float64 `json:"relevance,omitempty"`
}

// ScrapeResult is the per-URL outcome of a scrape attempt. A failed scrape
// carries an error message and empty content; it never aborts the batch.
type ScrapeResult struct {
	URL              string   `json:"url"`
	Success          bool     `json:"success"`
	Title            string   `json:"title,omitempty"`
	PublishedDate    string   `json:"publishedDate,omitempty"`
	ProcessedContent string   `json:"processed_content,omitempty"`
	RelevantChunks   []string `json:"relevant_chunks,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// ChunkMetadata identifies where a text chunk came from.
type ChunkMetadata struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Position int    `json:"position"`
}

// TextChunk is a slice of scraped content ready for embedding.
type TextChunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a chunk returned from a vector similarity search.
type ScoredChunk struct {
	Chunk TextChunk `json:"chunk"`
	Score float64   `json:"score"`
}

// Learning is a single cited factual or analytical point extracted from
// retrieved content. Source is preserved verbatim through synthesis.
type Learning struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Gap is a specific piece of missing information preventing a key question
// from being answered. Severity is 1 (minor) to 3 (critical).
type Gap struct {
	Text       string  `json:"text"`
	Severity   int     `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// GapAnalysisResult reports whether a key question is sufficiently answered.
// IsComplete implies RemainingGaps is empty; otherwise at least one gap is
// present.
type GapAnalysisResult struct {
	IsComplete    bool  `json:"is_complete"`
	RemainingGaps []Gap `json:"remaining_gaps"`
}

// ReportSection is one section of the report plan, anchored by the specific
// sub-question it is responsible for answering.
type ReportSection struct {
	Title       string `json:"title"`
	KeyQuestion string `json:"key_question"`
}

// ReportPlan is the structured skeleton of the final report. The outline is
// non-empty; it is created once by the planner and read-only afterward.
type ReportPlan struct {
	ReportTitle   string          `json:"report_title"`
	ReportOutline []ReportSection `json:"report_outline"`
}

// Valid reports whether the plan satisfies the planner contract.
func (p *ReportPlan) Valid() bool {
	if p == nil || len(p.ReportOutline) == 0 {
		return false
	}
	for _, s := range p.ReportOutline {
		if s.Title == "" || s.KeyQuestion == "" {
			return false
		}
	}
	return true
}

// LogType classifies a research log entry by the stage that produced it.
type LogType string

const (
	LogPlan      LogType = "plan"
	LogSearch    LogType = "search"
	LogScrape    LogType = "scrape"
	LogVectorize LogType = "vectorize"
	LogSynthesis LogType = "synthesis"
	LogAnalyze   LogType = "analyze"
	LogReasoning LogType = "reasoning"
	LogThought   LogType = "thought"
)

// LogStatus is the outcome recorded on a log entry.
type LogStatus string

const (
	StatusPending  LogStatus = "pending"
	StatusComplete LogStatus = "complete"
	StatusWarning  LogStatus = "warning"
	StatusError    LogStatus = "error"
)

// LogEntry is one chronological record of run activity. Entries are append
// only and never dropped; timestamps are for display.
type LogEntry struct {
	Type      LogType   `json:"type"`
	Status    LogStatus `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Depth     int       `json:"depth,omitempty"`
}

// Metrics summarizes resource usage of a completed run.
type Metrics struct {
	TimeElapsed         time.Duration `json:"timeElapsed_ms"`
	IterationsCompleted int           `json:"iterationsCompleted"`
	SourcesExamined     int           `json:"sourcesExamined"`
}

// ResearchResult is the final output of a run. FinalReport is always
// present, falling back to an emergency report when generation fails.
type ResearchResult struct {
	Query          string            `json:"query"`
	Insights       []string          `json:"insights"`
	FinalReport    string            `json:"finalReport"`
	Sources        map[string]string `json:"sources"`
	Metrics        Metrics           `json:"metrics"`
	CompletedSteps int               `json:"completedSteps"`
	TotalSteps     int               `json:"totalSteps"`
	Logs           []LogEntry        `json:"logs"`
}

// SearchClient executes a single query against an external search engine.
// Implementations return up to an engine-dependent number of ranked results.
type SearchClient interface {
	SearchWeb(ctx context.Context, query string) ([]SearchResult, error)
}

// Scraper fetches and extracts readable text for a batch of URLs. The query
// is used to rank the most relevant chunks per source. A single-URL failure
// is surfaced on its ScrapeResult record, never as an error.
type Scraper interface {
	ScrapeAll(ctx context.Context, urls []string, query string) []ScrapeResult
}

// Embedder obtains fixed-dimension vector embeddings for a batch of texts.
// The returned slice has one embedding per input text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore chunks, embeds and indexes documents and serves top-k
// semantic retrieval. It is owned by a single run and cleared at run start.
type VectorStore interface {
	AddDocument(ctx context.Context, url, title, text string) (int, error)
	Search(ctx context.Context, query string, k int) ([]ScoredChunk, error)
	Clear()
	Len() int
}
