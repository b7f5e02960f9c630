package research

import "time"

// Config holds the per-run options recognized by the orchestrator. Zero
// values are replaced by the defaults from DefaultConfig.
type Config struct {
	// MaxDepth is the hard cap on loop iterations.
	MaxDepth int

	// MaxTokens is informational and used for prompt sizing.
	MaxTokens int

	// Timeout is the overall wall-clock budget for a run.
	Timeout time.Duration

	// ConcurrencyLimit bounds the scraper's per-URL fetch fan-out.
	ConcurrencyLimit int

	// ExtractTopKChunks is the per-source relevance ranking depth.
	ExtractTopKChunks int

	// Objectives and Deliverables are optional user-supplied guidance
	// forwarded to the planner prompt.
	Objectives   []string
	Deliverables []string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:          7,
		MaxTokens:         25000,
		Timeout:           270 * time.Second,
		ConcurrencyLimit:  3,
		ExtractTopKChunks: 5,
	}
}

// Normalize fills unset fields with defaults and clamps nonsense values.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = d.ConcurrencyLimit
	}
	if c.ExtractTopKChunks <= 0 {
		c.ExtractTopKChunks = d.ExtractTopKChunks
	}
	return c
}
