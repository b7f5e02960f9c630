// Package orchestrator runs the deep research loop: plan, then iterate
// search, scrape, vectorize, insight and gap analysis per key question
// until the plan is answered or the depth and time budgets run out, then
// render the final report.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/gap"
	"github.com/smallnest/deepresearch/research/insight"
	"github.com/smallnest/deepresearch/research/llm"
	"github.com/smallnest/deepresearch/research/planner"
	"github.com/smallnest/deepresearch/research/progress"
	"github.com/smallnest/deepresearch/research/report"
	"github.com/smallnest/deepresearch/research/scraper"
	"github.com/smallnest/deepresearch/research/vectorstore"
)

// stepsPerQuestion is the step-estimate weight of one queued question:
// search, scrape, vectorize, insight and gap analysis.
const stepsPerQuestion = 5

// Orchestrator owns the components of one research run. Instances are
// single-use per run; concurrent runs each build their own.
type Orchestrator struct {
	cfg research.Config

	search   research.SearchClient
	scraper  research.Scraper
	store    research.VectorStore
	embedder research.Embedder
	llm      llm.Caller
	sink     progress.Sink
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSearchClient sets the web search engine.
func WithSearchClient(c research.SearchClient) Option {
	return func(o *Orchestrator) { o.search = c }
}

// WithScraper sets the content scraper.
func WithScraper(s research.Scraper) Option {
	return func(o *Orchestrator) { o.scraper = s }
}

// WithVectorStore sets the vector store. Unset, one is built over the
// embedder.
func WithVectorStore(s research.VectorStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithEmbedder sets the embedding client.
func WithEmbedder(e research.Embedder) Option {
	return func(o *Orchestrator) { o.embedder = e }
}

// WithLLM sets the tiered LLM caller.
func WithLLM(c llm.Caller) Option {
	return func(o *Orchestrator) { o.llm = c }
}

// WithSink sets the progress event sink. Unset, events are logged only.
func WithSink(s progress.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// New creates an orchestrator for one run. The LLM caller and embedder
// are required; a missing search client or scraper degrades those stages
// to no results.
func New(cfg research.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg.Normalize()}
	for _, opt := range opts {
		opt(o)
	}
	if o.llm == nil {
		return nil, fmt.Errorf("orchestrator: an LLM caller is required")
	}
	if o.embedder == nil && o.store == nil {
		return nil, fmt.Errorf("orchestrator: an embedder or vector store is required")
	}
	if o.store == nil {
		o.store = vectorstore.NewManager(o.embedder)
	}
	if o.scraper == nil {
		o.scraper = scraper.New(
			scraper.WithConcurrency(o.cfg.ConcurrencyLimit),
			scraper.WithTopKChunks(o.cfg.ExtractTopKChunks),
		)
	}
	return o, nil
}

// runState is the mutable state of one run.
type runState struct {
	originalQuery string
	plan          *research.ReportPlan

	queue        []string
	allSources   map[string]string
	allLearnings []research.Learning

	currentDepth   int
	completedSteps int
	totalSteps     int
	shouldContinue bool

	startTime time.Time
}

func (s *runState) snapshot(maxDepth int) progress.Snapshot {
	return progress.Snapshot{
		CurrentDepth:   s.currentDepth,
		MaxDepth:       maxDepth,
		CompletedSteps: s.completedSteps,
		TotalSteps:     s.totalSteps,
		QueueLength:    len(s.queue),
	}
}

// Run executes the full research loop for the query. It always returns a
// result with a non-empty FinalReport; the error is non-nil only when the
// run failed outright, in which case the result carries whatever partial
// data was accumulated.
func (o *Orchestrator) Run(ctx context.Context, query string) (*research.ResearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	updater := progress.NewUpdater(o.sink)
	o.store.Clear()

	state := &runState{
		originalQuery:  query,
		allSources:     make(map[string]string),
		shouldContinue: true,
		startTime:      time.Now(),
	}

	// PLANNING
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogPlan, Status: research.StatusPending,
		Message: "Creating report plan for: " + query,
	})
	p := planner.New(o.llm, o.search)
	p.Objectives = o.cfg.Objectives
	p.Deliverables = o.cfg.Deliverables
	state.plan = p.Plan(ctx, query)
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogPlan, Status: research.StatusComplete,
		Message: fmt.Sprintf("Plan ready: %q with %d sections", state.plan.ReportTitle, len(state.plan.ReportOutline)),
	})

	for _, section := range state.plan.ReportOutline {
		state.queue = append(state.queue, section.KeyQuestion)
	}
	state.completedSteps = 1
	state.totalSteps = 1 + len(state.plan.ReportOutline)*stepsPerQuestion + 1
	updater.Init(o.cfg.MaxDepth, state.totalSteps)
	updater.Update(progress.EventActivity, "Research plan created", state.snapshot(o.cfg.MaxDepth))

	if ctx.Err() != nil {
		return o.finish(ctx, state, updater)
	}

	// ITERATING
	insights := insight.New(o.llm, o.store)
	synthesizer := insight.NewSynthesizer(o.llm, o.embedder)
	analyzer := gap.New(o.llm)

	for state.shouldContinue && len(state.queue) > 0 &&
		state.currentDepth < o.cfg.MaxDepth && ctx.Err() == nil {

		q := state.queue[0]
		state.queue = state.queue[1:]
		o.runIteration(ctx, state, updater, insights, synthesizer, analyzer, q)

		if len(state.queue) == 0 {
			state.shouldContinue = false
			log.Info("research queue drained after depth %d", state.currentDepth)
		}
		if state.currentDepth >= o.cfg.MaxDepth {
			state.shouldContinue = false
			log.Info("max depth %d reached", o.cfg.MaxDepth)
		}
		if time.Since(state.startTime) >= o.cfg.Timeout {
			state.shouldContinue = false
			log.Info("time budget exhausted after %s", time.Since(state.startTime))
		}
	}

	return o.finish(ctx, state, updater)
}

// runIteration performs one depth step for the key question q. Stage
// failures degrade the iteration instead of aborting it.
func (o *Orchestrator) runIteration(ctx context.Context, state *runState, updater *progress.Updater,
	insights *insight.Generator, synthesizer *insight.Synthesizer, analyzer *gap.Analyzer, q string) {

	state.currentDepth++
	depth := state.currentDepth
	updater.Update(progress.EventDepthDelta,
		fmt.Sprintf("Starting research iteration %d: %s", depth, q),
		state.snapshot(o.cfg.MaxDepth))

	// Search and curate.
	curated := o.searchAndCurate(ctx, state, updater, q)
	if ctx.Err() != nil {
		return
	}
	if len(curated) == 0 {
		return
	}

	// Scrape.
	scraped := o.scrapeSources(ctx, state, updater, curated, q)
	if ctx.Err() != nil {
		return
	}

	// Vectorize.
	o.vectorize(ctx, state, updater, scraped)
	if ctx.Err() != nil {
		return
	}

	// Insight.
	iterationLearnings := o.generateInsights(ctx, state, updater, insights, synthesizer, q)
	if ctx.Err() != nil {
		return
	}

	// Gap analysis and queue management.
	o.analyzeGaps(ctx, state, updater, analyzer, q, iterationLearnings)
}

func (o *Orchestrator) searchAndCurate(ctx context.Context, state *runState, updater *progress.Updater, q string) []research.SearchResult {
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogSearch, Status: research.StatusPending,
		Message: "Searching: " + q, Depth: state.currentDepth,
	})

	var results []research.SearchResult
	if o.search != nil {
		var err error
		results, err = o.search.SearchWeb(ctx, q)
		if err != nil {
			updater.AddLogEntry(research.LogEntry{
				Type: research.LogSearch, Status: research.StatusWarning,
				Message: "Search failed: " + err.Error(), Depth: state.currentDepth,
			})
			results = nil
		}
	}

	for _, r := range results {
		norm := research.NormalizeURL(r.URL)
		if _, ok := state.allSources[norm]; !ok {
			state.allSources[norm] = r.Title
		}
	}

	curated := research.CurateResults(results, state.currentDepth)
	if len(curated) == 0 {
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogSearch, Status: research.StatusWarning,
			Message: "No usable results for: " + q, Depth: state.currentDepth,
		})
		return nil
	}

	state.completedSteps++
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogSearch, Status: research.StatusComplete,
		Message: fmt.Sprintf("Curated %d sources", len(curated)), Depth: state.currentDepth,
	})
	updater.Update(progress.EventActivity,
		fmt.Sprintf("Found %d sources for: %s", len(curated), q),
		state.snapshot(o.cfg.MaxDepth))
	return curated
}

func (o *Orchestrator) scrapeSources(ctx context.Context, state *runState, updater *progress.Updater,
	curated []research.SearchResult, q string) []research.ScrapeResult {

	urls := make([]string, len(curated))
	for i, r := range curated {
		urls[i] = r.URL
	}
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogScrape, Status: research.StatusPending,
		Message: fmt.Sprintf("Scraping %d sources", len(urls)), Depth: state.currentDepth,
	})

	results := o.scraper.ScrapeAll(ctx, urls, state.originalQuery)

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
			continue
		}
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogScrape, Status: research.StatusWarning,
			Message: fmt.Sprintf("Scrape failed for %s: %s", r.URL, r.Error), Depth: state.currentDepth,
		})
		updater.Update(progress.EventWarning,
			fmt.Sprintf("Could not read %s: %s", r.URL, r.Error),
			state.snapshot(o.cfg.MaxDepth))
	}

	if succeeded > 0 {
		state.completedSteps++
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogScrape, Status: research.StatusComplete,
			Message: fmt.Sprintf("Scraped %d/%d sources", succeeded, len(urls)), Depth: state.currentDepth,
		})
		updater.Update(progress.EventActivity,
			fmt.Sprintf("Read %d of %d sources", succeeded, len(urls)),
			state.snapshot(o.cfg.MaxDepth))
	}
	return results
}

func (o *Orchestrator) vectorize(ctx context.Context, state *runState, updater *progress.Updater, scraped []research.ScrapeResult) {
	added := 0
	for _, r := range scraped {
		if !r.Success || strings.TrimSpace(r.ProcessedContent) == "" {
			continue
		}
		n, err := o.store.AddDocument(ctx, r.URL, r.Title, r.ProcessedContent)
		if err != nil {
			updater.AddLogEntry(research.LogEntry{
				Type: research.LogVectorize, Status: research.StatusWarning,
				Message: fmt.Sprintf("Indexing failed for %s: %v", r.URL, err), Depth: state.currentDepth,
			})
			continue
		}
		added += n
	}

	if added > 0 {
		state.completedSteps++
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogVectorize, Status: research.StatusComplete,
			Message: fmt.Sprintf("Indexed %d chunks", added), Depth: state.currentDepth,
		})
		updater.Update(progress.EventActivityDelta,
			fmt.Sprintf("Indexed %d content chunks", added),
			state.snapshot(o.cfg.MaxDepth))
	}
}

func (o *Orchestrator) generateInsights(ctx context.Context, state *runState, updater *progress.Updater,
	insights *insight.Generator, synthesizer *insight.Synthesizer, q string) []research.Learning {

	if o.store.Len() == 0 && len(state.allLearnings) == 0 {
		return nil
	}

	result, err := insights.Generate(ctx, q, state.originalQuery)
	if err != nil {
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogSynthesis, Status: research.StatusWarning,
			Message: "Insight generation failed: " + err.Error(), Depth: state.currentDepth,
		})
		return nil
	}
	if result.Analysis != "" {
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogReasoning, Status: research.StatusComplete,
			Message: result.Analysis, Depth: state.currentDepth,
		})
	}

	learnings := synthesizer.Synthesize(ctx, result.Learnings)
	if len(learnings) == 0 {
		return nil
	}

	state.allLearnings = append(state.allLearnings, learnings...)
	state.completedSteps++
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogSynthesis, Status: research.StatusComplete,
		Message: fmt.Sprintf("Extracted %d learnings", len(learnings)), Depth: state.currentDepth,
	})
	updater.Update(progress.EventActivity,
		fmt.Sprintf("Learned %d new facts about: %s", len(learnings), q),
		state.snapshot(o.cfg.MaxDepth))
	return learnings
}

func (o *Orchestrator) analyzeGaps(ctx context.Context, state *runState, updater *progress.Updater,
	analyzer *gap.Analyzer, q string, iterationLearnings []research.Learning) {

	result := analyzer.AnalyzeKnowledgeGaps(ctx, q, iterationLearnings)
	if result.IsComplete {
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogAnalyze, Status: research.StatusComplete,
			Message: "Question answered: " + q, Depth: state.currentDepth,
		})
		return
	}

	worst := result.RemainingGaps[0]
	for _, g := range result.RemainingGaps[1:] {
		if g.Severity > worst.Severity {
			worst = g
		}
	}
	updater.AddLogEntry(research.LogEntry{
		Type: research.LogAnalyze, Status: research.StatusComplete,
		Message: "Knowledge gap: " + worst.Text, Depth: state.currentDepth,
	})

	if state.currentDepth >= o.cfg.MaxDepth || ctx.Err() != nil {
		return
	}

	queries := analyzer.GenerateTargetedQueries(ctx, worst, state.originalQuery, q)
	if len(queries) == 0 {
		return
	}

	state.completedSteps++
	state.totalSteps += len(queries) * stepsPerQuestion
	// Targeted queries run first, then the key question is re-evaluated.
	state.queue = append(append(append([]string{}, queries...), q), state.queue...)

	updater.AddLogEntry(research.LogEntry{
		Type: research.LogAnalyze, Status: research.StatusComplete,
		Message: fmt.Sprintf("Queued %d targeted queries", len(queries)), Depth: state.currentDepth,
	})
	updater.Update(progress.EventActivityDelta,
		fmt.Sprintf("Digging deeper with %d follow-up queries", len(queries)),
		state.snapshot(o.cfg.MaxDepth))
}

// finish runs the reporting stage and assembles the result. Cancellation
// with no learnings is the one failure path; everything else produces a
// complete result with a terminal complete event.
func (o *Orchestrator) finish(ctx context.Context, state *runState, updater *progress.Updater) (*research.ResearchResult, error) {
	cancelled := ctx.Err() != nil

	if cancelled && len(state.allLearnings) == 0 {
		msg := "research cancelled before any findings were collected"
		updater.AddLogEntry(research.LogEntry{
			Type: research.LogThought, Status: research.StatusError, Message: msg,
		})
		updater.Update(progress.EventError, msg, state.snapshot(o.cfg.MaxDepth))
		return o.assembleResult(state, updater,
			fmt.Sprintf("# Research Failed\n\n%s: %v\n", msg, ctx.Err())), fmt.Errorf("%s: %w", msg, ctx.Err())
	}

	updater.AddLogEntry(research.LogEntry{
		Type: research.LogThought, Status: research.StatusPending,
		Message: "Generating final report",
	})
	// A cancelled context still reaches the generator: its LLM call will
	// fail fast and degrade to the emergency report.
	generator := report.New(o.llm)
	finalReport := generator.Generate(ctx, state.plan, state.allLearnings)
	state.completedSteps++

	updater.AddLogEntry(research.LogEntry{
		Type: research.LogThought, Status: research.StatusComplete,
		Message: "Final report ready",
	})
	updater.Update(progress.EventComplete, "Research complete", state.snapshot(o.cfg.MaxDepth))

	state.totalSteps = state.completedSteps
	return o.assembleResult(state, updater, finalReport), nil
}

func (o *Orchestrator) assembleResult(state *runState, updater *progress.Updater, finalReport string) *research.ResearchResult {
	insights := make([]string, len(state.allLearnings))
	for i, l := range state.allLearnings {
		insights[i] = l.Text
	}
	return &research.ResearchResult{
		Query:       state.originalQuery,
		Insights:    insights,
		FinalReport: finalReport,
		Sources:     state.allSources,
		Metrics: research.Metrics{
			TimeElapsed:         time.Since(state.startTime),
			IterationsCompleted: state.currentDepth,
			SourcesExamined:     len(state.allSources),
		},
		CompletedSteps: state.completedSteps,
		TotalSteps:     state.totalSteps,
		Logs:           updater.Entries(),
	}
}
