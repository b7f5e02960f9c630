// Command deepresearch runs one research query from the terminal and
// writes the resulting Markdown report to a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
	"github.com/smallnest/deepresearch/research/llm"
	"github.com/smallnest/deepresearch/research/orchestrator"
	"github.com/smallnest/deepresearch/research/progress"
	"github.com/smallnest/deepresearch/research/scraper"
	"github.com/smallnest/deepresearch/research/search"
	"github.com/smallnest/deepresearch/research/vectorstore"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	activityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	query := flag.String("query", "", "research query to run")
	depth := flag.Int("depth", 0, "max research iterations (default 7)")
	timeout := flag.Duration("timeout", 0, "overall time budget (default 4m30s)")
	out := flag.String("out", "report.md", "path of the Markdown report to write")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded: %v", err)
	}

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: deepresearch -query \"...\" [-depth N] [-timeout 4m30s] [-out report.md]")
		os.Exit(2)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, errorStyle.Render("OPENAI_API_KEY is required"))
		os.Exit(2)
	}

	model, err := llm.NewClient(llm.Config{
		APIKey:         apiKey,
		BaseURL:        os.Getenv("OPENAI_BASE_URL"),
		DefaultModel:   getEnv("RESEARCH_MODEL", "gpt-4o-mini"),
		ReasoningModel: os.Getenv("RESEARCH_REASONING_MODEL"),
		LightModel:     os.Getenv("RESEARCH_LIGHT_MODEL"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}

	var searchClient research.SearchClient
	switch {
	case os.Getenv("TAVILY_API_KEY") != "":
		searchClient, err = search.NewTavilyClient(os.Getenv("TAVILY_API_KEY"))
	case os.Getenv("BRAVE_API_KEY") != "":
		searchClient, err = search.NewBraveClient(os.Getenv("BRAVE_API_KEY"))
	default:
		err = fmt.Errorf("set TAVILY_API_KEY or BRAVE_API_KEY")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(2)
	}

	var embedder research.Embedder
	if base := os.Getenv("EMBEDDING_BASE_URL"); base != "" {
		embedder = vectorstore.NewHTTPEmbedder(base)
	} else {
		embedder = vectorstore.NewOpenAIEmbedder(apiKey,
			os.Getenv("EMBEDDING_MODEL"), os.Getenv("OPENAI_BASE_URL"))
	}

	cfg := research.DefaultConfig()
	if *depth > 0 {
		cfg.MaxDepth = *depth
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}

	var scraperOpts []scraper.Option
	scraperOpts = append(scraperOpts,
		scraper.WithConcurrency(cfg.ConcurrencyLimit),
		scraper.WithTopKChunks(cfg.ExtractTopKChunks))
	if converter := os.Getenv("CONVERTER_BASE_URL"); converter != "" {
		scraperOpts = append(scraperOpts, scraper.WithConverter(converter))
	}
	if service := os.Getenv("SCRAPE_SERVICE_URL"); service != "" {
		scraperOpts = append(scraperOpts, scraper.WithScrapeService(service))
	}

	sink := progress.NewChannelSink(256)

	o, err := orchestrator.New(cfg,
		orchestrator.WithLLM(model),
		orchestrator.WithSearchClient(searchClient),
		orchestrator.WithScraper(scraper.New(scraperOpts...)),
		orchestrator.WithEmbedder(embedder),
		orchestrator.WithSink(sink),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(headerStyle.Render("deepresearch"))
	fmt.Println(dimStyle.Render("query: " + *query))

	done := make(chan struct{})
	go func() {
		defer close(done)
		renderEvents(sink.Events())
	}()

	start := time.Now()
	result, runErr := o.Run(ctx, *query)
	sink.Close()
	<-done

	if runErr != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("research failed: "+runErr.Error()))
	}
	if result == nil {
		os.Exit(1)
	}

	if err := os.WriteFile(*out, []byte(result.FinalReport), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("write report: "+err.Error()))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("done in " + time.Since(start).Round(time.Second).String()))
	fmt.Printf("%s\n", dimStyle.Render(fmt.Sprintf(
		"iterations: %d  sources: %d  learnings: %d  report: %s",
		result.Metrics.IterationsCompleted, result.Metrics.SourcesExamined,
		len(result.Insights), *out)))

	if runErr != nil {
		os.Exit(1)
	}
}

// renderEvents prints the progress stream until the channel closes.
func renderEvents(events <-chan progress.Event) {
	var total int
	for e := range events {
		switch e.Type {
		case progress.EventProgressInit:
			total = e.Content.TotalSteps
			fmt.Println(dimStyle.Render(fmt.Sprintf("planned ~%d steps, max depth %d",
				total, e.Content.MaxDepth)))
		case progress.EventDepthDelta:
			fmt.Println(headerStyle.Render(fmt.Sprintf("— depth %d/%d —",
				e.Content.CurrentDepth, e.Content.MaxDepth)))
		case progress.EventWarning:
			fmt.Println(warnStyle.Render("warn: " + e.Content.Message))
		case progress.EventError:
			fmt.Println(errorStyle.Render("error: " + e.Content.Message))
		case progress.EventComplete:
			fmt.Println(activityStyle.Render(progressBar(e.Content.CompletedSteps,
				e.Content.TotalSteps) + " " + e.Content.Message))
		default:
			fmt.Println(activityStyle.Render(progressBar(e.Content.CompletedSteps,
				e.Content.TotalSteps) + " " + e.Content.Message))
		}
	}
}

// progressBar renders a fixed-width textual bar like [#####-----] 12/24.
func progressBar(completed, total int) string {
	const width = 10
	if total <= 0 {
		total = 1
	}
	filled := completed * width / total
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("#", filled), strings.Repeat("-", width-filled),
		completed, total)
}
