// Package research defines the shared domain types and interfaces of the
// deep research orchestrator: search results, scraped documents, learnings,
// knowledge gaps, report plans and the run configuration.
//
// Concrete implementations live in the subpackages (search, scraper,
// vectorstore, planner, insight, gap, report, progress) and are composed by
// the orchestrator subpackage. Every component accepts interfaces declared
// here so tests can substitute in-memory fakes.
package research
