// Package report renders the final Markdown report: one reasoning-tier
// LLM call structured by the plan, then deterministic post-processing that
// links inline citations and appends a References section.
package report

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smallnest/deepresearch/research"
)

// SourceIndex maps citation indices to source URLs and back. Indices are
// assigned 1..N over the unique http(s) sources in sorted URL order, so
// the same learnings always yield the same numbering.
type SourceIndex struct {
	byIndex map[int]string
	byURL   map[string]int
	titles  map[string]string
}

// BuildSourceIndex assigns citation indices to the unique http(s) sources
// found in the learnings. Non-web sources are ignored.
func BuildSourceIndex(learnings []research.Learning) *SourceIndex {
	titles := make(map[string]string)
	seen := make(map[string]bool)
	var urls []string
	for _, l := range learnings {
		src := strings.TrimSpace(l.Source)
		if !isHTTPURL(src) || seen[src] {
			if isHTTPURL(src) && l.Title != "" && titles[src] == "" {
				titles[src] = l.Title
			}
			continue
		}
		seen[src] = true
		urls = append(urls, src)
		if l.Title != "" {
			titles[src] = l.Title
		}
	}
	sort.Strings(urls)

	idx := &SourceIndex{
		byIndex: make(map[int]string, len(urls)),
		byURL:   make(map[string]int, len(urls)),
		titles:  titles,
	}
	for i, u := range urls {
		idx.byIndex[i+1] = u
		idx.byURL[u] = i + 1
	}
	return idx
}

// Len returns the number of indexed sources.
func (s *SourceIndex) Len() int { return len(s.byIndex) }

// URL returns the source URL for an index, if assigned.
func (s *SourceIndex) URL(k int) (string, bool) {
	u, ok := s.byIndex[k]
	return u, ok
}

// Index returns the citation index for a source URL, if assigned.
func (s *SourceIndex) Index(u string) (int, bool) {
	k, ok := s.byURL[u]
	return k, ok
}

// label returns the reference line text for a URL: its recorded title, or
// its host when no title is known.
func (s *SourceIndex) label(u string) string {
	if t := s.titles[u]; t != "" {
		return t
	}
	if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return u
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// bareCitation matches a [K] citation, capturing a following "(" when the
// citation is already a link.
var bareCitation = regexp.MustCompile(`\[(\d+)\](\()?`)

// LinkCitations rewrites every bare [K] whose index is assigned into
// [K](URL). Existing [K](...) links are left untouched, as are indices
// outside the map.
func LinkCitations(markdown string, idx *SourceIndex) string {
	return bareCitation.ReplaceAllStringFunc(markdown, func(m string) string {
		sub := bareCitation.FindStringSubmatch(m)
		if sub[2] == "(" {
			return m
		}
		k, err := strconv.Atoi(sub[1])
		if err != nil {
			return m
		}
		u, ok := idx.byIndex[k]
		if !ok {
			return m
		}
		return fmt.Sprintf("[%d](%s)", k, u)
	})
}

// citedIndices returns the sorted set of indices that appear as [K](URL)
// links in the markdown with URL matching the map.
func citedIndices(markdown string, idx *SourceIndex) []int {
	linked := regexp.MustCompile(`\[(\d+)\]\(([^)\s]+)\)`)
	seen := make(map[int]bool)
	for _, m := range linked.FindAllStringSubmatch(markdown, -1) {
		k, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if u, ok := idx.byIndex[k]; ok && u == m[2] {
			seen[k] = true
		}
	}
	out := make([]int, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// referencesSection renders the References block for the cited indices.
func referencesSection(indices []int, idx *SourceIndex) string {
	var sb strings.Builder
	sb.WriteString("\n\n## References\n\n")
	for _, k := range indices {
		u := idx.byIndex[k]
		fmt.Fprintf(&sb, "%d. [%s](%s)\n", k, idx.label(u), u)
	}
	return sb.String()
}

// stripArtifacts removes wrapper fences and stray lead-in labels that
// models sometimes emit around the report body.
func stripArtifacts(markdown string) string {
	text := strings.TrimSpace(markdown)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	for _, label := range []string{"Report:", "Final Report:", "markdown"} {
		if strings.HasPrefix(text, label) {
			text = strings.TrimSpace(strings.TrimPrefix(text, label))
		}
	}
	return text
}

// timestampLine formats the trailing generation line.
func timestampLine(now time.Time) string {
	return fmt.Sprintf("\n\n---\n*Report generated on %s*\n", now.UTC().Format("2006-01-02 15:04 UTC"))
}
