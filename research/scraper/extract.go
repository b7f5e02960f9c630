package scraper

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// extractReadableText turns raw HTML into cleaned plain text plus the page
// title. The title is read from the raw document because sanitization
// strips head elements; script, style and boilerplate navigation elements
// are removed before text extraction.
func extractReadableText(html string) (text, title string, err error) {
	if raw, rawErr := goquery.NewDocumentFromReader(strings.NewReader(html)); rawErr == nil {
		title = strings.TrimSpace(raw.Find("title").First().Text())
	}

	html = sanitizer.Sanitize(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	var sb strings.Builder
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			sb.WriteString(t)
			sb.WriteString("\n\n")
		}
	})

	text = strings.TrimSpace(sb.String())
	if text == "" {
		// Fall back to whole-body text for pages without semantic markup.
		text = collapseWhitespace(doc.Find("body").Text())
	}
	return text, title, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// rankRelevantChunks splits content into paragraph chunks and scores each
// by term overlap with the query, returning the top k. Scoring is a cheap
// lexical heuristic; semantic ranking happens later in the vector store.
func rankRelevantChunks(content, query string, k int) []string {
	if k <= 0 || strings.TrimSpace(content) == "" {
		return nil
	}

	terms := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()`)
		if len(w) > 2 {
			terms[w] = true
		}
	}

	paragraphs := strings.Split(content, "\n\n")
	type scored struct {
		text  string
		score int
		pos   int
	}
	var candidates []scored
	for i, p := range paragraphs {
		p = strings.TrimSpace(p)
		if len(p) < 40 {
			continue
		}
		score := 0
		lower := strings.ToLower(p)
		for term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		candidates = append(candidates, scored{text: p, score: score, pos: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pos < candidates[j].pos
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	chunks := make([]string, 0, k)
	for _, c := range candidates[:k] {
		chunks = append(chunks, c.text)
	}
	return chunks
}
