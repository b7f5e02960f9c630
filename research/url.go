package research

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for deduplication: lowercase scheme,
// host and path, trailing slash stripped, utm_* tracking params and the
// fragment dropped. Normalization is idempotent. Unparseable input is
// returned lowercased as-is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(strings.ToLower(u.Path), "/")
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// CurateResults dedupes search results by normalized URL, preserving the
// engine's ranking, and truncates to the depth-dependent cap
// max(15-depth, 5). Later iterations keep fewer results so the loop stays
// focused.
func CurateResults(results []SearchResult, depth int) []SearchResult {
	cap := 15 - depth
	if cap < 5 {
		cap = 5
	}

	seen := make(map[string]bool, len(results))
	curated := make([]SearchResult, 0, len(results))
	for _, r := range results {
		key := NormalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		curated = append(curated, r)
		if len(curated) >= cap {
			break
		}
	}
	return curated
}

// HostOf returns the hostname of a URL, or the input when it cannot be
// parsed. Used for display fallbacks in citations.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
