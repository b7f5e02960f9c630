package llm

import "strings"

// ExtractJSON pulls the first JSON object or array out of an LLM response.
// Models routinely wrap JSON in markdown fences or prefix it with prose, so
// the extractor strips fences first and then scans for the first balanced
// {...} or [...] span. Returns the empty string when nothing JSON-like is
// found.
func ExtractJSON(text string) string {
	text = StripFences(text)

	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start := objStart
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
	}
	if start == -1 {
		return ""
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// StripFences removes leading/trailing markdown code fences from a model
// response, tolerating a language tag on the opening fence.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl != -1 {
		// Drop the language tag line, e.g. "json".
		first := strings.TrimSpace(text[:nl])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
