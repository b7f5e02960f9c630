package scraper

import (
	"net/url"
	"strings"
)

// URLType classifies a URL by the kind of document it points at, which
// decides whether it is fetched directly or routed through the converter.
type URLType string

const (
	TypeWeb  URLType = "web"
	TypeHTML URLType = "html"
	TypePDF  URLType = "pdf"
	TypeDOCX URLType = "docx"
)

// DetectURLType inspects the extension and path of a URL. Unknown types
// default to web.
func DetectURLType(raw string) URLType {
	u, err := url.Parse(raw)
	if err != nil {
		return TypeWeb
	}

	path := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(path, ".pdf"):
		return TypePDF
	case strings.HasSuffix(path, ".docx"), strings.HasSuffix(path, ".doc"):
		return TypeDOCX
	case strings.HasSuffix(path, ".html"), strings.HasSuffix(path, ".htm"):
		return TypeHTML
	}

	// Some hosts serve documents behind download paths without extensions.
	if strings.Contains(path, "/pdf/") || strings.Contains(strings.ToLower(u.RawQuery), "format=pdf") {
		return TypePDF
	}

	return TypeWeb
}

// isDocument reports whether the URL type needs the converter endpoint.
func (t URLType) isDocument() bool {
	return t == TypePDF || t == TypeDOCX
}
