package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
)

// Supported output formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

var defaultHeadings = config.Headings{
	OneLine:   "One-line summary",
	Summary:   "Summary",
	KeyPoints: "Key points",
	Source:    "Source",
}

// Render produces the artifact for s in the given format.
func Render(format string, s *article.Summary, h config.Headings) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatMarkdown:
		return []byte(Markdown(s, h)), nil
	case FormatHTML:
		return HTML(s, h)
	case FormatJSON:
		return JSON(s)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Extension returns the file extension for format, including the dot.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatHTML:
		return ".html"
	case FormatJSON:
		return ".json"
	default:
		return ".md"
	}
}

// Markdown lays out the summary as title, one-line summary, summary,
// numbered key points and source link, always in that order.
func Markdown(s *article.Summary, h config.Headings) string {
	h = FillHeadings(h)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", h.OneLine, s.OneLineSummary)
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", h.Summary, s.DetailedSummary)
	fmt.Fprintf(&b, "## %s\n\n", h.KeyPoints)
	for i, p := range s.KeyPoints {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	fmt.Fprintf(&b, "\n## %s\n\n%s\n", h.Source, s.SourceURL)
	return b.String()
}

// HTML renders the markdown layout as a standalone HTML page.
func HTML(s *article.Summary, h config.Headings) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(s, h)), &body); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(s.Title))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// JSON encodes the summary with the contract's field names.
func JSON(s *article.Summary) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return append(data, '\n'), nil
}

// FillHeadings replaces empty section headings with the English defaults.
func FillHeadings(h config.Headings) config.Headings {
	if h.OneLine == "" {
		h.OneLine = defaultHeadings.OneLine
	}
	if h.Summary == "" {
		h.Summary = defaultHeadings.Summary
	}
	if h.KeyPoints == "" {
		h.KeyPoints = defaultHeadings.KeyPoints
	}
	if h.Source == "" {
		h.Source = defaultHeadings.Source
	}
	return h
}
