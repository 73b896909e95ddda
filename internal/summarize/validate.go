package summarize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
)

// Leading bullets or numbering a model tends to add to key points.
var listMarkerExpr = regexp.MustCompile(`^(?:[-*]\s+|[•·]\s*|\d{1,2}[.)]\s+|\d{1,2}、\s*)`)

// CharCount counts user-perceived characters: runes of the NFC form with
// whitespace runs collapsed and the ends trimmed.
func CharCount(s string) int {
	return utf8.RuneCountInString(collapse(norm.NFC.String(s)))
}

// Coerce turns a raw candidate into a summary bound to content. It fixes
// cosmetic problems but leaves length bounds to Validate.
func Coerce(c *Candidate, content *article.Content) *article.Summary {
	s := &article.Summary{
		Title:           collapse(c.Title),
		OneLineSummary:  collapse(c.OneLineSummary),
		DetailedSummary: collapse(c.DetailedSummary),
	}

	if content != nil {
		if content.Title != "" && content.Title != article.UnknownTitle {
			s.Title = content.Title
		}
		s.SourceURL = content.SourceURL
	}
	if s.Title == "" {
		s.Title = article.UnknownTitle
	}

	for _, p := range c.KeyPoints {
		p = collapse(listMarkerExpr.ReplaceAllString(strings.TrimSpace(p), ""))
		if p != "" {
			s.KeyPoints = append(s.KeyPoints, p)
		}
	}
	return s
}

// Validate checks s against the field bounds. Each length bound is widened
// by tolerance characters. A nil result means s is acceptable.
func Validate(s *article.Summary, tolerance int) []article.Violation {
	if tolerance < 0 {
		tolerance = 0
	}
	var out []article.Violation
	add := func(field, format string, args ...any) {
		out = append(out, article.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.Title) == "" {
		add("title", "is empty")
	}

	if n := CharCount(s.OneLineSummary); n == 0 {
		add("one_line_summary", "is empty")
	} else if n > OneLineMax+tolerance {
		add("one_line_summary", "has %d characters, at most %d allowed", n, OneLineMax)
	}

	if n := CharCount(s.DetailedSummary); n < DetailedMin-tolerance || n > DetailedMax+tolerance {
		add("detailed_summary", "has %d characters, %d to %d required", n, DetailedMin, DetailedMax)
	}

	if n := len(s.KeyPoints); n < KeyPointsMin || n > KeyPointsMax {
		add("key_points", "has %d items, %d to %d required", n, KeyPointsMin, KeyPointsMax)
	}
	for i, p := range s.KeyPoints {
		if n := CharCount(p); n < KeyPointMinLen-tolerance || n > KeyPointMaxLen+tolerance {
			add(fmt.Sprintf("key_points[%d]", i), "has %d characters, %d to %d required", n, KeyPointMinLen, KeyPointMaxLen)
		}
	}

	if strings.TrimSpace(s.SourceURL) == "" {
		add("source_url", "is empty")
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
