package database

import "github.com/TobiSchelling/ArticleDigest/internal/article"

// ArchivedSummary is a summary row from the archive.
type ArchivedSummary struct {
	ID              string
	SourceURL       string
	Title           string
	Publisher       *string
	OneLineSummary  string
	DetailedSummary string
	KeyPoints       []string
	CreatedAt       *string
}

// Summary converts the row back into the artifact record.
func (s *ArchivedSummary) Summary() *article.Summary {
	return &article.Summary{
		Title:           s.Title,
		OneLineSummary:  s.OneLineSummary,
		DetailedSummary: s.DetailedSummary,
		KeyPoints:       s.KeyPoints,
		SourceURL:       s.SourceURL,
	}
}
