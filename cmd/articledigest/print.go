package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
	"github.com/TobiSchelling/ArticleDigest/internal/database"
	"github.com/TobiSchelling/ArticleDigest/internal/pipeline"
	"github.com/TobiSchelling/ArticleDigest/internal/render"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	bodyStyle = lipgloss.NewStyle().Width(80)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB000"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

func printSteps(w io.Writer, steps []pipeline.StepResult) {
	for _, step := range steps {
		if step.Err != nil {
			fmt.Fprintf(w, "%s %s\n", errorStyle.Render("✗ "+step.Name), step.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", statusStyle.Render("✓ "+step.Name), infoStyle.Render(step.Summary))
	}
}

func printSummary(w io.Writer, s *article.Summary, h config.Headings) {
	h = render.FillHeadings(h)

	fmt.Fprintln(w, titleStyle.Render(s.Title))
	fmt.Fprintln(w, headingStyle.Render(h.OneLine))
	fmt.Fprintln(w, bodyStyle.Render(s.OneLineSummary))
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(h.Summary))
	fmt.Fprintln(w, bodyStyle.Render(s.DetailedSummary))
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(h.KeyPoints))
	for i, p := range s.KeyPoints {
		fmt.Fprintln(w, bodyStyle.Render(fmt.Sprintf("%d. %s", i+1, p)))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(h.Source))
	fmt.Fprintln(w, infoStyle.Render(s.SourceURL))
}

func printContent(w io.Writer, c *article.Content) {
	fmt.Fprintln(w, titleStyle.Render(c.Title))
	fmt.Fprintf(w, "%s %s\n", infoStyle.Render("Publisher:"), c.Publisher)
	fmt.Fprintf(w, "%s %s\n", infoStyle.Render("Published:"), c.PublishedAt)
	fmt.Fprintf(w, "%s %s\n\n", infoStyle.Render("Source:   "), c.SourceURL)
	fmt.Fprintln(w, bodyStyle.Render(c.BodyText))
}

func printArchive(w io.Writer, rows []database.ArchivedSummary) {
	for _, r := range rows {
		created := ""
		if r.CreatedAt != nil {
			created = *r.CreatedAt
		}
		fmt.Fprintf(w, "%s  %s  %s\n", infoStyle.Render(created), statusStyle.Render(r.ID), r.Title)
		fmt.Fprintf(w, "    %s\n", infoStyle.Render(r.SourceURL))
	}
}
