package summarize

import (
	"fmt"
	"strings"
)

const promptHeader = `You are summarizing a single article for a reader who has not seen it.

Rules:
- Use only information stated in the article text below. Do not invent facts, numbers, names, quotes or dates that the article does not contain. If something is unclear in the source, leave it out.
- "one_line_summary": one sentence of at most %d characters.
- "detailed_summary": between %d and %d characters.
- "key_points": between %d and %d items, each between %d and %d characters. Do not number them.
- "title": the article title as given in the metadata.
- "source_url": the article URL as given in the metadata.
`

// BuildPrompt renders the full summarizer prompt for req. An empty language
// asks for the language of the article.
func BuildPrompt(req Request, language string) string {
	var b strings.Builder

	fmt.Fprintf(&b, promptHeader,
		OneLineMax,
		DetailedMin, DetailedMax,
		KeyPointsMin, KeyPointsMax, KeyPointMinLen, KeyPointMaxLen)
	if language != "" {
		fmt.Fprintf(&b, "- Write every field in %s.\n", language)
	} else {
		b.WriteString("- Write every field in the same language as the article text.\n")
	}
	for _, inst := range req.Instructions {
		if inst = strings.TrimSpace(inst); inst != "" {
			fmt.Fprintf(&b, "- %s\n", inst)
		}
	}

	schema := req.Schema
	if schema == "" {
		schema = Schema
	}
	fmt.Fprintf(&b, "\nRespond with ONLY a JSON object matching this schema:\n%s\n", schema)

	if len(req.Feedback) > 0 {
		b.WriteString("\nYour previous answer was rejected:\n")
		for _, v := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("Fix every problem listed above. Count characters carefully.\n")
	}

	if c := req.Content; c != nil {
		fmt.Fprintf(&b, "\nArticle metadata:\nTitle: %s\nPublisher: %s\nPublished: %s\nURL: %s\n",
			c.Title, c.Publisher, c.PublishedAt, c.SourceURL)
		fmt.Fprintf(&b, "\nArticle text:\n%s\n", c.BodyText)
	}

	return b.String()
}
