package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/llm"
)

// Field bounds, counted in characters (see CharCount).
const (
	OneLineMax     = 100
	DetailedMin    = 300
	DetailedMax    = 500
	KeyPointsMin   = 3
	KeyPointsMax   = 5
	KeyPointMinLen = 50
	KeyPointMaxLen = 100
)

// Schema describes the JSON object the summarizer must return.
const Schema = `{
    "title": "The article title",
    "one_line_summary": "At most 100 characters",
    "detailed_summary": "Between 300 and 500 characters",
    "key_points": ["3 to 5 items, each between 50 and 100 characters"],
    "source_url": "The article URL"
}`

// ErrMalformedOutput is returned by a Capability whose response could not be
// read as a candidate summary at all.
var ErrMalformedOutput = errors.New("malformed summarizer output")

// Request is everything handed to the summarizer for one attempt.
type Request struct {
	Content      *article.Content
	Instructions []string
	Schema       string
	// Feedback lists the violations of the previous attempt, if any.
	Feedback []article.Violation
}

// Candidate is an unvalidated summary as returned by the summarizer.
type Candidate struct {
	Title           string   `json:"title"`
	OneLineSummary  string   `json:"one_line_summary"`
	DetailedSummary string   `json:"detailed_summary"`
	KeyPoints       []string `json:"key_points"`
	SourceURL       string   `json:"source_url"`
}

// Capability produces candidate summaries. Implementations need not enforce
// the field bounds; Service validates whatever they return.
type Capability interface {
	Summarize(ctx context.Context, req Request) (*Candidate, error)
}

// LLMCapability implements Capability on top of an LLM provider.
type LLMCapability struct {
	provider  llm.Provider
	maxTokens int
	language  string
}

// NewLLMCapability creates a capability that prompts provider for a JSON summary.
func NewLLMCapability(provider llm.Provider, maxTokens int, language string) *LLMCapability {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMCapability{provider: provider, maxTokens: maxTokens, language: language}
}

// Summarize sends one prompt and decodes the response.
func (c *LLMCapability) Summarize(ctx context.Context, req Request) (*Candidate, error) {
	if c.provider == nil {
		return nil, errors.New("no LLM provider configured")
	}

	text, err := c.provider.Generate(ctx, BuildPrompt(req, c.language), c.maxTokens)
	if err != nil {
		return nil, err
	}

	var cand Candidate
	if err := llm.DecodeJSON(text, &cand); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return &cand, nil
}
