package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
)

// Service enforces the summary contract around a Capability.
type Service struct {
	capability  Capability
	maxAttempts int
	tolerance   int
	timeout     time.Duration
}

// New creates a summarization service from the summarization config.
func New(capability Capability, cfg config.Summarization) *Service {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		capability:  capability,
		maxAttempts: attempts,
		tolerance:   cfg.LengthTolerance,
		timeout:     cfg.Timeout,
	}
}

// Summarize asks the capability for a summary of content and validates it.
// Invalid candidates are re-requested with the violations as feedback until
// the attempt budget runs out, after which the last violations are returned
// as a validation failure. A capability error ends the run immediately.
func (s *Service) Summarize(ctx context.Context, content *article.Content, instructions []string) (*article.Summary, error) {
	if !content.OK() {
		return nil, article.ContentNotFound("no body text to summarize")
	}

	req := Request{
		Content:      content,
		Instructions: instructions,
		Schema:       Schema,
	}

	var violations []article.Violation
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		req.Feedback = violations

		cand, err := s.attempt(ctx, req)
		if errors.Is(err, ErrMalformedOutput) {
			log.Printf("Summary attempt %d/%d unreadable: %v", attempt, s.maxAttempts, err)
			violations = []article.Violation{{Field: "response", Message: "was not a JSON object matching the schema"}}
			continue
		}
		if err != nil {
			return nil, article.SummarizerError(err)
		}

		summary := Coerce(cand, content)
		violations = Validate(summary, s.tolerance)
		if len(violations) == 0 {
			if attempt > 1 {
				log.Printf("Summary accepted on attempt %d", attempt)
			}
			return summary, nil
		}
		log.Printf("Summary attempt %d/%d rejected: %d violations", attempt, s.maxAttempts, len(violations))
	}

	return nil, article.ValidationError(violations)
}

func (s *Service) attempt(ctx context.Context, req Request) (*Candidate, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cand, err := s.capability.Summarize(ctx, req)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, fmt.Errorf("%w: empty candidate", ErrMalformedOutput)
	}
	return cand, nil
}
