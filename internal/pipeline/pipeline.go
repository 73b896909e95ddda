package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
	"github.com/TobiSchelling/ArticleDigest/internal/database"
	"github.com/TobiSchelling/ArticleDigest/internal/extract"
	"github.com/TobiSchelling/ArticleDigest/internal/fetch"
	"github.com/TobiSchelling/ArticleDigest/internal/llm"
	"github.com/TobiSchelling/ArticleDigest/internal/persist"
	"github.com/TobiSchelling/ArticleDigest/internal/summarize"
)

// State is the position of a run in the pipeline.
type State string

const (
	StateFetching    State = "fetching"
	StateExtracting  State = "extracting"
	StateSummarizing State = "summarizing"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Fetcher retrieves the raw page for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*article.RawDocument, error)
}

// Extractor turns a raw page into article content.
type Extractor interface {
	Extract(doc *article.RawDocument) (*article.Content, error)
}

// Summarizer produces a validated summary of article content.
type Summarizer interface {
	Summarize(ctx context.Context, content *article.Content, instructions []string) (*article.Summary, error)
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the outcome of one run. Summary is set only in StateDone;
// Failure only in StateFailed.
type Result struct {
	URL        string
	State      State
	Summary    *article.Summary
	Failure    *article.Failure
	PersistErr error
	Steps      []StepResult
}

// OK reports whether the run produced a summary.
func (r *Result) OK() bool {
	return r.State == StateDone && r.Summary != nil
}

// Deps are the collaborators of a Pipeline. Sink may be nil to skip persistence.
type Deps struct {
	Fetcher        Fetcher
	Extractor      Extractor
	Summarizer     Summarizer
	Sink           persist.Sink
	Instructions   []string
	PersistTimeout time.Duration
}

// Pipeline runs the fetch, extract, summarize and persist stages for one URL.
type Pipeline struct {
	fetcher        Fetcher
	extractor      Extractor
	summarizer     Summarizer
	sink           persist.Sink
	instructions   []string
	persistTimeout time.Duration
	closers        []func() error
}

// NewWithDeps creates a pipeline from explicit collaborators.
func NewWithDeps(d Deps) *Pipeline {
	return &Pipeline{
		fetcher:        d.Fetcher,
		extractor:      d.Extractor,
		summarizer:     d.Summarizer,
		sink:           d.Sink,
		instructions:   d.Instructions,
		persistTimeout: d.PersistTimeout,
	}
}

// New wires the production components from cfg. When save is false the
// summary is returned without being written anywhere. A sink that cannot be
// set up is kept as persist.Unavailable, so its error lands on
// Result.PersistErr after the summary has been produced.
func New(ctx context.Context, cfg *config.Config, save bool) *Pipeline {
	provider := llm.CreateProvider(cfg.Summarization)
	capability := summarize.NewLLMCapability(provider, cfg.Summarization.MaxTokens, cfg.Summarization.Language)

	p := NewWithDeps(Deps{
		Fetcher:        fetch.New(cfg.Fetch),
		Extractor:      extract.New(cfg.Extract),
		Summarizer:     summarize.New(capability, cfg.Summarization),
		Instructions:   cfg.Summarization.Instructions,
		PersistTimeout: cfg.Output.Timeout,
	})
	if !save {
		return p
	}

	sinks := persist.Multi{persist.NewFileSink(cfg.Output)}
	if cfg.Output.S3.Enabled() {
		s3Sink, err := persist.NewS3Sink(ctx, cfg.Output)
		if err != nil {
			log.Printf("Warning: S3 upload unavailable: %v", err)
			sinks = append(sinks, &persist.Unavailable{SinkName: "s3", Err: err})
		} else {
			sinks = append(sinks, s3Sink)
		}
	}
	if cfg.Output.Archive.Enabled {
		db, err := database.Open(ctx, cfg.GetArchivePath())
		if err != nil {
			err = fmt.Errorf("opening archive: %w", err)
			log.Printf("Warning: archive unavailable: %v", err)
			sinks = append(sinks, &persist.Unavailable{SinkName: "archive", Err: err})
		} else {
			p.closers = append(p.closers, db.Close)
			sinks = append(sinks, persist.NewArchiveSink(db))
		}
	}
	p.sink = sinks
	return p
}

// Close releases resources held by the sinks.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Run executes the pipeline for url. Each stage fails fast; a persistence
// failure is recorded on the result but does not fail the run.
func (p *Pipeline) Run(ctx context.Context, url string) *Result {
	r := &Result{URL: url, State: StateFetching}

	content, err := p.fetchAndExtract(ctx, r)
	if err != nil {
		return r
	}

	r.State = StateSummarizing
	log.Printf("Summarizing %q (%d characters)", content.Title, summarize.CharCount(content.BodyText))
	summary, err := p.summarize(ctx, content)
	if err != nil {
		r.fail("Summarize", "summarize", err)
		return r
	}
	r.step("Summarize", fmt.Sprintf("Summary with %d key points", len(summary.KeyPoints)), nil)

	r.State = StatePersisting
	if p.sink != nil {
		if err := p.persist(ctx, summary, content); err != nil {
			log.Printf("Warning: summary not saved: %v", err)
			r.PersistErr = err
			r.step("Persist", "", err)
		} else {
			r.step("Persist", "Summary saved", nil)
		}
	}

	r.Summary = summary
	r.State = StateDone
	return r
}

// Extract runs only the fetch and extract stages, for inspecting what the
// summarizer would be given.
func (p *Pipeline) Extract(ctx context.Context, url string) (*article.Content, error) {
	r := &Result{URL: url, State: StateFetching}
	content, err := p.fetchAndExtract(ctx, r)
	if err != nil {
		return nil, r.Failure
	}
	return content, nil
}

func (p *Pipeline) fetchAndExtract(ctx context.Context, r *Result) (*article.Content, error) {
	log.Printf("Fetching %s", r.URL)
	doc, err := p.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return nil, r.fail("Fetch", "fetch", err)
	}
	r.step("Fetch", fmt.Sprintf("HTTP %d, %d bytes from %s", doc.StatusCode, len(doc.Body), doc.FinalURL), nil)

	r.State = StateExtracting
	content, err := p.extractor.Extract(doc)
	if err == nil && !content.OK() {
		err = article.ContentNotFound("no body text")
	}
	if err != nil {
		return nil, r.fail("Extract", "extract", err)
	}
	log.Printf("Extracted %d characters from %s", summarize.CharCount(content.BodyText), r.URL)
	r.step("Extract", fmt.Sprintf("%q by %s", content.Title, content.Publisher), nil)
	return content, nil
}

func (p *Pipeline) summarize(ctx context.Context, content *article.Content) (*article.Summary, error) {
	if p.summarizer == nil {
		return nil, article.SummarizerError(errors.New("no summarizer configured"))
	}
	return p.summarizer.Summarize(ctx, content, p.instructions)
}

func (p *Pipeline) persist(ctx context.Context, s *article.Summary, content *article.Content) error {
	if p.persistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.persistTimeout)
		defer cancel()
	}
	if err := p.sink.Save(ctx, s, content); err != nil {
		f := article.PersistenceError(err)
		f.Stage = "persist"
		return f
	}
	return nil
}

// fail records err as the terminal failure of stage. Errors that are not
// already tagged get the default kind for the stage.
func (r *Result) fail(name, stage string, err error) error {
	f, ok := article.AsFailure(err)
	if !ok {
		switch stage {
		case "fetch":
			f = article.TransportError(err)
		case "extract":
			f = article.ContentNotFound(err.Error())
		default:
			f = article.SummarizerError(err)
		}
	}
	if f.Stage == "" {
		f.Stage = stage
	}
	r.Failure = f
	r.State = StateFailed
	r.step(name, "", f)
	log.Printf("%s failed: %v", name, f)
	return f
}

func (r *Result) step(name, summary string, err error) {
	r.Steps = append(r.Steps, StepResult{Name: name, Summary: summary, Err: err})
}
