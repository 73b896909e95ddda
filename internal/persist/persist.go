package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
	"github.com/TobiSchelling/ArticleDigest/internal/database"
	"github.com/TobiSchelling/ArticleDigest/internal/render"
)

// Sink stores a finished summary. content is the article it was made from
// and may be nil.
type Sink interface {
	Name() string
	Save(ctx context.Context, s *article.Summary, content *article.Content) error
}

// FileSink writes the rendered artifact to a local file.
type FileSink struct {
	Path     string
	Format   string
	Headings config.Headings
}

// NewFileSink creates a file sink from the output config.
func NewFileSink(cfg config.Output) *FileSink {
	return &FileSink{Path: cfg.Path, Format: cfg.Format, Headings: cfg.Headings}
}

func (f *FileSink) Name() string { return "file" }

// Save renders s and replaces the target file atomically, so an interrupted
// run never leaves a truncated artifact behind.
func (f *FileSink) Save(ctx context.Context, s *article.Summary, _ *article.Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := render.Render(f.Format, s, f.Headings)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".articledigest-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.Path, err)
	}
	return nil
}

// ArchiveSink records summaries in the SQLite archive.
type ArchiveSink struct {
	db *database.DB
}

// NewArchiveSink creates a sink backed by db.
func NewArchiveSink(db *database.DB) *ArchiveSink {
	return &ArchiveSink{db: db}
}

func (a *ArchiveSink) Name() string { return "archive" }

func (a *ArchiveSink) Save(ctx context.Context, s *article.Summary, content *article.Content) error {
	var publisher string
	if content != nil && content.Publisher != article.UnknownPublisher {
		publisher = content.Publisher
	}
	_, err := a.db.InsertSummary(ctx, s, publisher)
	return err
}

// Multi fans a summary out to several sinks.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

// Save runs every sink even when an earlier one fails and joins the errors.
func (m Multi) Save(ctx context.Context, s *article.Summary, content *article.Content) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Save(ctx, s, content); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Unavailable stands in for a sink that could not be set up. Every Save
// reports the setup error, so the failure surfaces as a persistence error
// instead of stopping the run.
type Unavailable struct {
	SinkName string
	Err      error
}

func (u *Unavailable) Name() string { return u.SinkName }

func (u *Unavailable) Save(context.Context, *article.Summary, *article.Content) error {
	return u.Err
}
