package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
)

var summaryColumns = []string{
	"id", "source_url", "title", "publisher",
	"one_line_summary", "detailed_summary", "key_points", "created_at",
}

// InsertSummary archives s and returns the new row ID.
func (db *DB) InsertSummary(ctx context.Context, s *article.Summary, publisher string) (string, error) {
	kpJSON, err := json.Marshal(s.KeyPoints)
	if err != nil {
		return "", fmt.Errorf("encoding key points: %w", err)
	}

	var pub *string
	if publisher != "" {
		pub = &publisher
	}

	id := uuid.NewString()
	_, err = sq.Insert("summaries").
		Columns("id", "source_url", "title", "publisher", "one_line_summary", "detailed_summary", "key_points").
		Values(id, s.SourceURL, s.Title, pub, s.OneLineSummary, s.DetailedSummary, string(kpJSON)).
		RunWith(db.conn).
		ExecContext(ctx)
	if err != nil {
		return "", fmt.Errorf("inserting summary: %w", err)
	}
	return id, nil
}

// RecentSummaries returns up to limit archived summaries, newest first.
func (db *DB) RecentSummaries(ctx context.Context, limit int) ([]ArchivedSummary, error) {
	q := sq.Select(summaryColumns...).
		From("summaries").
		OrderBy("created_at DESC", "rowid DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetSummary returns the archived summary with the given ID, or nil if absent.
func (db *DB) GetSummary(ctx context.Context, id string) (*ArchivedSummary, error) {
	query, args, err := sq.Select(summaryColumns...).
		From("summaries").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	s, err := scanSummary(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*ArchivedSummary, error) {
	var s ArchivedSummary
	var kpJSON string
	if err := row.Scan(&s.ID, &s.SourceURL, &s.Title, &s.Publisher,
		&s.OneLineSummary, &s.DetailedSummary, &kpJSON, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(kpJSON), &s.KeyPoints); err != nil {
		s.KeyPoints = nil
	}
	return &s, nil
}
