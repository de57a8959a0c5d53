// Package registry provides the managed-backend origin for recording
// rows: a Postgres table written by the ingestion pipeline. The shape is
// identical to the static registry document; the dashboard does not care
// which origin supplied the rows.
package registry

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"audiocal/internal/model"
)

// Querier abstracts the pgx pool so tests can substitute a mock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DefaultTable is the ingestion pipeline's recording table.
const DefaultTable = "audiocours"

var columns = []string{
	"id",
	"audio_source",
	"created_at",
	"transcription_text",
	"resume_text",
	"status",
}

// row mirrors one recording table row. Text columns are nullable; the
// pipeline fills transcription and summary asynchronously.
type row struct {
	ID                string     `db:"id"`
	AudioSource       *string    `db:"audio_source"`
	CreatedAt         *time.Time `db:"created_at"`
	TranscriptionText *string    `db:"transcription_text"`
	ResumeText        *string    `db:"resume_text"`
	Status            *string    `db:"status"`
}

// Postgres reads the recording registry from a Postgres table. It is a
// read-only client of an append-only table; it never writes.
type Postgres struct {
	db      Querier
	table   string
	builder sq.StatementBuilderType
}

// NewPostgres creates a Postgres registry source over the given table.
// An empty table name falls back to DefaultTable.
func NewPostgres(db Querier, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{
		db:      db,
		table:   table,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Recordings returns all rows, newest first, converted to the shared
// recording model.
func (p *Postgres) Recordings(ctx context.Context) ([]model.Recording, error) {
	query, args, err := p.builder.
		Select(columns...).
		From(p.table).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build registry query: %w", err)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registry table %s: %w", p.table, err)
	}

	var rs []row
	if err := pgxscan.ScanAll(&rs, rows); err != nil {
		return nil, fmt.Errorf("scan registry rows: %w", err)
	}

	out := make([]model.Recording, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (r row) toModel() model.Recording {
	rec := model.Recording{ID: r.ID}
	if r.AudioSource != nil {
		rec.AudioSource = *r.AudioSource
	}
	if r.CreatedAt != nil {
		rec.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	if r.TranscriptionText != nil {
		rec.TranscriptionText = *r.TranscriptionText
	}
	if r.ResumeText != nil {
		rec.ResumeText = *r.ResumeText
	}
	if r.Status != nil {
		rec.Status = *r.Status
	}
	return rec
}
