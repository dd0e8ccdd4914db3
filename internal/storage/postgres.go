package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensor_tags (
	session_id  TEXT        NOT NULL,
	position    INTEGER     NOT NULL,
	document_id TEXT        NOT NULL DEFAULT '',
	block_id    TEXT        NOT NULL,
	cell_text   TEXT        NOT NULL,
	sensor_tag  TEXT        NOT NULL,
	is_custom   BOOLEAN     NOT NULL DEFAULT FALSE,
	row_header  TEXT,
	col_header  TEXT,
	saved_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, position)
)`

// undefinedTable is the Postgres error code for a missing relation.
const undefinedTable = "42P01"

// tagRow is one persisted entry.
type tagRow struct {
	SessionID  string         `db:"session_id"`
	Position   int            `db:"position"`
	DocumentID string         `db:"document_id"`
	BlockID    string         `db:"block_id"`
	CellText   string         `db:"cell_text"`
	SensorTag  string         `db:"sensor_tag"`
	IsCustom   bool           `db:"is_custom"`
	RowHeader  sql.NullString `db:"row_header"`
	ColHeader  sql.NullString `db:"col_header"`
	SavedAt    time.Time      `db:"saved_at"`
}

func toRows(sessionID string, entries []workspace.Entry, now time.Time) []tagRow {
	rows := make([]tagRow, len(entries))
	for i, e := range entries {
		rows[i] = tagRow{
			SessionID:  sessionID,
			Position:   i,
			DocumentID: e.DocumentID,
			BlockID:    e.BlockID,
			CellText:   e.CellText,
			SensorTag:  e.SensorTag,
			IsCustom:   e.IsCustom,
			SavedAt:    now,
		}
		if e.AIContext != nil {
			rows[i].RowHeader = sql.NullString{String: e.AIContext.RowHeader, Valid: true}
			rows[i].ColHeader = sql.NullString{String: e.AIContext.ColHeader, Valid: true}
		}
	}
	return rows
}

func (r tagRow) entry() workspace.Entry {
	e := workspace.Entry{
		BlockID:    r.BlockID,
		DocumentID: r.DocumentID,
		CellText:   r.CellText,
		SensorTag:  r.SensorTag,
		IsCustom:   r.IsCustom,
	}
	if r.RowHeader.Valid || r.ColHeader.Valid {
		e.AIContext = &workspace.AIContext{RowHeader: r.RowHeader.String, ColHeader: r.ColHeader.String}
	}
	return e
}

// PostgresSink replaces a session's rows in the sensor_tags table.
type PostgresSink struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresSink connects to dsn.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresSink{db: db, now: time.Now}, nil
}

// EnsureSchema creates the sensor_tags table when missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save implements Sink.
func (s *PostgresSink) Save(ctx context.Context, sessionID string, entries []workspace.Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sensor_tags WHERE session_id = $1`, sessionID); err != nil {
		return wrapPostgres(err, "failed to clear previous tags")
	}

	if rows := toRows(sessionID, entries, s.now().UTC()); len(rows) > 0 {
		query := `
			INSERT INTO sensor_tags (
				session_id, position, document_id, block_id, cell_text,
				sensor_tag, is_custom, row_header, col_header, saved_at
			) VALUES (
				:session_id, :position, :document_id, :block_id, :cell_text,
				:sensor_tag, :is_custom, :row_header, :col_header, :saved_at
			)`
		if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
			return wrapPostgres(err, "failed to insert tags")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tags: %w", err)
	}
	return nil
}

// Load returns the stored payload of a session in saved order.
func (s *PostgresSink) Load(ctx context.Context, sessionID string) ([]workspace.Entry, error) {
	var rows []tagRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM sensor_tags WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, wrapPostgres(err, "failed to load tags")
	}
	out := make([]workspace.Entry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

func wrapPostgres(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%s: table sensor_tags missing, run with schema creation enabled: %w", msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
