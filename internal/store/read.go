package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Row is one stored engine record. Enum-valued columns hold their names.
type Row struct {
	Session     string
	Seq         int64
	Tx          string
	Kind        string
	Field       string
	Source      string
	Event       string
	From        string
	To          string
	Issues      []string
	RunID       int64
	Value       string // canonical JSON
	Fingerprint string // hex xxhash of Value, value rows only
	Steps       int
}

// Session describes one recorded store session.
type Session struct {
	ID        string
	Form      string
	StartedAt string
	Records   int
}

const rowColumns = `session, seq, tx, kind, field, source, event, from_type, to_type, issues, run_id, value, fingerprint, steps`

// Records returns every row of a session ordered by seq.
// Returns an empty slice (not nil) if the session has no rows.
func (s *Store) Records(ctx context.Context, session string) ([]Row, error) {
	return s.Find(ctx, Filter{Session: session})
}

// RecordsForField returns the rows of a session that affect one field.
func (s *Store) RecordsForField(ctx context.Context, session, name string) ([]Row, error) {
	return s.Find(ctx, Filter{Session: session, Field: name})
}

// RecordsForTx returns the rows written by one transaction.
func (s *Store) RecordsForTx(ctx context.Context, session, tx string) ([]Row, error) {
	return s.Find(ctx, Filter{Session: session, Tx: tx})
}

// CountByKind returns the number of rows per record kind in a session.
func (s *Store) CountByKind(ctx context.Context, session string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM records
		WHERE session = ?
		GROUP BY kind
		ORDER BY kind
	`, session)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Sessions lists recorded sessions ordered by start time then id.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.form, s.started_at, COUNT(r.seq)
		FROM sessions s
		LEFT JOIN records r ON r.session = s.id
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Form, &sess.StartedAt, &sess.Records); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows) (Row, error) {
	var row Row
	var issues string
	err := rows.Scan(
		&row.Session, &row.Seq, &row.Tx, &row.Kind, &row.Field, &row.Source, &row.Event,
		&row.From, &row.To, &issues, &row.RunID, &row.Value, &row.Fingerprint, &row.Steps,
	)
	if err != nil {
		return Row{}, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal([]byte(issues), &row.Issues); err != nil {
		return Row{}, fmt.Errorf("decode issues for record %d: %w", row.Seq, err)
	}
	return row, nil
}
