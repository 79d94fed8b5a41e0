package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
)

// Recorder buffers engine records for one session and writes them to the
// store on Flush. It is safe for concurrent use.
type Recorder struct {
	store   *Store
	session string
	form    string

	mu      sync.Mutex
	pending []Row
	started bool
	err     error
}

// NewRecorder returns a recorder for a new session of the named form.
// An empty session id is replaced by a random UUID.
func (s *Store) NewRecorder(session, form string) *Recorder {
	if session == "" {
		session = uuid.NewString()
	}
	return &Recorder{store: s, session: session, form: form}
}

// Session returns the session id rows are written under.
func (r *Recorder) Session() string { return r.session }

// Observe converts rec to a row and buffers it. Encoding failures are kept
// and returned by the next Flush.
func (r *Recorder) Observe(rec engine.Record) {
	row, err := rowFrom(r.session, rec)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		return
	}
	r.pending = append(r.pending, row)
}

// Pending returns how many rows are buffered.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush writes buffered rows in one transaction. Rows already stored for
// the same (session, seq) are ignored.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	rows := r.pending
	r.pending = nil
	started := r.started
	encodeErr := r.err
	r.err = nil
	r.mu.Unlock()

	if encodeErr != nil {
		return fmt.Errorf("flush: %w", encodeErr)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flush: begin: %w", err)
	}
	defer tx.Rollback()

	if !started {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, form, started_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, r.session, r.form, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("flush: write session: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
		(session, seq, tx, kind, field, source, event, from_type, to_type, issues, run_id, value, fingerprint, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("flush: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		issues, err := json.Marshal(row.Issues)
		if err != nil {
			return fmt.Errorf("flush: marshal issues: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			row.Session, row.Seq, row.Tx, row.Kind, row.Field, row.Source, row.Event,
			row.From, row.To, string(issues), row.RunID, row.Value, row.Fingerprint, row.Steps,
		)
		if err != nil {
			return fmt.Errorf("flush: write record %d: %w", row.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush: commit: %w", err)
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func rowFrom(session string, rec engine.Record) (Row, error) {
	row := Row{
		Session: session,
		Seq:     rec.Seq,
		Tx:      rec.Tx,
		Kind:    string(rec.Kind),
		Field:   string(rec.Field),
		Source:  string(rec.Source),
		RunID:   rec.RunID,
		Steps:   rec.Steps,
		Issues:  rec.Issues,
		Value:   "null",
	}
	if row.Issues == nil {
		row.Issues = []string{}
	}

	switch rec.Kind {
	case engine.RecordDispatch, engine.RecordBailout:
		row.Event = rec.Event.String()
	case engine.RecordValidation:
		row.From = rec.From.String()
		row.To = rec.To.String()
	case engine.RecordValue:
		data, err := field.MarshalCanonical(rec.Value)
		if err != nil {
			return Row{}, fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		row.Value = string(data)
		row.Fingerprint = strconv.FormatUint(field.Fingerprint(rec.Value), 16)
	}
	return row, nil
}
