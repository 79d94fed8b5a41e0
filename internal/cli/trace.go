package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/formstate/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Session string
	Field   string // optional - filter to one field
	Tx      string // optional - filter to one transaction
	Kind    string // optional - filter to one record kind
}

// TraceResult holds one session's records.
type TraceResult struct {
	Session string         `json:"session"`
	Records []store.Row    `json:"records"`
	Counts  map[string]int `json:"counts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <trace.db>",
		Short: "Inspect a recorded trace log",
		Long: `Inspect a SQLite trace log written by "formctl run --trace-db".

Without --session, lists the recorded sessions. With --session, prints
the session's records in seq order, optionally filtered by field,
transaction, and record kind. Filters combine.

Examples:
  formctl trace trace.db
  formctl trace trace.db --session s1
  formctl trace trace.db --session s1 --field confirm
  formctl trace trace.db --session s1 --tx tx-4 --kind validation`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to print")
	cmd.Flags().StringVar(&opts.Field, "field", "", "only records for this field")
	cmd.Flags().StringVar(&opts.Tx, "tx", "", "only records of this transaction")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only records of this kind")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening would create an empty database
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("trace database not found: %s", path), nil)
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeTraceDB, err.Error(), nil)
	}
	defer st.Close()

	if opts.Session == "" {
		sessions, err := st.Sessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeTraceDB, err.Error(), nil)
		}
		if formatter.Format == "json" {
			return formatter.Success(sessions)
		}
		tbl := formatter.Table("sessions", table.Row{"session", "form", "started", "records"})
		for _, s := range sessions {
			tbl.AppendRow(table.Row{s.ID, s.Form, startedAgo(s.StartedAt), humanize.Comma(int64(s.Records))})
		}
		tbl.Render()
		return nil
	}

	rows, err := st.Find(ctx, store.Filter{
		Session: opts.Session,
		Field:   opts.Field,
		Tx:      opts.Tx,
		Kind:    opts.Kind,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeTraceDB, err.Error(), nil)
	}

	counts, err := st.CountByKind(ctx, opts.Session)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeTraceDB, err.Error(), nil)
	}

	if len(counts) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.Session), nil)
	}

	result := TraceResult{Session: opts.Session, Records: rows, Counts: counts}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	tbl := formatter.Table(opts.Session, table.Row{"seq", "tx", "kind", "field", "detail"})
	for _, r := range rows {
		tbl.AppendRow(table.Row{r.Seq, r.Tx, r.Kind, r.Field, rowDetail(r)})
	}
	tbl.Render()

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	fmt.Fprintln(formatter.Writer, strings.Join(parts, " "))
	return nil
}

func rowDetail(r store.Row) string {
	switch r.Kind {
	case "dispatch", "bailout":
		return fmt.Sprintf("%s:%s", r.Source, r.Event)
	case "validation":
		s := fmt.Sprintf("%s → %s", r.From, r.To)
		if len(r.Issues) > 0 {
			s += " " + strings.Join(r.Issues, "; ")
		}
		return s
	case "value":
		return r.Value
	case "async_start", "async_discard":
		return fmt.Sprintf("run=%d", r.RunID)
	default:
		return ""
	}
}

// startedAgo renders an RFC 3339 start time relative to now.
func startedAgo(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
