package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/formstate/internal/harness"
	"github.com/roach88/formstate/internal/metrics"
	"github.com/roach88/formstate/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TraceDB   string // optional SQLite trace log
	Session   string // session id for the trace log (random when empty)
	ShowTrace bool
	Metrics   bool
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string                        `json:"scenario"`
	Pass     bool                          `json:"pass"`
	Errors   []string                      `json:"errors,omitempty"`
	State    map[string]harness.FieldState `json:"state"`
	Trace    []harness.TraceEvent          `json:"trace,omitempty"`
	Session  string                        `json:"session,omitempty"`
	Metrics  []metrics.Sample              `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against a form",
		Long: `Run a scripted scenario against a real field store and print the
final state of every field.

Debounce timers run on a manual clock, so runs are deterministic.
With --trace-db every engine record is appended to a SQLite trace log.

Exit codes:
  0 - All assertions passed
  1 - One or more assertions failed
  2 - Command error (scenario not found, step rejected, etc.)

Examples:
  formctl run scenarios/signup.yaml
  formctl run scenarios/signup.yaml --trace
  formctl run scenarios/signup.yaml --trace-db trace.db --session s1
  formctl run scenarios/signup.yaml --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "append engine records to this SQLite database")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id for --trace-db (default: random UUID)")
	cmd.Flags().BoolVar(&opts.ShowTrace, "trace", false, "print the engine trace")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus counters collected during the run")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario not found: %s", path), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeScenario, err.Error(), nil)
	}

	var runOpts []harness.Option
	if opts.Verbose {
		logger := slog.New(slog.NewTextHandler(formatter.Diag, &slog.HandlerOptions{Level: slog.LevelDebug}))
		runOpts = append(runOpts, harness.WithLogger(logger))
	}

	var recorder *store.Recorder
	if opts.TraceDB != "" {
		st, err := store.Open(opts.TraceDB)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeTraceDB, err.Error(), nil)
		}
		defer st.Close()
		recorder = st.NewRecorder(opts.Session, scenario.Name)
		runOpts = append(runOpts, harness.WithObserver(recorder))
		formatter.VerboseLog("Recording session %s to %s", recorder.Session(), opts.TraceDB)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithObserver(metrics.NewWithRegistry(reg)))
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, err.Error(), nil)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		State:    result.State,
	}
	if opts.ShowTrace {
		out.Trace = result.Trace
	}
	if recorder != nil {
		if err := recorder.Flush(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeTraceDB, err.Error(), nil)
		}
		out.Session = recorder.Session()
	}
	if reg != nil {
		samples, err := metrics.Gather(reg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		out.Metrics = samples
	}

	if formatter.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printRunText(formatter, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func printRunText(formatter *OutputFormatter, out RunResult) {
	tbl := formatter.Table(out.Scenario, table.Row{"field", "value", "validation", "issues", "touched", "changes", "submits", "mounted"})
	names := make([]string, 0, len(out.State))
	for name := range out.State {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		st := out.State[name]
		tbl.AppendRow(table.Row{
			name,
			fmt.Sprintf("%#v", st.Value),
			st.Validation,
			strings.Join(st.Issues, "; "),
			st.Touched,
			st.ChangeCount,
			st.SubmitCount,
			st.Mounted,
		})
	}
	tbl.Render()

	if len(out.Trace) > 0 {
		tr := formatter.Table("trace", table.Row{"seq", "tx", "kind", "field", "detail"})
		for _, ev := range out.Trace {
			tr.AppendRow(table.Row{ev.Seq, ev.Tx, ev.Kind, ev.Field, traceDetail(ev)})
		}
		tr.Render()
	}

	if len(out.Metrics) > 0 {
		mt := formatter.Table("metrics", table.Row{"metric", "labels", "value"})
		for _, sm := range out.Metrics {
			mt.AppendRow(table.Row{sm.Name, sm.Labels, sm.Value})
		}
		mt.Render()
	}

	if out.Session != "" {
		fmt.Fprintf(formatter.Writer, "session: %s\n", out.Session)
	}

	if out.Pass {
		fmt.Fprintln(formatter.Writer, "✓ PASS")
		return
	}
	fmt.Fprintln(formatter.Writer, "✗ FAIL")
	for _, e := range out.Errors {
		fmt.Fprintf(formatter.Writer, "  %s\n", strings.TrimRight(e, "\n"))
	}
}

// traceDetail renders the kind-specific columns of a trace event.
func traceDetail(ev harness.TraceEvent) string {
	switch ev.Kind {
	case "dispatch", "bailout":
		s := fmt.Sprintf("%s:%s", ev.Source, ev.Event)
		if ev.Steps > 0 {
			s += fmt.Sprintf(" steps=%d", ev.Steps)
		}
		return s
	case "validation":
		s := fmt.Sprintf("%s → %s", ev.From, ev.To)
		if len(ev.Issues) > 0 {
			s += " " + strings.Join(ev.Issues, "; ")
		}
		return s
	case "value":
		return fmt.Sprintf("%#v", ev.Value)
	case "async_start", "async_discard":
		return fmt.Sprintf("run=%d", ev.RunID)
	default:
		return ""
	}
}
