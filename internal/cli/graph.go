package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/formstate/internal/compiler"
)

// GraphEdge is one reaction edge in command output.
type GraphEdge struct {
	Source string `json:"source"`
	Event  string `json:"event"`
	Target string `json:"target"`
}

// GraphResult holds the reaction graph of a form.
type GraphResult struct {
	Form   string                  `json:"form,omitempty"`
	Edges  []GraphEdge             `json:"edges"`
	Cycles []compiler.CycleWarning `json:"cycles"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <form.{yaml,cue}>",
		Short: "Print a form's reaction graph",
		Long: `Print every reaction edge of a form: which event on which field
re-runs which field's responders. Edges are grouped by target, self
edges first.

Examples:
  formctl graph signup.yaml
  formctl graph signup.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runGraph(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	form, issue, code := loadForm(path)
	if issue != nil {
		errCode := ErrCodeCompile
		if code == ExitCommandError {
			errCode = ErrCodeNotFound
		}
		return formatter.Fail(code, errCode, issue.String(), nil)
	}

	result := GraphResult{
		Form:   form.Name,
		Edges:  []GraphEdge{},
		Cycles: compiler.AnalyzeCycles(form),
	}
	for _, e := range form.Edges() {
		result.Edges = append(result.Edges, GraphEdge{
			Source: string(e.Source),
			Event:  e.Event.String(),
			Target: string(e.Target),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	tbl := formatter.Table(result.Form, table.Row{"source", "event", "target"})
	for _, e := range result.Edges {
		tbl.AppendRow(table.Row{e.Source, e.Event, e.Target})
	}
	tbl.Render()

	for _, c := range result.Cycles {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", c.Message)
	}
	return nil
}
