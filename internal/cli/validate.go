package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formstate/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                    `json:"valid"`
	Form     string                  `json:"form,omitempty"`
	Fields   int                     `json:"fields"`
	Errors   []FormIssue             `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <form.{yaml,cue}>",
		Short: "Check a form definition",
		Long: `Compile a form definition and report errors.

Watch cycles are reported as warnings: they are legal, and at runtime
each edge runs once per transaction under the step budget.

Exit codes:
  0 - Form is valid (warnings allowed)
  1 - Form is invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	form, issue, code := loadForm(path)
	if issue != nil {
		if code == ExitCommandError {
			return formatter.Fail(code, ErrCodeNotFound, issue.Message, nil)
		}
		return outputValidationFailure(formatter, *issue)
	}

	formatter.VerboseLog("Compiled %d field(s) from %s", len(form.Names), path)
	warnings := compiler.AnalyzeCycles(form)

	result := ValidationResult{
		Valid:    true,
		Form:     form.Name,
		Fields:   len(form.Names),
		Warnings: warnings,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
	name := form.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid (%d fields)\n", name, len(form.Names))
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, issue FormIssue) error {
	if formatter.Format == "json" {
		_ = formatter.Success(ValidationResult{Valid: false, Errors: []FormIssue{issue}})
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s\n", issue.String())
	}
	return NewExitError(ExitFailure, issue.String())
}
