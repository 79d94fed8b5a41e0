package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // invalid form or failed assertions
	ExitCommandError = 2 // missing files, bad flags, unreadable trace log
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric   = "E001"
	ErrCodeNotFound  = "E002"
	ErrCodeCompile   = "E003"
	ErrCodeScenario  = "E004"
	ErrCodeTraceDB   = "E005"
	ErrCodeAssertion = "E006"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError that wraps err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that carry no
// code count as failures.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Envelope wraps every JSON response.
type Envelope struct {
	Status string   `json:"status"` // ok | error
	Data   any      `json:"data,omitempty"`
	Error  *Problem `json:"error,omitempty"`
}

// Problem describes a failed command in JSON output.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or JSON.
// Diagnostics go to Diag so they never interleave with JSON on Writer.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Diag    io.Writer
	Verbose bool
}

func newFormatter(opts *RootOptions, out, diag io.Writer) *OutputFormatter {
	if diag == nil {
		diag = out
	}
	return &OutputFormatter{Format: opts.Format, Writer: out, Diag: diag, Verbose: opts.Verbose}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data as the payload of an ok envelope, or prints it.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(Envelope{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail reports a problem and returns it as an ExitError with exitCode.
func (f *OutputFormatter) Fail(exitCode int, code, message string, details any) error {
	if f.isJSON() {
		_ = json.NewEncoder(f.Writer).Encode(Envelope{
			Status: "error",
			Error:  &Problem{Code: code, Message: message, Details: details},
		})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		if f.Verbose && details != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", details)
		}
	}
	return NewExitError(exitCode, code+": "+message)
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.Diag, format+"\n", args...)
	}
}

// Table returns a go-pretty table that renders to Writer.
func (f *OutputFormatter) Table(title string, header table.Row) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(f.Writer)
	if title != "" {
		tbl.SetTitle(title)
	}
	tbl.AppendHeader(header)
	return tbl
}
