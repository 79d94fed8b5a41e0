package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/formstate/internal/compiler"
)

// FormIssue is one problem found while loading a form definition.
type FormIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// loadForm reads and compiles a form definition.
//
// The returned exit code separates definitions that could not be read
// (ExitCommandError) from definitions that are invalid (ExitFailure).
func loadForm(path string) (*compiler.Form, *FormIssue, int) {
	def, err := compiler.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FormIssue{Field: "path", Message: fmt.Sprintf("form not found: %s", path)}, ExitCommandError
		}
		return nil, issueFrom(err), ExitFailure
	}

	form, err := compiler.Compile(def)
	if err != nil {
		return nil, issueFrom(err), ExitFailure
	}
	return form, nil, ExitSuccess
}

func issueFrom(err error) *FormIssue {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return &FormIssue{Field: "form", Message: err.Error()}
	}
	issue := &FormIssue{Field: ce.Field, Message: ce.Message}
	if ce.Pos.IsValid() {
		issue.Line = ce.Pos.Line()
		issue.Column = ce.Pos.Column()
	}
	return issue
}

func (i *FormIssue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s (line %d:%d): %s", i.Field, i.Line, i.Column, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}
