package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const signupForm = `name: signup
debounce: 300ms
fields:
  username:
    default: ""
    rules:
      - name: required
    async:
      not_in: [admin]
  password:
    default: ""
    rules:
      - name: min_length
        value: 8
  confirm:
    default: ""
    rules:
      - name: equals_field
        field: password
        message: passwords do not match
    watch:
      fields:
        password: [change]
`

const cyclicForm = `name: pricing
fields:
  amount:
    default: 0
    watch:
      fields:
        percent: [change]
  percent:
    default: 0
    watch:
      fields:
        amount: [change]
`

const passingScenario = `name: confirm_follows_password
description: confirm is re-checked when password changes
form: form.yaml
steps:
  - do: mount
    fields: [password, confirm]
  - do: set
    field: password
    value: hunter22
assertions:
  - type: field_state
    field: confirm
    validation: invalid
    issues: [passwords do not match]
`

const failingScenario = `name: wrong_expectation
description: expects the wrong state
form: form.yaml
steps:
  - do: mount
    fields: [confirm]
assertions:
  - type: field_state
    field: confirm
    validation: invalid
`

// writeFiles writes name → content pairs into a temp dir and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
