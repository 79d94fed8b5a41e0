package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formstate/internal/store"
)

func TestRun_Pass(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": passingScenario})

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ PASS")
	assert.Contains(t, out, "passwords do not match")
}

func TestRun_Fail(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": failingScenario})

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ FAIL")
	assert.Contains(t, out, "validation: want invalid, got valid")
}

func TestRun_JSONWithTrace(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": passingScenario})

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"), "--format", "json", "--trace")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "confirm_follows_password", resp.Data.Scenario)
	assert.NotEmpty(t, resp.Data.Trace)
	assert.Equal(t, "hunter22", resp.Data.State["password"].Value)
}

func TestRun_TraceDB(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": passingScenario})
	db := filepath.Join(dir, "trace.db")

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"), "--trace-db", db, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "session: s1")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.CountByKind(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts["value"])
	assert.Equal(t, 2, counts["mount"])
}

func TestRun_ScenarioNotFound(t *testing.T) {
	out, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenario not found")
}

func TestRun_StepRejected(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": `name: bad
description: unmounts a field that was never mounted
form: form.yaml
steps:
  - do: unmount
    fields: [confirm]
`})

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "NOT_MOUNTED")
}

func TestRun_Metrics(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": passingScenario})

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"), "--format", "json", "--metrics")
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.Metrics)

	var writes float64
	for _, sm := range resp.Data.Metrics {
		if sm.Name == "formstate_value_writes_total" && sm.Labels == `field="password"` {
			writes = sm.Value
		}
	}
	assert.Positive(t, writes)
}

func TestRun_MetricsText(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.yaml": signupForm, "s.yaml": passingScenario})

	out, err := execute(t, "run", filepath.Join(dir, "s.yaml"), "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "formstate_notifications_total")
}
