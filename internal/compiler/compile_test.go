package compiler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
)

func quietStore(t *testing.T, f *Form) *engine.Store {
	t.Helper()
	s, err := f.NewStore(engine.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	for _, n := range s.Names() {
		require.NoError(t, s.Mount(n))
	}
	return s
}

func compileYAML(t *testing.T, src string) (*Form, error) {
	t.Helper()
	def, err := LoadYAML([]byte(src))
	require.NoError(t, err)
	return Compile(def)
}

// =============================================================================
// Loading
// =============================================================================

func TestLoadFile_YAML(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "signup.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "signup", def.Name)
	assert.Equal(t, "300ms", def.Debounce)
	assert.Equal(t, 50, def.MaxSteps)
	require.Contains(t, def.Fields, "username")
	assert.Len(t, def.Fields["username"].Rules, 2)
	assert.Equal(t, []string{"admin", "root"}, def.Fields["username"].Async.NotIn)
	assert.Equal(t, []string{"change"}, def.Fields["confirm"].Watch.Fields["password"])
	assert.Nil(t, def.Fields["confirm"].Watch.Self, "omitted self list stays nil")
	assert.Equal(t, 0, def.Fields["age"].Default)
}

func TestLoadYAML_UnknownKey(t *testing.T) {
	_, err := LoadYAML([]byte("name: x\nfeilds: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feilds")
}

func TestLoadYAML_Empty(t *testing.T) {
	_, err := LoadYAML(nil)
	assert.True(t, IsCompileError(err))
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestLoadFile_CUE(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "signup.cue"))
	require.NoError(t, err)

	assert.Equal(t, "signup", def.Name)
	assert.Equal(t, 21, def.Fields["age"].Default)
	assert.True(t, def.Fields["handle"].SchemaValue.Exists())
	assert.True(t, def.Fields["handle"].pos.IsValid())

	f, err := Compile(def)
	require.NoError(t, err)
	s := quietStore(t, f)

	require.NoError(t, s.SetValue("handle", "ada"))
	require.NoError(t, s.SetValue("age", 12))
	snap, err := s.Get("handle")
	require.NoError(t, err)
	assert.Equal(t, field.TypeInvalid, snap.Validation.Type())
	snap, err = s.Get("age")
	require.NoError(t, err)
	assert.Equal(t, field.TypeInvalid, snap.Validation.Type())

	require.NoError(t, s.SetValue("handle", "@ada"))
	snap, err = s.Get("handle")
	require.NoError(t, err)
	assert.Equal(t, field.TypeValid, snap.Validation.Type())
}

func TestLoadCUE_SyntaxErrorHasPosition(t *testing.T) {
	_, err := LoadCUE([]byte("name: \"x\"\nfields: {\n"), "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
	assert.Contains(t, err.Error(), "broken.cue:")
}

// =============================================================================
// Compile
// =============================================================================

func TestCompile_Signup(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "signup.yaml"))
	require.NoError(t, err)
	f, err := Compile(def)
	require.NoError(t, err)

	assert.Equal(t, []field.Name{"age", "confirm", "password", "username"}, f.Names)
	assert.Equal(t, 300*time.Millisecond, f.Debounce)
	assert.Equal(t, 50, f.MaxSteps)
	assert.NotNil(t, f.Options["username"].Validate)
	assert.NotNil(t, f.Options["username"].ValidateAsync)
	assert.NotNil(t, f.Options["age"].Schema)
	assert.Nil(t, f.Options["age"].Validate, "schema-only fields validate through the engine")
}

func TestCompile_PasswordConfirm(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "signup.yaml"))
	require.NoError(t, err)
	f, err := Compile(def)
	require.NoError(t, err)
	s := quietStore(t, f)

	require.NoError(t, s.SetValue("password", "correct horse"))
	require.NoError(t, s.SetValue("confirm", "correct horse"))
	snap, err := s.Get("confirm")
	require.NoError(t, err)
	assert.Equal(t, field.TypeValid, snap.Validation.Type())

	require.NoError(t, s.SetValue("password", "battery staple"))
	snap, err = s.Get("confirm")
	require.NoError(t, err)
	assert.Equal(t, []string{"passwords do not match"}, snap.Validation.Messages())
}

func TestCompile_AsyncUniqueness(t *testing.T) {
	f, err := compileYAML(t, `
fields:
  username:
    default: ""
    rules: [{name: required}]
    async: {not_in: [root]}
`)
	require.NoError(t, err)
	s := quietStore(t, f)

	require.NoError(t, s.SetValue("username", "root"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	snap, err := s.Get("username")
	require.NoError(t, err)
	assert.Equal(t, []string{"already taken"}, snap.Validation.Messages())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no fields", "name: x\n", "fields"},
		{"bad form debounce", "debounce: soon\nfields: {a: {default: 1}}\n", "debounce"},
		{"negative max steps", "max_steps: -1\nfields: {a: {default: 1}}\n", "max_steps"},
		{"bad field debounce", "fields: {a: {debounce: -1s}}\n", "fields.a.debounce"},
		{"bad schema", "fields: {a: {schema: 'int &'}}\n", "fields.a.schema"},
		{"unknown rule", "fields: {a: {rules: [{name: shout}]}}\n", "fields.a.rules"},
		{"equals unknown", "fields: {a: {rules: [{name: equals_field, field: b}]}}\n", "fields.a.rules"},
		{"bad directive", "fields: {a: {directive: later}}\n", "fields.a.directive"},
		{"bad async", "fields: {a: {async: {delay: x}}}\n", "fields.a.async"},
		{"watch unknown field", "fields: {a: {watch: {fields: {b: [change]}}}}\n", "fields.a.watch"},
		{"watch unknown event", "fields: {a: {watch: {self: [hover]}}}\n", "fields.a.watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileYAML(t, tt.src)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompile_WatchSets(t *testing.T) {
	f, err := compileYAML(t, `
fields:
  a: {default: ""}
  b:
    default: ""
    watch:
      self: []
      fields:
        a: ~
`)
	require.NoError(t, err)

	w := f.Options["b"].Watch
	require.NotNil(t, w)
	assert.Equal(t, 0, w.Self.Cardinality(), "empty self list means no own events")
	assert.Nil(t, w.Fields["a"], "null list means every event")
}

func TestForm_Edges(t *testing.T) {
	f, err := compileYAML(t, `
fields:
  a: {default: ""}
  b:
    default: ""
    watch:
      self: [change]
      fields:
        a: [change, blur]
`)
	require.NoError(t, err)

	var bEdges []Edge
	for _, e := range f.Edges() {
		if e.Target == "b" {
			bEdges = append(bEdges, e)
		}
	}
	assert.Equal(t, []Edge{
		{Source: "b", Event: field.EventChange, Target: "b"},
		{Source: "a", Event: field.EventChange, Target: "b"},
		{Source: "a", Event: field.EventBlur, Target: "b"},
	}, bEdges)
}
