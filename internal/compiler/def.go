package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/formstate/internal/rules"
)

// FormDef is a declarative form definition.
type FormDef struct {
	Name     string              `yaml:"name" json:"name"`
	Debounce string              `yaml:"debounce,omitempty" json:"debounce,omitempty"`
	MaxSteps int                 `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`
	Fields   map[string]FieldDef `yaml:"fields" json:"fields"`
}

// FieldDef declares one field.
type FieldDef struct {
	Default  any    `yaml:"default" json:"default"`
	Debounce string `yaml:"debounce,omitempty" json:"debounce,omitempty"`

	// Schema is CUE source text. In CUE definitions the schema may also be
	// written as a CUE expression; it is then held in SchemaValue.
	Schema      string    `yaml:"schema,omitempty" json:"-"`
	SchemaValue cue.Value `yaml:"-" json:"schema"`

	Rules     []rules.Def     `yaml:"rules,omitempty" json:"rules,omitempty"`
	Async     *rules.AsyncDef `yaml:"async,omitempty" json:"async,omitempty"`
	Directive string          `yaml:"directive,omitempty" json:"directive,omitempty"`
	Watch     *WatchDef       `yaml:"watch,omitempty" json:"watch,omitempty"`

	pos token.Pos
}

// WatchDef declares which events re-run a field's responders.
//
// A missing self list means every own event; an empty list means none.
// Each entry of fields works the same way: a null list means every event
// of that field.
type WatchDef struct {
	Self   []string            `yaml:"self" json:"self"`
	Fields map[string][]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// LoadYAML parses a YAML form definition. Unknown keys are errors.
func LoadYAML(data []byte) (*FormDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def FormDef
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CompileError{Field: "form", Message: "empty definition"}
		}
		return nil, fmt.Errorf("parse form YAML: %w", err)
	}
	return &def, nil
}

// LoadCUE parses a CUE form definition. filename is used for positions.
func LoadCUE(data []byte, filename string) (*FormDef, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var def FormDef
	if err := v.Decode(&def); err != nil {
		return nil, formatCUEError(err)
	}

	fields := v.LookupPath(cue.ParsePath("fields"))
	if fields.Exists() {
		iter, err := fields.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name := iter.Label()
			fd := def.Fields[name]
			fd.pos = iter.Value().Pos()
			def.Fields[name] = fd
		}
	}
	return &def, nil
}

// LoadFile reads a definition, choosing the format by extension.
func LoadFile(path string) (*FormDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}
	switch filepath.Ext(path) {
	case ".cue":
		return LoadCUE(data, path)
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return nil, fmt.Errorf("read form %s: unsupported extension (want .yaml, .yml or .cue)", path)
	}
}
