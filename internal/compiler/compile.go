package compiler

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
	"github.com/roach88/formstate/internal/rules"
	"github.com/roach88/formstate/internal/schema"
)

// Form is a compiled definition, ready to back a store.
type Form struct {
	Name     string
	Names    []field.Name // sorted
	Defaults map[field.Name]any
	Options  map[field.Name]engine.Options
	Debounce time.Duration
	MaxSteps int
}

// Compile checks def and builds per-field engine options.
func Compile(def *FormDef) (*Form, error) {
	if len(def.Fields) == 0 {
		return nil, &CompileError{Field: "fields", Message: "at least one field is required"}
	}

	f := &Form{
		Name:     def.Name,
		Defaults: make(map[field.Name]any, len(def.Fields)),
		Options:  make(map[field.Name]engine.Options, len(def.Fields)),
		MaxSteps: engine.DefaultMaxSteps,
	}
	for name, fd := range def.Fields {
		f.Names = append(f.Names, field.Name(name))
		f.Defaults[field.Name(name)] = fd.Default
	}
	slices.Sort(f.Names)

	if def.Debounce != "" {
		d, err := parseDuration(def.Debounce)
		if err != nil {
			return nil, &CompileError{Field: "debounce", Message: err.Error()}
		}
		f.Debounce = d
	}
	if def.MaxSteps < 0 {
		return nil, &CompileError{Field: "max_steps", Message: "must not be negative"}
	}
	if def.MaxSteps > 0 {
		f.MaxSteps = def.MaxSteps
	}

	for _, name := range f.Names {
		opts, err := f.compileField(name, def.Fields[string(name)])
		if err != nil {
			return nil, err
		}
		f.Options[name] = opts
	}
	return f, nil
}

func (f *Form) compileField(name field.Name, fd FieldDef) (engine.Options, error) {
	var opts engine.Options
	fail := func(key, msg string) error {
		return &CompileError{Field: fmt.Sprintf("fields.%s.%s", name, key), Message: msg, Pos: fd.pos}
	}

	if fd.Debounce != "" {
		d, err := parseDuration(fd.Debounce)
		if err != nil {
			return opts, fail("debounce", err.Error())
		}
		opts.Debounce = &d
	}

	sv, err := compileSchema(fd)
	if err != nil {
		return opts, fail("schema", err.Error())
	}
	if sv != nil {
		opts.Schema = sv
	}

	for _, r := range fd.Rules {
		if r.Name == rules.RuleEqualsField && r.Field != "" && !f.has(field.Name(r.Field)) {
			return opts, fail("rules", fmt.Sprintf("equals_field references unknown field %q", r.Field))
		}
	}
	checks, err := rules.BuildAll(fd.Rules)
	if err != nil {
		return opts, fail("rules", err.Error())
	}

	directive, err := parseDirective(fd.Directive)
	if err != nil {
		return opts, fail("directive", err.Error())
	}

	if fd.Async != nil {
		async, err := rules.BuildAsync(*fd.Async)
		if err != nil {
			return opts, fail("async", err.Error())
		}
		opts.ValidateAsync = async
	}

	// The schema joins the sync checks unless it is the field's only
	// validation, in which case the engine runs it directly.
	if sv != nil && (len(checks) > 0 || fd.Async != nil) {
		checks = append([]rules.Check{rules.Schema()}, checks...)
	}

	switch {
	case len(checks) > 0 && opts.ValidateAsync != nil:
		opts.Validate = rules.SyncThen(directive, checks...)
	case len(checks) > 0:
		opts.Validate = rules.Sync(checks...)
	case opts.ValidateAsync != nil && fd.Directive != "":
		opts.Validate = func(engine.Args) field.Outcome { return directive }
	}

	if fd.Watch != nil {
		w, err := f.compileWatch(fd.Watch)
		if err != nil {
			return opts, fail("watch", err.Error())
		}
		opts.Watch = w
	}
	return opts, nil
}

func (f *Form) has(name field.Name) bool {
	_, ok := f.Defaults[name]
	return ok
}

func compileSchema(fd FieldDef) (engine.SchemaValidator, error) {
	if fd.Schema != "" {
		return schema.CompileCUE(fd.Schema)
	}
	if !fd.SchemaValue.Exists() {
		return nil, nil
	}
	// A concrete string is schema source, as in YAML definitions.
	if src, err := fd.SchemaValue.String(); err == nil {
		return schema.CompileCUE(src)
	}
	return schema.FromValue(fd.SchemaValue)
}

func (f *Form) compileWatch(wd *WatchDef) (*field.Watch, error) {
	w := &field.Watch{}
	if wd.Self != nil {
		set, err := field.ParseEvents(wd.Self)
		if err != nil {
			return nil, err
		}
		w.Self = set
	}
	if len(wd.Fields) > 0 {
		w.Fields = make(map[field.Name]field.EventSet, len(wd.Fields))
	}
	for src, events := range wd.Fields {
		if !f.has(field.Name(src)) {
			return nil, fmt.Errorf("watches unknown field %q", src)
		}
		var set field.EventSet
		if events != nil {
			var err error
			if set, err = field.ParseEvents(events); err != nil {
				return nil, err
			}
		}
		w.Fields[field.Name(src)] = set
	}
	return w, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s must not be negative", s)
	}
	return d, nil
}

func parseDirective(s string) (field.Directive, error) {
	switch s {
	case "", "auto":
		return field.Auto(), nil
	case "run":
		return field.Run(), nil
	case "skip":
		return field.Skip(), nil
	default:
		return field.Directive{}, fmt.Errorf("unknown directive %q: must be one of auto, run, skip", s)
	}
}

// StoreOptions returns the store options the definition implies.
func (f *Form) StoreOptions() []engine.Option {
	return []engine.Option{
		engine.WithDebounce(f.Debounce),
		engine.WithMaxSteps(f.MaxSteps),
	}
}

// NewStore creates a store for the form and registers every field.
// opts are applied after the definition's own options.
func (f *Form) NewStore(opts ...engine.Option) (*engine.Store, error) {
	s := engine.New(f.Defaults, append(f.StoreOptions(), opts...)...)
	for _, name := range f.Names {
		if err := s.Register(name, f.Options[name]); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return s, nil
}

// Edge is one reaction edge of a compiled form.
type Edge struct {
	Source field.Name
	Event  field.Event
	Target field.Name
}

// Edges lists the form's reaction edges as the store's graph holds them:
// grouped by target in name order, self relations first.
func (f *Form) Edges() []Edge {
	g, _ := f.graph()
	var edges []Edge
	for t, target := range f.Names {
		for _, e := range g.Owned(t) {
			edges = append(edges, Edge{Source: f.Names[e.Source], Event: e.Event, Target: target})
		}
	}
	return edges
}

// declared expands every field's watch into edges, before deduplication.
func (f *Form) declared() []Edge {
	var edges []Edge
	for _, target := range f.Names {
		for _, rel := range f.Options[target].Watch.Relations(target) {
			for _, ev := range rel.Events {
				edges = append(edges, Edge{Source: rel.Source, Event: ev, Target: target})
			}
		}
	}
	return edges
}
