package discordbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/lmittmann/tint"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	envelopeVersionKey = "version"
	envelopeDataKey    = "data"
)

// Envelope is a versioned document as read from storage, before (or
// after) migration.
type Envelope struct {
	Version int
	Data    Document
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Version int `json:"version"`
			Data    any `json:"data"`
		}{
			Version: e.Version,
			Data:    Native(e.Data),
		},
	)
}

// ParseEnvelope parses raw as {"version": N, "data": ...}. The version
// must be a non-negative integer literal, and data must be present.
func ParseEnvelope(raw []byte) (Envelope, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed document", Err: err}
	}
	root, ok := doc.(Object)
	if !ok {
		return Envelope{}, &DecodeError{
			Reason: fmt.Sprintf("expected an object, got %s", doc.Kind()),
		}
	}

	v, ok := root[envelopeVersionKey]
	if !ok {
		return Envelope{}, &DecodeError{Reason: "missing version"}
	}
	n, ok := v.(Number)
	if !ok {
		return Envelope{}, &DecodeError{
			Reason: fmt.Sprintf("version must be an integer, got %s", v.Kind()),
		}
	}
	version, err := strconv.Atoi(string(n))
	if err != nil {
		return Envelope{}, &DecodeError{
			Reason: fmt.Sprintf("version %s is not an integer", n),
			Err:    err,
		}
	}
	if version < 0 {
		return Envelope{}, &DecodeError{
			Reason: fmt.Sprintf("version %d is negative", version),
		}
	}

	data, ok := root[envelopeDataKey]
	if !ok {
		return Envelope{}, &DecodeError{Reason: "missing data"}
	}
	return Envelope{Version: version, Data: data}, nil
}

// Interval is the half-open version range [From, To) a Step covers.
type Interval struct {
	From int
	To   int
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d)", i.From, i.To)
}

// StepFunc transforms a document at a step's From version into one at
// its To version. It must not modify its argument.
type StepFunc func(Document) (Document, error)

// Step is a single registered migration.
type Step struct {
	Interval
	Name  string
	Apply StepFunc
}

func (s Step) String() string {
	return fmt.Sprintf("%s %s", s.Name, s.Interval)
}

// Registry is an immutable, ordered set of migration steps leading to
// CurrentVersion.
//
// Registration validates each step on its own and rejects two steps
// starting at the same version. Gaps between steps are not detected
// here; a document at a version no step starts from fails in Migrate.
type Registry struct {
	currentVersion int
	steps          []Step
}

// NewRegistry validates steps and returns a Registry targeting
// currentVersion.
func NewRegistry(currentVersion int, steps ...Step) (*Registry, error) {
	if currentVersion < 0 {
		return nil, fmt.Errorf(
			"%w: current version %d is negative",
			ErrInvalidStep,
			currentVersion,
		)
	}
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(
		sorted, func(i, j int) bool {
			return sorted[i].From < sorted[j].From
		},
	)

	for i, s := range sorted {
		switch {
		case s.Apply == nil:
			return nil, fmt.Errorf("%w: %s has no transform", ErrInvalidStep, s)
		case s.From < 0:
			return nil, fmt.Errorf("%w: %s starts below zero", ErrInvalidStep, s)
		case s.To <= s.From:
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidStep, s)
		case s.To > currentVersion:
			return nil, fmt.Errorf(
				"%w: %s ends past current version %d",
				ErrInvalidStep,
				s,
				currentVersion,
			)
		}
		if i > 0 && sorted[i-1].From == s.From {
			return nil, fmt.Errorf(
				"%w: %s and %s both start at version %d",
				ErrDuplicateStep,
				sorted[i-1],
				s,
				s.From,
			)
		}
	}

	return &Registry{currentVersion: currentVersion, steps: sorted}, nil
}

// MustNewRegistry is like NewRegistry, but panics on error.
func MustNewRegistry(currentVersion int, steps ...Step) *Registry {
	r, err := NewRegistry(currentVersion, steps...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) CurrentVersion() int {
	return r.currentVersion
}

// Steps returns the registered steps ordered by From.
func (r *Registry) Steps() []Step {
	steps := make([]Step, len(r.steps))
	copy(steps, r.steps)
	return steps
}

func (r *Registry) step(from int) (Step, bool) {
	i := sort.Search(
		len(r.steps), func(i int) bool {
			return r.steps[i].From >= from
		},
	)
	if i < len(r.steps) && r.steps[i].From == from {
		return r.steps[i], true
	}
	return Step{}, false
}

// Migrate steps env forward until it reaches the registry's current
// version. An envelope already at the current version is returned as is.
func (r *Registry) Migrate(ctx context.Context, env Envelope) (Envelope, error) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = slog.Default()
	}

	for env.Version != r.currentVersion {
		step, found := r.step(env.Version)
		if !found {
			return Envelope{}, &MigrationError{
				Version: env.Version,
				Target:  r.currentVersion,
			}
		}
		data, err := step.Apply(env.Data)
		if err == nil && data == nil {
			err = errors.New("step returned no document")
		}
		if err != nil {
			return Envelope{}, &MigrationError{
				Version: env.Version,
				Target:  r.currentVersion,
				Step:    step.Name,
				Err:     err,
			}
		}
		env = Envelope{Version: step.To, Data: data}

		if log.Enabled(ctx, slog.LevelDebug) {
			out, encErr := EncodeDocument(data, false)
			if encErr != nil {
				log.ErrorContext(
					ctx,
					"error encoding migration output",
					"step", step.Name,
					tint.Err(encErr),
				)
				continue
			}
			log.DebugContext(
				ctx,
				"migration output",
				"step", step.Name,
				"from", step.From,
				"to", step.To,
				"document", string(out),
			)
		}
	}
	return env, nil
}

// DecodeFunc converts a current-version document into its typed model.
type DecodeFunc[T any] func(Document) (T, error)

// Migrator parses versioned documents, migrates them with a Registry, and
// decodes the result into T.
type Migrator[T any] struct {
	registry *Registry
	schema   *jsonschema.Schema
	decode   DecodeFunc[T]
}

// NewMigrator returns a Migrator. schema may be nil, in which case the
// migrated document is handed straight to decode.
func NewMigrator[T any](
	registry *Registry,
	schema *jsonschema.Schema,
	decode DecodeFunc[T],
) *Migrator[T] {
	return &Migrator[T]{registry: registry, schema: schema, decode: decode}
}

func (m *Migrator[T]) Registry() *Registry {
	return m.registry
}

// MigrateDocument parses raw and migrates it to the current version
// without decoding it.
func (m *Migrator[T]) MigrateDocument(ctx context.Context, raw []byte) (Envelope, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return Envelope{}, err
	}
	return m.registry.Migrate(ctx, env)
}

// Migrate parses, migrates and decodes raw. Either the whole document
// decodes, or an error is returned and the zero value of T with it.
func (m *Migrator[T]) Migrate(ctx context.Context, raw []byte) (T, error) {
	env, err := m.MigrateDocument(ctx, raw)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.Decode(env)
}

// Decode validates and decodes an envelope at the current version.
func (m *Migrator[T]) Decode(env Envelope) (T, error) {
	var zero T
	if env.Version != m.registry.currentVersion {
		return zero, &SchemaError{
			Version: env.Version,
			Err: fmt.Errorf(
				"expected version %d",
				m.registry.currentVersion,
			),
		}
	}
	if m.schema != nil {
		if err := m.schema.Validate(Native(env.Data)); err != nil {
			return zero, &SchemaError{Version: env.Version, Err: err}
		}
	}
	v, err := m.decode(env.Data)
	if err != nil {
		return zero, &SchemaError{Version: env.Version, Err: err}
	}
	return v, nil
}

// CompileSchema compiles a JSON schema document registered under name.
func CompileSchema(name string, schema []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return sch, nil
}
