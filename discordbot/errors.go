package discordbot

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStep is returned by NewRegistry for a step whose interval
	// or transform cannot be used.
	ErrInvalidStep = errors.New("invalid migration step")

	// ErrDuplicateStep is returned by NewRegistry when two steps start at
	// the same version.
	ErrDuplicateStep = errors.New("duplicate migration step")
)

// DecodeError indicates the input was not well-formed JSON, or the
// envelope's version tag or data was missing or malformed.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode: %s", e.Reason)
	}
	return fmt.Sprintf("decode: %s: %s", e.Reason, e.Err.Error())
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MigrationError indicates a document could not be stepped forward to
// the target version, either because no step starts at Version or
// because the step starting there failed (Err is set).
type MigrationError struct {
	Version int
	Target  int
	Step    string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf(
			"no migration from version %d (target version %d)",
			e.Version,
			e.Target,
		)
	}
	return fmt.Sprintf(
		"migration %q from version %d failed: %s",
		e.Step,
		e.Version,
		e.Err.Error(),
	)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// SchemaError indicates the fully migrated document does not match the
// typed configuration model.
type SchemaError struct {
	Version int
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema (version %d): %s", e.Version, e.Err.Error())
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
