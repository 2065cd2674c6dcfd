// Package errs holds the error taxonomy shared by the fabrication engine,
// the collaborators and the pipeline coordinator.
//
// Sentinels are matched with errors.Is; the structured types carry the
// context needed for log lines and the post-run report.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks setup problems (missing template directory,
	// empty vocabulary, invalid tier). Fatal before any item is processed.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks a fabricated record that violates an arithmetic or
	// ordering invariant. It indicates a defect in fabrication.
	ErrValidation = errors.New("validation error")

	// ErrItemProcessing marks a single item failing render, rasterize or
	// degrade. The item is dropped and the run continues.
	ErrItemProcessing = errors.New("item processing error")

	// ErrEmptyExport is returned when an export is asked to write zero records.
	ErrEmptyExport = errors.New("nothing to export")
)

// ConfigError describes a configuration problem.
type ConfigError struct {
	Source string // e.g. "profile", "templates", "tier"
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Source, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Configf builds a ConfigError with a formatted reason.
func Configf(source, format string, args ...any) error {
	return &ConfigError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError describes a record invariant violation.
type ValidationError struct {
	Kind   string
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s: %s: %s", e.Kind, e.ID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ItemError records why one item dropped out of the pipeline.
type ItemError struct {
	ID    string
	Stage string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s failed at %s: %v", e.ID, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() []error {
	return []error{ErrItemProcessing, e.Err}
}

// IsFatal reports whether err should abort a whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrValidation)
}
