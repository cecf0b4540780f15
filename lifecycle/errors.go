package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"vslmanager/backup"
	"vslmanager/guard"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("installation is busy")
	ErrIO         = errors.New("filesystem operation failed")
	ErrNotFound   = errors.New("not found")
)

// ValidationError is bad user input. State is never touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError means the installation holds reasons that forbid the
// requested operation.
type ConflictError struct {
	InstallationID string
	Reasons        []guard.Reason
}

func (e *ConflictError) Error() string {
	descs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		if r.Description != "" {
			descs = append(descs, r.Description)
		} else {
			descs = append(descs, r.ID)
		}
	}
	return fmt.Sprintf("installation %s is busy: %s", e.InstallationID, strings.Join(descs, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IOFailure wraps a filesystem error. Partial files have been cleaned up by
// the time it is returned.
type IOFailure struct {
	Op   string
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("failed to %s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

func (e *IOFailure) Is(target error) bool { return target == ErrIO }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func ioFailure(op, path string, err error) error {
	var be *backup.IOError
	if errors.As(err, &be) {
		return &IOFailure{Op: be.Op, Path: be.Path, Err: be.Err}
	}
	return &IOFailure{Op: op, Path: path, Err: err}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}
