package types

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup errors. An unknown label is reported as both ErrNotFound and
// ErrUnknownType so callers can branch on either.
var (
	ErrNotFound             = errors.New("not found")
	ErrUnknownType          = errors.New("unknown type")
	ErrRelationshipNotFound = fmt.Errorf("relationship %w", ErrNotFound)
	ErrPackNotFound         = fmt.Errorf("feature pack %w", ErrNotFound)
)

// Validation errors. Every specific validation error wraps ErrValidationFailed.
var (
	ErrValidationFailed        = errors.New("validation failed")
	ErrInvalidIdentifier       = fmt.Errorf("%w: invalid identifier", ErrValidationFailed)
	ErrMissingRequiredProperty = fmt.Errorf("%w: missing required property", ErrValidationFailed)
	ErrRelationshipNotAllowed  = fmt.Errorf("%w: relationship not allowed", ErrValidationFailed)
	ErrInvalidPayload          = fmt.Errorf("%w: invalid payload", ErrValidationFailed)
	ErrInvalidManifest         = fmt.Errorf("%w: invalid feature pack manifest", ErrValidationFailed)
)

// Feature pack lifecycle errors.
var (
	ErrDependencyUnsatisfied = errors.New("dependency unsatisfied")
	ErrDependentsBlocking    = errors.New("dependents blocking")
	ErrDependencyCycle       = errors.New("dependency cycle")
)

// Backend errors.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid config")
)

// UnknownTypeError returns the error reported for a label that is not in the
// registry.
func UnknownTypeError(label string) error {
	return fmt.Errorf("%w: %w %q", ErrNotFound, ErrUnknownType, label)
}

// MissingPropertiesError lists the required properties absent from a create
// payload, in the order the type declares them.
type MissingPropertiesError struct {
	Label   string
	Missing []string
}

func (e *MissingPropertiesError) Error() string {
	return fmt.Sprintf("%s: missing required properties for %s: %s",
		ErrValidationFailed, e.Label, strings.Join(e.Missing, ", "))
}

func (e *MissingPropertiesError) Unwrap() error { return ErrMissingRequiredProperty }

// IdentifierError reports a label, relationship type or pack name that does
// not match its allow-list pattern.
type IdentifierError struct {
	Kind  string
	Value string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("%s: invalid %s %q", ErrValidationFailed, e.Kind, e.Value)
}

func (e *IdentifierError) Unwrap() error { return ErrInvalidIdentifier }

// DependencyError reports the dependencies that block installing or enabling
// a pack, split into absent packs and installed-but-disabled packs.
type DependencyError struct {
	Pack     string
	Op       string
	Missing  []string
	Disabled []string
}

func (e *DependencyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Disabled) > 0 {
		parts = append(parts, "disabled: "+strings.Join(e.Disabled, ", "))
	}
	op := e.Op
	if op == "" {
		op = "install"
	}
	return fmt.Sprintf("cannot %s %s: %s", op, e.Pack, strings.Join(parts, "; "))
}

func (e *DependencyError) Unwrap() error { return ErrDependencyUnsatisfied }

// DependentsError reports the packs, by display name, that declare a
// dependency on a pack being disabled or removed.
type DependentsError struct {
	Pack       string
	Op         string
	Dependents []string
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("cannot %s %s: required by %s", e.Op, e.Pack, strings.Join(e.Dependents, ", "))
}

func (e *DependentsError) Unwrap() error { return ErrDependentsBlocking }
