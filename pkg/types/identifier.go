package types

import "regexp"

// Identifier patterns. Labels and relationship types are interpolated into
// query text by graph backends, so only values matching these patterns may
// ever reach a backend.
var (
	labelPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	relTypePattern  = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	packNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)
)

// Identifier kinds used in IdentifierError.
const (
	IdentLabel            = "label"
	IdentRelationshipType = "relationship type"
	IdentPackName         = "pack name"
)

// maxIdentifierLength bounds identifiers so a label can never be used to
// inflate query text.
const maxIdentifierLength = 128

// ValidateLabel returns an *IdentifierError if label is not graph-label-safe.
func ValidateLabel(label string) error {
	if len(label) > maxIdentifierLength || !labelPattern.MatchString(label) {
		return &IdentifierError{Kind: IdentLabel, Value: label}
	}
	return nil
}

// ValidateRelationshipType returns an *IdentifierError if relType is not an
// uppercase relationship-type name.
func ValidateRelationshipType(relType string) error {
	if len(relType) > maxIdentifierLength || !relTypePattern.MatchString(relType) {
		return &IdentifierError{Kind: IdentRelationshipType, Value: relType}
	}
	return nil
}

// ValidatePackName returns an *IdentifierError if name cannot be used as a
// pack directory name.
func ValidatePackName(name string) error {
	if len(name) > maxIdentifierLength || !packNamePattern.MatchString(name) {
		return &IdentifierError{Kind: IdentPackName, Value: name}
	}
	return nil
}

// IsValidLabel reports whether label passes ValidateLabel.
func IsValidLabel(label string) bool { return ValidateLabel(label) == nil }

// IsValidRelationshipType reports whether relType passes ValidateRelationshipType.
func IsValidRelationshipType(relType string) bool { return ValidateRelationshipType(relType) == nil }
