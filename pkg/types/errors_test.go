package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownTypeError(t *testing.T) {
	err := UnknownTypeError("Nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, err.Error(), `"Nope"`)
}

func TestRelationshipNotFoundIsNotFound(t *testing.T) {
	assert.ErrorIs(t, ErrRelationshipNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrPackNotFound, ErrNotFound)
}

func TestMissingPropertiesError(t *testing.T) {
	err := &MissingPropertiesError{Label: "Device", Missing: []string{"name", "serial"}}
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, ErrMissingRequiredProperty)
	assert.Contains(t, err.Error(), "name, serial")
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{Pack: "itsm_pack", Missing: []string{"inventory_pack"}, Disabled: []string{"dns_pack"}}
	assert.ErrorIs(t, err, ErrDependencyUnsatisfied)
	assert.Equal(t, "cannot install itsm_pack: missing: inventory_pack; disabled: dns_pack", err.Error())

	onlyDisabled := &DependencyError{Pack: "a", Op: "enable", Disabled: []string{"b"}}
	assert.Equal(t, "cannot enable a: disabled: b", onlyDisabled.Error())
}

func TestDependentsError(t *testing.T) {
	err := &DependentsError{Pack: "dns_pack", Op: "disable", Dependents: []string{"ITSM Pack"}}
	assert.ErrorIs(t, err, ErrDependentsBlocking)
	assert.Equal(t, "cannot disable dns_pack: required by ITSM Pack", err.Error())
}
