package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPropertyDescriptor_JSON(t *testing.T) {
	var def TypeDefinition
	raw := `{
		"display_name": "Device",
		"properties": ["name", {"name": "status", "choices": ["active", "maintenance"]}],
		"required": ["name"],
		"relationships": {"LOCATED_IN": {"target": "Rack", "direction": "out"}}
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &def))
	require.Len(t, def.Properties, 2)
	assert.Equal(t, "name", def.Properties[0].Name)
	assert.Empty(t, def.Properties[0].Choices)
	assert.Equal(t, []string{"active", "maintenance"}, def.Properties[1].Choices)
	assert.Equal(t, "Rack", def.Relationships["LOCATED_IN"].Target)

	out, err := json.Marshal(def.Properties)
	require.NoError(t, err)
	assert.JSONEq(t, `["name", {"name": "status", "choices": ["active", "maintenance"]}]`, string(out))
}

func TestPropertyDescriptor_YAML(t *testing.T) {
	raw := `
properties:
  - hostname
  - name: role
    choices: [dns, web]
required: [hostname]
`
	var def TypeDefinition
	require.NoError(t, yaml.Unmarshal([]byte(raw), &def))
	assert.Equal(t, []string{"hostname", "role"}, def.PropertyNames())
	assert.Equal(t, []string{"dns", "web"}, def.Properties[1].Choices)
}

func TestTypeDefinition_WithDefaults(t *testing.T) {
	def := TypeDefinition{
		Label:      "Device",
		Properties: []PropertyDescriptor{Prop("a"), Prop("b"), Prop("c"), Prop("d"), Prop("e"), Prop("f")},
	}
	got := def.WithDefaults()
	assert.Equal(t, "Device", got.DisplayName)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got.Columns)
	assert.NotNil(t, got.Relationships)
	assert.Empty(t, got.Relationships)
	assert.Nil(t, def.Columns, "WithDefaults must not mutate the receiver")

	def.Columns = []string{"f"}
	assert.Equal(t, []string{"f"}, def.WithDefaults().Columns)
}

func TestTypeDefinition_Clone(t *testing.T) {
	def := TypeDefinition{
		Label:         "Rack",
		Properties:    []PropertyDescriptor{{Name: "size", Choices: []string{"42U"}}},
		Required:      []string{"size"},
		Relationships: map[string]RelationshipSpec{"IN_ROW": {Target: "Row"}},
	}
	c := def.Clone()
	c.Properties[0].Choices[0] = "48U"
	c.Required[0] = "x"
	c.Relationships["IN_ROW"] = RelationshipSpec{Target: "Room"}

	assert.Equal(t, "42U", def.Properties[0].Choices[0])
	assert.Equal(t, "size", def.Required[0])
	assert.Equal(t, "Row", def.Relationships["IN_ROW"].Target)
}

func TestTypeDefinition_Normalize(t *testing.T) {
	def := TypeDefinition{
		Label:         "Device",
		Properties:    []PropertyDescriptor{Prop("status")},
		Required:      []string{"name", "status"},
		Relationships: map[string]RelationshipSpec{"IN_RACK": {Target: "Rack"}},
	}
	def.Normalize()
	assert.Equal(t, []string{"status", "name"}, def.PropertyNames())
	assert.Equal(t, DirectionOut, def.Relationships["IN_RACK"].Direction)
}

func TestTypeDefinition_Validate(t *testing.T) {
	good := TypeDefinition{Label: "Device", Relationships: map[string]RelationshipSpec{"IN_RACK": {Target: "Rack"}}}
	assert.NoError(t, good.Validate())

	badLabel := TypeDefinition{Label: "Dev ice"}
	assert.ErrorIs(t, badLabel.Validate(), ErrInvalidIdentifier)

	badRel := TypeDefinition{Label: "Device", Relationships: map[string]RelationshipSpec{"in_rack": {Target: "Rack"}}}
	assert.ErrorIs(t, badRel.Validate(), ErrInvalidIdentifier)

	badTarget := TypeDefinition{Label: "Device", Relationships: map[string]RelationshipSpec{"IN_RACK": {Target: "Rack`"}}}
	assert.ErrorIs(t, badTarget.Validate(), ErrInvalidIdentifier)
}
