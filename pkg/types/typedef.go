package types

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// DirectionOut is the only relationship direction currently declared: edges
// run from the declaring type to the target type.
const DirectionOut = "out"

// DefaultCategory groups types that declare no category.
const DefaultCategory = "Uncategorized"

// DefaultColumnCount is the number of leading properties used as display
// columns when a type declares none.
const DefaultColumnCount = 5

// TypeDefinition describes one runtime-registered entity type.
type TypeDefinition struct {
	Label         string                      `json:"label,omitempty" yaml:"label,omitempty"`
	DisplayName   string                      `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description   string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string                      `json:"category,omitempty" yaml:"category,omitempty"`
	Properties    []PropertyDescriptor        `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required      []string                    `json:"required,omitempty" yaml:"required,omitempty"`
	Relationships map[string]RelationshipSpec `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Columns       []string                    `json:"columns,omitempty" yaml:"columns,omitempty"`
	OriginPack    string                      `json:"origin_pack,omitempty" yaml:"origin_pack,omitempty"`
}

// RelationshipSpec declares an allowed outgoing relationship type.
type RelationshipSpec struct {
	Target    string `json:"target" yaml:"target"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// PropertyDescriptor is either a bare property name or a name with an
// enumerated domain of choices. It serializes as a plain string when it has
// no choices.
type PropertyDescriptor struct {
	Name    string   `json:"name" yaml:"name"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Prop is shorthand for a bare property descriptor.
func Prop(name string) PropertyDescriptor { return PropertyDescriptor{Name: name} }

// UnmarshalJSON accepts "name" or {"name": ..., "choices": [...]}.
func (p *PropertyDescriptor) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = PropertyDescriptor{Name: name}
		return nil
	}
	type plain PropertyDescriptor
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("property descriptor: %w", err)
	}
	*p = PropertyDescriptor(obj)
	return nil
}

// MarshalJSON writes a bare string when the descriptor has no choices.
func (p PropertyDescriptor) MarshalJSON() ([]byte, error) {
	if len(p.Choices) == 0 {
		return json.Marshal(p.Name)
	}
	type plain PropertyDescriptor
	return json.Marshal(plain(p))
}

// UnmarshalYAML accepts a scalar name or a mapping with name and choices.
func (p *PropertyDescriptor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = PropertyDescriptor{Name: node.Value}
		return nil
	}
	type plain PropertyDescriptor
	var obj plain
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("property descriptor: %w", err)
	}
	*p = PropertyDescriptor(obj)
	return nil
}

// PropertyNames returns the declared property names in order.
func (d TypeDefinition) PropertyNames() []string {
	names := make([]string, len(d.Properties))
	for i, p := range d.Properties {
		names[i] = p.Name
	}
	return names
}

// HasProperty reports whether name is declared in Properties.
func (d TypeDefinition) HasProperty(name string) bool {
	for _, p := range d.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of d.
func (d TypeDefinition) Clone() TypeDefinition {
	c := d
	if d.Properties != nil {
		c.Properties = make([]PropertyDescriptor, len(d.Properties))
		for i, p := range d.Properties {
			c.Properties[i] = PropertyDescriptor{Name: p.Name, Choices: slices.Clone(p.Choices)}
		}
	}
	c.Required = slices.Clone(d.Required)
	c.Columns = slices.Clone(d.Columns)
	if d.Relationships != nil {
		c.Relationships = make(map[string]RelationshipSpec, len(d.Relationships))
		for k, v := range d.Relationships {
			c.Relationships[k] = v
		}
	}
	return c
}

// WithDefaults returns a copy of d with presentation defaults filled in: an
// empty relationship map, the label as display name, and the first
// DefaultColumnCount properties as columns when none are set.
func (d TypeDefinition) WithDefaults() TypeDefinition {
	c := d.Clone()
	if c.DisplayName == "" {
		c.DisplayName = c.Label
	}
	if c.Relationships == nil {
		c.Relationships = map[string]RelationshipSpec{}
	}
	if c.Properties == nil {
		c.Properties = []PropertyDescriptor{}
	}
	if c.Required == nil {
		c.Required = []string{}
	}
	if len(c.Columns) == 0 {
		names := c.PropertyNames()
		c.Columns = names[:min(len(names), DefaultColumnCount)]
	}
	return c
}

// Normalize appends required keys that are missing from Properties and fills
// an empty relationship direction with DirectionOut.
func (d *TypeDefinition) Normalize() {
	for _, r := range d.Required {
		if !d.HasProperty(r) {
			d.Properties = append(d.Properties, Prop(r))
		}
	}
	for name, spec := range d.Relationships {
		if spec.Direction == "" {
			spec.Direction = DirectionOut
			d.Relationships[name] = spec
		}
	}
}

// Validate checks the identifiers a type definition contributes to query
// text: its label, each relationship type and each relationship target.
func (d TypeDefinition) Validate() error {
	if err := ValidateLabel(d.Label); err != nil {
		return err
	}
	for name, spec := range d.Relationships {
		if err := ValidateRelationshipType(name); err != nil {
			return fmt.Errorf("type %s: %w", d.Label, err)
		}
		if spec.Target != "" {
			if err := ValidateLabel(spec.Target); err != nil {
				return fmt.Errorf("type %s relationship %s: %w", d.Label, name, err)
			}
		}
	}
	return nil
}
