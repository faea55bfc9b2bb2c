package types

import (
	"fmt"
	"maps"
	"sort"
)

// Entity is one instance of a registered type. Properties are schema-less;
// the engine enforces required keys only at creation time.
type Entity struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// GetProperties returns a copy of the property map. Returns an empty map
// (not nil) if no properties are set.
func (e *Entity) GetProperties() map[string]any {
	out := make(map[string]any, len(e.Properties))
	maps.Copy(out, e.Properties)
	return out
}

// Related is one endpoint of a relationship as shown in detail views.
type Related struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	Type        string `json:"type"`
	SourceLabel string `json:"source_label"`
	SourceID    string `json:"source_id"`
	TargetLabel string `json:"target_label"`
	TargetID    string `json:"target_id"`
}

// DeleteResult describes an entity removed by the engine. DisplayName is
// captured before deletion.
type DeleteResult struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
}

// DisplayName picks the label shown for an entity in relationship views:
// the "name" property if it is non-empty, else the first non-empty property
// in lexical key order, else the first 12 characters of id followed by "...".
func DisplayName(id string, props map[string]any) string {
	if s := displayValue(props["name"]); s != "" {
		return s
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := displayValue(props[k]); s != "" {
			return s
		}
	}
	return TruncateID(id, 12) + "..."
}

func displayValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// TruncateID returns at most n leading bytes of id.
func TruncateID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}
