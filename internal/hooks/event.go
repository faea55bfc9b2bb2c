package hooks

import (
	"reflect"
	"time"
)

// Actions carried by events emitted from the entity engine.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// DefaultActor is used when no actor is attached to the request.
const DefaultActor = "System"

// Change is the before and after value of one property.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Event describes one mutation of the entity graph.
type Event struct {
	Action   string            `json:"action"`
	Label    string            `json:"label"`
	NodeID   string            `json:"node_id"`
	NodeName string            `json:"node_name,omitempty"`
	Actor    string            `json:"actor"`
	Changes  map[string]Change `json:"changes,omitempty"`
	Details  string            `json:"details,omitempty"`
	Time     time.Time         `json:"time"`
}

// Diff returns the keys of next whose value differs from prev. Keys absent
// from next are not reported; updates never delete properties.
func Diff(prev, next map[string]any) map[string]Change {
	changes := make(map[string]Change)
	for k, nv := range next {
		ov, ok := prev[k]
		if ok && reflect.DeepEqual(ov, nv) {
			continue
		}
		changes[k] = Change{Old: ov, New: nv}
	}
	return changes
}
