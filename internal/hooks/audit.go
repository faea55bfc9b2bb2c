package hooks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// AuditLogName is the manifest name of the built-in audit hook.
const AuditLogName = "audit_log"

// AuditLogHook writes one structured log record per event.
type AuditLogHook struct {
	log zerolog.Logger
}

// NewAuditLogHook returns an audit hook writing to log.
func NewAuditLogHook(log zerolog.Logger) *AuditLogHook {
	return &AuditLogHook{log: log}
}

// Name implements Named.
func (h *AuditLogHook) Name() string { return AuditLogName }

// HandleEvent implements Hook.
func (h *AuditLogHook) HandleEvent(_ context.Context, ev Event) error {
	rec := h.log.Info().
		Str("audit_action", ev.Action).
		Str("label", ev.Label).
		Str("node_id", ev.NodeID).
		Str("actor", ev.Actor).
		Time("at", ev.Time)
	if ev.NodeName != "" {
		rec = rec.Str("node_name", ev.NodeName)
	}
	if len(ev.Changes) > 0 {
		rec = rec.Interface("changes", ev.Changes)
	}
	if ev.Details != "" {
		rec = rec.Str("details", ev.Details)
	}
	rec.Msg("audit")
	return nil
}

// CreatedDetails formats the details line for a create event.
func CreatedDetails(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "Created with properties: " + strings.Join(keys, ", ")
}

// RelationDetails formats the details line for connect and disconnect
// events.
func RelationDetails(verb, relType, targetLabel, targetName string) string {
	return fmt.Sprintf("%s %s -> %s %s", verb, relType, targetLabel, targetName)
}
