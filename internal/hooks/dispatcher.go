// Package hooks fans out entity mutation events to registered hooks.
//
// Dispatch is best effort: a hook that returns an error or panics is logged
// and counted, and neither the remaining hooks nor the triggering operation
// are affected.
package hooks

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/cmdb/internal/metrics"
)

// Hook receives events.
type Hook interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event) error

// HandleEvent calls f.
func (f HookFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Named is implemented by hooks that report a stable name for logs and
// metrics.
type Named interface {
	Name() string
}

type entry struct {
	hook   Hook
	owners []string
	// pinned entries were registered without an owner and survive
	// RemoveOwner.
	pinned bool
}

// Dispatcher holds the ordered hook list.
type Dispatcher struct {
	mu      sync.RWMutex
	entries []entry
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for hook failures.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithMetrics sets the metrics sink for hook failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register appends h. Registering the same hook again is a no-op; it
// reports whether h was added.
func (d *Dispatcher) Register(h Hook) bool {
	return d.RegisterOwned("", h)
}

// RegisterOwned appends h on behalf of owner, typically a feature pack, so
// it can be dropped with RemoveOwner. A hook shared by several owners is
// delivered once and stays registered until its last owner is removed.
func (d *Dispatcher) RegisterOwned(owner string, h Hook) bool {
	if h == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.entries {
		e := &d.entries[i]
		if !sameHook(e.hook, h) {
			continue
		}
		if owner == "" {
			e.pinned = true
		} else if !slices.Contains(e.owners, owner) {
			e.owners = append(e.owners, owner)
		}
		return false
	}
	e := entry{hook: h, pinned: owner == ""}
	if owner != "" {
		e.owners = []string{owner}
	}
	d.entries = append(d.entries, e)
	return true
}

// RemoveOwner releases every hook registered by owner and returns how many
// hooks were dropped. Hooks still held by another owner stay.
func (d *Dispatcher) RemoveOwner(owner string) int {
	if owner == "" {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.entries[:0]
	removed := 0
	for _, e := range d.entries {
		if i := slices.Index(e.owners, owner); i >= 0 {
			e.owners = slices.Delete(slices.Clone(e.owners), i, i+1)
			if len(e.owners) == 0 && !e.pinned {
				removed++
				continue
			}
		}
		kept = append(kept, e)
	}
	clear(d.entries[len(kept):])
	d.entries = kept
	return removed
}

// Len returns the number of registered hooks.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Emit delivers ev to every hook in registration order and returns the
// number of hooks that failed.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) int {
	if ev.Time.IsZero() {
		ev.Time = d.now().UTC()
	}
	if ev.Actor == "" {
		ev.Actor = DefaultActor
	}

	d.mu.RLock()
	snapshot := make([]Hook, len(d.entries))
	for i, e := range d.entries {
		snapshot[i] = e.hook
	}
	d.mu.RUnlock()

	failed := 0
	for _, h := range snapshot {
		if err := d.invoke(ctx, h, ev); err != nil {
			failed++
			name := hookName(h)
			d.log.Warn().Err(err).
				Str("hook", name).
				Str("action", ev.Action).
				Str("label", ev.Label).
				Str("node_id", ev.NodeID).
				Msg("hook failed")
			d.metrics.HookFailed(name, ev.Action)
		}
	}
	return failed
}

func (d *Dispatcher) invoke(ctx context.Context, h Hook, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return h.HandleEvent(ctx, ev)
}

func hookName(h Hook) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

// sameHook reports whether a and b are the same hook reference. Function
// hooks are compared by code pointer.
func sameHook(a, b Hook) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}
