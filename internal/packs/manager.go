// Package packs manages feature packs: bundles on disk that contribute type
// definitions, detail-view tabs and hooks.
//
// Two directories are involved. The store directory holds bundles that are
// available to install; the packs directory holds installed bundles. The
// catalog records which packs are installed and enabled, and is the source
// the registry is rebuilt from.
package packs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/internal/metrics"
	"github.com/mesh-intelligence/cmdb/internal/registry"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// HookFactory builds a hook a pack manifest names in its hooks list.
type HookFactory func(log zerolog.Logger) hooks.Hook

// Manager runs the pack lifecycle. Lifecycle operations are serialized;
// reads go straight to the catalog.
type Manager struct {
	catalog   types.Catalog
	registry  *registry.Registry
	hooks     *hooks.Dispatcher
	factories map[string]HookFactory
	// instances holds one hook per factory name, shared by every pack that
	// names it. Guarded by mu.
	instances map[string]hooks.Hook

	packsDir string
	storeDir string

	log     zerolog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu  sync.Mutex
	sf  singleflight.Group
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPacksDir sets the directory installed bundles live in.
func WithPacksDir(dir string) Option {
	return func(m *Manager) { m.packsDir = dir }
}

// WithStoreDir sets the directory bundles are installed from.
func WithStoreDir(dir string) Option {
	return func(m *Manager) { m.storeDir = dir }
}

// WithHooks sets the dispatcher pack hooks are registered on.
func WithHooks(d *hooks.Dispatcher) Option {
	return func(m *Manager) { m.hooks = d }
}

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTracer sets the tracer used for lifecycle spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithHookFactory makes a hook available to manifests under name.
func WithHookFactory(name string, f HookFactory) Option {
	return func(m *Manager) { m.factories[name] = f }
}

// New returns a manager persisting to catalog and registering types in reg.
func New(catalog types.Catalog, reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		catalog:  catalog,
		registry: reg,
		hooks:    hooks.NewDispatcher(),
		factories: map[string]HookFactory{
			hooks.AuditLogName: func(log zerolog.Logger) hooks.Hook { return hooks.NewAuditLogHook(log) },
		},
		instances: map[string]hooks.Hook{},
		log:       zerolog.Nop(),
		tracer:    noop.NewTracerProvider().Tracer("cmdb"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PacksDir returns the installed bundle directory.
func (m *Manager) PacksDir() string { return m.packsDir }

// StoreDir returns the available bundle directory.
func (m *Manager) StoreDir() string { return m.storeDir }

func (m *Manager) begin(ctx context.Context, op, name string) (context.Context, func(errp *error)) {
	ctx, span := m.tracer.Start(ctx, "packs."+op,
		trace.WithAttributes(attribute.String("cmdb.pack", name)))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		m.metrics.ObservePackOp(op, err)
	}
}

// lookup returns the catalog row for name, or nil if it is not installed.
func (m *Manager) lookup(ctx context.Context, name string) (*types.FeaturePack, error) {
	p, err := m.catalog.GetPack(ctx, name)
	if errors.Is(err, types.ErrPackNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pack %s: %w", name, err)
	}
	return p, nil
}

// registerTypes registers defs as provided by pack.
func (m *Manager) registerTypes(pack string, defs []types.TypeDefinition) {
	for _, def := range defs {
		m.registry.Register(def.Label, def, pack)
	}
	m.metrics.SetRegisteredTypes(m.registry.Len())
}

// unregisterTypes drops every registered type that pack provides.
func (m *Manager) unregisterTypes(pack string) {
	for _, label := range m.registry.TypesForPack(pack) {
		m.registry.Unregister(label)
	}
	m.metrics.SetRegisteredTypes(m.registry.Len())
}

// registerHooks replaces the hooks owned by pack with the ones its
// manifest names. Unknown hook names are logged and skipped.
func (m *Manager) registerHooks(p types.FeaturePack) {
	m.hooks.RemoveOwner(p.Name)
	for _, name := range p.Manifest.Hooks {
		h, ok := m.hookFor(name)
		if !ok {
			m.log.Warn().Str("pack", p.Name).Str("hook", name).Msg("unknown hook")
			continue
		}
		m.hooks.RegisterOwned(p.Name, h)
	}
}

// hookFor returns the shared instance of the named hook, building it on
// first use.
func (m *Manager) hookFor(name string) (hooks.Hook, bool) {
	if h, ok := m.instances[name]; ok {
		return h, true
	}
	f, ok := m.factories[name]
	if !ok {
		return nil, false
	}
	h := f(m.log)
	m.instances[name] = h
	return h, true
}
