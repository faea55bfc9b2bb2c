// Package cmdb is the public entry point: it opens the storage backends and
// wires the type registry, entity engine, feature pack manager and hook
// dispatcher into one System.
//
// Example:
//
//	sys, err := cmdb.Open(ctx, types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".cmdb-db",
//	})
//	if err != nil {
//	    return err
//	}
//	defer sys.Close()
//	dev, err := sys.Engine.Create(ctx, "Device", map[string]any{"name": "srv1"})
package cmdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mesh-intelligence/cmdb/internal/engine"
	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/internal/metrics"
	"github.com/mesh-intelligence/cmdb/internal/neo4j"
	"github.com/mesh-intelligence/cmdb/internal/packs"
	"github.com/mesh-intelligence/cmdb/internal/paths"
	"github.com/mesh-intelligence/cmdb/internal/registry"
	"github.com/mesh-intelligence/cmdb/internal/sqlite"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Version is the release version of the cmdb module.
var Version = "0.1.0"

// Default bundle directory names under the data directory.
const (
	PacksDirName = paths.PacksDirName
	StoreDirName = paths.StoreDirName
)

// System is an opened CMDB.
type System struct {
	Registry *registry.Registry
	Hooks    *hooks.Dispatcher
	Engine   *engine.Engine
	Packs    *packs.Manager
	Metrics  *metrics.Metrics

	// Catalog is the SQLite database holding feature packs and type
	// definitions. With the SQLite backend it also holds the graph.
	Catalog *sqlite.Backend
	Store   types.GraphStore

	// Startup is the result of the pack scan run by Open, nil when the
	// scan was skipped.
	Startup *packs.StartupReport

	closers []func() error
}

type options struct {
	log        zerolog.Logger
	registerer *prometheus.Registry
	tracer     trace.Tracer
	hooks      []hooks.Hook
	startup    bool
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithPrometheus registers the CMDB metrics on reg.
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracer sets the tracer for engine and pack spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithHook registers h on the dispatcher before the startup scan.
func WithHook(h hooks.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// WithoutStartup skips the pack scan; the registry starts empty until
// Packs.Rebuild or Packs.Startup is called.
func WithoutStartup() Option {
	return func(o *options) { o.startup = false }
}

// Open validates cfg, opens the catalog and graph store and runs the
// pack startup scan.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*System, error) {
	o := options{
		log:     zerolog.Nop(),
		tracer:  noop.NewTracerProvider().Tracer("cmdb"),
		startup: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("%w: data_dir must not be empty", types.ErrInvalidConfig)
	}

	sys := &System{}
	if o.registerer != nil {
		sys.Metrics = metrics.New(o.registerer)
	}

	catalog, err := sqlite.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	sys.Catalog = catalog
	sys.Store = catalog
	sys.closers = append(sys.closers, catalog.Close)

	if cfg.Backend == types.BackendNeo4j {
		store, err := neo4j.Open(ctx, cfg.Neo4j)
		if err != nil {
			sys.Close()
			return nil, fmt.Errorf("open graph store: %w", err)
		}
		sys.Store = store
		sys.closers = append(sys.closers, store.Close)
	}

	sys.Registry = registry.New()
	sys.Hooks = hooks.NewDispatcher(hooks.WithLogger(o.log), hooks.WithMetrics(sys.Metrics))
	for _, h := range o.hooks {
		sys.Hooks.Register(h)
	}

	sys.Engine = engine.New(sys.Store, sys.Registry,
		engine.WithHooks(sys.Hooks),
		engine.WithLogger(o.log),
		engine.WithMetrics(sys.Metrics),
		engine.WithTracer(o.tracer),
		engine.WithListLimits(cfg.ListLimit, types.MaxListLimit),
	)

	sys.Packs = packs.New(catalog, sys.Registry,
		packs.WithHooks(sys.Hooks),
		packs.WithPacksDir(dirOr(cfg.PacksDir, filepath.Join(cfg.DataDir, PacksDirName))),
		packs.WithStoreDir(dirOr(cfg.StoreDir, filepath.Join(cfg.DataDir, StoreDirName))),
		packs.WithLogger(o.log),
		packs.WithMetrics(sys.Metrics),
		packs.WithTracer(o.tracer),
	)

	if o.startup {
		report, err := sys.Packs.Startup(ctx)
		if err != nil {
			sys.Close()
			return nil, fmt.Errorf("pack startup: %w", err)
		}
		sys.Startup = report
	}
	return sys, nil
}

// Close releases the graph store and the catalog. It is safe to call more
// than once.
func (s *System) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func dirOr(dir, fallback string) string {
	if dir != "" {
		return dir
	}
	return fallback
}
