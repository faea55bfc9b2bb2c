// Package engine implements entity CRUD and relationship operations over a
// graph store, shaped by the type registry.
//
// Every operation checks the label against the identifier pattern and the
// registry before touching the store. Labels and relationship types are the
// only caller strings that reach query text; property values and ids are
// always passed as bound values.
package engine

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/internal/metrics"
	"github.com/mesh-intelligence/cmdb/internal/registry"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// DefaultCountsTTL is how long dashboard counts are cached.
const DefaultCountsTTL = 30 * time.Second

// Engine is the entity engine. It is safe for concurrent use.
type Engine struct {
	store    types.GraphStore
	registry *registry.Registry
	hooks    *hooks.Dispatcher
	log      zerolog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	defaultLimit int
	maxLimit     int

	counts      *cache.Cache
	countsLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithHooks sets the dispatcher that receives mutation events.
func WithHooks(d *hooks.Dispatcher) Option {
	return func(e *Engine) { e.hooks = d }
}

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithListLimits sets the page size used when List gets a non-positive
// limit and the cap applied to larger ones.
func WithListLimits(def, maxLimit int) Option {
	return func(e *Engine) {
		if maxLimit > 0 {
			e.maxLimit = maxLimit
		}
		if def > 0 {
			e.defaultLimit = min(def, e.maxLimit)
		}
	}
}

// WithCountsTTL sets the dashboard count cache lifetime. Zero disables
// caching.
func WithCountsTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl <= 0 {
			e.counts = nil
			return
		}
		e.counts = cache.New(ttl, 2*ttl)
	}
}

// New returns an engine over store and reg.
func New(store types.GraphStore, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		registry:     reg,
		hooks:        hooks.NewDispatcher(),
		log:          zerolog.Nop(),
		tracer:       noop.NewTracerProvider().Tracer("cmdb"),
		defaultLimit: types.DefaultListLimit,
		maxLimit:     types.MaxListLimit,
		counts:       cache.New(DefaultCountsTTL, 2*DefaultCountsTTL),
		countsLimit:  4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine validates against.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Hooks returns the engine's hook dispatcher.
func (e *Engine) Hooks() *hooks.Dispatcher { return e.hooks }

// checkLabel rejects malformed labels and labels missing from the registry.
func (e *Engine) checkLabel(label string) error {
	if err := types.ValidateLabel(label); err != nil {
		return err
	}
	if !e.registry.Has(label) {
		return types.UnknownTypeError(label)
	}
	return nil
}

// clampLimit bounds a page request.
func (e *Engine) clampLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// begin starts the span and timer for one operation. The returned func
// records the outcome from *errp.
func (e *Engine) begin(ctx context.Context, op, label string) (context.Context, func(errp *error)) {
	if !types.IsValidLabel(label) {
		label = "_invalid"
	}
	ctx, span := e.tracer.Start(ctx, "engine."+op,
		trace.WithAttributes(attribute.String("cmdb.label", label)))
	start := time.Now()
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
		e.metrics.ObserveEntityOp(op, label, time.Since(start).Seconds(), err)
	}
}

func (e *Engine) emit(ctx context.Context, ev hooks.Event) {
	if e.hooks == nil {
		return
	}
	ev.Actor = ActorFrom(ctx)
	e.hooks.Emit(ctx, ev)
}
