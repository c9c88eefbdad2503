// Package tap is the extraction engine. It discovers stream schemas by
// sampling the warehouse and syncs selected streams incrementally, emitting
// SCHEMA, RECORD and STATE messages in order.
//
// Streams are processed one at a time in catalog order. A failing stream
// does not advance its bookmark; the remaining streams still run and Sync
// reports every failure.
package tap

import (
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/normalize"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/query"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/singer"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// Phase is the engine state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDiscovering
	PhaseSyncing
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovering:
		return "discovering"
	case PhaseSyncing:
		return "syncing"
	default:
		return "idle"
	}
}

// Tap runs discovery and sync against one warehouse.
type Tap struct {
	cfg        *config.Config
	wh         warehouse.Warehouse
	emitter    singer.Emitter
	logger     *zap.Logger
	now        func() time.Time
	builder    *query.Builder
	inferencer *schema.TypeInferenceEngine
	normalizer *normalize.Normalizer
	metrics    *metrics.Collector
	tracer     *observability.StreamTracer

	phase atomic.Int32
}

// Option configures a Tap.
type Option func(*Tap)

// WithClock replaces time.Now, for extraction and legacy timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tap) { t.now = now }
}

// WithMetrics records progress in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Tap) { t.metrics = c }
}

// WithTracerProvider traces discovery, queries and stream syncs.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tap) { t.tracer = observability.NewStreamTracer(tp, "tap") }
}

// WithDialect overrides the SQL dialect derived from the warehouse type.
func WithDialect(d query.Dialect) Option {
	return func(t *Tap) { t.builder = query.NewBuilder(d) }
}

// New creates a tap. cfg is expected to be validated already.
func New(cfg *config.Config, wh warehouse.Warehouse, emitter singer.Emitter, logger *zap.Logger, opts ...Option) (*Tap, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "config is required")
	}
	if wh == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "warehouse is required")
	}
	if emitter == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "emitter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tap{
		cfg:     cfg,
		wh:      wh,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
		builder: query.NewBuilder(query.DialectFor(cfg.Warehouse.Type)),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.metrics == nil {
		t.metrics = metrics.NewCollector("tap_bigquery", logger)
	}
	if t.tracer == nil {
		t.tracer = observability.NewStreamTracer(nil, "tap")
	}
	t.inferencer = schema.NewTypeInferenceEngine(logger)
	t.normalizer = normalize.New(t.now)

	return t, nil
}

// Phase reports what the engine is doing.
func (t *Tap) Phase() Phase {
	return Phase(t.phase.Load())
}

func (t *Tap) enter(p Phase) func() {
	t.phase.Store(int32(p))
	return func() { t.phase.Store(int32(PhaseIdle)) }
}

// Metrics returns the collector the tap records into.
func (t *Tap) Metrics() *metrics.Collector {
	return t.metrics
}

// window returns the configured time window. start overrides the
// configured start when non-nil.
func (t *Tap) window(start *time.Time) (query.Window, error) {
	if start == nil {
		s, err := t.cfg.StartTime()
		if err != nil {
			return query.Window{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_datetime")
		}
		start = &s
	}

	end, ok, err := t.cfg.EndTime()
	if err != nil {
		return query.Window{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid end_datetime")
	}
	if !ok {
		return query.NewWindow(start, nil), nil
	}
	return query.NewWindow(start, &end), nil
}

// streamError prefixes err with the stream name, keeping its error type.
func streamError(stream string, err error) error {
	typ := errors.ErrorTypeInternal
	var e *errors.Error
	if errors.As(err, &e) {
		typ = e.Type
	}
	return errors.Wrap(err, typ, "stream "+stream).WithDetail("stream", stream)
}
