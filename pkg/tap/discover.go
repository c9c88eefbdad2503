package tap

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// Discover samples every configured stream and returns the catalog. Streams
// that cannot be discovered are left out and their errors combined; the
// catalog holds the rest.
func (t *Tap) Discover(ctx context.Context) (*catalog.Catalog, error) {
	defer t.enter(PhaseDiscovering)()

	cat := &catalog.Catalog{Streams: make([]*catalog.Entry, 0, len(t.cfg.Streams))}
	var errs error

	for _, stream := range t.cfg.Streams {
		if err := ctx.Err(); err != nil {
			return cat, multierr.Append(errs, err)
		}

		entry, err := t.DiscoverStream(ctx, stream)
		if err != nil {
			t.logger.Error("discovery failed", zap.String("stream", stream.Name), zap.Error(err))
			errs = multierr.Append(errs, streamError(stream.Name, err))
			continue
		}
		cat.Streams = append(cat.Streams, entry)
	}

	return cat, errs
}

// DiscoverStream infers the schema of one stream from a sample of its rows
// within the configured window.
func (t *Tap) DiscoverStream(ctx context.Context, stream config.Stream) (*catalog.Entry, error) {
	var entry *catalog.Entry

	err := t.tracer.Trace(ctx, "discover", stream.Name, func(ctx context.Context, span *observability.Span) error {
		w, err := t.window(nil)
		if err != nil {
			return err
		}
		limit := t.cfg.DiscoveryLimit()
		sql := t.builder.Build(stream, w, true, &limit)
		span.SetAttribute("db.statement", sql)

		t.logger.Info("running discovery query", zap.String("stream", stream.Name), zap.String("query", sql))

		rows, err := t.sample(ctx, stream.Name, sql)
		if err != nil {
			return err
		}
		span.SetAttribute("rows", len(rows))

		s, err := t.inferencer.InferSchema(rows)
		if err != nil {
			return err
		}
		s.AddMetadataColumns(t.cfg.IncludeLegacyTimestamp())

		entry = catalog.NewEntry(stream, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// sample reads the whole (limited) result set.
func (t *Tap) sample(ctx context.Context, stream, sql string) ([]warehouse.Row, error) {
	timer := metrics.NewTimer()
	it, err := t.wh.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "discovery query failed").WithDetail("query", sql)
	}
	defer it.Close()
	t.metrics.ObserveQuery(stream, metrics.PhaseDiscover, timer.Stop())

	var rows []warehouse.Row
	for {
		row, err := it.Next()
		if errors.Is(err, warehouse.Done) {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read discovery rows").WithDetail("query", sql)
		}
		rows = append(rows, row)
	}
}
