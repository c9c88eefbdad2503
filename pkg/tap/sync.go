package tap

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/bookmark"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/instant"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/normalize"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/singer"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// Sync extracts every selected stream of cat, in order, starting from
// state. It returns the final state and the combined stream failures. A
// canceled context stops the run after the current stream.
func (t *Tap) Sync(ctx context.Context, cat *catalog.Catalog, state bookmark.State) (bookmark.State, error) {
	defer t.enter(PhaseSyncing)()

	if state == nil {
		state = bookmark.State{}
	}
	var errs error

	for _, entry := range cat.Selected() {
		if err := ctx.Err(); err != nil {
			return state, multierr.Append(errs, err)
		}

		next, err := t.SyncStream(ctx, entry, state)
		if err != nil {
			t.logger.Error("stream sync failed", zap.String("stream", entry.ID()), zap.Error(err))
			errs = multierr.Append(errs, streamError(entry.ID(), err))
			continue
		}
		state = next
	}

	return state, errs
}

// SyncStream extracts one stream. SCHEMA is emitted first, then one RECORD
// per row. Once the result set is exhausted the bookmark is advanced to the
// last row's replication key and STATE is emitted. On failure the input
// state is returned unchanged and no STATE is emitted.
func (t *Tap) SyncStream(ctx context.Context, entry *catalog.Entry, state bookmark.State) (bookmark.State, error) {
	id := entry.ID()
	ctx = logger.WithStream(ctx, id)
	log := logger.WithContext(ctx, t.logger)

	var next bookmark.State
	err := t.tracer.Trace(ctx, "sync", id, func(ctx context.Context, span *observability.Span) error {
		var err error
		next, err = t.syncStream(ctx, entry, state, log, span)
		return err
	})
	if err != nil {
		t.metrics.StreamCompleted(id, metrics.StatusFailure)
		return state, err
	}
	t.metrics.StreamCompleted(id, metrics.StatusSuccess)
	return next, nil
}

func (t *Tap) syncStream(ctx context.Context, entry *catalog.Entry, state bookmark.State, log *zap.Logger, span *observability.Span) (bookmark.State, error) {
	id := entry.ID()

	def, err := entry.Definition()
	if err != nil {
		return nil, err
	}

	// resume strictly after the bookmark unless configured otherwise
	inclusive := true
	var start *time.Time
	if v, ok := bookmark.Get(state, id, bookmark.LastUpdate); ok {
		parsed, err := instant.Parse(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid bookmark").WithDetail("bookmark", v)
		}
		start = &parsed
		inclusive = t.cfg.StartAlwaysInclusive
		log.Info("resuming from bookmark", zap.String("bookmark", v), zap.Bool("inclusive", inclusive))
	}

	w, err := t.window(start)
	if err != nil {
		return nil, err
	}

	if err := t.emitter.Emit(singer.NewSchema(id, entry.Schema, entry.KeyProperties, def.DatetimeKey)); err != nil {
		return nil, err
	}

	sql := t.builder.Build(def, w, inclusive, t.cfg.Limit)
	span.SetAttribute("db.statement", sql)
	log.Info("running query", zap.String("query", sql))

	timer := metrics.NewTimer()
	it, err := t.wh.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "query failed").WithDetail("query", sql)
	}
	defer it.Close()
	t.metrics.ObserveQuery(id, metrics.PhaseSync, timer.Stop())

	extractedAt := t.now()
	var (
		count      int
		lastUpdate string
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := it.Next()
		if errors.Is(err, warehouse.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read rows").WithDetail("query", sql)
		}

		rec, err := t.normalizer.Normalize(row, entry.Schema, extractedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTypeMismatch, "failed to normalize row").
				WithDetail("row", count)
		}

		if err := t.emitter.Emit(singer.NewRecord(id, rec, extractedAt)); err != nil {
			return nil, err
		}
		count++

		if def.DatetimeKey != "" {
			if v, ok := replicationValue(rec, row, def.DatetimeKey); ok {
				lastUpdate = v
			}
		}
	}

	t.metrics.RecordsExtracted(id, count)
	t.metrics.LogCounter(metrics.RecordCount, int64(count), map[string]string{"endpoint": id})
	span.SetAttribute("records", count)

	next := state
	if lastUpdate != "" {
		next = bookmark.Set(state, id, bookmark.LastUpdate, lastUpdate)
		if ts, ok := instant.TryParse(lastUpdate); ok {
			t.metrics.SetBookmark(id, ts)
		}
	}

	if err := t.emitter.Emit(singer.NewState(next)); err != nil {
		return nil, err
	}

	log.Info("stream synced", zap.Int("records", count), zap.String("bookmark", lastUpdate))
	return next, nil
}

// replicationValue returns the bookmark string for a row: the normalized
// key value when the schema declares the key, the raw value otherwise.
func replicationValue(rec normalize.Record, row warehouse.Row, key string) (string, bool) {
	v, ok := rec[key]
	if !ok {
		v, _ = row.Get(key)
		if s, err := normalize.ToDateTime(v); err == nil {
			return s, true
		}
	}
	if v == nil {
		return "", false
	}
	s, err := normalize.ToString(v)
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}
