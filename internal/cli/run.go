package cli

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/bookmark"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/filestore"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/instant"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/logger"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/metrics"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/observability"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/singer"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/tap"
)

// Run executes one discovery or sync invocation. SIGINT and SIGTERM cancel
// the run; the streams already completed keep their emitted state.
func Run(ctx context.Context, opts *Options, env *Env) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	now := env.Now
	if now == nil {
		now = time.Now
	}
	started := now()

	cfg, err := config.LoadConfig(ctx, opts.ConfigPath, filestore.Options{})
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts, started)
	if err := cfg.Validate(); err != nil {
		return err
	}

	base := env.Logger
	if base == nil {
		lc := logger.DefaultConfig()
		if cfg.LogLevel != "" {
			lc.Level = cfg.LogLevel
		}
		base, err = logger.New(lc)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid log level")
		}
		defer func() { _ = base.Sync() }()
	}

	ctx = logger.WithRunID(ctx, uuid.NewString())
	log := logger.WithContext(ctx, base)
	log.Info("starting tap",
		zap.String("version", Version),
		zap.Bool("discover", opts.Discover),
		zap.Int("streams", len(cfg.Streams)),
		zap.String("start_datetime", cfg.StartDatetime),
		zap.String("end_datetime", cfg.EndDatetime))

	collector := metrics.NewCollector("tap_bigquery", log)
	if opts.MetricsAddr != "" {
		shutdown, err := serveMetrics(opts.MetricsAddr, collector, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	tcfg := observability.DefaultTracingConfig(Version)
	tcfg.Enabled = opts.Trace
	tcfg.Writer = env.Stderr
	provider, err := observability.NewProvider(tcfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to set up tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			log.Warn("failed to flush spans", zap.Error(err))
		}
	}()

	wh, err := env.OpenWarehouse(ctx, cfg.Warehouse, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := wh.Close(); err != nil {
			log.Warn("failed to close warehouse", zap.Error(err))
		}
	}()

	tp, err := tap.New(cfg, wh, singer.NewWriter(env.Stdout), log,
		tap.WithClock(now),
		tap.WithMetrics(collector),
		tap.WithTracerProvider(provider),
	)
	if err != nil {
		return err
	}

	if opts.Discover {
		return runDiscover(ctx, tp, env, log)
	}
	return runSync(ctx, tp, cfg, opts, log)
}

// applyOverrides layers the command line window over the config file. The
// end of the window defaults to the moment the process started.
func applyOverrides(cfg *config.Config, opts *Options, started time.Time) {
	if opts.StartDatetime != "" {
		cfg.StartDatetime = opts.StartDatetime
	}
	if opts.EndDatetime != "" {
		cfg.EndDatetime = opts.EndDatetime
	}
	if cfg.EndDatetime == "" {
		cfg.EndDatetime = instant.Format(started.UTC())
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
}

func runDiscover(ctx context.Context, tp *tap.Tap, env *Env, log *zap.Logger) error {
	cat, derr := tp.Discover(ctx)
	if len(cat.Streams) == 0 && derr != nil {
		return derr
	}

	out, err := cat.Marshal()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to encode catalog")
	}
	if _, err := env.Stdout.Write(append(out, '\n')); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to write catalog")
	}

	log.Info("discovery finished", zap.Int("streams", len(cat.Streams)))
	return derr
}

func runSync(ctx context.Context, tp *tap.Tap, cfg *config.Config, opts *Options, log *zap.Logger) error {
	fsOpts := filestore.Options{GCSCredentialsFile: cfg.Warehouse.CredentialsPath}

	var (
		cat  *catalog.Catalog
		derr error
		err  error
	)
	if opts.CatalogPath != "" {
		cat, err = catalog.Load(ctx, opts.CatalogPath, fsOpts)
		if err != nil {
			return err
		}
	} else {
		log.Info("no catalog given, discovering streams")
		cat, derr = tp.Discover(ctx)
		if len(cat.Streams) == 0 && derr != nil {
			return derr
		}
	}

	state := bookmark.State{}
	if opts.StatePath != "" {
		state, err = bookmark.Load(ctx, opts.StatePath, fsOpts)
		if err != nil {
			return err
		}
	}

	_, serr := tp.Sync(ctx, cat, state)

	if counts, err := tp.Metrics().Snapshot(); err == nil {
		for _, c := range counts {
			log.Info("stream summary", zap.String("stream", c.Stream), zap.Int64("records", c.Records))
		}
	}
	return errors.Join(derr, serr)
}

func serveMetrics(addr string, c *metrics.Collector, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to listen for metrics").WithDetail("addr", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
