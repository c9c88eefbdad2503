// Package cli implements the tap-bigquery command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// Version is set at build time.
var Version = "0.1.0"

// EnvPrefix prefixes environment overrides of flags, e.g.
// TAP_BIGQUERY_STATE or TAP_BIGQUERY_LOG_LEVEL.
const EnvPrefix = "TAP_BIGQUERY"

// Options holds the resolved command line flags.
type Options struct {
	ConfigPath    string
	StatePath     string
	CatalogPath   string
	Discover      bool
	StartDatetime string
	EndDatetime   string
	LogLevel      string
	MetricsAddr   string
	Trace         bool
}

// Env is the process environment the command runs in.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// OpenWarehouse connects to the configured warehouse
	OpenWarehouse func(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (warehouse.Warehouse, error)
	// Logger, when set, replaces the logger built from --log-level
	Logger *zap.Logger
	Now    func() time.Time
}

// DefaultEnv writes messages to stdout and logs to stderr.
func DefaultEnv() *Env {
	return &Env{
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		OpenWarehouse: warehouse.Open,
		Now:           time.Now,
	}
}

// NewRootCommand creates the tap-bigquery command.
func NewRootCommand(env *Env) *cobra.Command {
	if env == nil {
		env = DefaultEnv()
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "tap-bigquery",
		Short: "Singer tap for BigQuery",
		Long: `tap-bigquery extracts rows from warehouse tables incrementally and writes
Singer SCHEMA, RECORD and STATE messages to stdout.

Example:
  tap-bigquery -c config.yaml -d > catalog.json
  tap-bigquery -c config.yaml --catalog catalog.json -s state.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(v)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), opts, env)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "config file: local path, gs:// or s3:// URI (required)")
	flags.StringP("state", "s", "", "state file to resume from")
	flags.String("catalog", "", "catalog file selecting the streams to sync")
	flags.StringP("properties", "p", "", "catalog file")
	_ = flags.MarkDeprecated("properties", "use --catalog instead")
	flags.BoolP("discover", "d", false, "print the discovered catalog and exit")
	flags.String("start_datetime", "", "override start_datetime from the config")
	flags.String("end_datetime", "", "override end_datetime from the config")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("trace", false, "export spans to stderr")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tap-bigquery v%s\n", Version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	return cmd
}

func resolveOptions(v *viper.Viper) (*Options, error) {
	opts := &Options{
		ConfigPath:    v.GetString("config"),
		StatePath:     v.GetString("state"),
		CatalogPath:   v.GetString("catalog"),
		Discover:      v.GetBool("discover"),
		StartDatetime: v.GetString("start_datetime"),
		EndDatetime:   v.GetString("end_datetime"),
		LogLevel:      v.GetString("log-level"),
		MetricsAddr:   v.GetString("metrics-addr"),
		Trace:         v.GetBool("trace"),
	}
	if opts.CatalogPath == "" {
		opts.CatalogPath = v.GetString("properties")
	}
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("required flag \"config\" not set")
	}
	return opts, nil
}
