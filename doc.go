// Package tapbigquery is a Singer tap that extracts rows from BigQuery (and
// Snowflake, PostgreSQL or MySQL) tables incrementally, keyed on a
// timestamp column.
//
// A run either discovers the streams listed in the configuration, sampling
// each table to infer a JSON Schema, or syncs the selected streams of a
// catalog. Sync writes newline-delimited SCHEMA, RECORD and STATE messages
// to stdout; the STATE carries the last replication key seen so the next
// run resumes strictly after it.
//
// # Quick Start
//
// Describe the streams in a config file:
//
//	start_datetime: "2020-01-01T00:00:00Z"
//	warehouse:
//	  type: bigquery
//	  project_id: my-project
//	streams:
//	  - name: events
//	    table: "`my-project.analytics.events`"
//	    columns: [id, user_id, payload]
//	    datetime_key: updated_at
//	    filters: ["country = 'US'"]
//
// Discover, then sync:
//
//	tap-bigquery -c config.yaml -d > catalog.json
//	tap-bigquery -c config.yaml --catalog catalog.json -s state.json > out.jsonl
//
// The config, catalog and state may also be gs:// or s3:// URIs. Values of
// the form ${VAR} or ${VAR:-default} in the config are taken from the
// environment, and a .env file in the working directory is loaded first.
//
// # Embedding
//
// The engine runs without the CLI:
//
//	wh, _ := warehouse.Open(ctx, cfg.Warehouse, logger)
//	t, _ := tap.New(cfg, wh, singer.NewWriter(os.Stdout), logger)
//	cat, _ := t.Discover(ctx)
//	state, err := t.Sync(ctx, cat, bookmark.State{})
//
// # Key Packages
//
//	pkg/tap          - Discovery and sync engine
//	pkg/query        - SQL generation per warehouse dialect
//	pkg/schema       - JSON Schema model and type inference
//	pkg/normalize    - Row to record conversion
//	pkg/bookmark     - Singer state and replication bookmarks
//	pkg/catalog      - Singer catalog and stream selection
//	pkg/singer       - SCHEMA, RECORD and STATE messages
//	pkg/warehouse    - BigQuery and database/sql warehouses
//	pkg/config       - Configuration loading and validation
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics and Singer metric lines
//	pkg/observability - OpenTelemetry tracing
//
// # Observability
//
// Logs go to stderr as JSON. --metrics-addr serves Prometheus metrics on
// /metrics for the duration of the run and --trace exports spans to stderr.
package tapbigquery
