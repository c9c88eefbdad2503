package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/catalog"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/testutil"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

const testConfig = `
start_datetime: "2020-01-01T00:00:00Z"
streams:
  - name: events
    table: ds.events
    columns: [id, name, ts]
    datetime_key: ts
`

func testEnv(wh *warehouse.Memory) (*Env, *bytes.Buffer) {
	var stdout bytes.Buffer
	return &Env{
		Stdout: &stdout,
		Stderr: &bytes.Buffer{},
		OpenWarehouse: func(context.Context, config.WarehouseConfig, *zap.Logger) (warehouse.Warehouse, error) {
			return wh, nil
		},
		Logger: zap.NewNop(),
		Now:    testutil.FixedClock(time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)),
	}, &stdout
}

func eventRows() []warehouse.Row {
	cols := []string{"id", "name", "ts"}
	return []warehouse.Row{
		warehouse.NewRow(cols, []any{int64(1), "a", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}),
		warehouse.NewRow(cols, []any{int64(2), "b", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)}),
	}
}

func execute(t *testing.T, env *Env, args ...string) error {
	t.Helper()
	cmd := NewRootCommand(env)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCommand(nil)
	assert.Equal(t, "tap-bigquery", cmd.Use)

	for name, short := range map[string]string{"config": "c", "state": "s", "properties": "p", "discover": "d"} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, short, f.Shorthand, name)
	}
	for _, name := range []string{"catalog", "start_datetime", "end_datetime", "log-level", "metrics-addr", "trace"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.NotEmpty(t, cmd.Flags().Lookup("properties").Deprecated)

	sub, _, err := cmd.Find([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version", sub.Name())
}

func TestVersion(t *testing.T) {
	cmd := NewRootCommand(nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "tap-bigquery v"+Version)
}

func TestMissingConfig(t *testing.T) {
	env, _ := testEnv(warehouse.NewMemory())
	err := execute(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestInvalidConfig(t *testing.T) {
	wh := warehouse.NewMemory()
	env, stdout := testEnv(wh)
	path := testutil.WriteFile(t, "config.yaml", "streams: []\n")

	err := execute(t, env, "-c", path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Empty(t, wh.Queries())
	assert.Zero(t, stdout.Len())
}

func TestDiscover(t *testing.T) {
	wh := warehouse.NewMemory(eventRows()...)
	env, stdout := testEnv(wh)
	path := testutil.WriteFile(t, "config.yaml", testConfig)

	require.NoError(t, execute(t, env, "-c", path, "--discover"))

	cat, err := catalog.Parse(stdout.Bytes())
	require.NoError(t, err)
	require.Len(t, cat.Streams, 1)
	assert.Equal(t, "events", cat.Streams[0].Stream)
	assert.True(t, cat.Streams[0].Schema.Has("ts"))

	// end_datetime defaults to the start of the run
	require.Len(t, wh.Queries(), 1)
	assert.Contains(t, wh.Queries()[0], "CAST(ts as datetime) < datetime '2021-06-01 12:00:00.000000'")
	assert.Contains(t, wh.Queries()[0], "LIMIT 100")
}

func TestSync_DiscoversWithoutCatalog(t *testing.T) {
	wh := warehouse.NewMemory(eventRows()...)
	env, stdout := testEnv(wh)
	path := testutil.WriteFile(t, "config.yaml", testConfig)

	require.NoError(t, execute(t, env, "-c", path, "--end_datetime", "2020-03-01"))

	out := lines(stdout)
	require.Len(t, out, 4)
	assert.True(t, strings.HasPrefix(out[0], `{"type":"SCHEMA","stream":"events"`), out[0])
	assert.True(t, strings.HasPrefix(out[1], `{"type":"RECORD","stream":"events"`), out[1])
	assert.Equal(t, `{"type":"STATE","value":{"bookmarks":{"events":{"last_update":"2020-01-02T00:00:00+00:00"}}}}`, out[3])

	queries := wh.Queries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[1], "< datetime '2020-03-01 00:00:00.000000' ORDER BY ts")
}

func TestSync_WithCatalogAndState(t *testing.T) {
	wh := warehouse.NewMemory(eventRows()[1:]...)
	env, stdout := testEnv(wh)

	cfgPath := testutil.WriteFile(t, "config.yaml", testConfig)
	statePath := testutil.WriteFile(t, "state.json", `{"bookmarks":{"events":{"last_update":"2020-01-01T00:00:00+00:00"}}}`)

	discoverEnv, catalogOut := testEnv(warehouse.NewMemory(eventRows()...))
	require.NoError(t, execute(t, discoverEnv, "-c", cfgPath, "-d"))
	catPath := testutil.WriteFile(t, "catalog.json", catalogOut.String())

	require.NoError(t, execute(t, env, "-c", cfgPath, "--catalog", catPath, "-s", statePath))

	require.Len(t, wh.Queries(), 1)
	assert.Contains(t, wh.Queries()[0], "datetime '2020-01-01 00:00:00.000000' < CAST(ts as datetime)")

	out := lines(stdout)
	require.Len(t, out, 3)
	assert.Equal(t, `{"type":"STATE","value":{"bookmarks":{"events":{"last_update":"2020-01-02T00:00:00+00:00"}}}}`, out[2])
}

func TestSync_DeprecatedPropertiesFlag(t *testing.T) {
	cfgPath := testutil.WriteFile(t, "config.yaml", testConfig)
	catPath := testutil.WriteFile(t, "catalog.json", `{"streams":[{"stream":"events","tap_stream_id":"events",
		"schema":{"type":"object","properties":{"id":{"type":["null","integer"]}}},
		"metadata":[{"breadcrumb":[],"metadata":{"selected":false,"table":"ds.events","columns":["id"]}}],
		"key_properties":[]}]}`)

	wh := warehouse.NewMemory(eventRows()...)
	env, stdout := testEnv(wh)

	require.NoError(t, execute(t, env, "-c", cfgPath, "-p", catPath))
	assert.Empty(t, wh.Queries(), "unselected stream is skipped")
	assert.Zero(t, stdout.Len())
}

func TestStateFromEnv(t *testing.T) {
	cfgPath := testutil.WriteFile(t, "config.yaml", testConfig)
	statePath := testutil.WriteFile(t, "state.json", `{"bookmarks":{"events":{"last_update":"2020-01-02T00:00:00+00:00"}}}`)
	t.Setenv("TAP_BIGQUERY_STATE", statePath)

	wh := warehouse.NewMemory(eventRows()...)
	env, _ := testEnv(wh)

	require.NoError(t, execute(t, env, "-c", cfgPath))
	require.Len(t, wh.Queries(), 2)
	assert.Contains(t, wh.Queries()[1], "datetime '2020-01-02 00:00:00.000000' < CAST(ts as datetime)")
}

func TestSync_StreamFailureExitsNonZero(t *testing.T) {
	cfgPath := testutil.WriteFile(t, "config.yaml", testConfig)
	catPath := testutil.WriteFile(t, "catalog.json", `{"streams":[{"stream":"events","tap_stream_id":"events",
		"schema":{"type":"object","properties":{}},
		"metadata":[{"breadcrumb":[],"metadata":{"selected":true,"table":"ds.events","columns":["id"],"datetime_key":"ts"}}],
		"key_properties":[]}]}`)

	wh := &warehouse.Memory{Handler: func(string) (*warehouse.MemoryResult, error) {
		return nil, errors.New(errors.ErrorTypeQuery, "table not found")
	}}
	env, _ := testEnv(wh)

	err := execute(t, env, "-c", cfgPath, "--catalog", catPath)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}
