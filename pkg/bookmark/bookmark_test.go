package bookmark

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/filestore"
)

func TestGet(t *testing.T) {
	state, err := Parse([]byte(`{"bookmarks":{"events":{"last_update":"2020-01-01T00:00:00+00:00","n":3}},"currently_syncing":null}`))
	require.NoError(t, err)

	v, ok := Get(state, "events", LastUpdate)
	assert.True(t, ok)
	assert.Equal(t, "2020-01-01T00:00:00+00:00", v)

	v, ok = Get(state, "events", "n")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = Get(state, "users", LastUpdate)
	assert.False(t, ok)
	_, ok = Get(nil, "events", LastUpdate)
	assert.False(t, ok)
	_, ok = Get(State{"bookmarks": "garbage"}, "events", LastUpdate)
	assert.False(t, ok)
}

func TestSet_DoesNotMutate(t *testing.T) {
	orig, err := Parse([]byte(`{"bookmarks":{"events":{"last_update":"a"}},"other":[1,{"x":2}]}`))
	require.NoError(t, err)
	before, err := gojson.Marshal(orig)
	require.NoError(t, err)

	next := Set(orig, "events", LastUpdate, "b")
	next = Set(next, "users", LastUpdate, "c")

	after, err := gojson.Marshal(orig)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	v, _ := Get(next, "events", LastUpdate)
	assert.Equal(t, "b", v)
	v, _ = Get(next, "users", LastUpdate)
	assert.Equal(t, "c", v)
	v, _ = Get(orig, "events", LastUpdate)
	assert.Equal(t, "a", v)

	assert.Equal(t, orig["other"], next["other"], "unrelated keys are preserved")
}

func TestSet_EmptyState(t *testing.T) {
	next := Set(nil, "events", LastUpdate, "2020-01-01")

	b, err := gojson.Marshal(next)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookmarks":{"events":{"last_update":"2020-01-01"}}}`, string(b))
}

func TestParse(t *testing.T) {
	state, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, state)

	state, err = Parse([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, state)

	_, err = Parse([]byte("{"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bookmarks":{"events":{"last_update":"x"}}}`), 0o600))

	state, err := Load(context.Background(), path, filestore.Options{})
	require.NoError(t, err)
	v, ok := Get(state, "events", LastUpdate)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}
