// Package bookmark reads and writes per-stream resume points in Singer
// state documents:
//
//	{"bookmarks": {"events": {"last_update": "2020-01-01T00:00:00+00:00"}}}
//
// All functions are pure. Set returns a new State and never modifies its
// argument.
package bookmark

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/filestore"
	jsonpool "github.com/ajitpratap0/nebula-tap-bigquery/pkg/json"
)

// LastUpdate is the key under which the replication watermark is stored.
const LastUpdate = "last_update"

const bookmarksKey = "bookmarks"

// State is a decoded Singer state document. Keys other than "bookmarks"
// are preserved as-is.
type State map[string]any

// Get returns the bookmark value for stream and key. Non-string values are
// rendered with fmt.
func Get(state State, stream, key string) (string, bool) {
	bookmarks, ok := state[bookmarksKey].(map[string]any)
	if !ok {
		return "", false
	}
	entry, ok := bookmarks[stream].(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := entry[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	return fmt.Sprint(v), true
}

// Set returns a copy of state with the bookmark for stream and key set to
// value.
func Set(state State, stream, key, value string) State {
	next := Clone(state)

	bookmarks, ok := next[bookmarksKey].(map[string]any)
	if !ok {
		bookmarks = make(map[string]any)
		next[bookmarksKey] = bookmarks
	}
	entry, ok := bookmarks[stream].(map[string]any)
	if !ok {
		entry = make(map[string]any)
		bookmarks[stream] = entry
	}
	entry[key] = value
	return next
}

// Clone deep-copies the maps and slices in state. A nil state clones to an
// empty one.
func Clone(state State) State {
	next := make(State, len(state))
	for k, v := range state {
		next[k] = cloneValue(v)
	}
	return next
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case State:
		return map[string]any(Clone(t))
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// Parse decodes a state document. Empty input yields an empty state.
func Parse(data []byte) (State, error) {
	state := State{}
	if len(data) == 0 {
		return state, nil
	}
	if err := jsonpool.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid state document")
	}
	if state == nil {
		state = State{}
	}
	return state, nil
}

// Load reads a state document from a local path, gs:// or s3:// URI.
func Load(ctx context.Context, uri string, opts filestore.Options) (State, error) {
	data, err := filestore.ReadFile(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
