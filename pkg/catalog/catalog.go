// Package catalog models the Singer catalog: the discovered streams, their
// schemas and the metadata that marks them selected and carries their
// extraction settings.
package catalog

import (
	"context"

	"github.com/spf13/cast"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/filestore"
	jsonpool "github.com/ajitpratap0/nebula-tap-bigquery/pkg/json"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/schema"
)

// Stream-level metadata keys.
const (
	KeySelected    = "selected"
	KeyTable       = "table"
	KeyColumns     = "columns"
	KeyFilters     = "filters"
	KeyDatetimeKey = "datetime_key"
)

// Catalog lists streams in the order they are synced.
type Catalog struct {
	Streams []*Entry `json:"streams"`
}

// Entry is one stream of the catalog.
type Entry struct {
	Stream        string         `json:"stream"`
	TapStreamID   string         `json:"tap_stream_id"`
	Schema        *schema.Schema `json:"schema"`
	Metadata      []Metadata     `json:"metadata"`
	KeyProperties []string       `json:"key_properties"`
	// Selected is the legacy stream-level flag, consulted when no
	// stream metadata says otherwise
	Selected *bool `json:"selected,omitempty"`
}

// Metadata attaches key/value settings to a breadcrumb. The empty
// breadcrumb addresses the stream itself.
type Metadata struct {
	Breadcrumb []string       `json:"breadcrumb"`
	Metadata   map[string]any `json:"metadata"`
}

// NewEntry builds the discovery entry for a configured stream.
func NewEntry(stream config.Stream, s *schema.Schema) *Entry {
	filters := stream.Filters
	if filters == nil {
		filters = []string{}
	}

	return &Entry{
		Stream:      stream.Name,
		TapStreamID: stream.Name,
		Schema:      s,
		Metadata: []Metadata{{
			Breadcrumb: []string{},
			Metadata: map[string]any{
				KeySelected:    true,
				KeyTable:       stream.Table,
				KeyColumns:     stream.Columns,
				KeyFilters:     filters,
				KeyDatetimeKey: stream.DatetimeKey,
			},
		}},
		KeyProperties: []string{},
	}
}

// ID returns tap_stream_id, falling back to the stream name.
func (e *Entry) ID() string {
	if e.TapStreamID != "" {
		return e.TapStreamID
	}
	return e.Stream
}

// StreamMetadata returns the metadata map of the empty breadcrumb.
func (e *Entry) StreamMetadata() (map[string]any, bool) {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) == 0 {
			return m.Metadata, m.Metadata != nil
		}
	}
	return nil, false
}

// IsSelected reports whether the stream should be synced.
func (e *Entry) IsSelected() bool {
	if md, ok := e.StreamMetadata(); ok {
		if v, ok := md[KeySelected]; ok {
			return cast.ToBool(v)
		}
	}
	return e.Selected != nil && *e.Selected
}

// Definition rebuilds the stream definition stored in the metadata.
func (e *Entry) Definition() (config.Stream, error) {
	md, ok := e.StreamMetadata()
	if !ok {
		return config.Stream{}, errors.Newf(errors.ErrorTypeValidation, "stream %q has no stream metadata", e.ID())
	}

	table, err := cast.ToStringE(md[KeyTable])
	if err != nil || table == "" {
		return config.Stream{}, errors.Newf(errors.ErrorTypeValidation, "stream %q: metadata table is required", e.ID())
	}
	columns, err := stringSlice(md[KeyColumns])
	if err != nil || len(columns) == 0 {
		return config.Stream{}, errors.Newf(errors.ErrorTypeValidation, "stream %q: metadata columns is required", e.ID())
	}
	filters, err := stringSlice(md[KeyFilters])
	if err != nil {
		return config.Stream{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid filters").WithDetail("stream", e.ID())
	}
	key, err := cast.ToStringE(md[KeyDatetimeKey])
	if err != nil {
		return config.Stream{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid datetime_key").WithDetail("stream", e.ID())
	}

	return config.Stream{
		Name:        e.ID(),
		Table:       table,
		Columns:     columns,
		DatetimeKey: key,
		Filters:     filters,
	}, nil
}

func stringSlice(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	return cast.ToStringSliceE(v)
}

// Selected returns the selected entries in catalog order.
func (c *Catalog) Selected() []*Entry {
	var out []*Entry
	for _, e := range c.Streams {
		if e.IsSelected() {
			out = append(out, e)
		}
	}
	return out
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := jsonpool.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid catalog document")
	}
	for i, e := range c.Streams {
		if e == nil {
			return nil, errors.Newf(errors.ErrorTypeValidation, "catalog stream %d is null", i)
		}
		if e.Schema == nil {
			e.Schema = schema.New()
		}
		if e.Schema.Properties == nil {
			e.Schema.Properties = make(map[string]*schema.Property)
		}
	}
	return &c, nil
}

// Load reads a catalog from a local path, gs:// or s3:// URI.
func Load(ctx context.Context, uri string, opts filestore.Options) (*Catalog, error) {
	data, err := filestore.ReadFile(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal renders the catalog as indented JSON. Map keys are sorted, so
// equal catalogs produce identical bytes.
func (c *Catalog) Marshal() ([]byte, error) {
	return jsonpool.MarshalIndent(c, "", "  ")
}
