package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/instant"
)

// DefaultDiscoveryLimit is the number of rows sampled for schema discovery
// when the configuration sets no limit.
const DefaultDiscoveryLimit = 100

// Config is the tap configuration.
type Config struct {
	// Streams lists the tables to extract, in catalog order
	Streams []Stream `yaml:"streams" json:"streams"`

	// StartDatetime is the inclusive lower bound used when a stream has no
	// bookmark yet
	StartDatetime string `yaml:"start_datetime" json:"start_datetime"`
	// EndDatetime is the exclusive upper bound; the CLI defaults it to the
	// time the process started
	EndDatetime string `yaml:"end_datetime,omitempty" json:"end_datetime,omitempty"`
	// Limit caps the rows returned per query. Discovery samples
	// DefaultDiscoveryLimit rows when unset.
	Limit *int `yaml:"limit,omitempty" json:"limit,omitempty"`
	// StartAlwaysInclusive keeps the lower bound inclusive on resumed syncs
	StartAlwaysInclusive bool `yaml:"start_always_inclusive" json:"start_always_inclusive"`
	// LegacyTimestamp adds the _etl_tstamp column to discovered schemas.
	// Defaults to true.
	LegacyTimestamp *bool `yaml:"legacy_timestamp,omitempty" json:"legacy_timestamp,omitempty"`

	// Warehouse selects and configures the query backend
	Warehouse WarehouseConfig `yaml:"warehouse" json:"warehouse"`

	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`
}

// Stream is the declarative definition of one extracted table.
type Stream struct {
	// Name is the stream identifier emitted with every message
	Name string `yaml:"name" json:"name"`
	// Table is the fully qualified table reference, used verbatim
	Table string `yaml:"table" json:"table"`
	// Columns are selected in order; "*" selects all
	Columns []string `yaml:"columns" json:"columns"`
	// DatetimeKey is the replication key column
	DatetimeKey string `yaml:"datetime_key,omitempty" json:"datetime_key,omitempty"`
	// Filters are raw SQL predicates AND-ed into the WHERE clause
	Filters []string `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// WarehouseConfig selects the warehouse backend.
type WarehouseConfig struct {
	// Type is bigquery (default), snowflake, postgres or mysql
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
	// ProjectID is the BigQuery billing project; detected from the
	// credentials when empty
	ProjectID string `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	// CredentialsPath points at a service account key file. Application
	// default credentials are used when empty.
	CredentialsPath string `yaml:"credentials_path,omitempty" json:"credentials_path,omitempty"`
	// Location is the BigQuery job location
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
	// DSN is the database/sql connection string for non-BigQuery backends
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// Validate checks required keys and value formats. It is called once at
// process start, before any stream is touched.
func (c *Config) Validate() error {
	if len(c.Streams) == 0 {
		return errors.New(errors.ErrorTypeConfig, "streams is required")
	}

	seen := make(map[string]bool, len(c.Streams))
	for i, s := range c.Streams {
		if err := s.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("invalid stream %d", i)).
				WithDetail("stream_index", i)
		}
		if seen[s.Name] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate stream name %q", s.Name)
		}
		seen[s.Name] = true
	}

	if c.StartDatetime == "" {
		return errors.New(errors.ErrorTypeConfig, "start_datetime is required")
	}
	if _, err := instant.Parse(c.StartDatetime); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_datetime")
	}

	// an end before the start is accepted and selects nothing
	if c.EndDatetime != "" {
		if _, err := instant.Parse(c.EndDatetime); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid end_datetime")
		}
	}

	if c.Limit != nil && *c.Limit < 0 {
		return errors.New(errors.ErrorTypeConfig, "limit must not be negative")
	}

	switch strings.ToLower(c.Warehouse.Type) {
	case "", "bigquery", "snowflake", "postgres", "mysql":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported warehouse type %q", c.Warehouse.Type)
	}

	return nil
}

// Validate checks a single stream definition.
func (s Stream) Validate() error {
	if s.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if s.Table == "" {
		return errors.Newf(errors.ErrorTypeConfig, "stream %q: table is required", s.Name)
	}
	if len(s.Columns) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "stream %q: columns is required", s.Name)
	}
	return nil
}

// StartTime parses StartDatetime.
func (c *Config) StartTime() (time.Time, error) {
	return instant.Parse(c.StartDatetime)
}

// EndTime parses EndDatetime. ok is false when no end is configured.
func (c *Config) EndTime() (t time.Time, ok bool, err error) {
	if c.EndDatetime == "" {
		return time.Time{}, false, nil
	}
	t, err = instant.Parse(c.EndDatetime)
	return t, err == nil, err
}

// DiscoveryLimit returns the sample size used for schema inference.
func (c *Config) DiscoveryLimit() int {
	if c.Limit != nil {
		return *c.Limit
	}
	return DefaultDiscoveryLimit
}

// IncludeLegacyTimestamp reports whether discovery adds _etl_tstamp.
func (c *Config) IncludeLegacyTimestamp() bool {
	return c.LegacyTimestamp == nil || *c.LegacyTimestamp
}

// StreamByName returns the configured stream with the given name.
func (c *Config) StreamByName(name string) (Stream, bool) {
	for _, s := range c.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return Stream{}, false
}
