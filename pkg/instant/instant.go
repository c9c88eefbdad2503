// Package instant parses and formats the timestamps that flow through the
// tap: configured window bounds, bookmark values and date-time columns.
package instant

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
)

const (
	isoSeconds = "2006-01-02T15:04:05-07:00"
	isoMicros  = "2006-01-02T15:04:05.000000-07:00"
	sqlLayout  = "2006-01-02 15:04:05.000000"
)

// Parse reads a timestamp in any common textual layout (RFC 3339,
// "2006-01-02 15:04:05", dates, ...). Values without a zone are taken to be
// UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New(errors.ErrorTypeValidation, "empty timestamp")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrorTypeValidation, "unparseable timestamp").
			WithDetail("value", s)
	}
	return t, nil
}

// TryParse is Parse without the error.
func TryParse(s string) (time.Time, bool) {
	t, err := Parse(s)
	return t, err == nil
}

// Format renders t as ISO-8601 with a numeric UTC offset. Microseconds are
// included only when non-zero; anything finer is truncated.
func Format(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(isoMicros)
	}
	return t.Format(isoSeconds)
}

// SQLLiteral renders t in UTC as "2006-01-02 15:04:05.000000", the form
// embedded in generated queries.
func SQLLiteral(t time.Time) string {
	return t.UTC().Format(sqlLayout)
}
