// Package normalize converts warehouse rows into records that conform to a
// discovered schema.
package normalize

import (
	"math"
	"math/big"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/instant"
	jsonpool "github.com/ajitpratap0/nebula-tap-bigquery/pkg/json"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/schema"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// Record is a normalized row. Values are nil, string, int64 or
// decimal.Decimal, or whatever the warehouse returned for untyped columns.
type Record map[string]any

// Normalizer converts rows. The clock supplies the _etl_tstamp value.
type Normalizer struct {
	now func() time.Time
}

// New creates a normalizer. A nil clock means time.Now.
func New(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize uses the wall clock for _etl_tstamp.
func Normalize(row warehouse.Row, s *schema.Schema, extractedAt time.Time) (Record, error) {
	return New(nil).Normalize(row, s, extractedAt)
}

// Normalize builds the record for row. Every declared column is present in
// the output; columns missing from the row are null. Synthetic columns are
// filled from extractedAt and the clock, except _sdc_batched_at which is
// left to the loader.
func (n *Normalizer) Normalize(row warehouse.Row, s *schema.Schema, extractedAt time.Time) (Record, error) {
	rec := make(Record, len(s.Properties))

	for _, name := range s.Columns() {
		prop := s.Properties[name]
		if schema.IsSynthetic(name) {
			continue
		}
		raw, _ := row.Get(name)
		v, err := convert(raw, prop)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTypeMismatch, "record does not match schema").
				WithDetail("column", name).
				WithDetail("expected", prop.Primary())
		}
		rec[name] = v
	}

	if s.Has(schema.LegacyTimestamp) {
		rec[schema.LegacyTimestamp] = n.now().UnixMilli()
	}
	if s.Has(schema.ExtractedAt) {
		rec[schema.ExtractedAt] = instant.Format(extractedAt.UTC())
	}
	return rec, nil
}

func convert(v any, prop *schema.Property) (any, error) {
	if v == nil {
		return nil, nil
	}
	if prop.IsDateTime() {
		return ToDateTime(v)
	}
	switch prop.Primary() {
	case schema.TypeString:
		return ToString(v)
	case schema.TypeNumber:
		return ToDecimal(v)
	case schema.TypeInteger:
		return ToInteger(v)
	default:
		return v, nil
	}
}

// ToDateTime renders a string, date or timestamp value as ISO-8601.
// Dates become midnight UTC; civil date-times are taken to be UTC.
func ToDateTime(v any) (string, error) {
	switch t := v.(type) {
	case string:
		parsed, err := instant.Parse(t)
		if err != nil {
			return "", err
		}
		return instant.Format(parsed), nil
	case time.Time:
		return instant.Format(t), nil
	case civil.Date:
		return instant.Format(t.In(time.UTC)), nil
	case civil.DateTime:
		return instant.Format(t.In(time.UTC)), nil
	default:
		return "", errors.Newf(errors.ErrorTypeTypeMismatch, "value %v of type %T is not a date-time", v, v)
	}
}

// ToString stringifies scalars. Composite values are JSON encoded.
func ToString(v any) (string, error) {
	switch t := v.(type) {
	case civil.Date:
		return t.String(), nil
	case civil.DateTime:
		return t.String(), nil
	case civil.Time:
		return t.String(), nil
	case time.Time:
		return instant.Format(t), nil
	case *big.Rat, decimal.Decimal:
		d, err := ToDecimal(t)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	}

	s, err := cast.ToStringE(v)
	if err == nil {
		return s, nil
	}

	b, jerr := jsonpool.Marshal(v)
	if jerr != nil {
		return "", errors.Wrap(jerr, errors.ErrorTypeTypeMismatch, "value cannot be converted to string")
	}
	return string(b), nil
}

// ratScale covers BIGNUMERIC, the widest BigQuery decimal.
const ratScale = 38

// ToDecimal converts numeric values and numeric strings to an exact
// decimal.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case *big.Rat:
		if t == nil {
			return decimal.Zero, errors.New(errors.ErrorTypeTypeMismatch, "nil rational is not a number")
		}
		return decimal.NewFromString(t.FloatString(ratScale))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, errors.Newf(errors.ErrorTypeTypeMismatch, "%v is not a finite number", t)
		}
		return decimal.NewFromFloat(t), nil
	case float32:
		return ToDecimal(float64(t))
	case string:
		d, ok := schema.ParseNumber(t)
		if !ok {
			return decimal.Zero, errors.Newf(errors.ErrorTypeTypeMismatch, "%q is not a number", t)
		}
		return d, nil
	case bool:
		return decimal.Zero, errors.New(errors.ErrorTypeTypeMismatch, "boolean is not a number")
	}

	if u, ok := v.(uint64); ok {
		return decimal.NewFromString(strconv.FormatUint(u, 10))
	}
	if isInteger(v) {
		n, err := cast.ToInt64E(v)
		if err == nil {
			return decimal.NewFromInt(n), nil
		}
	}
	return decimal.Zero, errors.Newf(errors.ErrorTypeTypeMismatch, "value %v of type %T is not a number", v, v)
}

// ToInteger converts integral values and base-10 integer strings to int64.
func ToInteger(v any) (int64, error) {
	switch t := v.(type) {
	case string:
		n, ok := schema.ParseInteger(t)
		if !ok {
			return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "%q is not an integer", t)
		}
		return n, nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "%v is not an integer", t)
		}
		return int64(t), nil
	case float32:
		return ToInteger(float64(t))
	case *big.Rat:
		if !t.IsInt() || !t.Num().IsInt64() {
			return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "%s is not a 64-bit integer", t.RatString())
		}
		return t.Num().Int64(), nil
	case decimal.Decimal:
		if !t.IsInteger() {
			return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "%s is not an integer", t)
		}
		return t.IntPart(), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "%d overflows int64", t)
		}
		return int64(t), nil
	}

	if !isInteger(v) {
		return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "value %v of type %T is not an integer", v, v)
	}
	return cast.ToInt64E(v)
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return true
	}
	return false
}
