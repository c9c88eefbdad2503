package schema

import (
	"math/big"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// Kind is the inferred type of a column, ordered from most to least
// specific. Combining two kinds yields the less specific one, except that
// KindDateTime absorbs everything.
type Kind int

const (
	KindUnknown Kind = iota // only nulls seen so far
	KindInteger
	KindNumber
	KindString
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return TypeInteger
	case KindNumber:
		return TypeNumber
	case KindString:
		return TypeString
	case KindDateTime:
		return FormatDateTime
	default:
		return "unknown"
	}
}

// Widen combines the kind inferred so far with the kind of a new value.
func (k Kind) Widen(next Kind) Kind {
	switch {
	case k == KindDateTime || next == KindDateTime:
		return KindDateTime
	case next == KindUnknown:
		return k
	case k > next:
		return k
	default:
		return next
	}
}

// Property converts the kind into its nullable schema property. A column
// that only ever held nulls becomes a string.
func (k Kind) Property() *Property {
	switch k {
	case KindInteger:
		return IntegerProperty()
	case KindNumber:
		return NumberProperty()
	case KindDateTime:
		return DateTimeProperty()
	default:
		return StringProperty()
	}
}

// InferredType is the result of inferring one column.
type InferredType struct {
	Kind     Kind
	Nullable bool
	// Samples is the number of non-null values observed
	Samples int
}

// TypeInferenceEngine derives schemas from sampled rows.
type TypeInferenceEngine struct {
	logger *zap.Logger
}

// NewTypeInferenceEngine creates a new type inference engine
func NewTypeInferenceEngine(logger *zap.Logger) *TypeInferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeInferenceEngine{logger: logger}
}

// Infer is InferSchema on an engine without logging.
func Infer(rows []warehouse.Row) (*Schema, error) {
	return NewTypeInferenceEngine(nil).InferSchema(rows)
}

// InferSchema returns the most specific schema consistent with every row.
// The column set is the union of all rows' columns. Zero rows is an
// ErrorTypeSchemaInference error.
func (e *TypeInferenceEngine) InferSchema(rows []warehouse.Row) (*Schema, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrorTypeSchemaInference, "cannot infer schema: no rows returned")
	}

	inferred := make(map[string]*InferredType)
	for _, row := range rows {
		for _, key := range row.Keys() {
			v, _ := row.Get(key)
			it, ok := inferred[key]
			if !ok {
				it = &InferredType{}
				inferred[key] = it
			}
			it.observe(v)
		}
	}

	s := New()
	for name, it := range inferred {
		s.Properties[name] = it.Kind.Property()
		e.logger.Debug("inferred column type",
			zap.String("column", name),
			zap.Stringer("kind", it.Kind),
			zap.Bool("nullable", it.Nullable),
			zap.Int("samples", it.Samples))
	}
	return s, nil
}

// InferType infers a single column from its values.
func (e *TypeInferenceEngine) InferType(values []any) *InferredType {
	it := &InferredType{}
	for _, v := range values {
		it.observe(v)
	}
	return it
}

func (it *InferredType) observe(v any) {
	if v == nil {
		it.Nullable = true
		return
	}
	it.Samples++
	it.Kind = it.Kind.Widen(DetectKind(v))
}

// DetectKind classifies a single non-null value. Only native date and time
// values are date-times; a string that looks like a timestamp stays a
// string.
func DetectKind(value any) Kind {
	switch v := value.(type) {
	case nil:
		return KindUnknown
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInteger
	case float32, float64, decimal.Decimal:
		return KindNumber
	case *big.Rat:
		if v == nil {
			return KindUnknown
		}
		if v.IsInt() && v.Num().IsInt64() {
			return KindInteger
		}
		return KindNumber
	case time.Time, civil.Date, civil.DateTime:
		return KindDateTime
	case string:
		if _, ok := ParseInteger(v); ok {
			return KindInteger
		}
		if _, ok := ParseNumber(v); ok {
			return KindNumber
		}
		return KindString
	default:
		return KindString
	}
}

// ParseInteger parses a base-10 64-bit integer.
func ParseInteger(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// ParseNumber parses a decimal number, with optional exponent.
func ParseNumber(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	return d, err == nil
}
