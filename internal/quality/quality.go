// Package quality classifies logger values and timestamp sequences as good,
// unusual or bad.
package quality

import (
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/loggerimport/internal/record"
)

// Quality is the basic quality of a value.
type Quality int

const (
	Good Quality = iota
	Unusual
	Bad
)

func (q Quality) String() string {
	switch q {
	case Good:
		return "GOOD"
	case Unusual:
		return "UNUSUAL"
	case Bad:
		return "BAD"
	default:
		return "Quality(?)"
	}
}

// MarshalText encodes the quality by name.
func (q Quality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

// Classifier holds the values treated as unusual. 7999 is the largest value
// of Campbell's FP2 type, so ±7999 usually means a saturated sensor.
type Classifier struct {
	UnusualStrings map[string]bool
	UnusualNumbers map[float64]bool
}

// DefaultClassifier returns a classifier that treats ±7999 as unusual, both
// as strings and as numbers.
func DefaultClassifier() *Classifier {
	return &Classifier{
		UnusualStrings: map[string]bool{"7999": true, "-7999": true},
		UnusualNumbers: map[float64]bool{7999: true, -7999: true},
	}
}

var defaultClassifier = DefaultClassifier()

// Classify classifies v with the default classifier.
func Classify(v any) Quality { return defaultClassifier.Classify(v) }

// Classify returns the quality of v. nil, NaN, infinities, null database
// values and absent fields are bad. Blank strings and the configured
// unusual values are unusual, as are complex numbers. Other values of
// unsupported types are bad.
func (c *Classifier) Classify(v any) Quality {
	switch x := v.(type) {
	case nil:
		return Bad
	case record.Field:
		if !x.Present {
			return Bad
		}
		return c.classifyString(x.Value)
	case string:
		return c.classifyString(x)
	case bool:
		if x {
			return c.classifyNumber(1)
		}
		return c.classifyNumber(0)
	case int:
		return c.classifyNumber(float64(x))
	case int32:
		return c.classifyNumber(float64(x))
	case int64:
		return c.classifyNumber(float64(x))
	case uint32:
		return c.classifyNumber(float64(x))
	case uint64:
		return c.classifyNumber(float64(x))
	case float32:
		return c.classifyNumber(float64(x))
	case float64:
		return c.classifyNumber(x)
	case complex64, complex128:
		return Unusual
	case time.Time:
		return Good
	case pgtype.Int4:
		if !x.Valid {
			return Bad
		}
		return c.classifyNumber(float64(x.Int32))
	case pgtype.Int8:
		if !x.Valid {
			return Bad
		}
		return c.classifyNumber(float64(x.Int64))
	case pgtype.Numeric:
		if !x.Valid || x.NaN || x.InfinityModifier != pgtype.Finite {
			return Bad
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return Bad
		}
		return c.classifyNumber(f.Float64)
	case pgtype.Timestamp:
		if !x.Valid {
			return Bad
		}
		return Good
	case pgtype.Timestamptz:
		if !x.Valid {
			return Bad
		}
		return Good
	case pgtype.Text:
		if !x.Valid {
			return Bad
		}
		return c.classifyString(x.String)
	default:
		return Bad
	}
}

func (c *Classifier) classifyString(s string) Quality {
	if strings.EqualFold(s, "nan") {
		return Bad
	}
	if strings.TrimSpace(s) == "" || c.UnusualStrings[s] {
		return Unusual
	}
	return Good
}

func (c *Classifier) classifyNumber(f float64) Quality {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Bad
	}
	if c.UnusualNumbers[f] {
		return Unusual
	}
	return Good
}
