// Package datatypes implements the scalar data types used to validate and
// convert the string values read from datalogger files.
//
// The types are modelled on Postgres types but are stricter: only strings are
// accepted as input, and the literal "NaN" (in any letter case) is accepted by
// every type and converts to a null/NaN sentinel.
//
// [Type] is a closed union. Its zero value is invalid; use the constructors
// or [Parse].
package datatypes

import (
	"fmt"
	"regexp"
	"strconv"
)

// Kind identifies one variant of the [Type] union.
type Kind int

const (
	KindInvalid Kind = iota
	KindNonNegInt
	KindBigInt
	KindNum
	KindTimestampNoTz
	KindTimestampWithTz
	KindOnlyNan
	KindIgnore
)

// MaxPrecision is the largest precision that may be declared on a Num type.
const MaxPrecision = 1000

// String returns the name used in metadata documents.
func (k Kind) String() string {
	switch k {
	case KindNonNegInt:
		return "NonNegInt"
	case KindBigInt:
		return "BigInt"
	case KindNum:
		return "Num"
	case KindTimestampNoTz:
		return "TimestampNoTz"
	case KindTimestampWithTz:
		return "TimestampWithTz"
	case KindOnlyNan:
		return "OnlyNan"
	case KindIgnore:
		return "Ignore"
	default:
		return "Invalid"
	}
}

// Type is one scalar data type. Type values are comparable: two types are
// equal iff they are the same variant with the same precision and scale.
type Type struct {
	kind      Kind
	precision int // 0 means unconstrained
	scale     int
	hasScale  bool
}

// NonNegInt accepts integers 0 <= n < 2^31 (Postgres INTEGER, positive subset).
func NonNegInt() Type { return Type{kind: KindNonNegInt} }

// BigInt accepts signed 64-bit integers.
func BigInt() Type { return Type{kind: KindBigInt} }

// TimestampNoTz accepts "YYYY-MM-DD HH:MM:SS" without a zone.
func TimestampNoTz() Type { return Type{kind: KindTimestampNoTz} }

// TimestampWithTz accepts "YYYY-MM-DD HH:MM:SS" followed by "Z" or a full
// "+HH:MM"/"-HH:MM" offset.
func TimestampWithTz() Type { return Type{kind: KindTimestampWithTz} }

// OnlyNan accepts nothing but NaN. It is mostly produced by [Inferrer].
func OnlyNan() Type { return Type{kind: KindOnlyNan} }

// Ignore accepts any value; it marks columns whose data is never used.
func Ignore() Type { return Type{kind: KindIgnore} }

// Num is a decimal of any precision and scale.
func Num() Type { return Type{kind: KindNum} }

// NumPrecision is a decimal with at most precision digits and no fractional
// digits other than zeros.
func NumPrecision(precision int) (Type, error) {
	if precision < 1 || precision > MaxPrecision {
		return Type{}, fmt.Errorf("precision must be 1 <= N <= %d, got %d", MaxPrecision, precision)
	}
	return Type{kind: KindNum, precision: precision}, nil
}

// NumScale is a decimal with at most precision digits in total, of which at
// most scale are after the decimal point.
func NumScale(precision, scale int) (Type, error) {
	t, err := NumPrecision(precision)
	if err != nil {
		return Type{}, err
	}
	if scale < 0 || scale > precision {
		return Type{}, fmt.Errorf("scale must be 0 <= N <= precision (%d), got %d", precision, scale)
	}
	t.scale = scale
	t.hasScale = true
	return t, nil
}

// Kind returns the variant.
func (t Type) Kind() Kind { return t.kind }

// IsZero reports whether t is the zero (invalid) Type.
func (t Type) IsZero() bool { return t.kind == KindInvalid }

// Precision returns the declared precision of a Num type.
func (t Type) Precision() (int, bool) { return t.precision, t.precision > 0 }

// Scale returns the declared scale of a Num type.
func (t Type) Scale() (int, bool) { return t.scale, t.hasScale }

// String returns the textual form of the type, which [Parse] accepts.
func (t Type) String() string {
	if t.kind != KindNum {
		return t.kind.String()
	}
	switch {
	case t.precision == 0:
		return "Num"
	case !t.hasScale:
		return "Num(" + strconv.Itoa(t.precision) + ")"
	default:
		return "Num(" + strconv.Itoa(t.precision) + "," + strconv.Itoa(t.scale) + ")"
	}
}

// PgType returns the corresponding Postgres column type.
func (t Type) PgType() string {
	switch t.kind {
	case KindNonNegInt:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindNum:
		if t.precision == 0 {
			return "NUMERIC"
		}
		if !t.hasScale {
			return "NUMERIC(" + strconv.Itoa(t.precision) + ")"
		}
		return "NUMERIC(" + strconv.Itoa(t.precision) + "," + strconv.Itoa(t.scale) + ")"
	case KindTimestampNoTz:
		return "TIMESTAMP"
	case KindTimestampWithTz:
		return "TIMESTAMP WITH TIME ZONE"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return nil, fmt.Errorf("cannot marshal invalid type")
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

var numSpecRegex = regexp.MustCompile(`^Num(?:\((\d+)(?:,(\d+))?\))?$`)

// Parse converts the textual form of a type back into a Type.
// Parse and [Type.String] are inverses.
func Parse(s string) (Type, error) {
	switch s {
	case "NonNegInt":
		return NonNegInt(), nil
	case "BigInt":
		return BigInt(), nil
	case "TimestampNoTz":
		return TimestampNoTz(), nil
	case "TimestampWithTz":
		return TimestampWithTz(), nil
	case "OnlyNan":
		return OnlyNan(), nil
	case "Ignore":
		return Ignore(), nil
	}

	m := numSpecRegex.FindStringSubmatch(s)
	if m == nil {
		return Type{}, fmt.Errorf("failed to parse type %q", s)
	}
	if m[1] == "" {
		return Num(), nil
	}
	precision, err := strconv.Atoi(m[1])
	if err != nil {
		return Type{}, fmt.Errorf("failed to parse type %q: %w", s, err)
	}
	if m[2] == "" {
		return NumPrecision(precision)
	}
	scale, err := strconv.Atoi(m[2])
	if err != nil {
		return Type{}, fmt.Errorf("failed to parse type %q: %w", s, err)
	}
	return NumScale(precision, scale)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level declarations.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}
