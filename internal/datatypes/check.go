package datatypes

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout   = "2006-01-02 15:04:05"
	timestampTzLayout = "2006-01-02 15:04:05Z07:00"
)

var (
	nonNegIntRegex = regexp.MustCompile(`^(?:0|[1-9][0-9]*)$`)
	bigIntRegex    = regexp.MustCompile(`^-?(?:0|[1-9][0-9]*)$`)
	tsNoTzRegex    = regexp.MustCompile(`^\d{4}-\d\d-\d\d \d\d:\d\d:\d\d$`)
	tsWithTzRegex  = regexp.MustCompile(`^(\d{4}-\d\d-\d\d \d\d:\d\d:\d\d)( ?[-+]\d\d:\d\d|Z)$`)
)

// IsNaN reports whether s is the literal "NaN" in any letter case.
func IsNaN(s string) bool {
	return strings.EqualFold(s, "nan")
}

// Check reports whether v is a valid value of the type. Check never panics,
// and when it returns true the conversion functions succeed on v.
func (t Type) Check(v string) bool {
	if IsNaN(v) {
		return t.kind != KindInvalid
	}
	switch t.kind {
	case KindNonNegInt:
		if !nonNegIntRegex.MatchString(v) {
			return false
		}
		n, err := strconv.ParseUint(v, 10, 32)
		return err == nil && n <= math.MaxInt32
	case KindBigInt:
		if !bigIntRegex.MatchString(v) {
			return false
		}
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case KindNum:
		return t.checkNum(v)
	case KindTimestampNoTz:
		_, err := parseNoTz(v, time.UTC)
		return err == nil
	case KindTimestampWithTz:
		_, err := parseWithTz(v)
		return err == nil
	case KindOnlyNan:
		return false
	case KindIgnore:
		return true
	default:
		return false
	}
}

// numShape splits a decimal literal of the form -?\d*(\.\d*)? into its
// integer and fractional digit strings. ok is false when v is not such a
// literal or contains no digits at all.
func numShape(v string) (intPart, fracPart string, ok bool) {
	s := strings.TrimPrefix(v, "-")
	intPart, fracPart, _ = strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return "", "", false
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return "", "", false
	}
	return intPart, fracPart, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func allZeros(s string) bool {
	return strings.Trim(s, "0") == ""
}

func (t Type) checkNum(v string) bool {
	intPart, fracPart, ok := numShape(v)
	if !ok {
		return false
	}
	if t.precision == 0 {
		return true
	}
	scale := 0
	if t.hasScale {
		scale = t.scale
	}

	intMax := t.precision - scale
	if intMax == 0 {
		if !allZeros(intPart) {
			return false
		}
	} else if len(intPart) > intMax {
		return false
	}

	if scale == 0 {
		return allZeros(fracPart)
	}
	return len(fracPart) <= scale
}

func parseNoTz(v string, loc *time.Location) (time.Time, error) {
	if !tsNoTzRegex.MatchString(v) {
		return time.Time{}, errBadTimestamp
	}
	return time.ParseInLocation(timestampLayout, v, loc)
}

func parseWithTz(v string) (time.Time, error) {
	m := tsWithTzRegex.FindStringSubmatch(v)
	if m == nil {
		return time.Time{}, errBadTimestamp
	}
	return time.Parse(timestampTzLayout, m[1]+strings.TrimPrefix(m[2], " "))
}
