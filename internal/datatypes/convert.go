package datatypes

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ErrNoZone is returned when a zone-less timestamp must be converted but no
// location was supplied.
var ErrNoZone = errors.New("no time zone supplied for TimestampNoTz value")

// ToNative converts v into its typed value. The result types are:
//
//	NonNegInt       pgtype.Int4
//	BigInt          pgtype.Int8
//	Num             pgtype.Numeric (NaN sets the NaN flag)
//	TimestampNoTz   pgtype.Timestamp
//	TimestampWithTz pgtype.Timestamptz
//	OnlyNan         nil
//	Ignore          pgtype.Text
//
// NaN converts to an invalid (null) value of the result type.
func (t Type) ToNative(v string) (any, error) {
	if t.kind == KindTimestampNoTz {
		if IsNaN(v) {
			return pgtype.Timestamp{}, nil
		}
		ts, err := parseNoTz(v, time.UTC)
		if err != nil {
			return nil, t.convErr(v, err)
		}
		return pgtype.Timestamp{Time: ts, Valid: true}, nil
	}
	return t.toNative(v, nil)
}

// ToNativeIn is like ToNative but interprets TimestampNoTz values in loc,
// returning a pgtype.Timestamptz. A nil loc is an error for TimestampNoTz.
func (t Type) ToNativeIn(v string, loc *time.Location) (any, error) {
	return t.toNative(v, loc)
}

func (t Type) toNative(v string, loc *time.Location) (any, error) {
	nan := IsNaN(v)
	switch t.kind {
	case KindNonNegInt:
		if nan {
			return pgtype.Int4{}, nil
		}
		if !t.Check(v) {
			return nil, t.convErr(v, nil)
		}
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, t.convErr(v, err)
		}
		return pgtype.Int4{Int32: int32(n), Valid: true}, nil
	case KindBigInt:
		if nan {
			return pgtype.Int8{}, nil
		}
		if !t.Check(v) {
			return nil, t.convErr(v, nil)
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, t.convErr(v, err)
		}
		return pgtype.Int8{Int64: n, Valid: true}, nil
	case KindNum:
		if nan {
			return pgtype.Numeric{NaN: true, Valid: true}, nil
		}
		if !t.Check(v) {
			return nil, t.convErr(v, nil)
		}
		d, err := parseDecimal(v)
		if err != nil {
			return nil, t.convErr(v, err)
		}
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}, nil
	case KindTimestampNoTz:
		if loc == nil {
			return nil, t.convErr(v, ErrNoZone)
		}
		if nan {
			return pgtype.Timestamptz{}, nil
		}
		ts, err := parseNoTz(v, loc)
		if err != nil {
			return nil, t.convErr(v, err)
		}
		return pgtype.Timestamptz{Time: ts, Valid: true}, nil
	case KindTimestampWithTz:
		if nan {
			return pgtype.Timestamptz{}, nil
		}
		ts, err := parseWithTz(v)
		if err != nil {
			return nil, t.convErr(v, err)
		}
		return pgtype.Timestamptz{Time: ts, Valid: true}, nil
	case KindOnlyNan:
		if nan {
			return nil, nil
		}
		return nil, t.convErr(v, nil)
	case KindIgnore:
		return pgtype.Text{String: v, Valid: true}, nil
	default:
		panic("datatypes: conversion on invalid type")
	}
}

// ToNumeric converts v into a float64. Timestamps become seconds since the
// Unix epoch; TimestampNoTz values are taken as UTC. NaN and Ignore values
// become math.NaN().
func (t Type) ToNumeric(v string) (float64, error) {
	return t.toNumeric(v, time.UTC)
}

// ToNumericIn is like ToNumeric but interprets TimestampNoTz values in loc.
func (t Type) ToNumericIn(v string, loc *time.Location) (float64, error) {
	if loc == nil && t.kind == KindTimestampNoTz {
		return 0, t.convErr(v, ErrNoZone)
	}
	return t.toNumeric(v, loc)
}

func (t Type) toNumeric(v string, loc *time.Location) (float64, error) {
	if t.kind == KindInvalid {
		panic("datatypes: conversion on invalid type")
	}
	if IsNaN(v) || t.kind == KindIgnore {
		return math.NaN(), nil
	}
	switch t.kind {
	case KindNonNegInt, KindBigInt, KindNum:
		if !t.Check(v) {
			return 0, t.convErr(v, nil)
		}
		// Magnitudes beyond float64 range come back as ±Inf with ErrRange.
		f, err := strconv.ParseFloat(v, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, t.convErr(v, err)
		}
		return f, nil
	case KindTimestampNoTz:
		ts, err := parseNoTz(v, loc)
		if err != nil {
			return 0, t.convErr(v, err)
		}
		return float64(ts.Unix()), nil
	case KindTimestampWithTz:
		ts, err := parseWithTz(v)
		if err != nil {
			return 0, t.convErr(v, err)
		}
		return float64(ts.Unix()), nil
	default:
		return 0, t.convErr(v, nil)
	}
}

// ToTime parses a timestamp value. TimestampNoTz values are taken in loc,
// TimestampWithTz values carry their own offset. NaN and other types fail.
func (t Type) ToTime(v string, loc *time.Location) (time.Time, error) {
	switch t.kind {
	case KindTimestampNoTz:
		if loc == nil {
			return time.Time{}, t.convErr(v, ErrNoZone)
		}
		ts, err := parseNoTz(v, loc)
		if err != nil {
			return time.Time{}, t.convErr(v, err)
		}
		return ts, nil
	case KindTimestampWithTz:
		ts, err := parseWithTz(v)
		if err != nil {
			return time.Time{}, t.convErr(v, err)
		}
		return ts, nil
	default:
		return time.Time{}, t.convErr(v, errors.New("not a timestamp type"))
	}
}

func (t Type) convErr(v string, err error) error {
	return &ConversionError{Type: t, Value: v, Err: err}
}

// parseDecimal parses a literal already accepted by numShape, filling in the
// digits that the decimal library requires on either side of the point.
func parseDecimal(v string) (decimal.Decimal, error) {
	neg := strings.HasPrefix(v, "-")
	intPart, fracPart, _ := numShape(v)
	if intPart == "" {
		intPart = "0"
	}
	s := intPart
	if fracPart != "" {
		s += "." + fracPart
	}
	if neg {
		s = "-" + s
	}
	return decimal.NewFromString(s)
}
