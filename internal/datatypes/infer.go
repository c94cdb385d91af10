package datatypes

import (
	"errors"
	"fmt"
)

// ErrInferenceFailed is returned when no type accepts all values seen.
var ErrInferenceFailed = errors.New("no type matches all values")

// Inferrer determines the narrowest type that accepts every value it is sent.
//
// Candidates are ranked OnlyNan, NonNegInt, BigInt, TimestampNoTz,
// TimestampWithTz and finally Num with a precision and scale wide enough for
// all values seen. The result does not depend on the order of values.
type Inferrer struct {
	deferFailure bool
	failed       error

	onlyNan   bool
	nonNegInt bool
	bigInt    bool
	tsNoTz    bool
	tsWithTz  bool
	num       bool

	maxInt   int
	maxScale int
	count    int
}

// InferrerOption configures an Inferrer.
type InferrerOption func(*Inferrer)

// WithDeferredFailure makes Send never fail; a failure is only reported by
// Finish.
func WithDeferredFailure() InferrerOption {
	return func(i *Inferrer) { i.deferFailure = true }
}

// NewInferrer returns an Inferrer with every candidate still possible.
func NewInferrer(opts ...InferrerOption) *Inferrer {
	i := &Inferrer{
		onlyNan:   true,
		nonNegInt: true,
		bigInt:    true,
		tsNoTz:    true,
		tsWithTz:  true,
		num:       true,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Send feeds one value. Unless deferred failure is enabled, it returns
// ErrInferenceFailed as soon as no candidate remains.
func (i *Inferrer) Send(v string) error {
	if i.failed != nil {
		if i.deferFailure {
			return nil
		}
		return i.failed
	}
	i.count++

	if IsNaN(v) {
		return nil
	}
	i.onlyNan = false
	i.nonNegInt = i.nonNegInt && NonNegInt().Check(v)
	i.bigInt = i.bigInt && BigInt().Check(v)
	i.tsNoTz = i.tsNoTz && TimestampNoTz().Check(v)
	i.tsWithTz = i.tsWithTz && TimestampWithTz().Check(v)
	if i.num {
		intPart, fracPart, ok := numShape(v)
		if ok {
			i.maxInt = max(i.maxInt, len(intPart))
			i.maxScale = max(i.maxScale, len(fracPart))
		} else {
			i.num = false
		}
	}

	if !(i.nonNegInt || i.bigInt || i.tsNoTz || i.tsWithTz || i.num) {
		i.failed = fmt.Errorf("%w: %q", ErrInferenceFailed, v)
		if !i.deferFailure {
			return i.failed
		}
	}
	return nil
}

// Finish returns the inferred type.
func (i *Inferrer) Finish() (Type, error) {
	if i.failed != nil {
		return Type{}, i.failed
	}
	switch {
	case i.onlyNan:
		return OnlyNan(), nil
	case i.nonNegInt:
		return NonNegInt(), nil
	case i.bigInt:
		return BigInt(), nil
	case i.tsNoTz:
		return TimestampNoTz(), nil
	case i.tsWithTz:
		return TimestampWithTz(), nil
	}

	precision := i.maxInt + i.maxScale
	if precision < 1 || precision > MaxPrecision {
		return Num(), nil
	}
	if i.maxScale < 1 {
		return NumPrecision(precision)
	}
	return NumScale(precision, i.maxScale)
}

// Count returns the number of values sent.
func (i *Inferrer) Count() int { return i.count }

// Infer runs an Inferrer over values.
func Infer(values []string) (Type, error) {
	inf := NewInferrer()
	for _, v := range values {
		if err := inf.Send(v); err != nil {
			return Type{}, err
		}
	}
	return inf.Finish()
}
