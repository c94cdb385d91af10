// Package record turns physical rows of a logger file into records laid out
// in the logical column order of their table. Records are immutable: every
// transform returns a new Record, so one record may be used from several
// goroutines.
package record

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

// UTCLayout is the canonical timestamp form produced by TZConv.
const UTCLayout = "2006-01-02 15:04:05Z"

// FileType is the detected format of an input file.
type FileType int

const (
	FileUnknown FileType = iota
	FileCSV
	FileTOA5
)

func (f FileType) String() string {
	switch f {
	case FileCSV:
		return "CSV"
	case FileTOA5:
		return "TOA5"
	default:
		return "unknown"
	}
}

// CheckMode controls how Typecheck treats columns without a declared type.
type CheckMode int

const (
	// SkipUntyped accepts any value in an untyped column.
	SkipUntyped CheckMode = iota
	// RequireTypes reports every value of an untyped column as a TypeError.
	RequireTypes
)

// Record is one row of logger data with its context.
type Record struct {
	table     *metadata.Table
	variant   []int
	orig      []string
	full      []Field
	filenames []string
	line      int
	fileType  FileType
	env       map[string]string
	converted bool
}

// Option sets optional record context.
type Option func(*Record)

// WithSource records where the row was read from. filenames may name nested
// containers, outermost first.
func WithSource(line int, filenames ...string) Option {
	return func(r *Record) {
		r.line = line
		r.filenames = slices.Clone(filenames)
	}
}

// WithFileType records the format of the file the row came from.
func WithFileType(ft FileType) Option {
	return func(r *Record) { r.fileType = ft }
}

// WithEnv attaches a snapshot of the file's environment line, such as the
// station and program of a TOA5 file.
func WithEnv(env map[string]string) Option {
	return func(r *Record) { r.env = maps.Clone(env) }
}

// New builds a record from the physical row orig, laid out according to
// variant, for table t.
func New(t *metadata.Table, variant []int, orig []string, opts ...Option) (*Record, error) {
	r := &Record{
		table:   t,
		variant: slices.Clone(variant),
		orig:    slices.Clone(orig),
	}
	for _, opt := range opts {
		opt(r)
	}
	full, err := BuildRow(r.orig, r.variant, len(t.Columns))
	if err != nil {
		var re *RowError
		if errors.As(err, &re) {
			re.Source = r.Source()
		}
		return nil, err
	}
	r.full = full
	return r, nil
}

// Table returns the table the record belongs to.
func (r *Record) Table() *metadata.Table { return r.table }

// Variant returns the logical index of each physical column.
func (r *Record) Variant() []int { return slices.Clone(r.variant) }

// Orig returns the values in physical file order.
func (r *Record) Orig() []string { return slices.Clone(r.orig) }

// FullRow returns the values in logical column order.
func (r *Record) FullRow() []Field { return slices.Clone(r.full) }

// Line returns the source line number, or 0 when unknown.
func (r *Record) Line() int { return r.line }

// Filenames returns the source file names, outermost first.
func (r *Record) Filenames() []string { return slices.Clone(r.filenames) }

// FileType returns the format of the source file.
func (r *Record) FileType() FileType { return r.fileType }

// Env returns the environment line snapshot, or nil when the format has none.
func (r *Record) Env() map[string]string { return maps.Clone(r.env) }

// Converted reports whether the record is the result of TZConv.
func (r *Record) Converted() bool { return r.converted }

// Source returns "file:line" for use in messages.
func (r *Record) Source() string { return Source(r.line, r.filenames...) }

// Source formats a line of a possibly nested file as "file:line".
func Source(line int, filenames ...string) string {
	l := strconv.Itoa(line)
	switch len(filenames) {
	case 0:
		return "<unknown>:" + l
	case 1:
		return filenames[0] + ":" + l
	default:
		return fmt.Sprint(filenames) + ":" + l
	}
}

// Value returns the field of the logical column named name.
func (r *Record) Value(name string) (Field, error) {
	i := r.table.ColumnIndex(name)
	if i < 0 {
		return Absent, fmt.Errorf("%w %q in %s", ErrUnknownColumn, name, r.table.Ident())
	}
	return r.full[i], nil
}

// Typecheck checks every physical value against its column's declared type.
// A converted record cannot be checked since its naive timestamps have been
// rewritten to UTC.
func (r *Record) Typecheck(mode CheckMode) error {
	if r.converted {
		return fmt.Errorf("%s: %w", r.Source(), ErrConverted)
	}
	for i, v := range r.orig {
		col := r.table.Columns[r.variant[i]]
		if !col.HasType() {
			if mode == RequireTypes {
				return &TypeError{Column: col.Header(), Value: v, Source: r.Source(), Err: ErrUntyped}
			}
			continue
		}
		if !col.Type.Check(v) {
			return &TypeError{Column: col.Header(), Type: col.Type, Value: v, Source: r.Source()}
		}
	}
	return nil
}

func (r *Record) location() *time.Location {
	if md := r.table.Parent(); md != nil {
		return md.TZ
	}
	return nil
}

// TZConv returns a copy of the record with every timestamp value rewritten
// to UTCLayout. TimestampNoTz values are taken in the logger's time zone.
// NaN values are kept.
func (r *Record) TZConv() (*Record, error) {
	if r.converted {
		return nil, fmt.Errorf("%s: %w", r.Source(), ErrConverted)
	}
	loc := r.location()
	out := make([]string, len(r.orig))
	for i, v := range r.orig {
		out[i] = v
		col := r.table.Columns[r.variant[i]]
		switch col.Type.Kind() {
		case datatypes.KindTimestampNoTz, datatypes.KindTimestampWithTz:
		default:
			continue
		}
		if datatypes.IsNaN(v) {
			continue
		}
		ts, err := col.Type.ToTime(v, loc)
		if err != nil {
			return nil, &TypeError{Column: col.Header(), Type: col.Type, Value: v, Source: r.Source(), Err: err}
		}
		out[i] = ts.UTC().Format(UTCLayout)
	}
	full, err := BuildRow(out, r.variant, len(r.table.Columns))
	if err != nil {
		return nil, err
	}
	c := *r
	c.orig = out
	c.full = full
	c.converted = true
	return &c, nil
}

// View projects the record onto the old columns of the named view mapping.
func (r *Record) View(name string) ([]Field, error) {
	m, ok := r.table.Mappings[name]
	if !ok {
		return nil, fmt.Errorf("table %s has no mapping %q", r.table.Ident(), name)
	}
	if m.Type != metadata.MappingView {
		return nil, fmt.Errorf("mapping %q: expected a view mapping, not %s", name, m.Type)
	}
	idx, err := m.OldIndexes(r.table.Columns)
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(idx))
	for i, j := range idx {
		out[i] = r.full[j]
	}
	return out, nil
}

// FullRowAsNative converts the logical row with datatypes.Type.ToNative.
// Absent fields become nil and untyped columns keep their string value.
// TimestampNoTz values are taken in the logger's time zone when it has one.
func (r *Record) FullRowAsNative() ([]any, error) {
	if r.converted {
		return nil, fmt.Errorf("%s: %w", r.Source(), ErrConverted)
	}
	loc := r.location()
	out := make([]any, len(r.full))
	for i, f := range r.full {
		col := r.table.Columns[i]
		switch {
		case !f.Present:
			out[i] = nil
		case !col.HasType():
			out[i] = f.Value
		default:
			var v any
			var err error
			if col.Type.Kind() == datatypes.KindTimestampNoTz && loc != nil {
				v, err = col.Type.ToNativeIn(f.Value, loc)
			} else {
				v, err = col.Type.ToNative(f.Value)
			}
			if err != nil {
				return nil, &TypeError{Column: col.Header(), Type: col.Type, Value: f.Value, Source: r.Source(), Err: err}
			}
			out[i] = v
		}
	}
	return out, nil
}

// FullRowAsNumeric converts the logical row with datatypes.Type.ToNumeric.
// Every column of the table must have a declared type. Absent fields become
// NaN.
func (r *Record) FullRowAsNumeric() ([]float64, error) {
	if r.converted {
		return nil, fmt.Errorf("%s: %w", r.Source(), ErrConverted)
	}
	for _, col := range r.table.Columns {
		if !col.HasType() {
			return nil, fmt.Errorf("every column in %s needs a type so it can be converted: %w", r.table.Ident(), ErrUntyped)
		}
	}
	loc := r.location()
	out := make([]float64, len(r.full))
	for i, f := range r.full {
		col := r.table.Columns[i]
		if !f.Present {
			out[i] = math.NaN()
			continue
		}
		var v float64
		var err error
		if col.Type.Kind() == datatypes.KindTimestampNoTz && loc != nil {
			v, err = col.Type.ToNumericIn(f.Value, loc)
		} else {
			v, err = col.Type.ToNumeric(f.Value)
		}
		if err != nil {
			return nil, &TypeError{Column: col.Header(), Type: col.Type, Value: f.Value, Source: r.Source(), Err: err}
		}
		out[i] = v
	}
	return out, nil
}
