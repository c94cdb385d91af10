package toa5

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"slices"

	"github.com/JonMunkholm/loggerimport/internal/metadata"
	"github.com/JonMunkholm/loggerimport/internal/record"
)

// Reader reads the records of one TOA5 file. The header is read and
// resolved by NewReader; rows are returned in file order.
type Reader struct {
	csv       *csv.Reader
	env       EnvironmentLine
	header    metadata.Header
	table     *metadata.Table
	variant   []int
	filenames []string
	envMap    map[string]string
}

// NewReader reads the header of r and resolves it against mds. filenames
// name the file, outermost container first, and only appear in messages.
func NewReader(r io.Reader, mds []*metadata.Metadata, filenames ...string) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	env, header, err := ReadHeader(cr)
	if err != nil {
		return nil, err
	}
	table, variant, err := Resolve(env, header, mds)
	if err != nil {
		return nil, err
	}
	return &Reader{
		csv:       cr,
		env:       env,
		header:    header,
		table:     table,
		variant:   variant,
		filenames: slices.Clone(filenames),
		envMap:    env.Map(),
	}, nil
}

// Env returns the file's environment line.
func (r *Reader) Env() EnvironmentLine { return r.env }

// Header returns the file's physical column headers.
func (r *Reader) Header() metadata.Header { return r.header }

// Table returns the table the file was resolved to.
func (r *Reader) Table() *metadata.Table { return r.table }

// Variant returns the logical index of each physical column.
func (r *Reader) Variant() []int { return slices.Clone(r.variant) }

// Read returns the next record, or io.EOF after the last one. Errors other
// than io.EOF wrap record.ErrRecord and end the file.
func (r *Reader) Read() (*record.Record, error) {
	row, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		line := 0
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			line = pe.Line
		}
		return nil, &record.RowError{Source: record.Source(line, r.filenames...), Msg: "CSV parse error", Err: err}
	}
	line, _ := r.csv.FieldPos(0)
	return record.New(r.table, r.variant, row,
		record.WithSource(line, r.filenames...),
		record.WithFileType(record.FileTOA5),
		record.WithEnv(r.envMap),
	)
}

// Records iterates over the remaining records. Iteration stops after the
// first error.
func (r *Reader) Records() iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}
