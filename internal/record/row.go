package record

import "strconv"

// Field is one cell of a logical row. Columns that the file's variant does
// not carry are absent, which is distinct from an empty value.
type Field struct {
	Value   string
	Present bool
}

// Absent is the field of a logical column missing from the physical row.
var Absent = Field{}

// Of returns a present field holding v.
func Of(v string) Field { return Field{Value: v, Present: true} }

func (f Field) String() string {
	if !f.Present {
		return "<absent>"
	}
	return strconv.Quote(f.Value)
}

// BuildRow scatters the physical values of raw into a logical row of n
// columns using perm, where perm[i] is the logical index of raw[i].
func BuildRow(raw []string, perm []int, n int) ([]Field, error) {
	if len(raw) != len(perm) {
		return nil, &RowError{Msg: "row column count mismatch: got " + strconv.Itoa(len(raw)) + ", want " + strconv.Itoa(len(perm))}
	}
	row := make([]Field, n)
	for i, v := range raw {
		if perm[i] < 0 || perm[i] >= n {
			return nil, &RowError{Msg: "variant index " + strconv.Itoa(perm[i]) + " out of range"}
		}
		row[perm[i]] = Of(v)
	}
	return row, nil
}
