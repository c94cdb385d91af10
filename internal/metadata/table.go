package metadata

import (
	"fmt"
	"slices"
	"strings"
)

// Variant is one registered physical layout of a table: the exact header
// seen in a file and, for each physical column, the index of the logical
// column it belongs to.
type Variant struct {
	Header  Header
	Indexes []int
}

// MappingType is the kind of a Mapping.
type MappingType int

const (
	MappingInvalid MappingType = iota
	MappingView
)

func (t MappingType) String() string {
	if t == MappingView {
		return "view"
	}
	return "invalid"
}

// MapEntry renames one existing column.
type MapEntry struct {
	Old BaseColumn
	New BaseColumn
}

// Mapping is a named projection of a table's columns onto new names.
type Mapping struct {
	Name    string
	Type    MappingType
	Entries []MapEntry
}

// SQLName returns the lower-cased mapping name.
func (m *Mapping) SQLName() string { return strings.ToLower(m.Name) }

// OldIndexes returns, for each entry, the index of the old column within
// columns.
func (m *Mapping) OldIndexes(columns []Column) ([]int, error) {
	idx := make([]int, len(m.Entries))
	for i, e := range m.Entries {
		want := e.Old.Header()
		idx[i] = slices.IndexFunc(columns, func(c Column) bool { return c.Header() == want })
		if idx[i] < 0 {
			return nil, configErrorf(m.Name, "mapping refers to unknown column %s", want)
		}
	}
	return idx, nil
}

// Validate checks the mapping in isolation.
func (m *Mapping) Validate() error {
	if err := validIdent(m.Name); err != nil {
		return err
	}
	if m.Type != MappingView {
		return configErrorf(m.Name, "unsupported mapping type %s", m.Type)
	}
	for _, e := range m.Entries {
		if err := e.Old.Validate(); err != nil {
			return err
		}
		if err := e.New.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// KnownIssueType classifies a declared data problem.
type KnownIssueType int

const (
	IssueInvalid KnownIssueType = iota
	IssueBad
	IssueUnusual
)

// ParseKnownIssueType accepts "bad" and "unusual".
func ParseKnownIssueType(s string) (KnownIssueType, error) {
	switch s {
	case "bad":
		return IssueBad, nil
	case "unusual":
		return IssueUnusual, nil
	default:
		return IssueInvalid, fmt.Errorf("invalid known issue type %q", s)
	}
}

func (t KnownIssueType) String() string {
	switch t {
	case IssueBad:
		return "bad"
	case IssueUnusual:
		return "unusual"
	default:
		return "invalid"
	}
}

// KnownIssue marks the values of some columns during a time range as bad or
// unusual.
type KnownIssue struct {
	Type KnownIssueType
	Cols []string
	When TimeRange
}

// Validate checks the issue in isolation.
func (k KnownIssue) Validate() error {
	if k.Type != IssueBad && k.Type != IssueUnusual {
		return configErrorf("", "invalid known issue type %d", int(k.Type))
	}
	if len(k.Cols) == 0 {
		return configErrorf("", "known issue %q lists no columns", k.When.Why)
	}
	return k.When.Validate()
}

// Table is the definition of one logger table. Tables are created with
// NewTable and attached to exactly one Metadata with Metadata.AddTable.
type Table struct {
	Name        string
	PriKey      int
	Interval    Interval
	Columns     []Column
	Mappings    map[string]*Mapping
	KnownIssues []KnownIssue

	variants   []Variant
	variantIdx map[string]int
	parent     *Metadata
}

// NewTable returns a table without variants or parent.
func NewTable(name string, prikey int, interval Interval, columns []Column) *Table {
	return &Table{
		Name:       name,
		PriKey:     prikey,
		Interval:   interval,
		Columns:    columns,
		Mappings:   map[string]*Mapping{},
		variantIdx: map[string]int{},
	}
}

// Parent returns the Metadata the table belongs to, or nil.
func (t *Table) Parent() *Metadata { return t.parent }

// AddVariant registers a physical layout. Re-registering an identical
// header with identical indexes is a no-op.
func (t *Table) AddVariant(h Header, indexes []int) error {
	if len(h) != len(indexes) {
		return configErrorf(t.Name, "variant has %d headers but %d indexes", len(h), len(indexes))
	}
	for _, i := range indexes {
		if i < 0 || i >= len(t.Columns) {
			return configErrorf(t.Name, "variant index %d out of range", i)
		}
	}
	key := h.Key()
	if existing, ok := t.variantIdx[key]; ok {
		if slices.Equal(t.variants[existing].Indexes, indexes) {
			return nil
		}
		return configErrorf(t.Name, "conflicting variants for the same header")
	}
	for _, v := range t.variants {
		if slices.Equal(v.Indexes, indexes) {
			return configErrorf(t.Name, "two variants map to the same columns %v", indexes)
		}
	}
	t.variantIdx[key] = len(t.variants)
	t.variants = append(t.variants, Variant{Header: slices.Clone(h), Indexes: slices.Clone(indexes)})
	return nil
}

// Variants returns the registered layouts in registration order.
func (t *Table) Variants() []Variant { return t.variants }

// LookupVariant returns the indexes registered for exactly header h.
func (t *Table) LookupVariant(h Header) ([]int, bool) {
	i, ok := t.variantIdx[h.Key()]
	if !ok {
		return nil, false
	}
	return t.variants[i].Indexes, true
}

// Ident returns "Logger/Table".
func (t *Table) Ident() string {
	if t.parent == nil {
		return t.Name
	}
	return t.parent.LoggerName + "/" + t.Name
}

// SQLName returns "logger_table" in lower case.
func (t *Table) SQLName() string {
	if t.parent == nil {
		return strings.ToLower(t.Name)
	}
	return strings.ToLower(t.parent.LoggerName + "_" + t.Name)
}

// ColumnIndex returns the logical index of the column named name.
func (t *Table) ColumnIndex(name string) int {
	return slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
}

// Headers returns the expected headers of all logical columns.
func (t *Table) Headers() Header {
	h := make(Header, len(t.Columns))
	for i, c := range t.Columns {
		h[i] = c.Header()
	}
	return h
}

// Validate checks the table on its own. Checks that need the whole metadata
// are done by Metadata.Validate.
func (t *Table) Validate() error {
	if t.parent == nil {
		return configErrorf(t.Name, "table has no parent")
	}
	if t.parent.tables[t.Name] != t {
		return configErrorf(t.Name, "table is not part of %s", t.parent.LoggerName)
	}
	if err := validIdent(t.Name); err != nil {
		return err
	}
	if t.PriKey < 0 || t.PriKey >= len(t.Columns) {
		return configErrorf(t.Ident(), "prikey %d outside of range", t.PriKey)
	}
	if len(t.variants) == 0 {
		return configErrorf(t.Ident(), "table has no variants")
	}
	for _, c := range t.Columns {
		if err := c.Validate(); err != nil {
			return wrapConfigError(t.Ident(), err, "column")
		}
	}
	for name, m := range t.Mappings {
		if err := validIdent(name); err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return wrapConfigError(t.Ident(), err, "mapping")
		}
	}
	for _, k := range t.KnownIssues {
		if err := k.Validate(); err != nil {
			return wrapConfigError(t.Ident(), err, "known issue")
		}
		for _, col := range k.Cols {
			if t.ColumnIndex(col) < 0 {
				return configErrorf(t.Ident(), "known issue names unknown column %q", col)
			}
		}
	}
	return nil
}
