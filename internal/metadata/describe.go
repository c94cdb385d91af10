package metadata

import (
	"slices"
	"time"
)

// LoggerInfo is a serializable description of a Metadata.
type LoggerInfo struct {
	Name         string      `json:"name" yaml:"name"`
	Type         string      `json:"type" yaml:"type"`
	TZ           string      `json:"tz" yaml:"tz"`
	MinDatetime  *time.Time  `json:"min_datetime,omitempty" yaml:"min_datetime,omitempty"`
	Variants     []string    `json:"variants,omitempty" yaml:"variants,omitempty"`
	Sensors      int         `json:"sensors" yaml:"sensors"`
	KnownGaps    int         `json:"known_gaps" yaml:"known_gaps"`
	SkipRecords  int         `json:"skip_records" yaml:"skip_records"`
	IgnoreTables []string    `json:"ignore_tables,omitempty" yaml:"ignore_tables,omitempty"`
	Tables       []TableInfo `json:"tables" yaml:"tables"`
}

// TableInfo is a serializable description of a Table.
type TableInfo struct {
	Name        string        `json:"name" yaml:"name"`
	Ident       string        `json:"ident" yaml:"ident"`
	Interval    string        `json:"interval" yaml:"interval"`
	PriKey      string        `json:"prikey" yaml:"prikey"`
	Variants    int           `json:"variants" yaml:"variants"`
	KnownIssues int           `json:"known_issues" yaml:"known_issues"`
	Columns     []ColumnInfo  `json:"columns" yaml:"columns"`
	Mappings    []MappingInfo `json:"mappings" yaml:"mappings"`
}

// ColumnInfo describes one column. Type and PgType are empty for untyped
// columns.
type ColumnInfo struct {
	Name    string `json:"name" yaml:"name"`
	Unit    string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Prc     string `json:"prc,omitempty" yaml:"prc,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	PgType  string `json:"pg_type,omitempty" yaml:"pg_type,omitempty"`
	SQLName string `json:"sql_name" yaml:"sql_name"`
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
}

// MappingInfo describes a mapping as old column name to new column name.
type MappingInfo struct {
	Name    string            `json:"name" yaml:"name"`
	Type    string            `json:"type" yaml:"type"`
	Columns map[string]string `json:"columns" yaml:"columns"`
}

// Info describes m and all of its tables.
func (m *Metadata) Info() LoggerInfo {
	info := LoggerInfo{
		Name:         m.LoggerName,
		Type:         m.LoggerType.String(),
		Variants:     m.Variants,
		Sensors:      len(m.Sensors),
		KnownGaps:    len(m.KnownGaps),
		SkipRecords:  len(m.SkipRecords),
		IgnoreTables: m.IgnoreTables,
		Tables:       make([]TableInfo, 0, len(m.tableOrder)),
	}
	if m.TZ != nil {
		info.TZ = m.TZ.String()
	}
	if !m.MinDatetime.IsZero() {
		t := m.MinDatetime
		info.MinDatetime = &t
	}
	for _, t := range m.tableOrder {
		info.Tables = append(info.Tables, t.Info())
	}
	return info
}

// Info describes t. Mappings are sorted by name.
func (t *Table) Info() TableInfo {
	info := TableInfo{
		Name:        t.Name,
		Ident:       t.Ident(),
		Interval:    t.Interval.String(),
		Variants:    len(t.variants),
		KnownIssues: len(t.KnownIssues),
		Columns:     make([]ColumnInfo, 0, len(t.Columns)),
		Mappings:    make([]MappingInfo, 0, len(t.Mappings)),
	}
	if t.PriKey >= 0 && t.PriKey < len(t.Columns) {
		info.PriKey = t.Columns[t.PriKey].Name
	}

	for _, c := range t.Columns {
		ci := ColumnInfo{
			Name:    c.Name,
			Unit:    c.Unit,
			Prc:     c.Prc,
			SQLName: c.SQLName(),
			Variant: c.Var,
		}
		if c.HasType() {
			ci.Type = c.Type.String()
			ci.PgType = c.Type.PgType()
		}
		info.Columns = append(info.Columns, ci)
	}

	names := make([]string, 0, len(t.Mappings))
	for name := range t.Mappings {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		m := t.Mappings[name]
		mi := MappingInfo{Name: m.Name, Type: m.Type.String(), Columns: make(map[string]string, len(m.Entries))}
		for _, e := range m.Entries {
			mi.Columns[e.Old.Name] = e.New.Name
		}
		info.Mappings = append(info.Mappings, mi)
	}
	return info
}
