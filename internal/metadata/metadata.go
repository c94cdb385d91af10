// Package metadata describes datalogger tables: their columns, physical
// layout variants, view mappings and known data problems. Metadata is
// normally built by a Loader from a declarative document and is read-only
// once validated.
package metadata

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z_0-9]{1,254}$`)

func validIdent(s string) error {
	if !identRegex.MatchString(s) {
		return configErrorf("", "not a valid identifier: %q", s)
	}
	return nil
}

// LoggerType identifies the file format a logger writes.
type LoggerType int

const (
	LoggerTypeInvalid LoggerType = iota
	LoggerTypeTOA5
)

func (t LoggerType) String() string {
	if t == LoggerTypeTOA5 {
		return "TOA5"
	}
	return "invalid"
}

// EnvMatch holds the values a TOA5 environment line must have to belong to a
// logger. Nil fields match anything.
type EnvMatch struct {
	StationName  *string `json:"station_name,omitempty" yaml:"station_name"`
	LoggerModel  *string `json:"logger_model,omitempty" yaml:"logger_model"`
	LoggerSerial *string `json:"logger_serial,omitempty" yaml:"logger_serial"`
	LoggerOS     *string `json:"logger_os,omitempty" yaml:"logger_os"`
	ProgramName  *string `json:"program_name,omitempty" yaml:"program_name"`
	ProgramSig   *string `json:"program_sig,omitempty" yaml:"program_sig"`
}

// Fields returns the pattern in environment line order.
func (e *EnvMatch) Fields() [6]*string {
	return [6]*string{e.StationName, e.LoggerModel, e.LoggerSerial, e.LoggerOS, e.ProgramName, e.ProgramSig}
}

// Validate requires at least one field to be set.
func (e *EnvMatch) Validate() error {
	for _, f := range e.Fields() {
		if f != nil {
			return nil
		}
	}
	return configErrorf("", "all fields of the environment match are empty")
}

// Metadata describes one logger.
type Metadata struct {
	LoggerName   string
	LoggerType   LoggerType
	EnvMatch     *EnvMatch
	TZ           *time.Location
	MinDatetime  time.Time
	Variants     []string
	Sensors      map[string]string
	KnownGaps    []TimeRange
	SkipRecords  []TimeRange
	IgnoreTables []string

	tables     map[string]*Table
	tableOrder []*Table
}

// AddTable attaches t to m. A table can be attached only once.
func (m *Metadata) AddTable(t *Table) error {
	if t.parent != nil {
		return configErrorf(t.Name, "table already belongs to %s", t.parent.LoggerName)
	}
	if _, dup := m.tables[t.Name]; dup {
		return configErrorf(m.LoggerName, "duplicate table %q", t.Name)
	}
	if m.tables == nil {
		m.tables = map[string]*Table{}
	}
	t.parent = m
	m.tables[t.Name] = t
	m.tableOrder = append(m.tableOrder, t)
	return nil
}

// Tables returns the tables in the order they were added.
func (m *Metadata) Tables() []*Table { return m.tableOrder }

// Table returns the table named name.
func (m *Metadata) Table(name string) (*Table, bool) {
	t, ok := m.tables[name]
	return t, ok
}

// IsIgnoredTable reports whether name is listed in IgnoreTables.
func (m *Metadata) IsIgnoredTable(name string) bool {
	return slices.Contains(m.IgnoreTables, name)
}

// Validate checks the whole metadata and returns any non-fatal warnings.
// units is used for the display name uniqueness check.
func (m *Metadata) Validate(units ShortUnits) ([]Warning, error) {
	var warnings []Warning
	warn := func(where, msg string) { warnings = append(warnings, Warning{Where: where, Msg: msg}) }

	if err := validIdent(m.LoggerName); err != nil {
		return nil, err
	}
	switch m.LoggerType {
	case LoggerTypeTOA5:
		if m.EnvMatch == nil {
			return nil, configErrorf(m.LoggerName, "environment match not set")
		}
		if err := m.EnvMatch.Validate(); err != nil {
			return nil, wrapConfigError(m.LoggerName, err, "environment match")
		}
	default:
		return nil, configErrorf(m.LoggerName, "invalid logger type %s", m.LoggerType)
	}

	if m.Variants != nil {
		if len(m.Variants) == 0 {
			return nil, configErrorf(m.LoggerName, "variants is set but empty")
		}
		for _, v := range m.Variants {
			if err := validIdent(v); err != nil {
				return nil, wrapConfigError(m.LoggerName, err, "variant")
			}
		}
	}
	if m.Sensors != nil {
		if len(m.Sensors) == 0 {
			return nil, configErrorf(m.LoggerName, "sensors is set but empty")
		}
		for _, id := range slices.Sorted(maps.Keys(m.Sensors)) {
			if err := validIdent(id); err != nil {
				return nil, wrapConfigError(m.LoggerName, err, "sensor")
			}
			if strings.TrimSpace(m.Sensors[id]) == "" {
				return nil, configErrorf(m.LoggerName, "sensor %q has an empty description", id)
			}
		}
	}

	for _, set := range [][]TimeRange{m.KnownGaps, m.SkipRecords} {
		for _, r := range set {
			if err := r.Validate(); err != nil {
				return nil, wrapConfigError(m.LoggerName, err, "time range")
			}
		}
		if err := ValidateTimeRanges(set); err != nil {
			return nil, wrapConfigError(m.LoggerName, err, "time ranges")
		}
	}

	if m.IgnoreTables != nil {
		if len(m.IgnoreTables) == 0 {
			return nil, configErrorf(m.LoggerName, "ignore_tables is set but empty")
		}
		seen := map[string]bool{}
		for _, name := range m.IgnoreTables {
			if seen[name] {
				return nil, configErrorf(m.LoggerName, "duplicate ignored table %q", name)
			}
			seen[name] = true
			if _, ok := m.tables[name]; ok {
				return nil, configErrorf(m.LoggerName, "table %q is both defined and ignored", name)
			}
		}
	}

	if len(m.tableOrder) == 0 {
		return nil, configErrorf(m.LoggerName, "no tables")
	}
	for key, t := range m.tables {
		if t.parent != m {
			return nil, configErrorf(key, "table doesn't have %s as its parent", m.LoggerName)
		}
		if t.Name != key {
			return nil, configErrorf(m.LoggerName, "table key %q != name %q", key, t.Name)
		}
	}
	for _, t := range m.tableOrder {
		w, err := m.validateTable(t, units)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w...)
	}
	if err := m.validateReferences(); err != nil {
		return nil, err
	}
	if m.TZ == nil {
		warn(m.LoggerName, "Logger doesn't have a TZ set")
	}
	return warnings, nil
}

// validateReferences checks that every sensor and every variant after the
// first is referenced by at least one column.
func (m *Metadata) validateReferences() error {
	sensors := map[string]bool{}
	variants := map[string]bool{}
	for _, t := range m.tableOrder {
		for _, c := range t.Columns {
			if c.Sensor != "" {
				sensors[c.Sensor] = true
			}
			if c.Var != "" {
				variants[c.Var] = true
			}
		}
	}
	var unused []string
	for _, id := range slices.Sorted(maps.Keys(m.Sensors)) {
		if !sensors[id] {
			unused = append(unused, id)
		}
	}
	if len(unused) > 0 {
		return configErrorf(m.LoggerName, "the following sensors were never referenced: %v", unused)
	}
	if len(m.Variants) > 1 {
		for _, v := range m.Variants[1:] {
			if !variants[v] {
				unused = append(unused, v)
			}
		}
	}
	if len(unused) > 0 {
		return configErrorf(m.LoggerName, "the following variants were never referenced: %v", unused)
	}
	return nil
}

func (m *Metadata) validateTable(t *Table, units ShortUnits) ([]Warning, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var warnings []Warning
	ident := t.Ident()

	noTz, withTz := false, false
	for _, c := range t.Columns {
		switch c.Type.Kind() {
		case datatypes.KindTimestampNoTz:
			noTz = true
		case datatypes.KindTimestampWithTz:
			withTz = true
		}
		if c.Var != "" && !slices.Contains(m.Variants, c.Var) {
			return nil, configErrorf(ident, "invalid variant %q on column %s", c.Var, c.Name)
		}
		if c.Sensor != "" {
			if _, ok := m.Sensors[c.Sensor]; !ok {
				return nil, configErrorf(ident, "column %s references unknown sensor %q", c.Name, c.Sensor)
			}
		}
	}
	if noTz && withTz {
		warnings = append(warnings, Warning{Where: ident, Msg: "Table " + t.Name + " has mixed TimestampNoTz/WithTz types"})
	}
	if noTz {
		if m.TZ == nil {
			return nil, configErrorf(ident, "table has TimestampNoTz columns but there is no TZ set")
		}
		if !IsUTC(m.TZ) {
			warnings = append(warnings, Warning{Where: ident,
				Msg: "Table " + t.Name + " has TimestampNoTz columns and non-UTC timezone (conversion to UTC recommended!)"})
		}
	}

	headers := map[ColumnHeader]bool{}
	sqlNames := map[string]bool{}
	csvNames := map[string]bool{}
	for _, c := range t.Columns {
		h := c.Header()
		if headers[h] {
			return nil, configErrorf(ident, "duplicate column %s", h)
		}
		headers[h] = true
		if sqlNames[c.SQLName()] {
			return nil, configErrorf(ident, "duplicate sql column name %q", c.SQLName())
		}
		sqlNames[c.SQLName()] = true
		csv := h.CSV(units)
		if csvNames[csv] {
			return nil, configErrorf(ident, "duplicate csv column name %q", csv)
		}
		csvNames[csv] = true
	}

	for _, name := range slices.Sorted(maps.Keys(t.Mappings)) {
		mp := t.Mappings[name]
		if name != mp.Name {
			return nil, configErrorf(ident, "mapping key %q != name %q", name, mp.Name)
		}
		targets := map[ColumnHeader]bool{}
		for _, e := range mp.Entries {
			if !headers[e.Old.Header()] {
				return nil, configErrorf(ident, "map %s 'old' specifies unknown column %s", name, e.Old.Header())
			}
			if headers[e.New.Header()] {
				return nil, configErrorf(ident, "map %s 'new' specifies existing column %s", name, e.New.Header())
			}
			if targets[e.New.Header()] {
				return nil, configErrorf(ident, "map %s has duplicate target %s", name, e.New.Header())
			}
			targets[e.New.Header()] = true
		}
	}
	return warnings, nil
}

// IsUTC reports whether loc has a zero offset in both winter and summer.
func IsUTC(loc *time.Location) bool {
	for _, month := range []time.Month{time.January, time.July} {
		if _, off := time.Date(2000, month, 1, 0, 0, 0, 0, loc).Zone(); off != 0 {
			return false
		}
	}
	return true
}
