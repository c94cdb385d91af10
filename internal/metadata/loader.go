package metadata

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
)

// Loader reads metadata documents. Documents are YAML; JSON documents are
// accepted as well since JSON is a subset of YAML.
type Loader struct {
	units  ShortUnits
	logger *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithShortUnits replaces the unit abbreviation catalog.
func WithShortUnits(u ShortUnits) LoaderOption {
	return func(l *Loader) { l.units = u }
}

// WithLogger sets the logger that validation warnings are written to.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader with the default unit catalog.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		units:  DefaultShortUnits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Units returns the unit catalog used by this loader.
func (l *Loader) Units() ShortUnits { return l.units }

// ---- Document Schema ----

type document struct {
	Comment      string              `yaml:"$comment"`
	LoggerName   string              `yaml:"logger_name"`
	EnvMatch     *EnvMatch           `yaml:"toa5_env_match"`
	TZ           *string             `yaml:"tz"`
	MinDatetime  *string             `yaml:"min_datetime"`
	Variants     *[]string           `yaml:"variants"`
	Sensors      *map[string]string  `yaml:"sensors"`
	KnownGaps    []timeRangeDoc      `yaml:"known_gaps"`
	SkipRecords  []timeRangeDoc      `yaml:"skip_records"`
	IgnoreTables *[]string           `yaml:"ignore_tables"`
	Tables       map[string]tableDoc `yaml:"tables"`
}

type tableDoc struct {
	Comment     string                `yaml:"$comment"`
	PriKey      *int                  `yaml:"prikey"`
	Interval    *string               `yaml:"interval"`
	Columns     []columnDoc           `yaml:"columns"`
	Mappings    map[string]mappingDoc `yaml:"mappings"`
	KnownIssues []knownIssueDoc       `yaml:"known_issues"`
}

type columnDoc struct {
	Name    string `yaml:"name"`
	Unit    string `yaml:"unit"`
	Prc     string `yaml:"prc"`
	Type    string `yaml:"type"`
	LODT    string `yaml:"lodt"`
	Var     string `yaml:"var"`
	Desc    string `yaml:"desc"`
	PlotGrp string `yaml:"plotgrp"`
	Sens    string `yaml:"sens"`
}

type baseColumnDoc struct {
	Name string `yaml:"name"`
	Unit string `yaml:"unit"`
	Prc  string `yaml:"prc"`
}

type mappingDoc struct {
	Type string `yaml:"type"`
	Map  []struct {
		Old baseColumnDoc `yaml:"old"`
		New baseColumnDoc `yaml:"new"`
	} `yaml:"map"`
}

type timeRangeDoc struct {
	Time string  `yaml:"time"`
	End  *string `yaml:"end"`
	Why  string  `yaml:"why"`
}

type knownIssueDoc struct {
	Type string       `yaml:"type"`
	Cols []string     `yaml:"cols"`
	When timeRangeDoc `yaml:"when"`
}

// tableOrder recovers the order of the tables mapping, which a Go map loses.
type tableOrder struct {
	Tables yaml.Node `yaml:"tables"`
}

// ---- Loading ----

// LoadFile loads and validates the metadata document at path.
func (l *Loader) LoadFile(path string) (*Metadata, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()
	return l.Load(f, path)
}

// LoadDir loads every *.json, *.yaml and *.yml file in dir, in name order.
func (l *Loader) LoadDir(dir string) ([]*Metadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read metadata dir: %w", err)
	}
	var mds []*Metadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		md, _, err := l.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		mds = append(mds, md)
	}
	return mds, nil
}

// Load reads one metadata document from r and validates it. name is only
// used in messages. Warnings are logged and also returned.
func (l *Loader) Load(r io.Reader, name string) (*Metadata, []Warning, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read metadata %s: %w", name, err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, nil, wrapConfigError(name, err, "failed to validate")
	}
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, wrapConfigError(name, err, "failed to validate")
	}
	var order tableOrder
	if err := yaml.Unmarshal(raw, &order); err != nil {
		return nil, nil, wrapConfigError(name, err, "failed to validate")
	}

	md, err := l.build(&doc, tableNames(&order.Tables))
	if err != nil {
		return nil, nil, err
	}
	warnings, err := md.Validate(l.units)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		l.logger.Warn("metadata warning",
			slog.String("file", name),
			slog.String("where", w.Where),
			slog.String("warning", w.Msg),
		)
	}
	return md, warnings, nil
}

func tableNames(n *yaml.Node) []string {
	var names []string
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		names = append(names, n.Content[i].Value)
	}
	return names
}

func hasDuplicates(s []string) bool {
	seen := make(map[string]bool, len(s))
	for _, v := range s {
		if seen[v] {
			return true
		}
		seen[v] = true
	}
	return false
}

func (l *Loader) build(doc *document, order []string) (*Metadata, error) {
	md := &Metadata{
		LoggerName: doc.LoggerName,
		LoggerType: LoggerTypeTOA5,
		EnvMatch:   doc.EnvMatch,
	}
	where := doc.LoggerName

	if doc.Variants != nil {
		if hasDuplicates(*doc.Variants) {
			return nil, configErrorf(where, "duplicate variant names")
		}
		md.Variants = *doc.Variants
	}
	if doc.Sensors != nil {
		md.Sensors = *doc.Sensors
		descs := make([]string, 0, len(md.Sensors))
		for _, d := range md.Sensors {
			descs = append(descs, d)
		}
		if hasDuplicates(descs) {
			return nil, configErrorf(where, "duplicate sensor descriptions")
		}
	}

	if doc.TZ != nil {
		loc, err := ParseTZ(*doc.TZ)
		if err != nil {
			return nil, wrapConfigError(where, err, "tz")
		}
		md.TZ = loc
	}
	if doc.MinDatetime != nil {
		t, err := parseDocTime(*doc.MinDatetime, md.TZ)
		if err != nil {
			return nil, wrapConfigError(where, err, "min_datetime")
		}
		md.MinDatetime = t
	}

	var err error
	if md.KnownGaps, err = buildRanges(doc.KnownGaps, md.TZ); err != nil {
		return nil, wrapConfigError(where, err, "known_gaps")
	}
	if md.SkipRecords, err = buildRanges(doc.SkipRecords, md.TZ); err != nil {
		return nil, wrapConfigError(where, err, "skip_records")
	}
	if doc.IgnoreTables != nil {
		md.IgnoreTables = *doc.IgnoreTables
	}

	for _, name := range order {
		td := doc.Tables[name]
		t, err := buildTable(name, &td, md)
		if err != nil {
			return nil, err
		}
		if err := md.AddTable(t); err != nil {
			return nil, err
		}
	}
	return md, nil
}

func buildTable(name string, td *tableDoc, md *Metadata) (*Table, error) {
	where := md.LoggerName + "/" + name
	columns := make([]Column, len(td.Columns))
	for i, cd := range td.Columns {
		col := Column{
			BaseColumn: BaseColumn{Name: cd.Name, Unit: cd.Unit, Prc: cd.Prc},
			Var:        cd.Var,
			Desc:       cd.Desc,
			PlotGroup:  cd.PlotGrp,
			Sensor:     cd.Sens,
		}
		if cd.Type != "" {
			typ, err := datatypes.Parse(cd.Type)
			if err != nil {
				return nil, wrapConfigError(where, err, "column %s", cd.Name)
			}
			col.Type = typ
		}
		if cd.LODT != "" {
			lodt, err := ParseLoggerOrigDataType(cd.LODT)
			if err != nil {
				return nil, wrapConfigError(where, err, "column %s", cd.Name)
			}
			col.LODT = lodt
		}
		if col.Sensor != "" {
			if _, ok := md.Sensors[col.Sensor]; !ok {
				return nil, configErrorf(where, "column %s references unknown sensor %s", col.Name, col.Sensor)
			}
		}
		if col.Var != "" && !slices.Contains(md.Variants, col.Var) {
			return nil, configErrorf(where, "invalid variant %q on column %s", col.Var, col.Name)
		}
		columns[i] = col
	}

	prikey := 0
	switch {
	case td.PriKey != nil:
		prikey = *td.PriKey
	case columns[0].Header() == (ColumnHeader{Name: "TIMESTAMP", Unit: "TS"}):
		prikey = 0
	default:
		return nil, configErrorf(where, "table doesn't define a prikey and we couldn't guess one")
	}

	interval := IntervalUndef
	if td.Interval != nil {
		var err error
		if interval, err = ParseInterval(*td.Interval); err != nil {
			return nil, wrapConfigError(where, err, "interval")
		}
	}

	t := NewTable(name, prikey, interval, columns)
	if err := buildVariants(t, md.Variants); err != nil {
		return nil, err
	}

	for mn, m := range td.Mappings {
		mp := &Mapping{Name: mn, Type: MappingView}
		for _, e := range m.Map {
			mp.Entries = append(mp.Entries, MapEntry{
				Old: BaseColumn(e.Old),
				New: BaseColumn(e.New),
			})
		}
		t.Mappings[mn] = mp
	}

	for _, kd := range td.KnownIssues {
		typ, err := ParseKnownIssueType(kd.Type)
		if err != nil {
			return nil, wrapConfigError(where, err, "known_issues")
		}
		when, err := buildRange(kd.When, md.TZ)
		if err != nil {
			return nil, wrapConfigError(where, err, "known_issues")
		}
		t.KnownIssues = append(t.KnownIssues, KnownIssue{Type: typ, Cols: kd.Cols, When: when})
	}
	return t, nil
}

// buildVariants registers the variant map of t. Untagged columns belong to
// every variant. The first declared variant is always possible; the others
// only when a column of the table is tagged with them. When any column is
// tagged, a variant consisting of all columns is added last so that
// previously exported files can be read back.
func buildVariants(t *Table, declared []string) error {
	var used []string
	for _, c := range t.Columns {
		if c.Var != "" && !slices.Contains(used, c.Var) {
			used = append(used, c.Var)
		}
	}

	collect := func(variant string) (Header, []int) {
		var h Header
		var idx []int
		for i, c := range t.Columns {
			if c.Var == "" || c.Var == variant {
				h = append(h, c.Header())
				idx = append(idx, i)
			}
		}
		return h, idx
	}

	if len(used) == 0 {
		h, idx := collect("")
		return t.AddVariant(h, idx)
	}

	for i, v := range declared {
		if i != 0 && !slices.Contains(used, v) {
			continue
		}
		h, idx := collect(v)
		if err := t.AddVariant(h, idx); err != nil {
			return err
		}
	}
	all := make([]int, len(t.Columns))
	for i := range all {
		all[i] = i
	}
	return t.AddVariant(t.Headers(), all)
}

func buildRanges(docs []timeRangeDoc, tz *time.Location) ([]TimeRange, error) {
	var out []TimeRange
	for _, d := range docs {
		r, err := buildRange(d, tz)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func buildRange(d timeRangeDoc, tz *time.Location) (TimeRange, error) {
	r := TimeRange{Why: d.Why}
	var err error
	if d.Time == "open" {
		r.Start = MinTime
	} else if r.Start, err = parseDocTime(d.Time, tz); err != nil {
		return TimeRange{}, err
	}
	if d.End != nil {
		if *d.End == "open" {
			r.End = MaxTime
		} else if r.End, err = parseDocTime(*d.End, tz); err != nil {
			return TimeRange{}, err
		}
	}
	return r, nil
}

var tzOffsetRegex = regexp.MustCompile(`^([+-])(\d\d):(\d\d)$`)

// ParseTZ accepts a fixed "+HH:MM"/"-HH:MM" offset or an IANA zone name.
func ParseTZ(s string) (*time.Location, error) {
	if m := tzOffsetRegex.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[2])
		mi, _ := strconv.Atoi(m[3])
		secs := h*3600 + mi*60
		if m[1] == "-" {
			secs = -secs
		}
		if secs == 0 {
			return time.UTC, nil
		}
		return time.FixedZone("UTC"+s, secs), nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", s, err)
	}
	return loc, nil
}

var (
	zonedLayouts = []string{"2006-01-02 15:04:05Z07:00", "2006-01-02T15:04:05Z07:00"}
	naiveLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}
)

// parseDocTime parses a document timestamp. Timestamps without an offset
// are taken in tz, and are an error when tz is nil.
func parseDocTime(s string, tz *time.Location) (time.Time, error) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err != nil {
			continue
		}
		if tz == nil {
			return time.Time{}, fmt.Errorf("timestamp %q has no offset and no TZ is set", s)
		}
		return time.ParseInLocation(layout, s, tz)
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
