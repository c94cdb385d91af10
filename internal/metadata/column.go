package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
)

// ColumnHeader is one physical column header exactly as read from a data
// file. Absent fields are empty strings. Prc is the TOA5 "data process"
// (Avg, Max, Smp, ...).
type ColumnHeader struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
	Prc  string `json:"prc"`
}

// CSV returns the canonical display name of the header: the name, then
// "/prc" unless the name already ends with the process, then the
// abbreviated unit in brackets. Units of TIMESTAMP/TS and RECORD/RN columns
// are omitted.
func (h ColumnHeader) CSV(units ShortUnits) string {
	s := h.Name
	if h.Prc != "" && !strings.HasSuffix(h.Name, h.Prc) {
		s += "/" + h.Prc
	}
	if h.Unit == "" {
		return s
	}
	if (h.Name == "TIMESTAMP" && h.Unit == "TS") || (h.Name == "RECORD" && h.Unit == "RN") {
		return s
	}
	if short := units.Short(h.Unit); short != "" {
		s += "[" + short + "]"
	}
	return s
}

func (h ColumnHeader) String() string {
	return fmt.Sprintf("(%q, %q, %q)", h.Name, h.Unit, h.Prc)
}

// Header is the ordered tuple of column headers of one file.
type Header []ColumnHeader

// Key returns a string that is equal for two headers iff the headers are
// equal field for field. It is used as the variant map key.
func (h Header) Key() string {
	var b strings.Builder
	for _, c := range h {
		b.WriteString(strconv.Quote(c.Name))
		b.WriteString(strconv.Quote(c.Unit))
		b.WriteString(strconv.Quote(c.Prc))
	}
	return b.String()
}

// Equal reports whether h and o are identical.
func (h Header) Equal(o Header) bool {
	if len(h) != len(o) {
		return false
	}
	for i := range h {
		if h[i] != o[i] {
			return false
		}
	}
	return true
}

// LoggerOrigDataType is the logger's own storage type for a column.
type LoggerOrigDataType int

const (
	LodtUnset LoggerOrigDataType = iota
	LodtFP2
	LodtIEEE4
	LodtTimestamp
	LodtInteger
)

// ParseLoggerOrigDataType converts the metadata document form
// ("FP2", "IEEE4", "TS", "Int").
func ParseLoggerOrigDataType(s string) (LoggerOrigDataType, error) {
	switch s {
	case "FP2":
		return LodtFP2, nil
	case "IEEE4":
		return LodtIEEE4, nil
	case "TS":
		return LodtTimestamp, nil
	case "Int":
		return LodtInteger, nil
	default:
		return LodtUnset, fmt.Errorf("invalid logger data type %q", s)
	}
}

func (l LoggerOrigDataType) String() string {
	switch l {
	case LodtFP2:
		return "FP2"
	case LodtIEEE4:
		return "IEEE4"
	case LodtTimestamp:
		return "TS"
	case LodtInteger:
		return "Int"
	case LodtUnset:
		return ""
	default:
		return "LoggerOrigDataType(" + strconv.Itoa(int(l)) + ")"
	}
}

// Column names become SQL names with "(N)" turned into "_N", hence the 250.
// Units are printable ASCII without backslash or square brackets.
var (
	colNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z_0-9]{1,250}(?:\(\d{1,3}\))?$`)
	unitRegex    = regexp.MustCompile("^[ !\"#$%&'()*+,\\-./0-9:;<=>?@A-Z^_`a-z{|}~]{0,64}$")
	prcRegex     = regexp.MustCompile(`^[A-Za-z_0-9\- .]{0,32}$`)
	sqlIndexRule = regexp.MustCompile(`\((\d+)\)$`)
)

// BaseColumn is the name/unit/process part of a column definition.
type BaseColumn struct {
	Name string
	Unit string
	Prc  string
}

// Header returns the header this column is expected to have in a file.
func (c BaseColumn) Header() ColumnHeader {
	return ColumnHeader{Name: c.Name, Unit: c.Unit, Prc: c.Prc}
}

// SQLName returns the lower-cased column name with "(N)" replaced by "_N".
func (c BaseColumn) SQLName() string {
	return strings.ToLower(sqlIndexRule.ReplaceAllString(c.Name, "_$1"))
}

// Validate checks the syntax of name, unit and process.
func (c BaseColumn) Validate() error {
	if !colNameRegex.MatchString(c.Name) {
		return configErrorf(c.Name, "invalid column name %q", c.Name)
	}
	if !unitRegex.MatchString(c.Unit) {
		return configErrorf(c.Name, "invalid unit %q", c.Unit)
	}
	if !prcRegex.MatchString(c.Prc) {
		return configErrorf(c.Name, "invalid prc %q", c.Prc)
	}
	return nil
}

// Column is a full column definition. Type is the zero Type when the column
// is untyped.
type Column struct {
	BaseColumn
	Type      datatypes.Type
	LODT      LoggerOrigDataType
	Var       string
	Desc      string
	PlotGroup string
	Sensor    string
}

// HasType reports whether a scalar type is declared for the column.
func (c Column) HasType() bool { return !c.Type.IsZero() }

// Validate checks the column definition.
func (c Column) Validate() error {
	if c.LODT < LodtUnset || c.LODT > LodtInteger {
		return configErrorf(c.Name, "invalid logger data type %d", int(c.LODT))
	}
	return c.BaseColumn.Validate()
}
