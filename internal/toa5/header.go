// Package toa5 reads Campbell Scientific TOA5 data files: an environment
// line, three header rows and the data rows. The header is resolved against
// a set of logger metadata to find the table and physical layout of a file.
package toa5

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

// Magic is the first field of every TOA5 environment line.
const Magic = "TOA5"

// ErrHeader is wrapped by every HeaderError.
var ErrHeader = errors.New("toa5 header error")

// HeaderError reports a malformed TOA5 header.
type HeaderError struct {
	Msg string
	Err error
}

func (e *HeaderError) Error() string {
	if e.Err != nil {
		return "toa5: " + e.Msg + ": " + e.Err.Error()
	}
	return "toa5: " + e.Msg
}

func (e *HeaderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrHeader, e.Err}
	}
	return []error{ErrHeader}
}

// EnvironmentLine is the first line of a TOA5 file, without the magic.
type EnvironmentLine struct {
	StationName  string `json:"station_name"`
	LoggerModel  string `json:"logger_model"`
	LoggerSerial string `json:"logger_serial"`
	LoggerOS     string `json:"logger_os"`
	ProgramName  string `json:"program_name"`
	ProgramSig   string `json:"program_sig"`
	TableName    string `json:"table_name"`
}

// Map returns the fields keyed by their metadata names.
func (e EnvironmentLine) Map() map[string]string {
	return map[string]string{
		"station_name":  e.StationName,
		"logger_model":  e.LoggerModel,
		"logger_serial": e.LoggerSerial,
		"logger_os":     e.LoggerOS,
		"program_name":  e.ProgramName,
		"program_sig":   e.ProgramSig,
		"table_name":    e.TableName,
	}
}

// Matches reports whether e agrees with every field m specifies.
func (e EnvironmentLine) Matches(m *metadata.EnvMatch) bool {
	if m == nil {
		return false
	}
	have := [6]string{e.StationName, e.LoggerModel, e.LoggerSerial, e.LoggerOS, e.ProgramName, e.ProgramSig}
	for i, want := range m.Fields() {
		if want != nil && *want != have[i] {
			return false
		}
	}
	return true
}

func (e EnvironmentLine) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s/%s", e.StationName, e.LoggerModel, e.LoggerSerial,
		e.LoggerOS, e.ProgramName, e.ProgramSig, e.TableName)
}

// ReadHeader reads the environment line and the name, unit and process
// rows. r must allow a variable number of fields per record.
func ReadHeader(r *csv.Reader) (EnvironmentLine, metadata.Header, error) {
	env, err := r.Read()
	switch {
	case errors.Is(err, io.EOF):
		return EnvironmentLine{}, nil, &HeaderError{Msg: "failed to read environment line"}
	case err != nil:
		return EnvironmentLine{}, nil, &HeaderError{Msg: "CSV parse error on environment line", Err: err}
	}
	if len(env) < 1 || env[0] != Magic {
		return EnvironmentLine{}, nil, &HeaderError{Msg: "not a TOA5 file"}
	}
	if len(env) != 8 {
		return EnvironmentLine{}, nil, &HeaderError{Msg: fmt.Sprintf("environment line has %d fields, want 8", len(env))}
	}
	line := EnvironmentLine{
		StationName:  env[1],
		LoggerModel:  env[2],
		LoggerSerial: env[3],
		LoggerOS:     env[4],
		ProgramName:  env[5],
		ProgramSig:   env[6],
		TableName:    env[7],
	}

	var rows [3][]string
	for i := range rows {
		rows[i], err = r.Read()
		switch {
		case errors.Is(err, io.EOF):
			return EnvironmentLine{}, nil, &HeaderError{Msg: "unexpected end of headers"}
		case err != nil:
			return EnvironmentLine{}, nil, &HeaderError{Msg: "CSV parse error on headers", Err: err}
		}
	}
	names, units, procs := rows[0], rows[1], rows[2]
	if len(names) != len(units) || len(names) != len(procs) {
		return EnvironmentLine{}, nil, &HeaderError{Msg: "header column count mismatch"}
	}

	seen := make(map[string]bool, len(names))
	header := make(metadata.Header, len(names))
	for i, name := range names {
		if seen[name] {
			return EnvironmentLine{}, nil, &HeaderError{Msg: fmt.Sprintf("duplicate column name %q", name)}
		}
		seen[name] = true
		header[i] = metadata.ColumnHeader{Name: name, Unit: units[i], Prc: procs[i]}
	}
	return line, header, nil
}
