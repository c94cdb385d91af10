package toa5

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

// ErrResolve is wrapped by the recoverable resolution failures. A batch
// importer skips the file and carries on.
var ErrResolve = errors.New("header resolution failed")

// ErrAmbiguousMetadata means an environment line matched more than one
// logger. It is a configuration problem and does not wrap ErrResolve.
var ErrAmbiguousMetadata = errors.New("environment line matches more than one logger")

// NoMetadataMatchError means no logger's environment match fits the file.
type NoMetadataMatchError struct {
	Env EnvironmentLine
}

func (e *NoMetadataMatchError) Error() string {
	return "toa5: no metadata matches environment line " + e.Env.String()
}

func (e *NoMetadataMatchError) Unwrap() error { return ErrResolve }

// NoTableMatchError means the logger was identified but has no table of the
// file's name.
type NoTableMatchError struct {
	Env       EnvironmentLine
	Metadata  *metadata.Metadata
	TableName string
}

func (e *NoTableMatchError) Error() string {
	return fmt.Sprintf("toa5: logger %s has no table %q", e.Metadata.LoggerName, e.TableName)
}

func (e *NoTableMatchError) Unwrap() error { return ErrResolve }

// Ignored reports whether the logger lists the table as deliberately
// unconfigured.
func (e *NoTableMatchError) Ignored() bool {
	return e.Metadata.IsIgnoredTable(e.TableName)
}

// NoVariantMatchError means the file's column layout is not a registered
// variant of its table.
type NoVariantMatchError struct {
	Table  *metadata.Table
	Header metadata.Header
}

func (e *NoVariantMatchError) Error() string {
	names := make([]string, len(e.Header))
	for i, h := range e.Header {
		names[i] = h.String()
	}
	return fmt.Sprintf("toa5: header doesn't match any of the %d variants of %s: [%s]",
		len(e.Table.Variants()), e.Table.Ident(), strings.Join(names, ", "))
}

func (e *NoVariantMatchError) Unwrap() error { return ErrResolve }

// Resolve finds the table a TOA5 file belongs to and the logical column
// index of each of its physical columns. Only loggers of type TOA5 are
// considered.
func Resolve(env EnvironmentLine, header metadata.Header, mds []*metadata.Metadata) (*metadata.Table, []int, error) {
	var found []*metadata.Metadata
	for _, md := range mds {
		if md.LoggerType == metadata.LoggerTypeTOA5 && env.Matches(md.EnvMatch) {
			found = append(found, md)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil, &NoMetadataMatchError{Env: env}
	case 1:
	default:
		names := make([]string, len(found))
		for i, md := range found {
			names[i] = md.LoggerName
		}
		return nil, nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousMetadata, env, strings.Join(names, ", "))
	}

	md := found[0]
	table, ok := md.Table(env.TableName)
	if !ok {
		return nil, nil, &NoTableMatchError{Env: env, Metadata: md, TableName: env.TableName}
	}
	variant, ok := table.LookupVariant(header)
	if !ok {
		return nil, nil, &NoVariantMatchError{Table: table, Header: header}
	}
	if len(variant) != len(header) {
		panic(fmt.Sprintf("toa5: variant of %s has %d indexes for %d columns", table.Ident(), len(variant), len(header)))
	}
	return table, variant, nil
}
