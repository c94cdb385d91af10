package metadata

import (
	"errors"
	"fmt"
	"slices"
)

// Source is anything a Collection can be built from: *Metadata, *Table,
// *Collection or TableName.
type Source interface {
	collectionSource()
}

// TableName selects a table by name across the metadatas of a Collection.
type TableName string

func (*Metadata) collectionSource()   {}
func (*Table) collectionSource()      {}
func (*Collection) collectionSource() {}
func (TableName) collectionSource()   {}

// Collection is an ordered, de-duplicated view over several loggers and a
// selection of their tables.
type Collection struct {
	mds    []*Metadata
	tables []*Table
}

// NewCollection builds a collection. Metadata arguments select loggers;
// table, table name and collection arguments select tables. When no tables
// are selected, all tables of the given loggers are used, and when no
// loggers are given, they are taken from the selected tables.
func NewCollection(sources ...Source) (*Collection, error) {
	var mds []*Metadata
	var picks []Source
	for _, s := range sources {
		switch v := s.(type) {
		case *Metadata:
			if !slices.Contains(mds, v) {
				mds = append(mds, v)
			}
		case *Collection:
			for _, t := range v.tables {
				picks = append(picks, t)
			}
		case *Table, TableName:
			picks = append(picks, v)
		case nil:
			return nil, errors.New("nil collection source")
		default:
			return nil, fmt.Errorf("unsupported collection source %T", s)
		}
	}

	if len(picks) == 0 {
		if len(mds) == 0 {
			return nil, errors.New("no metadatas or tables given")
		}
		for _, md := range mds {
			for _, t := range md.Tables() {
				picks = append(picks, t)
			}
		}
		if len(picks) == 0 {
			return nil, errors.New("no tables")
		}
	}

	if len(mds) == 0 {
		for _, p := range picks {
			if t, ok := p.(*Table); ok && t.parent != nil && !slices.Contains(mds, t.parent) {
				mds = append(mds, t.parent)
			}
		}
		if len(mds) == 0 {
			return nil, errors.New("no metadatas could be determined from tables")
		}
	}

	names := map[string]bool{}
	for _, md := range mds {
		if names[md.LoggerName] {
			return nil, fmt.Errorf("duplicate logger name %q", md.LoggerName)
		}
		names[md.LoggerName] = true
	}

	var tables []*Table
	for _, p := range picks {
		var t *Table
		switch v := p.(type) {
		case *Table:
			if !slices.Contains(mds, v.parent) {
				return nil, fmt.Errorf("table is not in metadatas: %q", v.Name)
			}
			t = v
		case TableName:
			var found []*Table
			for _, md := range mds {
				if ft, ok := md.Table(string(v)); ok {
					found = append(found, ft)
				}
			}
			switch len(found) {
			case 0:
				return nil, fmt.Errorf("table name %q not found in metadatas", string(v))
			case 1:
				t = found[0]
			default:
				return nil, fmt.Errorf("table name %q appears more than once in metadatas", string(v))
			}
		}
		if !slices.Contains(tables, t) {
			tables = append(tables, t)
		}
	}
	return &Collection{mds: mds, tables: tables}, nil
}

// CollectLoggers builds a collection of every table of mds. Logger names
// must be unique.
func CollectLoggers(mds []*Metadata) (*Collection, error) {
	sources := make([]Source, len(mds))
	for i, md := range mds {
		sources[i] = md
	}
	return NewCollection(sources...)
}

// Metadatas returns the loggers in first-seen order.
func (c *Collection) Metadatas() []*Metadata { return c.mds }

// Tables returns the selected tables in first-seen order.
func (c *Collection) Tables() []*Table { return c.tables }

// Len returns the number of loggers.
func (c *Collection) Len() int { return len(c.mds) }

// ContainsMetadata reports whether md is part of the collection.
func (c *Collection) ContainsMetadata(md *Metadata) bool { return slices.Contains(c.mds, md) }

// ContainsTable reports whether t is one of the selected tables.
func (c *Collection) ContainsTable(t *Table) bool { return slices.Contains(c.tables, t) }

// Equal reports whether both collections hold the same loggers and tables in
// the same order.
func (c *Collection) Equal(o *Collection) bool {
	return slices.Equal(c.mds, o.mds) && slices.Equal(c.tables, o.tables)
}
