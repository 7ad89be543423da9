// Package desired builds the desired schema snapshot from model descriptors.
//
// Build is a pure function of its inputs: it performs no I/O, and the same
// descriptors always produce the same snapshot.
package desired

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/ir"
)

var (
	ErrMissingField           = errors.New("missing required descriptor field")
	ErrUnknownType            = errors.New("unknown semantic type")
	ErrUnresolvedType         = errors.New("unresolved model type")
	ErrUnresolvedProperty     = errors.New("unresolved property")
	ErrCrossDatabaseReference = errors.New("foreign key references a model in another database")
	ErrConflictingIndexKind   = errors.New("index members disagree on kind")
	ErrDuplicateDefinition    = errors.New("duplicate definition")
)

const (
	lastUpdatedDefault = "CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"
	createDateDefault  = "CURRENT_TIMESTAMP"
)

var auditColumnRank = map[string]int{
	ir.ColumnID:          0,
	ir.ColumnActive:      1,
	ir.ColumnInternalID:  2,
	ir.ColumnCreateDate:  3,
	ir.ColumnLastUpdated: 4,
}

var indexKinds = map[string]ir.IndexKind{
	"":         ir.IndexKindNone,
	"unique":   ir.IndexKindUnique,
	"fulltext": ir.IndexKindFulltext,
	"spatial":  ir.IndexKindSpatial,
}

// Build produces the desired snapshot of one database.
//
// models may span several databases: only models targeting databaseName become
// tables, the rest are used to resolve (and reject) foreign-key references.
func Build(databaseName string, descriptors []model.Model) (*ir.Snapshot, error) {
	models := make([]model.Model, len(descriptors))
	for i, m := range descriptors {
		models[i] = model.WithAudit(m)
	}

	byType := make(map[string]*model.Model, len(models))
	for i := range models {
		m := &models[i]
		if m.Type == "" {
			return nil, fmt.Errorf("model for table %q: %w: type", m.Table, ErrMissingField)
		}
		if _, dup := byType[m.Type]; dup {
			return nil, fmt.Errorf("model %s: %w", m.Type, ErrDuplicateDefinition)
		}
		byType[m.Type] = m
	}

	snapshot := ir.NewSnapshot(databaseName)
	for i := range models {
		m := &models[i]
		if m.Database != databaseName {
			continue
		}
		table, err := buildTable(m, byType)
		if err != nil {
			return nil, err
		}
		if _, dup := snapshot.Tables[table.Name]; dup {
			return nil, fmt.Errorf("model %s: table %s: %w", m.Type, table.Name, ErrDuplicateDefinition)
		}
		snapshot.Tables[table.Name] = table
	}

	for _, table := range snapshot.Tables {
		if len(table.Triggers) > 0 {
			fn := uuidFunction()
			snapshot.Functions[fn.Name] = fn
			break
		}
	}

	return snapshot, nil
}

func buildTable(m *model.Model, byType map[string]*model.Model) (*ir.Table, error) {
	if m.Table == "" {
		return nil, fmt.Errorf("model %s: %w: table", m.Type, ErrMissingField)
	}
	if len(m.Columns) == 0 {
		return nil, fmt.Errorf("model %s: %w: columns", m.Type, ErrMissingField)
	}

	table := ir.NewTable(m.Table)
	indexGroups := make(map[string]*indexGroup)

	for _, c := range m.Columns {
		if c.Property == "" {
			return nil, fmt.Errorf("model %s: %w: column property", m.Type, ErrMissingField)
		}
		column, err := buildColumn(c)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Type, err)
		}
		if _, dup := table.Columns[column.Name]; dup {
			return nil, fmt.Errorf("model %s: column %s: %w", m.Type, column.Name, ErrDuplicateDefinition)
		}
		table.Columns[column.Name] = column

		for _, member := range c.Indexes {
			if err := addIndexMember(indexGroups, column.Name, member); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Type, err)
			}
		}
	}

	assignPositions(table)

	for _, group := range indexGroups {
		table.Indexes[group.index.Name] = group.finish()
	}

	for _, fk := range m.ForeignKeys {
		foreignKey, err := resolveForeignKey(m, fk, byType)
		if err != nil {
			return nil, err
		}
		if _, dup := table.ForeignKeys[foreignKey.Name]; dup {
			return nil, fmt.Errorf("model %s: foreign key %s: %w", m.Type, foreignKey.Name, ErrDuplicateDefinition)
		}
		table.ForeignKeys[foreignKey.Name] = foreignKey
	}

	if _, ok := table.Columns[ir.ColumnInternalID]; ok {
		trigger := internalIDTrigger(table.Name)
		table.Triggers[trigger.Name] = trigger
	}

	return table, nil
}

func buildColumn(c model.Column) (*ir.Column, error) {
	name := c.Name
	if name == "" {
		name = ColumnName(c.Property)
	}
	sqlType, err := SQLType(c)
	if err != nil {
		return nil, err
	}

	column := &ir.Column{
		Name:            name,
		Type:            sqlType,
		IsNullable:      c.Nullable && !c.PrimaryKey,
		IsPrimaryKey:    c.PrimaryKey,
		IsAutoIncrement: c.AutoIncrement,
		IsUnique:        c.Unique && !c.PrimaryKey,
	}
	if c.Default != nil {
		d := ir.NormalizeDefault(*c.Default)
		column.DefaultValue = &d
	}

	switch name {
	case ir.ColumnLastUpdated:
		column.IsNullable = false
		d := lastUpdatedDefault
		column.DefaultValue = &d
	case ir.ColumnCreateDate:
		column.IsNullable = false
		if column.DefaultValue == nil {
			d := createDateDefault
			column.DefaultValue = &d
		}
	}
	return column, nil
}

// assignPositions numbers columns 1..N: audit columns first in their fixed
// order, then the rest by name.
func assignPositions(table *ir.Table) {
	columns := make([]*ir.Column, 0, len(table.Columns))
	for _, c := range table.Columns {
		columns = append(columns, c)
	}
	sort.Slice(columns, func(i, j int) bool {
		ri, iAudit := auditColumnRank[columns[i].Name]
		rj, jAudit := auditColumnRank[columns[j].Name]
		switch {
		case iAudit && jAudit:
			return ri < rj
		case iAudit != jAudit:
			return iAudit
		}
		return columns[i].Name < columns[j].Name
	})
	for i, c := range columns {
		c.Position = i + 1
	}
}

type indexGroup struct {
	index   *ir.Index
	members map[string]bool // column -> descending
}

func addIndexMember(groups map[string]*indexGroup, column string, member model.IndexMember) error {
	if member.Key == "" {
		return fmt.Errorf("column %s: %w: index key", column, ErrMissingField)
	}
	kind, ok := indexKinds[strings.ToLower(member.Kind)]
	if !ok {
		return fmt.Errorf("index %s: %w %q", member.Key, ErrUnknownType, member.Kind)
	}

	group, ok := groups[member.Key]
	if !ok {
		group = &indexGroup{
			index:   &ir.Index{Name: member.Key, Kind: kind},
			members: make(map[string]bool),
		}
		groups[member.Key] = group
	}
	if group.index.Kind != kind {
		return fmt.Errorf("index %s: %w (%q vs %q)", member.Key, ErrConflictingIndexKind, group.index.Kind, kind)
	}
	group.members[column] = member.Descending
	return nil
}

// finish orders the group's columns by name and assigns sequence and collation
func (g *indexGroup) finish() *ir.Index {
	names := make([]string, 0, len(g.members))
	for name := range g.members {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		collation := ir.CollationAsc
		switch {
		case g.index.Kind == ir.IndexKindFulltext:
			collation = ""
		case g.members[name]:
			collation = ir.CollationDesc
		}
		g.index.Columns = append(g.index.Columns, &ir.IndexColumn{
			Name:       name,
			SeqInIndex: i + 1,
			Collation:  collation,
		})
	}
	return g.index
}

func resolveForeignKey(m *model.Model, fk model.ForeignKey, byType map[string]*model.Model) (*ir.ForeignKey, error) {
	if fk.References == "" {
		return nil, fmt.Errorf("model %s: foreign key: %w: references", m.Type, ErrMissingField)
	}
	if len(fk.Properties) == 0 {
		return nil, fmt.Errorf("model %s: foreign key to %s: %w: properties", m.Type, fk.References, ErrMissingField)
	}
	if len(fk.Properties) != len(fk.ReferencedProperties) {
		return nil, fmt.Errorf("model %s: foreign key to %s: %w: %d properties but %d referenced properties",
			m.Type, fk.References, ErrUnresolvedProperty, len(fk.Properties), len(fk.ReferencedProperties))
	}

	referenced, ok := byType[fk.References]
	if !ok {
		return nil, fmt.Errorf("model %s: %w %q", m.Type, ErrUnresolvedType, fk.References)
	}
	if referenced.Database != m.Database {
		return nil, fmt.Errorf("model %s (database %s) -> %s (database %s): %w",
			m.Type, m.Database, referenced.Type, referenced.Database, ErrCrossDatabaseReference)
	}

	columns, err := resolveColumns(m, fk.Properties)
	if err != nil {
		return nil, err
	}
	referencedColumns, err := resolveColumns(referenced, fk.ReferencedProperties)
	if err != nil {
		return nil, err
	}

	name := fk.Name
	if name == "" {
		name = ForeignKeyName(m.Table, columns)
	}

	return &ir.ForeignKey{
		Name:              name,
		Table:             m.Table,
		Columns:           columns,
		ReferencedTable:   referenced.Table,
		ReferencedColumns: referencedColumns,
		UpdateRule:        ir.NormalizeRule(fk.OnUpdate),
		DeleteRule:        ir.NormalizeRule(fk.OnDelete),
	}, nil
}

func resolveColumns(m *model.Model, properties []string) ([]string, error) {
	columns := make([]string, 0, len(properties))
	for _, property := range properties {
		c, ok := m.Column(property)
		if !ok {
			return nil, fmt.Errorf("model %s: %w %q", m.Type, ErrUnresolvedProperty, property)
		}
		name := c.Name
		if name == "" {
			name = ColumnName(c.Property)
		}
		columns = append(columns, name)
	}
	return columns, nil
}
