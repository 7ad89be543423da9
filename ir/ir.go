package ir

import (
	"sort"
)

// Base audit columns carried by every audited model, in the order they lead a table.
const (
	ColumnID          = "id"
	ColumnActive      = "active"
	ColumnInternalID  = "internal_id"
	ColumnCreateDate  = "create_date"
	ColumnLastUpdated = "last_updated"
)

// PrimaryIndexName is the name MySQL reports for the primary key index.
const PrimaryIndexName = "PRIMARY"

// Snapshot represents the complete structure of one database at a point in time.
// Snapshots are built once (by the inspector or the desired builder) and treated as read-only afterwards.
type Snapshot struct {
	DatabaseName string               `json:"database_name"`
	Tables       map[string]*Table    `json:"tables"`    // table_name -> Table
	Functions    map[string]*Function `json:"functions"` // routine_name -> Function
}

// Table represents a database table
type Table struct {
	Name        string                 `json:"name"`
	IsView      bool                   `json:"is_view,omitempty"`
	Columns     map[string]*Column     `json:"columns"`      // column_name -> Column
	Indexes     map[string]*Index      `json:"indexes"`      // index_name -> Index
	ForeignKeys map[string]*ForeignKey `json:"foreign_keys"` // constraint_name -> ForeignKey
	Triggers    map[string]*Trigger    `json:"triggers"`     // trigger_name -> Trigger
}

// Column represents a table column
type Column struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"` // normalized, e.g. "varchar(100)"
	IsNullable      bool    `json:"is_nullable"`
	DefaultValue    *string `json:"default_value,omitempty"` // raw SQL fragment
	IsPrimaryKey    bool    `json:"is_primary_key,omitempty"`
	IsAutoIncrement bool    `json:"is_auto_increment,omitempty"`
	IsUnique        bool    `json:"is_unique,omitempty"`
	Position        int     `json:"position"` // 1-based ordinal
}

// IndexKind classifies an index
type IndexKind string

const (
	IndexKindNone     IndexKind = ""
	IndexKindUnique   IndexKind = "UNIQUE"
	IndexKindFulltext IndexKind = "FULLTEXT"
	IndexKindSpatial  IndexKind = "SPATIAL"
)

// Index represents a table index
type Index struct {
	Name    string         `json:"name"`
	Kind    IndexKind      `json:"kind,omitempty"`
	Columns []*IndexColumn `json:"columns"`
}

// Collation values reported for index columns. An empty collation means none (e.g. FULLTEXT).
const (
	CollationAsc  = "A"
	CollationDesc = "D"
)

// IndexColumn is one column of an index
type IndexColumn struct {
	Name       string `json:"name"`
	SeqInIndex int    `json:"seq_in_index"`
	Collation  string `json:"collation,omitempty"`
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name              string   `json:"name"`
	Table             string   `json:"table"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns"`
	UpdateRule        string   `json:"update_rule"`
	DeleteRule        string   `json:"delete_rule"`
}

// Trigger timing and events
const (
	TimingBefore = "BEFORE"
	TimingAfter  = "AFTER"

	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Trigger represents a row trigger
type Trigger struct {
	Name      string `json:"name"`
	Table     string `json:"table"`
	Timing    string `json:"timing"`
	Event     string `json:"event"`
	Statement string `json:"statement"` // body, e.g. "BEGIN ... END"
}

// Function represents a stored function
type Function struct {
	Name          string `json:"name"`
	ReturnType    string `json:"return_type"`
	Deterministic bool   `json:"deterministic"`
	SQLDataAccess string `json:"sql_data_access"` // CONTAINS SQL, NO SQL, READS SQL DATA, MODIFIES SQL DATA
	SecurityType  string `json:"security_type"`   // DEFINER, INVOKER
	Definition    string `json:"definition"`
}

// NewSnapshot creates an empty snapshot for a database
func NewSnapshot(databaseName string) *Snapshot {
	return &Snapshot{
		DatabaseName: databaseName,
		Tables:       make(map[string]*Table),
		Functions:    make(map[string]*Function),
	}
}

// NewTable creates an empty table
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		Columns:     make(map[string]*Column),
		Indexes:     make(map[string]*Index),
		ForeignKeys: make(map[string]*ForeignKey),
		Triggers:    make(map[string]*Trigger),
	}
}

// TableNames returns the table names in ordinal (byte-wise) order
func (s *Snapshot) TableNames() []string {
	return sortedKeys(s.Tables)
}

// FunctionNames returns the function names in ordinal order
func (s *Snapshot) FunctionNames() []string {
	return sortedKeys(s.Functions)
}

// SortedColumns returns the columns ordered by position, then name
func (t *Table) SortedColumns() []*Column {
	columns := make([]*Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		columns = append(columns, c)
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].Name < columns[j].Name
	})
	return columns
}

// PrimaryKeyColumns returns the primary key column names in ordinal order
func (t *Table) PrimaryKeyColumns() []string {
	var names []string
	for _, c := range t.SortedColumns() {
		if c.IsPrimaryKey {
			names = append(names, c.Name)
		}
	}
	return names
}

// IndexNames returns the index names in ordinal order
func (t *Table) IndexNames() []string {
	return sortedKeys(t.Indexes)
}

// UniqueColumnKeys returns the single-column unique keys implied by unique columns,
// in column order. A column already covered by a single-column unique index, or whose
// name an index already uses, implies no key.
func (t *Table) UniqueColumnKeys() []*Index {
	covered := make(map[string]bool)
	for name, idx := range t.Indexes {
		if name != PrimaryIndexName && idx.Kind == IndexKindUnique && len(idx.Columns) == 1 {
			covered[idx.Columns[0].Name] = true
		}
	}

	var keys []*Index
	for _, c := range t.SortedColumns() {
		if !c.IsUnique || c.IsPrimaryKey || covered[c.Name] {
			continue
		}
		if _, taken := t.Indexes[c.Name]; taken {
			continue
		}
		keys = append(keys, &Index{
			Name:    c.Name,
			Kind:    IndexKindUnique,
			Columns: []*IndexColumn{{Name: c.Name, SeqInIndex: 1, Collation: CollationAsc}},
		})
	}
	return keys
}

// ForeignKeyNames returns the foreign key constraint names in ordinal order
func (t *Table) ForeignKeyNames() []string {
	return sortedKeys(t.ForeignKeys)
}

// TriggerNames returns the trigger names in ordinal order
func (t *Table) TriggerNames() []string {
	return sortedKeys(t.Triggers)
}

// Clone returns a deep copy of the table so callers can trim it without touching the snapshot
func (t *Table) Clone() *Table {
	c := NewTable(t.Name)
	c.IsView = t.IsView
	for name, col := range t.Columns {
		cc := *col
		if col.DefaultValue != nil {
			v := *col.DefaultValue
			cc.DefaultValue = &v
		}
		c.Columns[name] = &cc
	}
	for name, idx := range t.Indexes {
		ci := &Index{Name: idx.Name, Kind: idx.Kind}
		for _, ic := range idx.Columns {
			icc := *ic
			ci.Columns = append(ci.Columns, &icc)
		}
		c.Indexes[name] = ci
	}
	for name, fk := range t.ForeignKeys {
		c.ForeignKeys[name] = fk.Clone()
	}
	for name, tr := range t.Triggers {
		tc := *tr
		c.Triggers[name] = &tc
	}
	return c
}

// Clone returns a deep copy of the foreign key
func (fk *ForeignKey) Clone() *ForeignKey {
	c := *fk
	c.Columns = append([]string(nil), fk.Columns...)
	c.ReferencedColumns = append([]string(nil), fk.ReferencedColumns...)
	return &c
}

// ColumnNames returns the index column names ordered by SeqInIndex
func (idx *Index) ColumnNames() []string {
	names := make([]string, 0, len(idx.Columns))
	for _, c := range idx.SortedColumns() {
		names = append(names, c.Name)
	}
	return names
}

// SortedColumns returns the index columns ordered by SeqInIndex
func (idx *Index) SortedColumns() []*IndexColumn {
	columns := append([]*IndexColumn(nil), idx.Columns...)
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].SeqInIndex < columns[j].SeqInIndex
	})
	return columns
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
