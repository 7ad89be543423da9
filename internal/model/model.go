// Package model defines the declarative descriptors tables are built from.
//
// Descriptors are plain data: one Model per table, ordered Column descriptors,
// index memberships and foreign-key descriptors. They are normally decoded from
// YAML documents (see LoadFile) but can be constructed directly in Go.
package model

// SemanticType is the portable type of a property, mapped to a SQL type by the builder
type SemanticType string

const (
	TypeString     SemanticType = "string"
	TypeText       SemanticType = "text"
	TypeInt        SemanticType = "int"
	TypeLong       SemanticType = "long"
	TypeShort      SemanticType = "short"
	TypeDecimal    SemanticType = "decimal"
	TypeFloat      SemanticType = "float"
	TypeDouble     SemanticType = "double"
	TypeBool       SemanticType = "bool"
	TypeDateTime   SemanticType = "datetime"
	TypeDate       SemanticType = "date"
	TypeTime       SemanticType = "time"
	TypeBinary     SemanticType = "binary"
	TypeIdentifier SemanticType = "identifier"
	TypeJSON       SemanticType = "json"
)

// Model describes one table
type Model struct {
	Type        string       `yaml:"type" json:"type"`
	Table       string       `yaml:"table" json:"table"`
	Database    string       `yaml:"database,omitempty" json:"database,omitempty"`
	Audit       bool         `yaml:"audit,omitempty" json:"audit,omitempty"`
	Columns     []Column     `yaml:"columns,omitempty" json:"columns,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
}

// Column describes one property and the column it maps to
type Column struct {
	Property      string        `yaml:"property" json:"property"`
	Name          string        `yaml:"name,omitempty" json:"name,omitempty"`         // explicit column name
	Type          SemanticType  `yaml:"type,omitempty" json:"type,omitempty"`         // semantic type
	SQLType       string        `yaml:"sql_type,omitempty" json:"sql_type,omitempty"` // verbatim SQL type, wins over Type
	Size          int           `yaml:"size,omitempty" json:"size,omitempty"`
	Precision     int           `yaml:"precision,omitempty" json:"precision,omitempty"`
	Scale         int           `yaml:"scale,omitempty" json:"scale,omitempty"`
	Nullable      bool          `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Default       *string       `yaml:"default,omitempty" json:"default,omitempty"` // SQL fragment, rendered verbatim
	PrimaryKey    bool          `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	AutoIncrement bool          `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty"`
	Unique        bool          `yaml:"unique,omitempty" json:"unique,omitempty"`
	Indexes       []IndexMember `yaml:"indexes,omitempty" json:"indexes,omitempty"`
}

// IndexMember places a column into a named index group
type IndexMember struct {
	Key        string `yaml:"key" json:"key"`
	Kind       string `yaml:"kind,omitempty" json:"kind,omitempty"` // "", unique, fulltext, spatial
	Descending bool   `yaml:"descending,omitempty" json:"descending,omitempty"`
}

// ForeignKey describes a reference from this model's properties to another model's properties
type ForeignKey struct {
	Name                 string   `yaml:"name,omitempty" json:"name,omitempty"`
	Properties           []string `yaml:"properties" json:"properties"`
	References           string   `yaml:"references" json:"references"` // referenced model type
	ReferencedProperties []string `yaml:"referenced_properties" json:"referenced_properties"`
	OnDelete             string   `yaml:"on_delete,omitempty" json:"on_delete,omitempty"`
	OnUpdate             string   `yaml:"on_update,omitempty" json:"on_update,omitempty"`
}

// Column returns the descriptor of a property
func (m *Model) Column(property string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Property == property {
			return c, true
		}
	}
	return Column{}, false
}
