package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/myschema/myschema/ir"
)

// Kind discriminates the operation variants
type Kind string

const (
	KindCreateFunction Kind = "create_function"
	KindCreateTable    Kind = "create_table"
	KindAddColumn      Kind = "add_column"
	KindAlterColumn    Kind = "alter_column"
	KindDropIndex      Kind = "drop_index"
	KindCreateIndex    Kind = "create_index"
	KindDropForeignKey Kind = "drop_foreign_key"
	KindAddForeignKey  Kind = "add_foreign_key"
	KindDropTrigger    Kind = "drop_trigger"
	KindCreateTrigger  Kind = "create_trigger"
)

// Fixed execution ranks. Lower ranks run first.
const (
	RankCreateFunction = 5
	RankCreateTable    = 10
	RankAddColumn      = 20
	RankAlterColumn    = 30
	RankDropIndex      = 40
	RankCreateIndex    = 50
	RankDropForeignKey = 60
	RankAddForeignKey  = 70
	RankDropTrigger    = 80
	RankCreateTrigger  = 90
)

// Operation is one DDL step of a plan. The set of variants is closed:
// only the types in this file implement it.
type Operation interface {
	Kind() Kind
	Rank() int
	Description() string
	isOperation()
}

// CreateFunction creates a stored function
type CreateFunction struct {
	Function *ir.Function `json:"function"`
}

// CreateTable creates a table with its columns, keys, indexes and inline foreign keys.
// Triggers of the table are rendered right after the CREATE TABLE statement.
type CreateTable struct {
	Table *ir.Table `json:"table"`
}

// AddColumn adds a column to an existing table
type AddColumn struct {
	Table  string     `json:"table"`
	Column *ir.Column `json:"column"`
}

// AlterColumn redefines an existing column to its desired definition
type AlterColumn struct {
	Table       string     `json:"table"`
	Column      *ir.Column `json:"column"`
	Differences []string   `json:"differences"`
}

// DropIndex drops an index
type DropIndex struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

// CreateIndex adds an index to an existing table
type CreateIndex struct {
	Table string    `json:"table"`
	Index *ir.Index `json:"index"`
}

// DropForeignKey drops a foreign key constraint
type DropForeignKey struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

// AddForeignKey adds a foreign key constraint to an existing table
type AddForeignKey struct {
	ForeignKey *ir.ForeignKey `json:"foreign_key"`
}

// DropTrigger drops a trigger
type DropTrigger struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

// CreateTrigger creates a trigger
type CreateTrigger struct {
	Trigger *ir.Trigger `json:"trigger"`
}

func (CreateFunction) Kind() Kind { return KindCreateFunction }
func (CreateTable) Kind() Kind    { return KindCreateTable }
func (AddColumn) Kind() Kind      { return KindAddColumn }
func (AlterColumn) Kind() Kind    { return KindAlterColumn }
func (DropIndex) Kind() Kind      { return KindDropIndex }
func (CreateIndex) Kind() Kind    { return KindCreateIndex }
func (DropForeignKey) Kind() Kind { return KindDropForeignKey }
func (AddForeignKey) Kind() Kind  { return KindAddForeignKey }
func (DropTrigger) Kind() Kind    { return KindDropTrigger }
func (CreateTrigger) Kind() Kind  { return KindCreateTrigger }

func (CreateFunction) Rank() int { return RankCreateFunction }
func (CreateTable) Rank() int    { return RankCreateTable }
func (AddColumn) Rank() int      { return RankAddColumn }
func (AlterColumn) Rank() int    { return RankAlterColumn }
func (DropIndex) Rank() int      { return RankDropIndex }
func (CreateIndex) Rank() int    { return RankCreateIndex }
func (DropForeignKey) Rank() int { return RankDropForeignKey }
func (AddForeignKey) Rank() int  { return RankAddForeignKey }
func (DropTrigger) Rank() int    { return RankDropTrigger }
func (CreateTrigger) Rank() int  { return RankCreateTrigger }

func (CreateFunction) isOperation() {}
func (CreateTable) isOperation()    {}
func (AddColumn) isOperation()      {}
func (AlterColumn) isOperation()    {}
func (DropIndex) isOperation()      {}
func (CreateIndex) isOperation()    {}
func (DropForeignKey) isOperation() {}
func (AddForeignKey) isOperation()  {}
func (DropTrigger) isOperation()    {}
func (CreateTrigger) isOperation()  {}

func (o CreateFunction) Description() string {
	return "Create function " + o.Function.Name
}

func (o CreateTable) Description() string {
	return "Create table " + o.Table.Name
}

func (o AddColumn) Description() string {
	return fmt.Sprintf("Add column %s.%s", o.Table, o.Column.Name)
}

func (o AlterColumn) Description() string {
	if len(o.Differences) == 0 {
		return fmt.Sprintf("Alter column %s.%s", o.Table, o.Column.Name)
	}
	return fmt.Sprintf("Alter column %s.%s (%s)", o.Table, o.Column.Name, strings.Join(o.Differences, "; "))
}

func (o DropIndex) Description() string {
	return fmt.Sprintf("Drop index %s.%s", o.Table, o.Name)
}

func (o CreateIndex) Description() string {
	return fmt.Sprintf("Create index %s.%s", o.Table, o.Index.Name)
}

func (o DropForeignKey) Description() string {
	return fmt.Sprintf("Drop foreign key %s.%s", o.Table, o.Name)
}

func (o AddForeignKey) Description() string {
	return fmt.Sprintf("Add foreign key %s.%s -> %s", o.ForeignKey.Table, o.ForeignKey.Name, o.ForeignKey.ReferencedTable)
}

func (o DropTrigger) Description() string {
	return fmt.Sprintf("Drop trigger %s.%s", o.Table, o.Name)
}

func (o CreateTrigger) Description() string {
	return fmt.Sprintf("Create trigger %s.%s", o.Trigger.Table, o.Trigger.Name)
}

// SortOperations orders operations by rank, then by description
func SortOperations(ops []Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Rank() != ops[j].Rank() {
			return ops[i].Rank() < ops[j].Rank()
		}
		return ops[i].Description() < ops[j].Description()
	})
}
