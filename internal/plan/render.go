package plan

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/myschema/myschema/ir"
)

const (
	DefaultDelimiter = "$$"
	DefaultCharset   = "utf8mb4"
	DefaultCollation = "utf8mb4_unicode_ci"

	blockersMarker = "-- BLOCKERS:"
	warningsMarker = "-- WARNINGS:"
	noticePrefix   = "--   "
)

// Renderer turns plans into a single SQL script
type Renderer struct {
	// Delimiter replaces ";" around trigger and function bodies
	Delimiter string
	// CreateDatabase emits CREATE DATABASE IF NOT EXISTS and USE before the operations
	CreateDatabase bool
	Charset        string
	Collation      string
}

// NewRenderer returns a renderer with the default delimiter and charset
func NewRenderer() *Renderer {
	return &Renderer{
		Delimiter: DefaultDelimiter,
		Charset:   DefaultCharset,
		Collation: DefaultCollation,
	}
}

func (r *Renderer) delimiter() string {
	if r.Delimiter == "" {
		return DefaultDelimiter
	}
	return r.Delimiter
}

// Render produces the migration script. Blockers and warnings are listed as
// comments; rendering does not stop for them.
func (r *Renderer) Render(p *Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "-- myschema migration for database %s\n", ir.QuoteIdentifier(p.DatabaseName))
	fmt.Fprintf(&b, "-- Generated (UTC): %s\n", p.StampUTC.UTC().Format(time.RFC3339))
	if p.SourceFingerprint != "" {
		fmt.Fprintf(&b, "-- Source fingerprint: %s\n", p.SourceFingerprint)
	}
	b.WriteString("\n")

	if r.CreateDatabase {
		b.WriteString(r.CreateDatabaseSQL(p.DatabaseName))
		b.WriteString("\n")
		fmt.Fprintf(&b, "USE %s;\n\n", ir.QuoteIdentifier(p.DatabaseName))
	}

	if len(p.Blockers) > 0 {
		writeNotices(&b, blockersMarker, p.Blockers)
	}
	if len(p.Warnings) > 0 {
		writeNotices(&b, warningsMarker, p.Warnings)
	}

	for _, op := range p.Operations {
		fmt.Fprintf(&b, "-- %s\n", oneLine(op.Description()))
		b.WriteString(r.Operation(op))
		b.WriteString("\n")
	}

	return b.String()
}

func writeNotices(b *strings.Builder, marker string, notices []string) {
	b.WriteString(marker + "\n")
	for _, n := range notices {
		b.WriteString(noticePrefix + oneLine(n) + "\n")
	}
	b.WriteString("\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CreateDatabaseSQL renders CREATE DATABASE IF NOT EXISTS with the renderer's charset
func (r *Renderer) CreateDatabaseSQL(database string) string {
	charset, collation := r.Charset, r.Collation
	if charset == "" {
		charset = DefaultCharset
	}
	if collation == "" {
		collation = DefaultCollation
	}
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s DEFAULT CHARACTER SET %s COLLATE %s;\n",
		ir.QuoteIdentifier(database), charset, collation)
}

// Operation renders the SQL of one operation, terminated by a newline
func (r *Renderer) Operation(op Operation) string {
	switch o := op.(type) {
	case CreateFunction:
		return r.createFunction(o.Function)
	case CreateTable:
		var b strings.Builder
		b.WriteString(RenderCreateTable(o.Table, false))
		for _, name := range o.Table.TriggerNames() {
			b.WriteString(r.createTrigger(o.Table.Triggers[name]))
		}
		return b.String()
	case AddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;\n", ir.QuoteIdentifier(o.Table), columnDefinition(o.Column))
	case AlterColumn:
		return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;\n", ir.QuoteIdentifier(o.Table), columnDefinition(o.Column))
	case DropIndex:
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s;\n", ir.QuoteIdentifier(o.Table), ir.QuoteIdentifier(o.Name))
	case CreateIndex:
		return fmt.Sprintf("ALTER TABLE %s ADD %s;\n", ir.QuoteIdentifier(o.Table), indexDefinition(o.Index, "INDEX"))
	case DropForeignKey:
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s;\n", ir.QuoteIdentifier(o.Table), ir.QuoteIdentifier(o.Name))
	case AddForeignKey:
		return fmt.Sprintf("ALTER TABLE %s ADD %s;\n", ir.QuoteIdentifier(o.ForeignKey.Table), foreignKeyDefinition(o.ForeignKey))
	case DropTrigger:
		return fmt.Sprintf("DROP TRIGGER IF EXISTS %s;\n", ir.QuoteIdentifier(o.Name))
	case CreateTrigger:
		return r.createTrigger(o.Trigger)
	}
	panic(fmt.Sprintf("unknown operation %T", op))
}

// RenderCreateTable renders a CREATE TABLE statement: columns in ordinal order, the
// primary key, single-column unique keys, secondary indexes and inline foreign keys.
// Triggers are not part of the statement.
func RenderCreateTable(table *ir.Table, ifNotExists bool) string {
	var lines []string
	for _, c := range table.SortedColumns() {
		lines = append(lines, "  "+columnDefinition(c))
	}

	pk := table.PrimaryKeyColumns()
	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", ir.QuoteIdentifiers(pk)))
	}

	for _, key := range table.UniqueColumnKeys() {
		lines = append(lines, "  "+indexDefinition(key, "KEY"))
	}

	for _, name := range table.IndexNames() {
		if name == ir.PrimaryIndexName {
			continue
		}
		lines = append(lines, "  "+indexDefinition(table.Indexes[name], "KEY"))
	}

	for _, name := range table.ForeignKeyNames() {
		lines = append(lines, "  "+foreignKeyDefinition(table.ForeignKeys[name]))
	}

	create := "CREATE TABLE "
	if ifNotExists {
		create = "CREATE TABLE IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n%s\n) ENGINE=InnoDB DEFAULT CHARSET=%s;\n",
		create, ir.QuoteIdentifier(table.Name), strings.Join(lines, ",\n"), DefaultCharset)
}

// columnDefinition renders `name` type [NOT] NULL [DEFAULT ...] [AUTO_INCREMENT].
// Defaults are SQL fragments and are emitted verbatim.
func columnDefinition(c *ir.Column) string {
	parts := []string{ir.QuoteIdentifier(c.Name), c.Type}
	if c.IsNullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+*c.DefaultValue)
	}
	if c.IsAutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	return strings.Join(parts, " ")
}

// indexDefinition renders [UNIQUE|FULLTEXT|SPATIAL] KEY `name` (`a`,`b` DESC).
// keyword is "KEY" inside CREATE TABLE and "INDEX" in ALTER TABLE ... ADD.
func indexDefinition(idx *ir.Index, keyword string) string {
	var columns []string
	for _, c := range idx.SortedColumns() {
		col := ir.QuoteIdentifier(c.Name)
		if c.Collation == ir.CollationDesc {
			col += " DESC"
		}
		columns = append(columns, col)
	}

	prefix := keyword
	if idx.Kind != ir.IndexKindNone {
		prefix = string(idx.Kind) + " " + keyword
	}
	return fmt.Sprintf("%s %s (%s)", prefix, ir.QuoteIdentifier(idx.Name), strings.Join(columns, ","))
}

func foreignKeyDefinition(fk *ir.ForeignKey) string {
	var b strings.Builder
	if fk.Name != "" {
		fmt.Fprintf(&b, "CONSTRAINT %s ", ir.QuoteIdentifier(fk.Name))
	}
	fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		ir.QuoteIdentifiers(fk.Columns),
		ir.QuoteIdentifier(fk.ReferencedTable),
		ir.QuoteIdentifiers(fk.ReferencedColumns),
		ir.NormalizeRule(fk.DeleteRule),
		ir.NormalizeRule(fk.UpdateRule))
	return b.String()
}

func (r *Renderer) createTrigger(t *ir.Trigger) string {
	d := r.delimiter()
	return fmt.Sprintf("DELIMITER %s\nCREATE TRIGGER %s %s %s ON %s FOR EACH ROW\n%s%s\nDELIMITER ;\n",
		d, ir.QuoteIdentifier(t.Name), t.Timing, t.Event, ir.QuoteIdentifier(t.Table), strings.TrimSpace(t.Statement), d)
}

func (r *Renderer) createFunction(f *ir.Function) string {
	d := r.delimiter()
	deterministic := "NOT DETERMINISTIC"
	if f.Deterministic {
		deterministic = "DETERMINISTIC"
	}
	var characteristics []string
	characteristics = append(characteristics, deterministic)
	if f.SQLDataAccess != "" {
		characteristics = append(characteristics, f.SQLDataAccess)
	}
	if f.SecurityType != "" {
		characteristics = append(characteristics, "SQL SECURITY "+f.SecurityType)
	}
	return fmt.Sprintf("DELIMITER %s\nCREATE FUNCTION %s() RETURNS %s\n%s\n%s%s\nDELIMITER ;\n",
		d, ir.QuoteIdentifier(f.Name), f.ReturnType, strings.Join(characteristics, "\n"), strings.TrimSpace(f.Definition), d)
}

// ParseBlockers reads back the blocker list a rendered script carries in its header
func ParseBlockers(script string) []string {
	var blockers []string
	inBlock := false
	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == blockersMarker:
			inBlock = true
		case inBlock && strings.HasPrefix(line, noticePrefix):
			blockers = append(blockers, strings.TrimPrefix(line, noticePrefix))
		case inBlock:
			return blockers
		}
	}
	return blockers
}
