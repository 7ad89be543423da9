package ir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/myschema/myschema/internal/logger"
)

// ErrNoDatabase is returned when the inspected connection has no current database selected
var ErrNoDatabase = errors.New("connection has no current database")

var onUpdateExtraRe = regexp.MustCompile(`(?i)on update (current_timestamp(\(\d*\))?)`)

// queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Inspector builds a Snapshot from the live catalog of the connected database
type Inspector struct {
	db *sql.DB
}

// InspectOptions controls what the inspector reads
type InspectOptions struct {
	IncludeViews bool
}

// NewInspector creates a new schema inspector
func NewInspector(db *sql.DB) *Inspector {
	return &Inspector{db: db}
}

type inspectStep struct {
	name string
	fn   func(context.Context, queryer, *Snapshot) error
}

// Inspect reads the current database's tables, columns, indexes, foreign keys, triggers and
// functions. All catalog queries run sequentially on one pinned connection.
func (i *Inspector) Inspect(ctx context.Context, opts InspectOptions) (*Snapshot, error) {
	conn, err := i.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	databaseName, err := currentDatabase(ctx, conn)
	if err != nil {
		return nil, err
	}

	log := logger.Get().With("database", databaseName)
	log.Debug("Inspecting database catalog", "include_views", opts.IncludeViews)

	snapshot := NewSnapshot(databaseName)

	steps := []inspectStep{
		{"tables", func(ctx context.Context, q queryer, s *Snapshot) error {
			return buildTables(ctx, q, s, opts.IncludeViews)
		}},
		{"columns", buildColumns},
		{"indexes", buildIndexes},
		{"foreign keys", buildForeignKeys},
		{"triggers", buildTriggers},
		{"functions", buildFunctions},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step.fn(ctx, conn, snapshot); err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", step.name, err)
		}
	}

	log.Debug("Catalog inspection complete", "tables", len(snapshot.Tables), "functions", len(snapshot.Functions))
	return snapshot, nil
}

// currentDatabase asks the server which database the connection is using
func currentDatabase(ctx context.Context, q queryer) (string, error) {
	var name sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&name); err != nil {
		return "", fmt.Errorf("failed to read current database: %w", err)
	}
	if !name.Valid || name.String == "" {
		return "", ErrNoDatabase
	}
	return name.String, nil
}

func buildTables(ctx context.Context, q queryer, s *Snapshot, includeViews bool) error {
	query := `
		SELECT TABLE_NAME, TABLE_TYPE
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?`
	if !includeViews {
		query += ` AND TABLE_TYPE = 'BASE TABLE'`
	}
	query += ` ORDER BY TABLE_NAME`

	rows, err := q.QueryContext(ctx, query, s.DatabaseName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return err
		}
		table := NewTable(name)
		table.IsView = tableType == "VIEW"
		s.Tables[name] = table
	}
	return rows.Err()
}

func buildColumns(ctx context.Context, q queryer, s *Snapshot) error {
	rows, err := q.QueryContext(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, DATA_TYPE, IS_NULLABLE,
		       COLUMN_DEFAULT, EXTRA, COLUMN_KEY, ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`, s.DatabaseName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, columnName, columnType, dataType string
			isNullable, extra, columnKey                string
			columnDefault                               sql.NullString
			position                                    int
		)
		if err := rows.Scan(&tableName, &columnName, &columnType, &dataType, &isNullable,
			&columnDefault, &extra, &columnKey, &position); err != nil {
			return err
		}

		table, ok := s.Tables[tableName]
		if !ok {
			continue
		}
		table.Columns[columnName] = &Column{
			Name:            columnName,
			Type:            NormalizeType(columnType),
			IsNullable:      isNullable == "YES",
			DefaultValue:    catalogDefault(columnDefault, dataType, extra),
			IsPrimaryKey:    columnKey == "PRI",
			IsUnique:        columnKey == "UNI",
			IsAutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
			Position:        position,
		}
	}
	return rows.Err()
}

// catalogDefault converts information_schema.COLUMNS.COLUMN_DEFAULT into the SQL fragment a
// CREATE TABLE statement would carry, so it compares equal to the builder's defaults.
func catalogDefault(raw sql.NullString, dataType, extra string) *string {
	if !raw.Valid {
		return nil
	}

	var value string
	switch {
	case strings.Contains(strings.ToLower(extra), "default_generated"):
		value = raw.String
	case isQuotedDefaultType(dataType) && !currentTSRe.MatchString(raw.String):
		value = QuoteLiteral(raw.String)
	default:
		value = raw.String
	}

	if m := onUpdateExtraRe.FindStringSubmatch(extra); m != nil {
		value += " ON UPDATE " + m[1]
	}

	normalized := NormalizeDefault(value)
	return &normalized
}

func isQuotedDefaultType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext",
		"enum", "set", "binary", "varbinary",
		"date", "datetime", "timestamp", "time", "year":
		return true
	}
	return false
}

func buildIndexes(ctx context.Context, q queryer, s *Snapshot) error {
	rows, err := q.QueryContext(ctx, `
		SELECT TABLE_NAME, INDEX_NAME, NON_UNIQUE, SEQ_IN_INDEX, COLUMN_NAME, COLLATION, INDEX_TYPE
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`, s.DatabaseName)
	if err != nil {
		return err
	}
	defer rows.Close()

	// An index is unique only when no row of its group is flagged non-unique
	nonUnique := make(map[*Index]bool)
	for rows.Next() {
		var (
			tableName, indexName, indexType string
			nonUniqueFlag, seq              int
			columnName, collation           sql.NullString
		)
		if err := rows.Scan(&tableName, &indexName, &nonUniqueFlag, &seq, &columnName, &collation, &indexType); err != nil {
			return err
		}

		table, ok := s.Tables[tableName]
		if !ok {
			continue
		}
		index, ok := table.Indexes[indexName]
		if !ok {
			index = &Index{Name: indexName}
			switch strings.ToUpper(indexType) {
			case "FULLTEXT":
				index.Kind = IndexKindFulltext
			case "SPATIAL":
				index.Kind = IndexKindSpatial
			}
			table.Indexes[indexName] = index
		}
		if nonUniqueFlag != 0 {
			nonUnique[index] = true
		}
		index.Columns = append(index.Columns, &IndexColumn{
			Name:       columnName.String,
			SeqInIndex: seq,
			Collation:  collation.String,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range s.Tables {
		for _, index := range table.Indexes {
			if index.Kind == IndexKindNone && !nonUnique[index] {
				index.Kind = IndexKindUnique
			}
		}
	}
	return nil
}

func buildForeignKeys(ctx context.Context, q queryer, s *Snapshot) error {
	rows, err := q.QueryContext(ctx, `
		SELECT k.TABLE_NAME, k.CONSTRAINT_NAME, k.COLUMN_NAME,
		       k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME,
		       r.UPDATE_RULE, r.DELETE_RULE
		FROM information_schema.KEY_COLUMN_USAGE k
		JOIN information_schema.REFERENTIAL_CONSTRAINTS r
		  ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA
		 AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
		 AND r.TABLE_NAME = k.TABLE_NAME
		WHERE k.TABLE_SCHEMA = ?
		  AND k.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`, s.DatabaseName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, constraintName, columnName, refTable, refColumn, updateRule, deleteRule string
		if err := rows.Scan(&tableName, &constraintName, &columnName, &refTable, &refColumn, &updateRule, &deleteRule); err != nil {
			return err
		}

		table, ok := s.Tables[tableName]
		if !ok {
			continue
		}
		fk, ok := table.ForeignKeys[constraintName]
		if !ok {
			fk = &ForeignKey{
				Name:            constraintName,
				Table:           tableName,
				ReferencedTable: refTable,
				UpdateRule:      NormalizeRule(updateRule),
				DeleteRule:      NormalizeRule(deleteRule),
			}
			table.ForeignKeys[constraintName] = fk
		}
		fk.Columns = append(fk.Columns, columnName)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refColumn)
	}
	return rows.Err()
}

func buildTriggers(ctx context.Context, q queryer, s *Snapshot) error {
	rows, err := q.QueryContext(ctx, `
		SELECT TRIGGER_NAME, EVENT_OBJECT_TABLE, ACTION_TIMING, EVENT_MANIPULATION, ACTION_STATEMENT
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME`, s.DatabaseName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, tableName, timing, event, statement string
		if err := rows.Scan(&name, &tableName, &timing, &event, &statement); err != nil {
			return err
		}

		table, ok := s.Tables[tableName]
		if !ok {
			continue
		}
		table.Triggers[name] = &Trigger{
			Name:      name,
			Table:     tableName,
			Timing:    strings.ToUpper(timing),
			Event:     strings.ToUpper(event),
			Statement: statement,
		}
	}
	return rows.Err()
}

func buildFunctions(ctx context.Context, q queryer, s *Snapshot) error {
	rows, err := q.QueryContext(ctx, `
		SELECT ROUTINE_NAME, DTD_IDENTIFIER, IS_DETERMINISTIC, SQL_DATA_ACCESS, SECURITY_TYPE, ROUTINE_DEFINITION
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'FUNCTION'
		ORDER BY ROUTINE_NAME`, s.DatabaseName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, deterministic, dataAccess, security string
			returnType, definition                    sql.NullString
		)
		if err := rows.Scan(&name, &returnType, &deterministic, &dataAccess, &security, &definition); err != nil {
			return err
		}
		s.Functions[name] = &Function{
			Name:          name,
			ReturnType:    NormalizeType(returnType.String),
			Deterministic: deterministic == "YES",
			SQLDataAccess: dataAccess,
			SecurityType:  security,
			Definition:    definition.String,
		}
	}
	return rows.Err()
}
