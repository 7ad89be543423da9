// Package ledger records which migration scripts have been applied to a database.
//
// Two tables live in every target database: the ledger itself, one row per fully
// applied migration file, and a checkpoint table that tracks how many statements
// of an in-flight migration have already run so an interrupted apply can resume.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/myschema/myschema/internal/desired"
	"github.com/myschema/myschema/internal/logger"
	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

const (
	TableName           = "schema_migration_ledger"
	CheckpointTableName = "schema_migration_checkpoint"

	maxMigrationFileLength = 255
)

// Entry is one applied migration
type Entry struct {
	MigrationFile string
	Checksum      string
	AppliedUTC    time.Time
}

// Checkpoint is the progress of a migration that has not finished
type Checkpoint struct {
	MigrationFile     string
	Checksum          string
	StatementsApplied int
}

// Conn is the subset of *sql.Conn the store needs
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes the ledger over one connection
type Store struct {
	conn     Conn
	database string
}

// New returns a store using conn. conn must already have the target database selected.
func New(conn Conn) *Store {
	return &Store{conn: conn}
}

// NewForDatabase returns a store whose statements name database explicitly, so they
// reach its ledger whatever database conn has selected.
func NewForDatabase(conn Conn, database string) *Store {
	return &Store{conn: conn, database: database}
}

func (s *Store) table(name string) string {
	if s.database == "" {
		return ir.QuoteIdentifier(name)
	}
	return ir.QuoteIdentifier(s.database) + "." + ir.QuoteIdentifier(name)
}

// Tables returns the ledger and checkpoint table definitions
func Tables() (ledgerTable, checkpointTable *ir.Table, err error) {
	snapshot, err := desired.Build("", ledgerModels())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build ledger tables: %w", err)
	}
	return snapshot.Tables[TableName], snapshot.Tables[CheckpointTableName], nil
}

func ledgerModels() []model.Model {
	return []model.Model{
		{
			Type:  "SchemaMigrationLedger",
			Table: TableName,
			Audit: true,
			Columns: []model.Column{
				{Property: "MigrationFile", Name: "migration_file", Type: model.TypeString, Size: maxMigrationFileLength, Unique: true},
				{Property: "ChecksumSha256", Name: "checksum_sha256", SQLType: "char(64)"},
				{Property: "AppliedUtc", Name: "applied_utc", Type: model.TypeDateTime},
			},
		},
		{
			Type:  "SchemaMigrationCheckpoint",
			Table: CheckpointTableName,
			Columns: []model.Column{
				{Property: "MigrationFile", Name: "migration_file", Type: model.TypeString, Size: maxMigrationFileLength, PrimaryKey: true},
				{Property: "ChecksumSha256", Name: "checksum_sha256", SQLType: "char(64)"},
				{Property: "StatementsApplied", Name: "statements_applied", Type: model.TypeInt},
			},
		},
	}
}

// Ensure creates the ledger and checkpoint tables when they do not exist
func (s *Store) Ensure(ctx context.Context) error {
	ledgerTable, checkpointTable, err := Tables()
	if err != nil {
		return err
	}
	for _, table := range []*ir.Table{ledgerTable, checkpointTable} {
		stmt := strings.TrimSuffix(strings.TrimSpace(plan.RenderCreateTable(table, true)), ";")
		stmt = strings.Replace(stmt, ir.QuoteIdentifier(table.Name), s.table(table.Name), 1)
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s: %w", table.Name, err)
		}
	}
	return nil
}

// Lookup returns the ledger entry for migrationFile, or nil when it has not been applied
func (s *Store) Lookup(ctx context.Context, migrationFile string) (*Entry, error) {
	query := fmt.Sprintf("SELECT migration_file, checksum_sha256, applied_utc FROM %s WHERE migration_file = ?",
		s.table(TableName))

	var e Entry
	err := s.conn.QueryRowContext(ctx, query, migrationFile).Scan(&e.MigrationFile, &e.Checksum, &e.AppliedUTC)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up migration %s: %w", migrationFile, err)
	}
	return &e, nil
}

// Record inserts the ledger row for a fully applied migration and clears its checkpoint
func (s *Store) Record(ctx context.Context, e Entry) error {
	insert := fmt.Sprintf("INSERT INTO %s (internal_id, migration_file, checksum_sha256, applied_utc) VALUES (?, ?, ?, ?)",
		s.table(TableName))
	if _, err := s.conn.ExecContext(ctx, insert, uuid.NewString(), e.MigrationFile, e.Checksum, e.AppliedUTC.UTC()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", e.MigrationFile, err)
	}

	if err := s.ClearCheckpoint(ctx, e.MigrationFile); err != nil {
		return err
	}

	logger.Get().Debug("Migration recorded", "migration", e.MigrationFile, "checksum", e.Checksum)
	return nil
}

// LoadCheckpoint returns the checkpoint for migrationFile, or nil when there is none
func (s *Store) LoadCheckpoint(ctx context.Context, migrationFile string) (*Checkpoint, error) {
	query := fmt.Sprintf("SELECT checksum_sha256, statements_applied FROM %s WHERE migration_file = ?",
		s.table(CheckpointTableName))

	cp := Checkpoint{MigrationFile: migrationFile}
	err := s.conn.QueryRowContext(ctx, query, migrationFile).Scan(&cp.Checksum, &cp.StatementsApplied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for %s: %w", migrationFile, err)
	}
	return &cp, nil
}

// SaveCheckpoint upserts the number of statements applied so far
func (s *Store) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	upsert := fmt.Sprintf("INSERT INTO %s (migration_file, checksum_sha256, statements_applied) VALUES (?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE checksum_sha256 = VALUES(checksum_sha256), statements_applied = VALUES(statements_applied)",
		s.table(CheckpointTableName))
	if _, err := s.conn.ExecContext(ctx, upsert, cp.MigrationFile, cp.Checksum, cp.StatementsApplied); err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", cp.MigrationFile, err)
	}
	return nil
}

// ClearCheckpoint removes the checkpoint row of migrationFile, if any
func (s *Store) ClearCheckpoint(ctx context.Context, migrationFile string) error {
	del := fmt.Sprintf("DELETE FROM %s WHERE migration_file = ?", s.table(CheckpointTableName))
	if _, err := s.conn.ExecContext(ctx, del, migrationFile); err != nil {
		return fmt.Errorf("failed to clear checkpoint for %s: %w", migrationFile, err)
	}
	return nil
}
