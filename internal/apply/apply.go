// Package apply executes rendered migration scripts against a MySQL server and
// records them in the target database's ledger.
package apply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/myschema/myschema/internal/fingerprint"
	"github.com/myschema/myschema/internal/ledger"
	"github.com/myschema/myschema/internal/logger"
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

var (
	// ErrBlocked is returned when a script carries blockers and destructive mode was not confirmed
	ErrBlocked = errors.New("migration has blockers; re-run with destructive mode to apply it")
	// ErrChecksumMismatch is returned when a partially applied migration is resumed with a different script
	ErrChecksumMismatch = errors.New("migration was partially applied from a different script")
	// ErrInvalidRequest is returned for requests missing the database or migration identifier
	ErrInvalidRequest = errors.New("invalid apply request")
)

var databaseStatement = regexp.MustCompile("(?is)^(?:USE|CREATE\\s+(?:DATABASE|SCHEMA)(?:\\s+IF\\s+NOT\\s+EXISTS)?)\\s+(`(?:[^`]|``)+`|[^\\s;]+)")

// errorHints explains the MySQL errors a generated migration most often runs into
var errorHints = map[uint16]string{
	1050: "table already exists",
	1054: "unknown column",
	1060: "duplicate column name",
	1061: "duplicate key name",
	1062: "existing rows violate a unique key",
	1091: "the object to drop does not exist",
	1146: "table does not exist",
	1215: "foreign key constraint cannot be added",
	1265: "existing data was truncated",
	1359: "trigger already exists",
	1304: "function already exists",
	1822: "missing index for foreign key constraint",
}

// StatementError reports the statement of a migration that failed
type StatementError struct {
	Database  string
	Migration string
	Index     int // 1-based position of the statement in the script
	Line      int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	msg := fmt.Sprintf("migration %s on database %s: statement %d (line %d) failed: %v",
		e.Migration, e.Database, e.Index, e.Line, e.Err)
	if hint, ok := errorHints[e.Code()]; ok {
		msg += " (" + hint + ")"
	}
	return msg
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Code returns the MySQL error number, or 0 when the failure did not come from the server
func (e *StatementError) Code() uint16 {
	var mysqlErr *mysql.MySQLError
	if errors.As(e.Err, &mysqlErr) {
		return mysqlErr.Number
	}
	return 0
}

// Request describes one migration to apply
type Request struct {
	Database    string
	MigrationID string
	Script      string
	// Destructive confirms that a script with blockers may run
	Destructive bool
	// Blockers of the plan the script was rendered from. Nil means read them from the script header.
	Blockers []string
}

// Result summarizes an apply run
type Result struct {
	Skipped            bool // already recorded in the ledger
	Resumed            bool // continued from a checkpoint
	StatementsExecuted int
	Checksum           string
	RunID              string
}

// Applier runs migrations, one pinned connection per call
type Applier struct {
	db       *sql.DB
	renderer *plan.Renderer
	now      func() time.Time
	progress func(applied, total int)
}

// Option configures an Applier
type Option func(*Applier)

// WithRenderer sets the renderer whose charset and collation are used to create missing databases
func WithRenderer(r *plan.Renderer) Option {
	return func(a *Applier) { a.renderer = r }
}

// WithClock replaces time.Now for ledger timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// WithProgress registers fn to be called after each statement is executed and checkpointed
func WithProgress(fn func(applied, total int)) Option {
	return func(a *Applier) { a.progress = fn }
}

// New returns an Applier over db. db's DSN should not select a database.
func New(db *sql.DB, opts ...Option) *Applier {
	a := &Applier{db: db, renderer: plan.NewRenderer(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply creates the database if needed, skips scripts the ledger already records,
// and otherwise executes the script one statement at a time. Every executed
// statement is checkpointed, so a failed or cancelled run resumes where it stopped.
// The ledger row is written only after the last statement succeeds.
func (a *Applier) Apply(ctx context.Context, req Request) (*Result, error) {
	if req.Database == "" || req.MigrationID == "" {
		return nil, fmt.Errorf("%w: database and migration identifier are required", ErrInvalidRequest)
	}

	blockers := req.Blockers
	if blockers == nil {
		blockers = plan.ParseBlockers(req.Script)
	}
	if len(blockers) > 0 && !req.Destructive {
		return nil, fmt.Errorf("migration %s on database %s: %w: %s",
			req.MigrationID, req.Database, ErrBlocked, strings.Join(blockers, "; "))
	}

	result := &Result{
		Checksum: fingerprint.Checksum(req.Script),
		RunID:    uuid.NewString(),
	}
	log := logger.Get().With("database", req.Database, "migration", req.MigrationID, "run_id", result.RunID)

	statements, err := Split(req.Script)
	if err != nil {
		return nil, fmt.Errorf("migration %s: %w", req.MigrationID, err)
	}
	if err := checkTargetDatabase(statements, req.Database); err != nil {
		return nil, fmt.Errorf("migration %s: %w", req.MigrationID, err)
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	defer conn.Close()

	if err := a.selectDatabase(ctx, conn, req.Database); err != nil {
		return nil, err
	}

	store := ledger.NewForDatabase(conn, req.Database)
	if err := store.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("database %s: %w", req.Database, err)
	}

	entry, err := store.Lookup(ctx, req.MigrationID)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", req.Database, err)
	}
	if entry != nil {
		if entry.Checksum != result.Checksum {
			log.Warn("Migration already applied with a different script", "recorded_checksum", entry.Checksum)
		}
		log.Info("Migration already applied, skipping", "applied_utc", entry.AppliedUTC)
		result.Skipped = true
		return result, nil
	}

	start := 0
	checkpoint, err := store.LoadCheckpoint(ctx, req.MigrationID)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", req.Database, err)
	}
	if checkpoint != nil {
		if checkpoint.Checksum != result.Checksum {
			return nil, fmt.Errorf("migration %s on database %s: %w", req.MigrationID, req.Database, ErrChecksumMismatch)
		}
		start = min(checkpoint.StatementsApplied, len(statements))
		result.Resumed = true
		log.Info("Resuming migration", "statements_applied", start, "statements_total", len(statements))
	}

	for i := start; i < len(statements); i++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("migration %s on database %s cancelled after %d statements: %w",
				req.MigrationID, req.Database, i, err)
		}

		stmt := statements[i]
		if err := execWithLogging(ctx, conn, stmt.SQL, i+1); err != nil {
			return result, &StatementError{
				Database:  req.Database,
				Migration: req.MigrationID,
				Index:     i + 1,
				Line:      stmt.Line,
				Statement: stmt.SQL,
				Err:       err,
			}
		}
		result.StatementsExecuted++

		err := store.SaveCheckpoint(ctx, ledger.Checkpoint{
			MigrationFile:     req.MigrationID,
			Checksum:          result.Checksum,
			StatementsApplied: i + 1,
		})
		if err != nil {
			return result, fmt.Errorf("database %s: %w", req.Database, err)
		}
		if a.progress != nil {
			a.progress(i+1, len(statements))
		}
	}

	err = store.Record(ctx, ledger.Entry{
		MigrationFile: req.MigrationID,
		Checksum:      result.Checksum,
		AppliedUTC:    a.now().UTC(),
	})
	if err != nil {
		return result, fmt.Errorf("database %s: %w", req.Database, err)
	}

	log.Info("Migration applied", "statements", result.StatementsExecuted, "resumed", result.Resumed)
	return result, nil
}

// Recorded returns the ledger entry of migrationID in database, or nil when the
// migration has not been applied there. A missing database or ledger counts as
// not applied.
func (a *Applier) Recorded(ctx context.Context, database, migrationID string) (*ledger.Entry, error) {
	entry, err := ledger.NewForDatabase(a.db, database).Lookup(ctx, migrationID)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && (mysqlErr.Number == 1049 || mysqlErr.Number == 1146) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", database, err)
	}
	return entry, nil
}

// checkTargetDatabase rejects scripts that switch to or create a database other than
// database, since the ledger of database would not see what they change.
func checkTargetDatabase(statements []Statement, database string) error {
	for i, stmt := range statements {
		m := databaseStatement.FindStringSubmatch(strings.TrimSpace(stmt.SQL))
		if m == nil {
			continue
		}
		target := m[1]
		if strings.HasPrefix(target, "`") {
			target = strings.ReplaceAll(target[1:len(target)-1], "``", "`")
		}
		if target != database {
			return fmt.Errorf("%w: statement %d (line %d) targets database %s, not %s",
				ErrInvalidRequest, i+1, stmt.Line, target, database)
		}
	}
	return nil
}

// selectDatabase creates the database when missing and makes it the connection's default
func (a *Applier) selectDatabase(ctx context.Context, conn *sql.Conn, database string) error {
	create := strings.TrimSuffix(strings.TrimSpace(a.renderer.CreateDatabaseSQL(database)), ";")
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create database %s: %w", database, err)
	}
	if _, err := conn.ExecContext(ctx, "USE "+ir.QuoteIdentifier(database)); err != nil {
		return fmt.Errorf("failed to select database %s: %w", database, err)
	}
	return nil
}

// execWithLogging executes one statement, logging it and its outcome in debug mode
func execWithLogging(ctx context.Context, conn *sql.Conn, stmt string, index int) error {
	isDebug := logger.IsDebug()
	if isDebug {
		logger.Get().Debug("Executing SQL", "statement", index, "sql", stmt)
	}

	_, err := conn.ExecContext(ctx, stmt)

	if isDebug {
		if err != nil {
			logger.Get().Debug("SQL execution failed", "statement", index, "error", err)
		} else {
			logger.Get().Debug("SQL execution succeeded", "statement", index)
		}
	}
	return err
}
