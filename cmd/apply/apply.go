package apply

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/myschema/myschema/cmd/util"
	migration "github.com/myschema/myschema/internal/apply"
	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/plan"
)

var (
	applyDatabase    string
	applyFile        string
	applyMigrationID string
	applyDestructive bool
	applyAutoApprove bool
)

var ApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a migration script to a database",
	Long: `Apply a migration script produced by "myschema plan" to one database.

The database is created when missing. Scripts already recorded in the database's ledger are skipped,
and a script that failed part-way resumes after its last successful statement. Scripts that carry
blockers are refused unless --destructive is given.`,
	RunE:         runApply,
	SilenceUsage: true,
}

func init() {
	ApplyCmd.Flags().StringVar(&applyDatabase, "database", "", "Target database (required)")
	ApplyCmd.Flags().StringVar(&applyFile, "file", "", "Path to the migration script (required)")
	ApplyCmd.Flags().StringVar(&applyMigrationID, "migration-id", "", "Ledger identifier of the migration (default: the script's file name)")
	ApplyCmd.Flags().BoolVar(&applyDestructive, "destructive", false, "Apply a script even though it carries blockers")
	ApplyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Apply without prompting for approval")

	ApplyCmd.MarkFlagRequired("database")
	ApplyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := util.LoadConfig(cmd)
	if err != nil {
		return err
	}

	config := &ApplyConfig{
		Connection:  cfg.Connection,
		Database:    applyDatabase,
		File:        applyFile,
		MigrationID: applyMigrationID,
		Destructive: applyDestructive,
		Renderer:    cfg.Renderer(),
		Progress: func(applied, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  [%d/%d] statements applied\n", applied, total)
		},
	}

	if !applyAutoApprove {
		approved, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), config)
		if err != nil {
			return err
		}
		if !approved {
			fmt.Fprintln(cmd.OutOrStdout(), "Apply cancelled.")
			return nil
		}
	}

	result, err := ApplyMigration(cmd.Context(), config)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case result.Skipped:
		fmt.Fprintf(out, "Migration %s is already recorded in database %s. Nothing to do.\n", config.migrationID(), config.Database)
	case result.Resumed:
		fmt.Fprintf(out, "Resumed migration %s: %d statements executed on database %s.\n", config.migrationID(), result.StatementsExecuted, config.Database)
	default:
		fmt.Fprintf(out, "Applied migration %s: %d statements executed on database %s.\n", config.migrationID(), result.StatementsExecuted, config.Database)
	}
	return nil
}

// ApplyConfig holds configuration for applying one migration script
type ApplyConfig struct {
	Connection config.ConnectionConfig
	Database   string
	File       string
	// MigrationID is the ledger identifier. Empty means the script's file name.
	MigrationID string
	Destructive bool
	// Renderer supplies the charset used when the database has to be created
	Renderer *plan.Renderer
	// Progress, when set, is called after every executed statement
	Progress func(applied, total int)
}

func (c *ApplyConfig) migrationID() string {
	if c.MigrationID != "" {
		return c.MigrationID
	}
	return filepath.Base(c.File)
}

// ApplyMigration reads the script and applies it to the configured database
func ApplyMigration(ctx context.Context, config *ApplyConfig) (*migration.Result, error) {
	script, err := os.ReadFile(config.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration script: %w", err)
	}

	// The applier selects the database itself, so the connection names none.
	db, err := util.Connect(ctx, util.NewConnectionConfig(config.Connection, ""))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var opts []migration.Option
	if config.Renderer != nil {
		opts = append(opts, migration.WithRenderer(config.Renderer))
	}
	if config.Progress != nil {
		opts = append(opts, migration.WithProgress(config.Progress))
	}

	return migration.New(db, opts...).Apply(ctx, migration.Request{
		Database:    config.Database,
		MigrationID: config.migrationID(),
		Script:      string(script),
		Destructive: config.Destructive,
	})
}

// confirm asks for approval on in and reports whether the answer was yes
func confirm(in io.Reader, out io.Writer, config *ApplyConfig) (bool, error) {
	fmt.Fprintf(out, "Apply migration %s to database %s? (yes/no): ", config.migrationID(), config.Database)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes" || response == "y", nil
}
