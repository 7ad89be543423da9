package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/myschema/myschema/cmd/util"
)

var (
	inspectDatabase     string
	inspectIncludeViews bool
)

var InspectCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Print a database's current schema as JSON",
	Long:         "Read the live catalog of one database (tables, columns, indexes, foreign keys, triggers and functions) and print it as a JSON snapshot.",
	RunE:         runInspect,
	SilenceUsage: true,
}

func init() {
	InspectCmd.Flags().StringVar(&inspectDatabase, "database", "", "Database to inspect (required)")
	InspectCmd.Flags().BoolVar(&inspectIncludeViews, "include-views", false, "Include views (default: plan.include_views from the config)")
	InspectCmd.MarkFlagRequired("database")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectDatabase == "" {
		return fmt.Errorf("database name is required (use --database)")
	}

	cfg, err := util.LoadConfig(cmd)
	if err != nil {
		return err
	}
	includeViews := cfg.Plan.IncludeViews
	if cmd.Flags().Changed("include-views") {
		includeViews = inspectIncludeViews
	}

	snapshot, err := util.GetSnapshotFromDatabase(cmd.Context(), cfg.Connection, inspectDatabase, includeViews)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
