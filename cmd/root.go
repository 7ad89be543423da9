package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myschema/myschema/cmd/apply"
	"github.com/myschema/myschema/cmd/plan"
	"github.com/myschema/myschema/cmd/util"
	"github.com/myschema/myschema/internal/logger"
	"github.com/myschema/myschema/internal/version"
)

var Debug bool

var RootCmd = &cobra.Command{
	Use:   "myschema",
	Short: "Declarative MySQL schema migration tool",
	Long: fmt.Sprintf(`myschema builds the schema your models describe, compares it with live MySQL databases
and produces ordered, safe migration scripts.

Version: %s@%s %s %s

Commands:
  plan     Generate migration scripts for a model set
  apply    Apply a migration script to a database
  inspect  Print a database's current schema as JSON

Use "myschema [command] --help" for more information about a command.`,
		version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate()),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	util.RegisterGlobalFlags(RootCmd)
	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(apply.ApplyCmd)
	RootCmd.AddCommand(InspectCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	logger.Setup(os.Stderr, Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
