package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/myschema/myschema/cmd/util"
	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/desired"
	"github.com/myschema/myschema/internal/diff"
	"github.com/myschema/myschema/internal/fingerprint"
	"github.com/myschema/myschema/internal/logger"
	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// ScriptStampLayout is the UTC timestamp prefix of generated migration file names
const ScriptStampLayout = "20060102T150405Z"

// ErrPlanBlocked is returned by the plan command when a plan withholds unsafe changes
var ErrPlanBlocked = errors.New("plan has blockers; review them or re-run with --destructive")

var (
	planModelSet    string
	planDatabases   []string
	planDestructive bool
	planOutDir      string
	planOutput      string
	planNoColor     bool
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate migration scripts for a model set",
	Long: `Generate migration scripts that move each database of a model set toward the schema its models describe.

The desired schema is built from the model set's descriptor files, compared with the live catalog of every
target database, and written as one <UTC stamp>_<database>.sql script per database that has changes.
Databases are planned in parallel.`,
	RunE:         runPlan,
	SilenceUsage: true,
}

func init() {
	PlanCmd.Flags().StringVar(&planModelSet, "model-set", "", "Model set to plan (required)")
	PlanCmd.Flags().StringSliceVar(&planDatabases, "database", nil, "Limit planning to these databases (default: every database of the model set)")
	PlanCmd.Flags().BoolVar(&planDestructive, "destructive", false, "Emit unsafe column changes and drop undescribed indexes, foreign keys and triggers")
	PlanCmd.Flags().StringVar(&planOutDir, "out", "", "Directory for migration scripts (default: plan.output_dir from the config)")
	PlanCmd.Flags().StringVar(&planOutput, "output", "human", "Summary format printed to stdout: human or json")
	PlanCmd.Flags().BoolVar(&planNoColor, "no-color", false, "Disable colored output")

	PlanCmd.MarkFlagRequired("model-set")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planOutput != "human" && planOutput != "json" {
		return fmt.Errorf("unknown output format: %s", planOutput)
	}

	cfg, err := util.LoadConfig(cmd)
	if err != nil {
		return err
	}

	config, err := NewPlanConfig(cfg, planModelSet)
	if err != nil {
		return err
	}
	config.Databases = planDatabases
	config.Destructive = planDestructive

	outDir := cfg.Plan.OutputDir
	if cmd.Flags().Changed("out") {
		outDir = planOutDir
	}

	plans, err := GeneratePlans(cmd.Context(), config)
	if err != nil {
		return err
	}

	renderer := cfg.Renderer()
	blocked := false
	for _, p := range plans {
		logNotices(p)

		path, err := WriteScript(outDir, renderer, p)
		if err != nil {
			return err
		}
		if err := printSummary(cmd.OutOrStdout(), p, path); err != nil {
			return err
		}
		if p.HasBlockers() && !config.Destructive {
			blocked = true
		}
	}

	if blocked {
		return ErrPlanBlocked
	}
	return nil
}

// PlanConfig holds configuration for plan generation
type PlanConfig struct {
	Connection config.ConnectionConfig
	ModelSet   *model.Set
	// Databases limits planning. Empty means every database of the model set.
	Databases    []string
	Destructive  bool
	IncludeViews bool
	// Parallelism bounds how many databases are planned at once
	Parallelism int
	// Timestamp stamps every plan. Zero means now.
	Timestamp time.Time
}

// NewPlanConfig loads the named model set of cfg and returns a plan configuration for it
func NewPlanConfig(cfg *config.Config, modelSet string) (*PlanConfig, error) {
	setConfig, err := cfg.ModelSet(modelSet)
	if err != nil {
		return nil, err
	}
	set, err := model.LoadSet(modelSet, setConfig.Files, cfg.BaseDir())
	if err != nil {
		return nil, fmt.Errorf("failed to load model set: %w", err)
	}
	return &PlanConfig{
		Connection:   cfg.Connection,
		ModelSet:     set,
		IncludeViews: cfg.Plan.IncludeViews,
		Parallelism:  cfg.Plan.Parallelism,
	}, nil
}

// targetDatabases returns the databases to plan, rejecting any the model set does not target
func (c *PlanConfig) targetDatabases() ([]string, error) {
	known := c.ModelSet.Databases()
	if len(c.Databases) == 0 {
		if len(known) == 0 {
			return nil, fmt.Errorf("model set %s targets no database", c.ModelSet.Name)
		}
		return known, nil
	}

	var databases []string
	for _, database := range c.Databases {
		if !slices.Contains(known, database) {
			return nil, fmt.Errorf("model set %s has no models for database %s", c.ModelSet.Name, database)
		}
		if !slices.Contains(databases, database) {
			databases = append(databases, database)
		}
	}
	slices.Sort(databases)
	return databases, nil
}

// GeneratePlans plans every target database of the model set, at most
// config.Parallelism at a time, each over its own connection. Plans are returned
// in database name order. The first failure cancels the remaining databases.
func GeneratePlans(ctx context.Context, config *PlanConfig) ([]*plan.Plan, error) {
	databases, err := config.targetDatabases()
	if err != nil {
		return nil, err
	}
	if config.Timestamp.IsZero() {
		config.Timestamp = time.Now().UTC()
	}

	plans := make([]*plan.Plan, len(databases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Parallelism, 1))
	for i, database := range databases {
		i, database := i, database
		g.Go(func() error {
			p, err := GeneratePlan(gctx, config, database)
			if err != nil {
				return fmt.Errorf("database %s: %w", database, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// GeneratePlan plans one database: the desired snapshot is built from the model set
// and diffed against the database's live catalog.
func GeneratePlan(ctx context.Context, config *PlanConfig, database string) (*plan.Plan, error) {
	desiredSnapshot, err := desired.Build(database, config.ModelSet.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to build desired schema: %w", err)
	}

	actual, err := util.GetSnapshotFromDatabase(ctx, config.Connection, database, config.IncludeViews)
	if err != nil {
		return nil, fmt.Errorf("failed to get current state from database: %w", err)
	}

	return planSnapshots(desiredSnapshot, actual, config.ModelSet.Tables(database), config)
}

// planSnapshots diffs two snapshots and stamps the plan with the actual snapshot's fingerprint
func planSnapshots(desiredSnapshot, actual *ir.Snapshot, scope []string, config *PlanConfig) (*plan.Plan, error) {
	sourceFingerprint, err := fingerprint.ComputeFingerprint(actual)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source fingerprint: %w", err)
	}

	p, err := diff.Plan(desiredSnapshot, actual, diff.Options{
		Destructive: config.Destructive,
		ScopeTables: scope,
		Timestamp:   config.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	p.SourceFingerprint = sourceFingerprint.Hash
	return p, nil
}

// ScriptName returns the file name of a plan's migration script
func ScriptName(p *plan.Plan) string {
	return fmt.Sprintf("%s_%s.sql", p.StampUTC.UTC().Format(ScriptStampLayout), p.DatabaseName)
}

// WriteScript renders p into dir and returns the file path. Plans with neither
// operations nor blockers produce no file and an empty path.
func WriteScript(dir string, renderer *plan.Renderer, p *plan.Plan) (string, error) {
	if p.IsEmpty() && !p.HasBlockers() {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, ScriptName(p))
	if err := os.WriteFile(path, []byte(renderer.Render(p)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write migration script to %s: %w", path, err)
	}
	return path, nil
}

// logNotices logs a plan's warnings at WARN level and its blockers at ERROR level
func logNotices(p *plan.Plan) {
	log := logger.Get().With("database", p.DatabaseName)
	for _, w := range p.Warnings {
		log.Warn("Plan warning", "warning", w)
	}
	for _, b := range p.Blockers {
		log.Error("Plan blocker", "blocker", b)
	}
}

func printSummary(w io.Writer, p *plan.Plan, scriptPath string) error {
	if planOutput == "json" {
		content, err := p.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, content)
		return err
	}

	fmt.Fprint(w, p.HumanColored(!planNoColor))
	if scriptPath != "" {
		fmt.Fprintf(w, "Migration script written to %s\n\n", scriptPath)
	}
	return nil
}
