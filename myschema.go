// Package myschema provides a programmatic API for declarative MySQL schema migration.
// It builds the schema a set of models describes, compares it with live databases and
// plans and applies the DDL that closes the gap.
package myschema

import (
	"context"
	"errors"
	"fmt"
	"time"

	planCmd "github.com/myschema/myschema/cmd/plan"
	"github.com/myschema/myschema/cmd/util"
	"github.com/myschema/myschema/internal/apply"
	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/fingerprint"
	"github.com/myschema/myschema/internal/plan"
)

var (
	// ErrStalePlan is returned when a plan is applied to a database whose schema changed since planning
	ErrStalePlan = errors.New("database schema changed since the plan was generated")
	// ErrBlocked is returned when a migration carries blockers and destructive mode was not confirmed
	ErrBlocked = apply.ErrBlocked
	// ErrChecksumMismatch is returned when a partially applied migration is resumed with a different script
	ErrChecksumMismatch = apply.ErrChecksumMismatch
)

// Client provides the main interface for myschema operations.
type Client struct {
	conn         ConnectionConfig
	renderer     *plan.Renderer
	parallelism  int
	includeViews bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRenderer sets the renderer used for plan scripts and database creation
func WithRenderer(r *plan.Renderer) ClientOption {
	return func(c *Client) { c.renderer = r }
}

// WithParallelism bounds how many databases PlanAll plans at once
func WithParallelism(n int) ClientOption {
	return func(c *Client) { c.parallelism = n }
}

// WithIncludeViews makes inspection report views as well as base tables
func WithIncludeViews(include bool) ClientOption {
	return func(c *Client) { c.includeViews = include }
}

// NewClient creates a new client for the MySQL server described by conn.
func NewClient(conn ConnectionConfig, opts ...ClientOption) *Client {
	defaults := config.Default()
	c := &Client{
		conn:        conn,
		renderer:    defaults.Renderer(),
		parallelism: defaults.Plan.Parallelism,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig creates a client from a loaded configuration file
func NewClientFromConfig(cfg *Config) *Client {
	return NewClient(cfg.Connection,
		WithRenderer(cfg.Renderer()),
		WithParallelism(cfg.Plan.Parallelism),
		WithIncludeViews(cfg.Plan.IncludeViews))
}

// PlanOptions configures how migration planning is performed.
type PlanOptions struct {
	ModelSet *ModelSet // Models describing the desired schema (required)
	// Databases limits PlanAll. Empty means every database of the model set.
	Databases   []string
	Destructive bool      // Emit unsafe changes instead of blockers
	Timestamp   time.Time // Plan stamp (default: now)
}

// ApplyOptions configures how a migration is applied.
type ApplyOptions struct {
	Database    string // Target database (default: the plan's database)
	MigrationID string // Ledger identifier (default: the plan's script name)
	Script      string // Rendered script (alternative to Plan)
	Plan        *Plan  // Plan to render and apply (alternative to Script)
	Destructive bool   // Apply even though the migration carries blockers
}

func (c *Client) planConfig(opts PlanOptions) (*planCmd.PlanConfig, error) {
	if opts.ModelSet == nil {
		return nil, fmt.Errorf("a model set is required")
	}
	return &planCmd.PlanConfig{
		Connection:   c.conn,
		ModelSet:     opts.ModelSet,
		Databases:    opts.Databases,
		Destructive:  opts.Destructive,
		IncludeViews: c.includeViews,
		Parallelism:  c.parallelism,
		Timestamp:    opts.Timestamp,
	}, nil
}

// Plan compares one database with the schema the model set describes for it.
func (c *Client) Plan(ctx context.Context, database string, opts PlanOptions) (*Plan, error) {
	config, err := c.planConfig(opts)
	if err != nil {
		return nil, err
	}
	if config.Timestamp.IsZero() {
		config.Timestamp = time.Now().UTC()
	}
	return planCmd.GeneratePlan(ctx, config, database)
}

// PlanAll plans every database of the model set in parallel, one connection per
// database. Plans are returned in database name order.
func (c *Client) PlanAll(ctx context.Context, opts PlanOptions) ([]*Plan, error) {
	config, err := c.planConfig(opts)
	if err != nil {
		return nil, err
	}
	return planCmd.GeneratePlans(ctx, config)
}

// Render returns the migration script of a plan
func (c *Client) Render(p *Plan) string {
	return c.renderer.Render(p)
}

// Inspect reads the current schema of one database. A database that does not exist
// yet yields an empty snapshot.
func (c *Client) Inspect(ctx context.Context, database string) (*Snapshot, error) {
	return util.GetSnapshotFromDatabase(ctx, c.conn, database, c.includeViews)
}

// Apply executes a migration. With opts.Plan a migration the ledger already records
// is skipped; otherwise the database is first re-inspected and the plan is refused
// with ErrStalePlan when the schema changed since planning.
func (c *Client) Apply(ctx context.Context, opts ApplyOptions) (*ApplyResult, error) {
	if opts.Plan == nil && opts.Script == "" {
		return nil, fmt.Errorf("either Script or Plan must be provided")
	}

	req := apply.Request{
		Database:    opts.Database,
		MigrationID: opts.MigrationID,
		Script:      opts.Script,
		Destructive: opts.Destructive,
	}

	if p := opts.Plan; p != nil {
		if req.Database == "" {
			req.Database = p.DatabaseName
		}
		if req.Database != p.DatabaseName {
			return nil, fmt.Errorf("plan for database %s cannot be applied to database %s", p.DatabaseName, req.Database)
		}
		if req.MigrationID == "" {
			req.MigrationID = planCmd.ScriptName(p)
		}
	}

	db, err := util.Connect(ctx, util.NewConnectionConfig(c.conn, ""))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	applier := apply.New(db, apply.WithRenderer(c.renderer))

	if p := opts.Plan; p != nil {
		// A recorded migration is skipped by the applier; its schema has already moved on.
		entry, err := applier.Recorded(ctx, req.Database, req.MigrationID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			if err := c.verifySource(ctx, p); err != nil {
				return nil, err
			}
		}
		req.Script = c.renderer.Render(p)
		req.Blockers = append([]string{}, p.Blockers...)
	}

	return applier.Apply(ctx, req)
}

// verifySource checks that the database still matches the snapshot a plan was computed against
func (c *Client) verifySource(ctx context.Context, p *Plan) error {
	if p.SourceFingerprint == "" {
		return nil
	}
	current, err := c.Inspect(ctx, p.DatabaseName)
	if err != nil {
		return err
	}
	currentFingerprint, err := fingerprint.ComputeFingerprint(current)
	if err != nil {
		return err
	}
	expected := &fingerprint.SchemaFingerprint{Hash: p.SourceFingerprint}
	if err := fingerprint.Compare(expected, currentFingerprint); err != nil {
		return fmt.Errorf("database %s: %w: %v", p.DatabaseName, ErrStalePlan, err)
	}
	return nil
}
