package myschema

import (
	"context"

	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/desired"
	"github.com/myschema/myschema/internal/model"
)

// LoadConfig finds myschema.toml by walking up from dir and applies MYSCHEMA_ environment overrides.
func LoadConfig(dir string) (*Config, error) {
	return config.Load(dir)
}

// LoadModelSet loads the descriptor files matched by patterns into a model set.
// Relative patterns resolve against baseDir.
func LoadModelSet(name string, patterns []string, baseDir string) (*ModelSet, error) {
	return model.LoadSet(name, patterns, baseDir)
}

// BuildDesired returns the schema a model set describes for one database.
func BuildDesired(set *ModelSet, database string) (*Snapshot, error) {
	return desired.Build(database, set.Models)
}

// PlanDatabase is a convenience function to plan one database with default options.
func PlanDatabase(ctx context.Context, conn ConnectionConfig, set *ModelSet, database string) (*Plan, error) {
	return NewClient(conn).Plan(ctx, database, PlanOptions{ModelSet: set})
}

// ApplyScript is a convenience function to apply a rendered migration script.
func ApplyScript(ctx context.Context, conn ConnectionConfig, database, migrationID, script string) (*ApplyResult, error) {
	return NewClient(conn).Apply(ctx, ApplyOptions{
		Database:    database,
		MigrationID: migrationID,
		Script:      script,
	})
}

// ApplyPlan is a convenience function to apply a plan after checking it is still current.
func ApplyPlan(ctx context.Context, conn ConnectionConfig, p *Plan) (*ApplyResult, error) {
	return NewClient(conn).Apply(ctx, ApplyOptions{Plan: p})
}
