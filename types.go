package myschema

import (
	"github.com/myschema/myschema/internal/apply"
	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// Re-export important types for external consumption

// Plan represents a migration plan for one database.
type Plan = plan.Plan

// Operation is one DDL step of a plan.
type Operation = plan.Operation

// Renderer turns plans into migration scripts.
type Renderer = plan.Renderer

// ApplyResult summarizes an apply run.
type ApplyResult = apply.Result

// StatementError reports the statement of a migration that failed.
type StatementError = apply.StatementError

// Config is a loaded myschema.toml.
type Config = config.Config

// ConnectionConfig addresses a MySQL server.
type ConnectionConfig = config.ConnectionConfig

// Model describes one table.
type Model = model.Model

// ModelSet is a named group of models migrated together.
type ModelSet = model.Set

// Snapshot is the schema of one database.
type Snapshot = ir.Snapshot

// Table represents a table with its columns, indexes, foreign keys and triggers.
type Table = ir.Table

// Column represents a table column.
type Column = ir.Column

// Index represents a table index.
type Index = ir.Index

// ForeignKey represents a foreign key constraint.
type ForeignKey = ir.ForeignKey

// Trigger represents a table trigger.
type Trigger = ir.Trigger

// Function represents a stored function.
type Function = ir.Function
