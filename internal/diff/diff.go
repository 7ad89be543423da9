// Package diff computes migration plans by comparing a desired snapshot with an actual one.
package diff

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/myschema/myschema/internal/logger"
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// ErrDatabaseMismatch is returned when the desired and actual snapshots describe different databases
var ErrDatabaseMismatch = errors.New("desired and actual snapshots describe different databases")

// Options controls planning
type Options struct {
	// Destructive permits unsafe column changes and drops of indexes, foreign keys
	// and triggers that are not described by the models.
	Destructive bool
	// ScopeTables limits the tables the plan may touch. Empty means every desired table.
	ScopeTables []string
	// Timestamp stamps the plan. Zero means now.
	Timestamp time.Time
}

// Plan diffs desired against actual and returns the ordered operations that move
// actual toward desired. Unsafe changes become blockers unless opts.Destructive is set.
func Plan(desired, actual *ir.Snapshot, opts Options) (*plan.Plan, error) {
	if desired.DatabaseName != actual.DatabaseName {
		return nil, fmt.Errorf("%w: desired %q, actual %q", ErrDatabaseMismatch, desired.DatabaseName, actual.DatabaseName)
	}

	stamp := opts.Timestamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	p := plan.New(desired.DatabaseName, stamp)

	diffFunctions(p, desired, actual)

	// Tables created by this plan, keyed by name. Their definitions are clones
	// so the forward-reference pass can trim them.
	created := make(map[string]*ir.Table)

	for _, name := range scopeTables(p, desired, opts.ScopeTables) {
		want := desired.Tables[name]
		have, exists := actual.Tables[name]
		if !exists {
			table := want.Clone()
			created[name] = table
			p.Add(plan.CreateTable{Table: table})
			continue
		}
		if have.IsView {
			p.Block("table %s exists as a view and cannot be migrated", name)
			continue
		}

		diffColumns(p, want, have, opts.Destructive)
		diffIndexes(p, want, have, opts.Destructive)
		diffForeignKeys(p, want, have, opts.Destructive)
		diffTriggers(p, want, have, opts.Destructive)
	}

	relocateForwardReferences(p, created)
	p.Sort()

	logger.Get().Debug("Plan computed",
		"database", p.DatabaseName,
		"operations", len(p.Operations),
		"warnings", len(p.Warnings),
		"blockers", len(p.Blockers),
		"destructive", opts.Destructive)

	return p, nil
}

// scopeTables returns the sorted in-scope table names that the desired snapshot describes
func scopeTables(p *plan.Plan, desired *ir.Snapshot, scope []string) []string {
	if len(scope) == 0 {
		return desired.TableNames()
	}

	seen := make(map[string]bool, len(scope))
	var names []string
	for _, name := range scope {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := desired.Tables[name]; !ok {
			p.Warn("table %s is in scope but no model describes it", name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// relocateForwardReferences moves foreign keys between tables created in the same
// plan out of the CREATE TABLE statements into AddForeignKey operations, which
// rank after every CreateTable.
func relocateForwardReferences(p *plan.Plan, created map[string]*ir.Table) {
	names := make([]string, 0, len(created))
	for name := range created {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		table := created[name]
		for _, key := range table.ForeignKeyNames() {
			fk := table.ForeignKeys[key]
			if fk.ReferencedTable == table.Name {
				continue
			}
			if _, isNew := created[fk.ReferencedTable]; !isNew {
				continue
			}
			if table.Name == "" {
				p.Block("foreign key %s references new table %s from a table without a name", fk.Name, fk.ReferencedTable)
				continue
			}
			if fk.Name == "" {
				p.Warn("unnamed foreign key on new table %s references new table %s and stays inline; it may fail to apply", table.Name, fk.ReferencedTable)
				continue
			}
			delete(table.ForeignKeys, key)
			p.Add(plan.AddForeignKey{ForeignKey: fk})
		}
	}
}
