package diff

import (
	"slices"

	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// diffForeignKeys adds missing foreign keys and replaces differing ones
func diffForeignKeys(p *plan.Plan, want, have *ir.Table, destructive bool) {
	for _, name := range want.ForeignKeyNames() {
		fk := want.ForeignKeys[name]
		current, ok := have.ForeignKeys[name]
		if !ok {
			p.Add(plan.AddForeignKey{ForeignKey: fk.Clone()})
			continue
		}
		if foreignKeysEqual(current, fk) {
			continue
		}
		if name == "" {
			p.Warn("unnamed foreign key on %s differs and cannot be replaced", want.Name)
			continue
		}
		p.Add(
			plan.DropForeignKey{Table: want.Name, Name: name},
			plan.AddForeignKey{ForeignKey: fk.Clone()},
		)
	}

	if !destructive {
		return
	}
	for _, name := range have.ForeignKeyNames() {
		if _, ok := want.ForeignKeys[name]; ok {
			continue
		}
		p.Add(plan.DropForeignKey{Table: want.Name, Name: name})
	}
}

func foreignKeysEqual(a, b *ir.ForeignKey) bool {
	return a.ReferencedTable == b.ReferencedTable &&
		slices.Equal(a.Columns, b.Columns) &&
		slices.Equal(a.ReferencedColumns, b.ReferencedColumns) &&
		ir.NormalizeRule(a.UpdateRule) == ir.NormalizeRule(b.UpdateRule) &&
		ir.NormalizeRule(a.DeleteRule) == ir.NormalizeRule(b.DeleteRule)
}
