package diff

import (
	"sort"

	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// effectiveIndexes returns the table's secondary indexes plus the single-column
// unique keys implied by unique columns that no index covers yet. PRIMARY is never included.
func effectiveIndexes(t *ir.Table) map[string]*ir.Index {
	indexes := make(map[string]*ir.Index, len(t.Indexes))
	for name, idx := range t.Indexes {
		if name != ir.PrimaryIndexName {
			indexes[name] = idx
		}
	}
	for _, key := range t.UniqueColumnKeys() {
		indexes[key.Name] = key
	}
	return indexes
}

// diffIndexes creates missing indexes and rebuilds differing ones. With destructive set,
// indexes no model describes are dropped, except those MySQL created to back a foreign key.
func diffIndexes(p *plan.Plan, want, have *ir.Table, destructive bool) {
	wanted := effectiveIndexes(want)
	existing := effectiveIndexes(have)

	for _, name := range sortedNames(wanted) {
		idx := wanted[name]
		current, ok := existing[name]
		if !ok {
			p.Add(plan.CreateIndex{Table: want.Name, Index: idx})
			continue
		}
		if indexesEqual(current, idx) {
			continue
		}
		if name == "" {
			p.Warn("unnamed index on %s differs and cannot be rebuilt", want.Name)
			continue
		}
		p.Add(
			plan.DropIndex{Table: want.Name, Name: name},
			plan.CreateIndex{Table: want.Name, Index: idx},
		)
	}

	if !destructive {
		return
	}
	for _, name := range sortedNames(existing) {
		if _, ok := wanted[name]; ok {
			continue
		}
		if _, backsForeignKey := have.ForeignKeys[name]; backsForeignKey {
			continue
		}
		if name == "" {
			p.Warn("unnamed index on %s is not described and cannot be dropped", want.Name)
			continue
		}
		p.Add(plan.DropIndex{Table: want.Name, Name: name})
	}
}

// indexesEqual compares kind, column order and per-column collation
func indexesEqual(a, b *ir.Index) bool {
	if a.Kind != b.Kind {
		return false
	}
	ac, bc := a.SortedColumns(), b.SortedColumns()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i].Name != bc[i].Name {
			return false
		}
		if !collationsEqual(ac[i].Collation, bc[i].Collation) {
			return false
		}
	}
	return true
}

// collationsEqual treats a missing collation as ascending
func collationsEqual(a, b string) bool {
	if a == "" {
		a = ir.CollationAsc
	}
	if b == "" {
		b = ir.CollationAsc
	}
	return a == b
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
