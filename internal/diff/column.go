package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

var varcharRe = regexp.MustCompile(`^varchar\((\d+)\)$`)

// diffColumns adds missing columns and alters differing ones. Columns present only
// in actual are left alone.
func diffColumns(p *plan.Plan, want, have *ir.Table, destructive bool) {
	for _, c := range want.SortedColumns() {
		column := *c
		existing, ok := have.Columns[c.Name]
		if !ok {
			p.Add(plan.AddColumn{Table: want.Name, Column: &column})
			continue
		}

		differences := columnDifferences(existing, c)
		if len(differences) == 0 {
			continue
		}

		if destructive || isSafeChange(existing, c) {
			p.Add(plan.AlterColumn{Table: want.Name, Column: &column, Differences: differences})
			continue
		}
		p.Block("column %s.%s: unsafe change (%s)", want.Name, c.Name, strings.Join(differences, "; "))
	}
}

// columnDifferences lists how new differs from old in type, nullability, default and auto-increment
func columnDifferences(old, new *ir.Column) []string {
	var differences []string

	oldType, newType := ir.NormalizeType(old.Type), ir.NormalizeType(new.Type)
	if oldType != newType {
		differences = append(differences, fmt.Sprintf("type %s -> %s", oldType, newType))
	}
	if old.IsNullable != new.IsNullable {
		differences = append(differences, fmt.Sprintf("nullable %s -> %s", yesNo(old.IsNullable), yesNo(new.IsNullable)))
	}
	if !ir.DefaultsEqual(new.Type, old.DefaultValue, new.DefaultValue) {
		differences = append(differences, fmt.Sprintf("default %s -> %s", defaultText(old.DefaultValue), defaultText(new.DefaultValue)))
	}
	if old.IsAutoIncrement != new.IsAutoIncrement {
		differences = append(differences, fmt.Sprintf("auto_increment %t -> %t", old.IsAutoIncrement, new.IsAutoIncrement))
	}
	return differences
}

// isSafeChange reports whether redefining old as new cannot lose data or reject
// existing rows: the type is unchanged or widened, nullability only loosens, and
// the auto-increment flag is unchanged. Default changes are always safe.
func isSafeChange(old, new *ir.Column) bool {
	if !isSafeTypeChange(ir.NormalizeType(old.Type), ir.NormalizeType(new.Type)) {
		return false
	}
	if old.IsNullable && !new.IsNullable {
		return false
	}
	return old.IsAutoIncrement == new.IsAutoIncrement
}

func isSafeTypeChange(oldType, newType string) bool {
	if oldType == newType {
		return true
	}
	if oldType == "int" && newType == "bigint" {
		return true
	}
	if oldType == "int unsigned" && newType == "bigint unsigned" {
		return true
	}

	oldMatch, newMatch := varcharRe.FindStringSubmatch(oldType), varcharRe.FindStringSubmatch(newType)
	if oldMatch == nil || newMatch == nil {
		return false
	}
	oldSize, err := strconv.Atoi(oldMatch[1])
	if err != nil {
		return false
	}
	newSize, err := strconv.Atoi(newMatch[1])
	if err != nil {
		return false
	}
	return newSize >= oldSize
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func defaultText(v *string) string {
	if v == nil {
		return "none"
	}
	return *v
}
