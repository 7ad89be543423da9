package diff

import (
	"strings"

	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// diffTriggers creates missing triggers and replaces differing ones
func diffTriggers(p *plan.Plan, want, have *ir.Table, destructive bool) {
	for _, name := range want.TriggerNames() {
		trigger := want.Triggers[name]
		current, ok := have.Triggers[name]
		if !ok {
			p.Add(plan.CreateTrigger{Trigger: trigger})
			continue
		}
		if triggersEqual(current, trigger) {
			continue
		}
		if name == "" {
			p.Warn("unnamed trigger on %s differs and cannot be replaced", want.Name)
			continue
		}
		p.Add(
			plan.DropTrigger{Table: want.Name, Name: name},
			plan.CreateTrigger{Trigger: trigger},
		)
	}

	if !destructive {
		return
	}
	for _, name := range have.TriggerNames() {
		if _, ok := want.Triggers[name]; ok {
			continue
		}
		p.Add(plan.DropTrigger{Table: want.Name, Name: name})
	}
}

// triggersEqual compares timing, event and whitespace-normalized body
func triggersEqual(a, b *ir.Trigger) bool {
	return strings.EqualFold(a.Timing, b.Timing) &&
		strings.EqualFold(a.Event, b.Event) &&
		ir.NormalizeBody(a.Statement) == ir.NormalizeBody(b.Statement)
}
