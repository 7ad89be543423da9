package diff

import (
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

// diffFunctions creates desired functions the database lacks. A function whose
// definition differs is reported but never replaced.
func diffFunctions(p *plan.Plan, desired, actual *ir.Snapshot) {
	for _, name := range desired.FunctionNames() {
		fn := desired.Functions[name]
		current, ok := actual.Functions[name]
		if !ok {
			p.Add(plan.CreateFunction{Function: fn})
			continue
		}
		if !functionsEqual(current, fn) {
			p.Warn("function %s differs from its desired definition; functions are not replaced automatically", name)
		}
	}
}

func functionsEqual(a, b *ir.Function) bool {
	return ir.NormalizeType(a.ReturnType) == ir.NormalizeType(b.ReturnType) &&
		a.Deterministic == b.Deterministic &&
		ir.NormalizeBody(a.Definition) == ir.NormalizeBody(b.Definition)
}
