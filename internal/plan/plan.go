package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/myschema/myschema/internal/color"
	"github.com/myschema/myschema/internal/version"
)

// Plan is the ordered list of operations that moves one database's actual schema toward its desired schema
type Plan struct {
	DatabaseName string      `json:"database_name"`
	Operations   []Operation `json:"-"`
	Warnings     []string    `json:"warnings"`
	Blockers     []string    `json:"blockers"`
	StampUTC     time.Time   `json:"stamp_utc"`

	// SourceFingerprint identifies the actual snapshot the plan was computed against
	SourceFingerprint string `json:"source_fingerprint,omitempty"`
}

// ObjectChange is the JSON view of one operation
type ObjectChange struct {
	Address     string    `json:"address"`
	Type        string    `json:"type"`
	Action      string    `json:"action"`
	Kind        Kind      `json:"kind"`
	Rank        int       `json:"rank"`
	Description string    `json:"description"`
	Operation   Operation `json:"operation"`
}

// PlanJSON represents the structured JSON output format
type PlanJSON struct {
	Version         string         `json:"version"`
	MyschemaVersion string         `json:"myschema_version"`
	Database        string         `json:"database"`
	StampUTC        time.Time      `json:"stamp_utc"`
	Summary         PlanSummary    `json:"summary"`
	ObjectChanges   []ObjectChange `json:"object_changes"`
	Warnings        []string       `json:"warnings"`
	Blockers        []string       `json:"blockers"`

	SourceFingerprint string `json:"source_fingerprint,omitempty"`
}

// PlanSummary provides counts of changes by type
type PlanSummary struct {
	Add     int                    `json:"add"`
	Change  int                    `json:"change"`
	Destroy int                    `json:"destroy"`
	Total   int                    `json:"total"`
	ByType  map[string]TypeSummary `json:"by_type"`
}

// TypeSummary provides counts for a specific object type
type TypeSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
}

// ObjectType names the kinds of objects a plan touches, in display order
type ObjectType string

const (
	ObjectTypeFunction   ObjectType = "functions"
	ObjectTypeTable      ObjectType = "tables"
	ObjectTypeColumn     ObjectType = "columns"
	ObjectTypeIndex      ObjectType = "indexes"
	ObjectTypeForeignKey ObjectType = "foreign_keys"
	ObjectTypeTrigger    ObjectType = "triggers"
)

func getObjectOrder() []ObjectType {
	return []ObjectType{
		ObjectTypeFunction,
		ObjectTypeTable,
		ObjectTypeColumn,
		ObjectTypeIndex,
		ObjectTypeForeignKey,
		ObjectTypeTrigger,
	}
}

// New creates an empty plan for a database
func New(databaseName string, stamp time.Time) *Plan {
	return &Plan{
		DatabaseName: databaseName,
		StampUTC:     stamp.UTC(),
	}
}

// Add appends operations
func (p *Plan) Add(ops ...Operation) {
	p.Operations = append(p.Operations, ops...)
}

// Warn records a non-fatal notice
func (p *Plan) Warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Block records an unsafe change that was not emitted
func (p *Plan) Block(format string, args ...any) {
	p.Blockers = append(p.Blockers, fmt.Sprintf(format, args...))
}

// Sort orders the operations by rank, then description
func (p *Plan) Sort() {
	SortOperations(p.Operations)
}

// HasBlockers reports whether any unsafe change was withheld
func (p *Plan) HasBlockers() bool {
	return len(p.Blockers) > 0
}

// IsEmpty reports whether the plan has no operations
func (p *Plan) IsEmpty() bool {
	return len(p.Operations) == 0
}

// ToSQL renders the plan with the default renderer
func (p *Plan) ToSQL() string {
	return NewRenderer().Render(p)
}

// ToJSON returns the plan as structured JSON
func (p *Plan) ToJSON() (string, error) {
	data, err := json.MarshalIndent(p.convertToStructuredJSON(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data), nil
}

// HumanColored returns a human-readable summary of the plan with color support
func (p *Plan) HumanColored(enableColor bool) string {
	c := color.New(enableColor)
	var summary strings.Builder

	planJSON := p.convertToStructuredJSON()

	fmt.Fprintf(&summary, "%s %s\n\n", c.Bold("Database:"), c.Cyan(p.DatabaseName))

	if planJSON.Summary.Total == 0 {
		summary.WriteString("No changes detected.\n")
	} else {
		summary.WriteString(c.FormatPlanHeader(planJSON.Summary.Add, planJSON.Summary.Change, planJSON.Summary.Destroy) + "\n\n")

		summary.WriteString(c.Bold("Summary by type:") + "\n")
		for _, objType := range getObjectOrder() {
			objTypeStr := string(objType)
			if typeSummary, exists := planJSON.Summary.ByType[objTypeStr]; exists {
				summary.WriteString(c.FormatSummaryLine(objTypeStr, typeSummary.Add, typeSummary.Change, typeSummary.Destroy) + "\n")
			}
		}
		summary.WriteString("\n")

		for _, objType := range getObjectOrder() {
			p.writeDetailedChanges(&summary, string(objType), planJSON.ObjectChanges, c)
		}
	}

	if len(p.Blockers) > 0 {
		summary.WriteString(c.Destroy("Blockers:") + "\n")
		for _, b := range p.Blockers {
			summary.WriteString(c.Blocker(b) + "\n")
		}
		summary.WriteString("\n")
	}
	if len(p.Warnings) > 0 {
		summary.WriteString(c.Change("Warnings:") + "\n")
		for _, w := range p.Warnings {
			summary.WriteString(c.Warning(w) + "\n")
		}
		summary.WriteString("\n")
	}

	return summary.String()
}

func (p *Plan) writeDetailedChanges(summary *strings.Builder, objType string, changes []ObjectChange, c *color.Color) {
	var matching []ObjectChange
	for _, change := range changes {
		if change.Type == objType {
			matching = append(matching, change)
		}
	}
	if len(matching) == 0 {
		return
	}

	displayName := strings.ToUpper(objType[:1]) + strings.ReplaceAll(objType[1:], "_", " ")
	fmt.Fprintf(summary, "%s:\n", c.Bold(displayName))
	for _, change := range matching {
		fmt.Fprintf(summary, "  %s %s\n", c.PlanSymbol(change.Action), change.Address)
	}
	summary.WriteString("\n")
}

// convertToStructuredJSON converts the plan to its structured JSON form.
// Object changes keep plan order.
func (p *Plan) convertToStructuredJSON() *PlanJSON {
	planJSON := &PlanJSON{
		Version:         version.PlanFormat(),
		MyschemaVersion: version.App(),
		Database:        p.DatabaseName,
		StampUTC:        p.StampUTC.Truncate(time.Second),
		Summary: PlanSummary{
			ByType: make(map[string]TypeSummary),
		},
		ObjectChanges: []ObjectChange{},
		Warnings:      append([]string{}, p.Warnings...),
		Blockers:      append([]string{}, p.Blockers...),

		SourceFingerprint: p.SourceFingerprint,
	}

	for _, op := range p.Operations {
		objType, action, address := classify(op)
		planJSON.ObjectChanges = append(planJSON.ObjectChanges, ObjectChange{
			Address:     address,
			Type:        string(objType),
			Action:      action,
			Kind:        op.Kind(),
			Rank:        op.Rank(),
			Description: op.Description(),
			Operation:   op,
		})
	}

	p.calculateSummary(planJSON)
	return planJSON
}

// classify maps an operation to its object type, action and display address
func classify(op Operation) (ObjectType, string, string) {
	switch o := op.(type) {
	case CreateFunction:
		return ObjectTypeFunction, "create", o.Function.Name
	case CreateTable:
		return ObjectTypeTable, "create", o.Table.Name
	case AddColumn:
		return ObjectTypeColumn, "create", o.Table + "." + o.Column.Name
	case AlterColumn:
		return ObjectTypeColumn, "update", o.Table + "." + o.Column.Name
	case DropIndex:
		return ObjectTypeIndex, "delete", o.Table + "." + o.Name
	case CreateIndex:
		return ObjectTypeIndex, "create", o.Table + "." + o.Index.Name
	case DropForeignKey:
		return ObjectTypeForeignKey, "delete", o.Table + "." + o.Name
	case AddForeignKey:
		return ObjectTypeForeignKey, "create", o.ForeignKey.Table + "." + o.ForeignKey.Name
	case DropTrigger:
		return ObjectTypeTrigger, "delete", o.Table + "." + o.Name
	case CreateTrigger:
		return ObjectTypeTrigger, "create", o.Trigger.Table + "." + o.Trigger.Name
	}
	panic(fmt.Sprintf("unknown operation %T", op))
}

func (p *Plan) calculateSummary(planJSON *PlanJSON) {
	typeStats := make(map[string]TypeSummary)

	for _, change := range planJSON.ObjectChanges {
		stats := typeStats[change.Type]
		switch change.Action {
		case "create":
			stats.Add++
			planJSON.Summary.Add++
		case "update":
			stats.Change++
			planJSON.Summary.Change++
		case "delete":
			stats.Destroy++
			planJSON.Summary.Destroy++
		}
		typeStats[change.Type] = stats
	}

	planJSON.Summary.ByType = typeStats
	planJSON.Summary.Total = planJSON.Summary.Add + planJSON.Summary.Change + planJSON.Summary.Destroy
}
