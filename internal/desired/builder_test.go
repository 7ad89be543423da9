package desired

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/internal/plan"
	"github.com/myschema/myschema/ir"
)

func strPtr(s string) *string { return &s }

func shopModels() []model.Model {
	return []model.Model{
		{
			Type:     "Customer",
			Table:    "customers",
			Database: "shop",
			Audit:    true,
			Columns: []model.Column{
				{Property: "Email", Type: model.TypeString, Size: 100, Unique: true},
				{Property: "Name", Type: model.TypeString, Size: 80, Indexes: []model.IndexMember{{Key: "ix_name_email"}}},
				{Property: "Country", Type: model.TypeString, Size: 2, Indexes: []model.IndexMember{{Key: "ix_name_email", Descending: true}}},
			},
		},
		{
			Type:     "Order",
			Table:    "orders",
			Database: "shop",
			Columns: []model.Column{
				{Property: "Id", Type: model.TypeInt, PrimaryKey: true, AutoIncrement: true},
				{Property: "OrderCode", Type: model.TypeString, Size: 50, Unique: true},
				{Property: "Notes", Type: model.TypeText, Nullable: true},
				{Property: "CustomerId", Type: model.TypeInt},
			},
			ForeignKeys: []model.ForeignKey{
				{Properties: []string{"CustomerId"}, References: "Customer", ReferencedProperties: []string{"Id"}, OnDelete: "cascade"},
			},
		},
		{
			Type:     "Invoice",
			Table:    "invoices",
			Database: "billing",
			Columns: []model.Column{
				{Property: "Id", Type: model.TypeLong, PrimaryKey: true},
			},
		},
	}
}

func TestBuild_Orders(t *testing.T) {
	snapshot, err := Build("shop", shopModels())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if diff := cmp.Diff([]string{"customers", "orders"}, snapshot.TableNames()); diff != "" {
		t.Fatalf("tables mismatch (-want +got):\n%s", diff)
	}

	want := ir.NewTable("orders")
	want.Columns["id"] = &ir.Column{Name: "id", Type: "int", IsPrimaryKey: true, IsAutoIncrement: true, Position: 1}
	want.Columns["customer_id"] = &ir.Column{Name: "customer_id", Type: "int", Position: 2}
	want.Columns["notes"] = &ir.Column{Name: "notes", Type: "text", IsNullable: true, Position: 3}
	want.Columns["order_code"] = &ir.Column{Name: "order_code", Type: "varchar(50)", IsUnique: true, Position: 4}
	want.ForeignKeys["fk_orders_customer_id"] = &ir.ForeignKey{
		Name:              "fk_orders_customer_id",
		Table:             "orders",
		Columns:           []string{"customer_id"},
		ReferencedTable:   "customers",
		ReferencedColumns: []string{"id"},
		UpdateRule:        "NO ACTION",
		DeleteRule:        "CASCADE",
	}

	if diff := cmp.Diff(want, snapshot.Tables["orders"]); diff != "" {
		t.Errorf("orders mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_AuditColumns(t *testing.T) {
	snapshot, err := Build("shop", shopModels())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	customers := snapshot.Tables["customers"]

	var order []string
	for _, c := range customers.SortedColumns() {
		order = append(order, c.Name)
	}
	wantOrder := []string{"id", "active", "internal_id", "create_date", "last_updated", "country", "email", "name"}
	if diff := cmp.Diff(wantOrder, order); diff != "" {
		t.Errorf("column order mismatch (-want +got):\n%s", diff)
	}

	wantAudit := map[string]*ir.Column{
		"active":       {Name: "active", Type: "tinyint(1)", DefaultValue: strPtr("1"), Position: 2},
		"internal_id":  {Name: "internal_id", Type: "varchar(45)", IsNullable: true, Position: 3},
		"create_date":  {Name: "create_date", Type: "datetime", DefaultValue: strPtr("CURRENT_TIMESTAMP"), Position: 4},
		"last_updated": {Name: "last_updated", Type: "datetime", DefaultValue: strPtr("CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"), Position: 5},
	}
	for name, want := range wantAudit {
		if diff := cmp.Diff(want, customers.Columns[name]); diff != "" {
			t.Errorf("column %s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestBuild_TimestampInvariants(t *testing.T) {
	models := []model.Model{{
		Type:     "Event",
		Table:    "events",
		Database: "shop",
		Columns: []model.Column{
			{Property: "CreateDate", Type: model.TypeDateTime, Nullable: true, Default: strPtr("'2000-01-01 00:00:00'")},
			{Property: "LastUpdated", Type: model.TypeDateTime, Nullable: true, Default: strPtr("NULL")},
		},
	}}

	snapshot, err := Build("shop", models)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	events := snapshot.Tables["events"]

	createDate := events.Columns["create_date"]
	if createDate.IsNullable || *createDate.DefaultValue != "'2000-01-01 00:00:00'" {
		t.Errorf("create_date should be NOT NULL and keep its supplied default, got %+v", createDate)
	}
	lastUpdated := events.Columns["last_updated"]
	if lastUpdated.IsNullable || *lastUpdated.DefaultValue != "CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" {
		t.Errorf("last_updated should be forced NOT NULL with auto-update default, got %+v", lastUpdated)
	}
}

func TestBuild_IndexGroups(t *testing.T) {
	snapshot, err := Build("shop", shopModels())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := &ir.Index{
		Name: "ix_name_email",
		Columns: []*ir.IndexColumn{
			{Name: "country", SeqInIndex: 1, Collation: ir.CollationDesc},
			{Name: "name", SeqInIndex: 2, Collation: ir.CollationAsc},
		},
	}
	if diff := cmp.Diff(want, snapshot.Tables["customers"].Indexes["ix_name_email"]); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_InternalIDTrigger(t *testing.T) {
	snapshot, err := Build("shop", shopModels())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	trigger, ok := snapshot.Tables["customers"].Triggers["trg_customers_internal_id"]
	if !ok {
		t.Fatalf("expected internal_id trigger on customers")
	}
	if trigger.Timing != ir.TimingBefore || trigger.Event != ir.EventInsert || trigger.Table != "customers" {
		t.Errorf("unexpected trigger %+v", trigger)
	}
	if len(snapshot.Tables["orders"].Triggers) != 0 {
		t.Errorf("orders has no internal_id column and should get no trigger")
	}

	fn, ok := snapshot.Functions[HelperFunctionName]
	if !ok {
		t.Fatalf("expected helper function %s", HelperFunctionName)
	}
	if fn.ReturnType != "char(36)" || fn.Deterministic {
		t.Errorf("unexpected helper function %+v", fn)
	}
}

func TestBuild_NoHelperWithoutTriggers(t *testing.T) {
	snapshot, err := Build("billing", shopModels()[2:])
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(snapshot.Functions) != 0 {
		t.Errorf("expected no functions, got %v", snapshot.FunctionNames())
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	first, err := Build("shop", shopModels())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	second, err := Build("shop", shopModels())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Build() is not deterministic (-first +second):\n%s", diff)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]model.Model) []model.Model
		want   error
	}{
		{
			name: "cross database reference",
			mutate: func(models []model.Model) []model.Model {
				models[1].ForeignKeys = append(models[1].ForeignKeys, model.ForeignKey{
					Properties: []string{"Id"}, References: "Invoice", ReferencedProperties: []string{"Id"},
				})
				return models
			},
			want: ErrCrossDatabaseReference,
		},
		{
			name: "unresolved local property",
			mutate: func(models []model.Model) []model.Model {
				models[1].ForeignKeys[0].Properties = []string{"ClientId"}
				return models
			},
			want: ErrUnresolvedProperty,
		},
		{
			name: "unresolved referenced property",
			mutate: func(models []model.Model) []model.Model {
				models[1].ForeignKeys[0].ReferencedProperties = []string{"Uuid"}
				return models
			},
			want: ErrUnresolvedProperty,
		},
		{
			name: "unresolved model type",
			mutate: func(models []model.Model) []model.Model {
				models[1].ForeignKeys[0].References = "Client"
				return models
			},
			want: ErrUnresolvedType,
		},
		{
			name: "missing table",
			mutate: func(models []model.Model) []model.Model {
				models[1].Table = ""
				return models
			},
			want: ErrMissingField,
		},
		{
			name: "missing column type",
			mutate: func(models []model.Model) []model.Model {
				models[1].Columns[2].Type = ""
				return models
			},
			want: ErrMissingField,
		},
		{
			name: "conflicting index kinds",
			mutate: func(models []model.Model) []model.Model {
				models[0].Columns[2].Indexes[0].Kind = "unique"
				return models
			},
			want: ErrConflictingIndexKind,
		},
		{
			name: "duplicate column",
			mutate: func(models []model.Model) []model.Model {
				models[1].Columns = append(models[1].Columns, model.Column{Property: "Notes", Type: model.TypeText})
				return models
			},
			want: ErrDuplicateDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("shop", tt.mutate(shopModels()))
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuild_UniqueColumnInUniqueIndexGroup(t *testing.T) {
	models := []model.Model{{
		Type:     "Item",
		Table:    "items",
		Database: "shop",
		Columns: []model.Column{
			{Property: "Id", Type: model.TypeInt, PrimaryKey: true, AutoIncrement: true},
			{Property: "Code", Type: model.TypeString, Size: 30, Unique: true, Indexes: []model.IndexMember{{Key: "code", Kind: "unique"}}},
		},
	}}

	snapshot, err := Build("shop", models)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	sql := plan.RenderCreateTable(snapshot.Tables["items"], false)
	if n := strings.Count(sql, "UNIQUE KEY `code`"); n != 1 {
		t.Errorf("expected the code key once, found %d times:\n%s", n, sql)
	}
}
