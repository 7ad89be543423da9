package myschema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/testutil"
)

func shopModelSet() *ModelSet {
	return &ModelSet{
		Name: "shop",
		Models: []Model{
			{
				Type:     "Customer",
				Table:    "customers",
				Database: "shop",
				Audit:    true,
				Columns: []model.Column{
					{Property: "Email", Type: model.TypeString, Size: 100, Unique: true},
					{Property: "Name", Type: model.TypeString, Size: 80, Indexes: []model.IndexMember{{Key: "ix_customers_name"}}},
				},
			},
			{
				Type:     "Order",
				Table:    "orders",
				Database: "shop",
				Audit:    true,
				Columns: []model.Column{
					{Property: "Code", Type: model.TypeString, Size: 50, Unique: true},
					{Property: "Total", Type: model.TypeDecimal, Precision: 12, Scale: 2},
					{Property: "CustomerId", Type: model.TypeInt},
				},
				ForeignKeys: []model.ForeignKey{
					{Properties: []string{"CustomerId"}, References: "Customer", ReferencedProperties: []string{"Id"}},
				},
			},
		},
	}
}

func TestIntegration_PlanApplyReplan(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testutil.ShouldSkipTest(t, "apply/round_trip", testutil.MajorVersion())

	ctx := context.Background()
	container := testutil.SetupMySQLContainer(ctx, t)
	defer container.Terminate(ctx, t)

	client := NewClient(ConnectionConfig{
		Host:     container.Host,
		Port:     container.Port,
		User:     container.User,
		Password: container.Password,
	})
	set := shopModelSet()

	plans, err := client.PlanAll(ctx, PlanOptions{ModelSet: set, Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("PlanAll() error: %v", err)
	}
	if len(plans) != 1 || plans[0].DatabaseName != "shop" {
		t.Fatalf("expected one plan for shop, got %d", len(plans))
	}
	first := plans[0]
	if first.IsEmpty() || first.HasBlockers() {
		t.Fatalf("expected a plan that creates the schema, got %d operations and blockers %v", len(first.Operations), first.Blockers)
	}

	result, err := client.Apply(ctx, ApplyOptions{Plan: first})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if result.Skipped || result.StatementsExecuted == 0 {
		t.Fatalf("unexpected apply result: %+v", result)
	}

	replan, err := client.Plan(ctx, "shop", PlanOptions{ModelSet: set})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if !replan.IsEmpty() || replan.HasBlockers() {
		var descriptions []string
		for _, op := range replan.Operations {
			descriptions = append(descriptions, op.Description())
		}
		t.Errorf("re-plan after apply should be empty, got operations %v and blockers %v", descriptions, replan.Blockers)
	}

	// The ledger remembers the script under the plan's migration identifier.
	again, err := ApplyScript(ctx, client.conn, "shop", "20240301T120000Z_shop.sql", client.Render(first))
	if err != nil {
		t.Fatalf("ApplyScript() error: %v", err)
	}
	if !again.Skipped {
		t.Errorf("re-applying a recorded migration should be skipped, got %+v", again)
	}

	// Applying the same plan again finds it in the ledger before checking its source.
	again, err = client.Apply(ctx, ApplyOptions{Plan: first})
	if err != nil {
		t.Fatalf("re-applying the same plan should succeed, got %v", err)
	}
	if !again.Skipped || again.StatementsExecuted != 0 {
		t.Errorf("re-applying the same plan should be skipped, got %+v", again)
	}

	// Under a new identifier the first plan is stale: it was computed against an empty database.
	_, err = client.Apply(ctx, ApplyOptions{Plan: first, MigrationID: "stale"})
	if !errors.Is(err, ErrStalePlan) {
		t.Errorf("expected ErrStalePlan, got %v", err)
	}
}

func TestIntegration_UnsafeChangeBlocked(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container := testutil.SetupMySQLContainer(ctx, t)
	defer container.Terminate(ctx, t)

	client := NewClient(ConnectionConfig{
		Host:     container.Host,
		Port:     container.Port,
		User:     container.User,
		Password: container.Password,
	})

	if _, err := container.Conn.ExecContext(ctx, "CREATE DATABASE shop"); err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if _, err := container.Conn.ExecContext(ctx, "CREATE TABLE shop.items (id int NOT NULL AUTO_INCREMENT PRIMARY KEY, code varchar(100) NOT NULL)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	set := &ModelSet{Name: "shop", Models: []Model{{
		Type:     "Item",
		Table:    "items",
		Database: "shop",
		Columns: []model.Column{
			{Property: "Id", Type: model.TypeInt, PrimaryKey: true, AutoIncrement: true},
			{Property: "Code", Type: model.TypeString, Size: 50},
		},
	}}}

	p, err := client.Plan(ctx, "shop", PlanOptions{ModelSet: set})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if !p.HasBlockers() || !p.IsEmpty() {
		t.Fatalf("narrowing a column should only produce a blocker, got %d operations and blockers %v", len(p.Operations), p.Blockers)
	}

	_, err = client.Apply(ctx, ApplyOptions{Plan: p})
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("applying a blocked plan should fail with ErrBlocked, got %v", err)
	}
}
