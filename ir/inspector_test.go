package ir

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func expectCatalog(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("shop"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("customers", "BASE TABLE").
			AddRow("orders", "BASE TABLE"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.COLUMNS")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"TABLE_NAME", "COLUMN_NAME", "COLUMN_TYPE", "DATA_TYPE", "IS_NULLABLE",
			"COLUMN_DEFAULT", "EXTRA", "COLUMN_KEY", "ORDINAL_POSITION",
		}).
			AddRow("customers", "id", "int", "int", "NO", nil, "auto_increment", "PRI", 1).
			AddRow("customers", "email", "varchar(100)", "varchar", "NO", "", "", "UNI", 2).
			AddRow("orders", "id", "int(11)", "int", "NO", nil, "auto_increment", "PRI", 1).
			AddRow("orders", "last_updated", "datetime", "datetime", "NO", "CURRENT_TIMESTAMP", "DEFAULT_GENERATED on update CURRENT_TIMESTAMP", "", 2).
			AddRow("orders", "customer_id", "int", "int", "YES", nil, "", "MUL", 3).
			AddRow("orders", "status", "varchar(20)", "varchar", "NO", "new", "", "", 4).
			AddRow("audit_view", "id", "int", "int", "NO", nil, "", "", 1))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.STATISTICS")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"TABLE_NAME", "INDEX_NAME", "NON_UNIQUE", "SEQ_IN_INDEX", "COLUMN_NAME", "COLLATION", "INDEX_TYPE",
		}).
			AddRow("customers", "PRIMARY", 0, 1, "id", "A", "BTREE").
			AddRow("customers", "email", 0, 1, "email", "A", "BTREE").
			AddRow("orders", "PRIMARY", 0, 1, "id", "A", "BTREE").
			AddRow("orders", "ix_status", 1, 1, "status", "A", "BTREE").
			AddRow("orders", "ix_status", 1, 2, "last_updated", "D", "BTREE"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.KEY_COLUMN_USAGE")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"TABLE_NAME", "CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME",
			"UPDATE_RULE", "DELETE_RULE",
		}).
			AddRow("orders", "fk_orders_customer", "customer_id", "customers", "id", "NO ACTION", "CASCADE"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TRIGGERS")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"TRIGGER_NAME", "EVENT_OBJECT_TABLE", "ACTION_TIMING", "EVENT_MANIPULATION", "ACTION_STATEMENT",
		}).
			AddRow("trg_orders_status", "orders", "BEFORE", "INSERT", "BEGIN SET NEW.status = 'new'; END"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.ROUTINES")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"ROUTINE_NAME", "DTD_IDENTIFIER", "IS_DETERMINISTIC", "SQL_DATA_ACCESS", "SECURITY_TYPE", "ROUTINE_DEFINITION",
		}).
			AddRow("uuid_v4", "char(36)", "NO", "NO SQL", "INVOKER", "BEGIN RETURN UUID(); END"))
}

func TestInspect(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	expectCatalog(mock)

	snapshot, err := NewInspector(db).Inspect(context.Background(), InspectOptions{})
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	want := NewSnapshot("shop")

	customers := NewTable("customers")
	customers.Columns["id"] = &Column{Name: "id", Type: "int", IsPrimaryKey: true, IsAutoIncrement: true, Position: 1}
	customers.Columns["email"] = &Column{Name: "email", Type: "varchar(100)", DefaultValue: strPtr("''"), IsUnique: true, Position: 2}
	customers.Indexes["PRIMARY"] = &Index{Name: "PRIMARY", Kind: IndexKindUnique, Columns: []*IndexColumn{{Name: "id", SeqInIndex: 1, Collation: "A"}}}
	customers.Indexes["email"] = &Index{Name: "email", Kind: IndexKindUnique, Columns: []*IndexColumn{{Name: "email", SeqInIndex: 1, Collation: "A"}}}
	want.Tables["customers"] = customers

	orders := NewTable("orders")
	orders.Columns["id"] = &Column{Name: "id", Type: "int", IsPrimaryKey: true, IsAutoIncrement: true, Position: 1}
	orders.Columns["last_updated"] = &Column{Name: "last_updated", Type: "datetime", DefaultValue: strPtr("CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"), Position: 2}
	orders.Columns["customer_id"] = &Column{Name: "customer_id", Type: "int", IsNullable: true, Position: 3}
	orders.Columns["status"] = &Column{Name: "status", Type: "varchar(20)", DefaultValue: strPtr("'new'"), Position: 4}
	orders.Indexes["PRIMARY"] = &Index{Name: "PRIMARY", Kind: IndexKindUnique, Columns: []*IndexColumn{{Name: "id", SeqInIndex: 1, Collation: "A"}}}
	orders.Indexes["ix_status"] = &Index{Name: "ix_status", Columns: []*IndexColumn{
		{Name: "status", SeqInIndex: 1, Collation: "A"},
		{Name: "last_updated", SeqInIndex: 2, Collation: "D"},
	}}
	orders.ForeignKeys["fk_orders_customer"] = &ForeignKey{
		Name:              "fk_orders_customer",
		Table:             "orders",
		Columns:           []string{"customer_id"},
		ReferencedTable:   "customers",
		ReferencedColumns: []string{"id"},
		UpdateRule:        "NO ACTION",
		DeleteRule:        "CASCADE",
	}
	orders.Triggers["trg_orders_status"] = &Trigger{
		Name:      "trg_orders_status",
		Table:     "orders",
		Timing:    TimingBefore,
		Event:     EventInsert,
		Statement: "BEGIN SET NEW.status = 'new'; END",
	}
	want.Tables["orders"] = orders

	want.Functions["uuid_v4"] = &Function{
		Name:          "uuid_v4",
		ReturnType:    "char(36)",
		SQLDataAccess: "NO SQL",
		SecurityType:  "INVOKER",
		Definition:    "BEGIN RETURN UUID(); END",
	}

	if diff := cmp.Diff(want, snapshot); diff != "" {
		t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
	}
}

func TestInspect_IncludeViews(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("shop"))
	mock.ExpectQuery(`FROM information_schema.TABLES\s+WHERE TABLE_SCHEMA = \? ORDER BY TABLE_NAME`).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).AddRow("active_orders", "VIEW"))
	for _, catalog := range []string{"COLUMNS", "STATISTICS", "KEY_COLUMN_USAGE", "TRIGGERS", "ROUTINES"} {
		mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema." + catalog)).
			WithArgs("shop").
			WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}))
	}

	snapshot, err := NewInspector(db).Inspect(context.Background(), InspectOptions{IncludeViews: true})
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	view, ok := snapshot.Tables["active_orders"]
	if !ok {
		t.Fatalf("expected view active_orders in snapshot")
	}
	if !view.IsView {
		t.Errorf("expected active_orders to be marked as a view")
	}
}

func TestInspect_NoDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow(nil))

	_, err = NewInspector(db).Inspect(context.Background(), InspectOptions{})
	if !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}

func TestInspect_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("access denied")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("shop"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WithArgs("shop").
		WillReturnError(boom)

	_, err = NewInspector(db).Inspect(context.Background(), InspectOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestCatalogDefault(t *testing.T) {
	tests := []struct {
		name     string
		raw      sql.NullString
		dataType string
		extra    string
		want     *string
	}{
		{"null", sql.NullString{}, "int", "", nil},
		{"numeric", sql.NullString{String: "0", Valid: true}, "int", "", strPtr("0")},
		{"string literal", sql.NullString{String: "it's", Valid: true}, "varchar", "", strPtr("'it''s'")},
		{"empty string", sql.NullString{String: "", Valid: true}, "varchar", "", strPtr("''")},
		{"generated expression", sql.NullString{String: "CURRENT_TIMESTAMP", Valid: true}, "datetime", "DEFAULT_GENERATED", strPtr("CURRENT_TIMESTAMP")},
		{"5.7 current timestamp", sql.NullString{String: "CURRENT_TIMESTAMP", Valid: true}, "timestamp", "", strPtr("CURRENT_TIMESTAMP")},
		{"on update", sql.NullString{String: "CURRENT_TIMESTAMP", Valid: true}, "datetime", "DEFAULT_GENERATED on update CURRENT_TIMESTAMP", strPtr("CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP")},
		{"literal date", sql.NullString{String: "2000-01-01 00:00:00", Valid: true}, "datetime", "", strPtr("'2000-01-01 00:00:00'")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalogDefault(tt.raw, tt.dataType, tt.extra)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("catalogDefault() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
