package desired

import (
	"errors"
	"strings"
	"testing"

	"github.com/myschema/myschema/internal/model"
)

func TestColumnName(t *testing.T) {
	tests := []struct {
		property string
		want     string
	}{
		{"Id", "id"},
		{"Active", "active"},
		{"InternalId", "internal_id"},
		{"CreateDate", "create_date"},
		{"LastUpdated", "last_updated"},
		{"OrderCode", "order_code"},
		{"HTTPStatus", "http_status"},
		{"Address2Line", "address2_line"},
		{"CustomerInternalId", "customer_InternalId"},
		{"ParentOrderInternalId", "parent_order_InternalId"},
		{"already_snake", "already_snake"},
	}

	for _, tt := range tests {
		t.Run(tt.property, func(t *testing.T) {
			if got := ColumnName(tt.property); got != tt.want {
				t.Errorf("ColumnName(%q) = %q, want %q", tt.property, got, tt.want)
			}
		})
	}
}

func TestForeignKeyName(t *testing.T) {
	if got := ForeignKeyName("orders", []string{"customer_id"}); got != "fk_orders_customer_id" {
		t.Errorf("ForeignKeyName() = %q", got)
	}

	long := ForeignKeyName(strings.Repeat("t", 60), []string{"customer_id"})
	if len(long) != maxIdentifierLength {
		t.Errorf("expected derived name truncated to %d chars, got %d", maxIdentifierLength, len(long))
	}
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		name   string
		column model.Column
		want   string
	}{
		{"string default size", model.Column{Type: model.TypeString}, "varchar(255)"},
		{"string sized", model.Column{Type: model.TypeString, Size: 50}, "varchar(50)"},
		{"text", model.Column{Type: model.TypeText}, "text"},
		{"medium text", model.Column{Type: model.TypeText, Size: 100000}, "mediumtext"},
		{"long text", model.Column{Type: model.TypeText, Size: 20000000}, "longtext"},
		{"int", model.Column{Type: model.TypeInt}, "int"},
		{"int size 8", model.Column{Type: model.TypeInt, Size: 8}, "bigint"},
		{"long", model.Column{Type: model.TypeLong}, "bigint"},
		{"short", model.Column{Type: model.TypeShort}, "smallint"},
		{"decimal default", model.Column{Type: model.TypeDecimal}, "decimal(18,2)"},
		{"decimal sized", model.Column{Type: model.TypeDecimal, Precision: 12, Scale: 2}, "decimal(12,2)"},
		{"decimal whole", model.Column{Type: model.TypeDecimal, Precision: 10}, "decimal(10,0)"},
		{"double", model.Column{Type: model.TypeFloat}, "double"},
		{"bool", model.Column{Type: model.TypeBool}, "tinyint(1)"},
		{"date", model.Column{Type: model.TypeDate}, "datetime"},
		{"binary", model.Column{Type: model.TypeBinary}, "blob"},
		{"identifier", model.Column{Type: model.TypeIdentifier}, "varchar(45)"},
		{"json", model.Column{Type: model.TypeJSON}, "json"},
		{"sql override", model.Column{Type: model.TypeInt, SQLType: "INT(10) UNSIGNED"}, "int unsigned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SQLType(tt.column)
			if err != nil {
				t.Fatalf("SQLType() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SQLType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLType_Errors(t *testing.T) {
	if _, err := SQLType(model.Column{Property: "Email"}); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
	if _, err := SQLType(model.Column{Property: "Email", Type: "varchar"}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
