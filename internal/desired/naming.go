package desired

import (
	"strings"
	"unicode"

	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/ir"
)

const internalIDSuffix = "InternalId"

// maxIdentifierLength is MySQL's limit for table, column, index and constraint names
const maxIdentifierLength = 64

// ColumnName converts a property name to its column name.
//
//	OrderCode          -> order_code
//	HTTPStatus         -> http_status
//	InternalId         -> internal_id
//	CustomerInternalId -> customer_InternalId
func ColumnName(property string) string {
	if property == model.PropertyInternalID {
		return ir.ColumnInternalID
	}
	if prefix, ok := strings.CutSuffix(property, internalIDSuffix); ok && prefix != "" {
		return SnakeCase(strings.TrimRight(prefix, "_")) + "_" + internalIDSuffix
	}
	return SnakeCase(property)
}

// SnakeCase converts CamelCase to snake_case, keeping acronyms together
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ForeignKeyName derives a constraint name from the table and its local columns
func ForeignKeyName(table string, columns []string) string {
	name := "fk_" + table + "_" + strings.Join(columns, "_")
	return truncateIdentifier(name)
}

// InternalIDTriggerName is the name of the trigger that fills a table's internal_id
func InternalIDTriggerName(table string) string {
	return truncateIdentifier("trg_" + table + "_" + ir.ColumnInternalID)
}

func truncateIdentifier(name string) string {
	if len(name) <= maxIdentifierLength {
		return name
	}
	return name[:maxIdentifierLength]
}
