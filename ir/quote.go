package ir

import (
	"strings"
)

// QuoteIdentifier wraps an identifier in back-ticks, doubling any embedded back-tick
func QuoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// QuoteIdentifiers quotes each identifier and joins them with commas
func QuoteIdentifiers(identifiers []string) string {
	quoted := make([]string, len(identifiers))
	for i, id := range identifiers {
		quoted[i] = QuoteIdentifier(id)
	}
	return strings.Join(quoted, ",")
}

// QuoteLiteral renders a string as a single-quoted SQL literal
func QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
