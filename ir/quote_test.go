package ir

import (
	"testing"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		expected   string
	}{
		{"simple lowercase", "users", "`users`"},
		{"reserved word", "order", "`order`"},
		{"mixed case", "customer_InternalId", "`customer_InternalId`"},
		{"embedded back-tick", "we`ird", "`we``ird`"},
		{"only back-ticks", "``", "``````"},
		{"empty string", "", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteIdentifier(tt.identifier); got != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.identifier, got, tt.expected)
			}
		})
	}
}

func TestQuoteIdentifiers(t *testing.T) {
	got := QuoteIdentifiers([]string{"a", "b`c"})
	if got != "`a`,`b``c`" {
		t.Errorf("QuoteIdentifiers = %q", got)
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"abc", "'abc'"},
		{"it's", "'it''s'"},
		{`back\slash`, `'back\\slash'`},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := QuoteLiteral(tt.value); got != tt.expected {
			t.Errorf("QuoteLiteral(%q) = %q, want %q", tt.value, got, tt.expected)
		}
	}
}
