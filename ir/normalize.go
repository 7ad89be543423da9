package ir

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	spaceBeforeParen  = regexp.MustCompile(`\s+\(`)
	spaceInsideParens = regexp.MustCompile(`\(\s+|\s+\)`)
	spaceAroundComma  = regexp.MustCompile(`\s*,\s*`)
	intDisplayWidthRe = regexp.MustCompile(`^(tinyint|smallint|mediumint|int|bigint)\(\d+\)`)
	nowCallRe         = regexp.MustCompile(`(?i)\b(current_timestamp|now)\(\s*\)`)
	currentTSRe       = regexp.MustCompile(`(?i)\bcurrent_timestamp\b`)
	onUpdateRe        = regexp.MustCompile(`(?i)\bon\s+update\b`)
	numericLiteralRe  = regexp.MustCompile(`^([+-]?)(\d*)(?:\.(\d*))?$`)
)

// typeAliases maps type spellings MySQL accepts to the spelling it reports back
var typeAliases = map[string]string{
	"integer": "int",
	"bool":    "tinyint(1)",
	"boolean": "tinyint(1)",
	"dec":     "decimal",
	"numeric": "decimal",
}

// NormalizeType returns the canonical spelling of a column type so that the
// builder's output and the catalog's COLUMN_TYPE compare equal.
func NormalizeType(columnType string) string {
	t := strings.ToLower(strings.TrimSpace(columnType))
	t = whitespaceRe.ReplaceAllString(t, " ")
	t = spaceBeforeParen.ReplaceAllString(t, "(")
	t = spaceInsideParens.ReplaceAllStringFunc(t, strings.TrimSpace)
	t = spaceAroundComma.ReplaceAllString(t, ",")

	base, rest := t, ""
	if i := strings.IndexAny(t, "( "); i >= 0 {
		base, rest = t[:i], t[i:]
	}
	if alias, ok := typeAliases[base]; ok {
		if strings.Contains(alias, "(") && strings.HasPrefix(rest, "(") {
			// bool(1) and friends: the alias already carries the width
			if end := strings.Index(rest, ")"); end >= 0 {
				rest = rest[end+1:]
			}
		}
		t = alias + rest
	}

	// Integer display widths are deprecated and dropped by MySQL 8, except the tinyint(1) boolean idiom
	if !strings.HasPrefix(t, "tinyint(1)") {
		t = intDisplayWidthRe.ReplaceAllString(t, "$1")
	}
	return t
}

// NormalizeDefault canonicalizes a default-value SQL fragment. Quoted literals are returned untouched
// apart from trimming; expressions get a consistent spelling of CURRENT_TIMESTAMP and ON UPDATE.
func NormalizeDefault(value string) string {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "'") || strings.HasPrefix(v, `"`) {
		return v
	}
	v = whitespaceRe.ReplaceAllString(v, " ")
	v = nowCallRe.ReplaceAllString(v, "CURRENT_TIMESTAMP")
	v = currentTSRe.ReplaceAllString(v, "CURRENT_TIMESTAMP")
	v = onUpdateRe.ReplaceAllString(v, "ON UPDATE")
	if strings.EqualFold(v, "null") {
		return "NULL"
	}
	return v
}

// NormalizeColumnDefault is NormalizeDefault plus, for numeric column types, a canonical
// spelling of numeric literals: 0, '0' and 0.00 are all 0 on a decimal(10,2) column.
func NormalizeColumnDefault(columnType, value string) string {
	v := NormalizeDefault(value)
	if !isNumericType(NormalizeType(columnType)) {
		return v
	}

	literal := v
	if len(literal) >= 2 && literal[0] == '\'' && literal[len(literal)-1] == '\'' {
		literal = literal[1 : len(literal)-1]
	}
	m := numericLiteralRe.FindStringSubmatch(literal)
	if m == nil || (m[2] == "" && m[3] == "") {
		return v
	}

	out := strings.TrimLeft(m[2], "0")
	if out == "" {
		out = "0"
	}
	if frac := strings.TrimRight(m[3], "0"); frac != "" {
		out += "." + frac
	}
	if m[1] == "-" && out != "0" {
		out = "-" + out
	}
	return out
}

func isNumericType(columnType string) bool {
	base := columnType
	if i := strings.IndexAny(base, "( "); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "tinyint", "smallint", "mediumint", "int", "bigint", "decimal", "float", "double":
		return true
	}
	return false
}

// DefaultsEqual compares two optional default values of a column of columnType after normalization
func DefaultsEqual(columnType string, a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return NormalizeColumnDefault(columnType, *a) == NormalizeColumnDefault(columnType, *b)
}

// NormalizeBody collapses whitespace in a routine or trigger body for comparison
func NormalizeBody(body string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(body, " "))
}

// NormalizeRule canonicalizes a referential action; empty means NO ACTION
func NormalizeRule(rule string) string {
	r := strings.ToUpper(strings.TrimSpace(whitespaceRe.ReplaceAllString(rule, " ")))
	switch r {
	case "", "NOACTION", "NO_ACTION":
		return "NO ACTION"
	case "SETNULL", "SET_NULL":
		return "SET NULL"
	case "SETDEFAULT", "SET_DEFAULT":
		return "SET DEFAULT"
	}
	return r
}
