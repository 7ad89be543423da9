package desired

import (
	"fmt"

	"github.com/myschema/myschema/internal/model"
	"github.com/myschema/myschema/ir"
)

const (
	defaultStringSize       = 255
	defaultDecimalPrecision = 18
	defaultDecimalScale     = 2
	identifierSize          = 45

	maxTextSize       = 65535
	maxMediumTextSize = 16777215
)

// SQLType maps a column descriptor to its normalized MySQL type
func SQLType(c model.Column) (string, error) {
	if c.SQLType != "" {
		return ir.NormalizeType(c.SQLType), nil
	}

	switch c.Type {
	case "":
		return "", fmt.Errorf("property %s: %w: type", c.Property, ErrMissingField)
	case model.TypeString:
		size := c.Size
		if size == 0 {
			size = defaultStringSize
		}
		return fmt.Sprintf("varchar(%d)", size), nil
	case model.TypeText:
		switch {
		case c.Size <= maxTextSize:
			return "text", nil
		case c.Size <= maxMediumTextSize:
			return "mediumtext", nil
		default:
			return "longtext", nil
		}
	case model.TypeInt:
		if c.Size == 8 {
			return "bigint", nil
		}
		return "int", nil
	case model.TypeLong:
		return "bigint", nil
	case model.TypeShort:
		return "smallint", nil
	case model.TypeDecimal:
		precision, scale := c.Precision, c.Scale
		if precision == 0 {
			precision = defaultDecimalPrecision
			if scale == 0 {
				scale = defaultDecimalScale
			}
		}
		return fmt.Sprintf("decimal(%d,%d)", precision, scale), nil
	case model.TypeFloat, model.TypeDouble:
		return "double", nil
	case model.TypeBool:
		return "tinyint(1)", nil
	case model.TypeDateTime, model.TypeDate, model.TypeTime:
		return "datetime", nil
	case model.TypeBinary:
		return "blob", nil
	case model.TypeIdentifier:
		return fmt.Sprintf("varchar(%d)", identifierSize), nil
	case model.TypeJSON:
		return "json", nil
	}
	return "", fmt.Errorf("property %s: %w %q", c.Property, ErrUnknownType, c.Type)
}
