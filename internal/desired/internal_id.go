package desired

import (
	"fmt"

	"github.com/myschema/myschema/ir"
)

// HelperFunctionName is the stored function internal_id triggers call
const HelperFunctionName = "uuid_v4"

// uuidFunctionBody returns a random (version 4) UUID in canonical text form
const uuidFunctionBody = `BEGIN
  DECLARE b BINARY(16) DEFAULT RANDOM_BYTES(16);
  SET b = INSERT(b, 7, 1, CHAR((ASCII(SUBSTRING(b, 7, 1)) & 0x0f) | 0x40));
  SET b = INSERT(b, 9, 1, CHAR((ASCII(SUBSTRING(b, 9, 1)) & 0x3f) | 0x80));
  RETURN LOWER(CONCAT_WS('-', HEX(SUBSTRING(b, 1, 4)), HEX(SUBSTRING(b, 5, 2)),
    HEX(SUBSTRING(b, 7, 2)), HEX(SUBSTRING(b, 9, 2)), HEX(SUBSTRING(b, 11, 6))));
END`

func uuidFunction() *ir.Function {
	return &ir.Function{
		Name:          HelperFunctionName,
		ReturnType:    "char(36)",
		Deterministic: false,
		SQLDataAccess: "NO SQL",
		SecurityType:  "INVOKER",
		Definition:    uuidFunctionBody,
	}
}

func internalIDTrigger(table string) *ir.Trigger {
	column := ir.QuoteIdentifier(ir.ColumnInternalID)
	body := fmt.Sprintf(`BEGIN
  IF NEW.%[1]s IS NULL OR NEW.%[1]s = '' THEN
    SET NEW.%[1]s = %[2]s();
  END IF;
END`, column, ir.QuoteIdentifier(HelperFunctionName))

	return &ir.Trigger{
		Name:      InternalIDTriggerName(table),
		Table:     table,
		Timing:    ir.TimingBefore,
		Event:     ir.EventInsert,
		Statement: body,
	}
}
