package model

// Audit property names. The builder maps them to the ir.Column* audit column names.
const (
	PropertyID          = "Id"
	PropertyActive      = "Active"
	PropertyInternalID  = "InternalId"
	PropertyCreateDate  = "CreateDate"
	PropertyLastUpdated = "LastUpdated"
)

// AuditColumns returns the standard audit column descriptors in leading order
func AuditColumns() []Column {
	active := "1"
	return []Column{
		{Property: PropertyID, Type: TypeInt, PrimaryKey: true, AutoIncrement: true},
		{Property: PropertyActive, Type: TypeBool, Default: &active},
		{Property: PropertyInternalID, Type: TypeIdentifier, Nullable: true},
		{Property: PropertyCreateDate, Type: TypeDateTime},
		{Property: PropertyLastUpdated, Type: TypeDateTime},
	}
}

// WithAudit returns the model with the audit columns prepended when Audit is set.
// Audit properties the model already declares are kept as declared.
func WithAudit(m Model) Model {
	if !m.Audit {
		return m
	}

	columns := make([]Column, 0, len(m.Columns)+5)
	for _, c := range AuditColumns() {
		if _, ok := m.Column(c.Property); ok {
			continue
		}
		columns = append(columns, c)
	}
	m.Columns = append(columns, m.Columns...)
	return m
}
