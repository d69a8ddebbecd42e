package models

// Role is the semantic purpose a sales table column plays
type Role string

const (
	RoleDate    Role = "date"
	RoleSubject Role = "subject"
	RoleAmount  Role = "amount"
)

// RolePriority is the order in which roles are tested against each column.
var RolePriority = []Role{RoleDate, RoleSubject, RoleAmount}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleDate, RoleSubject, RoleAmount:
		return true
	default:
		return false
	}
}

// CanonicalHeader is the header text users are told to provide for the role.
func (r Role) CanonicalHeader() string {
	switch r {
	case RoleDate:
		return "Data Aprovação"
	case RoleSubject:
		return "Clientes"
	case RoleAmount:
		return "Valor Total"
	default:
		return string(r)
	}
}

// ColumnRoleAssignment maps each resolved role to a column index.
type ColumnRoleAssignment map[Role]int

// Column returns the column index for role
func (a ColumnRoleAssignment) Column(role Role) (int, bool) {
	idx, ok := a[role]
	return idx, ok
}

// Missing returns the unresolved roles in priority order
func (a ColumnRoleAssignment) Missing() []Role {
	var missing []Role
	for _, r := range RolePriority {
		if _, ok := a[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// Complete reports whether every role has a column
func (a ColumnRoleAssignment) Complete() bool {
	return len(a.Missing()) == 0
}
