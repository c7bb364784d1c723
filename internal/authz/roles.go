package authz

// Роли admin API. Числовые коды оставлены с запасом под новые роли.
const (
	RoleAudit = 30
	RoleAdmin = 50
)

func IsReadOnly(roleID int) bool {
	return roleID == RoleAudit
}

func Name(roleID int) string {
	switch roleID {
	case RoleAdmin:
		return "admin"
	case RoleAudit:
		return "audit"
	}
	return "unknown"
}
