package permission

import "github.com/sitebook/sitebook-api/internal/domain"

// Expression describes an access check. Each supplied criterion must pass; an
// expression with no criteria is denied.
type Expression struct {
	// Permission requires a single permission
	Permission domain.Permission
	// Permissions requires all (RequireAll) or any of the listed permissions
	Permissions []domain.Permission
	RequireAll  bool
	// Category and Action are combined into "category.action". Supplying only one
	// of them denies the check.
	Category string
	Action   string
	// Role requires an exact role match and ignores the permission set
	Role domain.Role
}

// IsEmpty reports whether no criterion is supplied
func (e Expression) IsEmpty() bool {
	return e.Permission == "" && len(e.Permissions) == 0 &&
		e.Category == "" && e.Action == "" && e.Role == ""
}

// Check evaluates expr against an effective set and the subject's role
func Check(set Set, role domain.Role, expr Expression) bool {
	if expr.IsEmpty() {
		return false
	}

	if expr.Permission != "" && !set.Has(expr.Permission) {
		return false
	}

	if len(expr.Permissions) > 0 {
		if expr.RequireAll {
			for _, p := range expr.Permissions {
				if !set.Has(p) {
					return false
				}
			}
		} else {
			matched := false
			for _, p := range expr.Permissions {
				if set.Has(p) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}

	if expr.Category != "" || expr.Action != "" {
		if expr.Category == "" || expr.Action == "" {
			return false
		}
		if !set.Has(domain.NewPermission(expr.Category, expr.Action)) {
			return false
		}
	}

	if expr.Role != "" && expr.Role != role {
		return false
	}

	return true
}
