// Package auth resolves bearer credentials to principals and decides
// whether a principal may use a role-restricted endpoint.
package auth

import "github.com/msc-edu/cms-api/models"

// Principal is the verified caller of a single request. It is never persisted.
type Principal struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// HasRole reports whether the principal's role is one of roles (exact, case-sensitive)
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if string(p.Role) == r {
			return true
		}
	}
	return false
}
