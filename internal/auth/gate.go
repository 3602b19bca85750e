package auth

import "thoughts/internal/models"

// Gate decides who may publish and delete posts.
type Gate struct {
	AdminEmail string
}

func NewGate(adminEmail string) Gate {
	return Gate{AdminEmail: adminEmail}
}

// IsAdmin reports whether p is signed in with the configured admin email.
// With no admin email configured nobody is admin, including principals
// that have no email either.
func (g Gate) IsAdmin(p *models.Principal) bool {
	if p == nil || g.AdminEmail == "" {
		return false
	}
	return p.Email == g.AdminEmail
}
