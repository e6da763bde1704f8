package auth

import "greencity/internal/model"

// Permission names the set of roles allowed through an endpoint. An empty
// role set means any authenticated caller.
type Permission struct {
	Name  string
	roles []model.Role
}

var (
	Authenticated     = Permission{Name: "authenticated"}
	ExpertOrAuthority = Permission{Name: "expert_or_authority", roles: []model.Role{model.RoleExpert, model.RoleAuthority}}
	AuthorityOnly     = Permission{Name: "authority", roles: []model.Role{model.RoleAuthority}}
)

// RoleGated reports whether the permission depends on the caller's profile.
func (p Permission) RoleGated() bool {
	return len(p.roles) > 0
}

func (p Permission) allows(role model.Role) bool {
	for _, r := range p.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize is the single decision point for role checks. user is nil when
// the caller has no profile yet.
func Authorize(user *model.User, p Permission) error {
	if !p.RoleGated() {
		return nil
	}
	if user == nil || !p.allows(user.Role) {
		return model.Forbidden("Insufficient permissions")
	}
	return nil
}
