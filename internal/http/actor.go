package http

import (
	"net/http"
	"strings"

	"bizdash/internal/core"
)

const (
	headerOrgID       = "X-Org-ID"
	headerRole        = "X-Role"
	headerBusinessIDs = "X-Business-IDs"
)

// Role is the caller's position inside an organization, as asserted by the
// authenticating proxy in front of this service.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
)

// Actor is who is calling and which businesses they may see.
type Actor struct {
	OrgID       string
	Role        Role
	BusinessIDs []string
}

// actorFromRequest reads the identity headers. ok is false when no
// organization was supplied.
func actorFromRequest(r *http.Request) (Actor, bool) {
	orgID := strings.TrimSpace(r.Header.Get(headerOrgID))
	if orgID == "" {
		return Actor{}, false
	}
	a := Actor{
		OrgID: orgID,
		Role:  Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerRole)))),
	}
	for _, id := range strings.Split(r.Header.Get(headerBusinessIDs), ",") {
		if id = strings.TrimSpace(id); id != "" {
			a.BusinessIDs = append(a.BusinessIDs, id)
		}
	}
	return a, true
}

// SeesAll reports whether the role spans every business of the organization.
func (a Actor) SeesAll() bool {
	switch a.Role {
	case RoleSuperAdmin, RoleOwner, RoleAdmin:
		return true
	default:
		return false
	}
}

// Scope is the business visibility handed to the aggregator.
func (a Actor) Scope() core.Scope {
	if a.SeesAll() {
		return core.FullAccess()
	}
	return core.AllowList(a.BusinessIDs...)
}

func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// requireActor writes 401 and returns false when the request carries no organization.
func requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	a, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing "+headerOrgID+" header")
		return Actor{}, false
	}
	return a, true
}
