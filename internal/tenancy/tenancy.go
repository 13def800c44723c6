// Package tenancy turns an authenticated principal into a society-scoped
// actor. Every visitor query and mutation is expressed through the values
// returned here.
package tenancy

import (
	"strings"

	"gatehouse/internal/models"
)

// Scope is the resolved (tenant, role, subject) triple for a principal.
type Scope struct {
	Tenant     string
	Role       models.Role
	SubjectID  uint
	FlatNumber string
	FullName   string
}

// Actor is one of Guard, Resident, Admin or Business.
type Actor interface {
	Scope() Scope
	actor()
}

// Viewer is implemented by actors allowed to read visitor records.
type Viewer interface {
	Actor
	VisitorScope() VisitorScope
}

// PreApprover is implemented by actors allowed to pre-clear guests.
type PreApprover interface {
	Viewer
	// PreApprovalPermission is the permission state a pre-approval is created with.
	PreApprovalPermission() models.PermissionState
}

// VisitorScope is the filter conjunction every visitor query carries.
// An empty FlatNumber means tenant-wide.
type VisitorScope struct {
	Tenant     string
	FlatNumber string
}

// Contains reports whether the record falls inside the scope.
func (v VisitorScope) Contains(rec *models.VisitorRecord) bool {
	if rec == nil || rec.SocietyName != v.Tenant {
		return false
	}
	return v.FlatNumber == "" || rec.FlatNumber == v.FlatNumber
}

type base struct{ s Scope }

func (b base) Scope() Scope { return b.s }
func (base) actor()         {}

// Guard logs arrivals and controls physical entry and exit.
type Guard struct{ base }

// VisitorScope is tenant-wide for guards.
func (g Guard) VisitorScope() VisitorScope { return VisitorScope{Tenant: g.s.Tenant} }

// Resident answers permission requests for their own flat.
type Resident struct{ base }

// VisitorScope narrows residents to their flat.
func (r Resident) VisitorScope() VisitorScope {
	return VisitorScope{Tenant: r.s.Tenant, FlatNumber: r.s.FlatNumber}
}

// PreApprovalPermission for a resident is an immediate allow.
func (Resident) PreApprovalPermission() models.PermissionState { return models.PermissionAllowed }

// CanTouch reports whether the resident may change permission fields on rec:
// same tenant, same flat, and either unclaimed or already theirs.
func (r Resident) CanTouch(rec *models.VisitorRecord) bool {
	if !r.VisitorScope().Contains(rec) {
		return false
	}
	return rec.ResidentID == nil || *rec.ResidentID == r.s.SubjectID
}

// Admin manages the whole society.
type Admin struct{ base }

// VisitorScope is tenant-wide for admins.
func (a Admin) VisitorScope() VisitorScope { return VisitorScope{Tenant: a.s.Tenant} }

// PreApprovalPermission for an admin is the pre-approved marker.
func (Admin) PreApprovalPermission() models.PermissionState { return models.PermissionPreApproved }

// Business principals have no access to visitor records.
type Business struct{ base }

// Resolve maps a user onto its role variant.
func Resolve(u *models.User) (Actor, error) {
	if u == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	tenant := strings.TrimSpace(u.SocietyName)
	if tenant == "" {
		return nil, models.NewUnauthorizedError("User is not assigned to a society")
	}
	s := Scope{
		Tenant:     tenant,
		Role:       u.Role,
		SubjectID:  u.ID,
		FlatNumber: strings.TrimSpace(u.FlatNumber),
		FullName:   u.FullName,
	}

	switch u.Role {
	case models.RoleGuard:
		return Guard{base{s}}, nil
	case models.RoleResident:
		if s.FlatNumber == "" {
			return nil, models.NewUnauthorizedError("Resident has no flat assigned")
		}
		return Resident{base{s}}, nil
	case models.RoleAdmin:
		return Admin{base{s}}, nil
	case models.RoleBusiness:
		return Business{base{s}}, nil
	default:
		return nil, models.NewUnauthorizedError("Unknown role")
	}
}

// SameTenant reports whether rec belongs to the actor's society.
func SameTenant(a Actor, rec *models.VisitorRecord) bool {
	return rec != nil && a != nil && rec.SocietyName == a.Scope().Tenant
}

// AsGuard narrows a to a Guard or fails Unauthorized.
func AsGuard(a Actor) (Guard, error) {
	if g, ok := a.(Guard); ok {
		return g, nil
	}
	return Guard{}, models.NewUnauthorizedError("Only guards can perform this action")
}

// AsResident narrows a to a Resident or fails Unauthorized.
func AsResident(a Actor) (Resident, error) {
	if r, ok := a.(Resident); ok {
		return r, nil
	}
	return Resident{}, models.NewUnauthorizedError("Only residents can perform this action")
}

// AsAdmin narrows a to an Admin or fails Unauthorized.
func AsAdmin(a Actor) (Admin, error) {
	if ad, ok := a.(Admin); ok {
		return ad, nil
	}
	return Admin{}, models.NewUnauthorizedError("Only admins can perform this action")
}

// AsViewer narrows a to a Viewer or fails Unauthorized.
func AsViewer(a Actor) (Viewer, error) {
	if v, ok := a.(Viewer); ok {
		return v, nil
	}
	return nil, models.NewUnauthorizedError("Access denied")
}

// AsPreApprover narrows a to a PreApprover or fails Unauthorized.
func AsPreApprover(a Actor) (PreApprover, error) {
	if p, ok := a.(PreApprover); ok {
		return p, nil
	}
	return nil, models.NewUnauthorizedError("Only residents and admins can pre-approve visitors")
}

// GuardOrAdmin returns the tenant-wide scope for guards and admins.
func GuardOrAdmin(a Actor) (VisitorScope, error) {
	switch v := a.(type) {
	case Guard:
		return v.VisitorScope(), nil
	case Admin:
		return v.VisitorScope(), nil
	}
	return VisitorScope{}, models.NewUnauthorizedError("Access denied")
}
