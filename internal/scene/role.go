package scene

import (
	"errors"

	"github.com/bnema/waycomp/internal/geom"
)

// ErrRoleAssigned is returned when a surface already carries a role.
var ErrRoleAssigned = errors.New("surface role already assigned")

// RoleKind enumerates the closed set of surface roles.
type RoleKind int

const (
	RoleNone RoleKind = iota
	RoleSubsurface
	RoleToplevel
	RolePopup
	RoleBackground
	RolePanel
	RoleLock
	RoleCurtain
	RoleInputPanel
)

func (k RoleKind) String() string {
	switch k {
	case RoleSubsurface:
		return "wl_subsurface"
	case RoleToplevel:
		return "xdg_toplevel"
	case RolePopup:
		return "xdg_popup"
	case RoleBackground:
		return "desktop-shell-background"
	case RolePanel:
		return "desktop-shell-panel"
	case RoleLock:
		return "desktop-shell-lock"
	case RoleCurtain:
		return "curtain"
	case RoleInputPanel:
		return "input-panel"
	}
	return "none"
}

// Role is the behaviour a surface takes on. Implementations embed RoleBase,
// which keeps the set of variants closed to types that opt in explicitly.
type Role interface {
	Kind() RoleKind
	// Committed runs after pending state became current. offset is the
	// buffer origin delta the client attached with.
	Committed(s *Surface, offset geom.SurfacePoint)
	role()
}

// RoleBase marks a type as a Role.
type RoleBase struct{}

func (RoleBase) role() {}

// FuncRole adapts a kind and a commit function into a Role.
type FuncRole struct {
	RoleBase
	RoleKind    RoleKind
	OnCommitted func(s *Surface, offset geom.SurfacePoint)
}

func (r *FuncRole) Kind() RoleKind { return r.RoleKind }

func (r *FuncRole) Committed(s *Surface, offset geom.SurfacePoint) {
	if r.OnCommitted != nil {
		r.OnCommitted(s, offset)
	}
}
