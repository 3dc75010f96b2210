package shell

import (
	"fmt"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// Resource is the helper's binding of the desktop shell protocol.
type Resource struct {
	s      *Shell
	client *protocol.Client
	sub    *signal.Subscription[*protocol.Client]
}

func (r *Resource) Client() *protocol.Client { return r.client }

// Bind hands the desktop shell global to c. Only the helper may bind it.
func (s *Shell) Bind(c *protocol.Client) (*Resource, error) {
	if s.helper == nil || !s.helper.IsHelper(c) {
		return nil, c.Post(protocol.InterfaceDisplay, protocol.DisplayErrorInvalidObject,
			"permission to bind desktop_shell denied")
	}
	if s.resource != nil {
		s.unbind(s.resource)
	}
	r := &Resource{s: s, client: c}
	r.sub = c.Destroyed.Subscribe(func(*protocol.Client) { r.Destroy() })
	s.resource = r
	s.log.Debug("desktop shell bound", "client", c.Name)
	return r, nil
}

// Resource is the current desktop shell binding, or nil.
func (s *Shell) Resource() *Resource { return s.resource }

// Destroy unbinds the resource. A locked session resumes.
func (r *Resource) Destroy() {
	if r.sub != nil {
		r.sub.Cancel()
		r.sub = nil
	}
	r.s.unbind(r)
}

func (s *Shell) unbind(r *Resource) {
	if s.resource != r {
		return
	}
	if r.sub != nil {
		r.sub.Cancel()
		r.sub = nil
	}
	if s.locked {
		s.resumeDesktop()
	}
	s.resource = nil
	s.prepareEventSent = false
}

func (r *Resource) live() bool { return r.s.resource == r }

func (r *Resource) roleAssigned(surf *scene.Surface) error {
	return surf.Client().Post(protocol.InterfaceDisplay, protocol.DisplayErrorInvalidObject,
		"surface role already assigned")
}

// SetBackground makes surf the background of o.
func (r *Resource) SetBackground(o *scene.Output, surf *scene.Surface) error {
	if !r.live() {
		return nil
	}
	s := r.s
	if surf.Role() != nil {
		return r.roleAssigned(surf)
	}
	so := s.outputs[o]
	if o == nil || o.IsDestroyed() || so == nil {
		return nil
	}
	if so.backgroundSurface != nil {
		return surf.Client().Post(protocol.InterfaceDisplay, protocol.DisplayErrorInvalidObject,
			"output already has a background surface")
	}

	_ = surf.SetRole(&scene.FuncRole{
		RoleKind:    scene.RoleBackground,
		OnCommitted: func(surf *scene.Surface, _ geom.SurfacePoint) { s.backgroundCommitted(so, surf) },
	})
	surf.SetLabel(fmt.Sprintf("background for output %s", o.Name))
	so.backgroundSurface = surf
	surf.Destroyed.Subscribe(func(*scene.Surface) {
		if so.backgroundSurface == surf {
			so.backgroundSurface = nil
			so.backgroundView = nil
		}
	})
	s.configureToOutput(surf, o)
	return nil
}

// SetPanel makes surf the panel of o.
func (r *Resource) SetPanel(o *scene.Output, surf *scene.Surface) error {
	if !r.live() {
		return nil
	}
	s := r.s
	if surf.Role() != nil {
		return r.roleAssigned(surf)
	}
	so := s.outputs[o]
	if o == nil || o.IsDestroyed() || so == nil {
		return nil
	}
	if so.panelSurface != nil {
		return surf.Client().Post(protocol.InterfaceDisplay, protocol.DisplayErrorInvalidObject,
			"output already has a panel surface")
	}

	_ = surf.SetRole(&scene.FuncRole{
		RoleKind:    scene.RolePanel,
		OnCommitted: func(surf *scene.Surface, _ geom.SurfacePoint) { s.panelCommitted(so, surf) },
	})
	surf.SetLabel(fmt.Sprintf("panel for output %s", o.Name))
	so.panelSurface = surf
	surf.Destroyed.Subscribe(func(*scene.Surface) {
		if so.panelSurface == surf {
			so.panelSurface = nil
			so.panelView = nil
		}
	})
	s.configureToOutput(surf, o)
	return nil
}

// SetLockSurface offers the lock dialog. It is ignored unless the session
// is locked.
func (r *Resource) SetLockSurface(surf *scene.Surface) error {
	if !r.live() {
		return nil
	}
	s := r.s
	s.prepareEventSent = false
	if !s.locked {
		return nil
	}
	if surf.Role() != nil {
		return r.roleAssigned(surf)
	}

	_ = surf.SetRole(&scene.FuncRole{
		RoleKind:    scene.RoleLock,
		OnCommitted: func(surf *scene.Surface, _ geom.SurfacePoint) { s.lockSurfaceCommitted(surf) },
	})
	surf.SetLabel("lock window")
	s.lockSurface = surf
	surf.Destroyed.Subscribe(func(*scene.Surface) {
		if s.lockSurface == surf {
			s.lockSurface = nil
			s.lockView = nil
		}
	})
	return nil
}

// Unlock is the helper accepting the lock dialog.
func (r *Resource) Unlock() {
	if !r.live() {
		return
	}
	s := r.s
	s.prepareEventSent = false
	if s.locked {
		s.resumeDesktop()
	}
}

// SetGrabSurface sets the surface that holds pointer focus during shell
// grabs, so the helper can draw the grab cursor.
func (r *Resource) SetGrabSurface(surf *scene.Surface) {
	if !r.live() {
		return
	}
	s := r.s
	s.grabSurface = surf
	s.grabView = s.c.CreateView(surf)
	surf.Destroyed.Subscribe(func(*scene.Surface) {
		if s.grabSurface == surf {
			s.grabSurface = nil
			s.grabView = nil
		}
	})
}

// DesktopReady ends the startup fade early.
func (r *Resource) DesktopReady() {
	if !r.live() {
		return
	}
	r.s.fadeStartup()
}

// SetPanelPosition moves panels to another edge. Existing panels move on
// their next commit.
func (r *Resource) SetPanelPosition(pos uint32) error {
	if !r.live() {
		return nil
	}
	if pos > uint32(PanelRight) {
		return r.client.Post(protocol.InterfaceDesktopShell, protocol.DesktopShellErrorInvalidArgument,
			"bad position argument")
	}
	r.s.panelPosition = PanelPosition(pos)
	return nil
}
