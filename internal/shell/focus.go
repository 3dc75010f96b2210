package shell

import (
	"slices"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
)

type activateFlags uint32

const (
	activateConfigure activateFlags = 1 << iota
	activateFullscreen
	activateClicked
)

// shellSeat is the shell's per-seat state.
type shellSeat struct {
	seat    *seat.Seat
	focused *scene.Surface

	pointer    *seat.Pointer
	pointerSub *signal.Subscription[*seat.Pointer]
	subs       signal.Bag
}

// FocusedSurface is the main surface the seat last activated.
func (s *Shell) FocusedSurface(st *seat.Seat) *scene.Surface {
	if sh := s.shSeats[st]; sh != nil {
		return sh.focused
	}
	return nil
}

func (s *Shell) seatAdded(st *seat.Seat) {
	if _, ok := s.shSeats[st]; ok {
		return
	}
	sh := &shellSeat{seat: st}
	s.shSeats[st] = sh
	sh.subs.Add(st.CapsChanged.Subscribe(func(*seat.Seat) { s.hookPointer(sh) }))
	s.hookPointer(sh)
}

func (s *Shell) seatRemoved(st *seat.Seat) {
	sh := s.shSeats[st]
	if sh == nil {
		return
	}
	sh.subs.Cancel()
	if sh.pointerSub != nil {
		sh.pointerSub.Cancel()
	}
	delete(s.shSeats, st)
	s.focus.remove(st)
}

// hookPointer follows the seat's pointer so hovering a window pings its
// client.
func (s *Shell) hookPointer(sh *shellSeat) {
	p := sh.seat.Pointer()
	if p == sh.pointer {
		return
	}
	if sh.pointerSub != nil {
		sh.pointerSub.Cancel()
		sh.pointerSub = nil
	}
	sh.pointer = p
	if p != nil {
		sh.pointerSub = p.FocusChanged.Subscribe(s.pointerFocusChanged)
	}
}

func (s *Shell) pointerFocusChanged(p *seat.Pointer) {
	ss := s.fromView(p.Focus())
	if ss == nil {
		return
	}
	if ss.unresponsive {
		s.setBusyCursor(ss, p)
		return
	}
	ss.ds.Client().Ping()
}

func (s *Shell) toolAdded(tool *seat.TabletTool) {
	tool.FocusChanged.Subscribe(func(t *seat.TabletTool) {
		if ss := s.fromView(t.Focus()); ss != nil {
			ss.ds.Client().Ping()
		}
	})
}

// Activate focuses v's window on st and raises it.
func (s *Shell) Activate(v *scene.View, st *seat.Seat) {
	s.activate(v, st, activateConfigure)
}

func (s *Shell) activate(v *scene.View, st *seat.Seat, flags activateFlags) {
	main := v.Surface().MainSurface()
	ss := s.fromSurface(main)
	if ss == nil {
		return
	}
	if c := ss.lastMappedChild(); c != nil {
		s.activate(c.view, st, flags)
		return
	}

	if ss.output != nil {
		s.lowerFullscreenLayer(ss.output)
	}

	st.SetKeyboardFocus(v.Surface())

	sh := s.shSeats[st]
	if sh != nil && sh.focused != nil && sh.focused != main {
		if cur := s.fromSurface(sh.focused); cur != nil {
			s.deactivateSurface(cur)
		}
	}
	if sh != nil && sh.focused != main {
		s.activateSurface(ss)
		sh.focused = main
	}

	state := s.focus.ensure(st)
	old := state.keyboardFocus
	state.setFocus(v.Surface())

	if ss.ds.Fullscreen() && flags&activateConfigure != 0 {
		s.setViewFullscreen(ss)
	}
	s.updateLayer(ss)

	if s.cfg.FocusAnimation != animation.None {
		var from *scene.View
		if prev := s.fromSurface(old); prev != nil {
			from = prev.view
		}
		s.focus.animateChange(from, ss.view)
	}
}

func (s *Shell) activateSurface(ss *Surface) {
	ss.focusCount++
	if ss.focusCount == 1 {
		s.syncActivated(ss)
	}
}

func (s *Shell) deactivateSurface(ss *Surface) {
	if ss.focusCount == 0 {
		return
	}
	ss.focusCount--
	if ss.focusCount == 0 {
		s.syncActivated(ss)
	}
}

// syncActivated recomputes the activated state of every window in ss's
// tree: a window is activated while it or any descendant has focus.
func (s *Shell) syncActivated(ss *Surface) {
	var walk func(*Surface)
	walk = func(n *Surface) {
		n.ds.SetActivated(n.hasFocusedDescendant())
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(ss.root())
}

// focusState remembers the keyboard focus of one seat, so it can be
// restored after unlocking.
type focusState struct {
	seat          *seat.Seat
	keyboardFocus *scene.Surface
	sub           *signal.Subscription[*scene.Surface]
	fs            *focusStates
}

func (st *focusState) setFocus(surf *scene.Surface) {
	if st.sub != nil {
		st.sub.Cancel()
		st.sub = nil
	}
	st.keyboardFocus = surf
	if surf != nil {
		st.sub = surf.Destroyed.Subscribe(st.surfaceDestroyed)
	}
}

// surfaceDestroyed handles focus on a sub-surface going away. Toplevel
// removal is handled earlier, when the desktop surface is removed.
func (st *focusState) surfaceDestroyed(surf *scene.Surface) {
	st.sub = nil
	st.keyboardFocus = nil
	s := st.fs.s
	main := surf.MainSurface()
	if main == surf {
		return
	}
	if ss := s.fromSurface(main); ss != nil && !ss.destroyed {
		s.activate(ss.view, st.seat, activateConfigure)
	}
}

type focusStates struct {
	s      *Shell
	states []*focusState

	front, back *scene.Curtain
	anim        *animation.Animation
}

func newFocusStates(s *Shell) *focusStates {
	return &focusStates{s: s}
}

func (fs *focusStates) find(st *seat.Seat) *focusState {
	for _, state := range fs.states {
		if state.seat == st {
			return state
		}
	}
	return nil
}

func (fs *focusStates) ensure(st *seat.Seat) *focusState {
	if state := fs.find(st); state != nil {
		return state
	}
	state := &focusState{seat: st, fs: fs}
	fs.states = append(fs.states, state)
	return state
}

func (fs *focusStates) remove(st *seat.Seat) {
	i := slices.IndexFunc(fs.states, func(state *focusState) bool { return state.seat == st })
	if i < 0 {
		return
	}
	fs.states[i].setFocus(nil)
	fs.states = slices.Delete(fs.states, i, i+1)
}

// drop forgets surf as the remembered focus of every seat.
func (fs *focusStates) drop(surf *scene.Surface) {
	for _, state := range fs.states {
		if state.keyboardFocus == surf {
			state.setFocus(nil)
		}
	}
}

// restore puts keyboard focus back where the states say. Seats without a
// state lose focus.
func (fs *focusStates) restore() {
	for _, st := range fs.s.seats.Seats() {
		var surf *scene.Surface
		if state := fs.find(st); state != nil {
			surf = state.keyboardFocus
		}
		st.SetKeyboardFocus(surf)
	}
}

func (fs *focusStates) clear() {
	for _, state := range fs.states {
		state.setFocus(nil)
	}
	fs.states = nil
	if fs.anim != nil {
		fs.anim.Cancel()
		fs.anim = nil
	}
}

// surfaceRemoved moves focus off a removed toplevel. The successor is the
// topmost window on the same output, preferring the removed window's
// family; the workspace is searched before the minimized windows.
func (fs *focusStates) surfaceRemoved(surf *scene.Surface, out *scene.Output, family func(*Surface) bool) {
	for _, state := range slices.Clone(fs.states) {
		if state.keyboardFocus == nil || state.keyboardFocus.MainSurface() != surf {
			continue
		}
		next := fs.successor(surf, out, family)
		if next != nil {
			state.setFocus(nil)
			if next.Minimized() {
				fs.s.restoreMinimized(next)
			}
			fs.s.activate(next.view, state.seat, activateConfigure)
			continue
		}
		fs.fadeOutDim()
		if i := slices.Index(fs.states, state); i >= 0 {
			fs.states = slices.Delete(fs.states, i, i+1)
		}
		state.setFocus(nil)
	}
}

func (fs *focusStates) successor(surf *scene.Surface, out *scene.Output, family func(*Surface) bool) *Surface {
	s := fs.s
	for _, l := range []*scene.Layer{s.workspace, s.minimizedLayer} {
		var fallback *Surface
		for _, v := range l.Views() {
			ss := s.fromView(v)
			if ss == nil || ss.destroyed || v.Surface() == surf {
				continue
			}
			if out != nil && v.Output() != out {
				continue
			}
			if family(ss) {
				return ss
			}
			if fallback == nil {
				fallback = ss
			}
		}
		if fallback != nil {
			return fallback
		}
	}
	return nil
}

// animateChange dims everything below the newly focused window.
func (fs *focusStates) animateChange(from, to *scene.View) {
	s := fs.s
	if (from != nil && from == to) || s.cfg.FocusAnimation == animation.None {
		return
	}
	fs.ensureCurtains()
	if fs.front == nil {
		return
	}
	if fs.anim != nil {
		fs.anim.Cancel()
		fs.anim = nil
	}

	front, back := fs.front.View, fs.back.View
	if to == nil {
		fs.fadeOutDim()
		return
	}
	front.PlaceBelow(to)
	if from != nil && from.Layer() != nil {
		back.PlaceBelow(from)
	} else {
		back.MoveToLayer(s.workspace)
	}
	back.SetAlpha(dimAlpha)
	fs.anim = animation.RunFade(s.c, front, 0, dimAlpha, animation.DefaultDuration, func() { fs.anim = nil })
}

const dimAlpha = 0.4

func (fs *focusStates) fadeOutDim() {
	if fs.front == nil || fs.s.cfg.FocusAnimation != animation.DimLayer {
		return
	}
	if fs.anim != nil {
		fs.anim.Cancel()
	}
	front := fs.front.View
	front.MoveToLayer(fs.s.workspace)
	fs.back.View.MoveToLayer(nil)
	fs.anim = animation.RunFade(fs.s.c, front, front.Alpha(), 0, animation.DefaultDuration, func() { fs.anim = nil })
}

func (fs *focusStates) ensureCurtains() {
	if fs.front != nil {
		return
	}
	o := fs.s.c.DefaultOutput()
	if o == nil {
		return
	}
	mk := func() *scene.Curtain {
		cu := fs.s.c.NewCurtain(scene.CurtainParams{
			Color: scene.ColorBlack,
			Pos:   o.Position(),
			Size:  o.Mode().Size(),
			Label: "focus highlight effect for output " + o.Name,
		})
		cu.View.SetOutput(o)
		return cu
	}
	fs.front = mk()
	fs.back = mk()
}

// isFocusCurtain reports whether v is one of the dimming curtains.
func (fs *focusStates) isFocusCurtain(v *scene.View) bool {
	return fs.front != nil && (v == fs.front.View || v == fs.back.View)
}
