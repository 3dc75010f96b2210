package seat

import (
	"slices"

	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// KeyboardGrabHandler receives key events while a grab is active.
type KeyboardGrabHandler interface {
	Key(g *KeyboardGrab, key uint32, pressed bool)
	Modifiers(g *KeyboardGrab, mods Modifier)
	Cancel(g *KeyboardGrab)
}

type KeyboardGrab struct {
	keyboard *Keyboard
	handler  KeyboardGrabHandler
	ended    bool
}

func (g *KeyboardGrab) Keyboard() *Keyboard { return g.keyboard }
func (g *KeyboardGrab) Active() bool { return !g.ended }

// End restores default delivery. It is safe to call more than once.
func (g *KeyboardGrab) End() {
	if g.ended {
		return
	}
	g.ended = true
	if g.keyboard.grab == g {
		g.keyboard.grab = nil
	}
}

// Keyboard is a seat's keyboard device.
type Keyboard struct {
	seat *Seat

	focus       *scene.Surface
	focusSerial uint32
	focusSub    *signal.Subscription[*scene.Surface]

	keys      []uint32
	mods      Modifier
	swallowed []uint32

	grab *KeyboardGrab

	Destroyed signal.Signal[*Keyboard]
}

func newKeyboard(s *Seat) *Keyboard {
	return &Keyboard{seat: s}
}

func (k *Keyboard) Seat() *Seat { return k.seat }
func (k *Keyboard) Focus() *scene.Surface { return k.focus }
func (k *Keyboard) Modifiers() Modifier { return k.mods }
func (k *Keyboard) PressedKeys() []uint32 { return slices.Clone(k.keys) }
func (k *Keyboard) Grab() *KeyboardGrab { return k.grab }

// StartGrab installs h, cancelling any grab already running.
func (k *Keyboard) StartGrab(h KeyboardGrabHandler) *KeyboardGrab {
	k.CancelGrab()
	g := &KeyboardGrab{keyboard: k, handler: h}
	k.grab = g
	return g
}

func (k *Keyboard) CancelGrab() {
	g := k.grab
	if g == nil {
		return
	}
	g.handler.Cancel(g)
	g.End()
}

// Key is a key press or release.
func (k *Keyboard) Key(key uint32, pressed bool) {
	k.seat.activity()
	i := slices.Index(k.keys, key)
	switch {
	case pressed && i < 0:
		k.keys = append(k.keys, key)
	case !pressed && i >= 0:
		k.keys = slices.Delete(k.keys, i, i+1)
	}

	if mod := modifierForKey(key); mod != 0 {
		if pressed {
			k.mods |= mod
		} else if !k.otherHeld(mod) {
			k.mods &^= mod
		}
		if k.grab != nil {
			k.grab.handler.Modifiers(k.grab, k.mods)
		}
	}

	if !pressed {
		if j := slices.Index(k.swallowed, key); j >= 0 {
			k.swallowed = slices.Delete(k.swallowed, j, j+1)
			return
		}
	}
	if k.grab != nil {
		k.grab.handler.Key(k.grab, key, pressed)
		return
	}
	if pressed && k.seat.m.Bindings.runKey(k, key, k.mods) {
		k.swallowed = append(k.swallowed, key)
		return
	}
	k.SendKey(key, pressed)
}

// otherHeld reports whether another key producing mod is still down.
func (k *Keyboard) otherHeld(mod Modifier) bool {
	for _, key := range k.keys {
		if modifierForKey(key) == mod {
			return true
		}
	}
	return false
}

// SendKey delivers a key event to the focused client.
func (k *Keyboard) SendKey(key uint32, pressed bool) {
	if k.focus == nil {
		return
	}
	k.focus.Client().Send(protocol.KeyboardKey{Key: key, Pressed: pressed})
}

// SetFocus moves keyboard focus, sending leave and enter.
func (k *Keyboard) SetFocus(surf *scene.Surface) {
	if surf == k.focus {
		return
	}
	prev := k.focus
	if prev != nil {
		prev.Client().Send(protocol.KeyboardLeave{Surface: prev.Ref32(), Serial: k.seat.m.NextSerial()})
	}
	if k.focusSub != nil {
		k.focusSub.Cancel()
		k.focusSub = nil
	}
	k.focus = surf
	if surf != nil {
		k.focusSerial = k.seat.m.NextSerial()
		surf.Client().Send(protocol.KeyboardEnter{Surface: surf.Ref32(), Serial: k.focusSerial})
		k.focusSub = surf.Destroyed.Subscribe(func(*scene.Surface) { k.SetFocus(nil) })
	}
	k.seat.KeyboardFocusChanged.Emit(prev)
}
