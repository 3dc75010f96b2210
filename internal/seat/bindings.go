package seat

import "slices"

type (
	KeyBindingFunc        func(k *Keyboard, key uint32)
	ButtonBindingFunc     func(p *Pointer, button uint32)
	AxisBindingFunc       func(p *Pointer, axis uint32, value float64)
	TouchBindingFunc      func(t *Touch)
	TabletToolBindingFunc func(tool *TabletTool, button uint32)
)

// Binding is a registered shortcut. Remove unregisters it.
type Binding struct {
	code   uint32
	mod    Modifier
	remove func()
}

// Remove unregisters the binding. Calling it twice is harmless.
func (b *Binding) Remove() {
	if b.remove != nil {
		b.remove()
		b.remove = nil
	}
}

type entry[F any] struct {
	*Binding
	fn F
}

type bindingList[F any] struct {
	entries []*entry[F]
}

func (l *bindingList[F]) add(code uint32, mod Modifier, fn F) *Binding {
	e := &entry[F]{Binding: &Binding{code: code, mod: mod}, fn: fn}
	e.remove = func() {
		if i := slices.Index(l.entries, e); i >= 0 {
			l.entries = slices.Delete(l.entries, i, i+1)
		}
	}
	l.entries = append(l.entries, e)
	return e.Binding
}

// match returns the handlers whose code and modifiers match exactly.
func (l *bindingList[F]) match(code uint32, mods Modifier) []F {
	var out []F
	for _, e := range l.entries {
		if e.code == code && e.mod == mods {
			out = append(out, e.fn)
		}
	}
	return out
}

// Bindings holds compositor shortcuts. A binding fires when its key or
// button is pressed while exactly its modifiers are held.
type Bindings struct {
	keys    bindingList[KeyBindingFunc]
	buttons bindingList[ButtonBindingFunc]
	axes    bindingList[AxisBindingFunc]
	touches bindingList[TouchBindingFunc]
	tools   bindingList[TabletToolBindingFunc]
}

func NewBindings() *Bindings { return &Bindings{} }

func (b *Bindings) AddKey(key uint32, mod Modifier, fn KeyBindingFunc) *Binding {
	return b.keys.add(key, mod, fn)
}

func (b *Bindings) AddButton(button uint32, mod Modifier, fn ButtonBindingFunc) *Binding {
	return b.buttons.add(button, mod, fn)
}

func (b *Bindings) AddAxis(axis uint32, mod Modifier, fn AxisBindingFunc) *Binding {
	return b.axes.add(axis, mod, fn)
}

func (b *Bindings) AddTouch(mod Modifier, fn TouchBindingFunc) *Binding {
	return b.touches.add(0, mod, fn)
}

func (b *Bindings) AddTabletTool(button uint32, mod Modifier, fn TabletToolBindingFunc) *Binding {
	return b.tools.add(button, mod, fn)
}

// Len returns the number of registered bindings of every kind.
func (b *Bindings) Len() int {
	return len(b.keys.entries) + len(b.buttons.entries) + len(b.axes.entries) +
		len(b.touches.entries) + len(b.tools.entries)
}

func (b *Bindings) runKey(k *Keyboard, key uint32, mods Modifier) bool {
	fns := b.keys.match(key, mods)
	for _, fn := range fns {
		fn(k, key)
	}
	return len(fns) > 0
}

func (b *Bindings) runButton(p *Pointer, button uint32, mods Modifier) {
	for _, fn := range b.buttons.match(button, mods) {
		fn(p, button)
	}
}

func (b *Bindings) runAxis(p *Pointer, axis uint32, value float64, mods Modifier) bool {
	fns := b.axes.match(axis, mods)
	for _, fn := range fns {
		fn(p, axis, value)
	}
	return len(fns) > 0
}

func (b *Bindings) runTouch(t *Touch, mods Modifier) {
	for _, fn := range b.touches.match(0, mods) {
		fn(t)
	}
}

func (b *Bindings) runTabletTool(tool *TabletTool, button uint32, mods Modifier) {
	for _, fn := range b.tools.match(button, mods) {
		fn(tool, button)
	}
}
