package seat

import "strings"

// Linux input event codes used by bindings and the test driver.
const (
	KeyEsc            uint32 = 1
	Key1              uint32 = 2
	KeyBackspace      uint32 = 14
	KeyTab            uint32 = 15
	KeyQ              uint32 = 16
	KeyK              uint32 = 37
	KeyLeftCtrl       uint32 = 29
	KeyLeftShift      uint32 = 42
	KeyM              uint32 = 50
	KeyRightShift     uint32 = 54
	KeyLeftAlt        uint32 = 56
	KeySpace          uint32 = 57
	KeyF              uint32 = 33
	KeyF9             uint32 = 67
	KeyF10            uint32 = 68
	KeyRightCtrl      uint32 = 97
	KeyRightAlt       uint32 = 100
	KeyUp             uint32 = 103
	KeyLeft           uint32 = 105
	KeyRight          uint32 = 106
	KeyDown           uint32 = 108
	KeyLeftMeta       uint32 = 125
	KeyRightMeta      uint32 = 126
	KeyBrightnessDown uint32 = 224
	KeyBrightnessUp   uint32 = 225

	BtnLeft   uint32 = 0x110
	BtnRight  uint32 = 0x111
	BtnMiddle uint32 = 0x112
	BtnTouch  uint32 = 0x14a
)

// Pointer axes.
const (
	AxisVerticalScroll   uint32 = 0
	AxisHorizontalScroll uint32 = 1
)

// Modifier is a set of held modifier keys.
type Modifier uint32

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModSuper
	ModShift
)

// modifierForKey maps a modifier key code to its flag.
func modifierForKey(key uint32) Modifier {
	switch key {
	case KeyLeftCtrl, KeyRightCtrl:
		return ModCtrl
	case KeyLeftAlt, KeyRightAlt:
		return ModAlt
	case KeyLeftMeta, KeyRightMeta:
		return ModSuper
	case KeyLeftShift, KeyRightShift:
		return ModShift
	}
	return 0
}

// ParseModifier reads a configured binding modifier. Unknown or empty values
// give ModSuper; "none" gives no modifier.
func ParseModifier(s string) Modifier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ctrl", "control":
		return ModCtrl
	case "alt":
		return ModAlt
	case "shift":
		return ModShift
	case "none":
		return 0
	}
	return ModSuper
}

func (m Modifier) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if m&ModSuper != 0 {
		parts = append(parts, "super")
	}
	if m&ModShift != 0 {
		parts = append(parts, "shift")
	}
	return strings.Join(parts, "+")
}
