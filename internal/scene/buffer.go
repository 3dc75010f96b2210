package scene

import (
	"fmt"

	"github.com/bnema/waycomp/internal/signal"
)

// Format is a pixel format. Values follow the wl_shm enum for the two
// mandatory formats.
type Format uint32

const (
	FormatARGB8888 Format = 0
	FormatXRGB8888 Format = 1
	// FormatSolid marks a single-color buffer with no pixel storage.
	FormatSolid Format = 0xffffffff
)

func (f Format) String() string {
	switch f {
	case FormatARGB8888:
		return "argb8888"
	case FormatXRGB8888:
		return "xrgb8888"
	case FormatSolid:
		return "solid"
	}
	return fmt.Sprintf("format(%#x)", uint32(f))
}

// Color is a straight-alpha RGBA color.
type Color struct {
	R, G, B, A float32
}

// ColorFromARGB decodes a 0xAARRGGBB value.
func ColorFromARGB(v uint32) Color {
	return Color{
		A: float32((v>>24)&0xff) / 255,
		R: float32((v>>16)&0xff) / 255,
		G: float32((v>>8)&0xff) / 255,
		B: float32(v&0xff) / 255,
	}
}

var (
	ColorBlack = Color{A: 1}
	ColorWhite = Color{R: 1, G: 1, B: 1, A: 1}
)

// Buffer is client pixel content.
type Buffer struct {
	Width  int32
	Height int32
	Stride int32
	Format Format
	Data   []byte
	Solid  Color

	Destroyed signal.Signal[*Buffer]
	released  bool
}

// NewSHMBuffer wraps a shared-memory style pixel buffer.
func NewSHMBuffer(width, height int32, format Format, data []byte) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Stride: width * 4,
		Format: format,
		Data:   data,
	}
}

// NewSolidBuffer creates a single-color buffer. Surfaces showing it take
// their size from Surface.SetSolidSize.
func NewSolidBuffer(c Color) *Buffer {
	return &Buffer{Width: 1, Height: 1, Format: FormatSolid, Solid: c}
}

func (b *Buffer) IsSolid() bool { return b != nil && b.Format == FormatSolid }

// Opaque reports whether the buffer content has no translucency.
func (b *Buffer) Opaque() bool {
	if b == nil {
		return false
	}
	if b.IsSolid() {
		return b.Solid.A >= 1
	}
	return b.Format == FormatXRGB8888
}

func (b *Buffer) Released() bool { return b.released }

// Destroy is the client destroying its wl_buffer.
func (b *Buffer) Destroy() {
	b.Destroyed.Emit(b)
}
