package renderer

import (
	"image"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{"pixman", "pixman", nil},
		{"", "pixman", nil},
		{"noop", "noop", nil},
		{"gl", "", ErrRendererUnavailable},
		{"vulkan", "", ErrRendererUnavailable},
		{"software", "", ErrUnknownRenderer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.name)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Name())
		})
	}
}

type pixmanFixture struct {
	loop   *eventloop.Loop
	c      *scene.Compositor
	r      *Pixman
	o      *scene.Output
	layer  *scene.Layer
	client *protocol.Client
}

func newPixmanFixture(t *testing.T) *pixmanFixture {
	t.Helper()
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	r := NewPixman()
	c := scene.New(loop, scene.WithRenderer(r), scene.WithIdleTime(0))
	b := headless.New(c, headless.Config{Width: 64, Height: 64, Refresh: 60000, Outputs: 1})
	require.NoError(t, b.CreateOutputs())
	l := c.NewLayer("normal")
	l.SetPosition(scene.LayerPositionNormal)
	return &pixmanFixture{loop: loop, c: c, r: r, o: c.Outputs()[0], layer: l, client: protocol.NewClient("px", 1)}
}

func (f *pixmanFixture) place(t *testing.T, b *scene.Buffer, w, h int32, x, y float64) *scene.View {
	t.Helper()
	s := f.c.CreateSurface(f.client)
	require.NoError(t, s.SetRole(&scene.FuncRole{RoleKind: scene.RoleToplevel}))
	v := f.c.CreateView(s)
	s.Attach(b, geom.SurfacePoint{})
	if b.IsSolid() {
		s.SetSolidSize(w, h)
	}
	require.NoError(t, s.Commit())
	s.Map()
	v.SetPosition(x, y)
	v.MoveToLayer(f.layer)
	return v
}

func (f *pixmanFixture) capture(t *testing.T) *image.RGBA {
	t.Helper()
	var got *image.RGBA
	f.o.Capture(func(img *image.RGBA, err error) {
		require.NoError(t, err)
		got = img
	})
	f.loop.Advance(40 * time.Millisecond)
	require.NotNil(t, got)
	return got
}

func TestPixmanSolidAndOrder(t *testing.T) {
	f := newPixmanFixture(t)
	f.place(t, scene.NewSolidBuffer(scene.Color{R: 1, A: 1}), 32, 32, 0, 0)
	f.place(t, scene.NewSolidBuffer(scene.Color{B: 1, A: 1}), 16, 16, 8, 8)

	img := f.capture(t)
	assert.Equal(t, uint8(0xff), img.RGBAAt(2, 2).R)
	assert.Equal(t, uint8(0xff), img.RGBAAt(10, 10).B, "later view stacks on top")
	assert.Equal(t, uint8(0), img.RGBAAt(10, 10).R)
	assert.Equal(t, uint8(0), img.RGBAAt(40, 40).R, "background stays black")
	assert.Equal(t, uint8(0xff), img.RGBAAt(40, 40).A)
}

func TestPixmanAlpha(t *testing.T) {
	f := newPixmanFixture(t)
	v := f.place(t, scene.NewSolidBuffer(scene.ColorWhite), 64, 64, 0, 0)
	v.SetAlpha(0.5)

	img := f.capture(t)
	assert.InDelta(t, 128, int(img.RGBAAt(5, 5).G), 1)
}

func TestPixmanSamplesSHM(t *testing.T) {
	f := newPixmanFixture(t)
	data := make([]byte, 4*4*4)
	for i := 0; i < len(data); i += 4 {
		data[i+1] = 0xff // green in BGRA byte order
	}
	f.place(t, scene.NewSHMBuffer(4, 4, scene.FormatXRGB8888, data), 4, 4, 20, 20)

	img := f.capture(t)
	assert.Equal(t, uint8(0xff), img.RGBAAt(21, 21).G)
	assert.Equal(t, uint8(0), img.RGBAAt(25, 25).G)
}

func TestPixmanFallbackColor(t *testing.T) {
	f := newPixmanFixture(t)
	short := scene.NewSHMBuffer(8, 8, scene.FormatARGB8888, make([]byte, 10))
	f.place(t, short, 8, 8, 0, 0)
	f.place(t, scene.NewSHMBuffer(8, 8, scene.FormatARGB8888, make([]byte, 3)), 8, 8, 16, 0)
	assert.True(t, f.r.warned)

	img := f.capture(t)
	px := img.RGBAAt(1, 1)
	assert.Equal(t, uint8(51), px.R)
	assert.Equal(t, uint8(26), px.G)
	assert.Equal(t, uint8(0), px.B)
}

func TestPixmanDetach(t *testing.T) {
	f := newPixmanFixture(t)
	v := f.place(t, scene.NewSolidBuffer(scene.ColorWhite), 8, 8, 0, 0)
	require.Len(t, f.r.sources, 1)
	v.Surface().Destroy()
	assert.Empty(t, f.r.sources)
}
