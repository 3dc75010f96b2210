package scene

import (
	"image"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
)

type mockBackend struct {
	starts    int
	repaints  []geom.Region
	dpms      []PowerState
	backlit   []int32
	failStart bool
	timers    map[*Output]*eventloop.Timer
}

func newMockBackend() *mockBackend {
	return &mockBackend{timers: map[*Output]*eventloop.Timer{}}
}

func (b *mockBackend) StartRepaintLoop(o *Output) error {
	b.starts++
	if b.failStart {
		return errTestStart
	}
	o.Compositor().FinishFrame(o, o.Compositor().Now())
	return nil
}

func (b *mockBackend) Repaint(o *Output, damage geom.Region) error {
	b.repaints = append(b.repaints, damage)
	t, ok := b.timers[o]
	if !ok {
		c := o.Compositor()
		t = c.Loop().AddTimer(func() { c.FinishFrame(o, c.Now()) })
		b.timers[o] = t
	}
	t.Arm(o.RefreshInterval())
	return nil
}

func (b *mockBackend) SetDPMS(_ *Output, state PowerState) { b.dpms = append(b.dpms, state) }
func (b *mockBackend) DestroyOutput(o *Output) {
	if t, ok := b.timers[o]; ok {
		t.Remove()
	}
}

type backlightBackend struct {
	*mockBackend
}

func (b backlightBackend) SetBacklight(_ *Output, level int32) {
	b.backlit = append(b.backlit, level)
}

type mockRB struct{ size geom.Size }

func (rb *mockRB) Size() geom.Size { return rb.size }

type mockRenderer struct {
	attached   map[uint32]*Buffer
	detached   []uint32
	repaints   int
	lastPaint  []*View
	lastDamage geom.Region
}

func newMockRenderer() *mockRenderer {
	return &mockRenderer{attached: map[uint32]*Buffer{}}
}

func (r *mockRenderer) Name() string { return "mock" }

func (r *mockRenderer) CreateRenderbuffer(o *Output) (Renderbuffer, error) {
	return &mockRB{size: o.Mode().Size()}, nil
}

func (r *mockRenderer) DestroyRenderbuffer(Renderbuffer) {}

func (r *mockRenderer) AttachSurface(s *Surface, b *Buffer) error {
	r.attached[s.ID()] = b
	return nil
}

func (r *mockRenderer) DetachSurface(s *Surface) {
	r.detached = append(r.detached, s.ID())
}

func (r *mockRenderer) RepaintOutput(o *Output, damage geom.Region, _ Renderbuffer) error {
	r.repaints++
	r.lastPaint = o.Compositor().PaintList(o)
	r.lastDamage = damage
	return nil
}

type readingRenderer struct {
	*mockRenderer
}

func (r readingRenderer) ReadPixels(o *Output, _ Renderbuffer) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, int(o.Mode().Width), int(o.Mode().Height))), nil
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errTestStart = testErr("start failed")

type fixture struct {
	loop     *eventloop.Loop
	clock    *eventloop.ManualClock
	c        *Compositor
	backend  *mockBackend
	renderer *mockRenderer
	client   *protocol.Client
	normal   *Layer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := eventloop.NewManualClock(time.Unix(1000, 0))
	loop := eventloop.New(eventloop.WithClock(clock))
	r := newMockRenderer()
	c := New(loop, append([]Option{WithRenderer(r), WithIdleTime(0)}, opts...)...)
	normal := c.NewLayer("normal")
	normal.SetPosition(LayerPositionNormal)
	return &fixture{
		loop:     loop,
		clock:    clock,
		c:        c,
		backend:  newMockBackend(),
		renderer: r,
		client:   protocol.NewClient("test", 42),
		normal:   normal,
	}
}

func (f *fixture) output(t *testing.T, name string, w, h int32) *Output {
	t.Helper()
	o, err := f.c.AddOutput(name, Mode{Width: w, Height: h, Refresh: 60000}, f.backend)
	if err != nil {
		t.Fatalf("add output: %v", err)
	}
	return o
}

// toplevel creates a mapped surface of size w x h with a view in the normal
// layer at (x, y).
func (f *fixture) toplevel(t *testing.T, w, h int32, x, y float64) (*Surface, *View) {
	t.Helper()
	s := f.c.CreateSurface(f.client)
	if err := s.SetRole(&FuncRole{RoleKind: RoleToplevel}); err != nil {
		t.Fatalf("set role: %v", err)
	}
	v := f.c.CreateView(s)
	s.Attach(NewSHMBuffer(w, h, FormatARGB8888, nil), geom.SurfacePoint{})
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	s.Map()
	v.SetPosition(x, y)
	v.MoveToLayer(f.normal)
	return s, v
}

func (f *fixture) surface(t *testing.T, w, h int32) *Surface {
	t.Helper()
	s := f.c.CreateSurface(f.client)
	if w > 0 {
		s.Attach(NewSHMBuffer(w, h, FormatARGB8888, nil), geom.SurfacePoint{})
	}
	return s
}
