package seat

import (
	"testing"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchFocusFollowsFirstPoint(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, "a", 0, 0, 100, 100)
	f.window(t, "b", 200, 0, 100, 100)
	tch := f.seat.Touch()

	activated := 0
	f.m.Bindings.AddTouch(0, func(*Touch) { activated++ })

	tch.Down(0, at(10, 10))
	tch.Down(1, at(250, 10))
	assert.Equal(t, a, tch.Focus(), "later points share the first focus")
	assert.Equal(t, 1, activated)
	assert.Equal(t, []int32{0, 1}, tch.IDs())
	assert.Equal(t, at(10, 10), tch.GrabPosition())

	downs := protocol.EventsOf[protocol.TouchDown](a.Surface().Client())
	require.Len(t, downs, 2)
	assert.Equal(t, 250.0, downs[1].X)

	tch.Motion(1, at(260, 20))
	tch.Up(1)
	tch.Up(0)
	tch.Up(7)
	assert.Nil(t, tch.Focus())
	assert.Equal(t, 0, tch.NumPoints())
	assert.Len(t, protocol.EventsOf[protocol.TouchUp](a.Surface().Client()), 2)
	assert.Len(t, protocol.EventsOf[protocol.TouchMotion](a.Surface().Client()), 1)
}

type touchGrab struct {
	downs, ups, motions, canceled int
}

func (g *touchGrab) Down(*TouchGrab, int32, geom.GlobalPoint) { g.downs++ }
func (g *touchGrab) Up(*TouchGrab, int32) { g.ups++ }
func (g *touchGrab) Motion(*TouchGrab, int32, geom.GlobalPoint) { g.motions++ }
func (g *touchGrab) Cancel(*TouchGrab) { g.canceled++ }

func TestTouchGrab(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, "a", 0, 0, 100, 100)
	tch := f.seat.Touch()
	tch.Down(0, at(10, 10))

	h := &touchGrab{}
	g := tch.StartGrab(h)
	tch.Motion(0, at(20, 20))
	tch.Up(0)
	assert.Equal(t, 1, h.motions)
	assert.Equal(t, 1, h.ups)
	assert.Empty(t, protocol.EventsOf[protocol.TouchUp](a.Surface().Client()))

	f.seat.ReleaseTouch()
	assert.Equal(t, 1, h.canceled)
	assert.False(t, g.Active())
}

type toolGrab struct {
	motions, ups, out, canceled int
}

func (g *toolGrab) Motion(*TabletToolGrab, geom.GlobalPoint) { g.motions++ }
func (g *toolGrab) Down(*TabletToolGrab) {}
func (g *toolGrab) Up(*TabletToolGrab) { g.ups++ }
func (g *toolGrab) Button(*TabletToolGrab, uint32, bool) {}
func (g *toolGrab) ProximityOut(tg *TabletToolGrab) {
	g.out++
	tg.End()
}
func (g *toolGrab) Cancel(*TabletToolGrab) { g.canceled++ }

func TestTabletTool(t *testing.T) {
	f := newFixture(t)
	a := f.window(t, "a", 0, 0, 100, 100)

	var added []*TabletTool
	f.m.ToolAdded.Subscribe(func(tool *TabletTool) { added = append(added, tool) })
	tool := f.seat.AddTabletTool("pen")
	require.Equal(t, []*TabletTool{tool}, added)

	h := &toolGrab{}
	f.m.Bindings.AddTabletTool(BtnTouch, 0, func(tool *TabletTool, _ uint32) { tool.StartGrab(h) })

	tool.ProximityIn(at(10, 10))
	assert.True(t, tool.InProximity())
	assert.Equal(t, a, tool.Focus())

	tool.Down()
	require.NotNil(t, tool.Grab())
	assert.Equal(t, at(10, 10), tool.GrabPosition())
	tool.Motion(at(30, 30))
	tool.Up()
	tool.ProximityOut()
	assert.Equal(t, 1, h.motions)
	assert.Equal(t, 1, h.ups)
	assert.Equal(t, 1, h.out)
	assert.Nil(t, tool.Grab())

	f.seat.ReleaseTabletTools()
	assert.Empty(t, f.seat.TabletTools())
}
