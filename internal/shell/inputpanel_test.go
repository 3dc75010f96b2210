package shell

import (
	"testing"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInputPanel(t *testing.T, f *fixture, w, h int32) *InputPanel {
	t.Helper()
	surf := f.c.CreateSurface(f.client)
	ip, err := f.shell.NewInputPanel(surf)
	require.NoError(t, err)
	surf.Attach(scene.NewSHMBuffer(w, h, scene.FormatARGB8888, nil), geom.SurfacePoint{})
	require.NoError(t, surf.Commit())
	return ip
}

func TestInputPanelShownOnRequest(t *testing.T) {
	f := newFixture(t)
	ip := newInputPanel(t, f, 400, 100)
	assert.Nil(t, ip.View().Layer(), "hidden until a text input asks")
	assert.Equal(t, "input panel", ip.Surface().Label())

	f.shell.ShowInputPanels()
	assert.True(t, f.shell.InputPanelsShown())
	assert.Equal(t, scene.LayerPositionTopUI, f.shell.InputPanelLayer().Position())
	assert.Equal(t, f.shell.InputPanelLayer(), ip.View().Layer())
	assert.Equal(t, at(200, 500), ip.View().Position())

	f.shell.HideInputPanels()
	assert.False(t, f.shell.InputPanelsShown())
	assert.Equal(t, scene.LayerPositionNone, f.shell.InputPanelLayer().Position())
	assert.Nil(t, ip.View().Layer())
}

func TestInputPanelCommittedWhileShown(t *testing.T) {
	f := newFixture(t)
	f.shell.ShowInputPanels()

	ip := newInputPanel(t, f, 300, 50)

	assert.Equal(t, f.shell.InputPanelLayer(), ip.View().Layer())
	assert.Equal(t, at(250, 550), ip.View().Position())
}

func TestInputPanelDocksToToplevelOutput(t *testing.T) {
	f := newFixture(t)
	o2, err := f.backend.AddOutput("headless-2", 1000, 500)
	require.NoError(t, err)
	ip := newInputPanel(t, f, 400, 100)

	ip.SetToplevel(o2)
	f.shell.ShowInputPanels()

	assert.Equal(t, at(800+300, 400), ip.View().Position())
}

func TestInputPanelRoleIsExclusive(t *testing.T) {
	f := newFixture(t)
	ip := newInputPanel(t, f, 400, 100)

	_, err := f.shell.NewInputPanel(ip.Surface())

	assert.ErrorIs(t, err, errInvalidObject)
}

func TestInputPanelDestroyed(t *testing.T) {
	f := newFixture(t)
	ip := newInputPanel(t, f, 400, 100)
	f.shell.ShowInputPanels()
	v := ip.View()

	ip.Surface().Destroy()

	assert.True(t, v.IsDestroyed())
	assert.Empty(t, f.shell.InputPanelLayer().Views())
	assert.Nil(t, ip.View())
}
