// Package renderer provides the software renderers the compositor can run
// without a GPU.
package renderer

import (
	"errors"
	"fmt"

	"github.com/bnema/waycomp/internal/scene"
)

var (
	ErrUnknownRenderer     = errors.New("unknown renderer")
	ErrRendererUnavailable = errors.New("renderer not available in this build")
)

// Names lists the renderer names accepted by New.
var Names = []string{"pixman", "noop", "gl", "vulkan"}

// New returns the renderer registered under name.
func New(name string) (scene.Renderer, error) {
	switch name {
	case "pixman", "":
		return NewPixman(), nil
	case "noop":
		return NewNoop(), nil
	case "gl", "vulkan":
		return nil, fmt.Errorf("%w: %s", ErrRendererUnavailable, name)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, name)
}
