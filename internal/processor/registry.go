package processor

import (
	"image"
	"sort"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// Transform produces a new frame from src. It must not modify src.
type Transform func(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error)

// Registry maps step names to transforms.
//
// Register is meant for setup only: once a Registry is handed to a
// Processor it is read concurrently and must not change.
type Registry struct {
	transforms map[string]Transform
}

// NewRegistry returns a registry holding the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]Transform)}

	r.Register(model.TransformResize, Resize)
	r.Register(model.TransformFlip, Flip)
	r.Register(model.TransformPad, Pad)
	r.Register(model.TransformCrop, Crop)
	r.Register(model.TransformRotate, Rotate)

	return r
}

// Register adds or replaces the transform for name.
func (r *Registry) Register(name string, t Transform) {
	r.transforms[name] = t
}

// Lookup returns the transform registered under name. Names are case-sensitive.
func (r *Registry) Lookup(name string) (Transform, bool) {
	t, ok := r.transforms[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
