package model

import (
	"fmt"
	"image"
	"math"
)

// MaxFrameDimension is the largest width or height a GIF can describe.
const MaxFrameDimension = 65535

// Limits bounds the memory one pipeline invocation may allocate.
type Limits struct {
	MaxDimension   int   // widest or tallest frame decoded or produced
	MaxTotalPixels int64 // width*height summed over all decoded frames
}

// DefaultLimits allow 4096x4096 frames and roughly 1 GiB of decoded RGBA.
var DefaultLimits = Limits{
	MaxDimension:   4096,
	MaxTotalPixels: 1 << 28,
}

// Dimension returns the effective frame dimension limit.
func (l Limits) Dimension() int {
	if l.MaxDimension <= 0 || l.MaxDimension > MaxFrameDimension {
		return MaxFrameDimension
	}
	return l.MaxDimension
}

// CheckFrames rejects a source whose frames would exceed the limits once
// decoded. It is a *DecodeError since the source itself is at fault.
func (l Limits) CheckFrames(size image.Point, frames int) error {
	maxDim := l.Dimension()
	if size.X > maxDim || size.Y > maxDim {
		return &DecodeError{Reason: fmt.Sprintf("canvas %dx%d exceeds the %d pixel limit", size.X, size.Y, maxDim)}
	}
	if l.MaxTotalPixels > 0 && frames > 0 {
		total := int64(size.X) * int64(size.Y)
		if total > l.MaxTotalPixels/int64(frames) {
			return &DecodeError{Reason: fmt.Sprintf("%d frames of %dx%d exceed the %d pixel budget", frames, size.X, size.Y, l.MaxTotalPixels)}
		}
	}
	return nil
}

// CheckSteps rejects steps whose explicit output size exceeds the
// dimension limit. Sizes that depend on the frame (rotation) are checked
// while frames are processed, see StepSize.
func (l Limits) CheckSteps(steps []PipelineStep) error {
	maxDim := l.Dimension()
	for i, step := range steps {
		field := fmt.Sprintf("pipeline[%d]", i)
		switch p := step.Params.(type) {
		case ResizeParams:
			if err := checkSize(p.Size.Point(), maxDim, field+".size"); err != nil {
				return err
			}
		case PadParams:
			if err := checkSize(p.TargetSize.Point(), maxDim, field+".target_size"); err != nil {
				return err
			}
		case CropParams:
			if err := checkSize(p.Box.Rect().Size(), maxDim, field+".coordinates"); err != nil {
				return err
			}
		}
	}
	return nil
}

// StepSize predicts the frame size produced by params applied to a frame of
// size in. ok is false for parameter shapes with no known geometry.
func StepSize(params TransformParams, in image.Point) (image.Point, bool) {
	switch p := params.(type) {
	case ResizeParams:
		return p.Size.Point(), true
	case PadParams:
		return p.TargetSize.Point(), true
	case CropParams:
		return p.Box.Rect().Size(), true
	case FlipParams:
		return in, true
	case RotateParams:
		return rotatedSize(in, p.Angle), true
	default:
		return in, false
	}
}

// CheckStep rejects step i when the frame it would produce exceeds the limit.
func (l Limits) CheckStep(i int, params TransformParams, in image.Point) error {
	out, ok := StepSize(params, in)
	if !ok {
		return nil
	}
	return checkSize(out, l.Dimension(), fmt.Sprintf("pipeline[%d]", i))
}

// rotatedSize is the bounding box of a w x h frame rotated by angle degrees.
// It rounds up, so it never underestimates the allocated canvas.
func rotatedSize(in image.Point, angle int) image.Point {
	a := ((angle % 360) + 360) % 360
	switch a {
	case 0, 180:
		return in
	case 90, 270:
		return image.Pt(in.Y, in.X)
	}

	rad := float64(a) * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	w, h := float64(in.X), float64(in.Y)
	return image.Pt(int(math.Ceil(w*cos+h*sin)), int(math.Ceil(w*sin+h*cos)))
}

func checkSize(size image.Point, maxDim int, field string) error {
	if size.X > maxDim || size.Y > maxDim {
		return &ValidationError{
			Field:      field,
			Constraint: fmt.Sprintf("max_dimension=%d", maxDim),
			Err:        fmt.Errorf("%dx%d exceeds %d", size.X, size.Y, maxDim),
		}
	}
	return nil
}
