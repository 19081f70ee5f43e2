package processor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// Resize scales the frame to exactly the requested size.
func Resize(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error) {
	p, err := paramsAs[model.ResizeParams](model.TransformResize, params)
	if err != nil {
		return nil, err
	}

	return imaging.Resize(src, p.Size.Width, p.Size.Height, imaging.Lanczos), nil
}

// Flip mirrors the frame. Both applies the vertical flip, then the horizontal one.
func Flip(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error) {
	p, err := paramsAs[model.FlipParams](model.TransformFlip, params)
	if err != nil {
		return nil, err
	}

	switch p.Mode {
	case model.FlipVertical:
		return imaging.FlipV(src), nil
	case model.FlipHorizontal:
		return imaging.FlipH(src), nil
	case model.FlipBoth:
		return imaging.FlipH(imaging.FlipV(src)), nil
	default:
		return nil, &model.ValidationError{Field: "mode", Constraint: "oneof=vertical horizontal both"}
	}
}

// Pad places the frame on a canvas of the target size filled with the pad color.
// The frame is positioned by the centering fractions; a frame larger than the
// canvas is cut by the canvas edges at the same fractions.
func Pad(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error) {
	p, err := paramsAs[model.PadParams](model.TransformPad, params)
	if err != nil {
		return nil, err
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tw, th := p.TargetSize.Width, p.TargetSize.Height

	x := int(math.Round(float64(tw-w) * p.Centering.X))
	y := int(math.Round(float64(th-h) * p.Centering.Y))

	canvas := imaging.New(tw, th, p.Color)
	return imaging.Paste(canvas, src, image.Pt(x, y)), nil
}

// Crop extracts the box. The result always has the box's size; parts of the
// box lying outside the frame are transparent.
func Crop(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error) {
	p, err := paramsAs[model.CropParams](model.TransformCrop, params)
	if err != nil {
		return nil, err
	}

	box := p.Box.Rect()

	canvas := imaging.New(box.Dx(), box.Dy(), color.NRGBA{})
	return imaging.Paste(canvas, src, image.Point{}.Sub(box.Min)), nil
}

// Rotate turns the frame counter-clockwise, expanding the canvas to fit.
// Uncovered corners are transparent.
func Rotate(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error) {
	p, err := paramsAs[model.RotateParams](model.TransformRotate, params)
	if err != nil {
		return nil, err
	}

	return imaging.Rotate(src, float64(p.Angle), color.NRGBA{}), nil
}

func paramsAs[T model.TransformParams](name string, params model.TransformParams) (T, error) {
	p, ok := params.(T)
	if !ok {
		var zero T
		return zero, &model.ValidationError{
			Field:      "params",
			Constraint: name,
			Err:        errWrongShape(params),
		}
	}
	return p, nil
}

func errWrongShape(params model.TransformParams) error {
	return fmt.Errorf("unexpected params shape %q", model.ShapeOf(params))
}
