package processor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// gradient returns a frame whose pixels are all distinct for small sizes.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func process(t *testing.T, frame *image.NRGBA, steps ...model.PipelineStep) *image.NRGBA {
	t.Helper()
	out, err := New(NewRegistry()).Process(context.Background(), frame, steps)
	require.NoError(t, err)
	return out
}

func step(name string, p model.TransformParams) model.PipelineStep {
	return model.PipelineStep{Name: name, Params: p}
}

func TestResize_ExactSize(t *testing.T) {
	for _, size := range []model.Size{{Width: 1, Height: 1}, {Width: 7, Height: 3}, {Width: 40, Height: 90}} {
		out := process(t, gradient(10, 10), step("resize", model.ResizeParams{Size: size}))
		assert.Equal(t, size.Point(), out.Bounds().Size())
	}
}

func TestFlip_Involution(t *testing.T) {
	src := gradient(5, 3)
	for _, mode := range []model.FlipMode{model.FlipVertical, model.FlipHorizontal, model.FlipBoth} {
		flip := step("flip", model.FlipParams{Mode: mode})
		out := process(t, src, flip, flip)
		assert.Equal(t, src.Pix, out.Pix, "mode %s", mode)
	}
}

func TestFlip_BothIsVerticalThenHorizontal(t *testing.T) {
	src := gradient(4, 6)

	both := process(t, src, step("flip", model.FlipParams{Mode: model.FlipBoth}))
	seq := process(t, src,
		step("flip", model.FlipParams{Mode: model.FlipVertical}),
		step("flip", model.FlipParams{Mode: model.FlipHorizontal}),
	)

	assert.Equal(t, seq.Pix, both.Pix)
	assert.Equal(t, src.NRGBAAt(0, 0), both.NRGBAAt(3, 5))
}

func TestFlip_Vertical(t *testing.T) {
	src := gradient(3, 3)
	out := process(t, src, step("flip", model.FlipParams{Mode: model.FlipVertical}))
	assert.Equal(t, src.NRGBAAt(1, 0), out.NRGBAAt(1, 2))
}

func TestPad_CentersAndFills(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	green := color.NRGBA{G: 128, A: 255}

	out := process(t, solid(2, 2, red), step("pad", model.PadParams{
		TargetSize: model.Size{Width: 4, Height: 6},
		Color:      green,
		Centering:  model.Centering{X: 0.5, Y: 0.5},
	}))

	require.Equal(t, image.Pt(4, 6), out.Bounds().Size())
	for y := 0; y < 6; y++ {
		for x := 0; x < 4; x++ {
			inside := x >= 1 && x < 3 && y >= 2 && y < 4
			if inside {
				assert.Equal(t, red, out.NRGBAAt(x, y), "(%d,%d)", x, y)
			} else {
				assert.Equal(t, green, out.NRGBAAt(x, y), "(%d,%d)", x, y)
			}
		}
	}
}

func TestPad_CenteringCorners(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	src := solid(1, 1, red)

	tests := []struct {
		centering model.Centering
		at        image.Point
	}{
		{model.Centering{X: 0, Y: 0}, image.Pt(0, 0)},
		{model.Centering{X: 1, Y: 1}, image.Pt(4, 4)},
		{model.Centering{X: 1, Y: 0}, image.Pt(4, 0)},
		{model.Centering{X: 0.5, Y: 0.5}, image.Pt(2, 2)},
	}
	for _, tt := range tests {
		out := process(t, src, step("pad", model.PadParams{
			TargetSize: model.Size{Width: 5, Height: 5},
			Color:      color.NRGBA{A: 255},
			Centering:  tt.centering,
		}))
		assert.Equal(t, red, out.NRGBAAt(tt.at.X, tt.at.Y), "centering %+v", tt.centering)
	}
}

func TestPad_SymmetricBorder(t *testing.T) {
	src := solid(50, 50, color.NRGBA{R: 255, A: 255})
	fill := color.NRGBA{G: 128, A: 255}

	out := process(t, src, step("pad", model.PadParams{
		TargetSize: model.Size{Width: 100, Height: 100},
		Color:      fill,
		Centering:  model.Centering{X: 0.5, Y: 0.5},
	}))

	// mirrored images must be identical for a centered pad of a uniform frame
	flipped := imaging.FlipH(imaging.FlipV(out))
	assert.Equal(t, out.Pix, flipped.Pix)
	assert.Equal(t, fill, out.NRGBAAt(24, 50))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(25, 50))
}

func TestPad_OversizedSourceIsCut(t *testing.T) {
	src := gradient(6, 6)
	out := process(t, src, step("pad", model.PadParams{
		TargetSize: model.Size{Width: 2, Height: 2},
		Color:      color.NRGBA{A: 255},
		Centering:  model.Centering{X: 0.5, Y: 0.5},
	}))

	require.Equal(t, image.Pt(2, 2), out.Bounds().Size())
	assert.Equal(t, src.NRGBAAt(2, 2), out.NRGBAAt(0, 0))
}

func TestCrop_Size(t *testing.T) {
	src := gradient(10, 10)
	out := process(t, src, step("crop", model.CropParams{Box: model.Box{Left: 2, Top: 3, Right: 7, Bottom: 5}}))

	require.Equal(t, image.Pt(5, 2), out.Bounds().Size())
	assert.Equal(t, src.NRGBAAt(2, 3), out.NRGBAAt(0, 0))
	assert.Equal(t, src.NRGBAAt(6, 4), out.NRGBAAt(4, 1))
}

func TestCrop_OutsideFrameIsTransparent(t *testing.T) {
	src := solid(4, 4, color.NRGBA{B: 255, A: 255})
	out := process(t, src, step("crop", model.CropParams{Box: model.Box{Left: 2, Top: 2, Right: 8, Bottom: 6}}))

	require.Equal(t, image.Pt(6, 4), out.Bounds().Size())
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(2, 0))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(0, 3))
}

func TestRotate(t *testing.T) {
	src := gradient(5, 3)

	full := process(t, src, step("rotate", model.RotateParams{Angle: 360}))
	assert.Equal(t, src.Pix, full.Pix)

	quarter := process(t, src, step("rotate", model.RotateParams{Angle: 90}))
	assert.Equal(t, image.Pt(3, 5), quarter.Bounds().Size())
	// counter-clockwise: the top-right corner moves to the top-left
	assert.Equal(t, src.NRGBAAt(4, 0), quarter.NRGBAAt(0, 0))

	r90 := step("rotate", model.RotateParams{Angle: 90})
	four := process(t, src, r90, r90, r90, r90)
	assert.Equal(t, src.Pix, four.Pix)

	negative := process(t, src, step("rotate", model.RotateParams{Angle: -270}))
	assert.Equal(t, quarter.Pix, negative.Pix)
}

func TestProcess_Associative(t *testing.T) {
	steps := []model.PipelineStep{
		step("resize", model.ResizeParams{Size: model.Size{Width: 12, Height: 8}}),
		step("pad", model.PadParams{TargetSize: model.Size{Width: 16, Height: 16}, Color: color.NRGBA{A: 255}, Centering: model.Centering{X: 0.5, Y: 0.5}}),
		step("crop", model.CropParams{Box: model.Box{Left: 1, Top: 1, Right: 15, Bottom: 10}}),
		step("flip", model.FlipParams{Mode: model.FlipHorizontal}),
		step("rotate", model.RotateParams{Angle: 270}),
	}
	src := gradient(9, 9)
	whole := process(t, src, steps...)

	for k := 0; k <= len(steps); k++ {
		split := process(t, process(t, src, steps[:k]...), steps[k:]...)
		assert.Equal(t, whole.Pix, split.Pix, "split at %d", k)
		assert.Equal(t, whole.Bounds(), split.Bounds(), "split at %d", k)
	}
}

func TestProcess_DoesNotModifyInput(t *testing.T) {
	src := gradient(6, 6)
	before := imaging.Clone(src)

	out := process(t, src)
	out.Pix[0] = 1

	process(t, src,
		step("flip", model.FlipParams{Mode: model.FlipBoth}),
		step("crop", model.CropParams{Box: model.Box{Right: 3, Bottom: 3}}),
	)

	assert.Equal(t, before.Pix, src.Pix)
}

func TestProcess_UnknownTransform(t *testing.T) {
	p := New(NewRegistry())
	steps := []model.PipelineStep{
		step("flip", model.FlipParams{Mode: model.FlipVertical}),
		step("thumbnail", model.ResizeParams{Size: model.Size{Width: 1, Height: 1}}),
	}

	out, err := p.Process(context.Background(), gradient(3, 3), steps)
	assert.Nil(t, out)

	var nf *model.TransformNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "thumbnail", nf.Name)
	assert.Equal(t, 1, nf.Step)

	assert.ErrorAs(t, p.Check(steps), &nf)
	assert.NoError(t, p.Check(steps[:1]))
}

func TestProcess_NamesAreCaseSensitive(t *testing.T) {
	_, err := New(NewRegistry()).Process(context.Background(), gradient(2, 2),
		[]model.PipelineStep{step("Resize", model.ResizeParams{Size: model.Size{Width: 1, Height: 1}})})

	var nf *model.TransformNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestProcess_WrongParamsShape(t *testing.T) {
	_, err := New(NewRegistry()).Process(context.Background(), gradient(2, 2),
		[]model.PipelineStep{step("rotate", model.FlipParams{Mode: model.FlipVertical})})

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rotate", verr.Constraint)
}

func TestProcess_CustomTransform(t *testing.T) {
	r := NewRegistry()
	r.Register("thumbnail", func(src *image.NRGBA, params model.TransformParams) (*image.NRGBA, error) {
		p := params.(model.ResizeParams)
		return imaging.Fit(src, p.Size.Width, p.Size.Height, imaging.Box), nil
	})
	assert.Contains(t, r.Names(), "thumbnail")

	out, err := New(r).Process(context.Background(), gradient(8, 4),
		[]model.PipelineStep{step("thumbnail", model.ResizeParams{Size: model.Size{Width: 4, Height: 4}})})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 2), out.Bounds().Size())
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(NewRegistry()).Process(ctx, gradient(2, 2),
		[]model.PipelineStep{step("flip", model.FlipParams{Mode: model.FlipVertical})})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProcess_LimitsRejectOversizedStep(t *testing.T) {
	p := New(NewRegistry(), WithLimits(model.Limits{MaxDimension: 100}))

	tests := []struct {
		name  string
		frame *image.NRGBA
		steps []model.PipelineStep
		index int
	}{
		{
			name:  "resize",
			frame: gradient(10, 10),
			steps: []model.PipelineStep{step("resize", model.ResizeParams{Size: model.Size{Width: 200, Height: 10}})},
		},
		{
			name:  "pad after resize",
			frame: gradient(10, 10),
			steps: []model.PipelineStep{
				step("resize", model.ResizeParams{Size: model.Size{Width: 50, Height: 50}}),
				step("pad", model.PadParams{TargetSize: model.Size{Width: 50, Height: 101}}),
			},
			index: 1,
		},
		{
			// 90x90 rotated by 45 degrees needs a 128x128 canvas.
			name:  "rotate bounding box",
			frame: gradient(90, 90),
			steps: []model.PipelineStep{step("rotate", model.RotateParams{Angle: 45})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Process(context.Background(), tt.frame, tt.steps)
			assert.Nil(t, out)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "max_dimension=100", verr.Constraint)
			assert.Contains(t, verr.Field, "pipeline[")
			assert.Contains(t, err.Error(), tt.steps[tt.index].Name)
		})
	}
}

func TestProcess_LimitsAllowRightAngles(t *testing.T) {
	p := New(NewRegistry(), WithLimits(model.Limits{MaxDimension: 100}))

	out, err := p.Process(context.Background(), gradient(100, 40),
		[]model.PipelineStep{step("rotate", model.RotateParams{Angle: 90})})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 100), out.Bounds().Size())
}

func TestCheck_Limits(t *testing.T) {
	p := New(NewRegistry(), WithLimits(model.Limits{MaxDimension: 64}))

	var verr *model.ValidationError
	require.ErrorAs(t, p.Check([]model.PipelineStep{
		step("pad", model.PadParams{TargetSize: model.Size{Width: 64, Height: 64}}),
		step("resize", model.ResizeParams{Size: model.Size{Width: 65, Height: 1}}),
	}), &verr)
	assert.Equal(t, "pipeline[1].size", verr.Field)

	assert.NoError(t, p.Check([]model.PipelineStep{
		step("rotate", model.RotateParams{Angle: 45}),
		step("pad", model.PadParams{TargetSize: model.Size{Width: 64, Height: 64}}),
	}))
}
