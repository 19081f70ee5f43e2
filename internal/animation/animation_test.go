package animation

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/gif-processor/internal/model"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}

	testPalette = color.Palette{color.NRGBA{}, red, blue, green}
)

type gifFrame struct {
	rect     image.Rectangle
	index    uint8
	delay    int
	disposal byte
}

func buildGIF(t *testing.T, frames ...gifFrame) []byte {
	t.Helper()

	g := &gif.GIF{}
	for _, f := range frames {
		p := image.NewPaletted(f.rect, testPalette)
		for i := range p.Pix {
			p.Pix[i] = f.index
		}
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, f.delay)
		g.Disposal = append(g.Disposal, f.disposal)
	}
	g.Config = image.Config{ColorModel: testPalette, Width: 4, Height: 4}

	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestDecode_InvalidInput(t *testing.T) {
	for _, src := range [][]byte{nil, []byte("not an image"), []byte("GIF89a\x00\x00")} {
		_, err := Decode(src)

		var derr *model.DecodeError
		assert.ErrorAs(t, err, &derr, "input %q", src)
	}
}

func TestDecodeLimited_CanvasTooLarge(t *testing.T) {
	g := &gif.GIF{
		Image:  []*image.Paletted{image.NewPaletted(image.Rect(0, 0, 1, 1), testPalette)},
		Delay:  []int{0},
		Config: image.Config{ColorModel: testPalette, Width: 5000, Height: 10},
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))

	_, err := DecodeLimited(buf.Bytes(), model.DefaultLimits)
	var derr *model.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "5000x10")

	_, err = DecodeLimited(buf.Bytes(), model.Limits{MaxDimension: 5000})
	assert.NoError(t, err)
}

func TestDecodeLimited_PixelBudget(t *testing.T) {
	frames := make([]gifFrame, 5)
	for i := range frames {
		frames[i] = gifFrame{rect: image.Rect(0, 0, 4, 4), index: 1}
	}
	src := buildGIF(t, frames...)

	_, err := DecodeLimited(src, model.Limits{MaxTotalPixels: 79})
	var derr *model.DecodeError
	assert.ErrorAs(t, err, &derr)

	anim, err := DecodeLimited(src, model.Limits{MaxTotalPixels: 80})
	require.NoError(t, err)
	assert.Len(t, anim.Frames, 5)
}

func TestDecodeLimited_StillImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(300, 20, red)))

	_, err := DecodeLimited(buf.Bytes(), model.Limits{MaxDimension: 256})
	var derr *model.DecodeError
	assert.ErrorAs(t, err, &derr)
}

func TestDecode_FramesAndDelays(t *testing.T) {
	src := buildGIF(t,
		gifFrame{rect: image.Rect(0, 0, 4, 4), index: 1, delay: 20},
		gifFrame{rect: image.Rect(0, 0, 4, 4), index: 2, delay: 0},
	)

	anim, err := Decode(src)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 2)

	assert.Equal(t, 4, anim.Width)
	assert.Equal(t, 4, anim.Height)
	assert.Equal(t, 200*time.Millisecond, anim.Frames[0].Delay)
	assert.Equal(t, DefaultDelay, anim.Frames[1].Delay)
	assert.Equal(t, red, anim.Frames[0].Image.NRGBAAt(2, 2))
	assert.Equal(t, blue, anim.Frames[1].Image.NRGBAAt(2, 2))
	assert.Len(t, anim.Frames, 2)
}

func TestDecode_Disposal(t *testing.T) {
	t.Run("none keeps previous pixels", func(t *testing.T) {
		anim, err := Decode(buildGIF(t,
			gifFrame{rect: image.Rect(0, 0, 4, 4), index: 1, delay: 10, disposal: gif.DisposalNone},
			gifFrame{rect: image.Rect(0, 0, 2, 2), index: 2, delay: 10},
		))
		require.NoError(t, err)

		f := anim.Frames[1].Image
		assert.Equal(t, image.Pt(4, 4), f.Bounds().Size())
		assert.Equal(t, blue, f.NRGBAAt(0, 0))
		assert.Equal(t, red, f.NRGBAAt(3, 3))
	})

	t.Run("background clears to transparent", func(t *testing.T) {
		anim, err := Decode(buildGIF(t,
			gifFrame{rect: image.Rect(0, 0, 4, 4), index: 1, delay: 10, disposal: gif.DisposalBackground},
			gifFrame{rect: image.Rect(0, 0, 2, 2), index: 2, delay: 10},
		))
		require.NoError(t, err)

		f := anim.Frames[1].Image
		assert.Equal(t, blue, f.NRGBAAt(1, 1))
		assert.Equal(t, uint8(0), f.NRGBAAt(3, 3).A)
	})

	t.Run("previous restores the canvas", func(t *testing.T) {
		anim, err := Decode(buildGIF(t,
			gifFrame{rect: image.Rect(0, 0, 4, 4), index: 1, delay: 10},
			gifFrame{rect: image.Rect(0, 0, 2, 2), index: 2, delay: 10, disposal: gif.DisposalPrevious},
			gifFrame{rect: image.Rect(3, 3, 4, 4), index: 3, delay: 10},
		))
		require.NoError(t, err)
		require.Len(t, anim.Frames, 3)

		f := anim.Frames[2].Image
		assert.Equal(t, red, f.NRGBAAt(0, 0))
		assert.Equal(t, green, f.NRGBAAt(3, 3))
	})

	t.Run("transparent pixels keep the canvas", func(t *testing.T) {
		anim, err := Decode(buildGIF(t,
			gifFrame{rect: image.Rect(0, 0, 4, 4), index: 1, delay: 10},
			gifFrame{rect: image.Rect(0, 0, 4, 4), index: 0, delay: 10},
		))
		require.NoError(t, err)
		assert.Equal(t, red, anim.Frames[1].Image.NRGBAAt(2, 2))
	})
}

func TestDecode_StillImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(3, 2, green)))

	anim, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, anim.Frames, 1)
	assert.Equal(t, DefaultDelay, anim.Frames[0].Delay)
	assert.Equal(t, image.Pt(3, 2), anim.Frames[0].Image.Bounds().Size())
	assert.Equal(t, green, anim.Frames[0].Image.NRGBAAt(0, 0))
}

func TestEncodeGIF_RoundTrip(t *testing.T) {
	frames := []Frame{
		{Image: imaging.New(6, 5, red), Delay: 200 * time.Millisecond},
		{Image: imaging.New(6, 5, blue), Delay: 50 * time.Millisecond},
		{Image: imaging.New(6, 5, green)},
	}

	data, err := EncodeGIF(frames, LoopForever)
	require.NoError(t, err)

	g, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 0, g.LoopCount)
	assert.Equal(t, []int{20, 5, 10}, g.Delay)
	for _, d := range g.Disposal {
		assert.Equal(t, gif.DisposalBackground, d)
	}

	anim, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 3)
	assert.Equal(t, red, anim.Frames[0].Image.NRGBAAt(5, 4))
	assert.Equal(t, blue, anim.Frames[1].Image.NRGBAAt(0, 0))
	assert.Equal(t, green, anim.Frames[2].Image.NRGBAAt(3, 3))
}

func TestEncodeGIF_Transparency(t *testing.T) {
	img := imaging.New(4, 4, color.NRGBA{})
	img.SetNRGBA(1, 1, red)

	data, err := EncodeGIF([]Frame{{Image: img}, {Image: imaging.New(4, 4, blue)}}, LoopForever)
	require.NoError(t, err)

	anim, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, red, anim.Frames[0].Image.NRGBAAt(1, 1))
	assert.Equal(t, uint8(0), anim.Frames[0].Image.NRGBAAt(0, 0).A)
}

func TestEncodeGIF_ManyColors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x ^ y), A: 255})
		}
	}

	data, err := EncodeGIF([]Frame{{Image: img}}, LoopForever)
	require.NoError(t, err)

	g, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, g.Image, 1)
	assert.Equal(t, image.Pt(64, 64), g.Image[0].Bounds().Size())
	assert.LessOrEqual(t, len(g.Image[0].Palette), 256)
}

// borderedGradient is a 100x100 frame: a 25 pixel fill border around a
// 50x50 gradient with far more colors than a GIF palette holds.
func borderedGradient(fill color.NRGBA) *image.NRGBA {
	img := imaging.New(100, 100, fill)
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.SetNRGBA(25+x, 25+y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 5), B: uint8((x + y) * 2), A: 255})
		}
	}
	return img
}

func TestEncodeGIF_ManyColorsKeepFillExact(t *testing.T) {
	fill := color.NRGBA{G: 128, A: 255}
	img := borderedGradient(fill)

	data, err := EncodeGIF([]Frame{{Image: img}, {Image: imaging.FlipH(img)}}, LoopForever)
	require.NoError(t, err)

	anim, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 2)

	for i, f := range anim.Frames {
		bad := 0
		for y := 0; y < 100; y++ {
			for x := 0; x < 100; x++ {
				inside := x >= 25 && x < 75 && y >= 25 && y < 75
				if !inside && f.Image.NRGBAAt(x, y) != fill {
					bad++
				}
			}
		}
		assert.Zero(t, bad, "frame %d has border pixels off the fill color", i)
	}
}

func TestEncodeGIF_ManyColorsKeepTransparency(t *testing.T) {
	img := borderedGradient(color.NRGBA{})

	data, err := EncodeGIF([]Frame{{Image: img}}, LoopForever)
	require.NoError(t, err)

	anim, err := Decode(data)
	require.NoError(t, err)

	f := anim.Frames[0].Image
	assert.Equal(t, uint8(0), f.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), f.NRGBAAt(99, 50).A)
	assert.Equal(t, uint8(255), f.NRGBAAt(50, 50).A)
}

func TestEncodeGIF_Errors(t *testing.T) {
	_, err := EncodeGIF(nil, LoopForever)
	var aerr *model.AssemblyError
	assert.ErrorAs(t, err, &aerr)

	_, err = EncodeGIF([]Frame{
		{Image: imaging.New(4, 4, red)},
		{Image: imaging.New(4, 5, red)},
	}, LoopForever)
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Reason, "frame 1")
}

func TestArchive(t *testing.T) {
	frames := []Frame{
		{Image: imaging.New(3, 3, red)},
		{Image: imaging.New(5, 2, blue)},
	}

	data, err := Archive(frames, "png")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	for i, want := range []struct {
		name string
		size image.Point
		c    color.NRGBA
	}{
		{"frame_0.png", image.Pt(3, 3), red},
		{"frame_1.png", image.Pt(5, 2), blue},
	} {
		f := zr.File[i]
		assert.Equal(t, want.name, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)

		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)

		img, err := imaging.Decode(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, want.size, img.Bounds().Size())
		assert.Equal(t, want.c, color.NRGBAModel.Convert(img.At(0, 0)))
	}
}

func TestArchive_Formats(t *testing.T) {
	frames := []Frame{{Image: imaging.New(2, 2, red)}}

	for _, format := range []string{"jpeg", "jpg", "bmp", "tiff", "tif", "gif"} {
		data, err := Archive(frames, format)
		require.NoError(t, err, format)

		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, "frame_0."+strings.ToLower(format), zr.File[0].Name)
	}

	_, err := Archive(frames, "webm")
	var aerr *model.AssemblyError
	assert.ErrorAs(t, err, &aerr)

	_, err = Archive(nil, "png")
	assert.ErrorAs(t, err, &aerr)
}
