package animation

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"sort"
	"time"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// maxOpaqueColors leaves one palette slot for transparency.
const maxOpaqueColors = 255

// EncodeGIF assembles frames into an animated GIF. All frames must have the
// size of the first one. loop is the GIF loop count; LoopForever repeats
// indefinitely.
func EncodeGIF(frames []Frame, loop int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, &model.AssemblyError{Reason: "no frames to encode"}
	}

	size := frames[0].Image.Bounds().Size()
	for i, f := range frames {
		if got := f.Image.Bounds().Size(); got != size {
			return nil, &model.AssemblyError{
				Reason: fmt.Sprintf("frame %d is %dx%d, frame 0 is %dx%d", i, got.X, got.Y, size.X, size.Y),
			}
		}
	}

	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		Disposal:  make([]byte, 0, len(frames)),
		LoopCount: loop,
	}

	for _, f := range frames {
		out.Image = append(out.Image, palettize(f.Image))
		out.Delay = append(out.Delay, centiseconds(f.Delay))
		out.Disposal = append(out.Disposal, gif.DisposalBackground)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, &model.AssemblyError{Reason: "encode gif", Err: err}
	}

	return buf.Bytes(), nil
}

// palettize converts a frame to a paletted image. Frames with few colors keep
// them exactly. Otherwise colors covering a noticeable share of the frame
// (flat fills, pad borders) get exact palette entries and stay undithered;
// the remaining pixels use a median-cut palette with error diffusion.
func palettize(src *image.NRGBA) *image.Paletted {
	flat := flatten(src)

	if dst, ok := exactPaletted(flat); ok {
		return dst
	}

	counts, transparent := histogram(flat)
	reserved := dominantColors(counts, flat.Bounds().Dx()*flat.Bounds().Dy())

	palette := make(color.Palette, 0, 256)
	if transparent {
		palette = append(palette, color.NRGBA{})
	}
	exact := make(map[color.NRGBA]uint8, len(reserved))
	for _, c := range reserved {
		exact[c] = uint8(len(palette))
		palette = append(palette, c)
	}

	fixed := len(palette)
	q := quantize.MedianCutQuantizer{}
	palette = q.Quantize(palette, flat)
	if len(palette) > 256 {
		palette = palette[:256]
	}
	for i := fixed; i < len(palette); i++ {
		c := color.NRGBAModel.Convert(palette[i]).(color.NRGBA)
		c.A = 0xff
		palette[i] = c
	}

	return diffuse(flat, palette, exact, transparent)
}

// minDominantShare is the fraction of a frame a color must cover to keep an
// exact palette entry; maxDominantColors caps how many colors are kept.
const (
	minDominantShare  = 0.01
	maxDominantColors = 64
)

func histogram(src *image.NRGBA) (map[color.NRGBA]int, bool) {
	counts := make(map[color.NRGBA]int)
	transparent := false

	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			if c.A == 0 {
				transparent = true
				continue
			}
			counts[c]++
		}
	}

	return counts, transparent
}

func dominantColors(counts map[color.NRGBA]int, total int) []color.NRGBA {
	minCount := int(float64(total) * minDominantShare)
	if minCount < 1 {
		minCount = 1
	}

	var colors []color.NRGBA
	for c, n := range counts {
		if n >= minCount {
			colors = append(colors, c)
		}
	}

	sort.Slice(colors, func(i, j int) bool {
		ci, cj := counts[colors[i]], counts[colors[j]]
		if ci != cj {
			return ci > cj
		}
		return packRGB(colors[i]) < packRGB(colors[j])
	})
	if len(colors) > maxDominantColors {
		colors = colors[:maxDominantColors]
	}

	return colors
}

func packRGB(c color.NRGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// diffuse maps src onto palette with Floyd-Steinberg error diffusion.
// Transparent pixels and pixels in exact neither receive nor spread error.
func diffuse(src *image.NRGBA, palette color.Palette, exact map[color.NRGBA]uint8, transparent bool) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(b, palette)
	w := b.Dx()

	// opaque entries only, so quantization error never selects transparency
	opaque := palette
	offset := 0
	if transparent {
		opaque = palette[1:]
		offset = 1
	}

	cur := make([][3]float64, w+2)
	next := make([][3]float64, w+2)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < w; x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)

			if c.A == 0 {
				dst.SetColorIndex(b.Min.X+x, b.Min.Y+y, 0)
				continue
			}
			if idx, ok := exact[c]; ok {
				dst.SetColorIndex(b.Min.X+x, b.Min.Y+y, idx)
				continue
			}

			e := cur[x+1]
			want := [3]float64{
				clamp(float64(c.R) + e[0]),
				clamp(float64(c.G) + e[1]),
				clamp(float64(c.B) + e[2]),
			}

			idx := opaque.Index(color.NRGBA{R: uint8(want[0]), G: uint8(want[1]), B: uint8(want[2]), A: 0xff})
			got := color.NRGBAModel.Convert(opaque[idx]).(color.NRGBA)
			dst.SetColorIndex(b.Min.X+x, b.Min.Y+y, uint8(idx+offset))

			for k, v := range [3]float64{float64(got.R), float64(got.G), float64(got.B)} {
				diff := want[k] - v
				cur[x+2][k] += diff * 7 / 16
				next[x][k] += diff * 3 / 16
				next[x+1][k] += diff * 5 / 16
				next[x+2][k] += diff * 1 / 16
			}
		}

		cur, next = next, cur
		clear(next)
	}

	return dst
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(255, v))
}

// flatten maps each pixel to a GIF-representable color: fully transparent
// below half alpha, fully opaque otherwise.
func flatten(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if c.A < 0x80 {
				continue
			}
			c.A = 0xff
			dst.SetNRGBA(x, y, c)
		}
	}

	return dst
}

func exactPaletted(src *image.NRGBA) (*image.Paletted, bool) {
	b := src.Bounds()
	index := make(map[color.NRGBA]uint8)
	var palette color.Palette
	opaque := 0

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			if _, ok := index[c]; ok {
				continue
			}
			if c.A != 0 {
				opaque++
				if opaque > maxOpaqueColors {
					return nil, false
				}
			}
			index[c] = uint8(len(palette))
			palette = append(palette, c)
		}
	}

	dst := image.NewPaletted(b, palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetColorIndex(x, y, index[src.NRGBAAt(x, y)])
		}
	}

	return dst, true
}

func centiseconds(d time.Duration) int {
	if d <= 0 {
		d = DefaultDelay
	}
	cs := int((d + 5*time.Millisecond) / (10 * time.Millisecond))
	if cs < 1 {
		cs = 1
	}
	return cs
}
