package animation

import (
	"bytes"
	"image"
	"image/draw"
	"image/gif"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the WebP decoder for still sources

	"github.com/aliskhannn/gif-processor/internal/model"
)

var gifMagic = []byte("GIF8")

// Decode reads a GIF animation and returns its fully composited frames.
// Other still image formats known to imaging are returned as a single frame.
// Sources are bounded by model.DefaultLimits.
func Decode(src []byte) (*Animation, error) {
	return DecodeLimited(src, model.DefaultLimits)
}

// DecodeLimited is Decode with explicit limits. Canvas size and frame count
// are checked before the frames are composited.
func DecodeLimited(src []byte, limits model.Limits) (*Animation, error) {
	if len(src) == 0 {
		return nil, &model.DecodeError{Reason: "empty input"}
	}

	if bytes.HasPrefix(src, gifMagic) {
		return decodeGIF(src, limits)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, &model.DecodeError{Reason: "unrecognized image data", Err: err}
	}
	if err := limits.CheckFrames(image.Pt(cfg.Width, cfg.Height), 1); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &model.DecodeError{Reason: "unrecognized image data", Err: err}
	}

	frame := imaging.Clone(img)
	return &Animation{
		Frames:    []Frame{{Image: frame, Delay: DefaultDelay}},
		Width:     frame.Bounds().Dx(),
		Height:    frame.Bounds().Dy(),
		LoopCount: LoopForever,
	}, nil
}

func decodeGIF(src []byte, limits model.Limits) (*Animation, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, &model.DecodeError{Reason: "malformed gif", Err: err}
	}
	if err := limits.CheckFrames(image.Pt(cfg.Width, cfg.Height), 1); err != nil {
		return nil, err
	}

	g, err := gif.DecodeAll(bytes.NewReader(src))
	if err != nil {
		return nil, &model.DecodeError{Reason: "malformed gif", Err: err}
	}
	if len(g.Image) == 0 {
		return nil, &model.DecodeError{Reason: "gif has no frames"}
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, p := range g.Image {
			bounds = bounds.Union(p.Bounds())
		}
	}
	if err := limits.CheckFrames(bounds.Size(), len(g.Image)); err != nil {
		return nil, err
	}

	canvas := image.NewNRGBA(bounds)
	frames := make([]Frame, 0, len(g.Image))

	for i, p := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)

		frames = append(frames, Frame{
			Image: imaging.Clone(canvas),
			Delay: frameDelay(g.Delay, i),
		})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return &Animation{
		Frames:    frames,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		LoopCount: g.LoopCount,
	}, nil
}

// frameDelay converts the GIF delay of frame i (hundredths of a second).
func frameDelay(delays []int, i int) time.Duration {
	if i >= len(delays) || delays[i] <= 0 {
		return DefaultDelay
	}
	return time.Duration(delays[i]) * 10 * time.Millisecond
}
