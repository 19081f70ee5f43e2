// Package animation converts between encoded animations and in-memory frames.
package animation

import (
	"image"
	"time"
)

// DefaultDelay is used for frames that carry no display duration.
const DefaultDelay = 100 * time.Millisecond

// LoopForever is the loop count of an animation that repeats indefinitely.
const LoopForever = 0

// Frame is one fully composited image of an animation.
type Frame struct {
	Image *image.NRGBA
	Delay time.Duration
}

// Animation is a decoded source: frames in display order plus the
// logical canvas they were composited on.
type Animation struct {
	Frames    []Frame
	Width     int
	Height    int
	LoopCount int
}
