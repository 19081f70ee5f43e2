package model

import (
	"image"
	"image/color"
	"strings"
)

// Transform names understood by the built-in registry.
const (
	TransformResize = "resize"
	TransformFlip   = "flip"
	TransformPad    = "pad"
	TransformCrop   = "crop"
	TransformRotate = "rotate"
)

// Defaults applied when a pipeline configuration omits the field.
const (
	DefaultOutputFormat   = "GIF"
	DefaultOutputFilename = "output"
)

// FlipMode selects the mirror axis of a flip step.
type FlipMode string

const (
	FlipVertical   FlipMode = "vertical"   // mirror across the horizontal axis
	FlipHorizontal FlipMode = "horizontal" // mirror across the vertical axis
	FlipBoth       FlipMode = "both"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point returns the size as an image.Point.
func (s Size) Point() image.Point {
	return image.Pt(s.Width, s.Height)
}

// Box is a crop rectangle given as left, top, right, bottom.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Centering positions a frame on a pad canvas. X and Y are fractions in [0,1]:
// 0 aligns the left/top edges, 1 the right/bottom edges, 0.5 centers.
type Centering struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TransformParams is the typed parameter set of a single pipeline step.
// It is implemented only by the variants in this package.
type TransformParams interface {
	transform() string
}

// ResizeParams scales a frame to an exact size.
type ResizeParams struct {
	Size Size `json:"size"`
}

// FlipParams mirrors a frame.
type FlipParams struct {
	Mode FlipMode `json:"mode"`
}

// PadParams places a frame on a filled canvas of the target size.
type PadParams struct {
	TargetSize Size        `json:"target_size"`
	Color      color.NRGBA `json:"color"`
	Centering  Centering   `json:"centering"`
}

// CropParams extracts a rectangular region.
type CropParams struct {
	Box Box `json:"coordinates"`
}

// RotateParams rotates a frame counter-clockwise by Angle degrees.
type RotateParams struct {
	Angle int `json:"angle"`
}

func (ResizeParams) transform() string { return TransformResize }
func (FlipParams) transform() string   { return TransformFlip }
func (PadParams) transform() string    { return TransformPad }
func (CropParams) transform() string   { return TransformCrop }
func (RotateParams) transform() string { return TransformRotate }

// ShapeOf reports which transform shape the params were decoded as.
func ShapeOf(p TransformParams) string {
	if p == nil {
		return ""
	}
	return p.transform()
}

// PipelineStep is one named transform with its validated parameters.
type PipelineStep struct {
	Name   string          `json:"plugin"`
	Params TransformParams `json:"params"`
}

// PipelineConfig drives both the transform sequence and the output assembly.
// CreatePreview selects the animated output; otherwise frames are archived
// individually in OutputFormat.
type PipelineConfig struct {
	Steps          []PipelineStep `json:"pipeline"`
	CreatePreview  bool           `json:"create_preview"`
	OutputFormat   string         `json:"output_format"`
	OutputFilename string         `json:"output_filename"`
}

// ArchiveExtension returns the file extension used for archived frames.
func (c PipelineConfig) ArchiveExtension() string {
	return strings.ToLower(c.OutputFormat)
}
