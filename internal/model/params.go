package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// SupportedOutputFormats lists the still-image formats frames can be archived in.
var SupportedOutputFormats = []string{"GIF", "PNG", "JPEG", "JPG", "BMP", "TIFF", "TIF"}

type resizeInput struct {
	Size []int `mapstructure:"size" validate:"required,len=2,dive,gt=0,lte=65535"`
}

type flipInput struct {
	Mode string `mapstructure:"mode" validate:"required,oneof=vertical horizontal both"`
}

type padInput struct {
	TargetSize []int     `mapstructure:"target_size" validate:"required,len=2,dive,gt=0,lte=65535"`
	Color      any       `mapstructure:"color"`
	Centering  []float64 `mapstructure:"centering" validate:"omitempty,len=2,dive,gte=0,lte=1"`
}

type cropInput struct {
	Coordinates []int `mapstructure:"coordinates" validate:"required,len=4"`
}

type rotateInput struct {
	Angle *int `mapstructure:"angle" validate:"required"`
}

// paramShape decodes the untyped params of one transform kind.
type paramShape struct {
	name   string
	decode func(raw map[string]any, field string) (TransformParams, error)
}

// paramShapes is ordered: params of an unknown transform are matched
// against the shapes in this order.
var paramShapes = []paramShape{
	{TransformResize, decodeResize},
	{TransformFlip, decodeFlip},
	{TransformPad, decodePad},
	{TransformCrop, decodeCrop},
	{TransformRotate, decodeRotate},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseConfig decodes a JSON pipeline configuration.
func ParseConfig(data []byte) (PipelineConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return PipelineConfig{}, &ValidationError{Field: "config", Constraint: "json", Err: err}
	}

	return DecodeConfig(raw)
}

// DecodeConfig converts an untyped configuration (parsed JSON or YAML) into
// a PipelineConfig, applying defaults and validating every step.
//
// Step names are not resolved here: a step with an unknown name is accepted
// as long as its params match one of the known shapes.
func DecodeConfig(raw map[string]any) (PipelineConfig, error) {
	cfg := PipelineConfig{
		CreatePreview:  true,
		OutputFormat:   DefaultOutputFormat,
		OutputFilename: DefaultOutputFilename,
	}

	rawSteps, ok := raw["pipeline"]
	if !ok || rawSteps == nil {
		return PipelineConfig{}, &ValidationError{Field: "pipeline", Constraint: "required"}
	}
	list, ok := rawSteps.([]any)
	if !ok {
		return PipelineConfig{}, &ValidationError{Field: "pipeline", Constraint: "list"}
	}

	cfg.Steps = make([]PipelineStep, 0, len(list))
	for i, item := range list {
		step, err := decodeStep(item, fmt.Sprintf("pipeline[%d]", i))
		if err != nil {
			return PipelineConfig{}, err
		}
		cfg.Steps = append(cfg.Steps, step)
	}

	if v, ok := raw["create_preview"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return PipelineConfig{}, &ValidationError{Field: "create_preview", Constraint: "bool"}
		}
		cfg.CreatePreview = b
	}

	format, err := optionalString(raw, "output_format")
	if err != nil {
		return PipelineConfig{}, err
	}
	if format != "" {
		cfg.OutputFormat = strings.ToUpper(format)
	}
	if !isSupportedFormat(cfg.OutputFormat) {
		return PipelineConfig{}, &ValidationError{
			Field:      "output_format",
			Constraint: "oneof=" + strings.Join(SupportedOutputFormats, " "),
		}
	}

	filename, err := optionalString(raw, "output_filename")
	if err != nil {
		return PipelineConfig{}, err
	}
	if filename != "" {
		if strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
			return PipelineConfig{}, &ValidationError{Field: "output_filename", Constraint: "basename"}
		}
		cfg.OutputFilename = filename
	}

	return cfg, nil
}

// DecodeStep converts a single untyped step ({"plugin": ..., "params": {...}}).
func DecodeStep(raw map[string]any) (PipelineStep, error) {
	return decodeStep(raw, "step")
}

func decodeStep(item any, field string) (PipelineStep, error) {
	raw, ok := item.(map[string]any)
	if !ok {
		return PipelineStep{}, &ValidationError{Field: field, Constraint: "object"}
	}

	name, ok := raw["plugin"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return PipelineStep{}, &ValidationError{Field: field + ".plugin", Constraint: "required"}
	}

	rawParams, ok := raw["params"]
	if !ok || rawParams == nil {
		return PipelineStep{}, &ValidationError{Field: field + ".params", Constraint: "required"}
	}
	params, ok := rawParams.(map[string]any)
	if !ok {
		return PipelineStep{}, &ValidationError{Field: field + ".params", Constraint: "object"}
	}

	p, err := decodeParams(name, params, field+".params")
	if err != nil {
		return PipelineStep{}, err
	}

	return PipelineStep{Name: name, Params: p}, nil
}

func decodeParams(name string, raw map[string]any, field string) (TransformParams, error) {
	for _, shape := range paramShapes {
		if shape.name == name {
			return shape.decode(raw, field)
		}
	}

	for _, shape := range paramShapes {
		if p, err := shape.decode(raw, field); err == nil {
			return p, nil
		}
	}

	return nil, &ValidationError{
		Field:      field,
		Constraint: "shape",
		Err:        fmt.Errorf("params of %q match no known parameter shape", name),
	}
}

func decodeResize(raw map[string]any, field string) (TransformParams, error) {
	var in resizeInput
	if err := bind(raw, &in, field); err != nil {
		return nil, err
	}
	return ResizeParams{Size: Size{Width: in.Size[0], Height: in.Size[1]}}, nil
}

func decodeFlip(raw map[string]any, field string) (TransformParams, error) {
	var in flipInput
	if err := bind(raw, &in, field); err != nil {
		return nil, err
	}
	return FlipParams{Mode: FlipMode(in.Mode)}, nil
}

func decodePad(raw map[string]any, field string) (TransformParams, error) {
	var in padInput
	if err := bind(raw, &in, field); err != nil {
		return nil, err
	}

	fill, err := ParseColor(in.Color)
	if err != nil {
		return nil, &ValidationError{Field: field + ".color", Constraint: "color", Err: err}
	}

	centering := Centering{X: 0.5, Y: 0.5}
	if len(in.Centering) == 2 {
		centering = Centering{X: in.Centering[0], Y: in.Centering[1]}
	}

	return PadParams{
		TargetSize: Size{Width: in.TargetSize[0], Height: in.TargetSize[1]},
		Color:      fill,
		Centering:  centering,
	}, nil
}

func decodeCrop(raw map[string]any, field string) (TransformParams, error) {
	var in cropInput
	if err := bind(raw, &in, field); err != nil {
		return nil, err
	}

	box := Box{Left: in.Coordinates[0], Top: in.Coordinates[1], Right: in.Coordinates[2], Bottom: in.Coordinates[3]}
	if box.Right <= box.Left {
		return nil, &ValidationError{Field: field + ".coordinates", Constraint: "right>left"}
	}
	if box.Bottom <= box.Top {
		return nil, &ValidationError{Field: field + ".coordinates", Constraint: "bottom>top"}
	}
	if err := checkSize(box.Rect().Size(), MaxFrameDimension, field+".coordinates"); err != nil {
		return nil, err
	}

	return CropParams{Box: box}, nil
}

func decodeRotate(raw map[string]any, field string) (TransformParams, error) {
	var in rotateInput
	if err := bind(raw, &in, field); err != nil {
		return nil, err
	}
	return RotateParams{Angle: *in.Angle}, nil
}

// bind decodes raw into out and runs the struct's validate tags.
func bind(raw map[string]any, out any, field string) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: integralHook,
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("build params decoder: %w", err)
	}

	if err := dec.Decode(raw); err != nil {
		return &ValidationError{Field: field, Constraint: "type", Err: err}
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			constraint := fe.Tag()
			if fe.Param() != "" {
				constraint += "=" + fe.Param()
			}
			return &ValidationError{Field: field + "." + fe.Field(), Constraint: constraint}
		}
		return &ValidationError{Field: field, Constraint: "valid", Err: err}
	}

	return nil
}

// integralHook rejects fractional numbers decoded into integer fields;
// mapstructure would otherwise truncate them silently.
func integralHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}

	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return data, nil
		}
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s is not a number", v)
		}
		f = parsed
	default:
		return data, nil
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func optionalString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: key, Constraint: "string"}
	}
	return strings.TrimSpace(s), nil
}

func isSupportedFormat(format string) bool {
	for _, f := range SupportedOutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
