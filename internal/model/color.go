package model

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// DefaultPadColor fills pad canvases when no color is given.
var DefaultPadColor = color.NRGBA{A: 0xff}

// ParseColor converts a pad color given as an SVG color name, a #rgb,
// #rrggbb or #rrggbbaa hex string, or an [r,g,b] / [r,g,b,a] list.
// A nil value yields DefaultPadColor.
func ParseColor(v any) (color.NRGBA, error) {
	switch c := v.(type) {
	case nil:
		return DefaultPadColor, nil
	case string:
		return parseColorString(c)
	case []any:
		return parseColorList(c)
	case []int:
		list := make([]any, len(c))
		for i, n := range c {
			list[i] = n
		}
		return parseColorList(list)
	default:
		return color.NRGBA{}, fmt.Errorf("unsupported color value %v", v)
	}
}

func parseColorString(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPadColor, nil
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}

	if s == "transparent" {
		return color.NRGBA{}, nil
	}

	named, ok := colornames.Map[s]
	if !ok {
		return color.NRGBA{}, fmt.Errorf("unknown color name %q", s)
	}
	return color.NRGBA{R: named.R, G: named.G, B: named.B, A: named.A}, nil
}

func parseHex(h string) (color.NRGBA, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("malformed hex color #%s", h)
	}

	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("malformed hex color #%s: %w", h, err)
	}

	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

func parseColorList(list []any) (color.NRGBA, error) {
	if len(list) != 3 && len(list) != 4 {
		return color.NRGBA{}, fmt.Errorf("color list must have 3 or 4 channels, got %d", len(list))
	}

	ch := [4]uint8{0, 0, 0, 0xff}
	for i, v := range list {
		n, err := channel(v)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("channel %d: %w", i, err)
		}
		ch[i] = n
	}

	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func channel(v any) (uint8, error) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer", x)
		}
		n = i
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	default:
		return 0, fmt.Errorf("unsupported channel value %v", v)
	}

	if n < 0 || n > 255 {
		return 0, fmt.Errorf("%d out of range 0..255", n)
	}
	return uint8(n), nil
}
