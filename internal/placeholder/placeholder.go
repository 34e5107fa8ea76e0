// Package placeholder renders the flat preview images that stand in for
// generated artwork.
package placeholder

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"net/url"
)

const (
	MaxDimension = 2048
	ContentType  = "image/png"
)

// URL returns the path of a placeholder image served by the API.
func URL(width, height int, text string) string {
	path := fmt.Sprintf("/api/placeholder/%d/%d", width, height)
	if text == "" {
		return path
	}
	return path + "?" + url.Values{"text": {text}}.Encode()
}

// Clamp keeps a requested dimension within the renderable range.
func Clamp(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxDimension:
		return MaxDimension
	}
	return n
}

// PNG draws a vertical two-tone gradient whose colours are derived from text,
// so the same text always yields the same image.
func PNG(width, height int, text string) ([]byte, error) {
	width, height = Clamp(width), Clamp(height)
	top, bottom := palette(text)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		c := mix(top, bottom, y, height)
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func palette(text string) (color.RGBA, color.RGBA) {
	h := fnv.New64a()
	h.Write([]byte(text))
	sum := h.Sum64()
	top := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}
	bottom := color.RGBA{R: uint8(sum >> 24), G: uint8(sum >> 32), B: uint8(sum >> 40), A: 0xff}
	return top, bottom
}

func mix(a, b color.RGBA, y, height int) color.RGBA {
	if height <= 1 {
		return a
	}
	t := float64(y) / float64(height-1)
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}
