package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	overlayPadding = 6
	glyphWidth     = 7
)

var (
	overlayFill = color.NRGBA{R: 0, G: 0, B: 0, A: 150}
	overlayText = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// truncate cuts text to at most limit runes, marking the cut with "...".
func truncate(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	if limit > 3 {
		return string(r[:limit-3]) + "..."
	}
	return string(r[:limit])
}

// Overlay composites a translucent bar of the given height at the
// bottom-left of img carrying text, truncated to the image width.
func Overlay(img image.Image, text string, height int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	xdraw.Draw(dst, b, img, b.Min, xdraw.Src)
	if height <= 0 || text == "" {
		return dst
	}
	if height > b.Dy() {
		height = b.Dy()
	}

	maxChars := (b.Dx() - 2*overlayPadding) / glyphWidth
	if maxChars <= 0 {
		return dst
	}
	text = truncate(text, maxChars)

	barWidth := utf8.RuneCountInString(text)*glyphWidth + 2*overlayPadding
	bar := image.Rect(b.Min.X, b.Max.Y-height, b.Min.X+barWidth, b.Max.Y)
	xdraw.Draw(dst, bar, image.NewUniform(overlayFill), image.Point{}, xdraw.Over)

	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	baseline := bar.Min.Y + (height+ascent)/2 - 1
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(overlayText),
		Face: face,
		Dot:  fixed.P(bar.Min.X+overlayPadding, baseline),
	}
	d.DrawString(text)
	return dst
}

// Thumbnail scales img to width, keeping the aspect ratio.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func decodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
