package editor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/units"
)

var (
	previewBackground = color.RGBA{255, 255, 255, 255}
	previewBorder     = color.RGBA{160, 160, 160, 255}
	previewField      = color.RGBA{37, 99, 235, 255}
	previewHidden     = color.RGBA{200, 200, 200, 255}
	previewLabel      = color.RGBA{30, 30, 30, 255}
)

// RenderLayoutPreview draws a PNG of the page outline with the box and label
// of every field placed on it. scale is a zoom factor, clamped like the editor
// zoom. Invisible fields are drawn in a lighter color.
func RenderLayoutPreview(page model.Page, fields []model.Field, scale float64) ([]byte, error) {
	scale = units.ClampZoom(scale)
	w := int(units.MmToPixels(page.WidthMm(), scale) + 0.5)
	h := int(units.MmToPixels(page.HeightMm(), scale) + 0.5)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("editor: invalid page size %vx%v", page.Width, page.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: previewBackground}, image.Point{}, draw.Src)
	strokeRect(img, img.Bounds(), previewBorder)

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	for _, f := range fields {
		if f.Position.Page != page.Number {
			continue
		}
		b := f.Bounds()
		r := image.Rect(
			int(units.MmToPixels(b.X, scale)),
			int(units.MmToPixels(b.Y, scale)),
			int(units.MmToPixels(b.X+b.W, scale)),
			int(units.MmToPixels(b.Y+b.H, scale)),
		).Intersect(img.Bounds())
		if r.Empty() {
			continue
		}

		c := previewField
		if !f.IsVisible {
			c = previewHidden
		}
		strokeRect(img, r, c)

		label := f.Label
		if label == "" {
			label = f.DataPath
		}
		drawer.Src = image.NewUniform(previewLabel)
		drawer.Dot = fixed.P(r.Min.X+2, r.Min.Y+basicfont.Face7x13.Ascent+1)
		drawer.DrawString(label)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("editor: encoding preview: %w", err)
	}
	return buf.Bytes(), nil
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}
