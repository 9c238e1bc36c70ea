package model

import "github.com/itakecare/leazr-docgen/units"

// A4 dimensions in points.
const (
	A4WidthPt  = 595.28
	A4HeightPt = 841.89
)

// Page is one physical page of a template's background.
type Page struct {
	Number     int     `json:"number"` // 1-based
	PreviewRef string  `json:"previewRef,omitempty"`
	Width      float64 `json:"width"`  // points
	Height     float64 `json:"height"` // points
}

// DefaultPage returns an A4 page with the given number.
func DefaultPage(number int) Page {
	return Page{Number: number, Width: A4WidthPt, Height: A4HeightPt}
}

// WidthMm returns the page width in millimetres, A4 when unset.
func (p Page) WidthMm() float64 {
	if p.Width <= 0 {
		return units.PointsToMm(A4WidthPt)
	}
	return units.PointsToMm(p.Width)
}

// HeightMm returns the page height in millimetres, A4 when unset.
func (p Page) HeightMm() float64 {
	if p.Height <= 0 {
		return units.PointsToMm(A4HeightPt)
	}
	return units.PointsToMm(p.Height)
}

// Clamp moves pos inside the page bounds. Positions are clamped, never
// rejected.
func (p Page) Clamp(pos Position) Position {
	pos.X = units.Clamp(pos.X, 0, p.WidthMm())
	pos.Y = units.Clamp(pos.Y, 0, p.HeightMm())
	return pos
}
