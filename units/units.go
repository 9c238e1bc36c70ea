// Package units converts between the three coordinate systems used by
// templates: millimetres (storage), screen pixels at a zoom factor (editor
// canvas) and PDF points (rendering).
package units

import "math"

const (
	// PxPerMm is the number of CSS pixels per millimetre at 96 DPI.
	PxPerMm = 96 / 25.4
	// PtPerMm is the number of PDF points per millimetre.
	PtPerMm = 72 / 25.4

	MinZoom = 0.5
	MaxZoom = 2.0
)

// MmToPixels converts millimetres to pixels at the given zoom.
func MmToPixels(mm, zoom float64) float64 {
	return mm * PxPerMm * zoom
}

// PixelsToMm converts pixels at the given zoom back to millimetres.
func PixelsToMm(px, zoom float64) float64 {
	return px / (PxPerMm * zoom)
}

// MmToPoints converts millimetres to PDF points.
func MmToPoints(mm float64) float64 {
	return mm * PtPerMm
}

// PointsToMm converts PDF points to millimetres.
func PointsToMm(pt float64) float64 {
	return pt / PtPerMm
}

// ClampZoom limits z to [MinZoom, MaxZoom]. The conversion functions do not
// bound zoom themselves; callers that take zoom from user input clamp first.
func ClampZoom(z float64) float64 {
	return Clamp(z, MinZoom, MaxZoom)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// RoundTenth rounds v to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
