package model

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/itakecare/leazr-docgen/units"
)

// FieldType is one of the fixed set of field kinds.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldTable    FieldType = "table"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldCurrency, FieldDate, FieldNumber, FieldTable:
		return true
	}
	return false
}

const (
	WeightNormal = "normal"
	WeightBold   = "bold"

	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"

	DefaultFontSize   = 10.0
	DefaultFontFamily = "Helvetica"
)

// Field is a positioned, typed, styled placeholder bound to a data path.
type Field struct {
	ID        string    `json:"id"`
	Type      FieldType `json:"type"`
	Label     string    `json:"label"`
	DataPath  string    `json:"dataPath"` // dot-separated, e.g. "client.address.city"
	Position  Position  `json:"position"`
	Style     Style     `json:"style"`
	Format    *Format   `json:"format,omitempty"`
	IsVisible bool      `json:"isVisible"`
}

// Position is the top-left corner of a field in millimetres.
type Position struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page int     `json:"page"`
}

// Style controls how a resolved value is drawn.
type Style struct {
	FontSize   float64 `json:"fontSize,omitempty"` // points
	FontFamily string  `json:"fontFamily,omitempty"`
	Color      string  `json:"color,omitempty"`      // "#RRGGBB"
	FontWeight string  `json:"fontWeight,omitempty"` // normal | bold
	Align      string  `json:"align,omitempty"`      // left | center | right
	Width      float64 `json:"width,omitempty"`      // mm, 0 = auto
	Height     float64 `json:"height,omitempty"`     // mm, 0 = auto
}

// Format holds type-specific formatting options.
type Format struct {
	Currency       string `json:"currency,omitempty"`    // ISO 4217
	DatePattern    string `json:"datePattern,omitempty"` // e.g. "dd/MM/yyyy"
	NumberDecimals *int   `json:"numberDecimals,omitempty"`
}

// Size returns the font size, or the default when unset.
func (s Style) Size() float64 {
	if s.FontSize <= 0 {
		return DefaultFontSize
	}
	return s.FontSize
}

// Family returns the font family, or the default when unset.
func (s Style) Family() string {
	if s.FontFamily == "" {
		return DefaultFontFamily
	}
	return s.FontFamily
}

// Bold reports whether the style asks for the bold weight.
func (s Style) Bold() bool {
	return s.FontWeight == WeightBold
}

// Rect is an axis-aligned box in millimetres.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether the point lies inside the box, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Bounds returns the field's box in millimetres. Without a fixed size, the
// width is estimated from the label length and the height from the font size.
func (f Field) Bounds() Rect {
	size := f.Style.Size()
	w := f.Style.Width
	if w <= 0 {
		chars := utf8.RuneCountInString(f.Label)
		if chars < 4 {
			chars = 4
		}
		w = units.PointsToMm(float64(chars) * size * 0.55)
	}
	h := f.Style.Height
	if h <= 0 {
		h = units.PointsToMm(size * 1.4)
	}
	return Rect{X: f.Position.X, Y: f.Position.Y, W: w, H: h}
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	if f.Format != nil {
		fm := *f.Format
		if f.Format.NumberDecimals != nil {
			d := *f.Format.NumberDecimals
			fm.NumberDecimals = &d
		}
		f.Format = &fm
	}
	return f
}

// ParseColor reads "#RRGGBB" or "#RGB". Anything else is black.
func ParseColor(s string) (r, g, b int) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
