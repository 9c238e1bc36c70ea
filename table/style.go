// Package table lays out grid tables on a gofpdf page: column widths measured
// from content, cells spanning several columns, wrapped text and header rows
// repeated after a page break. The markup converter uses it for HTML tables
// and line-item tables.
package table

// RGBColor is an RGB color value.
type RGBColor struct {
	R, G, B int
}

// FontSpec selects a font.
type FontSpec struct {
	Family string
	Style  string  // "", "B", "I", "BI"
	Size   float64 // points
}

// Padding is the spacing inside a cell.
type Padding struct {
	Top, Right, Bottom, Left float64
}

// UniformPadding returns the same padding on every side.
func UniformPadding(v float64) Padding {
	return Padding{Top: v, Right: v, Bottom: v, Left: v}
}

// CellStyle overrides the table defaults for a row or a cell.
type CellStyle struct {
	FillColor *RGBColor
	TextColor *RGBColor
	Font      *FontSpec
	Align     string // "L", "C" or "R"
}

// Style is the appearance of a whole table.
type Style struct {
	BorderColor *RGBColor // nil draws no border
	BorderWidth float64
	Header      *CellStyle
	Striped     *RGBColor // fill of every other body row
	Padding     Padding
	Font        FontSpec
	LineHeight  float64 // multiple of the font size, default 1.3
}

// DefaultStyle is a light grid with a bold gray header.
func DefaultStyle() Style {
	return Style{
		BorderColor: &RGBColor{190, 190, 190},
		BorderWidth: 0.5,
		Header: &CellStyle{
			FillColor: &RGBColor{240, 240, 240},
			Font:      &FontSpec{Family: "Helvetica", Style: "B", Size: 9},
		},
		Padding:    UniformPadding(3),
		Font:       FontSpec{Family: "Helvetica", Size: 9},
		LineHeight: 1.3,
	}
}

// merge copies the set fields of src onto dst.
func (dst *CellStyle) merge(src *CellStyle) {
	if src == nil {
		return
	}
	if src.FillColor != nil {
		dst.FillColor = src.FillColor
	}
	if src.TextColor != nil {
		dst.TextColor = src.TextColor
	}
	if src.Font != nil {
		dst.Font = src.Font
	}
	if src.Align != "" {
		dst.Align = src.Align
	}
}
