package table

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Table accumulates rows and draws them at the current cursor position.
type Table struct {
	pdf       *gofpdf.Fpdf
	rows      []*Row
	style     Style
	width     float64 // 0 = page width minus margins
	widths    []float64
	translate func(string) string
}

// New returns an empty table drawing on pdf with DefaultStyle.
func New(pdf *gofpdf.Fpdf) *Table {
	return &Table{pdf: pdf, style: DefaultStyle(), translate: func(s string) string { return s }}
}

// SetStyle replaces the table style.
func (t *Table) SetStyle(s Style) *Table {
	t.style = s
	return t
}

// SetWidth sets the total table width.
func (t *Table) SetWidth(w float64) *Table {
	t.width = w
	return t
}

// SetColumnWidths fixes the column widths. Zero entries share the space the
// fixed columns leave.
func (t *Table) SetColumnWidths(widths ...float64) *Table {
	t.widths = widths
	return t
}

// SetTranslator sets the function applied to cell text before drawing, e.g.
// a UTF-8 to cp1252 translator for core fonts.
func (t *Table) SetTranslator(tr func(string) string) *Table {
	if tr != nil {
		t.translate = tr
	}
	return t
}

// AddHeaderRow appends a header row. Header rows are drawn first and again
// at the top of every page the table continues on.
func (t *Table) AddHeaderRow() *Row {
	r := &Row{header: true}
	t.rows = append(t.rows, r)
	return r
}

// AddRow appends a body row.
func (t *Table) AddRow() *Row {
	r := &Row{}
	t.rows = append(t.rows, r)
	return r
}

// Columns returns the number of columns, the widest row span.
func (t *Table) Columns() int {
	n := len(t.widths)
	for _, r := range t.rows {
		if s := r.Span(); s > n {
			n = s
		}
	}
	return n
}

// Render draws the table and leaves the cursor below it.
func (t *Table) Render() error {
	if t.pdf.Err() {
		return t.pdf.Error()
	}
	if t.Columns() == 0 {
		return nil
	}

	widths := t.columnWidths()
	left, _, _, bottom := t.pdf.GetMargins()
	startX := t.pdf.GetX()
	if startX < left {
		startX = left
	}

	var headers, body []*Row
	for _, r := range t.rows {
		if r.header {
			headers = append(headers, r)
		} else {
			body = append(body, r)
		}
	}

	for _, r := range headers {
		t.drawRow(r, widths, startX, -1)
	}
	for i, r := range body {
		h := t.rowHeight(r, widths)
		_, pageH := t.pdf.GetPageSize()
		if t.pdf.GetY()+h > pageH-bottom {
			t.pdf.AddPage()
			for _, hr := range headers {
				t.drawRow(hr, widths, startX, -1)
			}
		}
		t.drawRow(r, widths, startX, i)
	}

	t.pdf.SetX(left)
	return t.pdf.Error()
}

// columnWidths measures the natural width of every column from its
// single-span cells, then scales the free columns to fill the table width.
func (t *Table) columnWidths() []float64 {
	total := t.width
	if total <= 0 {
		pageW, _ := t.pdf.GetPageSize()
		l, _, r, _ := t.pdf.GetMargins()
		total = pageW - l - r
	}

	n := t.Columns()
	widths := make([]float64, n)
	fixed := 0.0
	free := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i < len(t.widths) && t.widths[i] > 0 {
			widths[i] = t.widths[i]
			fixed += t.widths[i]
		} else {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return widths
	}

	natural := make([]float64, n)
	pad := t.style.Padding.Left + t.style.Padding.Right
	for _, r := range t.rows {
		col := 0
		for _, c := range r.cells {
			if c.colspan == 1 && col < n {
				t.useFont(t.cellStyle(c, r, -1).Font)
				w := longestLine(t.pdf, t.translate(c.text)) + pad
				if w > natural[col] {
					natural[col] = w
				}
			}
			col += c.colspan
		}
	}

	remaining := total - fixed
	if remaining < 0 {
		remaining = 0
	}
	sum := 0.0
	for _, i := range free {
		if natural[i] < pad+1 {
			natural[i] = pad + 1
		}
		sum += natural[i]
	}
	for _, i := range free {
		widths[i] = remaining * natural[i] / sum
	}
	return widths
}

func longestLine(pdf *gofpdf.Fpdf, s string) float64 {
	widest := 0.0
	for _, line := range strings.Split(s, "\n") {
		if w := pdf.GetStringWidth(line); w > widest {
			widest = w
		}
	}
	return widest
}

// spanWidth returns the width of a cell starting at column col.
func spanWidth(widths []float64, col, span int) float64 {
	w := 0.0
	for j := col; j < col+span && j < len(widths); j++ {
		w += widths[j]
	}
	return w
}

func (t *Table) lineHeight(size float64) float64 {
	lh := t.style.LineHeight
	if lh <= 0 {
		lh = 1.3
	}
	return size * lh
}

func (t *Table) rowHeight(r *Row, widths []float64) float64 {
	pad := t.style.Padding
	tallest := 0.0
	col := 0
	for _, c := range r.cells {
		font := t.cellStyle(c, r, -1).Font
		t.useFont(font)
		w := spanWidth(widths, col, c.colspan) - pad.Left - pad.Right
		if w < 1 {
			w = 1
		}
		lines := len(t.pdf.SplitLines([]byte(t.translate(c.text)), w))
		if lines == 0 {
			lines = 1
		}
		if h := float64(lines)*t.lineHeight(font.Size) + pad.Top + pad.Bottom; h > tallest {
			tallest = h
		}
		col += c.colspan
	}
	return tallest
}

func (t *Table) drawRow(r *Row, widths []float64, startX float64, bodyIdx int) {
	h := t.rowHeight(r, widths)
	pad := t.style.Padding
	y := t.pdf.GetY()
	x := startX
	col := 0

	for _, c := range r.cells {
		w := spanWidth(widths, col, c.colspan)
		st := t.cellStyle(c, r, bodyIdx)

		if st.FillColor != nil {
			t.pdf.SetFillColor(st.FillColor.R, st.FillColor.G, st.FillColor.B)
			t.pdf.Rect(x, y, w, h, "F")
		}
		if bc := t.style.BorderColor; bc != nil {
			t.pdf.SetDrawColor(bc.R, bc.G, bc.B)
			if t.style.BorderWidth > 0 {
				t.pdf.SetLineWidth(t.style.BorderWidth)
			}
			t.pdf.Rect(x, y, w, h, "D")
		}

		if st.TextColor != nil {
			t.pdf.SetTextColor(st.TextColor.R, st.TextColor.G, st.TextColor.B)
		} else {
			t.pdf.SetTextColor(0, 0, 0)
		}
		t.useFont(st.Font)
		align := st.Align
		if align == "" {
			align = "L"
		}
		t.pdf.SetXY(x+pad.Left, y+pad.Top)
		t.pdf.MultiCell(w-pad.Left-pad.Right, t.lineHeight(st.Font.Size), t.translate(c.text), "", align, false)

		x += w
		col += c.colspan
	}

	t.pdf.SetTextColor(0, 0, 0)
	t.pdf.SetXY(startX, y+h)
}

// cellStyle merges table, header or stripe, row and cell styles, in
// increasing priority. The returned font is always complete.
func (t *Table) cellStyle(c *Cell, r *Row, bodyIdx int) resolvedStyle {
	var st CellStyle
	if r.header {
		st.merge(t.style.Header)
	} else if t.style.Striped != nil && bodyIdx >= 0 && bodyIdx%2 == 1 {
		st.FillColor = t.style.Striped
	}
	st.merge(r.style)
	st.merge(c.style)

	font := t.style.Font
	if st.Font != nil {
		if st.Font.Family != "" {
			font.Family = st.Font.Family
		}
		font.Style = st.Font.Style
		if st.Font.Size > 0 {
			font.Size = st.Font.Size
		}
	}
	if font.Family == "" {
		font.Family = "Helvetica"
	}
	if font.Size <= 0 {
		font.Size = 9
	}
	return resolvedStyle{CellStyle: st, Font: font}
}

type resolvedStyle struct {
	CellStyle
	Font FontSpec
}

func (t *Table) useFont(f FontSpec) {
	t.pdf.SetFont(f.Family, f.Style, f.Size)
}
