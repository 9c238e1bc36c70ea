package table

import "fmt"

// MaxColspan bounds the columns a single cell may cover.
const MaxColspan = 32

// Cell is one text cell of a row.
type Cell struct {
	text    string
	colspan int
	style   *CellStyle
}

// SetColspan makes the cell cover n columns, at most MaxColspan.
func (c *Cell) SetColspan(n int) *Cell {
	if n > 0 {
		c.colspan = min(n, MaxColspan)
	}
	return c
}

// SetAlign sets the horizontal alignment: "L", "C" or "R".
func (c *Cell) SetAlign(align string) *Cell {
	if c.style == nil {
		c.style = &CellStyle{}
	}
	c.style.Align = align
	return c
}

// SetBold switches the cell to the bold variant of the table font.
func (c *Cell) SetBold() *Cell {
	if c.style == nil {
		c.style = &CellStyle{}
	}
	c.style.Font = &FontSpec{Style: "B"}
	return c
}

// Text returns the cell content.
func (c *Cell) Text() string { return c.text }

// Row is a sequence of cells.
type Row struct {
	cells  []*Cell
	style  *CellStyle
	header bool
}

// AddCell appends a text cell.
func (r *Row) AddCell(text string) *Cell {
	c := &Cell{text: text, colspan: 1}
	r.cells = append(r.cells, c)
	return c
}

// AddCellf appends a formatted text cell.
func (r *Row) AddCellf(format string, args ...any) *Cell {
	return r.AddCell(fmt.Sprintf(format, args...))
}

// SetStyle applies s to every cell of the row.
func (r *Row) SetStyle(s CellStyle) *Row {
	r.style = &s
	return r
}

// Span returns the number of columns the row covers.
func (r *Row) Span() int {
	n := 0
	for _, c := range r.cells {
		n += c.colspan
	}
	return n
}
