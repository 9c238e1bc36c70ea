package htmlpdf

import (
	"context"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/table"
)

type fontState struct {
	bold, italic, underline bool
	size                    float64
	r, g, b                 int
}

// writer walks the parsed document and lays it out on pdf.
type writer struct {
	ctx       context.Context
	pdf       *gofpdf.Fpdf
	tr        func(string) string
	logger    *zap.Logger
	font      fontState
	lineStart bool // nothing written on the current line yet
	spaced    bool // last write ended with a space
	images    int
}

func (w *writer) apply() {
	style := ""
	if w.font.bold {
		style += "B"
	}
	if w.font.italic {
		style += "I"
	}
	if w.font.underline {
		style += "U"
	}
	w.pdf.SetFont("Helvetica", style, w.font.size)
	w.pdf.SetTextColor(w.font.r, w.font.g, w.font.b)
}

// with runs fn under a modified font state and restores it afterwards.
func (w *writer) with(change func(*fontState), fn func() error) error {
	saved := w.font
	change(&w.font)
	w.apply()
	err := fn()
	w.font = saved
	w.apply()
	return err
}

func (w *writer) lineHeight() float64 {
	return w.font.size * lineSpacing
}

func (w *writer) contentWidth() float64 {
	pageW, _ := w.pdf.GetPageSize()
	l, _, r, _ := w.pdf.GetMargins()
	return pageW - l - r
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Li, atom.Table, atom.Hr, atom.Blockquote, atom.Img,
		atom.Script, atom.Style, atom.Head, atom.Title:
		return true
	}
	return false
}

// blocks lays out the children of n. Consecutive inline children form a
// paragraph; consecutive images form a row.
func (w *writer) blocks(n *html.Node, align string) error {
	var run []*html.Node
	flush := func() {
		if len(run) > 0 {
			w.paragraph(run, align)
			run = nil
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if !isBlock(c) {
			run = append(run, c)
			continue
		}
		flush()

		if c.DataAtom == atom.Img {
			imgs := []*html.Node{c}
			for c.NextSibling != nil && (c.NextSibling.DataAtom == atom.Img || isBlank(c.NextSibling)) {
				c = c.NextSibling
				if c.DataAtom == atom.Img {
					imgs = append(imgs, c)
				}
			}
			w.imageRow(imgs, align)
			continue
		}
		if err := w.block(c, align); err != nil {
			return err
		}
	}
	flush()
	return nil
}

func isBlank(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

func (w *writer) block(n *html.Node, align string) error {
	if a := textAlign(n); a != "" {
		align = a
	}
	if styleProp(n, "page-break-before") == "always" || hasClass(n, "page-break") {
		w.pdf.AddPage()
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title:
		return nil
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		size := headingSizes[n.DataAtom]
		w.pdf.Ln(size * 0.4)
		return w.with(func(f *fontState) {
			f.bold = true
			f.size = size
			w.colorFrom(n, f)
		}, func() error {
			if err := w.blocks(n, align); err != nil {
				return err
			}
			w.pdf.Ln(size * 0.2)
			return nil
		})
	case atom.P:
		return w.with(func(f *fontState) { w.colorFrom(n, f) }, func() error {
			if err := w.blocks(n, align); err != nil {
				return err
			}
			w.pdf.Ln(paragraphGap)
			return nil
		})
	case atom.Ul, atom.Ol:
		return w.list(n, n.DataAtom == atom.Ol, false)
	case atom.Table:
		return w.table(n)
	case atom.Hr:
		w.rule()
		return nil
	case atom.Blockquote:
		l, t, r, _ := w.pdf.GetMargins()
		w.pdf.SetMargins(l+20, t, r)
		w.pdf.SetX(l + 20)
		err := w.with(func(f *fontState) { f.italic = true }, func() error { return w.blocks(n, align) })
		w.pdf.SetMargins(l, t, r)
		w.pdf.SetX(l)
		return err
	default:
		return w.with(func(f *fontState) { w.colorFrom(n, f) }, func() error { return w.blocks(n, align) })
	}
}

func textAlign(n *html.Node) string {
	a := styleProp(n, "text-align")
	if a == "" {
		a = strings.ToLower(attr(n, "align"))
	}
	switch a {
	case "center":
		return "C"
	case "right":
		return "R"
	case "left":
		return "L"
	}
	return ""
}

func (w *writer) colorFrom(n *html.Node, f *fontState) {
	if c := styleProp(n, "color"); strings.HasPrefix(c, "#") {
		f.r, f.g, f.b = model.ParseColor(c)
	}
}

// paragraph writes a run of inline nodes. Left-aligned runs keep their bold
// and italic spans; centred and right-aligned runs are set as plain text.
func (w *writer) paragraph(run []*html.Node, align string) {
	var text strings.Builder
	for _, n := range run {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		} else {
			text.WriteString(textContent(n))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return
	}

	if align == "C" || align == "R" {
		w.pdf.SetX(leftMargin(w.pdf))
		w.pdf.MultiCell(w.contentWidth(), w.lineHeight(), w.tr(strings.TrimSpace(collapse(text.String()))), "", align, false)
		return
	}

	w.lineStart, w.spaced = true, false
	for _, n := range run {
		w.inline(n)
	}
	w.pdf.Ln(w.lineHeight())
}

func leftMargin(pdf *gofpdf.Fpdf) float64 {
	l, _, _, _ := pdf.GetMargins()
	return l
}

func (w *writer) inline(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		s := strings.Join(strings.Fields(n.Data), " ")
		lead := startsWithSpace(n.Data) && !w.lineStart && !w.spaced
		if s == "" {
			if lead {
				w.pdf.Write(w.lineHeight(), " ")
				w.spaced = true
			}
			return
		}
		if lead {
			s = " " + s
		}
		trail := endsWithSpace(n.Data)
		if trail {
			s += " "
		}
		w.pdf.Write(w.lineHeight(), w.tr(s))
		w.lineStart = false
		w.spaced = trail
		return
	case html.ElementNode:
	default:
		return
	}

	if n.DataAtom == atom.Br {
		w.pdf.Ln(w.lineHeight())
		w.lineStart = true
		return
	}

	w.with(func(f *fontState) {
		switch n.DataAtom {
		case atom.B, atom.Strong:
			f.bold = true
		case atom.I, atom.Em:
			f.italic = true
		case atom.U:
			f.underline = true
		case atom.Small:
			f.size *= 0.85
		}
		if styleProp(n, "font-weight") == "bold" {
			f.bold = true
		}
		w.colorFrom(n, f)
	}, func() error {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.inline(c)
		}
		return nil
	})
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[len(s)-1]))
}

const listIndent = 16.0

// list lays out ul and ol items. Nested lists indent from the item text of
// their parent.
func (w *writer) list(n *html.Node, ordered, nested bool) error {
	l, t, r, _ := w.pdf.GetMargins()
	indent := l + listIndent
	num := 0
	if start, err := strconv.Atoi(attr(n, "start")); err == nil {
		num = start - 1
	}

	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		if err := w.ctx.Err(); err != nil {
			return err
		}
		num++
		marker := "•"
		if ordered {
			marker = strconv.Itoa(num) + "."
		}

		w.pdf.SetX(indent - listIndent)
		w.pdf.CellFormat(listIndent-4, w.lineHeight(), w.tr(marker), "", 0, "R", false, 0, "")
		w.pdf.SetLeftMargin(indent)
		w.pdf.SetX(indent)

		y := w.pdf.GetY()
		err := w.blocks(withoutLists(li), "")
		if err == nil && w.pdf.GetY() == y {
			w.pdf.Ln(w.lineHeight())
		}
		for c := li.FirstChild; c != nil && err == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				err = w.list(c, c.DataAtom == atom.Ol, true)
			}
		}
		w.pdf.SetMargins(l, t, r)
		if err != nil {
			return err
		}
	}
	w.pdf.SetX(l)
	if !nested {
		w.pdf.Ln(paragraphGap)
	}
	return nil
}

// withoutLists returns a copy of li without its nested lists, which list
// lays out after the item text.
func withoutLists(li *html.Node) *html.Node {
	cp := &html.Node{Type: li.Type, DataAtom: li.DataAtom, Data: li.Data}
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
			continue
		}
		cp.AppendChild(cloneNode(c))
	}
	return cp
}

func cloneNode(n *html.Node) *html.Node {
	cp := &html.Node{Type: n.Type, DataAtom: n.DataAtom, Data: n.Data, Attr: n.Attr}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(cloneNode(c))
	}
	return cp
}

func (w *writer) rule() {
	w.pdf.Ln(4)
	l, _, r, _ := w.pdf.GetMargins()
	pageW, _ := w.pdf.GetPageSize()
	y := w.pdf.GetY()
	w.pdf.SetDrawColor(180, 180, 180)
	w.pdf.SetLineWidth(0.5)
	w.pdf.Line(l, y, pageW-r, y)
	w.pdf.SetDrawColor(0, 0, 0)
	w.pdf.Ln(4)
}

func (w *writer) table(n *html.Node) error {
	tb := table.New(w.pdf).SetTranslator(w.tr)
	style := table.DefaultStyle()
	style.Font.Size = w.font.size - 1
	style.Header.Font.Size = w.font.size - 1
	tb.SetStyle(style)

	var rows func(*html.Node, bool)
	rows = func(p *html.Node, inHead bool) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead:
				rows(c, true)
			case atom.Tbody, atom.Tfoot:
				rows(c, false)
			case atom.Tr:
				addRow(tb, c, inHead)
			}
		}
	}
	rows(n, false)

	w.pdf.Ln(2)
	w.pdf.SetX(leftMargin(w.pdf))
	err := tb.Render()
	w.apply()
	w.pdf.Ln(paragraphGap)
	return err
}

func addRow(tb *table.Table, tr *html.Node, inHead bool) {
	var cells []*html.Node
	allTH := true
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
			if c.DataAtom != atom.Th {
				allTH = false
			}
		}
	}
	if len(cells) == 0 {
		return
	}

	var row *table.Row
	if inHead || allTH {
		row = tb.AddHeaderRow()
	} else {
		row = tb.AddRow()
	}
	for _, c := range cells {
		cell := row.AddCell(textContent(c))
		if span, err := strconv.Atoi(attr(c, "colspan")); err == nil {
			cell.SetColspan(span)
		}
		if a := textAlign(c); a != "" {
			cell.SetAlign(a)
		}
		if c.DataAtom == atom.Th && !inHead && !allTH {
			cell.SetBold()
		}
	}
}
