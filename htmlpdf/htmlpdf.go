// Package htmlpdf is the bundled markup-to-PDF converter. It lays out a
// compiled HTML document with gofpdf: headings, paragraphs with bold and
// italic runs, lists, tables (colspan and repeated headers), horizontal
// rules, page breaks and data-URI images. Remote resources are not fetched.
package htmlpdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/resolve"
)

// Page geometry in points.
const (
	margin       = 42.5
	baseSize     = 10.0
	lineSpacing  = 1.35
	paragraphGap = 6.0
)

var headingSizes = map[atom.Atom]float64{
	atom.H1: 22, atom.H2: 18, atom.H3: 15, atom.H4: 13, atom.H5: 11, atom.H6: 10,
}

// Converter renders HTML to PDF. It is safe for concurrent use.
type Converter struct {
	compress bool
	logger   *zap.Logger
}

// New returns a converter honouring the compression setting.
func New(settings docgen.Settings, log *zap.Logger) *Converter {
	return &Converter{compress: settings.Compress, logger: logger.OrNop(log).Named("htmlpdf")}
}

// Convert lays out markup on A4 pages. The record only contributes document
// metadata (the offer reference becomes the PDF subject).
func (c *Converter) Convert(ctx context.Context, markup string, record map[string]any) ([]byte, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("htmlpdf: parse: %w", err)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCompression(c.compress)
	pdf.SetCreator("leazr-docgen", true)
	if title := findText(doc, atom.Title); title != "" {
		pdf.SetTitle(title, true)
	}
	if ref, ok := resolve.Lookup(record, "offer.reference"); ok {
		pdf.SetSubject(fmt.Sprint(ref), true)
	}
	pdf.AddPage()

	w := &writer{
		ctx:    ctx,
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		logger: c.logger,
		font:   fontState{size: baseSize},
	}
	w.apply()

	body := findNode(doc, atom.Body)
	if body == nil {
		body = doc
	}
	if err := w.blocks(body, ""); err != nil {
		return nil, err
	}

	if pdf.Err() {
		return nil, fmt.Errorf("htmlpdf: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("htmlpdf: write: %w", err)
	}
	return buf.Bytes(), nil
}

func findNode(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, a); found != nil {
			return found
		}
	}
	return nil
}

func findText(n *html.Node, a atom.Atom) string {
	if found := findNode(n, a); found != nil {
		return strings.TrimSpace(textContent(found))
	}
	return ""
}

// textContent concatenates the text below n with whitespace collapsed.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapse(sb.String())
}

// collapse folds runs of whitespace into one space, keeping explicit newlines.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// styleProp reads one declaration from an inline style attribute.
func styleProp(n *html.Node, prop string) string {
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), prop) {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
