package htmlpdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	pxToPt   = 0.75
	imageGap = 8.0
)

type placedImage struct {
	name, typ string
	w, h      float64
}

// imageRow places images left to right, wrapping at the right margin. A
// single image follows the alignment of its block.
func (w *writer) imageRow(nodes []*html.Node, align string) {
	var items []placedImage
	for _, n := range nodes {
		if img, ok := w.loadImage(n); ok {
			items = append(items, img)
		}
	}
	if len(items) == 0 {
		return
	}

	l := leftMargin(w.pdf)
	maxW := w.contentWidth()
	_, pageH := w.pdf.GetPageSize()
	_, _, _, bottom := w.pdf.GetMargins()

	x, y, rowH := l, w.pdf.GetY(), 0.0
	if len(items) == 1 {
		switch align {
		case "C":
			x = l + (maxW-items[0].w)/2
		case "R":
			x = l + maxW - items[0].w
		}
	}

	for _, it := range items {
		if x > l && x+it.w > l+maxW {
			y += rowH + imageGap
			x, rowH = l, 0
		}
		if y+it.h > pageH-bottom {
			w.pdf.AddPage()
			y = w.pdf.GetY()
			x, rowH = l, 0
		}
		w.pdf.ImageOptions(it.name, x, y, it.w, it.h, false, gofpdf.ImageOptions{ImageType: it.typ}, 0, "")
		x += it.w + imageGap
		if it.h > rowH {
			rowH = it.h
		}
	}
	w.pdf.SetXY(l, y+rowH+paragraphGap)
}

// loadImage registers a data-URI image and computes its box in points.
// Other sources are skipped.
func (w *writer) loadImage(n *html.Node) (placedImage, bool) {
	src := attr(n, "src")
	typ, data, err := decodeDataURI(src)
	if err != nil {
		w.logger.Debug("image skipped", zap.String("src", truncate(src, 64)), zap.Error(err))
		return placedImage{}, false
	}

	w.images++
	name := fmt.Sprintf("img%d", w.images)
	info := w.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: typ}, bytes.NewReader(data))
	if w.pdf.Err() || info == nil {
		w.logger.Warn("image skipped", zap.Error(w.pdf.Error()))
		w.pdf.ClearError()
		return placedImage{}, false
	}

	natW, natH := info.Width(), info.Height()
	if natW <= 0 || natH <= 0 {
		return placedImage{}, false
	}
	width := natW
	if px := dimension(n, "width"); px > 0 {
		width = px * pxToPt
	} else if px := dimension(n, "height"); px > 0 {
		width = px * pxToPt * natW / natH
	}
	if maxW := w.contentWidth(); width > maxW {
		width = maxW
	}
	return placedImage{name: name, typ: typ, w: width, h: width * natH / natW}, true
}

// dimension reads a pixel size from the attribute or the inline style.
func dimension(n *html.Node, key string) float64 {
	v := attr(n, key)
	if v == "" {
		v = styleProp(n, key)
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return f
}

// decodeDataURI returns the gofpdf image type and the payload of a base64
// data URI.
func decodeDataURI(src string) (string, []byte, error) {
	header, payload, ok := strings.Cut(src, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, fmt.Errorf("data URI is not base64")
	}

	var typ string
	switch mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"); mime {
	case "image/png":
		typ = "PNG"
	case "image/jpeg", "image/jpg":
		typ = "JPG"
	case "image/gif":
		typ = "GIF"
	default:
		return "", nil, fmt.Errorf("unsupported image type %q", mime)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return "", nil, fmt.Errorf("decode: %w", err)
	}
	return typ, data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
