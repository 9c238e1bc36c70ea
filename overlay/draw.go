package overlay

import (
	"fmt"

	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/barcode"

	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/resolve"
	"github.com/itakecare/leazr-docgen/units"
)

// ascent is the share of the font size between the top of a line and its
// baseline.
const ascent = 0.8

func (r *Renderer) drawField(pdf *gofpdf.Fpdf, fonts *fontSet, rf resolve.Resolved) error {
	st := rf.Field.Style
	size := st.Size()
	tr, err := fonts.use(st.Family(), st.Bold(), size)
	if err != nil {
		return err
	}

	cr, cg, cb := model.ParseColor(st.Color)
	pdf.SetTextColor(cr, cg, cb)

	x := units.MmToPoints(rf.Field.Position.X)
	y := units.MmToPoints(rf.Field.Position.Y)
	text := tr(rf.Value)

	if st.Width > 0 {
		w := units.MmToPoints(st.Width)
		h := size * 1.4
		if st.Height > 0 {
			h = units.MmToPoints(st.Height)
		}
		pdf.SetXY(x, y)
		pdf.CellFormat(w, h, text, "", 0, alignStr(st.Align)+"M", false, 0, "")
	} else {
		pdf.Text(x, y+size*ascent, text)
	}

	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return err
	}
	return nil
}

func alignStr(a string) string {
	switch a {
	case model.AlignCenter:
		return "C"
	case model.AlignRight:
		return "R"
	default:
		return "L"
	}
}

// drawWatermark renders text diagonally across the centre of the current
// page, light gray at 30% opacity.
func drawWatermark(pdf *gofpdf.Fpdf, text string, pageW, pageH float64) {
	const size = 72.0
	pdf.SetFont("Helvetica", "B", size)
	pdf.SetTextColor(200, 200, 200)
	pdf.SetAlpha(0.3, "Normal")

	cx, cy := pageW/2, pageH/2
	textW := pdf.GetStringWidth(text)

	pdf.TransformBegin()
	pdf.TransformRotate(45, cx, cy)
	pdf.Text(cx-textW/2, cy+size/3, text)
	pdf.TransformEnd()

	pdf.SetAlpha(1.0, "Normal")
}

// stampMargin and stampSize place the reference stamp in the bottom-right
// corner of the page, in points.
const (
	stampMargin = 18.0
	stampSize   = 56.0
)

// drawStamp draws code as a QR or PDF417 symbol.
func drawStamp(pdf *gofpdf.Fpdf, symbology, code string, pageW, pageH float64) error {
	var key string
	w, h := stampSize, stampSize
	switch symbology {
	case "qr":
		key = barcode.RegisterQR(pdf, code, qr.M, qr.Unicode)
	case "pdf417":
		key = barcode.RegisterPdf417(pdf, code, 6, 2)
		w, h = stampSize*2.5, stampSize/2
	default:
		return fmt.Errorf("unknown symbology %q", symbology)
	}
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return err
	}
	barcode.Barcode(pdf, key, pageW-stampMargin-w, pageH-stampMargin-h, w, h, false)
	return nil
}
