// Package overlay draws resolved field values on top of the pages of an
// uploaded background document.
//
// Every background page is imported as a template with gofpdi and placed
// full-size on a page of the same dimensions; fields are then drawn in
// stored order, so a later field paints over an earlier one.
package overlay

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"go.uber.org/zap"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/resolve"
)

// Job is one overlay rendering request.
type Job struct {
	Template   *model.Template
	Background []byte
	Fields     []resolve.Resolved // in template order
	Watermark  string             // drawn diagonally on every page when set
	Reference  string             // encoded in the reference stamp when enabled
}

// Result is a rendered document.
type Result struct {
	PDF     []byte
	Pages   int
	Drawn   int
	Skipped []string // ids of fields that could not be drawn
}

// Renderer produces overlay documents. It holds no per-document state and
// is safe for concurrent use.
type Renderer struct {
	settings docgen.Settings
	logger   *zap.Logger
}

// NewRenderer returns a renderer using the font directory, compression and
// reference stamp of settings.
func NewRenderer(settings docgen.Settings, log *zap.Logger) *Renderer {
	return &Renderer{settings: settings, logger: logger.OrNop(log).Named("overlay")}
}

// Render draws job.Fields over job.Background. A field that cannot be drawn
// is skipped with a warning; only background failures abort the document.
func (r *Renderer) Render(ctx context.Context, job Job) (res *Result, err error) {
	if job.Template == nil {
		return nil, fmt.Errorf("%w: nil template", docgen.ErrInvalidTemplate)
	}
	pages, err := Analyze(job.Background)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("%w: import failed: %v", docgen.ErrBackgroundUnavailable, p)
		}
	}()

	pdf := gofpdf.New("P", "pt", "A4", r.settings.FontDir)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.settings.Compress)
	pdf.SetTitle(job.Template.Name, true)
	pdf.SetCreator("leazr-docgen", true)

	fonts := newFontSet(pdf, r.settings.FontDir)
	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(job.Background))

	res = &Result{Pages: len(pages)}
	byPage := r.groupFields(job, len(pages), res)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tplID := imp.ImportPageFromStream(pdf, &rs, page.Number, "/MediaBox")
		w, h := importedSize(imp, page)
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tplID, 0, 0, w, h)

		for _, rf := range byPage[page.Number] {
			if err := r.drawField(pdf, fonts, rf); err != nil {
				r.skip(res, rf.Field, err)
				continue
			}
			res.Drawn++
		}

		if job.Watermark != "" {
			drawWatermark(pdf, fonts.tr(job.Watermark), w, h)
		}
		if page.Number == 1 && r.settings.Symbology != "" && job.Reference != "" {
			code := job.Template.ID + "/" + job.Reference
			if err := drawStamp(pdf, r.settings.Symbology, code, w, h); err != nil {
				r.logger.Warn("reference stamp skipped", zap.Error(err))
			}
		}
	}

	if pdf.Err() {
		return nil, fmt.Errorf("overlay: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("overlay: write: %w", err)
	}
	res.PDF = buf.Bytes()

	r.logger.Debug("overlay rendered",
		zap.String("template_id", job.Template.ID),
		zap.Int("pages", res.Pages),
		zap.Int("drawn", res.Drawn),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// groupFields buckets visible fields by page, keeping their order. Fields
// pointing past the last page are recorded as skipped.
func (r *Renderer) groupFields(job Job, pageCount int, res *Result) map[int][]resolve.Resolved {
	byPage := make(map[int][]resolve.Resolved)
	for _, rf := range job.Fields {
		if rf.Hidden {
			continue
		}
		p := rf.Field.Position.Page
		if p < 1 || p > pageCount {
			r.skip(res, rf.Field, fmt.Errorf("page %d does not exist (document has %d)", p, pageCount))
			continue
		}
		if rf.Field.Type == model.FieldTable {
			r.logger.Debug("table field drawn as summary", zap.String("field_id", rf.Field.ID))
		}
		byPage[p] = append(byPage[p], rf)
	}
	return byPage
}

func (r *Renderer) skip(res *Result, f model.Field, cause error) {
	err := fmt.Errorf("%w: %v", docgen.ErrFieldSkipped, cause)
	r.logger.Warn("field skipped",
		zap.String("field_id", f.ID),
		zap.Int("page", f.Position.Page),
		zap.Error(err))
	res.Skipped = append(res.Skipped, f.ID)
}

// importedSize prefers the media box gofpdi read for the page and falls back
// to the analyzed dimensions.
func importedSize(imp *gofpdi.Importer, page model.Page) (w, h float64) {
	if dims, ok := imp.GetPageSizes()[page.Number]; ok {
		if mb, ok := dims["/MediaBox"]; ok {
			w, h = mb["w"], mb["h"]
		}
	}
	if w <= 0 || h <= 0 {
		w, h = page.Width, page.Height
	}
	if w <= 0 || h <= 0 {
		w, h = model.A4WidthPt, model.A4HeightPt
	}
	return w, h
}
