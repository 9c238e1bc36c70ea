package overlay

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jung-kurt/gofpdf"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/resolve"
)

// background builds an A4 document with n pages.
func background(t *testing.T, n int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 1; i <= n; i++ {
		pdf.AddPage()
		pdf.Text(40, 60, "Conditions generales")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("building background: %v", err)
	}
	return buf.Bytes()
}

func field(id string, page int, x, y float64) model.Field {
	return model.Field{
		ID: id, Type: model.FieldText, Label: id,
		Position:  model.Position{X: x, Y: y, Page: page},
		IsVisible: true,
	}
}

func uncompressed() docgen.Settings {
	return docgen.NewSettings(docgen.WithCompression(false))
}

func TestAnalyze(t *testing.T) {
	pages, err := Analyze(background(t, 3))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if p.Number != i+1 {
			t.Errorf("page %d numbered %d", i, p.Number)
		}
		if math.Abs(p.Width-model.A4WidthPt) > 0.01 || math.Abs(p.Height-model.A4HeightPt) > 0.01 {
			t.Errorf("page %d is %.2fx%.2f", p.Number, p.Width, p.Height)
		}
	}
}

func TestAnalyzeRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("not a pdf at all"),
	} {
		if _, err := Analyze(data); !errors.Is(err, docgen.ErrBackgroundUnavailable) {
			t.Errorf("%s: err = %v, want ErrBackgroundUnavailable", name, err)
		}
	}
}

func TestRenderKeepsPageCount(t *testing.T) {
	r := NewRenderer(docgen.NewSettings(), nil)
	tpl := &model.Template{ID: "t1", Name: "Offre", TenantID: "acme"}
	res, err := r.Render(context.Background(), Job{
		Template:   tpl,
		Background: background(t, 2),
		Fields: []resolve.Resolved{
			{Field: field("client", 1, 20, 40), Value: "Jean Dupont"},
			{Field: field("total", 2, 150, 250), Value: "5 396,40 €"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	n, err := PageCount(res.PDF)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 2 || res.Pages != 2 {
		t.Fatalf("got %d pages (result says %d), want 2", n, res.Pages)
	}
	if res.Drawn != 2 || len(res.Skipped) != 0 {
		t.Fatalf("drawn %d skipped %v", res.Drawn, res.Skipped)
	}
}

func TestRenderNeverDrawsHiddenFields(t *testing.T) {
	r := NewRenderer(uncompressed(), nil)
	res, err := r.Render(context.Background(), Job{
		Template:   &model.Template{ID: "t1"},
		Background: background(t, 1),
		Fields: []resolve.Resolved{
			{Field: field("client", 1, 20, 40), Value: "Jean Dupont"},
			{Field: field("secret", 1, 20, 60), Hidden: true, Value: "HIDDEN-MARKER"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(res.PDF, []byte("(Jean Dupont) Tj")) {
		t.Error("visible field not drawn")
	}
	if bytes.Contains(res.PDF, []byte("HIDDEN-MARKER")) {
		t.Error("hidden field drawn")
	}
}

func TestRenderSkipsFieldsOnMissingPages(t *testing.T) {
	r := NewRenderer(docgen.NewSettings(), nil)
	res, err := r.Render(context.Background(), Job{
		Template:   &model.Template{ID: "t1"},
		Background: background(t, 2),
		Fields: []resolve.Resolved{
			{Field: field("ok", 2, 10, 10), Value: "ok"},
			{Field: field("lost", 3, 10, 10), Value: "lost"},
			{Field: field("zero", 0, 10, 10), Value: "zero"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Drawn != 1 {
		t.Errorf("drawn = %d, want 1", res.Drawn)
	}
	if len(res.Skipped) != 2 || res.Skipped[0] != "lost" || res.Skipped[1] != "zero" {
		t.Errorf("skipped = %v", res.Skipped)
	}
}

func TestRenderSkipsUnavailableFont(t *testing.T) {
	r := NewRenderer(docgen.NewSettings(), nil)
	f := field("styled", 1, 10, 10)
	f.Style.FontFamily = "Roboto"
	res, err := r.Render(context.Background(), Job{
		Template:   &model.Template{ID: "t1"},
		Background: background(t, 1),
		Fields: []resolve.Resolved{
			{Field: f, Value: "styled"},
			{Field: field("plain", 1, 10, 30), Value: "plain"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Drawn != 1 || len(res.Skipped) != 1 || res.Skipped[0] != "styled" {
		t.Fatalf("drawn %d skipped %v", res.Drawn, res.Skipped)
	}
}

func TestRenderWidthBoxAndWatermark(t *testing.T) {
	r := NewRenderer(uncompressed(), nil)
	f := field("amount", 1, 120, 200)
	f.Style = model.Style{Width: 60, Align: model.AlignRight, FontWeight: model.WeightBold, Color: "#1a1a1a"}
	res, err := r.Render(context.Background(), Job{
		Template:   &model.Template{ID: "t1"},
		Background: background(t, 2),
		Fields:     []resolve.Resolved{{Field: f, Value: "149,90 EUR"}},
		Watermark:  "SPECIMEN",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := bytes.Count(res.PDF, []byte("(SPECIMEN) Tj")); got != 2 {
		t.Errorf("watermark drawn %d times, want 2", got)
	}
	if !bytes.Contains(res.PDF, []byte("(149,90 EUR) Tj")) {
		t.Error("boxed field not drawn")
	}
}

func TestRenderReferenceStamp(t *testing.T) {
	for _, sym := range []string{"qr", "pdf417"} {
		t.Run(sym, func(t *testing.T) {
			settings := docgen.NewSettings(docgen.WithReferenceStamp(sym), docgen.WithCompression(false))
			r := NewRenderer(settings, nil)
			res, err := r.Render(context.Background(), Job{
				Template:   &model.Template{ID: "t1"},
				Background: background(t, 1),
				Reference:  "OFF-2024-0001",
			})
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !bytes.Contains(res.PDF, []byte("/Subtype /Image")) {
				t.Error("stamp image missing")
			}
		})
	}
}

func TestRenderInvalidBackground(t *testing.T) {
	r := NewRenderer(docgen.NewSettings(), nil)
	_, err := r.Render(context.Background(), Job{
		Template:   &model.Template{ID: "t1"},
		Background: []byte("%PDF-1.4 truncated"),
	})
	if !errors.Is(err, docgen.ErrBackgroundUnavailable) {
		t.Fatalf("err = %v, want ErrBackgroundUnavailable", err)
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRenderer(docgen.NewSettings(), nil)
	_, err := r.Render(ctx, Job{Template: &model.Template{ID: "t1"}, Background: background(t, 1)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
