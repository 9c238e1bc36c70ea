package generate

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/blob"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/store"
)

type blobMap struct {
	data  map[string][]byte
	block bool
	calls atomic.Int32
}

func (b *blobMap) Fetch(ctx context.Context, ref string) ([]byte, error) {
	b.calls.Add(1)
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d, ok := b.data[ref]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return d, nil
}

type funcConverter func(ctx context.Context, html string) ([]byte, error)

func (f funcConverter) Convert(ctx context.Context, html string, _ map[string]any) ([]byte, error) {
	return f(ctx, html)
}

func backgroundPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		pdf.AddPage()
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

type fixture struct {
	gen      *Generator
	store    *store.Memory
	blobs    *blobMap
	html     []string
	settings docgen.Settings
}

func newFixture(t *testing.T, opts ...docgen.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		blobs: &blobMap{data: map[string][]byte{"backgrounds/offer.pdf": backgroundPDF(t, 2)}},
	}
	f.settings = docgen.NewSettings(append([]docgen.Option{docgen.WithCompression(false)}, opts...)...)
	conv := funcConverter(func(_ context.Context, html string) ([]byte, error) {
		f.html = append(f.html, html)
		return []byte("%PDF-markup"), nil
	})
	f.gen = New(f.store,
		NewOverlayBackend(f.blobs, f.settings, nil),
		NewMarkupBackend(conv, f.settings, nil),
		nil)
	return f
}

func (f *fixture) save(t *testing.T, tpl *model.Template) *model.Template {
	t.Helper()
	saved, err := f.store.SaveTemplate(context.Background(), tpl)
	require.NoError(t, err)
	return saved
}

func offerTemplate(tenant string) *model.Template {
	return &model.Template{
		TenantID:   tenant,
		Name:       "Offre",
		Category:   "offer",
		Background: &model.Background{Ref: "backgrounds/offer.pdf"},
		Pages:      []model.Page{model.DefaultPage(1), model.DefaultPage(2)},
		Fields: []model.Field{
			{
				ID: "client", Type: model.FieldText, Label: "Client", DataPath: "client.name",
				Position: model.Position{X: 20, Y: 40, Page: 1}, IsVisible: true,
			},
			{
				ID: "monthly", Type: model.FieldCurrency, Label: "Mensualité", DataPath: "amounts.monthly",
				Position: model.Position{X: 20, Y: 60, Page: 2}, IsVisible: true,
			},
		},
		IsActive:  true,
		IsDefault: true,
	}
}

func TestGenerateOverlay(t *testing.T) {
	f := newFixture(t)
	tpl := f.save(t, offerTemplate("acme"))

	doc, err := f.gen.Generate(context.Background(), Request{
		TenantID: "acme",
		Category: "offer",
		Record: map[string]any{
			"client":  map[string]any{"name": "Jean Dupont"},
			"amounts": map[string]any{"monthly": 149.9},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, tpl.ID, doc.TemplateID)
	assert.Equal(t, model.KindOverlay, doc.Kind)
	assert.False(t, doc.Preview)
	assert.Empty(t, doc.Skipped)
	assert.True(t, bytes.HasPrefix(doc.PDF, []byte("%PDF")))
	assert.Contains(t, string(doc.PDF), "(Jean Dupont) Tj")
	assert.Contains(t, string(doc.PDF), "149,90")
	assert.NotContains(t, string(doc.PDF), "SPECIMEN")
}

func TestGenerateHidesMissingValues(t *testing.T) {
	f := newFixture(t)
	f.save(t, offerTemplate("acme"))

	out, err := f.gen.GenerateDocument(context.Background(), Request{
		TenantID: "acme", Category: "offer", Record: map[string]any{"client": map[string]any{}},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "[Client]")
	assert.NotContains(t, string(out), "Jean Dupont")
}

func TestGenerateWithoutRecordUsesSample(t *testing.T) {
	f := newFixture(t)
	f.save(t, offerTemplate("acme"))

	doc, err := f.gen.Generate(context.Background(), Request{TenantID: "acme", Category: "offer"})
	require.NoError(t, err)
	assert.True(t, doc.Preview)
	assert.Contains(t, string(doc.PDF), "(Jean Dupont) Tj")
	assert.Contains(t, string(doc.PDF), "(SPECIMEN) Tj")
}

func TestGenerateNoTemplate(t *testing.T) {
	f := newFixture(t)
	f.save(t, offerTemplate("globex"))

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown tenant", Request{TenantID: "acme", Category: "offer"}},
		{"no tenant", Request{Category: "offer"}},
		{"wrong category", Request{TenantID: "globex", Category: "contract"}},
		{"unknown explicit id", Request{TenantID: "globex", TemplateID: "missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gen.GenerateDocument(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, docgen.ErrNoTemplateConfigured)
			assert.Equal(t, docgen.KindNoTemplateConfigured, docgen.KindOf(err))

			var ge *docgen.GenerationError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, "select", ge.Op)
		})
	}
	assert.Zero(t, f.blobs.calls.Load())
}

func TestGenerateExplicitTemplateOfOtherTenant(t *testing.T) {
	f := newFixture(t)
	other := f.save(t, offerTemplate("globex"))
	f.save(t, offerTemplate("acme"))

	_, err := f.gen.GenerateDocument(context.Background(), Request{TenantID: "acme", TemplateID: other.ID})
	assert.ErrorIs(t, err, docgen.ErrNoTemplateConfigured)
}

func TestGenerateBackgroundUnavailable(t *testing.T) {
	f := newFixture(t)
	tpl := offerTemplate("acme")
	tpl.Background.Ref = "backgrounds/missing.pdf"
	f.save(t, tpl)

	_, err := f.gen.GenerateDocument(context.Background(), Request{TenantID: "acme", Category: "offer", Record: map[string]any{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, docgen.ErrBackgroundUnavailable)
	assert.True(t, docgen.Retryable(err))

	var ge *docgen.GenerationError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "fetch_background", ge.Op)
}

func TestGenerateCorruptBackground(t *testing.T) {
	f := newFixture(t)
	f.blobs.data["backgrounds/offer.pdf"] = []byte("not a pdf")
	f.save(t, offerTemplate("acme"))

	_, err := f.gen.GenerateDocument(context.Background(), Request{TenantID: "acme", Category: "offer", Record: map[string]any{}})
	assert.ErrorIs(t, err, docgen.ErrBackgroundUnavailable)
}

func TestGenerateFetchTimeout(t *testing.T) {
	f := newFixture(t, docgen.WithTimeouts(20*time.Millisecond, 0))
	f.blobs.block = true
	f.save(t, offerTemplate("acme"))

	_, err := f.gen.GenerateDocument(context.Background(), Request{TenantID: "acme", Category: "offer", Record: map[string]any{}})
	assert.ErrorIs(t, err, docgen.ErrRenderTimeout)
	assert.True(t, docgen.Retryable(err))
	assert.Equal(t, docgen.KindRenderTimeout, docgen.KindOf(err))
}

func TestGenerateMarkupWinsOverOverlay(t *testing.T) {
	f := newFixture(t)
	f.save(t, offerTemplate("acme"))
	html := f.save(t, &model.Template{
		TenantID: "acme", Name: "Offre HTML", IsActive: true,
		Markup: "<h1>{{client_name}}</h1><p>{{formatCurrency amounts.monthly}}</p>",
	})

	doc, err := f.gen.Generate(context.Background(), Request{
		TenantID: "acme",
		Category: "offer",
		Record: map[string]any{
			"client":  map[string]any{"name": "Jean Dupont"},
			"amounts": map[string]any{"monthly": 149.9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, html.ID, doc.TemplateID)
	assert.Equal(t, model.KindMarkup, doc.Kind)
	assert.Equal(t, "%PDF-markup", string(doc.PDF))
	require.Len(t, f.html, 1)
	assert.True(t, strings.HasPrefix(f.html[0], "<h1>Jean Dupont</h1><p>149,90"), f.html[0])
}

func TestGenerateMarkupPreviewIsMarked(t *testing.T) {
	f := newFixture(t)
	f.save(t, &model.Template{TenantID: "acme", Name: "HTML", IsActive: true, Markup: "<p>{{client_name}}</p>"})

	doc, err := f.gen.Generate(context.Background(), Request{TenantID: "acme"})
	require.NoError(t, err)
	assert.True(t, doc.Preview)
	require.Len(t, f.html, 1)
	assert.Contains(t, f.html[0], "SPECIMEN")
	assert.Contains(t, f.html[0], "<p>Jean Dupont</p>")
}

func TestGenerateMarkupCompilationError(t *testing.T) {
	f := newFixture(t)
	f.save(t, &model.Template{TenantID: "acme", Name: "HTML", IsActive: true, Markup: "{{shout client.name}}"})

	out, err := f.gen.GenerateDocument(context.Background(), Request{TenantID: "acme", Record: map[string]any{}})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, docgen.ErrMarkupCompilation)
	assert.False(t, docgen.Retryable(err))
	assert.Empty(t, f.html)
}

func TestGenerateConvertTimeout(t *testing.T) {
	settings := docgen.NewSettings(docgen.WithTimeouts(0, 20*time.Millisecond))
	release := make(chan struct{})
	defer close(release)
	stubborn := funcConverter(func(context.Context, string) ([]byte, error) {
		<-release
		return []byte("%PDF-late"), nil
	})

	s := store.NewMemory()
	_, err := s.SaveTemplate(context.Background(), &model.Template{
		TenantID: "acme", Name: "HTML", IsActive: true, Markup: "<p>x</p>",
	})
	require.NoError(t, err)
	gen := New(s, nil, NewMarkupBackend(stubborn, settings, nil), nil)

	start := time.Now()
	out, err := gen.GenerateDocument(context.Background(), Request{TenantID: "acme", Record: map[string]any{}})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, docgen.ErrRenderTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	var ge *docgen.GenerationError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "convert", ge.Op)
}

func TestGenerateUnsupportedKind(t *testing.T) {
	s := store.NewMemory()
	_, err := s.SaveTemplate(context.Background(), &model.Template{
		TenantID: "acme", Name: "HTML", IsActive: true, Markup: "<p>x</p>",
	})
	require.NoError(t, err)
	gen := New(s, NewOverlayBackend(&blobMap{}, docgen.DefaultSettings(), nil), nil, nil)

	_, err = gen.GenerateDocument(context.Background(), Request{TenantID: "acme"})
	assert.ErrorIs(t, err, docgen.ErrInvalidTemplate)
}
