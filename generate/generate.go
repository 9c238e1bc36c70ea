// Package generate is the entry point of the document generation core: it
// selects the template serving a request, resolves the record and hands the
// work to the backend matching the template.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/resolve"
	"github.com/itakecare/leazr-docgen/selection"
)

// Request asks for one document. A nil Record renders the template against
// the sample record with a specimen watermark.
type Request struct {
	TenantID   string         `json:"tenantId"`
	Category   string         `json:"category,omitempty"`
	TemplateID string         `json:"templateId,omitempty"`
	Record     map[string]any `json:"record,omitempty"`
}

// Document is a generated PDF and how it was produced.
type Document struct {
	PDF        []byte
	TemplateID string
	Kind       model.Kind
	Preview    bool
	Skipped    []string // overlay fields that could not be drawn
}

// RenderingBackend produces a document for one kind of template.
type RenderingBackend interface {
	Render(ctx context.Context, t *model.Template, record map[string]any, preview bool) (*Document, error)
}

// Generator is safe for concurrent use; it holds only read-only
// collaborators.
type Generator struct {
	templates selection.Source
	backends  map[model.Kind]RenderingBackend
	logger    *zap.Logger
}

// New returns a generator reading templates from src. A nil backend leaves
// that kind of template unsupported.
func New(src selection.Source, overlay, markup RenderingBackend, log *zap.Logger) *Generator {
	g := &Generator{
		templates: src,
		backends:  make(map[model.Kind]RenderingBackend, 2),
		logger:    logger.OrNop(log).Named("generate"),
	}
	if overlay != nil {
		g.backends[model.KindOverlay] = overlay
	}
	if markup != nil {
		g.backends[model.KindMarkup] = markup
	}
	return g
}

// GenerateDocument returns the PDF bytes for req. Errors are
// *docgen.GenerationError values wrapping one of the docgen sentinels.
func (g *Generator) GenerateDocument(ctx context.Context, req Request) ([]byte, error) {
	doc, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return doc.PDF, nil
}

// Generate is GenerateDocument with the production details kept.
func (g *Generator) Generate(ctx context.Context, req Request) (*Document, error) {
	start := time.Now()
	log := g.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("tenant_id", req.TenantID),
		zap.String("category", req.Category))

	if req.TenantID == "" {
		return nil, docgen.NewGenerationError("select",
			fmt.Errorf("%w: tenant id required", docgen.ErrNoTemplateConfigured))
	}

	t, err := selection.Select(ctx, g.templates, req.TenantID, req.Category, req.TemplateID)
	if err != nil {
		log.Info("no template selected", zap.Error(err))
		return nil, docgen.NewGenerationError("select", err)
	}
	log = log.With(zap.String("template_id", t.ID), zap.String("kind", string(t.Kind())))

	backend, ok := g.backends[t.Kind()]
	if !ok {
		return nil, docgen.NewGenerationError("select",
			fmt.Errorf("%w: no backend for template kind %q", docgen.ErrInvalidTemplate, t.Kind()))
	}

	record, preview := req.Record, false
	if record == nil {
		record, preview = resolve.SampleRecord(), true
	}

	doc, err := backend.Render(ctx, t, record, preview)
	if err != nil {
		var ge *docgen.GenerationError
		if !errors.As(err, &ge) {
			err = docgen.NewGenerationError("render", err)
		}
		log.Warn("generation failed",
			zap.String("error_kind", docgen.KindOf(err)),
			zap.Error(err))
		return nil, err
	}

	doc.TemplateID = t.ID
	doc.Kind = t.Kind()
	doc.Preview = preview
	log.Info("document generated",
		zap.Bool("preview", preview),
		zap.Int("bytes", len(doc.PDF)),
		zap.Int("skipped", len(doc.Skipped)),
		zap.Duration("elapsed", time.Since(start)))
	return doc, nil
}
