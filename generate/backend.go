package generate

import (
	"context"
	"errors"
	"fmt"
	"html"

	"go.uber.org/zap"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/blob"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/markup"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/overlay"
	"github.com/itakecare/leazr-docgen/resolve"
)

// OverlayBackend draws fields on the template's background document.
type OverlayBackend struct {
	blobs    blob.Store
	renderer *overlay.Renderer
	format   *resolve.Formatter
	settings docgen.Settings
	logger   *zap.Logger
}

// NewOverlayBackend loads backgrounds from blobs.
func NewOverlayBackend(blobs blob.Store, settings docgen.Settings, log *zap.Logger) *OverlayBackend {
	log = logger.OrNop(log)
	return &OverlayBackend{
		blobs:    blobs,
		renderer: overlay.NewRenderer(settings, log),
		format:   resolve.NewFormatter(settings.Locale, settings.DefaultCurrency),
		settings: settings,
		logger:   log.Named("overlay_backend"),
	}
}

// Render fetches the background under the fetch timeout and draws the
// resolved fields on it.
func (b *OverlayBackend) Render(ctx context.Context, t *model.Template, record map[string]any, preview bool) (*Document, error) {
	if t.Background == nil || t.Background.Ref == "" {
		return nil, docgen.NewGenerationError("fetch_background",
			fmt.Errorf("%w: template %s has no background", docgen.ErrInvalidTemplate, t.ID))
	}

	background, err := b.fetch(ctx, t.Background.Ref)
	if err != nil {
		return nil, docgen.NewGenerationError("fetch_background", err)
	}

	job := overlay.Job{
		Template:   t,
		Background: background,
		Fields:     resolve.New(b.format, preview).ResolveAll(t.Fields, record),
	}
	if preview {
		job.Watermark = b.settings.SpecimenText
	}
	if ref, ok := resolve.Lookup(record, "offer.reference"); ok {
		job.Reference = fmt.Sprint(ref)
	}

	res, err := b.renderer.Render(ctx, job)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", docgen.ErrRenderTimeout, err)
		}
		return nil, docgen.NewGenerationError("render_overlay", err)
	}
	return &Document{PDF: res.PDF, Skipped: res.Skipped}, nil
}

func (b *OverlayBackend) fetch(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.settings.FetchTimeout)
	defer cancel()

	data, err := b.blobs.Fetch(ctx, ref)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: background fetch exceeded %s", docgen.ErrRenderTimeout, b.settings.FetchTimeout)
	default:
		b.logger.Warn("background fetch failed", zap.String("ref", ref), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", docgen.ErrBackgroundUnavailable, err)
	}
}

// MarkupBackend compiles HTML templates and converts them. The conversion
// runs in its own goroutine so a converter that ignores its context still
// times out.
type MarkupBackend struct {
	pipeline *markup.Pipeline
	conv     markup.Converter
	settings docgen.Settings
	logger   *zap.Logger
}

// NewMarkupBackend converts compiled markup with conv.
func NewMarkupBackend(conv markup.Converter, settings docgen.Settings, log *zap.Logger) *MarkupBackend {
	log = logger.OrNop(log)
	f := resolve.NewFormatter(settings.Locale, settings.DefaultCurrency)
	return &MarkupBackend{
		pipeline: markup.NewPipeline(f, conv, log),
		conv:     conv,
		settings: settings,
		logger:   log.Named("markup_backend"),
	}
}

// Render compiles the template markup and converts it under the
// conversion timeout.
func (b *MarkupBackend) Render(ctx context.Context, t *model.Template, record map[string]any, preview bool) (*Document, error) {
	compiled, err := b.pipeline.Compile(t.Markup, record)
	if err != nil {
		return nil, docgen.NewGenerationError("compile", err)
	}
	if preview && b.settings.SpecimenText != "" {
		compiled = `<p class="specimen" style="text-align: center; color: #999999">` +
			html.EscapeString(b.settings.SpecimenText) + `</p>` + compiled
	}

	pdf, err := b.convert(ctx, compiled, record)
	if err != nil {
		return nil, docgen.NewGenerationError("convert", err)
	}
	return &Document{PDF: pdf}, nil
}

type converted struct {
	pdf []byte
	err error
}

func (b *MarkupBackend) convert(ctx context.Context, compiled string, record map[string]any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.settings.ConvertTimeout)
	defer cancel()

	done := make(chan converted, 1)
	go func() {
		pdf, err := b.conv.Convert(ctx, compiled, record)
		done <- converted{pdf: pdf, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", docgen.ErrRenderTimeout, r.err)
			}
			return nil, r.err
		}
		return r.pdf, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.logger.Warn("conversion timed out", zap.Duration("budget", b.settings.ConvertTimeout))
			return nil, fmt.Errorf("%w: conversion exceeded %s", docgen.ErrRenderTimeout, b.settings.ConvertTimeout)
		}
		return nil, ctx.Err()
	}
}

var (
	_ RenderingBackend = (*OverlayBackend)(nil)
	_ RenderingBackend = (*MarkupBackend)(nil)
)
