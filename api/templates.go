package api

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/editor"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/overlay"
	"github.com/itakecare/leazr-docgen/store"
)

// TemplateHandler serves template listing, background upload and layout
// previews.
type TemplateHandler struct {
	templates store.TemplateStore
	blobs     BlobWriter
	maxUpload int64
	logger    *zap.Logger
}

// RegisterRoutes mounts the template routes on router.
func (h *TemplateHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/tenants/:tenant/templates", h.List)
	router.Get("/templates/:id", h.Get)
	router.Post("/templates/:id/background", h.UploadBackground)
	router.Post("/templates/:id/previews", h.RegeneratePreviews)
}

// List returns the templates of the tenant in the path, oldest first.
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	list, err := h.templates.TemplatesForTenant(c.UserContext(), c.Params("tenant"))
	if err != nil {
		return fail(c, err)
	}
	if list == nil {
		list = []model.Template{}
	}
	return c.JSON(OK(list))
}

// Get returns one template with its pages and fields.
func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	t, err := h.load(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(OK(t))
}

// UploadBackground replaces the template's background with the PDF sent in
// the "file" form field and records its analyzed pages. Fields keep their
// positions; the upload is refused when a field would sit on a page the new
// document does not have.
func (h *TemplateHandler) UploadBackground(c *fiber.Ctx) error {
	t, err := h.load(c)
	if err != nil {
		return fail(c, err)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Fail(fiber.StatusBadRequest, fmt.Errorf("file field required: %w", err)))
	}
	if fh.Size > h.maxUpload {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(Fail(fiber.StatusRequestEntityTooLarge,
			fmt.Errorf("file of %d bytes exceeds the %d byte limit", fh.Size, h.maxUpload)))
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return fail(c, err)
	}
	if int64(len(data)) > h.maxUpload {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(Fail(fiber.StatusRequestEntityTooLarge,
			fmt.Errorf("file exceeds the %d byte limit", h.maxUpload)))
	}

	pages, err := overlay.Analyze(data)
	if err != nil {
		return fail(c, fmt.Errorf("%w: %v", docgen.ErrInvalidTemplate, err))
	}

	ctx := c.UserContext()
	key := fmt.Sprintf("backgrounds/%s/%s/%s.pdf", t.TenantID, t.ID, uuid.NewString())
	if err := h.blobs.Store(ctx, key, data); err != nil {
		return fail(c, err)
	}

	previous := t.Background
	t.Background = &model.Background{Ref: key, FileName: fh.Filename, ContentType: "application/pdf"}
	t.Pages = pages
	t.Metadata.PageCount = len(pages)
	t.Metadata.FileType = "pdf"

	saved, err := h.templates.SaveTemplate(ctx, t)
	if err != nil {
		if derr := h.blobs.Delete(ctx, key); derr != nil {
			h.logger.Warn("orphaned background", zap.String("key", key), zap.Error(derr))
		}
		return fail(c, err)
	}

	h.logger.Info("background uploaded",
		zap.String("template_id", saved.ID),
		zap.String("key", key),
		zap.Int("pages", len(pages)),
		zap.Int("bytes", len(data)))
	if previous != nil && previous.Ref != "" && previous.Ref != key {
		if err := h.blobs.Delete(ctx, previous.Ref); err != nil {
			h.logger.Debug("previous background not removed", zap.String("key", previous.Ref), zap.Error(err))
		}
	}
	return c.JSON(OK(saved))
}

type preview struct {
	Page  int    `json:"page"`
	Key   string `json:"key"`
	Bytes int    `json:"bytes"`
}

// RegeneratePreviews renders a PNG layout preview of every page, at the zoom
// given by the scale query parameter, stores it next to the background and
// records its key as the page's preview reference.
func (h *TemplateHandler) RegeneratePreviews(c *fiber.Ctx) error {
	t, err := h.load(c)
	if err != nil {
		return fail(c, err)
	}
	if len(t.Pages) == 0 {
		return fail(c, fmt.Errorf("%w: template %s has no analyzed pages", docgen.ErrInvalidTemplate, t.ID))
	}

	scale := c.QueryFloat("scale", 1)
	ctx := c.UserContext()
	out := make([]preview, 0, len(t.Pages))
	for i, p := range t.Pages {
		png, err := editor.RenderLayoutPreview(p, t.FieldsOnPage(p.Number), scale)
		if err != nil {
			return fail(c, fmt.Errorf("%w: %v", docgen.ErrInvalidTemplate, err))
		}
		key := fmt.Sprintf("previews/%s/%s/page-%d.png", t.TenantID, t.ID, p.Number)
		if err := h.blobs.Store(ctx, key, png); err != nil {
			return fail(c, err)
		}
		t.Pages[i].PreviewRef = key
		out = append(out, preview{Page: p.Number, Key: key, Bytes: len(png)})
	}

	saved, err := h.templates.SaveTemplate(ctx, t)
	if err != nil {
		return fail(c, err)
	}
	h.logger.Info("previews regenerated",
		zap.String("template_id", saved.ID),
		zap.Int("pages", len(out)))
	return c.JSON(OK(out))
}

// load fetches the template named by the id parameter, honouring the tenant
// header when present.
func (h *TemplateHandler) load(c *fiber.Ctx) (*model.Template, error) {
	t, err := h.templates.TemplateByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if tenant := c.Get(TenantHeader); tenant != "" && tenant != t.TenantID {
		return nil, fmt.Errorf("%w: template %s not owned by %s", store.ErrNotFound, t.ID, tenant)
	}
	return t, nil
}
