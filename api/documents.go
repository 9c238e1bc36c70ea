package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itakecare/leazr-docgen/generate"
)

// DocumentHandler serves document generation.
type DocumentHandler struct {
	generator *generate.Generator
}

// RegisterRoutes mounts the generation route on router.
func (h *DocumentHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/documents/generate", h.Generate)
}

// Generate renders the document for a JSON generate.Request and replies with
// the PDF. The X-Template-ID, X-Document-Preview and X-Skipped-Fields
// headers describe how it was produced.
func (h *DocumentHandler) Generate(c *fiber.Ctx) error {
	var req generate.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Fail(fiber.StatusBadRequest, err))
	}

	doc, err := h.generator.Generate(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	c.Set("X-Template-ID", doc.TemplateID)
	c.Set("X-Document-Preview", strconv.FormatBool(doc.Preview))
	if len(doc.Skipped) > 0 {
		c.Set("X-Skipped-Fields", strings.Join(doc.Skipped, ","))
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+doc.TemplateID+`.pdf"`)
	return c.Send(doc.PDF)
}
