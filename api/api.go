// Package api is the HTTP surface of the document generation service.
//
//	POST /api/v1/documents/generate             generate a PDF
//	GET  /api/v1/tenants/:tenant/templates      list a tenant's templates
//	GET  /api/v1/templates/:id                  one template
//	POST /api/v1/templates/:id/background       upload a background PDF
//	POST /api/v1/templates/:id/previews         regenerate layout previews
//	GET  /health
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/blob"
	"github.com/itakecare/leazr-docgen/generate"
	"github.com/itakecare/leazr-docgen/store"
)

// RetryAfterSeconds is advertised when a background document is unavailable.
const RetryAfterSeconds = "30"

// TenantHeader optionally scopes template routes to one tenant.
const TenantHeader = "X-Tenant-ID"

// Handler registers a group of routes.
type Handler interface {
	RegisterRoutes(router fiber.Router)
}

// BlobWriter stores uploaded backgrounds and rendered previews.
type BlobWriter interface {
	Store(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Generator     *generate.Generator
	Templates     store.TemplateStore
	Blobs         BlobWriter
	MaxUploadSize int64 // bytes
}

// Response is the JSON envelope of every non-PDF reply.
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data interface{}) *Response {
	return &Response{Code: http.StatusOK, Message: "success", Data: data}
}

// Fail builds the error envelope for err.
func Fail(status int, err error) *Response {
	r := &Response{Code: status, Message: err.Error()}
	if kind := docgen.KindOf(err); kind != docgen.KindInternal {
		r.Kind = kind
	}
	return r
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, docgen.ErrNoTemplateConfigured),
		errors.Is(err, docgen.ErrMarkupCompilation),
		errors.Is(err, docgen.ErrInvalidTemplate):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, docgen.ErrBackgroundUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, docgen.ErrRenderTimeout):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes the error envelope with its mapped status.
func fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, RetryAfterSeconds)
	}
	return c.Status(status).JSON(Fail(status, err))
}
