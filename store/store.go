// Package store persists templates and their fields.
//
// Two implementations are provided: Gorm, backed by any SQL database gorm
// supports (sqlite, postgres and mysql are wired), and Memory for tests and
// single-process tools.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/itakecare/leazr-docgen/model"
)

// ErrNotFound is returned when a template id is unknown.
var ErrNotFound = errors.New("store: template not found")

// TemplateStore is the persistence collaborator of the generation core.
// Templates are returned in creation order.
type TemplateStore interface {
	TemplatesForTenant(ctx context.Context, tenantID string) ([]model.Template, error)
	TemplateByID(ctx context.Context, id string) (*model.Template, error)
	// SaveTemplate validates, normalizes and stores t, assigning ids and
	// timestamps when missing. It returns the stored copy.
	SaveTemplate(ctx context.Context, t *model.Template) (*model.Template, error)
	// DeleteTemplate removes the template and all of its fields.
	DeleteTemplate(ctx context.Context, id string) error
}

// prepare assigns ids and timestamps and clamps field positions to their
// pages before a template is written.
func prepare(t *model.Template, now time.Time) (*model.Template, error) {
	c := t.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	for i := range c.Fields {
		f := &c.Fields[i]
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if p, ok := c.Page(f.Position.Page); ok {
			f.Position = p.Clamp(f.Position)
		}
	}
	if c.Metadata.PageCount == 0 && len(c.Pages) > 0 {
		c.Metadata.PageCount = len(c.Pages)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
