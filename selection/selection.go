// Package selection decides which stored template serves a generation
// request.
//
// Precedence:
//
//  1. an explicit template id owned by the tenant, regardless of flags
//  2. a markup template of the tenant: active default first, else first active
//  3. an overlay template of the requested category: active default first,
//     else first active
//
// Nothing matching is an error. There is no built-in fallback layout; a
// tenant that needs one stores it as an ordinary default template.
package selection

import (
	"context"
	"fmt"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/model"
)

// Source lists the templates owned by a tenant, in stored order.
type Source interface {
	TemplatesForTenant(ctx context.Context, tenantID string) ([]model.Template, error)
}

// Pick applies the selection precedence to templates, which must all belong
// to one tenant. It returns nil when nothing matches.
func Pick(templates []model.Template, category, explicitID string) *model.Template {
	if explicitID != "" {
		for i := range templates {
			if templates[i].ID == explicitID {
				return &templates[i]
			}
		}
		return nil
	}

	if t := preferred(templates, func(t *model.Template) bool {
		return t.Kind() == model.KindMarkup
	}); t != nil {
		return t
	}

	return preferred(templates, func(t *model.Template) bool {
		return t.Kind() == model.KindOverlay && t.Category == category
	})
}

// preferred returns the first active default template matching keep, else
// the first active one.
func preferred(templates []model.Template, keep func(*model.Template) bool) *model.Template {
	var firstActive *model.Template
	for i := range templates {
		t := &templates[i]
		if !t.IsActive || !keep(t) {
			continue
		}
		if t.IsDefault {
			return t
		}
		if firstActive == nil {
			firstActive = t
		}
	}
	return firstActive
}

// Select loads the tenant's templates from src and picks one. It fails with
// docgen.ErrNoTemplateConfigured when nothing matches.
func Select(ctx context.Context, src Source, tenantID, category, explicitID string) (*model.Template, error) {
	templates, err := src.TemplatesForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("selection: loading templates for tenant %q: %w", tenantID, err)
	}

	owned := templates[:0:0]
	for _, t := range templates {
		if t.TenantID == tenantID {
			owned = append(owned, t)
		}
	}

	t := Pick(owned, category, explicitID)
	if t == nil {
		if explicitID != "" {
			return nil, fmt.Errorf("%w: template %q not found for tenant %q", docgen.ErrNoTemplateConfigured, explicitID, tenantID)
		}
		return nil, fmt.Errorf("%w: tenant %q, category %q", docgen.ErrNoTemplateConfigured, tenantID, category)
	}
	return t, nil
}
