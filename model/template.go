// Package model describes document templates: the pages of an uploaded
// background, the typed fields positioned on them, and the markup source of
// HTML templates.
//
// Positions and field sizes are stored in millimetres; page dimensions are
// stored in PDF points, the unit the background analysis reports.
//
// Example JSON:
//
//	{
//	  "id": "4b0c...",
//	  "tenantId": "acme",
//	  "name": "Offre standard",
//	  "category": "offer",
//	  "background": {"ref": "backgrounds/acme/offer.pdf"},
//	  "pages": [{"number": 1, "width": 595.28, "height": 841.89}],
//	  "fields": [{
//	    "id": "f1", "type": "text", "label": "Client",
//	    "dataPath": "client.name",
//	    "position": {"x": 20, "y": 40, "page": 1},
//	    "style": {"fontSize": 11, "fontFamily": "Helvetica", "color": "#1A1A1A"},
//	    "isVisible": true
//	  }],
//	  "isActive": true,
//	  "isDefault": true
//	}
package model

import (
	"fmt"
	"time"

	docgen "github.com/itakecare/leazr-docgen"
)

// Kind distinguishes the two rendering backends a template can target.
type Kind string

const (
	KindUnknown Kind = ""
	KindOverlay Kind = "overlay"
	KindMarkup  Kind = "markup"
)

// Template is the structural description of a document layout.
type Template struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenantId"`
	Name       string      `json:"name"`
	Category   string      `json:"category,omitempty"` // e.g. "offer", "contract"
	Background *Background `json:"background,omitempty"`
	Markup     string      `json:"markup,omitempty"` // HTML template source
	Pages      []Page      `json:"pages,omitempty"`
	Fields     []Field     `json:"fields,omitempty"`
	Metadata   Metadata    `json:"metadata"`
	IsActive   bool        `json:"isActive"`
	IsDefault  bool        `json:"isDefault"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Background references the uploaded document the overlay draws on.
type Background struct {
	Ref         string `json:"ref"` // blob key or http(s) URL
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Metadata is free-form information gathered when the background is analyzed.
type Metadata struct {
	PageCount int               `json:"pageCount,omitempty"`
	FileType  string            `json:"fileType,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Kind reports which backend renders the template. Markup wins when both a
// markup source and a background are present.
func (t *Template) Kind() Kind {
	switch {
	case t.Markup != "":
		return KindMarkup
	case t.Background != nil && t.Background.Ref != "":
		return KindOverlay
	default:
		return KindUnknown
	}
}

// Page returns the page with the given 1-based number.
func (t *Template) Page(number int) (Page, bool) {
	for _, p := range t.Pages {
		if p.Number == number {
			return p, true
		}
	}
	return Page{}, false
}

// FieldsOnPage returns the fields placed on page n, in stored order.
func (t *Template) FieldsOnPage(n int) []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.Position.Page == n {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the field with the given id.
func (t *Template) Field(id string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of the template: a renderable
// source exists, field types are known, and every field sits on an existing
// page. Overlay templates without analyzed pages are not checked for page
// references.
func (t *Template) Validate() error {
	if t.TenantID == "" {
		return fmt.Errorf("%w: tenant id required", docgen.ErrInvalidTemplate)
	}
	if t.Kind() == KindUnknown {
		return fmt.Errorf("%w: template %q has neither markup nor background", docgen.ErrInvalidTemplate, t.ID)
	}

	seen := make(map[int]bool, len(t.Pages))
	for _, p := range t.Pages {
		if p.Number < 1 {
			return fmt.Errorf("%w: page number %d", docgen.ErrInvalidTemplate, p.Number)
		}
		if seen[p.Number] {
			return fmt.Errorf("%w: duplicate page %d", docgen.ErrInvalidTemplate, p.Number)
		}
		seen[p.Number] = true
	}

	ids := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.ID != "" {
			if ids[f.ID] {
				return fmt.Errorf("%w: duplicate field id %q", docgen.ErrInvalidTemplate, f.ID)
			}
			ids[f.ID] = true
		}
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unknown type %q", docgen.ErrInvalidTemplate, f.ID, f.Type)
		}
		if len(t.Pages) > 0 && !seen[f.Position.Page] {
			return fmt.Errorf("%w: field %q references missing page %d", docgen.ErrInvalidTemplate, f.ID, f.Position.Page)
		}
	}
	return nil
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	c := *t
	if t.Background != nil {
		bg := *t.Background
		c.Background = &bg
	}
	c.Pages = append([]Page(nil), t.Pages...)
	c.Fields = make([]Field, len(t.Fields))
	for i, f := range t.Fields {
		c.Fields[i] = f.Clone()
	}
	if t.Metadata.Extra != nil {
		c.Metadata.Extra = make(map[string]string, len(t.Metadata.Extra))
		for k, v := range t.Metadata.Extra {
			c.Metadata.Extra[k] = v
		}
	}
	return &c
}
