package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itakecare/leazr-docgen/resolve"
	"github.com/itakecare/leazr-docgen/store"
)

// RegisterResources adds the sample record and the template resources.
//
//	docgen://sample-record      synthetic preview record
//	templates://{tenant}        summaries of a tenant's templates
//	template://{tenant}/{id}    one template with its fields
func RegisterResources(s *Server, svc Services) {
	s.AddResource(Resource{
		URI:         "docgen://sample-record",
		Name:        "Sample record",
		Description: "The synthetic record used for previews and requests without data.",
		MIMEType:    "application/json",
		Handler: func(_ context.Context, uri string) ([]ResourceContent, error) {
			return jsonContent(uri, resolve.SampleRecord())
		},
	})

	s.AddResourceTemplate(ResourceTemplate{
		URITemplate: "templates://{tenant}",
		Name:        "Tenant templates",
		Description: "Summaries of every template owned by a tenant, in creation order.",
		MIMEType:    "application/json",
		Handler: func(ctx context.Context, uri string) ([]ResourceContent, error) {
			tenant := strings.TrimPrefix(uri, "templates://")
			if tenant == "" || strings.Contains(tenant, "/") {
				return nil, fmt.Errorf("invalid tenant in %q", uri)
			}
			list, err := svc.Templates.TemplatesForTenant(ctx, tenant)
			if err != nil {
				return nil, err
			}
			out := make([]templateSummary, len(list))
			for i := range list {
				out[i] = summarize(&list[i])
			}
			return jsonContent(uri, out)
		},
	})

	s.AddResourceTemplate(ResourceTemplate{
		URITemplate: "template://{tenant}/{id}",
		Name:        "Template",
		Description: "A template with its pages and fields.",
		MIMEType:    "application/json",
		Handler: func(ctx context.Context, uri string) ([]ResourceContent, error) {
			tenant, id, ok := strings.Cut(strings.TrimPrefix(uri, "template://"), "/")
			if !ok || tenant == "" || id == "" {
				return nil, fmt.Errorf("invalid template uri %q", uri)
			}
			t, err := svc.Templates.TemplateByID(ctx, id)
			if errors.Is(err, store.ErrNotFound) || (err == nil && t.TenantID != tenant) {
				return nil, fmt.Errorf("template %s not found for tenant %s", id, tenant)
			}
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, t)
		},
	})
}

func jsonContent(uri string, v interface{}) ([]ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return []ResourceContent{{URI: uri, MIMEType: "application/json", Text: string(data)}}, nil
}
