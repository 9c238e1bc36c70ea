package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/blob"
	"github.com/itakecare/leazr-docgen/generate"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/overlay"
	"github.com/itakecare/leazr-docgen/resolve"
	"github.com/itakecare/leazr-docgen/selection"
	"github.com/itakecare/leazr-docgen/store"
)

// Services are the collaborators the tools and resources call into.
type Services struct {
	Generator *generate.Generator
	Templates store.TemplateStore
	Blobs     blob.Store
	Formatter *resolve.Formatter
}

// RegisterTools adds the document generation tools to s.
func RegisterTools(s *Server, svc Services) {
	s.AddTool(generateDocumentTool(svc))
	s.AddTool(selectTemplateTool(svc))
	s.AddTool(listTemplatesTool(svc))
	s.AddTool(analyzeBackgroundTool(svc))
	s.AddTool(resolveFieldTool(svc))
	s.AddTool(sampleRecordTool())
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func generateDocumentTool(svc Services) Tool {
	return Tool{
		Name: "generate_document",
		Description: "Generate a PDF for a tenant from its configured template. Without a record the " +
			"template is rendered against sample data with a specimen watermark. Returns the PDF as base64 " +
			"or writes it to outputPath.",
		InputSchema: object(map[string]interface{}{
			"tenantId":   prop("string", "Tenant owning the templates"),
			"category":   prop("string", "Document category, e.g. offer or contract"),
			"templateId": prop("string", "Explicit template id; overrides the selection policy"),
			"record":     prop("object", "Data record (client, offer, amounts, equipment, ...)"),
			"outputPath": prop("string", "Optional file path to save the PDF"),
		}, "tenantId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
			tenant, err := requiredString(args, "tenantId")
			if err != nil {
				return ToolResult{}, err
			}
			record, err := optionalObject(args, "record")
			if err != nil {
				return ToolResult{}, err
			}

			doc, err := svc.Generator.Generate(ctx, generate.Request{
				TenantID:   tenant,
				Category:   stringArg(args, "category"),
				TemplateID: stringArg(args, "templateId"),
				Record:     record,
			})
			if err != nil {
				return ToolResult{}, fmt.Errorf("%s: %w", docgen.KindOf(err), err)
			}

			summary := fmt.Sprintf("Document generated from template %s (%s, %d bytes, preview=%t, skipped fields=%d)",
				doc.TemplateID, doc.Kind, len(doc.PDF), doc.Preview, len(doc.Skipped))
			if path := stringArg(args, "outputPath"); path != "" {
				if err := os.WriteFile(path, doc.PDF, 0644); err != nil {
					return ToolResult{}, fmt.Errorf("writing file: %w", err)
				}
				return textResult(summary + ": " + path), nil
			}
			return ToolResult{Content: []ContentBlock{
				{Type: "text", Text: summary},
				{Type: "resource", MIMEType: "application/pdf", Data: base64.StdEncoding.EncodeToString(doc.PDF)},
			}}, nil
		},
	}
}

func selectTemplateTool(svc Services) Tool {
	return Tool{
		Name:        "select_template",
		Description: "Show which template would serve a generation request, applying the selection precedence.",
		InputSchema: object(map[string]interface{}{
			"tenantId":   prop("string", "Tenant owning the templates"),
			"category":   prop("string", "Document category"),
			"templateId": prop("string", "Explicit template id"),
		}, "tenantId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
			tenant, err := requiredString(args, "tenantId")
			if err != nil {
				return ToolResult{}, err
			}
			t, err := selection.Select(ctx, svc.Templates, tenant, stringArg(args, "category"), stringArg(args, "templateId"))
			if err != nil {
				return ToolResult{}, fmt.Errorf("%s: %w", docgen.KindOf(err), err)
			}
			return jsonResult(summarize(t))
		},
	}
}

func listTemplatesTool(svc Services) Tool {
	return Tool{
		Name:        "list_templates",
		Description: "List a tenant's templates in creation order.",
		InputSchema: object(map[string]interface{}{
			"tenantId": prop("string", "Tenant owning the templates"),
		}, "tenantId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
			tenant, err := requiredString(args, "tenantId")
			if err != nil {
				return ToolResult{}, err
			}
			list, err := svc.Templates.TemplatesForTenant(ctx, tenant)
			if err != nil {
				return ToolResult{}, err
			}
			out := make([]templateSummary, len(list))
			for i := range list {
				out[i] = summarize(&list[i])
			}
			return jsonResult(out)
		},
	}
}

func analyzeBackgroundTool(svc Services) Tool {
	return Tool{
		Name:        "analyze_background",
		Description: "Report the page count and page sizes of a background PDF, from a local path or a blob reference.",
		InputSchema: object(map[string]interface{}{
			"path": prop("string", "Local path of the PDF"),
			"ref":  prop("string", "Blob key or http(s) URL of the PDF"),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
			var data []byte
			var err error
			switch path, ref := stringArg(args, "path"), stringArg(args, "ref"); {
			case path != "":
				data, err = os.ReadFile(path)
			case ref != "" && svc.Blobs != nil:
				data, err = svc.Blobs.Fetch(ctx, ref)
			default:
				return ToolResult{}, fmt.Errorf("one of 'path' or 'ref' is required")
			}
			if err != nil {
				return ToolResult{}, fmt.Errorf("loading background: %w", err)
			}

			pages, err := overlay.Analyze(data)
			if err != nil {
				return ToolResult{}, err
			}
			type pageInfo struct {
				model.Page
				WidthMm  float64 `json:"widthMm"`
				HeightMm float64 `json:"heightMm"`
			}
			info := make([]pageInfo, len(pages))
			for i, p := range pages {
				info[i] = pageInfo{Page: p, WidthMm: p.WidthMm(), HeightMm: p.HeightMm()}
			}
			return jsonResult(map[string]interface{}{"pageCount": len(pages), "pages": info})
		},
	}
}

func resolveFieldTool(svc Services) Tool {
	return Tool{
		Name:        "resolve_field",
		Description: "Compute the value a field would display for a record, or report that it is hidden.",
		InputSchema: object(map[string]interface{}{
			"field":   prop("object", "Field definition (type, label, dataPath, format, isVisible)"),
			"record":  prop("object", "Data record; the sample record when omitted"),
			"preview": prop("boolean", "Show [Label] placeholders for missing values"),
		}, "field"),
		Handler: func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
			raw, ok := args["field"]
			if !ok {
				return ToolResult{}, fmt.Errorf("missing 'field' argument")
			}
			var field model.Field
			if err := remarshal(raw, &field); err != nil {
				return ToolResult{}, fmt.Errorf("decoding field: %w", err)
			}
			if !field.Type.Valid() {
				return ToolResult{}, fmt.Errorf("%w: unknown field type %q", docgen.ErrInvalidTemplate, field.Type)
			}

			record, err := optionalObject(args, "record")
			if err != nil {
				return ToolResult{}, err
			}
			if record == nil {
				record = resolve.SampleRecord()
			}
			preview, _ := args["preview"].(bool)

			r := resolve.New(svc.Formatter, preview).Resolve(field, record)
			return jsonResult(map[string]interface{}{"hidden": r.Hidden, "value": r.Value})
		},
	}
}

func sampleRecordTool() Tool {
	return Tool{
		Name:        "sample_record",
		Description: "Return the synthetic record used for previews.",
		InputSchema: object(map[string]interface{}{}),
		Handler: func(context.Context, map[string]interface{}) (ToolResult, error) {
			return jsonResult(resolve.SampleRecord())
		},
	}
}

type templateSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Category  string     `json:"category,omitempty"`
	Kind      model.Kind `json:"kind"`
	Fields    int        `json:"fields"`
	Pages     int        `json:"pages"`
	IsActive  bool       `json:"isActive"`
	IsDefault bool       `json:"isDefault"`
}

func summarize(t *model.Template) templateSummary {
	return templateSummary{
		ID:        t.ID,
		Name:      t.Name,
		Category:  t.Category,
		Kind:      t.Kind(),
		Fields:    len(t.Fields),
		Pages:     len(t.Pages),
		IsActive:  t.IsActive,
		IsDefault: t.IsDefault,
	}
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func jsonResult(v interface{}) (ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ToolResult{}, fmt.Errorf("encoding result: %w", err)
	}
	return textResult(string(data)), nil
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func requiredString(args map[string]interface{}, key string) (string, error) {
	s := stringArg(args, key)
	if s == "" {
		return "", fmt.Errorf("missing '%s' argument", key)
	}
	return s, nil
}

func optionalObject(args map[string]interface{}, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("'%s' must be an object", key)
	}
	return m, nil
}

func remarshal(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
