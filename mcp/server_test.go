package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/blob"
	"github.com/itakecare/leazr-docgen/generate"
	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/resolve"
	"github.com/itakecare/leazr-docgen/store"
)

type memBlobs map[string][]byte

func (m memBlobs) Fetch(_ context.Context, ref string) ([]byte, error) {
	if d, ok := m[ref]; ok {
		return d, nil
	}
	return nil, blob.ErrNotFound
}

func backgroundPDF(t *testing.T) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	pdf.AddPage()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("building background: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	server   *Server
	template *model.Template
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	templates := store.NewMemory()
	saved, err := templates.SaveTemplate(context.Background(), &model.Template{
		TenantID:   "acme",
		Name:       "Offre standard",
		Category:   "offer",
		Background: &model.Background{Ref: "offer.pdf"},
		Pages:      []model.Page{model.DefaultPage(1), model.DefaultPage(2)},
		Fields: []model.Field{{
			ID: "client", Type: model.FieldText, Label: "Client", DataPath: "client.name",
			Position: model.Position{X: 20, Y: 30, Page: 1}, IsVisible: true,
		}},
		IsActive:  true,
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("saving template: %v", err)
	}

	blobs := memBlobs{"offer.pdf": backgroundPDF(t)}
	settings := docgen.NewSettings(docgen.WithCompression(false))
	svc := Services{
		Generator: generate.New(templates, generate.NewOverlayBackend(blobs, settings, nil), nil, nil),
		Templates: templates,
		Blobs:     blobs,
		Formatter: resolve.NewFormatter("fr", "EUR"),
	}

	s := NewServerWithIO("leazr-docgen", "test", nil, nil, nil)
	RegisterTools(s, svc)
	RegisterResources(s, svc)
	return &fixture{server: s, template: saved}
}

func sendRequest(t *testing.T, s *Server, method string, id int, params interface{}) jsonrpcResponse {
	t.Helper()

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	reqBytes = append(reqBytes, '\n')

	var output bytes.Buffer
	s.input = bytes.NewReader(reqBytes)
	s.output = &output

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response %q: %v", output.String(), err)
	}
	return resp
}

// callTool invokes a tool and returns the decoded result.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) ToolResult {
	t.Helper()
	resp := sendRequest(t, s, "tools/call", 1, map[string]interface{}{"name": name, "arguments": args})
	if resp.Error != nil {
		t.Fatalf("%s: protocol error %v", name, resp.Error.Message)
	}
	data, _ := json.Marshal(resp.Result)
	var result ToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("%s: decoding result: %v", name, err)
	}
	return result
}

func TestServerInitialize(t *testing.T) {
	f := newFixture(t)

	resp := sendRequest(t, f.server, "initialize", 1, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "test", "version": "1.0"},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("result is not a map")
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Fatalf("unexpected protocol version: %v", result["protocolVersion"])
	}
	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("missing serverInfo")
	}
	if serverInfo["name"] != "leazr-docgen" {
		t.Fatalf("unexpected server name: %v", serverInfo["name"])
	}
}

func TestServerToolsList(t *testing.T) {
	f := newFixture(t)

	resp := sendRequest(t, f.server, "tools/list", 2, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	tools := resp.Result.(map[string]interface{})["tools"].([]interface{})

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	want := "analyze_background,generate_document,list_templates,resolve_field,sample_record,select_template"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("tools = %s, want %s", got, want)
	}
}

func TestServerResourcesList(t *testing.T) {
	f := newFixture(t)

	resp := sendRequest(t, f.server, "resources/list", 3, nil)
	resources := resp.Result.(map[string]interface{})["resources"].([]interface{})
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}

	resp = sendRequest(t, f.server, "resources/templates/list", 4, nil)
	templates := resp.Result.(map[string]interface{})["resourceTemplates"].([]interface{})
	if len(templates) != 2 {
		t.Fatalf("expected 2 resource templates, got %d", len(templates))
	}
}

func TestServerReadTemplateResource(t *testing.T) {
	f := newFixture(t)

	resp := sendRequest(t, f.server, "resources/read", 5, map[string]interface{}{
		"uri": "template://acme/" + f.template.ID,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	data, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(data), "client.name") {
		t.Fatalf("template fields missing: %s", data)
	}

	resp = sendRequest(t, f.server, "resources/read", 6, map[string]interface{}{
		"uri": "template://globex/" + f.template.ID,
	})
	if resp.Error == nil {
		t.Fatal("template of another tenant was readable")
	}

	resp = sendRequest(t, f.server, "resources/read", 7, map[string]interface{}{"uri": "templates://acme"})
	if resp.Error != nil || !strings.Contains(mustJSON(resp.Result), "Offre standard") {
		t.Fatalf("unexpected listing: %+v", resp)
	}
}

func TestServerPing(t *testing.T) {
	s := NewServerWithIO("leazr-docgen", "test", nil, nil, nil)
	if resp := sendRequest(t, s, "ping", 4, nil); resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s := NewServerWithIO("leazr-docgen", "test", nil, nil, nil)

	resp := sendRequest(t, s, "nonexistent/method", 5, nil)
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected error code %d, got %d", codeMethodNotFound, resp.Error.Code)
	}
}

func TestServerUnknownTool(t *testing.T) {
	f := newFixture(t)

	resp := sendRequest(t, f.server, "tools/call", 6, map[string]interface{}{
		"name":      "nonexistent_tool",
		"arguments": map[string]interface{}{},
	})
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestGenerateDocumentTool(t *testing.T) {
	f := newFixture(t)

	result := callTool(t, f.server, "generate_document", map[string]interface{}{
		"tenantId": "acme",
		"category": "offer",
		"record":   map[string]interface{}{"client": map[string]interface{}{"name": "Jean Dupont"}},
	})
	if result.IsError {
		t.Fatalf("tool failed: %+v", result)
	}
	if len(result.Content) != 2 {
		t.Fatalf("expected summary and document, got %d blocks", len(result.Content))
	}
	pdf, err := base64.StdEncoding.DecodeString(result.Content[1].Data)
	if err != nil {
		t.Fatalf("decoding pdf: %v", err)
	}
	if !bytes.Contains(pdf, []byte("(Jean Dupont) Tj")) {
		t.Fatal("field value not drawn")
	}
	if !strings.Contains(result.Content[0].Text, f.template.ID) {
		t.Errorf("summary does not name the template: %s", result.Content[0].Text)
	}
}

func TestGenerateDocumentToolReportsKind(t *testing.T) {
	f := newFixture(t)

	result := callTool(t, f.server, "generate_document", map[string]interface{}{
		"tenantId": "acme",
		"category": "contract",
	})
	if !result.IsError {
		t.Fatal("expected a tool error")
	}
	if !strings.Contains(result.Content[0].Text, docgen.KindNoTemplateConfigured) {
		t.Fatalf("error kind missing: %s", result.Content[0].Text)
	}
}

func TestSelectAndListTools(t *testing.T) {
	f := newFixture(t)

	selected := callTool(t, f.server, "select_template", map[string]interface{}{"tenantId": "acme", "category": "offer"})
	if selected.IsError || !strings.Contains(selected.Content[0].Text, f.template.ID) {
		t.Fatalf("unexpected selection: %+v", selected)
	}

	listed := callTool(t, f.server, "list_templates", map[string]interface{}{"tenantId": "acme"})
	var summaries []templateSummary
	if err := json.Unmarshal([]byte(listed.Content[0].Text), &summaries); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Kind != model.KindOverlay || summaries[0].Pages != 2 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	missing := callTool(t, f.server, "list_templates", map[string]interface{}{})
	if !missing.IsError {
		t.Fatal("expected an error without tenantId")
	}
}

func TestAnalyzeBackgroundTool(t *testing.T) {
	f := newFixture(t)

	result := callTool(t, f.server, "analyze_background", map[string]interface{}{"ref": "offer.pdf"})
	if result.IsError {
		t.Fatalf("tool failed: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, `"pageCount": 2`) {
		t.Fatalf("unexpected analysis: %s", result.Content[0].Text)
	}

	if result := callTool(t, f.server, "analyze_background", map[string]interface{}{}); !result.IsError {
		t.Fatal("expected an error without path or ref")
	}
}

func TestResolveFieldTool(t *testing.T) {
	f := newFixture(t)
	field := map[string]interface{}{
		"type": "text", "label": "Client", "dataPath": "client.phone", "isVisible": true,
	}

	tests := []struct {
		name    string
		record  map[string]interface{}
		preview bool
		want    string
	}{
		{"value", map[string]interface{}{"client": map[string]interface{}{"phone": "01 23"}}, false, `"value": "01 23"`},
		{"hidden", map[string]interface{}{}, false, `"hidden": true`},
		{"placeholder", map[string]interface{}{}, true, `"value": "[Client]"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, f.server, "resolve_field", map[string]interface{}{
				"field": field, "record": tt.record, "preview": tt.preview,
			})
			if result.IsError || !strings.Contains(result.Content[0].Text, tt.want) {
				t.Fatalf("got %+v, want %s", result, tt.want)
			}
		})
	}
}

func TestServerMultipleRequests(t *testing.T) {
	requests := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"sample_record","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"ping"}`,
	}

	f := newFixture(t)
	var output bytes.Buffer
	f.server.input = strings.NewReader(strings.Join(requests, "\n") + "\n")
	f.server.output = &output
	if err := f.server.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 responses, got %d: %s", len(lines), output.String())
	}
	for i, line := range lines {
		var resp jsonrpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d: unmarshal error: %v\nline: %s", i, err, line)
		}
		if resp.Error != nil {
			t.Errorf("response %d: unexpected error: %s", i, resp.Error.Message)
		}
	}
}

func TestServerParseError(t *testing.T) {
	var output bytes.Buffer
	s := NewServerWithIO("leazr-docgen", "test", strings.NewReader("{not json\n"), &output, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp)
	}
}

func TestServerAddTool(t *testing.T) {
	s := NewServerWithIO("leazr-docgen", "test", nil, nil, nil)
	s.AddTool(Tool{
		Name:        "custom_tool",
		Description: "A custom test tool",
		InputSchema: object(map[string]interface{}{}),
		Handler: func(context.Context, map[string]interface{}) (ToolResult, error) {
			return textResult("custom result"), nil
		},
	})

	resp := sendRequest(t, s, "tools/call", 1, map[string]interface{}{"name": "custom_tool"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	if !strings.Contains(mustJSON(resp.Result), "custom result") {
		t.Fatalf("unexpected result: %s", mustJSON(resp.Result))
	}
}

func mustJSON(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}
