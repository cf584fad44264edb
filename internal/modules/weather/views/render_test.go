package views

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadTemplates_success(t *testing.T) {
	err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if docsTmpl == nil {
		t.Fatal("LoadTemplates() left docsTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory; ParseFS finds no files.
	emptyFS := fstest.MapFS{}
	err := loadTemplatesFromFS(emptyFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/base.html": {Data: []byte("{{ .")},
	}
	err := loadTemplatesFromFS(badFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestRenderSwaggerUI_notLoaded(t *testing.T) {
	prev := docsTmpl
	docsTmpl = nil
	t.Cleanup(func() { docsTmpl = prev })

	var buf bytes.Buffer
	err := RenderSwaggerUI(&buf, SwaggerUIData{})
	if err == nil {
		t.Fatal("RenderSwaggerUI() = nil; want error when templates not loaded")
	}
	if !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
	}
}

func TestRenderSwaggerUI(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v", err)
	}

	var buf bytes.Buffer
	err := RenderSwaggerUI(&buf, SwaggerUIData{Title: "Weather records", SchemaURL: "/api/openapi/"})
	if err != nil {
		t.Fatalf("RenderSwaggerUI() = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<title>Weather records</title>") {
		t.Errorf("title missing from output:\n%s", out)
	}
	if !strings.Contains(out, "openapi") {
		t.Errorf("schema url missing from output:\n%s", out)
	}
}

func TestOpenAPISpec(t *testing.T) {
	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(OpenAPISpec(), &doc); err != nil {
		t.Fatalf("openapi.json is not valid JSON: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Error("openapi version missing")
	}
	for _, p := range []string{"/api/weather/", "/api/weather/stats/"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("path %s missing from OpenAPI document", p)
		}
	}
}
