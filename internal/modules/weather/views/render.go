package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates/*.html
var viewsFS embed.FS

//go:embed openapi.json
var openAPISpec []byte

var docsTmpl *template.Template

// loadTemplatesFromFS loads the documentation templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	docsTmpl, err = template.ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// OpenAPISpec returns the OpenAPI document of the read API.
func OpenAPISpec() []byte {
	return openAPISpec
}

type SwaggerUIData struct {
	Title     string
	SchemaURL string
}

func RenderSwaggerUI(w io.Writer, data SwaggerUIData) error {
	if docsTmpl == nil {
		return errors.New("swagger-ui template not loaded: call views.LoadTemplates during startup")
	}
	return docsTmpl.ExecuteTemplate(w, "swagger-ui.html", data)
}
