package handlers

import (
	"html/template"
	"net/http"
)

const swaggerUIVersion = "5.10.0"

var swaggerTemplate = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui.css">
  <style>body { margin: 0; }</style>
</head>
<body>
  <div id="catalog-docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-bundle.js"></script>
  <script>
    window.onload = () => {
      window.ui = SwaggerUIBundle({
        url: "{{.SpecURL}}",
        dom_id: "#catalog-docs",
        deepLinking: true,
        docExpansion: "list",
        defaultModelsExpandDepth: 0,
        presets: [SwaggerUIBundle.presets.apis],
      });
    };
  </script>
</body>
</html>`))

type swaggerPage struct {
	Title   string
	Version string
	SpecURL string
}

// SwaggerUI serves the interactive page for the OpenAPI document
func SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	swaggerTemplate.Execute(w, swaggerPage{
		Title:   "Aquarius Catalog API",
		Version: swaggerUIVersion,
		SpecURL: "/api/docs/openapi.json",
	})
}
