package http

import (
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

//go:embed openapi.yaml
var openAPISpec []byte

var (
	openAPIJSONOnce sync.Once
	openAPIJSON     []byte
	openAPIJSONErr  error
)

// openAPIDocumentJSON parses the embedded document once and renders it as JSON.
func openAPIDocumentJSON() ([]byte, error) {
	openAPIJSONOnce.Do(func() {
		doc, err := openapi3.NewLoader().LoadFromData(openAPISpec)
		if err != nil {
			openAPIJSONErr = err
			return
		}
		openAPIJSON, openAPIJSONErr = json.Marshal(doc)
	})
	return openAPIJSON, openAPIJSONErr
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Murmur API · Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      tryItOutEnabled: true,
      requestInterceptor: function (req) {
        var user = window.localStorage.getItem('murmur-user');
        if (user && !req.headers['X-Murmur-User']) req.headers['X-Murmur-User'] = user;
        return req;
      },
    });
  </script>
</body>
</html>`

// SetupDocs serves Swagger UI at /docs and the OpenAPI document as YAML and JSON.
func SetupDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "application/yaml")
		return c.Send(openAPISpec)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		data, err := openAPIDocumentJSON()
		if err != nil {
			return errInternal(c, "openapi document unavailable")
		}
		c.Set("Content-Type", fiber.MIMEApplicationJSON)
		return c.Send(data)
	})
}
