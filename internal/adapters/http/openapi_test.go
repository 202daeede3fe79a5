package http_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// loadServedSpec fetches the OpenAPI document the way a client would.
func loadServedSpec(t *testing.T) *openapi3.T {
	t.Helper()
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the OpenAPI document and checks it covers every route.
func TestOpenAPISpec(t *testing.T) {
	spec := loadServedSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/pings",
		"/v1/density",
		"/v1/density/at",
		"/v1/density/{cell}",
		"/v1/geohash/encode",
		"/v1/geohash/decode/{cell}",
		"/v1/users/{id}/path",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"APIError",
		"LocationPing",
		"Density",
		"Cell",
		"UserPath",
		"PathPoint",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadServedSpec(t)

	if spec.Info.Title != "Murmur API" {
		t.Errorf("expected title 'Murmur API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}
}

// TestOpenAPIJSON checks the JSON rendering matches the YAML source.
func TestOpenAPIJSON(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)

	spec, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse JSON document: %v", err)
	}
	if spec.Paths.Find("/v1/density/{cell}") == nil {
		t.Error("expected /v1/density/{cell} in JSON document")
	}
}
