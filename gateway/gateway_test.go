package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func createTestSchema(path, content string) error {
	if err := os.MkdirAll("testdata", 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func cleanupTestSchema(path string) {
	os.Remove(path)
}

func TestGateway_ValidateAccessibility(t *testing.T) {
	settings := GatewayOption{
		Endpoint:    "/graphql",
		ServiceName: "test-gateway",
		Port:        8080,
		Services: []GatewayService{
			{
				Name: "product",
				Host: "http://product.example.com",
				SchemaFiles: []string{
					"testdata/product-with-inaccessible.graphql",
				},
			},
		},
	}

	schema := `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
			internalCode: String! @inaccessible
		}

		type Query {
			product(id: ID!): Product
		}
	`

	if err := createTestSchema("testdata/product-with-inaccessible.graphql", schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	defer cleanupTestSchema("testdata/product-with-inaccessible.graphql")

	gw, err := NewGateway(settings)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	t.Run("query inaccessible field should fail", func(t *testing.T) {
		query := `{ product(id: "1") { id internalCode } }`
		req := graphQLRequest{Query: query}
		body, _ := json.Marshal(req)
		httpReq := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
		w := httptest.NewRecorder()
		gw.ServeHTTP(w, httpReq)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status OK, got %d", w.Code)
		}

		var resp map[string]any
		json.NewDecoder(w.Body).Decode(&resp)
		errors, ok := resp["errors"].([]any)
		if !ok || len(errors) == 0 {
			t.Fatal("Expected errors in response")
		}

		errMap := errors[0].(map[string]any)
		message := errMap["message"].(string)
		if message != `Cannot query field "internalCode" on type "Product"` {
			t.Errorf("Expected inaccessible error message, got: %s", message)
		}

		ext := errMap["extensions"].(map[string]any)
		code := ext["code"].(string)
		if code != "INACCESSIBLE_FIELD" {
			t.Errorf("Expected error code INACCESSIBLE_FIELD, got: %s", code)
		}
	})

	t.Run("query accessible field should succeed", func(t *testing.T) {
		query := `{ product(id: "1") { id name } }`
		req := graphQLRequest{Query: query}
		body, _ := json.Marshal(req)
		httpReq := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
		w := httptest.NewRecorder()
		gw.ServeHTTP(w, httpReq)

		if w.Code != http.StatusOK {
			var resp map[string]any
			json.NewDecoder(w.Body).Decode(&resp)
			if errors, ok := resp["errors"].([]any); ok {
				for _, e := range errors {
					if errMap, ok := e.(map[string]any); ok {
						if ext, ok := errMap["extensions"].(map[string]any); ok {
							if code, ok := ext["code"].(string); ok && code == "INACCESSIBLE_FIELD" {
								t.Error("Expected no INACCESSIBLE_FIELD error")
							}
						}
					}
				}
			}
		}
	})
}

func TestGateway_SchemaRegistrationReload(t *testing.T) {
	schema := `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}

		type Query {
			product(id: ID!): Product
		}
	`
	if err := createTestSchema("testdata/product-reload.graphql", schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	defer cleanupTestSchema("testdata/product-reload.graphql")

	gw, err := NewGateway(GatewayOption{
		Services: []GatewayService{
			{Name: "product", Host: "http://product.example.com", SchemaFiles: []string{"testdata/product-reload.graphql"}},
		},
	})
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	before := gw.currentStore()
	if _, ok := before.sdls["reviews"]; ok {
		t.Fatal("reviews subgraph should not be registered yet")
	}

	reqBody, _ := json.Marshal(map[string]any{
		"registration_graphs": []RegistrationGraph{
			{Name: "reviews", Host: "http://reviews.example.com", SDL: `
				type Review {
					id: ID!
					body: String!
				}
				type Query {
					review(id: ID!): Review
				}
			`},
		},
	})

	httpReq := httptest.NewRequest(http.MethodPost, "/schema/registration", bytes.NewReader(reqBody))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httpReq)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from registration, got %d: %s", w.Code, w.Body.String())
	}

	after := gw.currentStore()
	if _, ok := after.sdls["reviews"]; !ok {
		t.Fatal("expected reviews subgraph to be registered after reload")
	}
	if _, ok := after.sdls["product"]; !ok {
		t.Fatal("expected existing product subgraph to survive reload")
	}
	if before.engine == after.engine {
		t.Fatal("expected engine to be swapped on reload")
	}
}
