package executor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/n9te9/go-graphql-federation-gateway/federation/executor"
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/go-graphql-federation-gateway/federation/plan"
)

func mustSubGraph(t *testing.T, name, sdl, host string) *graph.SubGraph {
	t.Helper()
	sg, err := graph.NewSubGraph(name, []byte(sdl), host)
	if err != nil {
		t.Fatalf("NewSubGraph(%s): %v", name, err)
	}
	return sg
}

func mustSuperGraph(t *testing.T, subGraphs ...*graph.SubGraph) *graph.SuperGraph {
	t.Helper()
	sg, err := graph.NewSuperGraph(subGraphs)
	if err != nil {
		t.Fatalf("NewSuperGraph: %v", err)
	}
	return sg
}

func jsonHandler(t *testing.T, response map[string]interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

func TestExecutor_SingleRootFetch(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, map[string]interface{}{
		"data": map[string]interface{}{
			"product": map[string]interface{}{
				"id":   "1",
				"name": "Product 1",
			},
		},
	}))
	defer server.Close()

	products := mustSubGraph(t, "products", `
		type Query { product: Product }
		type Product { id: ID! name: String! }
	`, server.URL)
	sg := mustSuperGraph(t, products)

	qp := &plan.QueryPlan{
		Node: &plan.Fetch{
			ServiceName: "products",
			Operation:   `query { product { id name } }`,
		},
	}

	exec := executor.NewExecutor(http.DefaultClient, sg)
	result, err := exec.Execute(context.Background(), qp, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data map, got %T", result["data"])
	}
	product, ok := data["product"].(map[string]interface{})
	if !ok || product["id"] != "1" || product["name"] != "Product 1" {
		t.Errorf("unexpected product: %+v", data["product"])
	}
	if _, hasErrors := result["errors"]; hasErrors {
		t.Errorf("unexpected errors: %v", result["errors"])
	}
}

func TestExecutor_Parallel(t *testing.T) {
	productsServer := httptest.NewServer(jsonHandler(t, map[string]interface{}{
		"data": map[string]interface{}{"product": map[string]interface{}{"id": "1"}},
	}))
	defer productsServer.Close()
	usersServer := httptest.NewServer(jsonHandler(t, map[string]interface{}{
		"data": map[string]interface{}{"user": map[string]interface{}{"id": "10"}},
	}))
	defer usersServer.Close()

	products := mustSubGraph(t, "products", `type Query { product: Product } type Product { id: ID! }`, productsServer.URL)
	users := mustSubGraph(t, "users", `type Query { user: User } type User { id: ID! }`, usersServer.URL)
	sg := mustSuperGraph(t, products, users)

	qp := &plan.QueryPlan{
		Node: &plan.Parallel{
			Nodes: []plan.Node{
				&plan.Fetch{ServiceName: "products", Operation: `query { product { id } }`},
				&plan.Fetch{ServiceName: "users", Operation: `query { user { id } }`},
			},
		},
	}

	exec := executor.NewExecutor(http.DefaultClient, sg)
	result, err := exec.Execute(context.Background(), qp, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data := result["data"].(map[string]interface{})
	if data["product"] == nil || data["user"] == nil {
		t.Errorf("expected both product and user in merged result, got %+v", data)
	}
}

func TestExecutor_EntityFlatten(t *testing.T) {
	productsServer := httptest.NewServer(jsonHandler(t, map[string]interface{}{
		"data": map[string]interface{}{
			"product": map[string]interface{}{
				"__typename": "Product",
				"id":         "p1",
				"name":       "Product p1",
			},
		},
	}))
	defer productsServer.Close()

	reviewsServer := httptest.NewServer(jsonHandler(t, map[string]interface{}{
		"data": map[string]interface{}{
			"_entities": []interface{}{
				map[string]interface{}{
					"reviews": []interface{}{
						map[string]interface{}{"body": "Great product!"},
						map[string]interface{}{"body": "Not bad"},
					},
				},
			},
		},
	}))
	defer reviewsServer.Close()

	products := mustSubGraph(t, "products", `
		type Query { product: Product }
		type Product @key(fields: "id") { id: ID! name: String! }
	`, productsServer.URL)
	reviews := mustSubGraph(t, "reviews", `
		type Product @key(fields: "id") { id: ID! reviews: [Review!]! }
		type Review { body: String! }
	`, reviewsServer.URL)
	sg := mustSuperGraph(t, products, reviews)

	qp := &plan.QueryPlan{
		Node: &plan.Sequence{
			Nodes: []plan.Node{
				&plan.Fetch{ServiceName: "products", Operation: `query { product { __typename id name } }`},
				&plan.Flatten{
					Path: []string{"product"},
					Node: &plan.Fetch{
						ServiceName: "reviews",
						Operation:   `query($representations:[_Any!]!){_entities(representations:$representations){...on Product{reviews{body}}}}`,
						Requires: []plan.RequiresSelection{
							plan.RequiresInlineFragment{
								TypeCondition: "Product",
								Selections:    []plan.RequiresSelection{plan.RequiresField{Name: "__typename"}, plan.RequiresField{Name: "id"}},
							},
						},
					},
				},
			},
		},
	}

	exec := executor.NewExecutor(http.DefaultClient, sg)
	result, err := exec.Execute(context.Background(), qp, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data := result["data"].(map[string]interface{})
	product, ok := data["product"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected product in merged result, got %+v", data)
	}
	if product["name"] != "Product p1" {
		t.Errorf("expected name to survive merge, got %+v", product)
	}
	reviewsField, ok := product["reviews"].([]interface{})
	if !ok || len(reviewsField) != 2 {
		t.Errorf("expected 2 merged reviews, got %+v", product["reviews"])
	}
}

func TestExecutor_SubgraphFailureRecordsErrorAndLeavesPartialData(t *testing.T) {
	productsServer := httptest.NewServer(jsonHandler(t, map[string]interface{}{
		"data": map[string]interface{}{"product": map[string]interface{}{"id": "1"}},
	}))
	defer productsServer.Close()
	downServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	downServer.Close() // force connection refused

	products := mustSubGraph(t, "products", `type Query { product: Product } type Product { id: ID! }`, productsServer.URL)
	users := mustSubGraph(t, "users", `type Query { user: User } type User { id: ID! }`, downServer.URL)
	sg := mustSuperGraph(t, products, users)

	qp := &plan.QueryPlan{
		Node: &plan.Parallel{
			Nodes: []plan.Node{
				&plan.Fetch{ServiceName: "products", Operation: `query { product { id } }`},
				&plan.Fetch{ServiceName: "users", Operation: `query { user { id } }`},
			},
		},
	}

	exec := executor.NewExecutor(http.DefaultClient, sg)
	result, err := exec.Execute(context.Background(), qp, nil, nil)
	if err != nil {
		t.Fatalf("Execute should not fail outright on subgraph error: %v", err)
	}

	data := result["data"].(map[string]interface{})
	if data["product"] == nil {
		t.Errorf("expected product data to survive the users subgraph failure")
	}
	if _, hasErrors := result["errors"]; !hasErrors {
		t.Errorf("expected a recorded error for the failed users fetch")
	}
}
