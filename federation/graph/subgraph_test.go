package graph_test

import (
	"testing"

	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
)

func mustSubGraph(t *testing.T, name, sdl string) *graph.SubGraph {
	t.Helper()
	sg, err := graph.NewSubGraph(name, []byte(sdl), "http://"+name+".internal")
	if err != nil {
		t.Fatalf("NewSubGraph(%s): %v", name, err)
	}
	return sg
}

func TestNewSubGraph_ParsesKeyDirective(t *testing.T) {
	sg := mustSubGraph(t, "products", `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
	`)

	entity, ok := sg.GetEntity("Product")
	if !ok {
		t.Fatal("expected Product to be recognized as an entity")
	}
	if len(entity.Keys) != 1 {
		t.Fatalf("expected exactly one @key, got %d", len(entity.Keys))
	}
	if !entity.Keys[0].Resolvable {
		t.Error("expected default @key to be resolvable")
	}
	if diff := entity.Keys[0].FieldSet.Names(); len(diff) != 1 || diff[0] != "id" {
		t.Errorf("expected key fields [id], got %v", diff)
	}
}

func TestNewSubGraph_ParsesRequiresAndExternal(t *testing.T) {
	sg := mustSubGraph(t, "shipping", `
		type Product @key(fields: "id") {
			id: ID!
			weight: Int! @external
			shippingEstimate: String! @requires(fields: "weight")
		}
	`)

	entity, _ := sg.GetEntity("Product")
	weight := entity.Fields["weight"]
	if !weight.IsExternal() {
		t.Error("expected weight field to be marked external")
	}

	estimate := entity.Fields["shippingEstimate"]
	if diff := estimate.Requires.Names(); len(diff) != 1 || diff[0] != "weight" {
		t.Errorf("expected requires [weight], got %v", diff)
	}
}

func TestNewSubGraph_ParsesResolvableFalse(t *testing.T) {
	sg := mustSubGraph(t, "reviews", `
		type Product @key(fields: "id", resolvable: false) {
			id: ID!
		}
	`)
	entity, _ := sg.GetEntity("Product")
	if entity.Keys[0].Resolvable {
		t.Error("expected resolvable: false to be honored")
	}
	if entity.IsResolvable() {
		t.Error("expected IsResolvable() to be false when its only key is unresolvable")
	}
}

func TestNewSubGraph_ParsesOverride(t *testing.T) {
	sg := mustSubGraph(t, "inventory", `
		type Product @key(fields: "id") {
			id: ID!
			stock: Int! @override(from: "legacy")
		}
	`)
	entity, _ := sg.GetEntity("Product")
	ov := entity.Fields["stock"].GetOverride()
	if ov == nil || ov.From != "legacy" {
		t.Fatalf("expected override from legacy, got %+v", ov)
	}
}

func TestNewSubGraph_NonEntityTypeIsNotRegistered(t *testing.T) {
	sg := mustSubGraph(t, "catalog", `
		type Query { noop: String }
	`)
	if _, ok := sg.GetEntity("Query"); ok {
		t.Error("expected Query (no @key) not to be registered as an entity")
	}
}
