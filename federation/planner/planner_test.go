package planner_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/go-graphql-federation-gateway/federation/plan"
	"github.com/n9te9/go-graphql-federation-gateway/federation/planner"
)

func mustSubGraph(t *testing.T, name, sdl string) *graph.SubGraph {
	t.Helper()
	sg, err := graph.NewSubGraph(name, []byte(sdl), "http://"+name+".internal")
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

func mustPlanner(t *testing.T, sg *graph.SuperGraph) *planner.Planner {
	t.Helper()
	p, err := planner.NewPlanner(sg)
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	return p
}

func TestPlanner_SingleServiceQuery(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Query { product(id: ID!): Product }
		type Product @key(fields: "id") { id: ID! name: String! }
	`)
	sg := mustSuperGraph(t, products)
	p := mustPlanner(t, sg)

	qp, err := p.Plan(`{ product(id: "1") { id name } }`, "", planner.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	fetch, ok := qp.Node.(*plan.Fetch)
	if !ok {
		t.Fatalf("expected a single Fetch, got %T", qp.Node)
	}
	if fetch.ServiceName != "products" {
		t.Errorf("expected products fetch, got %q", fetch.ServiceName)
	}
	if fetch.Requires != nil {
		t.Errorf("root fetch should not carry a requires list, got %+v", fetch.Requires)
	}
}

func TestPlanner_TwoServiceEntityJoin(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Query { product(id: ID!): Product }
		type Product @key(fields: "id") { id: ID! name: String! }
	`)
	reviews := mustSubGraph(t, "reviews", `
		type Product @key(fields: "id") { id: ID! reviews: [Review!]! }
		type Review { id: ID! body: String! }
	`)
	sg := mustSuperGraph(t, products, reviews)
	p := mustPlanner(t, sg)

	qp, err := p.Plan(`{ product(id: "1") { id name reviews { body } } }`, "", planner.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	seq, ok := qp.Node.(*plan.Sequence)
	if !ok || len(seq.Nodes) != 2 {
		t.Fatalf("expected a 2-node Sequence, got %T", qp.Node)
	}

	root, ok := seq.Nodes[0].(*plan.Fetch)
	if !ok || root.ServiceName != "products" {
		t.Fatalf("expected products root fetch first, got %+v", seq.Nodes[0])
	}

	flatten, ok := seq.Nodes[1].(*plan.Flatten)
	if !ok {
		t.Fatalf("expected Flatten as second sequence node, got %T", seq.Nodes[1])
	}
	wantPath := []string{"product"}
	if diff := cmp.Diff(wantPath, flatten.Path); diff != "" {
		t.Errorf("flatten path mismatch (-want +got):\n%s", diff)
	}

	dep, ok := flatten.Node.(*plan.Fetch)
	if !ok || dep.ServiceName != "reviews" {
		t.Fatalf("expected reviews fetch under flatten, got %+v", flatten.Node)
	}
	if dep.Requires == nil {
		t.Error("expected entity fetch to carry a requires list")
	}
}

func TestPlanner_MutationPreservesFieldOrder(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Mutation { createProduct(name: String!): Product }
		type Product @key(fields: "id") { id: ID! name: String! }
	`)
	reviews := mustSubGraph(t, "reviews", `
		type Mutation { createReview(productId: ID!, body: String!): Review }
		type Review { id: ID! body: String! }
	`)
	sg := mustSuperGraph(t, products, reviews)
	p := mustPlanner(t, sg)

	qp, err := p.Plan(`mutation {
		createProduct(name: "Widget") { id }
		createReview(productId: "1", body: "nice") { id }
	}`, "", planner.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	seq, ok := qp.Node.(*plan.Sequence)
	if !ok || len(seq.Nodes) != 2 {
		t.Fatalf("expected a 2-node Sequence for the mutation, got %T", qp.Node)
	}

	first, ok := seq.Nodes[0].(*plan.Fetch)
	if !ok || first.ServiceName != "products" {
		t.Fatalf("expected createProduct fetch first, got %+v", seq.Nodes[0])
	}
	second, ok := seq.Nodes[1].(*plan.Fetch)
	if !ok || second.ServiceName != "reviews" {
		t.Fatalf("expected createReview fetch second, got %+v", seq.Nodes[1])
	}
}

func TestPlanner_AutoFragmentizationHoistsRepeatedSelections(t *testing.T) {
	catalog := mustSubGraph(t, "catalog", `
		type Query { a: Item b: Item }
		type Item { id: ID! name: String! }
	`)
	sg := mustSuperGraph(t, catalog)
	p := mustPlanner(t, sg)

	qp, err := p.Plan(`{ a { id name } b { id name } }`, "", planner.Options{AutoFragmentization: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	fetch, ok := qp.Node.(*plan.Fetch)
	if !ok {
		t.Fatalf("expected a single Fetch, got %T", qp.Node)
	}
	if !strings.Contains(fetch.Operation, "__QueryPlanFragment_0__") {
		t.Errorf("expected operation to reference a hoisted fragment, got:\n%s", fetch.Operation)
	}
}

func TestPlanner_SchemaValidationRejectsInterfaceWithNoImplementors(t *testing.T) {
	orphan := mustSubGraph(t, "orphan", `
		type Query { noop: String }
		interface Ghost { id: ID! }
	`)
	sg, err := graph.NewSuperGraph([]*graph.SubGraph{orphan})
	if err != nil {
		t.Fatalf("NewSuperGraph: %v", err)
	}

	_, err = planner.NewPlanner(sg)
	if err == nil {
		t.Fatal("expected NewPlanner to reject an interface with no implementors")
	}
	perr, ok := err.(*planner.PlanError)
	if !ok {
		t.Fatalf("expected *planner.PlanError, got %T", err)
	}
	if perr.Kind != planner.SchemaInvalid {
		t.Errorf("expected SchemaInvalid error kind, got %v", perr.Kind)
	}
}

func TestPlanner_SchemaValidationAcceptsFullyResolvableSchema(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Query { product(id: ID!): Product }
		type Product @key(fields: "id") { id: ID! name: String! }
	`)
	sg := mustSuperGraph(t, products)
	if _, err := planner.NewPlanner(sg); err != nil {
		t.Fatalf("expected a fully-resolvable schema to be accepted, got %v", err)
	}
}

func TestPlanner_RequiresFieldsInjectedIntoAncestorGroup(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Query { product(id: ID!): Product }
		type Product @key(fields: "id") { id: ID! name: String! weight: Float! }
	`)
	shipping := mustSubGraph(t, "shipping", `
		extend type Product @key(fields: "id") {
			id: ID! @external
			weight: Float! @external
			shippingCost: Float! @requires(fields: "weight")
		}
	`)
	sg := mustSuperGraph(t, products, shipping)
	p := mustPlanner(t, sg)

	// Deliberately omit "weight" from the client query: the planner must
	// still inject it into the products fetch because shippingCost needs
	// it, not just record it on the dependent's requires list.
	qp, err := p.Plan(`{ product(id: "1") { name shippingCost } }`, "", planner.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	seq, ok := qp.Node.(*plan.Sequence)
	if !ok || len(seq.Nodes) != 2 {
		t.Fatalf("expected a 2-node Sequence, got %T", qp.Node)
	}

	root, ok := seq.Nodes[0].(*plan.Fetch)
	if !ok || root.ServiceName != "products" {
		t.Fatalf("expected products root fetch first, got %+v", seq.Nodes[0])
	}
	if !strings.Contains(root.Operation, "weight") {
		t.Errorf("expected weight to be injected into the products fetch, got:\n%s", root.Operation)
	}

	flatten, ok := seq.Nodes[1].(*plan.Flatten)
	if !ok {
		t.Fatalf("expected Flatten as second sequence node, got %T", seq.Nodes[1])
	}
	dep, ok := flatten.Node.(*plan.Fetch)
	if !ok || dep.ServiceName != "shipping" {
		t.Fatalf("expected shipping fetch under flatten, got %+v", flatten.Node)
	}
	if dep.Requires == nil {
		t.Fatal("expected entity fetch to carry a requires list")
	}
	hasWeight := false
	for _, sel := range dep.Requires {
		if frag, ok := sel.(plan.RequiresInlineFragment); ok {
			for _, inner := range frag.Selections {
				if rf, ok := inner.(plan.RequiresField); ok && rf.Name == "weight" {
					hasWeight = true
				}
			}
		}
	}
	if !hasWeight {
		t.Error("expected weight (from @requires) in the shipping fetch's requires list")
	}
}

func TestPlanner_InterfaceSelectionPreservesTypeCondition(t *testing.T) {
	catalog := mustSubGraph(t, "catalog", `
		type Query { iface: IFace }
		interface IFace { id: ID! }
		type IFaceImpl1 implements IFace { id: ID! x: String! }
		type IFaceImpl2 implements IFace { id: ID! x: Int! }
	`)
	sg := mustSuperGraph(t, catalog)
	p := mustPlanner(t, sg)

	qp, err := p.Plan(`{ iface { ...on IFaceImpl1 { x } ...on IFaceImpl2 { x } } }`, "", planner.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	fetch, ok := qp.Node.(*plan.Fetch)
	if !ok {
		t.Fatalf("expected a single Fetch, got %T", qp.Node)
	}
	if !strings.Contains(fetch.Operation, "...on IFaceImpl1{x}") || !strings.Contains(fetch.Operation, "...on IFaceImpl2{x}") {
		t.Errorf("expected both type conditions preserved as inline fragments, got:\n%s", fetch.Operation)
	}
}

func TestPlanner_UnknownOperationNameIsRejected(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Query { product(id: ID!): Product }
		type Product @key(fields: "id") { id: ID! name: String! }
	`)
	sg := mustSuperGraph(t, products)
	p := mustPlanner(t, sg)

	_, err := p.Plan(`query GetProduct { product(id: "1") { id } }`, "DoesNotExist", planner.Options{})
	if err == nil {
		t.Fatal("expected an error for an unknown operation name")
	}
	perr, ok := err.(*planner.PlanError)
	if !ok {
		t.Fatalf("expected *planner.PlanError, got %T", err)
	}
	if perr.Kind != planner.OperationSelection {
		t.Errorf("expected OperationSelection error kind, got %v", perr.Kind)
	}
}
