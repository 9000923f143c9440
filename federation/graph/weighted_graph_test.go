package graph_test

import (
	"testing"

	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
)

func TestBuildGraph_CheapestCandidateBreaksTiesByDeclarationOrder(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Product @key(fields: "id") { id: ID! name: String! }
	`)
	reviews := mustSubGraph(t, "reviews", `
		type Product @key(fields: "id") { id: ID! reviews: [String!]! }
	`)
	inventory := mustSubGraph(t, "inventory", `
		type Product @key(fields: "id") { id: ID! stock: Int! }
	`)

	g := graph.BuildGraph([]*graph.SubGraph{products, reviews, inventory})

	entry := graph.NodeKey("products", "Product", "")
	candidates := []string{
		graph.NodeKey("reviews", "Product", ""),
		graph.NodeKey("inventory", "Product", ""),
	}

	id, _, ok := g.CheapestCandidate([]string{entry}, candidates)
	if !ok {
		t.Fatal("expected a reachable candidate")
	}
	if id != candidates[0] {
		t.Errorf("expected the first of the equal-cost candidates %q, got %q", candidates[0], id)
	}
}

func TestCheapestCandidate_NoCandidatesReturnsNotOK(t *testing.T) {
	g := graph.NewWeightedDirectedGraph()
	_, _, ok := g.CheapestCandidate([]string{"a"}, nil)
	if ok {
		t.Error("expected ok=false when no candidates are given")
	}
}

func TestCheapestCandidate_UnreachableCandidateIsSkipped(t *testing.T) {
	g := graph.NewWeightedDirectedGraph()
	g.AddNode("entry", nil, "Product", "")
	g.AddNode("unreachable", nil, "Product", "")
	// No edge connects "entry" to "unreachable".

	_, _, ok := g.CheapestCandidate([]string{"entry"}, []string{"unreachable"})
	if ok {
		t.Error("expected ok=false when the only candidate is unreachable")
	}
}

func TestDijkstra_ShortcutEdgesAreZeroCost(t *testing.T) {
	g := graph.NewWeightedDirectedGraph()
	g.AddNode("a", nil, "T", "")
	g.AddNode("b", nil, "T", "")
	g.AddEdge("a", "b", 1)
	g.AddShortCut("a", "c")
	g.AddNode("c", nil, "T", "")

	result := g.Dijkstra([]string{"a"})
	if result.Dist["c"] != 0 {
		t.Errorf("expected shortcut edge to cost 0, got %d", result.Dist["c"])
	}
	if result.Dist["b"] != 1 {
		t.Errorf("expected normal edge to cost 1, got %d", result.Dist["b"])
	}
}
