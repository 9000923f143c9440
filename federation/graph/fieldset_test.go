package graph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
)

func TestParseFieldSet_Flat(t *testing.T) {
	fs := graph.ParseFieldSet("id sku")
	if diff := cmp.Diff([]string{"id", "sku"}, fs.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFieldSet_Nested(t *testing.T) {
	fs := graph.ParseFieldSet("id nested { x y }")
	if diff := cmp.Diff([]string{"id", "nested"}, fs.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if len(fs) != 2 {
		t.Fatalf("expected 2 top-level selections, got %d", len(fs))
	}
	nested := fs[1].Nested
	if diff := cmp.Diff([]string{"x", "y"}, nested.Names()); diff != "" {
		t.Errorf("nested Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldSet_Empty(t *testing.T) {
	if !graph.ParseFieldSet("").Empty() {
		t.Error("expected empty field set for empty literal")
	}
	if graph.ParseFieldSet("id").Empty() {
		t.Error("expected non-empty field set for \"id\"")
	}
}

func TestFieldSet_Subset(t *testing.T) {
	want := graph.ParseFieldSet("id")
	have := graph.ParseFieldSet("id name")
	if !want.Subset(have) {
		t.Error("expected {id} to be a subset of {id name}")
	}
	missing := graph.ParseFieldSet("sku")
	if missing.Subset(have) {
		t.Error("expected {sku} not to be a subset of {id name}")
	}
}

func TestFieldSet_Equal(t *testing.T) {
	a := graph.ParseFieldSet("id name")
	b := graph.ParseFieldSet("name id")
	if !a.Equal(b) {
		t.Error("expected field sets to be equal modulo order")
	}
	c := graph.ParseFieldSet("id")
	if a.Equal(c) {
		t.Error("expected field sets of different length not to be equal")
	}
}
