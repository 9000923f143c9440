package normalizer_test

import (
	"testing"

	"github.com/n9te9/go-graphql-federation-gateway/federation/normalizer"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

func mustParseDocument(t *testing.T, text string) *ast.Document {
	t.Helper()
	l := lexer.New(text)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse error: %v", errs)
	}
	return doc
}

var emptySchema = &ast.Document{}

func TestNormalize_SingleAnonymousOperation(t *testing.T) {
	doc := mustParseDocument(t, `{ product(id: "1") { id } }`)

	norm, err := normalizer.Normalize(doc, "", emptySchema)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if norm.Kind != "query" {
		t.Errorf("expected kind query, got %q", norm.Kind)
	}
	if norm.RootType != "Query" {
		t.Errorf("expected root type Query, got %q", norm.RootType)
	}
	if len(norm.SelectionSet) != 1 {
		t.Errorf("expected 1 root selection, got %d", len(norm.SelectionSet))
	}
}

func TestNormalize_MutationKind(t *testing.T) {
	doc := mustParseDocument(t, `mutation { createProduct(name: "x") { id } }`)

	norm, err := normalizer.Normalize(doc, "", emptySchema)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if norm.Kind != "mutation" {
		t.Errorf("expected kind mutation, got %q", norm.Kind)
	}
	if norm.RootType != "Mutation" {
		t.Errorf("expected root type Mutation, got %q", norm.RootType)
	}
}

func TestNormalize_MultipleOperationsRequireName(t *testing.T) {
	doc := mustParseDocument(t, `
		query GetA { a: noop }
		query GetB { b: noop }
	`)

	if _, err := normalizer.Normalize(doc, "", emptySchema); err == nil {
		t.Fatal("expected an error when multiple operations and no name is given")
	}

	norm, err := normalizer.Normalize(doc, "GetB", emptySchema)
	if err != nil {
		t.Fatalf("Normalize with name: %v", err)
	}
	if norm.OperationName != "GetB" {
		t.Errorf("expected resolved operation name GetB, got %q", norm.OperationName)
	}
}

func TestNormalize_UnknownOperationNameFails(t *testing.T) {
	doc := mustParseDocument(t, `query GetA { a: noop }`)

	if _, err := normalizer.Normalize(doc, "DoesNotExist", emptySchema); err == nil {
		t.Fatal("expected an error for an unknown operation name")
	}
}

func TestNormalize_CollectsFragmentDefinitions(t *testing.T) {
	doc := mustParseDocument(t, `
		query GetProduct { product { ...Fields } }
		fragment Fields on Product { id name }
	`)

	norm, err := normalizer.Normalize(doc, "", emptySchema)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if _, ok := norm.Fragments["Fields"]; !ok {
		t.Error("expected fragment Fields to be collected")
	}
}

func TestNormalize_EmptySelectionFails(t *testing.T) {
	doc := &ast.Document{Definitions: []ast.Definition{
		&ast.OperationDefinition{Operation: ast.Query, SelectionSet: nil},
	}}

	if _, err := normalizer.Normalize(doc, "", emptySchema); err == nil {
		t.Fatal("expected an error when the operation selects nothing")
	}
}
