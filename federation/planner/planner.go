// Package planner implements the federated query planner (C1-C8): given a
// composed supergraph and a client GraphQL operation, it produces an
// executable plan.QueryPlan describing which subgraphs to call, in what
// order, with what selection sets.
package planner

import (
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/go-graphql-federation-gateway/federation/normalizer"
	"github.com/n9te9/go-graphql-federation-gateway/federation/plan"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// Options configures one Plan call. A closed struct rather than a
// map[string]any bag: unknown options are a compile error at the call site,
// not a runtime one.
type Options struct {
	// AutoFragmentization enables C6: within each fetch, a selection set
	// that occurs more than once is hoisted into a named fragment before
	// printing. Occurrences are counted per fetch; a selection set that
	// occurs once in each of several fetches is not hoisted.
	AutoFragmentization bool
}

// Planner is the C8 facade: one entry point, Plan, run against an
// eagerly-indexed composed schema. A *Planner is safe for concurrent use by
// multiple goroutines; it performs no I/O and holds no locks.
type Planner struct {
	sg *graph.SuperGraph
}

// NewPlanner builds the federation metadata index (C1) for composedSchema
// and returns a ready-to-use Planner. The index is built once, here, and
// never mutated afterward; composedSchema is borrowed for the Planner's
// whole lifetime.
func NewPlanner(composedSchema *graph.SuperGraph) (*Planner, error) {
	if err := validateSchema(composedSchema); err != nil {
		return nil, err
	}
	return &Planner{sg: composedSchema}, nil
}

// validateSchema surfaces the C1 failure modes described by the distilled
// spec: a field with no owning subgraph, or an abstract type with zero
// implementors. Once a schema is rejected here, every Plan call against it
// would hit the same gap, so it is caught at construction instead of on
// first use.
func validateSchema(sg *graph.SuperGraph) error {
	for _, def := range sg.Schema.Definitions {
		switch t := def.(type) {
		case *ast.ObjectTypeDefinition:
			name := t.Name.String()
			if name == "Query" || name == "Mutation" || name == "Subscription" {
				continue
			}
			for _, field := range t.Fields {
				fieldName := field.Name.String()
				if len(sg.GetSubGraphsForField(name, fieldName)) == 0 {
					return newErr(SchemaInvalid, "field %q.%q has no owning subgraph", name, fieldName)
				}
			}
		case *ast.InterfaceTypeDefinition:
			if len(sg.Implementors(t.Name.String())) == 0 {
				return newErr(SchemaInvalid, "interface %q has no implementors", t.Name.String())
			}
		case *ast.UnionTypeDefinition:
			if len(sg.Implementors(t.Name.String())) == 0 {
				return newErr(SchemaInvalid, "union %q has no member types", t.Name.String())
			}
		}
	}
	return nil
}

// Plan runs the Parsed -> Indexed -> Normalized -> Split -> Grouped ->
// Assembled -> (Fragmentized?) -> Serialized pipeline for one operation
// against p's schema. operationName disambiguates a document carrying more
// than one operation; pass "" when the document has exactly one.
func (p *Planner) Plan(operationText, operationName string, options Options) (*plan.QueryPlan, error) {
	doc, err := parseOperation(operationText)
	if err != nil {
		return nil, err
	}

	norm, nerr := normalizer.Normalize(doc, operationName, p.sg.Schema)
	if nerr != nil {
		return nil, newErr(OperationSelection, "%v", nerr)
	}

	strategy := strategyFor(norm.Kind)
	ctx := &splitContext{sg: p.sg, fragments: norm.Fragments}
	if err := splitRoot(ctx, norm.RootType, norm.SelectionSet, strategy); err != nil {
		return nil, err
	}

	roots := strategy.Groups()
	if options.AutoFragmentization {
		for _, root := range roots {
			fragmentizeTree(p.sg, root)
		}
	}

	return assemble(p.sg, norm.Kind, roots), nil
}

// Serialize renders qp in the stable public JSON shape (C7).
func (p *Planner) Serialize(qp *plan.QueryPlan) ([]byte, error) {
	return plan.Serialize(qp)
}

func parseOperation(text string) (*ast.Document, error) {
	l := lexer.New(text)
	ps := parser.New(l)
	doc := ps.ParseDocument()
	if errs := ps.Errors(); len(errs) > 0 {
		return nil, newErr(OperationSelection, "parse error: %v", errs)
	}
	return doc, nil
}
