// Package normalizer resolves the operation a planning call targets out of
// a parsed GraphQL document: which operation, what its root type is, and
// which fragment definitions are available to be inlined downstream.
package normalizer

import (
	"fmt"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/token"
)

// NormalizedOperation is the resolved shape a splitter operates over.
type NormalizedOperation struct {
	Kind            string // "query" | "mutation" | "subscription"
	RootType        string
	SelectionSet    []ast.Selection
	Fragments       map[string]*ast.FragmentDefinition
	VariableDefs    []*ast.VariableDefinition
	OperationName   string
}

// ErrAmbiguousOperation is returned when the document carries more than one
// operation and no name was given to disambiguate, or a name was given that
// does not match any operation.
type ErrAmbiguousOperation struct {
	Reason string
}

func (e *ErrAmbiguousOperation) Error() string {
	return fmt.Sprintf("operation selection: %s", e.Reason)
}

// Normalize resolves the target operation in doc, honoring an optional
// operationName, and collects the document's fragment definitions.
func Normalize(doc *ast.Document, operationName string, schema *ast.Document) (*NormalizedOperation, error) {
	var ops []*ast.OperationDefinition
	fragments := make(map[string]*ast.FragmentDefinition)

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			ops = append(ops, d)
		case *ast.FragmentDefinition:
			fragments[d.Name.String()] = d
		}
	}

	if len(ops) == 0 {
		return nil, &ErrAmbiguousOperation{Reason: "document has no operation"}
	}

	var op *ast.OperationDefinition
	if operationName != "" {
		for _, candidate := range ops {
			if candidate.Name != nil && candidate.Name.String() == operationName {
				op = candidate
				break
			}
		}
		if op == nil {
			return nil, &ErrAmbiguousOperation{Reason: fmt.Sprintf("no operation named %q", operationName)}
		}
	} else {
		if len(ops) != 1 {
			return nil, &ErrAmbiguousOperation{Reason: "multiple operations and no operation name given"}
		}
		op = ops[0]
	}

	if len(op.SelectionSet) == 0 {
		return nil, &ErrAmbiguousOperation{Reason: "operation selects nothing"}
	}

	kind, rootType, err := rootTypeFor(op, schema)
	if err != nil {
		return nil, err
	}

	name := ""
	if op.Name != nil {
		name = op.Name.String()
	}

	return &NormalizedOperation{
		Kind:          kind,
		RootType:      rootType,
		SelectionSet:  op.SelectionSet,
		Fragments:     fragments,
		VariableDefs:  op.VariableDefinitions,
		OperationName: name,
	}, nil
}

func rootTypeFor(op *ast.OperationDefinition, schema *ast.Document) (string, string, error) {
	var kind, defaultRoot string
	switch op.Operation {
	case ast.Query:
		kind, defaultRoot = "query", "Query"
	case ast.Mutation:
		kind, defaultRoot = "mutation", "Mutation"
	case ast.Subscription:
		kind, defaultRoot = "subscription", "Subscription"
	default:
		return "", "", fmt.Errorf("unknown operation type: %v", op.Operation)
	}

	rootType := defaultRoot
	for _, def := range schema.Definitions {
		sd, ok := def.(*ast.SchemaDefinition)
		if !ok {
			continue
		}
		for _, ot := range sd.OperationTypes {
			if (ot.Operation == token.QUERY && op.Operation == ast.Query) ||
				(ot.Operation == token.MUTATION && op.Operation == ast.Mutation) ||
				(ot.Operation == token.SUBSCRIPTION && op.Operation == ast.Subscription) {
				rootType = ot.Type.Name.String()
			}
		}
	}

	return kind, rootType, nil
}
