package planner

import (
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/go-graphql-federation-gateway/federation/plan"
)

// assemble turns the fetch-group forest built by C3/C4 into the immutable
// plan.Node tree (C5). Grounded on the tree shape mandated for FetchGroup
// ownership (Design Note 9): every group with dependents becomes a
// Sequence[Fetch, Flatten-wrapped-dependents], and siblings with no data
// dependency between them (by construction, dependents never depend on one
// another) are wrapped in Parallel.
func assemble(sg *graph.SuperGraph, operationKind string, roots []*FetchGroup) *plan.QueryPlan {
	if len(roots) == 0 {
		return &plan.QueryPlan{Node: nil}
	}

	pr := newPrinter(sg)

	if len(roots) == 1 {
		return &plan.QueryPlan{Node: buildNode(pr, operationKind, roots[0])}
	}

	nodes := make([]plan.Node, 0, len(roots))
	for _, g := range roots {
		nodes = append(nodes, buildNode(pr, operationKind, g))
	}

	if operationKind == "mutation" {
		return &plan.QueryPlan{Node: &plan.Sequence{Nodes: nodes}}
	}
	return &plan.QueryPlan{Node: &plan.Parallel{Nodes: nodes}}
}

// buildNode converts one FetchGroup (and its owned dependents) into a
// Fetch, or a Sequence[Fetch, dependents] when the group has entity joins
// hanging off it.
func buildNode(pr *printer, operationKind string, group *FetchGroup) plan.Node {
	opText, varNames := pr.print(operationKind, group)

	fetch := &plan.Fetch{
		ServiceName:    group.Service,
		VariableUsages: varNames,
		Operation:      opText,
	}
	if group.IsEntity {
		fetch.Requires = buildRequires(group)
	}

	if len(group.Dependents) == 0 {
		return fetch
	}

	depNodes := make([]plan.Node, 0, len(group.Dependents))
	for _, dep := range group.Dependents {
		depNodes = append(depNodes, &plan.Flatten{
			Path: dep.Path,
			Node: buildNode(pr, operationKind, dep),
		})
	}

	var depNode plan.Node
	if len(depNodes) == 1 {
		depNode = depNodes[0]
	} else {
		depNode = &plan.Parallel{Nodes: depNodes}
	}

	return &plan.Sequence{Nodes: []plan.Node{fetch, depNode}}
}

// buildRequires renders a group's RequiresFields as the single typed inline
// fragment the plan serializer expects: {kind:"InlineFragment", typeCondition,
// selections}, selections being the flat {kind:"Field", name} list in the
// order the key/requires fields were accumulated (__typename first).
func buildRequires(group *FetchGroup) []plan.RequiresSelection {
	fields := make([]plan.RequiresSelection, 0, len(group.RequiresFields))
	for _, name := range group.RequiresFields {
		fields = append(fields, plan.RequiresField{Name: name})
	}
	return []plan.RequiresSelection{
		plan.RequiresInlineFragment{TypeCondition: group.ParentType, Selections: fields},
	}
}
