package planner

import (
	"strings"

	"github.com/n9te9/graphql-parser/ast"
)

// FetchGroup is the mutable accumulator the splitter and fetch-group
// builder fill in before the assembler turns it into an immutable
// plan.Node. A FetchGroup owns its children outright through Dependents:
// no group is ever referenced from two places in the tree.
type FetchGroup struct {
	Service    string // target subgraph name
	ParentType string // type whose fields live in SelectionSet
	IsEntity   bool   // true when this group resolves via _entities(...)

	// RequiresFields names the representation fields needed to join into
	// ParentType (the entity key, plus any @requires fields folded in).
	// Only meaningful when IsEntity is true.
	RequiresFields []string

	SelectionSet []ast.Selection

	// InternalFragments is populated by the auto-fragmentizer (C6), after
	// the group's SelectionSet has been finalized, with the synthetic
	// fragment definitions hoisted out of it.
	InternalFragments []*ast.FragmentDefinition

	// Path locates, in the parent group's response tree, where this
	// group's entity representations are drawn from. Empty for root
	// groups. List-typed segments have already had "@" inserted.
	Path []string

	Dependents []*FetchGroup
}

func newRootGroup(service, parentType string) *FetchGroup {
	return &FetchGroup{
		Service:    service,
		ParentType: parentType,
	}
}

func newEntityGroup(service, entityType string, path []string, requiresFields []string) *FetchGroup {
	return &FetchGroup{
		Service:        service,
		ParentType:     entityType,
		IsEntity:       true,
		RequiresFields: dedupePreserveOrder(requiresFields),
		Path:           append([]string{}, path...),
	}
}

// dependentKey identifies whether an existing dependent group can be reused
// for a new boundary crossing: same target service, same join point, same
// entity type, same representation fields.
func (g *FetchGroup) dependentKey(service, entityType string, path, requiresFields []string) string {
	return service + "\x00" + entityType + "\x00" + strings.Join(path, "/") + "\x00" + strings.Join(dedupePreserveOrder(requiresFields), ",")
}

// findOrCreateDependent reuses an existing dependent group that targets
// the same service at the same path/entity boundary with the same
// representation fields, or creates one.
func (g *FetchGroup) findOrCreateDependent(service, entityType string, path []string, requiresFields []string) *FetchGroup {
	wantKey := g.dependentKey(service, entityType, path, requiresFields)
	for _, d := range g.Dependents {
		if d.dependentKey(d.Service, d.ParentType, d.Path, d.RequiresFields) == wantKey {
			return d
		}
	}
	child := newEntityGroup(service, entityType, path, requiresFields)
	g.Dependents = append(g.Dependents, child)
	return child
}

func dedupePreserveOrder(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
