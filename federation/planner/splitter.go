package planner

import (
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/token"
)

// splitContext carries the read-only inputs threaded through the
// recursive split: the composed schema's ownership index and the
// operation's fragment definitions (already resolved by C2).
type splitContext struct {
	sg        *graph.SuperGraph
	fragments map[string]*ast.FragmentDefinition
}

func typenameField() *ast.Field {
	return &ast.Field{Name: &ast.Name{Token: token.Token{Type: token.IDENT, Literal: "__typename"}, Value: "__typename"}}
}

func fieldIdentifier(f *ast.Field) string {
	if f.Alias != nil && f.Alias.String() != "" {
		return f.Alias.String()
	}
	return f.Name.String()
}

// plainField builds an unaliased, argument-less *ast.Field for name, used to
// splice representation fields (a @key's fields, or a @requires field) into
// a FetchGroup's own selection set at a boundary crossing.
func plainField(name string) *ast.Field {
	return &ast.Field{Name: &ast.Name{Token: token.Token{Type: token.IDENT, Literal: name}, Value: name}}
}

// splitRoot partitions a normalized operation's root selection set across
// the services that own each root field, using strategy to decide
// parallel-vs-serial grouping (C4's root policy), then recurses into each
// root group to find entity-join boundaries (C3).
func splitRoot(ctx *splitContext, rootType string, selections []ast.Selection, strategy GroupForField) error {
	for _, sel := range selections {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		name := field.Name.String()
		if name == "__typename" {
			continue
		}
		if ctx.sg.IsInaccessible(rootType, name) {
			return newErr(UnknownField, "field %q is inaccessible", name)
		}

		owners := ctx.sg.GetSubGraphsForField(rootType, name)
		if len(owners) == 0 {
			return newErr(UnknownField, "field %q not found on type %q", name, rootType)
		}
		owner := owners[0]
		group := strategy.GroupForField(owner.Name, rootType)

		fieldType, err := fieldTypeName(ctx.sg, rootType, name)
		if err != nil {
			return err
		}

		newField := &ast.Field{Alias: field.Alias, Name: field.Name, Arguments: field.Arguments}
		group.SelectionSet = append(group.SelectionSet, newField)

		if len(field.SelectionSet) > 0 {
			isList, err := fieldIsList(ctx.sg, rootType, name)
			if err != nil {
				return err
			}
			path := []string{fieldIdentifier(field)}
			if isList {
				path = append(path, "@")
			}
			built, err := splitSelections(ctx, group, field.SelectionSet, fieldType, path)
			if err != nil {
				return err
			}
			newField.SelectionSet = built
		}
	}
	return nil
}

// splitSelections is the heart of C3: for each child selection of
// parentType, decide whether group's own service can resolve it; if so
// keep recursing in place, otherwise open (or reuse) a dependent
// FetchGroup joined through a resolvable @key of parentType at the
// cheapest owning subgraph. path
// is group's own response path leading to parentType's selection.
func splitSelections(ctx *splitContext, group *FetchGroup, selections []ast.Selection, parentType string, path []string) ([]ast.Selection, error) {
	var out []ast.Selection
	hasTypename := false
	// emitted tracks every plain field name already present in out (either
	// an explicit client selection or a representation field spliced in by
	// an earlier boundary crossing at this same level), so that two
	// crossings needing the same @key/@requires field don't duplicate it.
	emitted := make(map[string]bool)

	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			name := s.Name.String()
			if name == "__typename" {
				hasTypename = true
				out = append(out, typenameField())
				continue
			}

			if ctx.sg.IsAbstractType(parentType) {
				fragments, err := splitAbstractField(ctx, group, s, parentType, path)
				if err != nil {
					return nil, err
				}
				out = append(out, fragments...)
				continue
			}

			if ctx.sg.IsInaccessible(parentType, name) {
				return nil, newErr(UnknownField, "field %q is inaccessible", name)
			}

			owners := ctx.sg.GetSubGraphsForField(parentType, name)
			if len(owners) == 0 {
				return nil, newErr(UnknownField, "field %q not found on type %q", name, parentType)
			}

			resolvableHere := false
			for _, o := range owners {
				if o.Name == group.Service {
					resolvableHere = true
					break
				}
			}

			fieldType, err := fieldTypeName(ctx.sg, parentType, name)
			if err != nil {
				return nil, err
			}
			isList, err := fieldIsList(ctx.sg, parentType, name)
			if err != nil {
				return nil, err
			}

			segment := fieldIdentifier(s)
			extendedPath := append(append([]string{}, path...), segment)
			if isList {
				extendedPath = append(extendedPath, "@")
			}

			newField := &ast.Field{Alias: s.Alias, Name: s.Name, Arguments: s.Arguments}

			if resolvableHere {
				if len(s.SelectionSet) > 0 {
					built, err := splitSelections(ctx, group, s.SelectionSet, fieldType, extendedPath)
					if err != nil {
						return nil, err
					}
					newField.SelectionSet = built
				}
				out = append(out, newField)
				emitted[name] = true
				continue
			}

			// Boundary: parentType must be an entity resolvable by one of
			// owners. Pick the cheapest owner via the weighted graph
			// (ties by owner order), then its key, and fold in the
			// crossed field's own @requires (§4.3: "requires = chosen_key
			// ∪ field.@requires").
			chosen, repFields, err := chooseEntityRoute(ctx, group, parentType, name, owners, emitted)
			if err != nil {
				return nil, err
			}
			// Per §4.3 rule 1's first bullet, the chosen key's (and any
			// @requires) fields must be emitted into current_group's own
			// selection set: the executor builds the _entities
			// representation it hands to the dependent fetch out of
			// whatever this group (an ancestor along path) actually
			// fetched, so the fields have to be real siblings here, not
			// just names recorded on the dependent.
			for _, rf := range repFields {
				if rf == "__typename" {
					if !hasTypename {
						out = append(out, typenameField())
						hasTypename = true
					}
					continue
				}
				if emitted[rf] {
					continue
				}
				out = append(out, plainField(rf))
				emitted[rf] = true
			}

			// The dependent's Path locates where parentType's own instances
			// already sit in group's response (path), not the crossing
			// field's position beneath them (extendedPath): that is exactly
			// what Flatten's entity extraction walks.
			child := group.findOrCreateDependent(chosen.Name, parentType, path, repFields)
			child.SelectionSet = append(child.SelectionSet, newField)
			if len(s.SelectionSet) > 0 {
				built, err := splitSelections(ctx, child, s.SelectionSet, fieldType, nil)
				if err != nil {
					return nil, err
				}
				newField.SelectionSet = built
			}
			// The crossed field itself is resolved entirely by the
			// dependent group; only its representation fields (above) are
			// added to the current group's own selection.

		case *ast.InlineFragment:
			typeCondition := s.TypeCondition.Name.String()
			inner, err := splitSelections(ctx, group, s.SelectionSet, typeCondition, path)
			if err != nil {
				return nil, err
			}
			inner = withoutLeadingTypename(inner)
			if typeCondition == parentType {
				out = append(out, inner...)
			} else {
				// parentType is abstract (or otherwise distinct from the
				// fragment's own type condition): the type-scoping wrapper
				// must survive, or the subgraph receives an un-scoped,
				// potentially duplicated selection (§8 scenario 6).
				out = append(out, &ast.InlineFragment{TypeCondition: s.TypeCondition, SelectionSet: inner})
			}

		case *ast.FragmentSpread:
			fragName := s.Name.String()
			frag, ok := ctx.fragments[fragName]
			if !ok {
				return nil, newErr(OperationSelection, "unknown fragment %q", fragName)
			}
			typeCondition := frag.TypeCondition.Name.String()
			inner, err := splitSelections(ctx, group, frag.SelectionSet, typeCondition, path)
			if err != nil {
				return nil, err
			}
			inner = withoutLeadingTypename(inner)
			if typeCondition == parentType {
				out = append(out, inner...)
			} else {
				out = append(out, &ast.InlineFragment{TypeCondition: frag.TypeCondition, SelectionSet: inner})
			}
		}
	}

	isRootType := parentType == "Query" || parentType == "Mutation" || parentType == "Subscription"
	if !hasTypename && !isRootType && len(out) > 0 {
		out = append([]ast.Selection{typenameField()}, out...)
	}

	return out, nil
}

// withoutLeadingTypename drops the __typename a recursive splitSelections
// call puts first in a fragment body: the selection set enclosing the
// fragment already carries __typename for the same object.
func withoutLeadingTypename(sels []ast.Selection) []ast.Selection {
	if len(sels) > 0 {
		if f, ok := sels[0].(*ast.Field); ok && f.Name.String() == "__typename" {
			return sels[1:]
		}
	}
	return sels
}

// splitAbstractField handles a field selected directly on an interface or
// union (no client-supplied inline fragment): per the distilled spec's
// abstract-type rule, it enumerates the type's implementors, resolves each
// implementor's owner for the field independently, and emits one inline
// fragment per implementor that actually declares it (a union member may
// not). Implementors sharing a group with the current fetch's service never
// trigger a boundary; implementors owned elsewhere open (or reuse) a
// dependent entity fetch, same as a concrete-type boundary crossing.
func splitAbstractField(ctx *splitContext, group *FetchGroup, field *ast.Field, abstractType string, path []string) ([]ast.Selection, error) {
	name := field.Name.String()
	var out []ast.Selection
	for _, implType := range ctx.sg.Implementors(abstractType) {
		owners := ctx.sg.GetSubGraphsForField(implType, name)
		if len(owners) == 0 {
			continue // union member does not declare this field
		}
		synthetic := &ast.InlineFragment{
			TypeCondition: &ast.NamedType{Name: &ast.Name{Token: token.Token{Type: token.IDENT, Literal: implType}, Value: implType}},
			SelectionSet:  []ast.Selection{field},
		}
		inner, err := splitSelections(ctx, group, synthetic.SelectionSet, implType, path)
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.InlineFragment{TypeCondition: synthetic.TypeCondition, SelectionSet: inner})
	}
	return out, nil
}

// chooseEntityRoute picks which of owners should resolve parentType as an
// entity, and which representation fields the join needs: the chosen @key's
// fields unioned with fieldName's own @requires, per §4.3 rule 1
// ("requires = chosen_key ∪ field.@requires"). When more than one owner
// declares a resolvable @key, the cheapest reachable one (per the weighted
// graph rooted at group's own service) wins; ties keep declaration order.
// available is the set of field names current_group's own selection set
// already carries (or will, after sibling crossings at this level), used to
// prefer a key satisfiable without another hop.
func chooseEntityRoute(ctx *splitContext, group *FetchGroup, parentType, fieldName string, owners []*graph.SubGraph, available map[string]bool) (*graph.SubGraph, []string, error) {
	var candidateIDs []string
	candidateOwner := make(map[string]*graph.SubGraph)
	for _, o := range owners {
		if entity, ok := o.GetEntity(parentType); ok && entity.IsResolvable() {
			id := graph.NodeKey(o.Name, parentType, "")
			candidateIDs = append(candidateIDs, id)
			candidateOwner[id] = o
		}
	}
	if len(candidateIDs) == 0 {
		return nil, nil, newErr(KeyUnsatisfiable, "no resolvable @key for type %q reachable from %q", parentType, group.Service)
	}

	entry := graph.NodeKey(group.Service, parentType, "")
	chosenID := candidateIDs[0]
	if ctx.sg.Graph != nil {
		if id, _, ok := ctx.sg.Graph.CheapestCandidate([]string{entry}, candidateIDs); ok {
			chosenID = id
		}
	}
	owner := candidateOwner[chosenID]

	entity, _ := owner.GetEntity(parentType)
	availableFieldSet := fieldSetFromNames(available)
	keyNames := chooseKey(entity, availableFieldSet)

	var requires graph.FieldSet
	if field, ok := entity.Fields[fieldName]; ok {
		requires = field.Requires
	}

	repFields := []string{"__typename"}
	seen := map[string]bool{"__typename": true}
	for _, n := range keyNames {
		if !seen[n] {
			repFields = append(repFields, n)
			seen[n] = true
		}
	}
	for _, n := range requires.Names() {
		if !seen[n] {
			repFields = append(repFields, n)
			seen[n] = true
		}
	}
	return owner, repFields, nil
}

// chooseKey implements §4.3's key tie-break: among entity's resolvable
// @key directives, prefer (in declaration order) the first whose fields
// are already a Subset of available — i.e. fetchable from current_group
// without another hop — falling back to the first resolvable key overall
// when none qualifies.
func chooseKey(entity *graph.Entity, available graph.FieldSet) []string {
	var fallback graph.FieldSet
	haveFallback := false
	for _, key := range entity.Keys {
		if !key.Resolvable {
			continue
		}
		if !haveFallback {
			fallback = key.FieldSet
			haveFallback = true
		}
		if key.FieldSet.Subset(available) {
			return key.FieldSet.Names()
		}
	}
	return fallback.Names()
}

// fieldSetFromNames builds a flat FieldSet from a name set, for feeding
// FieldSet.Subset checks against ad hoc field-name collections (as opposed
// to ones parsed straight off a directive literal).
func fieldSetFromNames(names map[string]bool) graph.FieldSet {
	fs := make(graph.FieldSet, 0, len(names))
	for n := range names {
		fs = append(fs, graph.FieldSetSelection{Name: n})
	}
	return fs
}

func fieldTypeName(sg *graph.SuperGraph, parentType, fieldName string) (string, error) {
	if fieldName == "__typename" {
		return "String", nil
	}
	for _, def := range sg.Schema.Definitions {
		td, ok := def.(*ast.ObjectTypeDefinition)
		if !ok || td.Name.String() != parentType {
			continue
		}
		for _, f := range td.Fields {
			if f.Name.String() == fieldName {
				return unwrapNamedType(f.Type), nil
			}
		}
	}
	return "", newErr(UnknownField, "field %q not found on type %q", fieldName, parentType)
}

// fieldIsList reports whether fieldName is (possibly-non-null-)list typed
// on parentType; used to decide whether a "@" marker follows its path
// segment.
func fieldIsList(sg *graph.SuperGraph, parentType, fieldName string) (bool, error) {
	if fieldName == "__typename" {
		return false, nil
	}
	for _, def := range sg.Schema.Definitions {
		td, ok := def.(*ast.ObjectTypeDefinition)
		if !ok || td.Name.String() != parentType {
			continue
		}
		for _, f := range td.Fields {
			if f.Name.String() == fieldName {
				return isListType(f.Type), nil
			}
		}
	}
	return false, nil
}

func isListType(t ast.Type) bool {
	switch typ := t.(type) {
	case *ast.ListType:
		return true
	case *ast.NonNullType:
		return isListType(typ.Type)
	default:
		return false
	}
}

func unwrapNamedType(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NamedType:
		return typ.Name.String()
	case *ast.ListType:
		return unwrapNamedType(typ.Type)
	case *ast.NonNullType:
		return unwrapNamedType(typ.Type)
	default:
		return ""
	}
}
