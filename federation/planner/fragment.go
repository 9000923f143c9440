package planner

import (
	"fmt"
	"strings"

	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/token"
)

// fragmentOccurrence tracks one candidate selection-set shape seen while
// scanning a fetch group's tree, keyed by (type condition, structural
// content).
type fragmentOccurrence struct {
	typeName   string
	selections []ast.Selection
	count      int
}

// fragmentize hoists selection sets that occur more than once (same type
// condition, same structural content) into synthetic fragments, appended
// to group.InternalFragments in first-encounter order, replacing each
// occurrence with a lone FragmentSpread. Operates on the already-built
// ast.Selection tree (not the printed string); numbering starts at 0 for
// each group.
func fragmentize(sg *graph.SuperGraph, group *FetchGroup) {
	occurrences := make(map[string]*fragmentOccurrence)
	var order []string

	var scan func(sels []ast.Selection, parentType string)
	scan = func(sels []ast.Selection, parentType string) {
		for _, sel := range sels {
			field, ok := sel.(*ast.Field)
			if !ok || len(field.SelectionSet) == 0 {
				continue
			}
			if _, isSpread := field.SelectionSet[0].(*ast.FragmentSpread); isSpread && len(field.SelectionSet) == 1 {
				continue
			}
			fieldType, err := fieldTypeName(sg, parentType, field.Name.String())
			if err != nil {
				continue
			}
			key := fieldType + "|" + keyOfSelections(field.SelectionSet)
			if occ, exists := occurrences[key]; exists {
				occ.count++
			} else {
				occurrences[key] = &fragmentOccurrence{typeName: fieldType, selections: field.SelectionSet, count: 1}
				order = append(order, key)
			}
			scan(field.SelectionSet, fieldType)
		}
	}
	scan(group.SelectionSet, group.ParentType)

	fragmentName := make(map[string]string)
	next := 0
	for _, key := range order {
		occ := occurrences[key]
		if occ.count < 2 {
			continue
		}
		name := fmt.Sprintf("__QueryPlanFragment_%d__", next)
		next++
		fragmentName[key] = name
		group.InternalFragments = append(group.InternalFragments, &ast.FragmentDefinition{
			Name:          &ast.Name{Token: token.Token{Type: token.IDENT, Literal: name}, Value: name},
			TypeCondition: &ast.NamedType{Name: &ast.Name{Token: token.Token{Type: token.IDENT, Literal: occ.typeName}, Value: occ.typeName}},
			SelectionSet:  occ.selections,
		})
	}
	if len(fragmentName) == 0 {
		return
	}

	var rewrite func(sels []ast.Selection, parentType string)
	rewrite = func(sels []ast.Selection, parentType string) {
		for _, sel := range sels {
			field, ok := sel.(*ast.Field)
			if !ok || len(field.SelectionSet) == 0 {
				continue
			}
			if _, isSpread := field.SelectionSet[0].(*ast.FragmentSpread); isSpread && len(field.SelectionSet) == 1 {
				continue
			}
			fieldType, err := fieldTypeName(sg, parentType, field.Name.String())
			if err != nil {
				continue
			}
			key := fieldType + "|" + keyOfSelections(field.SelectionSet)
			if name, hoisted := fragmentName[key]; hoisted {
				original := field.SelectionSet
				field.SelectionSet = []ast.Selection{&ast.FragmentSpread{Name: &ast.Name{Token: token.Token{Type: token.IDENT, Literal: name}, Value: name}}}
				rewrite(original, fieldType)
				continue
			}
			rewrite(field.SelectionSet, fieldType)
		}
	}
	rewrite(group.SelectionSet, group.ParentType)
}

// fragmentizeTree applies fragmentize to group and, recursively, to every
// group it owns (its dependents), so the auto-fragmentizer pass covers an
// entire fetch-group forest, not just one group's own selection set.
func fragmentizeTree(sg *graph.SuperGraph, group *FetchGroup) {
	fragmentize(sg, group)
	for _, dep := range group.Dependents {
		fragmentizeTree(sg, dep)
	}
}

func keyOfSelections(sels []ast.Selection) string {
	var sb strings.Builder
	for _, s := range sels {
		sb.WriteString(keyOfSelection(s))
	}
	return sb.String()
}

func keyOfSelection(sel ast.Selection) string {
	switch s := sel.(type) {
	case *ast.Field:
		var sb strings.Builder
		if s.Alias != nil && s.Alias.String() != "" {
			sb.WriteString(s.Alias.String())
			sb.WriteString(":")
		}
		sb.WriteString(s.Name.String())
		for _, a := range s.Arguments {
			sb.WriteString("(")
			sb.WriteString(a.Name.String())
			sb.WriteString("=")
			sb.WriteString(keyOfValue(a.Value))
			sb.WriteString(")")
		}
		if len(s.SelectionSet) > 0 {
			sb.WriteString("{")
			sb.WriteString(keyOfSelections(s.SelectionSet))
			sb.WriteString("}")
		}
		return sb.String()
	case *ast.InlineFragment:
		return "...on " + s.TypeCondition.Name.String() + "{" + keyOfSelections(s.SelectionSet) + "}"
	case *ast.FragmentSpread:
		return "..." + s.Name.String()
	default:
		return ""
	}
}

func keyOfValue(val ast.Value) string {
	switch v := val.(type) {
	case *ast.StringValue:
		return "\"" + v.Value + "\""
	case *ast.IntValue:
		return fmt.Sprintf("%d", v.Value)
	case *ast.FloatValue:
		return fmt.Sprintf("%v", v.Value)
	case *ast.BooleanValue:
		return fmt.Sprintf("%t", v.Value)
	case *ast.Variable:
		return "$" + v.Name
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		var sb strings.Builder
		sb.WriteString("[")
		for i, item := range v.Values {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(keyOfValue(item))
		}
		sb.WriteString("]")
		return sb.String()
	case *ast.ObjectValue:
		var sb strings.Builder
		sb.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(f.Name.String())
			sb.WriteString(":")
			sb.WriteString(keyOfValue(f.Value))
		}
		sb.WriteString("}")
		return sb.String()
	default:
		return "null"
	}
}
