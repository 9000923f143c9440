package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
)

// printer renders a FetchGroup's selection set (plus any fragments C6
// hoisted out of it) into the operation string a subgraph receives.
// Grounded on federation/executor/query_builder_v2.go's writeSelection /
// writeValue manual pretty-printer; reused here as the single print path
// for both root and entity fetches, with fragments appended once C6 has
// run.
type printer struct {
	sg *graph.SuperGraph
}

func newPrinter(sg *graph.SuperGraph) *printer {
	return &printer{sg: sg}
}

// print renders the full operation text for group and returns the sorted
// list of client variable names it references (not including the
// synthetic $representations variable entity fetches declare).
func (p *printer) print(operationKind string, group *FetchGroup) (string, []string) {
	varNames := p.collectVariables(group.SelectionSet)
	types := make(map[string]string, len(varNames))
	for _, v := range varNames {
		types[v] = p.inferVariableType(v, group.ParentType, group.SelectionSet)
	}

	var sb strings.Builder
	if group.IsEntity {
		sb.WriteString("query($representations:[_Any!]!")
		for _, v := range varNames {
			sb.WriteString(",$")
			sb.WriteString(v)
			sb.WriteString(":")
			sb.WriteString(types[v])
		}
		sb.WriteString("){_entities(representations:$representations){...on ")
		sb.WriteString(group.ParentType)
		sb.WriteString("{")
		for _, sel := range group.SelectionSet {
			p.writeSelection(&sb, sel, group.ParentType)
		}
		sb.WriteString("}}}")
	} else {
		switch {
		case operationKind == "mutation":
			sb.WriteString("mutation")
			p.writeVarHeader(&sb, varNames, types)
		case len(varNames) > 0:
			sb.WriteString("query")
			p.writeVarHeader(&sb, varNames, types)
		}
		sb.WriteString("{")
		for _, sel := range group.SelectionSet {
			p.writeSelection(&sb, sel, group.ParentType)
		}
		sb.WriteString("}")
	}

	p.writeFragments(&sb, group.InternalFragments)

	return sb.String(), varNames
}

func (p *printer) writeVarHeader(sb *strings.Builder, varNames []string, types map[string]string) {
	sb.WriteString("(")
	for i, v := range varNames {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("$")
		sb.WriteString(v)
		sb.WriteString(":")
		sb.WriteString(types[v])
	}
	sb.WriteString(")")
}

func (p *printer) writeFragments(sb *strings.Builder, frags []*ast.FragmentDefinition) {
	for _, f := range frags {
		sb.WriteString("fragment ")
		sb.WriteString(f.Name.String())
		sb.WriteString(" on ")
		sb.WriteString(f.TypeCondition.Name.String())
		sb.WriteString("{")
		for _, sel := range f.SelectionSet {
			p.writeSelection(sb, sel, f.TypeCondition.Name.String())
		}
		sb.WriteString("}")
	}
}

func (p *printer) writeSelection(sb *strings.Builder, sel ast.Selection, parentType string) {
	// Sibling selections are separated by one space; the first selection of
	// a set follows its opening brace directly.
	if written := sb.String(); len(written) > 0 && written[len(written)-1] != '{' {
		sb.WriteString(" ")
	}
	switch s := sel.(type) {
	case *ast.Field:
		fieldName := s.Name.String()
		if s.Alias != nil && s.Alias.String() != "" {
			sb.WriteString(s.Alias.String())
			sb.WriteString(":")
		}
		sb.WriteString(fieldName)

		if len(s.Arguments) > 0 {
			sb.WriteString("(")
			for i, arg := range s.Arguments {
				if i > 0 {
					sb.WriteString(",")
				}
				sb.WriteString(arg.Name.String())
				sb.WriteString(":")
				p.writeValue(sb, arg.Value)
			}
			sb.WriteString(")")
		}

		if len(s.SelectionSet) > 0 {
			fieldType, _ := fieldTypeName(p.sg, parentType, fieldName)
			sb.WriteString("{")
			for _, sub := range s.SelectionSet {
				p.writeSelection(sb, sub, fieldType)
			}
			sb.WriteString("}")
		}

	case *ast.InlineFragment:
		typeCondition := s.TypeCondition.Name.String()
		sb.WriteString("...on ")
		sb.WriteString(typeCondition)
		sb.WriteString("{")
		for _, sub := range s.SelectionSet {
			p.writeSelection(sb, sub, typeCondition)
		}
		sb.WriteString("}")

	case *ast.FragmentSpread:
		sb.WriteString("...")
		sb.WriteString(s.Name.String())
	}
}

func (p *printer) writeValue(sb *strings.Builder, val ast.Value) {
	switch v := val.(type) {
	case *ast.StringValue:
		sb.WriteString("\"")
		sb.WriteString(v.Value)
		sb.WriteString("\"")
	case *ast.IntValue:
		sb.WriteString(fmt.Sprintf("%d", v.Value))
	case *ast.FloatValue:
		sb.WriteString(fmt.Sprintf("%v", v.Value))
	case *ast.BooleanValue:
		sb.WriteString(fmt.Sprintf("%t", v.Value))
	case *ast.Variable:
		sb.WriteString("$")
		sb.WriteString(v.Name)
	case *ast.ListValue:
		sb.WriteString("[")
		for i, item := range v.Values {
			if i > 0 {
				sb.WriteString(",")
			}
			p.writeValue(sb, item)
		}
		sb.WriteString("]")
	case *ast.ObjectValue:
		sb.WriteString("{")
		for i, field := range v.Fields {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(field.Name.String())
			sb.WriteString(":")
			p.writeValue(sb, field.Value)
		}
		sb.WriteString("}")
	case *ast.EnumValue:
		sb.WriteString(v.Value)
	default:
		sb.WriteString("null")
	}
}

func (p *printer) collectVariables(selections []ast.Selection) []string {
	vars := make(map[string]bool)
	p.collectVariablesRecursive(selections, vars)
	names := make([]string, 0, len(vars))
	for v := range vars {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

func (p *printer) collectVariablesRecursive(selections []ast.Selection, vars map[string]bool) {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			for _, arg := range s.Arguments {
				p.collectVariablesFromValue(arg.Value, vars)
			}
			if len(s.SelectionSet) > 0 {
				p.collectVariablesRecursive(s.SelectionSet, vars)
			}
		case *ast.InlineFragment:
			p.collectVariablesRecursive(s.SelectionSet, vars)
		}
	}
}

func (p *printer) collectVariablesFromValue(val ast.Value, vars map[string]bool) {
	switch v := val.(type) {
	case *ast.Variable:
		vars[v.Name] = true
	case *ast.ListValue:
		for _, item := range v.Values {
			p.collectVariablesFromValue(item, vars)
		}
	case *ast.ObjectValue:
		for _, field := range v.Fields {
			p.collectVariablesFromValue(field.Value, vars)
		}
	}
}

// inferVariableType finds the field+argument that uses $name within
// selections (rooted at parentType) and resolves that argument's
// declared type against the schema. Falls back to "String" when the
// usage site can't be located. Grounded on query_builder_v2.go's
// getVariableTypeFromSchema/getArgumentTypeFromSchema, made recursive:
// the teacher's version only checked the selection's top level, missing
// variables used on nested field arguments.
func (p *printer) inferVariableType(name, parentType string, selections []ast.Selection) string {
	fieldName, argName, fieldParentType, ok := findVariableUsage(name, parentType, selections, p.sg)
	if !ok {
		return "String"
	}
	if t := p.argumentType(fieldParentType, fieldName, argName); t != "" {
		return t
	}
	return "String"
}

func findVariableUsage(name, parentType string, selections []ast.Selection, sg *graph.SuperGraph) (fieldName, argName, fieldParentType string, ok bool) {
	for _, sel := range selections {
		field, isField := sel.(*ast.Field)
		if !isField {
			continue
		}
		for _, arg := range field.Arguments {
			if v, isVar := arg.Value.(*ast.Variable); isVar && v.Name == name {
				return field.Name.String(), arg.Name.String(), parentType, true
			}
		}
		if len(field.SelectionSet) > 0 {
			childType, _ := fieldTypeName(sg, parentType, field.Name.String())
			if fn, an, pt, found := findVariableUsage(name, childType, field.SelectionSet, sg); found {
				return fn, an, pt, true
			}
		}
	}
	return "", "", "", false
}

func (p *printer) argumentType(parentType, fieldName, argName string) string {
	for _, def := range p.sg.Schema.Definitions {
		td, ok := def.(*ast.ObjectTypeDefinition)
		if !ok || td.Name.String() != parentType {
			continue
		}
		for _, field := range td.Fields {
			if field.Name.String() != fieldName {
				continue
			}
			for _, arg := range field.Arguments {
				if arg.Name.String() == argName {
					return arg.Type.String()
				}
			}
		}
	}
	return ""
}
