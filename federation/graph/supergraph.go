package graph

import (
	"fmt"

	"github.com/n9te9/graphql-parser/ast"
)

// SuperGraph is the composed schema plus the per-field ownership index built
// from a set of subgraphs. Composition here is a minimal, non-validating
// merge (concatenate type definitions/extensions, union fields by name): it
// produces the "already-composed schema" the planner consumes, it does not
// attempt satisfiability proofs or cross-subgraph type-compatibility checks.
type SuperGraph struct {
	SubGraphs []*SubGraph              // List of subgraphs
	Schema    *ast.Document            // Composed schema
	Ownership map[string][]*SubGraph   // Field ownership map (e.g., "Product.id" -> [SubGraph])
	Graph     *WeightedDirectedGraph   // Cross-subgraph cost graph, used for @key tie-breaks
}

// NewSuperGraph composes a super graph from a list of subgraphs.
func NewSuperGraph(subGraphs []*SubGraph) (*SuperGraph, error) {
	sg := &SuperGraph{
		SubGraphs: subGraphs,
		Ownership: make(map[string][]*SubGraph),
	}

	if err := sg.composeSchema(); err != nil {
		return nil, err
	}
	if err := sg.buildOwnershipMap(); err != nil {
		return nil, err
	}
	sg.Graph = BuildGraph(subGraphs)

	return sg, nil
}

// composeSchema composes schemas from all subgraphs.
func (sg *SuperGraph) composeSchema() error {
	if len(sg.SubGraphs) == 0 {
		return fmt.Errorf("no subgraphs to compose")
	}

	sg.Schema = &ast.Document{
		Definitions: make([]ast.Definition, 0),
	}

	for _, subGraph := range sg.SubGraphs {
		sg.mergeSchemaDeep(subGraph.Schema)
	}

	return nil
}

// mergeSchemaDeep merges a new schema into the existing schema using deep copy.
func (sg *SuperGraph) mergeSchemaDeep(newSchema *ast.Document) {
	for _, newDef := range newSchema.Definitions {
		switch newTypeDef := newDef.(type) {
		case *ast.ObjectTypeDefinition:
			sg.mergeObjectTypeDefinitionDeep(newTypeDef)
		case *ast.ObjectTypeExtension:
			sg.mergeObjectTypeExtensionDeep(newTypeDef)
		case *ast.InterfaceTypeDefinition:
			sg.mergeInterfaceTypeDefinition(newTypeDef)
		case *ast.InputObjectTypeDefinition:
			sg.mergeInputObjectTypeDefinition(newTypeDef)
		case *ast.EnumTypeDefinition:
			sg.mergeEnumTypeDefinition(newTypeDef)
		case *ast.ScalarTypeDefinition:
			sg.mergeScalarTypeDefinition(newTypeDef)
		case *ast.UnionTypeDefinition:
			sg.mergeUnionTypeDefinition(newTypeDef)
		case *ast.DirectiveDefinition:
			sg.mergeDirectiveDefinition(newTypeDef)
		case *ast.SchemaDefinition:
			sg.Schema.Definitions = append(sg.Schema.Definitions, newTypeDef)
		}
	}
}

func (sg *SuperGraph) mergeObjectTypeDefinitionDeep(newDef *ast.ObjectTypeDefinition) {
	var existingDef *ast.ObjectTypeDefinition
	for _, def := range sg.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok && objDef.Name.String() == newDef.Name.String() {
			existingDef = objDef
			break
		}
	}

	if existingDef != nil {
		newFields := copyFields(newDef.Fields)
		existingDef.Fields = mergeFields(existingDef.Fields, newFields)
		existingDef.Directives = append(existingDef.Directives, copyDirectives(newDef.Directives)...)
	} else {
		copiedDef := &ast.ObjectTypeDefinition{
			Name:       newDef.Name,
			Interfaces: newDef.Interfaces,
			Fields:     copyFields(newDef.Fields),
			Directives: copyDirectives(newDef.Directives),
		}
		sg.Schema.Definitions = append(sg.Schema.Definitions, copiedDef)
	}
}

func (sg *SuperGraph) mergeObjectTypeExtensionDeep(newExt *ast.ObjectTypeExtension) {
	var existingDef *ast.ObjectTypeDefinition
	for _, def := range sg.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok && objDef.Name.String() == newExt.Name.String() {
			existingDef = objDef
			break
		}
	}

	if existingDef != nil {
		newFields := copyFields(newExt.Fields)
		existingDef.Fields = mergeFields(existingDef.Fields, newFields)
		existingDef.Directives = append(existingDef.Directives, copyDirectives(newExt.Directives)...)
	}
}

func copyFields(fields []*ast.FieldDefinition) []*ast.FieldDefinition {
	if fields == nil {
		return nil
	}
	copied := make([]*ast.FieldDefinition, len(fields))
	for i, field := range fields {
		copied[i] = &ast.FieldDefinition{
			Name:       field.Name,
			Arguments:  field.Arguments,
			Type:       field.Type,
			Directives: copyDirectives(field.Directives),
		}
	}
	return copied
}

func copyDirectives(directives []*ast.Directive) []*ast.Directive {
	if directives == nil {
		return nil
	}
	copied := make([]*ast.Directive, len(directives))
	for i, dir := range directives {
		copied[i] = &ast.Directive{
			Name:      dir.Name,
			Arguments: dir.Arguments,
		}
	}
	return copied
}

func mergeFields(existing, newFields []*ast.FieldDefinition) []*ast.FieldDefinition {
	seen := make(map[string]bool, len(existing))
	result := make([]*ast.FieldDefinition, 0, len(existing)+len(newFields))
	for _, field := range existing {
		seen[field.Name.String()] = true
		result = append(result, field)
	}
	for _, field := range newFields {
		if !seen[field.Name.String()] {
			seen[field.Name.String()] = true
			result = append(result, field)
		}
	}
	return result
}

func (sg *SuperGraph) mergeInterfaceTypeDefinition(newDef *ast.InterfaceTypeDefinition) {
	var existingDef *ast.InterfaceTypeDefinition
	for _, def := range sg.Schema.Definitions {
		if intDef, ok := def.(*ast.InterfaceTypeDefinition); ok && intDef.Name.String() == newDef.Name.String() {
			existingDef = intDef
			break
		}
	}
	if existingDef != nil {
		existingDef.Fields = append(existingDef.Fields, newDef.Fields...)
		existingDef.Directives = append(existingDef.Directives, newDef.Directives...)
	} else {
		sg.Schema.Definitions = append(sg.Schema.Definitions, newDef)
	}
}

func (sg *SuperGraph) mergeInputObjectTypeDefinition(newDef *ast.InputObjectTypeDefinition) {
	var existingDef *ast.InputObjectTypeDefinition
	for _, def := range sg.Schema.Definitions {
		if inputDef, ok := def.(*ast.InputObjectTypeDefinition); ok && inputDef.Name.String() == newDef.Name.String() {
			existingDef = inputDef
			break
		}
	}
	if existingDef != nil {
		existingDef.Fields = append(existingDef.Fields, newDef.Fields...)
		existingDef.Directives = append(existingDef.Directives, newDef.Directives...)
	} else {
		sg.Schema.Definitions = append(sg.Schema.Definitions, newDef)
	}
}

func (sg *SuperGraph) mergeEnumTypeDefinition(newDef *ast.EnumTypeDefinition) {
	var existingDef *ast.EnumTypeDefinition
	for _, def := range sg.Schema.Definitions {
		if enumDef, ok := def.(*ast.EnumTypeDefinition); ok && enumDef.Name.String() == newDef.Name.String() {
			existingDef = enumDef
			break
		}
	}
	if existingDef != nil {
		existingDef.Values = append(existingDef.Values, newDef.Values...)
		existingDef.Directives = append(existingDef.Directives, newDef.Directives...)
	} else {
		sg.Schema.Definitions = append(sg.Schema.Definitions, newDef)
	}
}

func (sg *SuperGraph) mergeScalarTypeDefinition(newDef *ast.ScalarTypeDefinition) {
	for _, def := range sg.Schema.Definitions {
		if scalarDef, ok := def.(*ast.ScalarTypeDefinition); ok && scalarDef.Name.String() == newDef.Name.String() {
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, newDef)
}

func (sg *SuperGraph) mergeUnionTypeDefinition(newDef *ast.UnionTypeDefinition) {
	var existingDef *ast.UnionTypeDefinition
	for _, def := range sg.Schema.Definitions {
		if unionDef, ok := def.(*ast.UnionTypeDefinition); ok && unionDef.Name.String() == newDef.Name.String() {
			existingDef = unionDef
			break
		}
	}
	if existingDef != nil {
		existingDef.Types = append(existingDef.Types, newDef.Types...)
		existingDef.Directives = append(existingDef.Directives, newDef.Directives...)
	} else {
		sg.Schema.Definitions = append(sg.Schema.Definitions, newDef)
	}
}

func (sg *SuperGraph) mergeDirectiveDefinition(newDef *ast.DirectiveDefinition) {
	for _, def := range sg.Schema.Definitions {
		if dirDef, ok := def.(*ast.DirectiveDefinition); ok && dirDef.Name.String() == newDef.Name.String() {
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, newDef)
}

// buildOwnershipMap determines which subgraphs can resolve each field in the
// composed schema, honoring @external and @override.
func (sg *SuperGraph) buildOwnershipMap() error {
	for _, def := range sg.Schema.Definitions {
		objDef, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			continue
		}

		typeName := objDef.Name.String()

		for _, field := range objDef.Fields {
			fieldName := field.Name.String()
			key := fmt.Sprintf("%s.%s", typeName, fieldName)

			var overrideFrom string
			var overrideSubGraph *SubGraph

			for _, subGraph := range sg.SubGraphs {
				if entity, exists := subGraph.GetEntity(typeName); exists {
					if entityField, ok := entity.Fields[fieldName]; ok {
						if override := entityField.GetOverride(); override != nil {
							overrideFrom = override.From
							overrideSubGraph = subGraph
							break
						}
					}
				}
			}

			for _, subGraph := range sg.SubGraphs {
				if overrideFrom != "" && subGraph.Name == overrideFrom {
					continue
				}
				if sg.canResolveField(subGraph, typeName, fieldName) {
					sg.Ownership[key] = append(sg.Ownership[key], subGraph)
				}
			}

			if overrideSubGraph != nil {
				found := false
				for _, owner := range sg.Ownership[key] {
					if owner.Name == overrideSubGraph.Name {
						found = true
						break
					}
				}
				if !found {
					sg.Ownership[key] = append(sg.Ownership[key], overrideSubGraph)
				}
			}
		}
	}

	return nil
}

// canResolveField checks if the specified subgraph can resolve the field,
// excluding fields marked @external.
func (sg *SuperGraph) canResolveField(subGraph *SubGraph, typeName, fieldName string) bool {
	for _, def := range subGraph.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok && objDef.Name.String() == typeName {
			for _, field := range objDef.Fields {
				if field.Name.String() == fieldName {
					return !hasDirective(field.Directives, "external")
				}
			}
			return false
		}
	}

	for _, def := range subGraph.Schema.Definitions {
		if objExt, ok := def.(*ast.ObjectTypeExtension); ok && objExt.Name.String() == typeName {
			for _, field := range objExt.Fields {
				if field.Name.String() == fieldName {
					return !hasDirective(field.Directives, "external")
				}
			}
			return false
		}
	}

	return false
}

func hasDirective(directives []*ast.Directive, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// SubGraphByName returns the subgraph registered under name, or nil if none
// matches. Used by the executor to resolve a plan Fetch's ServiceName to a
// host to call.
func (sg *SuperGraph) SubGraphByName(name string) *SubGraph {
	for _, s := range sg.SubGraphs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// GetSubGraphsForField returns the list of subgraphs that can resolve the field.
func (sg *SuperGraph) GetSubGraphsForField(typeName, fieldName string) []*SubGraph {
	key := fmt.Sprintf("%s.%s", typeName, fieldName)
	return sg.Ownership[key]
}

// GetEntityOwnerSubGraph returns the subgraph that owns (non-extension,
// resolvable) the entity, falling back to a resolvable extension.
func (sg *SuperGraph) GetEntityOwnerSubGraph(typeName string) *SubGraph {
	for _, subGraph := range sg.SubGraphs {
		if entity, exists := subGraph.GetEntity(typeName); exists && !entity.IsExtension() && entity.IsResolvable() {
			return subGraph
		}
	}
	for _, subGraph := range sg.SubGraphs {
		if entity, exists := subGraph.GetEntity(typeName); exists && entity.IsResolvable() {
			return subGraph
		}
	}
	return nil
}

// IsEntityType checks if a type is an entity (has a resolvable @key in any subgraph).
func (sg *SuperGraph) IsEntityType(typeName string) bool {
	return sg.GetEntityOwnerSubGraph(typeName) != nil
}

// GetFieldOwnerSubGraph returns the first owning subgraph for a field.
func (sg *SuperGraph) GetFieldOwnerSubGraph(typeName, fieldName string) *SubGraph {
	key := fmt.Sprintf("%s.%s", typeName, fieldName)
	owners := sg.Ownership[key]
	if len(owners) > 0 {
		return owners[0]
	}
	return nil
}

// IsInaccessible reports whether a field carries @inaccessible in whichever
// subgraph defines it.
func (sg *SuperGraph) IsInaccessible(typeName, fieldName string) bool {
	for _, subGraph := range sg.SubGraphs {
		if entity, ok := subGraph.GetEntity(typeName); ok {
			if field, ok := entity.Fields[fieldName]; ok && field.IsInaccessible() {
				return true
			}
		}
		for _, def := range subGraph.Schema.Definitions {
			if objDef, ok := def.(*ast.ObjectTypeDefinition); ok && objDef.Name.String() == typeName {
				for _, field := range objDef.Fields {
					if field.Name.String() == fieldName && hasDirective(field.Directives, "inaccessible") {
						return true
					}
				}
			}
		}
	}
	return false
}

// IsAbstractType reports whether typeName names an interface or union in the
// composed schema.
func (sg *SuperGraph) IsAbstractType(typeName string) bool {
	for _, def := range sg.Schema.Definitions {
		switch t := def.(type) {
		case *ast.InterfaceTypeDefinition:
			if t.Name.String() == typeName {
				return true
			}
		case *ast.UnionTypeDefinition:
			if t.Name.String() == typeName {
				return true
			}
		}
	}
	return false
}

// Implementors returns the concrete object types that implement the named
// interface, or the member types of the named union, in declaration order.
// Returns an empty slice when typeName is not a known abstract type or when
// no object type implements the named interface; NewPlanner's schema
// validation reports an abstract type with no implementors as SchemaInvalid.
func (sg *SuperGraph) Implementors(typeName string) []string {
	for _, def := range sg.Schema.Definitions {
		if union, ok := def.(*ast.UnionTypeDefinition); ok && union.Name.String() == typeName {
			members := make([]string, 0, len(union.Types))
			for _, t := range union.Types {
				members = append(members, t.Name.String())
			}
			return members
		}
	}

	var implementors []string
	for _, def := range sg.Schema.Definitions {
		objDef, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			continue
		}
		for _, iface := range objDef.Interfaces {
			if iface.Name.String() == typeName {
				implementors = append(implementors, objDef.Name.String())
				break
			}
		}
	}
	return implementors
}

// Overridden returns the @override information for a field, if any subgraph
// declares one.
func (sg *SuperGraph) Overridden(typeName, fieldName string) *Override {
	for _, subGraph := range sg.SubGraphs {
		if entity, ok := subGraph.GetEntity(typeName); ok {
			if field, ok := entity.Fields[fieldName]; ok {
				if ov := field.GetOverride(); ov != nil {
					return ov
				}
			}
		}
	}
	return nil
}
