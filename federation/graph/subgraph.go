package graph

import (
	"fmt"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// EntityKey represents one @key directive declared on an entity.
type EntityKey struct {
	FieldSet   FieldSet // parsed "fields" argument
	Resolvable bool     // resolvable argument of @key, default true
}

// Override captures an @override(from: "service") directive.
type Override struct {
	From string
}

// Field represents field information of an Entity.
type Field struct {
	Name           string   // Field name
	Type           ast.Type // Field type
	Requires       FieldSet // Fields specified in @requires directive
	Provides       FieldSet // Fields specified in @provides directive
	isShareable    bool     // Whether @shareable directive is present
	isExternal     bool     // Whether @external directive is present
	isInaccessible bool     // Whether @inaccessible directive is present
	override       *Override
}

// Entity represents an ObjectType with @key directive.
type Entity struct {
	Keys        []EntityKey       // Key information of the Entity
	isExtension bool              // Whether defined as an extension
	Fields      map[string]*Field // Field map with field name as key
}

// SubGraph represents a single subgraph's federation metadata.
type SubGraph struct {
	Name     string             // Subgraph name (e.g., "product")
	Host     string             // Host (e.g., "product.example.com")
	Schema   *ast.Document      // Schema AST
	entities map[string]*Entity // Entity map with entity name as key
}

// NewSubGraph parses a subgraph's SDL and extracts its entities, analyzing
// @key, @requires, @provides, @shareable, @external, @override and
// @inaccessible directives.
func NewSubGraph(name string, src []byte, host string) (*SubGraph, error) {
	l := lexer.New(string(src))
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse error: %v", p.Errors())
	}

	sg := &SubGraph{
		Name:     name,
		Host:     host,
		Schema:   doc,
		entities: make(map[string]*Entity),
	}

	for _, def := range doc.Definitions {
		if objType, ok := def.(*ast.ObjectTypeDefinition); ok {
			if isEntity(objType.Directives) {
				entity := &Entity{
					Keys:        parseEntityKeys(objType.Directives),
					isExtension: false,
					Fields:      make(map[string]*Field),
				}
				for _, field := range objType.Fields {
					entity.Fields[field.Name.String()] = parseField(field)
				}
				sg.entities[objType.Name.String()] = entity
			}
		}

		if objExt, ok := def.(*ast.ObjectTypeExtension); ok {
			if isEntity(objExt.Directives) {
				entity := &Entity{
					Keys:        parseEntityKeys(objExt.Directives),
					isExtension: true,
					Fields:      make(map[string]*Field),
				}
				for _, field := range objExt.Fields {
					entity.Fields[field.Name.String()] = parseField(field)
				}
				sg.entities[objExt.Name.String()] = entity
			}
		}
	}

	return sg, nil
}

// GetEntities returns the entities map.
func (sg *SubGraph) GetEntities() map[string]*Entity {
	return sg.entities
}

// GetEntity returns the Entity with the specified name.
func (sg *SubGraph) GetEntity(name string) (*Entity, bool) {
	entity, ok := sg.entities[name]
	return entity, ok
}

func isEntity(directives []*ast.Directive) bool {
	for _, d := range directives {
		if d.Name == "key" {
			return true
		}
	}
	return false
}

func parseEntityKeys(directives []*ast.Directive) []EntityKey {
	var keys []EntityKey

	for _, d := range directives {
		if d.Name != "key" {
			continue
		}
		key := EntityKey{Resolvable: true}

		for _, arg := range d.Arguments {
			switch arg.Name.String() {
			case "fields":
				key.FieldSet = ParseFieldSet(strings.Trim(arg.Value.String(), "\""))
			case "resolvable":
				if arg.Value.String() == "false" {
					key.Resolvable = false
				}
			}
		}

		keys = append(keys, key)
	}

	return keys
}

func parseField(field *ast.FieldDefinition) *Field {
	f := &Field{
		Name: field.Name.String(),
		Type: field.Type,
	}

	for _, d := range field.Directives {
		switch d.Name {
		case "requires":
			if len(d.Arguments) > 0 {
				f.Requires = ParseFieldSet(strings.Trim(d.Arguments[0].Value.String(), "\""))
			}
		case "provides":
			if len(d.Arguments) > 0 {
				f.Provides = ParseFieldSet(strings.Trim(d.Arguments[0].Value.String(), "\""))
			}
		case "shareable":
			f.isShareable = true
		case "external":
			f.isExternal = true
		case "inaccessible":
			f.isInaccessible = true
		case "override":
			for _, arg := range d.Arguments {
				if arg.Name.String() == "from" {
					f.override = &Override{From: strings.Trim(arg.Value.String(), "\"")}
				}
			}
		}
	}

	return f
}

// IsShareable returns whether the field has @shareable directive.
func (f *Field) IsShareable() bool { return f.isShareable }

// IsExternal returns whether the field has @external directive.
func (f *Field) IsExternal() bool { return f.isExternal }

// IsInaccessible returns whether the field has @inaccessible directive.
func (f *Field) IsInaccessible() bool { return f.isInaccessible }

// GetOverride returns the field's @override information, or nil if absent.
func (f *Field) GetOverride() *Override { return f.override }

// IsExtension returns whether the Entity is defined as an extension.
func (e *Entity) IsExtension() bool { return e.isExtension }

// IsResolvable returns whether the Entity has at least one resolvable key.
func (e *Entity) IsResolvable() bool {
	for _, key := range e.Keys {
		if key.Resolvable {
			return true
		}
	}
	return false
}
