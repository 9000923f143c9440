// Package plan defines the query planner's output data model: the
// immutable PlanNode tree (Fetch / Sequence / Parallel / Flatten) and its
// stable JSON serialization, consumed by the executor and any external
// caller.
package plan

import (
	json "github.com/goccy/go-json"
)

// Node is the sum type of plan nodes. Concrete types: *Fetch, *Sequence,
// *Parallel, *Flatten.
type Node interface {
	Kind() string
	isNode()
}

// RequiresSelection is one element of a Fetch's requires list: either a
// plain field or a typed inline fragment (used for entity representations).
type RequiresSelection interface {
	isRequiresSelection()
}

// RequiresField is a bare field reference inside a requires list, e.g.
// {"kind":"Field","name":"id"}.
type RequiresField struct {
	Name string
}

func (RequiresField) isRequiresSelection() {}

func (f RequiresField) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}{Kind: "Field", Name: f.Name})
}

// RequiresInlineFragment is a typed-fragment entry inside a requires list,
// e.g. {"kind":"InlineFragment","typeCondition":"User","selections":[...]}.
type RequiresInlineFragment struct {
	TypeCondition string
	Selections    []RequiresSelection
}

func (RequiresInlineFragment) isRequiresSelection() {}

func (f RequiresInlineFragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind          string              `json:"kind"`
		TypeCondition string              `json:"typeCondition"`
		Selections    []RequiresSelection `json:"selections"`
	}{Kind: "InlineFragment", TypeCondition: f.TypeCondition, Selections: f.Selections})
}

// Fetch is a request to a single subgraph service.
type Fetch struct {
	ServiceName    string
	Requires       []RequiresSelection // nil for non-entity fetches
	VariableUsages []string
	Operation      string
}

func (*Fetch) Kind() string { return "Fetch" }
func (*Fetch) isNode()      {}

func (f *Fetch) MarshalJSON() ([]byte, error) {
	variableUsages := f.VariableUsages
	if variableUsages == nil {
		variableUsages = []string{}
	}
	if f.Requires == nil {
		return json.Marshal(struct {
			Kind           string   `json:"kind"`
			ServiceName    string   `json:"serviceName"`
			VariableUsages []string `json:"variableUsages"`
			Operation      string   `json:"operation"`
		}{Kind: "Fetch", ServiceName: f.ServiceName, VariableUsages: variableUsages, Operation: f.Operation})
	}
	return json.Marshal(struct {
		Kind           string              `json:"kind"`
		ServiceName    string              `json:"serviceName"`
		Requires       []RequiresSelection `json:"requires"`
		VariableUsages []string            `json:"variableUsages"`
		Operation      string              `json:"operation"`
	}{Kind: "Fetch", ServiceName: f.ServiceName, Requires: f.Requires, VariableUsages: variableUsages, Operation: f.Operation})
}

// Sequence evaluates its children left-to-right; later nodes may depend on
// earlier results.
type Sequence struct {
	Nodes []Node
}

func (*Sequence) Kind() string { return "Sequence" }
func (*Sequence) isNode()      {}

func (s *Sequence) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Nodes []Node `json:"nodes"`
	}{Kind: "Sequence", Nodes: s.Nodes})
}

// Parallel evaluates its children concurrently; none depends on another.
type Parallel struct {
	Nodes []Node
}

func (*Parallel) Kind() string { return "Parallel" }
func (*Parallel) isNode()      {}

func (p *Parallel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Nodes []Node `json:"nodes"`
	}{Kind: "Parallel", Nodes: p.Nodes})
}

// Flatten indicates that Node's requires representations must be drawn by
// walking Path into the accumulated response, with "@" meaning "each
// element of a list".
type Flatten struct {
	Path []string
	Node Node
}

func (*Flatten) Kind() string { return "Flatten" }
func (*Flatten) isNode()      {}

func (f *Flatten) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string   `json:"kind"`
		Path []string `json:"path"`
		Node Node     `json:"node"`
	}{Kind: "Flatten", Path: f.Path, Node: f.Node})
}

// QueryPlan is the top-level output of a planning call. Node is nil only
// when the operation selects nothing resolvable.
type QueryPlan struct {
	Node Node
}

func (q *QueryPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Node Node   `json:"node,omitempty"`
	}{Kind: "QueryPlan", Node: q.Node})
}

// Serialize produces the stable JSON form described by the plan serializer.
func Serialize(qp *QueryPlan) ([]byte, error) {
	return json.Marshal(qp)
}
