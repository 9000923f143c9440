// Package executor turns a plan.QueryPlan into subgraph HTTP calls and a
// single merged response, walking the Fetch/Sequence/Parallel/Flatten tree
// the planner produced.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/go-graphql-federation-gateway/federation/plan"
	"github.com/n9te9/graphql-parser/ast"
	"golang.org/x/sync/errgroup"
)

// GraphQLError represents a GraphQL error with path information, the shape
// the /graphql endpoint's "errors" array is rendered in.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Executor runs a query plan against a fixed set of subgraphs. A single
// Executor is reused across requests; it carries no per-request state.
type Executor struct {
	httpClient *http.Client
	superGraph *graph.SuperGraph
}

// NewExecutor builds an Executor that resolves a Fetch's ServiceName against
// superGraph's subgraphs to find a host to call.
func NewExecutor(httpClient *http.Client, superGraph *graph.SuperGraph) *Executor {
	return &Executor{httpClient: httpClient, superGraph: superGraph}
}

// execState is the mutable state threaded through one Execute call: the
// response data under construction and any errors collected along the way.
type execState struct {
	mu     sync.Mutex
	data   map[string]interface{}
	errors []GraphQLError
}

// Execute runs qp to completion and returns a GraphQL response envelope
// ({"data": ..., "errors": [...]}) pruned down to originalDoc's selection
// set. A subgraph failure is recorded as a GraphQL error and its fields are
// left absent rather than aborting the whole request.
func (e *Executor) Execute(ctx context.Context, qp *plan.QueryPlan, variables map[string]interface{}, originalDoc *ast.Document) (map[string]interface{}, error) {
	state := &execState{data: make(map[string]interface{})}

	if qp.Node != nil {
		if err := e.runNode(ctx, state, qp.Node, nil, nil, variables); err != nil {
			return nil, err
		}
	}

	response := make(map[string]interface{})
	response["data"] = e.pruneToOperation(state.data, originalDoc)

	state.mu.Lock()
	if len(state.errors) > 0 {
		response["errors"] = state.errors
	}
	state.mu.Unlock()

	return response, nil
}

// runNode walks one plan node. basePath is where node's own response data is
// rooted in state.data; reps, when non-nil, are the entity representations
// the immediately-following Fetch must send (set only by the Flatten that
// led here, and consumed by at most one Fetch).
func (e *Executor) runNode(ctx context.Context, state *execState, node plan.Node, basePath []string, reps []map[string]interface{}, variables map[string]interface{}) error {
	switch n := node.(type) {
	case *plan.Fetch:
		return e.runFetch(ctx, state, n, basePath, reps, variables)

	case *plan.Sequence:
		if len(n.Nodes) == 0 {
			return nil
		}
		if err := e.runNode(ctx, state, n.Nodes[0], basePath, reps, variables); err != nil {
			return err
		}
		for _, child := range n.Nodes[1:] {
			if err := e.runNode(ctx, state, child, basePath, nil, variables); err != nil {
				return err
			}
		}
		return nil

	case *plan.Parallel:
		eg, gctx := errgroup.WithContext(ctx)
		for _, child := range n.Nodes {
			child := child
			eg.Go(func() error {
				return e.runNode(gctx, state, child, basePath, nil, variables)
			})
		}
		return eg.Wait()

	case *plan.Flatten:
		newBase := append(append([]string{}, basePath...), n.Path...)
		state.mu.Lock()
		entities := extractEntities(state.data, newBase)
		state.mu.Unlock()
		if len(entities) == 0 {
			return nil
		}
		return e.runNode(ctx, state, n.Node, newBase, entities, variables)

	default:
		return fmt.Errorf("executor: unknown plan node %T", node)
	}
}

// runFetch sends one subgraph request and merges its response back into
// state.data. For an entity fetch, reps (raw entity objects pulled from the
// response tree by the enclosing Flatten) are reduced to representations via
// the Fetch's own Requires before being sent as $representations.
func (e *Executor) runFetch(ctx context.Context, state *execState, fetch *plan.Fetch, basePath []string, reps []map[string]interface{}, variables map[string]interface{}) error {
	reqVariables := make(map[string]interface{}, len(fetch.VariableUsages)+1)
	for _, name := range fetch.VariableUsages {
		if v, ok := variables[name]; ok {
			reqVariables[name] = v
		}
	}

	if fetch.Requires != nil {
		if len(reps) == 0 {
			return nil
		}
		representations := make([]map[string]interface{}, 0, len(reps))
		for _, ent := range reps {
			representations = append(representations, buildRepresentation(ent, fetch.Requires))
		}
		reqVariables["representations"] = representations
	}

	subGraph := e.superGraph.SubGraphByName(fetch.ServiceName)
	if subGraph == nil {
		err := fmt.Errorf("no subgraph registered for service %q", fetch.ServiceName)
		e.recordError(state, basePath, fetch.ServiceName, err)
		return nil
	}

	result, err := e.sendRequest(ctx, subGraph.Host, fetch.Operation, reqVariables)
	if err != nil {
		e.recordError(state, basePath, fetch.ServiceName, err)
		return nil
	}

	if errs, hasErrors := result["errors"]; hasErrors && errs != nil {
		e.recordSubgraphErrors(state, basePath, fetch.ServiceName, errs)
	}

	data, _ := result["data"].(map[string]interface{})
	if data == nil {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if fetch.Requires == nil {
		for k, v := range data {
			state.data[k] = v
		}
		return nil
	}

	entities, _ := data["_entities"].([]interface{})
	return mergeEntitiesAtPath(state.data, basePath, entities)
}

// buildRepresentation reduces a raw entity object down to exactly the fields
// fetch.Requires names, the minimal shape _entities(representations:) needs.
func buildRepresentation(entity map[string]interface{}, requires []plan.RequiresSelection) map[string]interface{} {
	rep := make(map[string]interface{})
	for _, sel := range requires {
		switch r := sel.(type) {
		case plan.RequiresInlineFragment:
			rep["__typename"] = r.TypeCondition
			for _, inner := range r.Selections {
				if f, ok := inner.(plan.RequiresField); ok {
					if v, exists := entity[f.Name]; exists {
						rep[f.Name] = v
					}
				}
			}
		case plan.RequiresField:
			if v, exists := entity[r.Name]; exists {
				rep[r.Name] = v
			}
		}
	}
	return rep
}

// extractEntities walks data along path, treating a literal "@" segment as
// "descend into every element of the list here", and returns the flat list
// of entity objects found at the end of the path in traversal order.
func extractEntities(data interface{}, path []string) []map[string]interface{} {
	if len(path) == 0 {
		switch v := data.(type) {
		case map[string]interface{}:
			return []map[string]interface{}{v}
		case []interface{}:
			out := make([]map[string]interface{}, 0, len(v))
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					out = append(out, m)
				}
			}
			return out
		default:
			return nil
		}
	}

	segment, rest := path[0], path[1:]
	if segment == "@" {
		arr, ok := data.([]interface{})
		if !ok {
			return nil
		}
		var out []map[string]interface{}
		for _, item := range arr {
			out = append(out, extractEntities(item, rest)...)
		}
		return out
	}

	m, ok := data.(map[string]interface{})
	if !ok {
		return nil
	}
	next, exists := m[segment]
	if !exists {
		return nil
	}
	return extractEntities(next, rest)
}

// mergeEntitiesAtPath merges entities (an _entities response, in the same
// traversal order extractEntities produced) back into data at path,
// descending through "@" list markers the same way extraction did.
func mergeEntitiesAtPath(data map[string]interface{}, path []string, entities []interface{}) error {
	idx := 0
	var walk func(cur interface{}, remaining []string) error
	walk = func(cur interface{}, remaining []string) error {
		if len(remaining) == 0 {
			obj, ok := cur.(map[string]interface{})
			if !ok {
				return fmt.Errorf("executor: expected object at merge target, got %T", cur)
			}
			if idx >= len(entities) {
				return fmt.Errorf("executor: not enough entities to merge (have %d)", len(entities))
			}
			entity, _ := entities[idx].(map[string]interface{})
			idx++
			return Merge(obj, entity, nil)
		}

		segment, rest := remaining[0], remaining[1:]
		if segment == "@" {
			arr, ok := cur.([]interface{})
			if !ok {
				return fmt.Errorf("executor: expected list at %q, got %T", segment, cur)
			}
			for _, item := range arr {
				if err := walk(item, rest); err != nil {
					return err
				}
			}
			return nil
		}

		m, ok := cur.(map[string]interface{})
		if !ok {
			return fmt.Errorf("executor: expected object navigating %q, got %T", segment, cur)
		}
		next, exists := m[segment]
		if !exists {
			return nil
		}
		return walk(next, rest)
	}

	return walk(data, path)
}

// recordError records a single transport/resolution-level error against the
// Fetch's response-path location.
func (e *Executor) recordError(state *execState, basePath []string, serviceName string, err error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.errors = append(state.errors, GraphQLError{
		Message:    err.Error(),
		Path:       toInterfacePath(basePath),
		Extensions: map[string]interface{}{"serviceName": serviceName},
	})
}

// recordSubgraphErrors copies a subgraph's own "errors" array into the
// overall response, prefixing each error's path with where this fetch is
// rooted.
func (e *Executor) recordSubgraphErrors(state *execState, basePath []string, serviceName string, errs interface{}) {
	list, ok := errs.([]interface{})
	if !ok {
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		message, _ := m["message"].(string)
		if message == "" {
			message = "error from subgraph"
		}

		path := toInterfacePath(basePath)
		if errPath, ok := m["path"].([]interface{}); ok {
			path = append(path, errPath...)
		}

		extensions := map[string]interface{}{"serviceName": serviceName}
		if ext, ok := m["extensions"].(map[string]interface{}); ok {
			for k, v := range ext {
				extensions[k] = v
			}
		}

		state.errors = append(state.errors, GraphQLError{Message: message, Path: path, Extensions: extensions})
	}
}

// requestHeaderContextKey threads the client's original request headers
// through to subgraph calls, so gateways in front of auth/tracing headers
// can opt into hanging them over.
type requestHeaderContextKey struct{}

// SetRequestHeaderToContext attaches header to ctx for later retrieval by
// sendRequest via GetRequestHeaderFromContext.
func SetRequestHeaderToContext(ctx context.Context, header http.Header) context.Context {
	return context.WithValue(ctx, requestHeaderContextKey{}, header)
}

// GetRequestHeaderFromContext returns the header set by
// SetRequestHeaderToContext, or nil if none was set.
func GetRequestHeaderFromContext(ctx context.Context) http.Header {
	h, _ := ctx.Value(requestHeaderContextKey{}).(http.Header)
	return h
}

func toInterfacePath(path []string) []interface{} {
	out := make([]interface{}, 0, len(path))
	for _, p := range path {
		if p == "@" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// sendRequest POSTs one GraphQL request to host and decodes its JSON body.
func (e *Executor) sendRequest(ctx context.Context, host, query string, variables map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{"query": query}
	if len(variables) > 0 {
		body["variables"] = variables
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range GetRequestHeaderFromContext(ctx) {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

// pruneToOperation strips fields from data that were added by the planner
// (entity key fields, __typename) but not requested by originalDoc's own
// selection set.
func (e *Executor) pruneToOperation(data map[string]interface{}, originalDoc *ast.Document) map[string]interface{} {
	if originalDoc == nil {
		return data
	}
	op := firstOperation(originalDoc)
	if op == nil || len(op.SelectionSet) == 0 {
		return data
	}
	pruned, ok := pruneValue(data, op.SelectionSet, collectFragments(originalDoc)).(map[string]interface{})
	if !ok {
		return data
	}
	return pruned
}

func collectFragments(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			frags[frag.Name.String()] = frag
		}
	}
	return frags
}

func firstOperation(doc *ast.Document) *ast.OperationDefinition {
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			return op
		}
	}
	return nil
}

// pruneValue recursively keeps only the fields selections asks for.
func pruneValue(value interface{}, selections []ast.Selection, fragments map[string]*ast.FragmentDefinition) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{})
		walkSelections(selections, fragments, func(field *ast.Field) {
			name := field.Name.String()
			key := name
			if field.Alias != nil && field.Alias.String() != "" {
				key = field.Alias.String()
			}
			val, exists := v[key]
			if !exists {
				val, exists = v[name]
			}
			if !exists {
				return
			}
			if len(field.SelectionSet) > 0 {
				result[key] = pruneValue(val, field.SelectionSet, fragments)
			} else {
				result[key] = val
			}
		})
		return result

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = pruneValue(item, selections, fragments)
		}
		return result

	default:
		return v
	}
}

// walkSelections invokes fn for every concrete field reachable from
// selections, inlining fragment spreads and inline fragments.
func walkSelections(selections []ast.Selection, fragments map[string]*ast.FragmentDefinition, fn func(*ast.Field)) {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			fn(s)
		case *ast.InlineFragment:
			walkSelections(s.SelectionSet, fragments, fn)
		case *ast.FragmentSpread:
			if frag, ok := fragments[s.Name.String()]; ok {
				walkSelections(frag.SelectionSet, fragments, fn)
			}
		}
	}
}
