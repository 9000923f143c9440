package gateway

import (
	"fmt"
	"net/http"

	"github.com/n9te9/go-graphql-federation-gateway/federation/executor"
	"github.com/n9te9/go-graphql-federation-gateway/federation/graph"
	"github.com/n9te9/go-graphql-federation-gateway/federation/planner"
)

// executionEngine bundles all read-only components required to serve GraphQL requests.
type executionEngine struct {
	planner    *planner.Planner
	executor   *executor.Executor
	superGraph *graph.SuperGraph
}

// schemaStore holds the current set of raw SDLs, host URLs, and the pre-built engine.
// It is stored in atomic.Value, so every value must be read-only after it is constructed.
type schemaStore struct {
	sdls   map[string]string // subgraph name → SDL string
	hosts  map[string]string // subgraph name → base URL
	engine *executionEngine
}

// buildEngine composes a new SuperGraph from the given SDLs and host map, then wraps it
// in an executionEngine together with a Planner and Executor.
// The order that subgraphs are processed follows the iteration order of sdls, which is
// non-deterministic in Go maps. Composition keeps that order: a field's owners are
// listed in it and the first owner is preferred, so when several subgraphs own the
// same field the chosen owner can differ from one build to the next.
func buildEngine(sdls, hosts map[string]string, httpClient *http.Client) (*executionEngine, error) {
	subGraphs := make([]*graph.SubGraph, 0, len(sdls))
	for name, sdl := range sdls {
		sg, err := graph.NewSubGraph(name, []byte(sdl), hosts[name])
		if err != nil {
			return nil, fmt.Errorf("failed to build subgraph %q: %w", name, err)
		}
		subGraphs = append(subGraphs, sg)
	}

	superGraph, err := graph.NewSuperGraph(subGraphs)
	if err != nil {
		return nil, fmt.Errorf("composition failed: %w", err)
	}

	pl, err := planner.NewPlanner(superGraph)
	if err != nil {
		return nil, fmt.Errorf("planner rejected composed schema: %w", err)
	}

	return &executionEngine{
		planner:    pl,
		executor:   executor.NewExecutor(httpClient, superGraph),
		superGraph: superGraph,
	}, nil
}

// copyMap returns a shallow copy of a string map.
func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// withRegistrations returns a new schemaStore that merges additional subgraph
// SDLs/hosts into the current one and recomposes the engine against the
// union. The receiver's maps are left untouched so that callers can keep
// serving requests off the old store until the new one is installed.
func (s *schemaStore) withRegistrations(graphs []RegistrationGraph, httpClient *http.Client) (*schemaStore, error) {
	sdls := copyMap(s.sdls)
	hosts := copyMap(s.hosts)
	for _, g := range graphs {
		sdls[g.Name] = g.SDL
		hosts[g.Name] = g.Host
	}

	engine, err := buildEngine(sdls, hosts, httpClient)
	if err != nil {
		return nil, err
	}

	return &schemaStore{sdls: sdls, hosts: hosts, engine: engine}, nil
}

// RegistrationGraph is one subgraph entry of an incoming hot-reload request,
// matching the shape the registry forwards to every known gateway host.
type RegistrationGraph struct {
	Name string `json:"name"`
	Host string `json:"host"`
	SDL  string `json:"sdl"`
}
