package planner

// GroupForField decides how root-level fields are bucketed into
// top-level FetchGroups. Grounded on the original Rust query-planner's
// groups.rs trait (ParallelGroupForField / SerialGroupForField): queries
// fan their root fields out in parallel by owning service, mutations
// must preserve source order field-by-field since each mutation field
// may have side effects that depend on the previous one's completion.
type GroupForField interface {
	// GroupForField returns the FetchGroup that the given root-level
	// field (owned by service) should be added to, creating one if
	// needed.
	GroupForField(service, parentType string) *FetchGroup
	// Groups returns the root groups built so far, in the order they
	// should appear as Parallel/Sequence siblings.
	Groups() []*FetchGroup
}

// parallelGroupForField buckets root fields by service name: every
// distinct owning service gets exactly one group, run in Parallel.
type parallelGroupForField struct {
	byService map[string]*FetchGroup
	order     []*FetchGroup
}

func newParallelGroupForField() *parallelGroupForField {
	return &parallelGroupForField{byService: make(map[string]*FetchGroup)}
}

func (p *parallelGroupForField) GroupForField(service, parentType string) *FetchGroup {
	if g, ok := p.byService[service]; ok {
		return g
	}
	g := newRootGroup(service, parentType)
	p.byService[service] = g
	p.order = append(p.order, g)
	return g
}

func (p *parallelGroupForField) Groups() []*FetchGroup { return p.order }

// serialGroupForField preserves the root selection's field order: a new
// field is appended to the last group only if that group already targets
// the same service; otherwise a new group is opened. This keeps
// mutations executing as a Sequence of per-service fetches in source
// order, never reordering or batching across a different service and
// back.
type serialGroupForField struct {
	groups []*FetchGroup
}

func newSerialGroupForField() *serialGroupForField {
	return &serialGroupForField{}
}

func (s *serialGroupForField) GroupForField(service, parentType string) *FetchGroup {
	if n := len(s.groups); n > 0 && s.groups[n-1].Service == service {
		return s.groups[n-1]
	}
	g := newRootGroup(service, parentType)
	s.groups = append(s.groups, g)
	return g
}

func (s *serialGroupForField) Groups() []*FetchGroup { return s.groups }

// strategyFor picks the root grouping strategy for an operation kind.
func strategyFor(operationKind string) GroupForField {
	if operationKind == "mutation" {
		return newSerialGroupForField()
	}
	return newParallelGroupForField()
}
