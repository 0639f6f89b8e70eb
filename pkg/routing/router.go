// Package routing resolves the next node of a workflow from a source node and an outcome handle.
package routing

import "github.com/dukex/ivrflow/pkg/models"

// Resolve returns the target of the first edge leaving source with the given handle.
// An empty handle matches only edges without a handle.
func Resolve(edges []*models.Edge, source, handle string) (string, bool) {
	for _, edge := range edges {
		if edge.Source == source && edge.Handle() == handle {
			return edge.Target, true
		}
	}

	return "", false
}

// Index groups edges by source node, keeping edge order.
type Index struct {
	bySource map[string][]*models.Edge
	incoming map[string]int
}

func NewIndex(edges []*models.Edge) *Index {
	index := &Index{
		bySource: make(map[string][]*models.Edge),
		incoming: make(map[string]int),
	}

	for _, edge := range edges {
		index.bySource[edge.Source] = append(index.bySource[edge.Source], edge)
		index.incoming[edge.Target]++
	}

	return index
}

func (i *Index) Resolve(source, handle string) (string, bool) {
	return Resolve(i.bySource[source], source, handle)
}

// ResolveFirst tries each handle in order and returns the first that has an edge.
func (i *Index) ResolveFirst(source string, handles ...string) (string, string, bool) {
	for _, handle := range handles {
		if target, ok := i.Resolve(source, handle); ok {
			return target, handle, true
		}
	}

	return "", "", false
}

func (i *Index) Outgoing(source string) []*models.Edge {
	return i.bySource[source]
}

func (i *Index) HasIncoming(nodeID string) bool {
	return i.incoming[nodeID] > 0
}

// Ambiguity is a branch with more than one edge. Resolve picks the first.
type Ambiguity struct {
	Source  string
	Handle  string
	Targets []string
}

func (i *Index) Ambiguities() []Ambiguity {
	var out []Ambiguity

	for source, edges := range i.bySource {
		targets := map[string][]string{}
		order := []string{}

		for _, edge := range edges {
			if _, seen := targets[edge.Handle()]; !seen {
				order = append(order, edge.Handle())
			}

			targets[edge.Handle()] = append(targets[edge.Handle()], edge.Target)
		}

		for _, handle := range order {
			if len(targets[handle]) > 1 {
				out = append(out, Ambiguity{Source: source, Handle: handle, Targets: targets[handle]})
			}
		}
	}

	return out
}
