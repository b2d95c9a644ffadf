// Package graph implements a named directed graph with a deterministic
// depth-first topological sort.
package graph

import (
	"fmt"
	"strings"

	errUtils "github.com/cedar-backup/cback/errors"
)

// CycleError reports a back edge found during a topological sort.
type CycleError struct {
	// Cycle lists the vertices on the cycle, starting and ending with the same vertex.
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", errUtils.ErrDependencyCycle, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error {
	return errUtils.ErrDependencyCycle
}

type vertex struct {
	name      string
	endpoints []*vertex
}

type visitState int

const (
	undiscovered visitState = iota
	discovered
	explored
)

// DirectedGraph is a named directed graph. An edge from A to B means A must be
// ordered before B. It is not safe for concurrent mutation.
type DirectedGraph struct {
	name     string
	vertices map[string]*vertex
	order    []*vertex
	// start has an edge to every vertex so that every vertex is reachable.
	start *vertex
}

// New creates an empty graph.
func New(name string) (*DirectedGraph, error) {
	if name == "" {
		return nil, errUtils.ErrEmptyGraphName
	}
	return &DirectedGraph{
		name:     name,
		vertices: make(map[string]*vertex),
		start:    &vertex{},
	}, nil
}

// Name returns the graph name.
func (g *DirectedGraph) Name() string {
	return g.name
}

// Vertices returns the vertex names in creation order.
func (g *DirectedGraph) Vertices() []string {
	names := make([]string, 0, len(g.order))
	for _, v := range g.order {
		names = append(names, v.name)
	}
	return names
}

// HasVertex reports whether a vertex with the given name exists.
func (g *DirectedGraph) HasVertex(name string) bool {
	_, ok := g.vertices[name]
	return ok
}

// CreateVertex adds a vertex reachable from the start vertex.
func (g *DirectedGraph) CreateVertex(name string) error {
	if name == "" {
		return errUtils.ErrEmptyVertexName
	}
	if _, ok := g.vertices[name]; ok {
		return fmt.Errorf("%w: %s", errUtils.ErrDuplicateVertex, name)
	}
	v := &vertex{name: name}
	g.vertices[name] = v
	g.order = append(g.order, v)
	g.start.endpoints = append(g.start.endpoints, v)
	return nil
}

// CreateEdge adds an edge meaning start must be ordered before finish.
func (g *DirectedGraph) CreateEdge(start, finish string) error {
	from, ok := g.vertices[start]
	if !ok {
		return fmt.Errorf("%w: %s", errUtils.ErrVertexNotFound, start)
	}
	to, ok := g.vertices[finish]
	if !ok {
		return fmt.Errorf("%w: %s", errUtils.ErrVertexNotFound, finish)
	}
	from.endpoints = append(from.endpoints, to)
	return nil
}

// TopologicalSort returns every vertex name once, such that for each edge
// (u, v) u comes before v. Endpoints are visited in the order their edges were
// created, so the result is deterministic. A cycle yields a *CycleError.
func (g *DirectedGraph) TopologicalSort() ([]string, error) {
	state := make(map[*vertex]visitState, len(g.order)+1)
	post := make([]string, 0, len(g.order))

	if err := g.visit(g.start, state, &post); err != nil {
		return nil, err
	}
	// Every vertex hangs off start, so this loop only matters if that ever changes.
	for _, v := range g.order {
		if state[v] == undiscovered {
			if err := g.visit(v, state, &post); err != nil {
				return nil, err
			}
		}
	}

	// Vertices are finished in post-order; prepending each gives the reverse.
	ordering := make([]string, len(post))
	for i, name := range post {
		ordering[len(post)-1-i] = name
	}
	return ordering, nil
}

type frame struct {
	v    *vertex
	next int
}

func (g *DirectedGraph) visit(root *vertex, state map[*vertex]visitState, post *[]string) error {
	state[root] = discovered
	stack := []*frame{{v: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.v.endpoints) {
			e := top.v.endpoints[top.next]
			top.next++
			switch state[e] {
			case undiscovered:
				state[e] = discovered
				stack = append(stack, &frame{v: e})
			case discovered:
				return &CycleError{Cycle: cyclePath(stack, e)}
			}
			continue
		}

		state[top.v] = explored
		if top.v != g.start {
			*post = append(*post, top.v.name)
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// cyclePath walks the current DFS path from the first occurrence of back to
// the top of the stack and closes the loop.
func cyclePath(stack []*frame, back *vertex) []string {
	var path []string
	for i, f := range stack {
		if f.v == back {
			for _, p := range stack[i:] {
				path = append(path, p.v.name)
			}
			break
		}
	}
	return append(path, back.name)
}

// Equal reports whether two graphs have the same name, vertices and edges.
func (g *DirectedGraph) Equal(other *DirectedGraph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.name != other.name || len(g.order) != len(other.order) {
		return false
	}
	for i, v := range g.order {
		o := other.order[i]
		if v.name != o.name || len(v.endpoints) != len(o.endpoints) {
			return false
		}
		for j, e := range v.endpoints {
			if e.name != o.endpoints[j].name {
				return false
			}
		}
	}
	return true
}
