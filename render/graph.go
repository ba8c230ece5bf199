// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"slices"
)

// Graph errors.
var (
	// ErrUnknownSubGraph is returned for a sub-graph that was never added.
	ErrUnknownSubGraph = errors.New("render: unknown sub-graph")

	// ErrUnknownLabel is returned when an edge names a label with no node.
	ErrUnknownLabel = errors.New("render: unknown node label")

	// ErrDuplicateNode is returned when a label already has a runnable node.
	ErrDuplicateNode = errors.New("render: node already registered")

	// ErrGraphCycle is returned when edges would make the graph cyclic.
	ErrGraphCycle = errors.New("render: graph cycle")
)

// SubGraphLabel names a sub-graph.
type SubGraphLabel string

// Label names a node inside a sub-graph.
type Label string

// Predeclared sub-graphs.
const (
	Core3d SubGraphLabel = "core_3d"
	Core2d SubGraphLabel = "core_2d"
)

// Core3d stage labels, in execution order.
const (
	Node3dMainOpaquePass            Label = "main_opaque_pass"
	Node3dMainTransparentPass       Label = "main_transparent_pass"
	Node3dEndMainPass               Label = "end_main_pass"
	Node3dTonemapping               Label = "tonemapping"
	Node3dEndMainPassPostProcessing Label = "end_main_pass_post_processing"
	Node3dUpscaling                 Label = "upscaling"
)

// Core2d stage labels, in execution order.
const (
	Node2dMainPass                  Label = "main_pass"
	Node2dEndMainPass               Label = "end_main_pass"
	Node2dTonemapping               Label = "tonemapping"
	Node2dEndMainPassPostProcessing Label = "end_main_pass_post_processing"
	Node2dUpscaling                 Label = "upscaling"
)

// ViewNode runs once per view of the sub-graph it is registered in.
type ViewNode interface {
	Run(ctx RenderContext, world *World, view *ExtractedView) error
}

// ViewNodeFunc adapts a function to ViewNode.
type ViewNodeFunc func(ctx RenderContext, world *World, view *ExtractedView) error

// Run calls f.
func (f ViewNodeFunc) Run(ctx RenderContext, world *World, view *ExtractedView) error {
	return f(ctx, world, view)
}

// SubGraph is a set of labelled nodes with ordering edges.
// A label added without a node is an ordering marker.
type SubGraph struct {
	labels []Label
	nodes  map[Label]ViewNode
	edges  map[Label][]Label
}

func newSubGraph() *SubGraph {
	return &SubGraph{
		nodes: make(map[Label]ViewNode),
		edges: make(map[Label][]Label),
	}
}

// AddNode registers node under label. A nil node adds an ordering marker.
// Filling a marker with a node is allowed; replacing a node is not.
func (s *SubGraph) AddNode(label Label, node ViewNode) error {
	existing, ok := s.nodes[label]
	switch {
	case !ok:
		s.labels = append(s.labels, label)
	case existing != nil:
		return fmt.Errorf("%w: %s", ErrDuplicateNode, label)
	}
	s.nodes[label] = node
	return nil
}

// AddEdges adds an edge between each consecutive pair of labels, so that
// AddEdges(a, b, c) orders a before b before c. All labels must exist.
// On error no edge is added.
func (s *SubGraph) AddEdges(labels ...Label) error {
	for _, l := range labels {
		if _, ok := s.nodes[l]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLabel, l)
		}
	}

	saved := make(map[Label][]Label, len(s.edges))
	for k, v := range s.edges {
		saved[k] = v
	}
	for i := 1; i < len(labels); i++ {
		from, to := labels[i-1], labels[i]
		if from == to {
			s.edges = saved
			return fmt.Errorf("%w: self edge on %s", ErrGraphCycle, from)
		}
		if !slices.Contains(s.edges[from], to) {
			s.edges[from] = append(slices.Clip(s.edges[from]), to)
		}
	}
	if _, err := s.Order(); err != nil {
		s.edges = saved
		return err
	}
	return nil
}

// Has reports whether label exists, as node or marker.
func (s *SubGraph) Has(label Label) bool {
	_, ok := s.nodes[label]
	return ok
}

// Node returns the runnable node under label.
func (s *SubGraph) Node(label Label) (ViewNode, bool) {
	n := s.nodes[label]
	return n, n != nil
}

// Order returns all labels in a topological order (Kahn's algorithm).
// Ties are broken by registration order so the result is deterministic.
func (s *SubGraph) Order() ([]Label, error) {
	indegree := make(map[Label]int, len(s.labels))
	for _, l := range s.labels {
		indegree[l] += 0
		for _, to := range s.edges[l] {
			indegree[to]++
		}
	}

	var ready []Label
	for _, l := range s.labels {
		if indegree[l] == 0 {
			ready = append(ready, l)
		}
	}

	rank := make(map[Label]int, len(s.labels))
	for i, l := range s.labels {
		rank[l] = i
	}

	order := make([]Label, 0, len(s.labels))
	for len(ready) > 0 {
		l := ready[0]
		ready = ready[1:]
		order = append(order, l)
		for _, to := range s.edges[l] {
			indegree[to]--
			if indegree[to] == 0 {
				i, _ := slices.BinarySearchFunc(ready, to, func(a, b Label) int { return rank[a] - rank[b] })
				ready = slices.Insert(ready, i, to)
			}
		}
	}

	if len(order) != len(s.labels) {
		var stuck []Label
		for _, l := range s.labels {
			if indegree[l] > 0 {
				stuck = append(stuck, l)
			}
		}
		return nil, fmt.Errorf("%w involving %v", ErrGraphCycle, stuck)
	}
	return order, nil
}

// Run executes the runnable nodes in order for one view.
func (s *SubGraph) Run(ctx RenderContext, world *World, view *ExtractedView) error {
	order, err := s.Order()
	if err != nil {
		return err
	}
	for _, l := range order {
		node := s.nodes[l]
		if node == nil {
			continue
		}
		if err := node.Run(ctx, world, view); err != nil {
			return fmt.Errorf("node %s: %w", l, err)
		}
	}
	return nil
}

// Graph is the render graph: a set of named sub-graphs.
type Graph struct {
	subs map[SubGraphLabel]*SubGraph
}

// NewGraph creates a graph with the Core3d and Core2d sub-graphs and their
// stage markers already ordered.
func NewGraph() *Graph {
	g := &Graph{subs: make(map[SubGraphLabel]*SubGraph)}
	g.addStages(Core3d,
		Node3dMainOpaquePass,
		Node3dMainTransparentPass,
		Node3dEndMainPass,
		Node3dTonemapping,
		Node3dEndMainPassPostProcessing,
		Node3dUpscaling,
	)
	g.addStages(Core2d,
		Node2dMainPass,
		Node2dEndMainPass,
		Node2dTonemapping,
		Node2dEndMainPassPostProcessing,
		Node2dUpscaling,
	)
	return g
}

func (g *Graph) addStages(sub SubGraphLabel, stages ...Label) {
	s := g.AddSubGraph(sub)
	for _, l := range stages {
		_ = s.AddNode(l, nil)
	}
	_ = s.AddEdges(stages...)
}

// AddSubGraph returns the sub-graph named label, creating it if needed.
func (g *Graph) AddSubGraph(label SubGraphLabel) *SubGraph {
	if s, ok := g.subs[label]; ok {
		return s
	}
	s := newSubGraph()
	g.subs[label] = s
	return s
}

// SubGraph returns the sub-graph named label.
func (g *Graph) SubGraph(label SubGraphLabel) (*SubGraph, bool) {
	s, ok := g.subs[label]
	return s, ok
}

// AddNode registers node under label in sub.
func (g *Graph) AddNode(sub SubGraphLabel, label Label, node ViewNode) error {
	s, ok := g.subs[sub]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubGraph, sub)
	}
	return s.AddNode(label, node)
}

// AddEdges orders labels in sub; see [SubGraph.AddEdges].
func (g *Graph) AddEdges(sub SubGraphLabel, labels ...Label) error {
	s, ok := g.subs[sub]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubGraph, sub)
	}
	return s.AddEdges(labels...)
}

// RunView executes sub for one view.
func (g *Graph) RunView(sub SubGraphLabel, ctx RenderContext, world *World, view *ExtractedView) error {
	s, ok := g.subs[sub]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubGraph, sub)
	}
	return s.Run(ctx, world, view)
}
