// Package pipeline runs the extraction stages as a dependency graph over a
// small worker pool. A failing stage cancels the run and skips everything
// downstream of it.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a node, stored atomically.
type State int32

const (
	Pending State = iota
	Running
	Done
	Failed
)

// String returns the lower-case state name used in progress events.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Node is one stage instance in the graph.
type Node struct {
	ID  string
	Run func(ctx context.Context) error

	Deps       map[string]*Node
	Dependents map[string]*Node

	depCount atomic.Int32
	state    atomic.Int32
	skipOnce sync.Once
	Err      error
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Graph is a set of named nodes with directed dependency edges.
type Graph struct {
	Nodes map[string]*Node
	mutex sync.Mutex
}

// NewGraph creates an initialized, empty Graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode adds a stage to the graph. A duplicate ID is a programmer error.
func (g *Graph) AddNode(id string, run func(ctx context.Context) error) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.Nodes[id]; ok {
		return fmt.Errorf("duplicate node: %s", id)
	}
	g.Nodes[id] = &Node{
		ID:         id,
		Run:        run,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
	return nil
}

// AddEdge creates a directed edge from fromID to toID, meaning toID depends
// on fromID. An error is returned if either node is missing or the edge
// would self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.Nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.Nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	if _, exists := toNode.Deps[fromID]; exists {
		return nil
	}
	toNode.Deps[fromID] = fromNode
	fromNode.Dependents[toID] = toNode
	toNode.depCount.Add(1)
	return nil
}

// DetectCycles checks the graph for cycles using depth-first search with
// permanent and temporary marks. It returns the first node found inside a
// cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.ID] {
			return nil
		}
		if temporary[n.ID] {
			return fmt.Errorf("cycle detected involving node '%s'", n.ID)
		}

		temporary[n.ID] = true
		for _, dependent := range n.Dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.ID)
		permanent[n.ID] = true
		return nil
	}

	for _, n := range g.Nodes {
		if !permanent[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
