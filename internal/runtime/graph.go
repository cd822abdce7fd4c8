package runtime

import (
	"fmt"
	"sort"
	"sync"

	"hipcortex/internal/logging"

	"github.com/google/uuid"
)

// Node is one concept in the symbolic graph.
type Node struct {
	ID         string
	Label      string
	Properties map[string]string
}

// Edge is a directed, labelled relation between two nodes.
type Edge struct {
	From     string
	To       string
	Relation string
}

// NodeView and EdgeView are the wire shapes returned by get_symbolic_graph.
type NodeView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type EdgeView struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// GraphSnapshot is a point-in-time copy of the graph.
type GraphSnapshot struct {
	Nodes []NodeView `json:"nodes"`
	Edges []EdgeView `json:"edges"`
}

// SymbolicStore holds the runtime's concept graph.
type SymbolicStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges []Edge
}

func NewSymbolicStore() *SymbolicStore {
	return &SymbolicStore{nodes: make(map[string]*Node)}
}

// AddNode inserts a node under a fresh id and returns that id.
func (s *SymbolicStore) AddNode(label string, props map[string]string) string {
	id := uuid.NewString()
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}

	s.mu.Lock()
	s.nodes[id] = &Node{ID: id, Label: label, Properties: cp}
	s.mu.Unlock()

	logging.RuntimeDebug("graph: node %s (%s) added", id, label)
	return id
}

// AddEdge links two existing nodes.
func (s *SymbolicStore) AddEdge(from, to, relation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[from]; !ok {
		return fmt.Errorf("edge source %s: node not found", from)
	}
	if _, ok := s.nodes[to]; !ok {
		return fmt.Errorf("edge target %s: node not found", to)
	}
	s.edges = append(s.edges, Edge{From: from, To: to, Relation: relation})
	return nil
}

// Node returns a copy of the node with the given id.
func (s *SymbolicStore) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Neighbors returns the targets of id's outgoing edges, ordered by label.
func (s *SymbolicStore) Neighbors(id string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Node
	for _, e := range s.edges {
		if e.From != id || seen[e.To] {
			continue
		}
		seen[e.To] = true
		if n, ok := s.nodes[e.To]; ok {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats returns the node and edge counts.
func (s *SymbolicStore) Stats() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Snapshot copies the graph in a stable order: nodes by label then id, edges
// by endpoints then relation. Empty graphs yield empty, non-nil slices.
func (s *SymbolicStore) Snapshot() GraphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := GraphSnapshot{
		Nodes: make([]NodeView, 0, len(s.nodes)),
		Edges: make([]EdgeView, 0, len(s.edges)),
	}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, NodeView{ID: n.ID, Label: n.Label})
	}
	for _, e := range s.edges {
		snap.Edges = append(snap.Edges, EdgeView{From: e.From, To: e.To, Relation: e.Relation})
	}

	sort.Slice(snap.Nodes, func(i, j int) bool {
		a, b := snap.Nodes[i], snap.Nodes[j]
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.ID < b.ID
	})
	sort.Slice(snap.Edges, func(i, j int) bool {
		a, b := snap.Edges[i], snap.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Relation < b.Relation
	})
	return snap
}

// replace swaps the whole graph in one step.
func (s *SymbolicStore) replace(nodes map[string]*Node, edges []Edge) {
	s.mu.Lock()
	s.nodes = nodes
	s.edges = edges
	s.mu.Unlock()
}
