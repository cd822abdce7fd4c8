package runtime

import (
	"fmt"
	"os"
	"strings"

	"hipcortex/internal/logging"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML description of an initial graph. Edges refer to nodes by
// their seed key; ids are assigned at load time.
type Seed struct {
	Nodes []SeedNode `yaml:"nodes"`
	Edges []SeedEdge `yaml:"edges"`
}

type SeedNode struct {
	Key        string            `yaml:"key"`
	Label      string            `yaml:"label"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

type SeedEdge struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Relation string `yaml:"relation"`
}

// ParseSeed decodes and checks a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse graph seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks that keys are unique and every edge names known nodes.
func (s *Seed) Validate() error {
	keys := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		key := strings.TrimSpace(n.Key)
		if key == "" {
			return fmt.Errorf("seed node %d: key is required", i)
		}
		if keys[key] {
			return fmt.Errorf("seed node %q: duplicate key", key)
		}
		if strings.TrimSpace(n.Label) == "" {
			return fmt.Errorf("seed node %q: label is required", key)
		}
		keys[key] = true
	}
	for i, e := range s.Edges {
		if !keys[e.From] {
			return fmt.Errorf("seed edge %d: unknown source %q", i, e.From)
		}
		if !keys[e.To] {
			return fmt.Errorf("seed edge %d: unknown target %q", i, e.To)
		}
		if strings.TrimSpace(e.Relation) == "" {
			return fmt.Errorf("seed edge %d: relation is required", i)
		}
	}
	return nil
}

// Apply replaces the store's contents with the seed graph.
func (s *Seed) Apply(store *SymbolicStore) {
	nodes := make(map[string]*Node, len(s.Nodes))
	ids := make(map[string]string, len(s.Nodes))
	for _, n := range s.Nodes {
		id := uuid.NewString()
		props := make(map[string]string, len(n.Properties))
		for k, v := range n.Properties {
			props[k] = v
		}
		nodes[id] = &Node{ID: id, Label: n.Label, Properties: props}
		ids[strings.TrimSpace(n.Key)] = id
	}
	edges := make([]Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		edges = append(edges, Edge{From: ids[e.From], To: ids[e.To], Relation: e.Relation})
	}
	store.replace(nodes, edges)
}

// LoadSeed reads the seed at path and replaces the store's contents with it.
// On any error the store is left untouched.
func (s *SymbolicStore) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read graph seed: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return err
	}
	seed.Apply(s)
	logging.Runtime("graph seed loaded from %s: %d nodes, %d edges", path, len(seed.Nodes), len(seed.Edges))
	return nil
}
