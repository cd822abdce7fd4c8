// Package runtime is a reference agent runtime serving the console's four
// commands: a symbolic concept graph, a reflexion loop counter, and a SQLite
// memory log fed by perceptions.
package runtime

import (
	"errors"
	"fmt"
	"io/fs"

	"hipcortex/internal/config"
	"hipcortex/internal/logging"
)

// Runtime owns the stores behind the command handlers.
type Runtime struct {
	Graph     *SymbolicStore
	Reflexion *Reflexion
	Memory    *MemoryStore

	seedPath string
}

// Open creates the stores described by cfg. A configured seed file that does
// not exist yet leaves the graph empty.
func Open(cfg config.RuntimeConfig) (*Runtime, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("runtime: database path is required")
	}

	mem, err := NewMemoryStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		Graph:     NewSymbolicStore(),
		Reflexion: &Reflexion{},
		Memory:    mem,
		seedPath:  cfg.GraphSeedPath,
	}

	if r.seedPath != "" {
		if err := r.Graph.LoadSeed(r.seedPath); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				mem.Close()
				return nil, err
			}
			logging.Get(logging.CategoryRuntime).Warn("graph seed %s not found, starting empty", r.seedPath)
		}
	}

	nodes, edges := r.Graph.Stats()
	logging.Runtime("runtime ready: db=%s graph=%d nodes/%d edges", cfg.DatabasePath, nodes, edges)
	return r, nil
}

// SeedPath returns the configured graph seed file, or "".
func (r *Runtime) SeedPath() string {
	return r.seedPath
}

// ReloadSeed re-reads the seed file into the graph and logs a temporal record.
func (r *Runtime) ReloadSeed() error {
	if r.seedPath == "" {
		return fmt.Errorf("runtime: no graph seed configured")
	}
	if err := r.Graph.LoadSeed(r.seedPath); err != nil {
		return err
	}
	r.record(RecordTemporal, "runtime", "seed_reload", r.seedPath, nil)
	return nil
}

// Close releases the memory store.
func (r *Runtime) Close() error {
	return r.Memory.Close()
}

// Watcher returns a SeedWatcher that reloads this runtime's graph seed.
func (r *Runtime) Watcher() (*SeedWatcher, error) {
	return NewSeedWatcher(r.seedPath, r.ReloadSeed)
}
