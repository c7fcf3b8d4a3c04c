package matter

import (
	"fmt"
	"sort"
	"sync"
)

// WorldID is a unique identifier for a world
type WorldID string

// WorldState is one isolated world: its instance graph, the registry the
// graph resolves types through and the world membership set. Mutations are
// serialized through Do.
type WorldState struct {
	ID WorldID

	mu    sync.Mutex
	graph *Graph
	world *World
}

// Do runs fn with exclusive access to the world's graph.
func (w *WorldState) Do(fn func(g *Graph) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.graph)
}

// Members returns the handles registered with the world.
func (w *WorldState) Members() []Handle {
	return w.world.Handles()
}

// Registry returns the registry currently used by the world.
func (w *WorldState) Registry() *Registry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Registry()
}

// WorldManager manages multiple worlds, each isolated from others
type WorldManager struct {
	mu      sync.RWMutex
	worlds  map[WorldID]*WorldState
	logger  Logger
	metrics Metrics
}

// NewWorldManager creates a new world manager. Nil collaborators get
// no-op defaults.
func NewWorldManager(logger Logger, metrics Metrics) *WorldManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &WorldManager{
		worlds:  make(map[WorldID]*WorldState),
		logger:  logger,
		metrics: metrics,
	}
}

// CreateWorld creates a new world with the given ID and registry.
// Returns an error if a world with that ID already exists
func (wm *WorldManager) CreateWorld(id WorldID, registry *Registry, opts Options) (*WorldState, error) {
	if id == "" {
		return nil, fmt.Errorf("world id cannot be empty")
	}
	if registry == nil {
		return nil, fmt.Errorf("world %s: registry cannot be nil", id)
	}

	wm.mu.Lock()
	defer wm.mu.Unlock()

	if _, exists := wm.worlds[id]; exists {
		return nil, fmt.Errorf("world with id %s already exists", id)
	}

	world := NewWorld()
	ws := &WorldState{
		ID:    id,
		world: world,
		graph: NewGraph(Context{
			Registry: registry,
			World:    world,
			WorldID:  string(id),
			Logger:   wm.logger,
			Metrics:  wm.metrics,
			Options:  opts,
		}),
	}
	wm.worlds[id] = ws
	wm.logger.Infof("world created: id=%s", id)
	return ws, nil
}

// GetWorld retrieves a world by ID
func (wm *WorldManager) GetWorld(id WorldID) (*WorldState, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	ws, exists := wm.worlds[id]
	return ws, exists
}

// DeleteWorld removes a world by ID
func (wm *WorldManager) DeleteWorld(id WorldID) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if _, exists := wm.worlds[id]; !exists {
		return fmt.Errorf("world with id %s does not exist", id)
	}
	delete(wm.worlds, id)
	wm.metrics.ForgetWorld(string(id))
	wm.logger.Infof("world deleted: id=%s", id)
	return nil
}

// ListWorlds returns every world ID in lexical order.
func (wm *WorldManager) ListWorlds() []WorldID {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	ids := make([]WorldID, 0, len(wm.worlds))
	for id := range wm.worlds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UpdateWorldRegistry swaps the registry of an existing world. Existing
// instances keep the bases they were created from.
func (wm *WorldManager) UpdateWorldRegistry(id WorldID, registry *Registry) error {
	if registry == nil {
		return fmt.Errorf("world %s: registry cannot be nil", id)
	}
	ws, exists := wm.GetWorld(id)
	if !exists {
		return fmt.Errorf("world with id %s does not exist", id)
	}
	return ws.Do(func(g *Graph) error {
		g.ctx.Registry = registry
		return nil
	})
}
