package matter

import "sync"

// WorldRegistry is the spatial world instances are registered with. The
// graph calls it when world membership changes through ownership and when
// an instance is destroyed.
type WorldRegistry interface {
	AddInstance(h Handle)
	RemoveInstance(h Handle)
}

// World is a set-backed WorldRegistry.
type World struct {
	mu      sync.RWMutex
	members map[Handle]struct{}
	order   []Handle
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{members: make(map[Handle]struct{})}
}

func (w *World) AddInstance(h Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.members[h]; ok {
		return
	}
	w.members[h] = struct{}{}
	w.order = append(w.order, h)
}

func (w *World) RemoveInstance(h Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.members[h]; !ok {
		return
	}
	delete(w.members, h)
	for i, m := range w.order {
		if m == h {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether h is registered.
func (w *World) Contains(h Handle) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.members[h]
	return ok
}

// Len returns the number of registered instances.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.members)
}

// Handles returns registered instances in registration order.
func (w *World) Handles() []Handle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Handle, len(w.order))
	copy(out, w.order)
	return out
}

type noopWorld struct{}

func (noopWorld) AddInstance(Handle)    {}
func (noopWorld) RemoveInstance(Handle) {}
