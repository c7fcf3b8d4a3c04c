package matter

import (
	"encoding/json"
	"time"
)

// EventType names a containment change.
type EventType string

const (
	EventAdded   EventType = "added"
	EventRemoved EventType = "removed"
)

// ContainmentEvent is raised when a child joins or leaves an owner. For a
// merge, Child is the surviving sibling and Merged is set.
type ContainmentEvent struct {
	ID        string    `json:"id"`
	WorldID   string    `json:"world_id,omitempty"`
	Type      EventType `json:"type"`
	Parent    Handle    `json:"-"`
	Child     Handle    `json:"-"`
	ParentRef string    `json:"parent"`
	ChildRef  string    `json:"child"`
	ChildType TypeID    `json:"child_type"`
	ChildKind string    `json:"child_kind"`
	Quantity  float64   `json:"quantity"`
	Merged    bool      `json:"merged,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// JSON returns the event as JSON bytes
func (e ContainmentEvent) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Listener receives containment events synchronously, inside the mutating
// call. Listeners must not mutate the graph.
type Listener func(ContainmentEvent)

type listenerEntry struct {
	id int
	fn Listener
}

// Subscribe registers an engine-level listener for every containment
// change in the graph and returns a function that removes it.
func (g *Graph) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	g.nextListener++
	id := g.nextListener
	g.listeners = append(g.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

// Watch registers a local listener for children added to or removed from
// the given owner. Watchers are dropped when the owner is destroyed.
func (g *Graph) Watch(owner Handle, fn Listener) {
	if fn == nil || g.get(owner) == nil {
		return
	}
	g.watchers[owner] = append(g.watchers[owner], fn)
}

func (g *Graph) emit(typ EventType, parent, child *instance, merged bool) {
	ev := ContainmentEvent{
		ID:        NewRandomID(),
		WorldID:   g.ctx.WorldID,
		Type:      typ,
		Parent:    parent.handle,
		Child:     child.handle,
		ParentRef: parent.handle.String(),
		ChildRef:  child.handle.String(),
		ChildType: child.typeID(),
		ChildKind: child.kind.String(),
		Quantity:  child.quantity,
		Merged:    merged,
		Timestamp: time.Now().Unix(),
	}
	for _, fn := range g.watchers[parent.handle] {
		fn(ev)
	}
	for _, l := range g.listeners {
		l.fn(ev)
	}
}
