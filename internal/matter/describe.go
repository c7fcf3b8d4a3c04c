package matter

import (
	"encoding/json"
	"fmt"
	"time"
)

// Node is a JSON-ready view of an instance subtree.
type Node struct {
	Ref         string  `json:"ref"`
	Kind        string  `json:"kind"`
	Type        TypeID  `json:"type,omitempty"`
	Quantity    float64 `json:"quantity"`
	State       string  `json:"state,omitempty"`
	Formula     string  `json:"formula,omitempty"`
	Position    *Vector `json:"position,omitempty"`
	MixtureKind string  `json:"mixture_kind,omitempty"`
	StackIndex  int     `json:"stack_index,omitempty"`
	Thickness   float64 `json:"thickness,omitempty"`
	Children    []Node  `json:"children,omitempty"`
}

// Snapshot represents a point-in-time capture of a world's top-level
// instances.
type Snapshot struct {
	WorldID   WorldID `json:"world_id"`
	Time      int64   `json:"time"`
	Instances []Node  `json:"instances"`
}

// Describe returns the tree view of an instance.
func (g *Graph) Describe(h Handle) (Node, bool) {
	in := g.get(h)
	if in == nil {
		return Node{}, false
	}
	return g.describe(in), true
}

func (g *Graph) describe(in *instance) Node {
	n := Node{
		Ref:         in.handle.String(),
		Kind:        in.kind.String(),
		Type:        in.typeID(),
		Quantity:    in.quantity,
		Formula:     in.formula,
		MixtureKind: in.mixtureKind,
		StackIndex:  in.stackIndex,
		Thickness:   in.thickness,
	}
	if !in.kind.IsContainer() {
		n.State = in.state.String()
	}
	if !in.position.IsZero() {
		p := in.position
		n.Position = &p
	}
	for _, ch := range in.children {
		if c := g.get(ch); c != nil {
			n.Children = append(n.Children, g.describe(c))
		}
	}
	return n
}

// Snapshot captures the unowned instances among handles (world members
// owned by another member appear inside their owner's tree).
func (g *Graph) Snapshot(id WorldID, handles []Handle) Snapshot {
	s := Snapshot{WorldID: id, Time: time.Now().Unix(), Instances: []Node{}}
	for _, h := range handles {
		in := g.get(h)
		if in == nil || !in.owner.IsZero() {
			continue
		}
		s.Instances = append(s.Instances, g.describe(in))
	}
	return s
}

// ValidateSnapshot checks that every node carries a unique reference and,
// when a registry is given, that every typed node names a known type.
func ValidateSnapshot(snapshot Snapshot, registry *Registry) error {
	seen := make(map[string]struct{})
	var walk func(n Node, path string) error
	walk = func(n Node, path string) error {
		if n.Ref == "" {
			return fmt.Errorf("node at %s has empty ref", path)
		}
		if _, exists := seen[n.Ref]; exists {
			return fmt.Errorf("duplicate node ref: %s", n.Ref)
		}
		seen[n.Ref] = struct{}{}
		if _, ok := ParseKind(n.Kind); !ok {
			return fmt.Errorf("node %s has invalid kind: %s", n.Ref, n.Kind)
		}
		if registry != nil && n.Type != "" {
			if _, err := registry.Base(n.Type); err != nil {
				return fmt.Errorf("node %s: %w", n.Ref, err)
			}
		}
		for i, c := range n.Children {
			if err := walk(c, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	for i, n := range snapshot.Instances {
		if err := walk(n, fmt.Sprintf("instances[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
