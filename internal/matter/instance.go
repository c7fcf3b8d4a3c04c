package matter

import (
	"fmt"
	"strings"
)

// Handle addresses an instance in a Graph's arena. The generation makes a
// handle to a destroyed instance stale instead of aliasing its slot's next
// occupant. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	if h.IsZero() {
		return "#nil"
	}
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

// instance is one arena node. Matter nodes carry a base; containers
// (objects, spaces) only own children and a position.
type instance struct {
	handle Handle
	kind   Kind
	base   *Base

	quantity float64
	state    StateOfMatter
	formula  string

	children []Handle
	owner    Handle
	inWorld  bool
	position Vector

	// mixture
	mixtureKind string

	// layer
	stackIndex int
	thickness  float64
}

func (in *instance) typeID() TypeID {
	if in.base == nil {
		return ""
	}
	return in.base.ID
}

func (in *instance) self() selfView {
	return selfView{
		Quantity: in.quantity,
		State:    in.state.String(),
		Formula:  in.formula,
		Kind:     in.kind.String(),
		Type:     string(in.typeID()),
		Children: len(in.children),
	}
}

// Info is a read-only copy of an instance's attributes.
type Info struct {
	Handle      Handle
	Kind        Kind
	Type        TypeID
	Quantity    float64
	State       StateOfMatter
	Formula     string
	Owner       Handle
	InWorld     bool
	Position    Vector
	Children    []Handle
	MixtureKind string
	StackIndex  int
	Thickness   float64
}

func (in *instance) info() Info {
	children := make([]Handle, len(in.children))
	copy(children, in.children)
	return Info{
		Handle:      in.handle,
		Kind:        in.kind,
		Type:        in.typeID(),
		Quantity:    in.quantity,
		State:       in.state,
		Formula:     in.formula,
		Owner:       in.owner,
		InWorld:     in.inWorld,
		Position:    in.position,
		Children:    children,
		MixtureKind: in.mixtureKind,
		StackIndex:  in.stackIndex,
		Thickness:   in.thickness,
	}
}

// ParseHandle parses the "#index.gen" form produced by Handle.String. The
// leading '#' is optional so refs can travel in URL paths.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	if _, err := fmt.Sscanf(strings.TrimPrefix(s, "#"), "%d.%d", &h.index, &h.gen); err != nil {
		return Handle{}, fmt.Errorf("parse handle %q: %w", s, err)
	}
	if h.IsZero() {
		return Handle{}, fmt.Errorf("parse handle %q: zero generation", s)
	}
	return h, nil
}
