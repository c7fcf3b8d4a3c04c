package matter

import (
	"math/rand"
	"time"
)

// Relation is the status of an add or remove.
type Relation uint8

const (
	RelationFail Relation = iota
	RelationSuccess
	RelationAlreadyExists
)

func (r Relation) String() string {
	switch r {
	case RelationSuccess:
		return "success"
	case RelationAlreadyExists:
		return "already_exists"
	}
	return "fail"
}

// Options tune instance creation and expression evaluation.
type Options struct {
	// InstantiateOptional makes the factory create optional parts too.
	InstantiateOptional bool

	// Seed seeds quantity sampling; zero seeds from the clock.
	Seed int64

	ExprCacheSize int
}

// Context is threaded through a Graph in place of process-wide state.
type Context struct {
	Registry *Registry
	World    WorldRegistry
	WorldID  string
	Logger   Logger
	Metrics  Metrics
	Options  Options
}

// Graph is the arena that owns every instance of one world. It is not safe
// for concurrent mutation; callers serialize steps (see WorldManager).
type Graph struct {
	ctx   Context
	slots []*instance
	gens  []uint32
	free  []uint32
	live  int

	rng  *rand.Rand
	eval *evaluator

	listeners    []listenerEntry
	nextListener int
	watchers     map[Handle][]Listener
}

// NewGraph creates an empty graph. Missing collaborators get no-op defaults.
func NewGraph(ctx Context) *Graph {
	if ctx.Logger == nil {
		ctx.Logger = NewNoOpLogger()
	}
	if ctx.World == nil {
		ctx.World = noopWorld{}
	}
	if ctx.Metrics == nil {
		ctx.Metrics = noopMetrics{}
	}
	seed := ctx.Options.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Graph{
		ctx:      ctx,
		slots:    []*instance{nil},
		gens:     []uint32{0},
		rng:      rand.New(rand.NewSource(seed)),
		eval:     newEvaluator(ctx.Options.ExprCacheSize, ctx.Logger),
		watchers: make(map[Handle][]Listener),
	}
}

// Registry returns the registry the graph resolves types through.
func (g *Graph) Registry() *Registry {
	return g.ctx.Registry
}

// Len returns the number of live instances.
func (g *Graph) Len() int {
	return g.live
}

func (g *Graph) alloc(kind Kind, base *Base) *instance {
	var idx uint32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.slots = append(g.slots, nil)
		g.gens = append(g.gens, 0)
		idx = uint32(len(g.slots) - 1)
	}
	g.gens[idx]++
	in := &instance{
		handle: Handle{index: idx, gen: g.gens[idx]},
		kind:   kind,
		base:   base,
	}
	g.slots[idx] = in
	g.live++
	g.ctx.Metrics.SetLiveInstances(g.ctx.WorldID, g.live)
	return in
}

func (g *Graph) get(h Handle) *instance {
	if h.IsZero() || int(h.index) >= len(g.slots) {
		return nil
	}
	in := g.slots[h.index]
	if in == nil || in.handle != h {
		return nil
	}
	return in
}

// Exists reports whether h addresses a live instance.
func (g *Graph) Exists(h Handle) bool {
	return g.get(h) != nil
}

// Info returns a copy of the instance's attributes.
func (g *Graph) Info(h Handle) (Info, bool) {
	in := g.get(h)
	if in == nil {
		return Info{}, false
	}
	return in.info(), true
}

// Quantity returns the instance's quantity, zero for a stale handle.
func (g *Graph) Quantity(h Handle) float64 {
	if in := g.get(h); in != nil {
		return in.quantity
	}
	return 0
}

// Children returns the instance's children in insertion order.
func (g *Graph) Children(h Handle) []Handle {
	in := g.get(h)
	if in == nil {
		return nil
	}
	out := make([]Handle, len(in.children))
	copy(out, in.children)
	return out
}

// Owner returns the owning instance, or the zero handle.
func (g *Graph) Owner(h Handle) Handle {
	if in := g.get(h); in != nil {
		return in.owner
	}
	return Handle{}
}

// NewContainer creates an empty tangible object or space.
func (g *Graph) NewContainer(kind Kind) (Handle, bool) {
	if !kind.IsContainer() {
		return Handle{}, false
	}
	return g.alloc(kind, nil).handle, true
}

// SetQuantity assigns a quantity. The value is floored at zero, the delta
// is propagated to a conserving owner, and reaching zero destroys the
// instance. A composite rescales its conserved parts instead, so its
// quantity stays the sum of theirs.
func (g *Graph) SetQuantity(h Handle, v float64) bool {
	in := g.get(h)
	if in == nil || in.kind.IsContainer() {
		return false
	}
	g.assignQuantity(in, v)
	return true
}

// AdjustQuantity adds delta (possibly negative) to the quantity.
func (g *Graph) AdjustQuantity(h Handle, delta float64) bool {
	in := g.get(h)
	if in == nil || in.kind.IsContainer() {
		return false
	}
	g.assignQuantity(in, in.quantity+delta)
	return true
}

// assignQuantity is the entry point for requested quantities. When in
// aggregates conserved children, each child is scaled by v/sum and the
// aggregate follows through setQuantity.
func (g *Graph) assignQuantity(in *instance, v float64) {
	v = clampQuantity(v)
	var parts []*instance
	total := 0.0
	for _, ch := range in.children {
		if c := g.get(ch); c != nil && in.kind.conserved(c.kind) && c.quantity > 0 {
			parts = append(parts, c)
			total += c.quantity
		}
	}
	if len(parts) == 0 || total <= epsilon {
		g.setQuantity(in, v)
		return
	}
	factor := v / total
	for _, c := range parts {
		if g.alive(c) {
			g.assignQuantity(c, c.quantity*factor)
		}
	}
}

func (g *Graph) setQuantity(in *instance, v float64) {
	v = clampQuantity(v)
	delta := v - in.quantity
	in.quantity = v

	var owner *instance
	if o := g.get(in.owner); o != nil && o.kind.conserved(in.kind) {
		owner = o
	}
	if v == 0 {
		g.collapse(in)
	}
	if owner != nil && delta != 0 && g.get(owner.handle) != nil {
		g.setQuantity(owner, owner.quantity+delta)
	}
}

// collapse removes a depleted instance from its owner and world.
func (g *Graph) collapse(in *instance) {
	g.ctx.Logger.Debugf("instance depleted: handle=%s type=%s", in.handle, in.typeID())
	if !in.owner.IsZero() {
		g.RemoveChild(in.owner, in.handle)
	}
	g.destroy(in)
}

// destroy frees in and its subtree. It does not detach in from its owner.
func (g *Graph) destroy(in *instance) {
	for _, ch := range in.children {
		if c := g.get(ch); c != nil {
			c.owner = Handle{}
			g.destroy(c)
		}
	}
	in.children = nil
	if in.inWorld {
		in.inWorld = false
		g.ctx.World.RemoveInstance(in.handle)
	}
	delete(g.watchers, in.handle)
	g.slots[in.handle.index] = nil
	g.free = append(g.free, in.handle.index)
	g.live--
	g.ctx.Metrics.SetLiveInstances(g.ctx.WorldID, g.live)
}

// Destroy detaches and frees an instance and everything it owns.
func (g *Graph) Destroy(h Handle) bool {
	in := g.get(h)
	if in == nil {
		return false
	}
	if !in.owner.IsZero() {
		g.RemoveChild(in.owner, h)
	}
	g.destroy(in)
	return true
}

func (g *Graph) isAncestor(candidate, of Handle) bool {
	for cur := g.get(of); cur != nil; cur = g.get(cur.owner) {
		if cur.handle == candidate {
			return true
		}
	}
	return false
}

// sameType finds a child of owner with the same type as in.
func (g *Graph) sameType(owner *instance, in *instance) *instance {
	for _, ch := range owner.children {
		c := g.get(ch)
		if c == nil || c == in || c.kind != in.kind {
			continue
		}
		if in.base == nil || c.base == nil {
			continue
		}
		if c.base.ID == in.base.ID {
			return c
		}
	}
	return nil
}

// AddChild makes child a part of parent. A child of the same type as an
// existing sibling is merged into it: quantities are summed, the incoming
// instance is discarded and the sibling's handle is returned.
func (g *Graph) AddChild(parent, child Handle) (Handle, Relation) {
	p, c := g.get(parent), g.get(child)
	if p == nil || c == nil || p == c {
		g.ctx.Metrics.Observe("add_child", "fail")
		return Handle{}, RelationFail
	}
	if c.owner == parent {
		g.ctx.Metrics.Observe("add_child", "already_exists")
		return child, RelationAlreadyExists
	}
	if !p.kind.CanOwn(c.kind) || g.isAncestor(child, parent) {
		g.ctx.Metrics.Observe("add_child", "fail")
		return Handle{}, RelationFail
	}
	if !c.owner.IsZero() {
		g.RemoveChild(c.owner, child)
		// leaving the previous owner may have collapsed the parent chain
		if p = g.get(parent); p == nil {
			g.ctx.Metrics.Observe("add_child", "fail")
			return Handle{}, RelationFail
		}
	}

	if sib := g.sameType(p, c); sib != nil {
		amount := c.quantity
		g.destroy(c)
		g.setQuantity(sib, sib.quantity+amount)
		if sib = g.get(sib.handle); sib == nil {
			return Handle{}, RelationSuccess
		}
		g.emit(EventAdded, p, sib, true)
		g.ctx.Metrics.Observe("add_child", "merged")
		return sib.handle, RelationSuccess
	}

	p.children = append(p.children, child)
	c.owner = parent
	if c.kind == KindElement {
		g.syncFormula(p)
	}
	if p.inWorld {
		g.attachWorld(c)
	} else if c.inWorld {
		g.detachWorld(c)
	}
	if p.kind.conserved(c.kind) && c.quantity != 0 {
		g.setQuantity(p, p.quantity+c.quantity)
	}
	if p = g.get(parent); p != nil {
		g.emit(EventAdded, p, c, false)
	}
	g.ctx.Metrics.Observe("add_child", "success")
	return child, RelationSuccess
}

// RemoveChild detaches child from parent. The child keeps existing,
// unowned and outside the world.
func (g *Graph) RemoveChild(parent, child Handle) Relation {
	p, c := g.get(parent), g.get(child)
	if p == nil || c == nil || c.owner != parent {
		g.ctx.Metrics.Observe("remove_child", "fail")
		return RelationFail
	}
	for i, ch := range p.children {
		if ch == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	c.owner = Handle{}
	if c.kind == KindElement {
		g.syncFormula(p)
	}
	if c.inWorld {
		g.detachWorld(c)
	}
	g.emit(EventRemoved, p, c, false)
	g.ctx.Metrics.Observe("remove_child", "success")
	if p.kind.conserved(c.kind) && c.quantity != 0 {
		g.setQuantity(p, p.quantity-c.quantity)
	}
	return RelationSuccess
}

// syncFormula rebuilds the formula from element children in order.
func (g *Graph) syncFormula(in *instance) {
	formula := ""
	for _, ch := range in.children {
		if c := g.get(ch); c != nil && c.kind == KindElement {
			formula += c.formula
		}
	}
	in.formula = formula
}

// AttachWorld registers an unowned instance and its subtree with the world.
func (g *Graph) AttachWorld(h Handle) bool {
	in := g.get(h)
	if in == nil || !in.owner.IsZero() {
		return false
	}
	g.attachWorld(in)
	return true
}

// DetachWorld unregisters an unowned instance and its subtree.
func (g *Graph) DetachWorld(h Handle) bool {
	in := g.get(h)
	if in == nil || !in.owner.IsZero() || !in.inWorld {
		return false
	}
	g.detachWorld(in)
	return true
}

func (g *Graph) attachWorld(in *instance) {
	if !in.inWorld {
		in.inWorld = true
		g.ctx.World.AddInstance(in.handle)
	}
	for _, ch := range in.children {
		if c := g.get(ch); c != nil {
			g.attachWorld(c)
		}
	}
}

func (g *Graph) detachWorld(in *instance) {
	if in.inWorld {
		in.inWorld = false
		g.ctx.World.RemoveInstance(in.handle)
	}
	for _, ch := range in.children {
		if c := g.get(ch); c != nil {
			g.detachWorld(c)
		}
	}
}

// Move offsets the instance and everything it owns by delta.
func (g *Graph) Move(h Handle, delta Vector) bool {
	in := g.get(h)
	if in == nil {
		return false
	}
	g.move(in, delta)
	return true
}

func (g *Graph) move(in *instance, delta Vector) {
	in.position = in.position.Add(delta)
	for _, ch := range in.children {
		if c := g.get(ch); c != nil {
			g.move(c, delta)
		}
	}
}

// SetPosition moves the instance to p, carrying its subtree along.
func (g *Graph) SetPosition(h Handle, p Vector) bool {
	in := g.get(h)
	if in == nil {
		return false
	}
	g.move(in, p.Sub(in.position))
	return true
}

// Position returns the instance's position.
func (g *Graph) Position(h Handle) Vector {
	if in := g.get(h); in != nil {
		return in.position
	}
	return Vector{}
}

// Absorb moves every child of the mixture other into mixture (merging
// same-type substances) and destroys other.
func (g *Graph) Absorb(mixture, other Handle) bool {
	m, o := g.get(mixture), g.get(other)
	if m == nil || o == nil || m == o || m.kind != KindMixture || o.kind != KindMixture {
		return false
	}
	if g.isAncestor(other, mixture) {
		return false
	}
	for _, ch := range append([]Handle(nil), o.children...) {
		if g.get(ch) == nil {
			continue
		}
		if g.get(mixture) == nil {
			break
		}
		g.AddChild(mixture, ch)
	}
	if o = g.get(other); o != nil {
		if o.owner.IsZero() {
			g.destroy(o)
		} else {
			g.setQuantity(o, 0)
		}
	}
	return g.get(mixture) != nil
}
