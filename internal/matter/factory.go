package matter

import "fmt"

// defaultQuantity is used when a type declares no quantity range.
const defaultQuantity = 1.0

// CreateByID resolves a type through the registry and instantiates it.
func (g *Graph) CreateByID(id TypeID) (Handle, error) {
	if g.ctx.Registry == nil {
		return Handle{}, fmt.Errorf("create %q: graph has no registry", id)
	}
	b, err := g.ctx.Registry.Base(id)
	if err != nil {
		return Handle{}, err
	}
	return g.Create(b), nil
}

// Create instantiates base with its defaults. Mandatory parts are created
// recursively; optional parts only when Options.InstantiateOptional is set.
func (g *Graph) Create(base *Base) Handle {
	if base == nil {
		return Handle{}
	}
	in := g.createBare(base)

	conservedParts := 0
	for _, part := range base.allParts() {
		if part.Necessity == Optional && !g.ctx.Options.InstantiateOptional {
			continue
		}
		if part.Base != nil && in.kind.conserved(part.Base.Kind) {
			conservedParts++
		}
	}
	if conservedParts > 0 {
		// the aggregate is rebuilt from the parts below
		in.quantity = 0
	}

	for _, part := range base.allParts() {
		if part.Necessity == Optional && !g.ctx.Options.InstantiateOptional {
			continue
		}
		child := g.CreatePart(part)
		if child.IsZero() {
			continue
		}
		g.AddChild(in.handle, child)
	}
	if conservedParts > 0 && in.quantity == 0 {
		in.quantity = defaultQuantity
	}
	return in.handle
}

// CreatePart instantiates a valued base: the part's state and quantity
// override the base defaults.
func (g *Graph) CreatePart(part Part) Handle {
	if part.Base == nil {
		return Handle{}
	}
	h := g.Create(part.Base)
	in := g.get(h)
	if in == nil {
		return Handle{}
	}
	if part.State != StateUnknown {
		in.state = part.State
	}
	if !part.Quantity.IsZero() {
		q := part.Quantity.Sample(g.rng)
		if q <= 0 {
			// a zero-quantity part is not instantiated
			g.destroy(in)
			return Handle{}
		}
		in.quantity = q
	}
	return h
}

// createBare allocates an instance from base defaults without parts.
func (g *Graph) createBare(base *Base) *instance {
	in := g.alloc(base.Kind, base)
	in.state = base.State
	in.formula = base.Formula
	in.quantity = defaultQuantity
	if !base.Quantity.IsZero() {
		in.quantity = base.Quantity.Sample(g.rng)
	}
	in.mixtureKind = base.MixtureKind
	in.stackIndex = base.StackIndex
	if !base.Thickness.IsZero() {
		in.thickness = base.Thickness.Sample(g.rng)
	}
	return in
}

// CreateBare instantiates base without default parts and with the given
// quantity.
func (g *Graph) CreateBare(base *Base, quantity float64) Handle {
	if base == nil || quantity <= 0 {
		return Handle{}
	}
	in := g.createBare(base)
	in.quantity = quantity
	return in.handle
}

// Clone deep-copies an instance subtree. The copy is unowned and outside
// the world.
func (g *Graph) Clone(h Handle) Handle {
	src := g.get(h)
	if src == nil {
		return Handle{}
	}
	return g.clone(src).handle
}

func (g *Graph) clone(src *instance) *instance {
	dst := g.alloc(src.kind, src.base)
	dst.quantity = src.quantity
	dst.state = src.state
	dst.formula = src.formula
	dst.position = src.position
	dst.mixtureKind = src.mixtureKind
	dst.stackIndex = src.stackIndex
	dst.thickness = src.thickness
	for _, ch := range src.children {
		c := g.get(ch)
		if c == nil {
			continue
		}
		cc := g.clone(c)
		cc.owner = dst.handle
		dst.children = append(dst.children, cc.handle)
	}
	return dst
}
