package matter

// TypeID is the declarative identifier of a Base, condition or change.
type TypeID string

// Base is the immutable, shared definition of a matter kind. Bases are
// built by the Registry from a declarative source and cached for the
// lifetime of the registry; nothing mutates them after construction.
type Base struct {
	ID      TypeID
	Kind    Kind
	Parent  *Base
	State   StateOfMatter
	Formula string

	// Quantity is the default amount sampled for new instances.
	Quantity Range

	// Elements are the ordered element ratios every matter kind may declare.
	Elements []Part

	// Substances are the recipe of a compound or mixture.
	Substances []Part

	// Layers are the default stack of a material.
	Layers []Part

	// Mixture-only.
	MixtureKind string
	Composition string

	// Layer-only.
	StackIndex int
	Thickness  Range
}

// Part is a Base referenced as a part of another type, annotated with the
// state of matter and quantity it is required in (the "valued base").
type Part struct {
	Base      *Base
	Necessity Necessity
	State     StateOfMatter
	Quantity  Range
}

// IsA reports whether b is other or descends from it through Parent links.
func (b *Base) IsA(other *Base) bool {
	if other == nil {
		return true
	}
	for cur := b; cur != nil; cur = cur.Parent {
		if cur == other || cur.ID == other.ID {
			return true
		}
	}
	return false
}

// Symbol is the formula contribution of an element base.
func (b *Base) Symbol() string {
	if b == nil {
		return ""
	}
	return b.Formula
}

// partsOfKind returns the declared parts of b whose base is of kind k.
func (b *Base) partsOfKind(k Kind) []Part {
	switch k {
	case KindElement:
		return b.Elements
	case KindSubstance:
		return b.Substances
	case KindLayer:
		return b.Layers
	}
	return nil
}

// allParts returns every declared part in instantiation order.
func (b *Base) allParts() []Part {
	out := make([]Part, 0, len(b.Elements)+len(b.Substances)+len(b.Layers))
	out = append(out, b.Elements...)
	out = append(out, b.Substances...)
	out = append(out, b.Layers...)
	return out
}

// IsComposite reports whether b is a recipe candidate for synthesis.
func (b *Base) IsComposite() bool {
	return (b.Kind == KindCompound || b.Kind == KindMixture) && len(b.Substances) > 0
}

// partState is the state a part is required in, defaulting to its base's.
func (p Part) partState() StateOfMatter {
	if p.State != StateUnknown {
		return p.State
	}
	if p.Base != nil {
		return p.Base.State
	}
	return StateUnknown
}
