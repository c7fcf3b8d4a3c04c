package matter

// Apply executes change against the instance. It returns false only when
// no layer of the instance (or, through the fallback, of its children)
// recognizes the change. Once recognized, effects apply best-effort with no
// rollback: an instance collapsing to zero midway ends its own application.
func (g *Graph) Apply(h Handle, change *Change, vars Bindings) bool {
	in := g.get(h)
	if in == nil || change == nil {
		g.ctx.Metrics.Observe("apply", "fail")
		return false
	}
	ok := g.apply(in, change, vars)
	if ok {
		g.ctx.Metrics.Observe("apply", "recognized")
	} else {
		g.ctx.Metrics.Observe("apply", "unrecognized")
	}
	return ok
}

func (g *Graph) apply(in *instance, change *Change, vars Bindings) bool {
	if g.recognizes(in, change) {
		g.applyBase(in, change, vars)
		if g.get(in.handle) != nil {
			g.applyKind(in, change, vars)
		}
		return true
	}
	// Unrecognized changes are addressed to every child directly.
	recognized := false
	for _, ch := range append([]Handle(nil), in.children...) {
		c := g.get(ch)
		if c == nil {
			continue
		}
		if g.apply(c, change, vars) {
			recognized = true
		}
		if g.get(in.handle) == nil {
			break
		}
	}
	return recognized
}

func (g *Graph) recognizes(in *instance, change *Change) bool {
	if in.kind.IsContainer() {
		return false
	}
	if k := change.Kind(); k != KindMatter && k != in.kind {
		return false
	}
	if change.Type != nil && (in.base == nil || !in.base.IsA(change.Type)) {
		return false
	}
	return true
}

func (g *Graph) alive(in *instance) bool {
	return g.get(in.handle) != nil
}

func (g *Graph) resolveQuantity(current float64, qc *QuantityChange, in *instance, vars Bindings) (float64, bool) {
	v, err := g.eval.number(qc.Value, in.self(), vars)
	if err != nil {
		g.ctx.Logger.Warnf("change value skipped: handle=%s error=%v", in.handle, err)
		return current, false
	}
	if qc.Mode == QuantityDelta {
		return current + v, true
	}
	return v, true
}

// applyBase runs the effects shared by every matter kind.
func (g *Graph) applyBase(in *instance, change *Change, vars Bindings) {
	if change.Quantity != nil {
		if v, ok := g.resolveQuantity(in.quantity, change.Quantity, in, vars); ok {
			g.assignQuantity(in, v)
			if !g.alive(in) {
				return
			}
		}
	}
	if change.State != nil {
		in.state = *change.State
	}
	if change.Formula != nil {
		g.setFormula(in, *change.Formula)
	}
	g.applyParts(in, KindElement, change.Elements, change.AddElements, change.RemoveElements, vars)
}

// applyKind runs the payload-specific effects.
func (g *Graph) applyKind(in *instance, change *Change, vars Bindings) {
	switch p := change.Payload.(type) {
	case ElementChange:
		if p.Symbol != nil {
			g.setFormula(in, *p.Symbol)
		}
	case SubstanceChange:
	case CompoundChange:
		g.applyParts(in, KindSubstance, p.Substances, p.Add, p.Remove, vars)
	case MixtureChange:
		if p.MixtureKind != nil {
			in.mixtureKind = *p.MixtureKind
		}
		g.applyParts(in, KindSubstance, p.Substances, p.Add, p.Remove, vars)
	case MaterialChange:
		g.applyParts(in, KindLayer, p.Layers, p.Add, p.Remove, vars)
	case LayerChange:
		if p.StackIndex != nil {
			in.stackIndex = *p.StackIndex
		}
		if p.Thickness != nil {
			if v, ok := g.resolveQuantity(in.thickness, p.Thickness, in, vars); ok {
				in.thickness = clampQuantity(v)
			}
		}
	}
}

// setFormula overwrites the formula. An element's formula is its symbol,
// so the owner's formula is rebuilt.
func (g *Graph) setFormula(in *instance, formula string) {
	in.formula = formula
	if in.kind != KindElement {
		return
	}
	if o := g.get(in.owner); o != nil {
		g.syncFormula(o)
	}
}

// applyParts updates existing children of kind, then creates additions,
// then runs removals.
func (g *Graph) applyParts(in *instance, kind Kind, changes []*Change, add []Part, remove []Removal, vars Bindings) {
	for _, nested := range changes {
		for _, ch := range append([]Handle(nil), in.children...) {
			if c := g.get(ch); c != nil && c.kind == kind {
				g.apply(c, nested, vars)
			}
		}
		if !g.alive(in) {
			return
		}
	}
	for _, part := range add {
		child := g.CreatePart(part)
		if child.IsZero() {
			continue
		}
		if _, rel := g.AddChild(in.handle, child); rel == RelationFail {
			g.Destroy(child)
		}
		if !g.alive(in) {
			return
		}
	}
	for _, r := range remove {
		g.removeMatching(in, kind, r, vars)
		if !g.alive(in) {
			return
		}
	}
}

// removeMatching removes the first child matching the removal's condition,
// or, with a quantity, decrements matching children in order until that
// quantity is exhausted.
func (g *Graph) removeMatching(in *instance, kind Kind, r Removal, vars Bindings) {
	if r.Quantity == nil {
		for _, ch := range in.children {
			c := g.get(ch)
			if c != nil && c.kind == kind && g.satisfies(c, r.Condition, vars) {
				g.Destroy(ch)
				return
			}
		}
		return
	}

	remaining, err := g.eval.number(*r.Quantity, in.self(), vars)
	if err != nil {
		g.ctx.Logger.Warnf("removal quantity skipped: handle=%s error=%v", in.handle, err)
		return
	}
	for _, ch := range append([]Handle(nil), in.children...) {
		if remaining <= epsilon || !g.alive(in) {
			return
		}
		c := g.get(ch)
		if c == nil || c.kind != kind || !g.satisfies(c, r.Condition, vars) {
			continue
		}
		take := c.quantity
		if take > remaining {
			take = remaining
		}
		remaining -= take
		g.setQuantity(c, c.quantity-take)
	}
}
