package matter

// Satisfies evaluates cond against the instance. A nil condition is
// trivially true; a stale handle never satisfies anything. The check is a
// pure query: it never mutates the graph.
func (g *Graph) Satisfies(h Handle, cond *Condition, vars Bindings) bool {
	in := g.get(h)
	if in == nil {
		g.ctx.Metrics.Observe("satisfies", "false")
		return false
	}
	ok := g.satisfies(in, cond, vars)
	if ok {
		g.ctx.Metrics.Observe("satisfies", "true")
	} else {
		g.ctx.Metrics.Observe("satisfies", "false")
	}
	return ok
}

func (g *Graph) satisfies(in *instance, cond *Condition, vars Bindings) bool {
	if cond == nil {
		return true
	}
	if g.structural(in, cond, vars) {
		return g.kindChecks(in, cond, vars)
	}
	// A condition on a part kind matches a whole that contains such a part.
	if in.kind.IsContainer() || in.kind.narrower(cond.Kind()) {
		for _, ch := range in.children {
			if c := g.get(ch); c != nil && g.satisfies(c, cond, vars) {
				return true
			}
		}
	}
	return false
}

func (g *Graph) checkNumber(actual float64, nc *NumberConstraint, in *instance, vars Bindings) bool {
	if nc == nil {
		return true
	}
	want, err := g.eval.number(nc.Value, in.self(), vars)
	if err != nil {
		g.ctx.Logger.Debugf("constraint operand failed: handle=%s error=%v", in.handle, err)
		return false
	}
	return CompareNumber(actual, nc.Sign, want)
}

func checkText(actual string, tc *TextConstraint) bool {
	if tc == nil {
		return true
	}
	return CompareText(actual, tc.Sign, tc.Value)
}

// structural runs the checks every matter kind shares.
func (g *Graph) structural(in *instance, cond *Condition, vars Bindings) bool {
	if in.kind.IsContainer() {
		return false
	}
	if k := cond.Kind(); k != KindMatter && k != in.kind {
		return false
	}
	if cond.Type != nil && (in.base == nil || !in.base.IsA(cond.Type)) {
		return false
	}
	if !g.checkNumber(in.quantity, cond.Quantity, in, vars) {
		return false
	}
	if cond.State != nil {
		eq := in.state == cond.State.Value
		if cond.State.Sign == SignNe {
			eq = !eq
		}
		if !eq {
			return false
		}
	}
	if !checkText(in.formula, cond.Formula) {
		return false
	}
	if cond.AllMandatoryElements && !g.hasMandatory(in, KindElement) {
		return false
	}
	return g.partsSatisfied(in, KindElement, cond.Elements, vars)
}

// kindChecks runs the payload-specific checks and the trailing expression.
func (g *Graph) kindChecks(in *instance, cond *Condition, vars Bindings) bool {
	ok := true
	switch p := cond.Payload.(type) {
	case ElementCondition:
		ok = checkText(in.formula, p.Symbol)
	case SubstanceCondition:
	case CompoundCondition:
		ok = (!p.AllMandatorySubstances || g.hasMandatory(in, KindSubstance)) &&
			g.partsSatisfied(in, KindSubstance, p.Substances, vars)
	case MixtureCondition:
		ok = checkText(in.mixtureKind, p.MixtureKind) &&
			(!p.AllMandatorySubstances || g.hasMandatory(in, KindSubstance)) &&
			g.partsSatisfied(in, KindSubstance, p.Substances, vars)
	case MaterialCondition:
		ok = g.checkNumber(float64(g.countKind(in, KindLayer)), p.LayerCount, in, vars) &&
			g.partsSatisfied(in, KindLayer, p.Layers, vars)
	case LayerCondition:
		ok = g.checkNumber(float64(in.stackIndex), p.StackIndex, in, vars) &&
			g.checkNumber(in.thickness, p.Thickness, in, vars)
	}
	if !ok {
		return false
	}
	if cond.Expr != "" {
		return g.eval.predicate(cond.Expr, in.self(), vars)
	}
	return true
}

func (g *Graph) countKind(in *instance, kind Kind) int {
	n := 0
	for _, ch := range in.children {
		if c := g.get(ch); c != nil && c.kind == kind {
			n++
		}
	}
	return n
}

// hasMandatory checks that every mandatory part of the given kind declared
// by the instance's base is present. A part without a quantity needs one
// matching child; a part with a quantity needs at least that much in total.
func (g *Graph) hasMandatory(in *instance, kind Kind) bool {
	if in.base == nil {
		return true
	}
	for _, part := range in.base.partsOfKind(kind) {
		if part.Necessity != Mandatory {
			continue
		}
		found := false
		sum := 0.0
		for _, ch := range in.children {
			c := g.get(ch)
			if c == nil || c.kind != kind || c.base == nil || !c.base.IsA(part.Base) {
				continue
			}
			found = true
			sum += c.quantity
		}
		if !found {
			return false
		}
		if !part.Quantity.IsZero() && !CompareNumber(sum, SignGte, part.Quantity.Nominal()) {
			return false
		}
	}
	return true
}

// partsSatisfied checks each part condition against the children of kind.
func (g *Graph) partsSatisfied(in *instance, kind Kind, parts []PartCondition, vars Bindings) bool {
	for _, pc := range parts {
		count := 0
		sum := 0.0
		for _, ch := range in.children {
			c := g.get(ch)
			if c == nil || c.kind != kind {
				continue
			}
			if g.satisfies(c, pc.Condition, vars) {
				count++
				sum += c.quantity
			}
		}
		if pc.Count == nil && pc.Amount == nil {
			if count == 0 {
				return false
			}
			continue
		}
		if !g.checkNumber(float64(count), pc.Count, in, vars) {
			return false
		}
		if !g.checkNumber(sum, pc.Amount, in, vars) {
			return false
		}
	}
	return true
}
