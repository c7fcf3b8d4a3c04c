package matter

import (
	"errors"
	"fmt"
)

// ErrSynthesisFail is returned when no composite can be built from a pool.
var ErrSynthesisFail = errors.New("synthesis failed")

// recipeMatch binds each substance entry of a composite to a pool instance.
type recipeMatch struct {
	base    *Base
	entries []Part
	sources []*instance
}

// TryCreate synthesizes a compound or mixture from the substances in pool.
// The registry composite with the most substance entries that the pool can
// satisfy is selected; ties go to the first declared. Every entry consumes
// required*ratio from its pool substance, where ratio is bounded by the
// limiting reagent. Non-substance pool members are ignored.
func (g *Graph) TryCreate(pool []Handle) (Handle, bool) {
	h, err := g.Synthesize(pool)
	return h, err == nil
}

// Synthesize is TryCreate with the failure reason.
func (g *Graph) Synthesize(pool []Handle) (Handle, error) {
	h, err := g.synthesize(pool)
	if err != nil {
		g.ctx.Metrics.Observe("synthesize", "fail")
		return Handle{}, err
	}
	g.ctx.Metrics.Observe("synthesize", "success")
	return h, nil
}

func (g *Graph) synthesize(pool []Handle) (Handle, error) {
	if g.ctx.Registry == nil {
		return Handle{}, fmt.Errorf("%w: graph has no registry", ErrSynthesisFail)
	}
	var substances []*instance
	for _, h := range pool {
		if in := g.get(h); in != nil && in.kind == KindSubstance && in.base != nil && in.quantity > 0 {
			substances = append(substances, in)
		}
	}
	if len(substances) == 0 {
		return Handle{}, fmt.Errorf("%w: pool has no substances", ErrSynthesisFail)
	}

	composites, err := g.ctx.Registry.Composites()
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrSynthesisFail, err)
	}
	var best *recipeMatch
	for _, b := range composites {
		m := matchRecipe(b, substances)
		if m == nil {
			continue
		}
		if best == nil || len(m.entries) > len(best.entries) {
			best = m
		}
	}
	if best == nil {
		return Handle{}, fmt.Errorf("%w: no recipe matches the pool", ErrSynthesisFail)
	}

	ratio := -1.0
	for i, part := range best.entries {
		r := best.sources[i].quantity / requiredQuantity(part)
		if ratio < 0 || r < ratio {
			ratio = r
		}
	}
	g.ctx.Logger.Infof("synthesizing: type=%s entries=%d ratio=%g", best.base.ID, len(best.entries), ratio)

	out := g.createBare(best.base)
	out.quantity = 0
	for i, part := range best.entries {
		src := best.sources[i]
		consumed := requiredQuantity(part) * ratio
		if consumed <= epsilon {
			continue
		}
		srcBase := src.base
		g.setQuantity(src, src.quantity-consumed)
		child := g.createBare(srcBase)
		child.quantity = consumed
		child.state = part.partState()
		g.AddChild(out.handle, child.handle)
	}
	return out.handle, nil
}

// requiredQuantity is the amount of a recipe entry needed at ratio 1.
func requiredQuantity(part Part) float64 {
	if q := part.Quantity.Nominal(); q > 0 {
		return q
	}
	return defaultQuantity
}

// matchRecipe binds every substance entry of b to a distinct pool
// substance of a matching type and state. Entries are bound with
// augmenting paths, so a supertype entry holding the only subtype
// instance gives it up when a later entry needs it. It returns nil when
// no complete binding exists.
func matchRecipe(b *Base, pool []*instance) *recipeMatch {
	entries := b.Substances
	fits := func(e, s int) bool {
		part := entries[e]
		return pool[s].base.IsA(part.Base) && pool[s].state == part.partState()
	}

	// boundTo[s] is the entry holding pool[s], or -1.
	boundTo := make([]int, len(pool))
	for s := range boundTo {
		boundTo[s] = -1
	}
	var augment func(e int, seen []bool) bool
	augment = func(e int, seen []bool) bool {
		for s := range pool {
			if seen[s] || !fits(e, s) {
				continue
			}
			seen[s] = true
			if boundTo[s] < 0 || augment(boundTo[s], seen) {
				boundTo[s] = e
				return true
			}
		}
		return false
	}
	for e := range entries {
		if !augment(e, make([]bool, len(pool))) {
			return nil
		}
	}

	m := &recipeMatch{base: b, entries: entries, sources: make([]*instance, len(entries))}
	for s, e := range boundTo {
		if e >= 0 {
			m.sources[e] = pool[s]
		}
	}
	return m
}
