package matter

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnknownType      = errors.New("unknown type")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrUnknownChange    = errors.New("unknown change")
	ErrCycle            = errors.New("definition cycle")
)

// Registry resolves Base, Condition and Change nodes from a Source on first
// lookup and caches them. Lookups are idempotent: the same id always yields
// the same pointer. Resolution is serialized; cached reads still take the
// lock but never touch the Source.
type Registry struct {
	mu     sync.Mutex
	source Source
	logger Logger

	bases      map[TypeID]*Base
	conditions map[TypeID]*Condition
	changes    map[TypeID]*Change
	resolving  map[string]bool

	composites []*Base
}

// NewRegistry creates a registry over the given source.
func NewRegistry(source Source) *Registry {
	return NewRegistryWithLogger(source, nil)
}

// NewRegistryWithLogger creates a registry that reports resolution events.
func NewRegistryWithLogger(source Source, logger Logger) *Registry {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &Registry{
		source:     source,
		logger:     logger,
		bases:      make(map[TypeID]*Base),
		conditions: make(map[TypeID]*Condition),
		changes:    make(map[TypeID]*Change),
		resolving:  make(map[string]bool),
	}
}

// Base returns the type definition for id, resolving it on first use.
func (r *Registry) Base(id TypeID) (*Base, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base(id)
}

// Condition returns the named condition, resolving it on first use.
func (r *Registry) Condition(id TypeID) (*Condition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.condition(id)
}

// Change returns the named change, resolving it on first use.
func (r *Registry) Change(id TypeID) (*Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.change(id)
}

// BuildCondition builds an ad-hoc condition. Named references inside it are
// resolved through the cache; the result itself is not cached.
func (r *Registry) BuildCondition(cfg ConditionConfig) (*Condition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildCondition(cfg)
}

// BuildChange builds an ad-hoc change.
func (r *Registry) BuildChange(cfg ChangeConfig) (*Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildChange(cfg)
}

// IsA reports whether type a descends from type b.
func (r *Registry) IsA(a, b TypeID) (bool, error) {
	ba, err := r.Base(a)
	if err != nil {
		return false, err
	}
	bb, err := r.Base(b)
	if err != nil {
		return false, err
	}
	return ba.IsA(bb), nil
}

// Composites returns every compound and mixture type that declares a
// substance recipe, in declaration order.
func (r *Registry) Composites() ([]*Base, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.composites != nil {
		return r.composites, nil
	}
	ids, err := r.source.IDs(CategoryType)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	out := make([]*Base, 0)
	for _, id := range ids {
		b, err := r.base(id)
		if err != nil {
			return nil, err
		}
		if b.IsComposite() {
			out = append(out, b)
		}
	}
	r.composites = out
	return out, nil
}

// Preload resolves every declared id, surfacing reference errors early.
func (r *Registry) Preload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cat := range []Category{CategoryType, CategoryCondition, CategoryChange} {
		ids, err := r.source.IDs(cat)
		if err != nil {
			return fmt.Errorf("list %ss: %w", cat, err)
		}
		for _, id := range ids {
			switch cat {
			case CategoryType:
				_, err = r.base(id)
			case CategoryCondition:
				_, err = r.condition(id)
			case CategoryChange:
				_, err = r.change(id)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) unknown(sentinel error, cat Category, id TypeID, cause error) error {
	known, _ := r.source.IDs(cat)
	names := make([]string, len(known))
	for i, k := range known {
		names[i] = string(k)
	}
	if s := suggest(string(id), names); len(s) > 0 {
		r.logger.Warnf("unknown %s: id=%s suggestions=%s", cat, id, strings.Join(s, ","))
		return fmt.Errorf("%w %q (did you mean %s?)", sentinel, id, strings.Join(s, ", "))
	}
	r.logger.Warnf("unknown %s: id=%s", cat, id)
	if cause != nil && !errors.Is(cause, ErrNotDeclared) {
		return fmt.Errorf("%w %q: %v", sentinel, id, cause)
	}
	return fmt.Errorf("%w %q", sentinel, id)
}

// enter marks key as being resolved and reports a cycle if it already is.
func (r *Registry) enter(key string) error {
	if r.resolving[key] {
		return fmt.Errorf("%w through %s", ErrCycle, key)
	}
	r.resolving[key] = true
	return nil
}

func (r *Registry) leave(key string) {
	delete(r.resolving, key)
}

func (r *Registry) base(id TypeID) (*Base, error) {
	if b, ok := r.bases[id]; ok {
		return b, nil
	}
	key := "type:" + string(id)
	if err := r.enter(key); err != nil {
		return nil, err
	}
	defer r.leave(key)

	tc, err := r.source.Type(id)
	if err != nil {
		return nil, r.unknown(ErrUnknownType, CategoryType, id, err)
	}
	b, err := r.buildBase(tc)
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", id, err)
	}
	r.bases[id] = b
	r.logger.Debugf("type resolved: id=%s kind=%s", id, b.Kind)
	return b, nil
}

func (r *Registry) buildBase(tc TypeConfig) (*Base, error) {
	kind, ok := ParseKind(tc.Kind)
	if !ok || kind == KindMatter || kind.IsContainer() {
		return nil, fmt.Errorf("invalid kind %q", tc.Kind)
	}
	state, ok := ParseState(tc.State)
	if !ok {
		return nil, fmt.Errorf("invalid state %q", tc.State)
	}
	b := &Base{
		ID:          TypeID(tc.ID),
		Kind:        kind,
		State:       state,
		Formula:     tc.Formula,
		Quantity:    tc.Quantity,
		MixtureKind: tc.MixtureKind,
		Composition: tc.Composition,
		StackIndex:  tc.StackIndex,
		Thickness:   tc.Thickness,
	}
	if tc.Parent != "" {
		parent, err := r.base(TypeID(tc.Parent))
		if err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		b.Parent = parent
		if b.State == StateUnknown {
			b.State = parent.State
		}
	}
	var err error
	if b.Elements, err = r.buildParts(tc.Elements, KindElement); err != nil {
		return nil, err
	}
	if b.Substances, err = r.buildParts(tc.Substances, KindSubstance); err != nil {
		return nil, err
	}
	if b.Layers, err = r.buildParts(tc.Layers, KindLayer); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Registry) buildParts(cfgs []PartConfig, want Kind) ([]Part, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	parts := make([]Part, 0, len(cfgs))
	for _, pc := range cfgs {
		p, err := r.buildPart(pc, want)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func (r *Registry) buildPart(pc PartConfig, want Kind) (Part, error) {
	b, err := r.base(TypeID(pc.Type))
	if err != nil {
		return Part{}, fmt.Errorf("part: %w", err)
	}
	if want != KindMatter && b.Kind != want {
		return Part{}, fmt.Errorf("part %q is a %s, not a %s", pc.Type, b.Kind, want)
	}
	nec, ok := ParseNecessity(pc.Necessity)
	if !ok {
		return Part{}, fmt.Errorf("part %q: invalid necessity %q", pc.Type, pc.Necessity)
	}
	state, ok := ParseState(pc.State)
	if !ok {
		return Part{}, fmt.Errorf("part %q: invalid state %q", pc.Type, pc.State)
	}
	return Part{Base: b, Necessity: nec, State: state, Quantity: pc.Quantity}, nil
}

func (r *Registry) condition(id TypeID) (*Condition, error) {
	if c, ok := r.conditions[id]; ok {
		return c, nil
	}
	key := "condition:" + string(id)
	if err := r.enter(key); err != nil {
		return nil, err
	}
	defer r.leave(key)

	cc, err := r.source.Condition(id)
	if err != nil {
		return nil, r.unknown(ErrUnknownCondition, CategoryCondition, id, err)
	}
	c, err := r.buildCondition(cc)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", id, err)
	}
	r.conditions[id] = c
	return c, nil
}

func (r *Registry) change(id TypeID) (*Change, error) {
	if c, ok := r.changes[id]; ok {
		return c, nil
	}
	key := "change:" + string(id)
	if err := r.enter(key); err != nil {
		return nil, err
	}
	defer r.leave(key)

	cc, err := r.source.Change(id)
	if err != nil {
		return nil, r.unknown(ErrUnknownChange, CategoryChange, id, err)
	}
	c, err := r.buildChange(cc)
	if err != nil {
		return nil, fmt.Errorf("change %q: %w", id, err)
	}
	r.changes[id] = c
	return c, nil
}

func (r *Registry) optionalType(id string) (*Base, error) {
	if id == "" {
		return nil, nil
	}
	return r.base(TypeID(id))
}

func numberConstraint(n *NumberConfig) (*NumberConstraint, error) {
	if n == nil {
		return nil, nil
	}
	sign := Sign(n.Sign)
	if !sign.Valid() {
		return nil, fmt.Errorf("invalid sign %q", n.Sign)
	}
	op := Operand{Expr: n.Expr}
	if n.Value != nil {
		op.Value = *n.Value
	}
	return &NumberConstraint{Sign: sign, Value: op}, nil
}

func textConstraint(t *TextConfig) (*TextConstraint, error) {
	if t == nil {
		return nil, nil
	}
	sign := Sign(t.Sign)
	if !sign.Valid() {
		return nil, fmt.Errorf("invalid sign %q", t.Sign)
	}
	return &TextConstraint{Sign: sign, Value: t.Value}, nil
}

func (r *Registry) buildCondition(cc ConditionConfig) (*Condition, error) {
	kind := KindMatter
	if cc.Kind != "" {
		k, ok := ParseKind(cc.Kind)
		if !ok || k.IsContainer() {
			return nil, fmt.Errorf("invalid kind %q", cc.Kind)
		}
		kind = k
	}
	typ, err := r.optionalType(cc.Type)
	if err != nil {
		return nil, err
	}
	if typ != nil && cc.Kind == "" {
		kind = typ.Kind
	}

	c := &Condition{ID: TypeID(cc.ID), Type: typ, AllMandatoryElements: cc.AllMandatoryElements, Expr: cc.Expr}
	if c.Quantity, err = numberConstraint(cc.Quantity); err != nil {
		return nil, err
	}
	if c.Formula, err = textConstraint(cc.Formula); err != nil {
		return nil, err
	}
	if cc.State != nil {
		st, ok := ParseState(cc.State.Value)
		if !ok {
			return nil, fmt.Errorf("invalid state %q", cc.State.Value)
		}
		sign := Sign(cc.State.Sign)
		if !sign.Valid() {
			return nil, fmt.Errorf("invalid sign %q", cc.State.Sign)
		}
		c.State = &StateConstraint{Sign: sign, Value: st}
	}
	if c.Elements, err = r.buildPartConditions(cc.Elements); err != nil {
		return nil, err
	}

	switch kind {
	case KindElement:
		p := ElementCondition{}
		if p.Symbol, err = textConstraint(cc.Symbol); err != nil {
			return nil, err
		}
		c.Payload = p
	case KindSubstance:
		c.Payload = SubstanceCondition{}
	case KindCompound:
		p := CompoundCondition{AllMandatorySubstances: cc.AllMandatorySubstances}
		if p.Substances, err = r.buildPartConditions(cc.Substances); err != nil {
			return nil, err
		}
		c.Payload = p
	case KindMixture:
		p := MixtureCondition{AllMandatorySubstances: cc.AllMandatorySubstances}
		if p.Substances, err = r.buildPartConditions(cc.Substances); err != nil {
			return nil, err
		}
		if p.MixtureKind, err = textConstraint(cc.MixtureKind); err != nil {
			return nil, err
		}
		c.Payload = p
	case KindMaterial:
		p := MaterialCondition{}
		if p.Layers, err = r.buildPartConditions(cc.Layers); err != nil {
			return nil, err
		}
		if p.LayerCount, err = numberConstraint(cc.LayerCount); err != nil {
			return nil, err
		}
		c.Payload = p
	case KindLayer:
		p := LayerCondition{}
		if p.StackIndex, err = numberConstraint(cc.StackIndex); err != nil {
			return nil, err
		}
		if p.Thickness, err = numberConstraint(cc.Thickness); err != nil {
			return nil, err
		}
		c.Payload = p
	}
	return c, nil
}

func (r *Registry) conditionRef(ref string, inline *ConditionConfig) (*Condition, error) {
	switch {
	case ref != "":
		return r.condition(TypeID(ref))
	case inline != nil:
		return r.buildCondition(*inline)
	}
	return nil, errors.New("ref or condition is required")
}

func (r *Registry) buildPartConditions(cfgs []PartConditionConfig) ([]PartCondition, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	out := make([]PartCondition, 0, len(cfgs))
	for _, pc := range cfgs {
		cond, err := r.conditionRef(pc.Ref, pc.Condition)
		if err != nil {
			return nil, err
		}
		part := PartCondition{Condition: cond}
		if part.Count, err = numberConstraint(pc.Count); err != nil {
			return nil, err
		}
		if part.Amount, err = numberConstraint(pc.Amount); err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

func quantityChange(q *QuantityChangeConfig) (*QuantityChange, error) {
	if q == nil {
		return nil, nil
	}
	qc := &QuantityChange{Value: Operand{Expr: q.Expr}}
	if q.Value != nil {
		qc.Value.Value = *q.Value
	}
	switch q.Mode {
	case "", "set":
		qc.Mode = QuantitySet
	case "delta":
		qc.Mode = QuantityDelta
	default:
		return nil, fmt.Errorf("invalid quantity mode %q", q.Mode)
	}
	return qc, nil
}

func (r *Registry) buildRemovals(cfgs []RemovalConfig) ([]Removal, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	out := make([]Removal, 0, len(cfgs))
	for _, rc := range cfgs {
		cond, err := r.conditionRef(rc.Ref, rc.Condition)
		if err != nil {
			return nil, err
		}
		rm := Removal{Condition: cond}
		if rc.Quantity != nil {
			op := Operand{Expr: rc.Quantity.Expr}
			if rc.Quantity.Value != nil {
				op.Value = *rc.Quantity.Value
			}
			rm.Quantity = &op
		}
		out = append(out, rm)
	}
	return out, nil
}

func (r *Registry) buildChanges(cfgs []ChangeConfig) ([]*Change, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	out := make([]*Change, 0, len(cfgs))
	for _, cc := range cfgs {
		c, err := r.buildChange(cc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Registry) buildChange(cc ChangeConfig) (*Change, error) {
	kind := KindMatter
	if cc.Kind != "" {
		k, ok := ParseKind(cc.Kind)
		if !ok || k.IsContainer() {
			return nil, fmt.Errorf("invalid kind %q", cc.Kind)
		}
		kind = k
	}
	typ, err := r.optionalType(cc.Type)
	if err != nil {
		return nil, err
	}
	if typ != nil && cc.Kind == "" {
		kind = typ.Kind
	}

	c := &Change{ID: TypeID(cc.ID), Type: typ, Formula: cc.Formula}
	if c.Quantity, err = quantityChange(cc.Quantity); err != nil {
		return nil, err
	}
	if cc.State != nil {
		st, ok := ParseState(*cc.State)
		if !ok {
			return nil, fmt.Errorf("invalid state %q", *cc.State)
		}
		c.State = &st
	}
	if c.Elements, err = r.buildChanges(cc.Elements); err != nil {
		return nil, err
	}
	if c.AddElements, err = r.buildParts(cc.AddElements, KindElement); err != nil {
		return nil, err
	}
	if c.RemoveElements, err = r.buildRemovals(cc.RemoveElements); err != nil {
		return nil, err
	}

	switch kind {
	case KindElement:
		c.Payload = ElementChange{Symbol: cc.Symbol}
	case KindSubstance:
		c.Payload = SubstanceChange{}
	case KindCompound, KindMixture:
		subs, err := r.buildChanges(cc.Substances)
		if err != nil {
			return nil, err
		}
		add, err := r.buildParts(cc.Add, KindSubstance)
		if err != nil {
			return nil, err
		}
		remove, err := r.buildRemovals(cc.Remove)
		if err != nil {
			return nil, err
		}
		if kind == KindCompound {
			c.Payload = CompoundChange{Substances: subs, Add: add, Remove: remove}
		} else {
			c.Payload = MixtureChange{Substances: subs, Add: add, Remove: remove, MixtureKind: cc.MixtureKind}
		}
	case KindMaterial:
		layers, err := r.buildChanges(cc.Layers)
		if err != nil {
			return nil, err
		}
		add, err := r.buildParts(cc.Add, KindLayer)
		if err != nil {
			return nil, err
		}
		remove, err := r.buildRemovals(cc.Remove)
		if err != nil {
			return nil, err
		}
		c.Payload = MaterialChange{Layers: layers, Add: add, Remove: remove}
	case KindLayer:
		p := LayerChange{StackIndex: cc.StackIndex}
		if p.Thickness, err = quantityChange(cc.Thickness); err != nil {
			return nil, err
		}
		c.Payload = p
	}
	return c, nil
}
