package client

import "github.com/daniacca/mattercore/internal/matter"

// CatalogBuilder provides a fluent API for building matter catalogs:
// the types a world can instantiate plus the named conditions and changes
// a rule executor evaluates against instances.
type CatalogBuilder struct {
	name       string
	types      []*TypeBuilder
	conditions []*ConditionBuilder
	changes    []*ChangeBuilder
}

// NewCatalog creates a new catalog builder with the given name.
func NewCatalog(name string) *CatalogBuilder {
	return &CatalogBuilder{name: name}
}

// Type adds type definitions. Declaration order is kept: it decides which
// recipe wins a synthesis tie.
func (cb *CatalogBuilder) Type(tbs ...*TypeBuilder) *CatalogBuilder {
	cb.types = append(cb.types, tbs...)
	return cb
}

// Condition adds named conditions.
func (cb *CatalogBuilder) Condition(cbs ...*ConditionBuilder) *CatalogBuilder {
	cb.conditions = append(cb.conditions, cbs...)
	return cb
}

// Change adds named changes.
func (cb *CatalogBuilder) Change(chs ...*ChangeBuilder) *CatalogBuilder {
	cb.changes = append(cb.changes, chs...)
	return cb
}

// Build converts the builder to a CatalogConfig.
func (cb *CatalogBuilder) Build() matter.CatalogConfig {
	cfg := matter.CatalogConfig{
		Name:  cb.name,
		Types: make([]matter.TypeConfig, 0, len(cb.types)),
	}
	for _, tb := range cb.types {
		cfg.Types = append(cfg.Types, tb.Build())
	}
	for _, c := range cb.conditions {
		cfg.Conditions = append(cfg.Conditions, c.Build())
	}
	for _, ch := range cb.changes {
		cfg.Changes = append(cfg.Changes, ch.Build())
	}
	return cfg
}

// TypeBuilder builds one matter type.
type TypeBuilder struct {
	cfg matter.TypeConfig
}

func newType(id string, kind matter.Kind) *TypeBuilder {
	return &TypeBuilder{cfg: matter.TypeConfig{ID: id, Kind: kind.String()}}
}

// NewElement creates an element type whose formula is its symbol.
func NewElement(id, symbol string) *TypeBuilder {
	tb := newType(id, matter.KindElement)
	tb.cfg.Formula = symbol
	return tb
}

// NewSubstance creates a substance type.
func NewSubstance(id string) *TypeBuilder { return newType(id, matter.KindSubstance) }

// NewCompound creates a compound type.
func NewCompound(id string) *TypeBuilder { return newType(id, matter.KindCompound) }

// NewMixture creates a mixture type.
func NewMixture(id string) *TypeBuilder { return newType(id, matter.KindMixture) }

// NewMaterial creates a material type.
func NewMaterial(id string) *TypeBuilder { return newType(id, matter.KindMaterial) }

// NewLayer creates a layer type at the given stack index.
func NewLayer(id string, stackIndex int) *TypeBuilder {
	tb := newType(id, matter.KindLayer)
	tb.cfg.StackIndex = stackIndex
	return tb
}

// Parent makes the type a descendant of parent in the type hierarchy.
func (tb *TypeBuilder) Parent(parent string) *TypeBuilder {
	tb.cfg.Parent = parent
	return tb
}

// State sets the default state of matter.
func (tb *TypeBuilder) State(state string) *TypeBuilder {
	tb.cfg.State = state
	return tb
}

// Formula sets the default chemical formula.
func (tb *TypeBuilder) Formula(formula string) *TypeBuilder {
	tb.cfg.Formula = formula
	return tb
}

// Quantity sets the default quantity range. Pass max <= min for a fixed
// amount.
func (tb *TypeBuilder) Quantity(min, max float64) *TypeBuilder {
	tb.cfg.Quantity = matter.Range{Min: min, Max: max}
	return tb
}

// Thickness sets a layer's thickness range.
func (tb *TypeBuilder) Thickness(min, max float64) *TypeBuilder {
	tb.cfg.Thickness = matter.Range{Min: min, Max: max}
	return tb
}

// MixtureKind sets a mixture's kind label (e.g. "solution").
func (tb *TypeBuilder) MixtureKind(kind string) *TypeBuilder {
	tb.cfg.MixtureKind = kind
	return tb
}

// Element declares a mandatory element part.
func (tb *TypeBuilder) Element(typeID string, quantity float64) *TypeBuilder {
	tb.cfg.Elements = append(tb.cfg.Elements, Part(typeID, "", quantity))
	return tb
}

// Substance declares a mandatory substance part in the given state.
func (tb *TypeBuilder) Substance(typeID, state string, quantity float64) *TypeBuilder {
	tb.cfg.Substances = append(tb.cfg.Substances, Part(typeID, state, quantity))
	return tb
}

// OptionalSubstance declares an optional substance part.
func (tb *TypeBuilder) OptionalSubstance(typeID, state string, quantity float64) *TypeBuilder {
	p := Part(typeID, state, quantity)
	p.Necessity = matter.Optional.String()
	tb.cfg.Substances = append(tb.cfg.Substances, p)
	return tb
}

// Layer declares a mandatory layer part.
func (tb *TypeBuilder) Layer(typeID string, quantity float64) *TypeBuilder {
	tb.cfg.Layers = append(tb.cfg.Layers, Part(typeID, "", quantity))
	return tb
}

// Build returns the type configuration.
func (tb *TypeBuilder) Build() matter.TypeConfig {
	return tb.cfg
}

// Part builds a part reference. A zero quantity leaves the amount to the
// part type's default.
func Part(typeID, state string, quantity float64) matter.PartConfig {
	p := matter.PartConfig{Type: typeID, State: state}
	if quantity > 0 {
		p.Quantity = matter.Exactly(quantity)
	}
	return p
}

// Num is a literal numeric constraint.
func Num(sign string, value float64) *matter.NumberConfig {
	return &matter.NumberConfig{Sign: sign, Value: &value}
}

// NumExpr is a numeric constraint computed from the binding context.
func NumExpr(sign, expression string) *matter.NumberConfig {
	return &matter.NumberConfig{Sign: sign, Expr: expression}
}

// ConditionBuilder builds a condition.
type ConditionBuilder struct {
	cfg matter.ConditionConfig
}

// NewCondition creates a condition addressed to instances of kind. Use
// matter.KindMatter for a condition any matter kind can satisfy.
func NewCondition(id string, kind matter.Kind) *ConditionBuilder {
	return &ConditionBuilder{cfg: matter.ConditionConfig{ID: id, Kind: kind.String()}}
}

// OfType restricts the condition to instances whose type is-a typeID.
func (cb *ConditionBuilder) OfType(typeID string) *ConditionBuilder {
	cb.cfg.Type = typeID
	return cb
}

// Quantity constrains the instance quantity.
func (cb *ConditionBuilder) Quantity(n *matter.NumberConfig) *ConditionBuilder {
	cb.cfg.Quantity = n
	return cb
}

// State requires the given state of matter.
func (cb *ConditionBuilder) State(state string) *ConditionBuilder {
	cb.cfg.State = &matter.TextConfig{Value: state}
	return cb
}

// NotState requires any state but the given one.
func (cb *ConditionBuilder) NotState(state string) *ConditionBuilder {
	cb.cfg.State = &matter.TextConfig{Sign: string(matter.SignNe), Value: state}
	return cb
}

// Formula requires the given formula.
func (cb *ConditionBuilder) Formula(formula string) *ConditionBuilder {
	cb.cfg.Formula = &matter.TextConfig{Value: formula}
	return cb
}

// AllMandatory requires every mandatory element part (and, for compounds
// and mixtures, every mandatory substance part) to be present.
func (cb *ConditionBuilder) AllMandatory() *ConditionBuilder {
	cb.cfg.AllMandatoryElements = true
	if cb.cfg.Kind == matter.KindCompound.String() || cb.cfg.Kind == matter.KindMixture.String() {
		cb.cfg.AllMandatorySubstances = true
	}
	return cb
}

// HasSubstance requires a substance child of the given type, optionally
// with an aggregated amount.
func (cb *ConditionBuilder) HasSubstance(typeID string, amount *matter.NumberConfig) *ConditionBuilder {
	cb.cfg.Substances = append(cb.cfg.Substances, matter.PartConditionConfig{
		Condition: &matter.ConditionConfig{Kind: matter.KindSubstance.String(), Type: typeID},
		Amount:    amount,
	})
	return cb
}

// HasElement requires an element child of the given type.
func (cb *ConditionBuilder) HasElement(typeID string) *ConditionBuilder {
	cb.cfg.Elements = append(cb.cfg.Elements, matter.PartConditionConfig{
		Condition: &matter.ConditionConfig{Kind: matter.KindElement.String(), Type: typeID},
	})
	return cb
}

// LayerCount constrains the number of layers of a material.
func (cb *ConditionBuilder) LayerCount(n *matter.NumberConfig) *ConditionBuilder {
	cb.cfg.LayerCount = n
	return cb
}

// Expr adds a boolean expression over `self` and `vars`.
func (cb *ConditionBuilder) Expr(expression string) *ConditionBuilder {
	cb.cfg.Expr = expression
	return cb
}

// Build returns the condition configuration.
func (cb *ConditionBuilder) Build() matter.ConditionConfig {
	return cb.cfg
}

// ChangeBuilder builds a change.
type ChangeBuilder struct {
	cfg matter.ChangeConfig
}

// NewChange creates a change addressed to instances of kind.
func NewChange(id string, kind matter.Kind) *ChangeBuilder {
	return &ChangeBuilder{cfg: matter.ChangeConfig{ID: id, Kind: kind.String()}}
}

// OfType restricts the change to instances whose type is-a typeID.
func (cb *ChangeBuilder) OfType(typeID string) *ChangeBuilder {
	cb.cfg.Type = typeID
	return cb
}

// SetQuantity overwrites the quantity.
func (cb *ChangeBuilder) SetQuantity(v float64) *ChangeBuilder {
	cb.cfg.Quantity = &matter.QuantityChangeConfig{Mode: "set", Value: &v}
	return cb
}

// AddQuantity offsets the quantity; negative values consume.
func (cb *ChangeBuilder) AddQuantity(v float64) *ChangeBuilder {
	cb.cfg.Quantity = &matter.QuantityChangeConfig{Mode: "delta", Value: &v}
	return cb
}

// AddQuantityExpr offsets the quantity by an expression result.
func (cb *ChangeBuilder) AddQuantityExpr(expression string) *ChangeBuilder {
	cb.cfg.Quantity = &matter.QuantityChangeConfig{Mode: "delta", Expr: expression}
	return cb
}

// State overwrites the state of matter.
func (cb *ChangeBuilder) State(state string) *ChangeBuilder {
	cb.cfg.State = &state
	return cb
}

// Formula overwrites the formula.
func (cb *ChangeBuilder) Formula(formula string) *ChangeBuilder {
	cb.cfg.Formula = &formula
	return cb
}

// Substances fans nested changes out to every substance child.
func (cb *ChangeBuilder) Substances(nested ...*ChangeBuilder) *ChangeBuilder {
	for _, n := range nested {
		cb.cfg.Substances = append(cb.cfg.Substances, n.Build())
	}
	return cb
}

// Add creates a new child part.
func (cb *ChangeBuilder) Add(typeID, state string, quantity float64) *ChangeBuilder {
	cb.cfg.Add = append(cb.cfg.Add, Part(typeID, state, quantity))
	return cb
}

// Remove removes children matching kind and type. A positive quantity
// decrements matching children instead of removing the first one.
func (cb *ChangeBuilder) Remove(kind matter.Kind, typeID string, quantity float64) *ChangeBuilder {
	r := matter.RemovalConfig{
		Condition: &matter.ConditionConfig{Kind: kind.String(), Type: typeID},
	}
	if quantity > 0 {
		r.Quantity = Num("", quantity)
	}
	cb.cfg.Remove = append(cb.cfg.Remove, r)
	return cb
}

// StackIndex moves a layer in its material's stack.
func (cb *ChangeBuilder) StackIndex(i int) *ChangeBuilder {
	cb.cfg.StackIndex = &i
	return cb
}

// Build returns the change configuration.
func (cb *ChangeBuilder) Build() matter.ChangeConfig {
	return cb.cfg
}
