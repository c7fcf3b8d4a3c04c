package matter

// QuantityMode selects whether a quantity change overwrites or offsets.
type QuantityMode uint8

const (
	QuantitySet QuantityMode = iota
	QuantityDelta
)

// QuantityChange sets or offsets a numeric attribute.
type QuantityChange struct {
	Mode  QuantityMode
	Value Operand
}

// Removal removes children matching Condition. Without Quantity the first
// match is removed; with Quantity, matches are decremented in order until
// the amount is exhausted.
type Removal struct {
	Condition *Condition
	Quantity  *Operand
}

// Change is an immutable declarative mutation. Within one application
// existing children are updated first, then additions are created, then
// removals run, so removals can see freshly added children.
type Change struct {
	ID TypeID

	// Type restricts the change to instances whose base is-a Type.
	Type *Base

	Quantity *QuantityChange
	State    *StateOfMatter
	Formula  *string

	Elements       []*Change
	AddElements    []Part
	RemoveElements []Removal

	Payload ChangePayload
}

// Kind is the kind of instance the change addresses.
func (c *Change) Kind() Kind {
	if c == nil || c.Payload == nil {
		return KindMatter
	}
	return c.Payload.changeKind()
}

// ChangePayload is the closed set of kind-specific change payloads.
type ChangePayload interface {
	changeKind() Kind
}

type ElementChange struct {
	Symbol *string
}

type SubstanceChange struct{}

type CompoundChange struct {
	Substances []*Change
	Add        []Part
	Remove     []Removal
}

type MixtureChange struct {
	Substances  []*Change
	Add         []Part
	Remove      []Removal
	MixtureKind *string
}

type MaterialChange struct {
	Layers []*Change
	Add    []Part
	Remove []Removal
}

type LayerChange struct {
	StackIndex *int
	Thickness  *QuantityChange
}

func (ElementChange) changeKind() Kind   { return KindElement }
func (SubstanceChange) changeKind() Kind { return KindSubstance }
func (CompoundChange) changeKind() Kind  { return KindCompound }
func (MixtureChange) changeKind() Kind   { return KindMixture }
func (MaterialChange) changeKind() Kind  { return KindMaterial }
func (LayerChange) changeKind() Kind     { return KindLayer }
