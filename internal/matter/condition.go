package matter

// Operand is a numeric value that is either a literal or an expression
// evaluated against the binding context at check time.
type Operand struct {
	Value float64
	Expr  string
}

// Lit returns a literal operand.
func Lit(v float64) Operand {
	return Operand{Value: v}
}

// ExprOperand returns an expression operand.
func ExprOperand(expression string) Operand {
	return Operand{Expr: expression}
}

// NumberConstraint compares a numeric attribute against an operand.
type NumberConstraint struct {
	Sign  Sign
	Value Operand
}

// TextConstraint compares a string attribute (formula, mixture kind).
type TextConstraint struct {
	Sign  Sign
	Value string
}

// StateConstraint compares the state of matter; only eq and ne apply.
type StateConstraint struct {
	Sign  Sign
	Value StateOfMatter
}

// PartCondition requires that the children matching Condition satisfy an
// aggregate bound. With neither Count nor Amount set, one match suffices.
type PartCondition struct {
	Condition *Condition

	// Count bounds the number of matching children.
	Count *NumberConstraint

	// Amount bounds the summed quantity of matching children.
	Amount *NumberConstraint
}

// Condition is an immutable declarative predicate over an instance. The
// common fields are the structural check every kind shares; Payload
// carries the kind-specific checks and determines the condition's kind.
type Condition struct {
	ID TypeID

	// Type restricts matches to instances whose base is-a Type.
	Type *Base

	Quantity *NumberConstraint
	State    *StateConstraint
	Formula  *TextConstraint

	// AllMandatoryElements requires every mandatory element part of the
	// instance's base to be present among its children.
	AllMandatoryElements bool

	Elements []PartCondition

	// Expr is an optional boolean expression evaluated after every other
	// check passed.
	Expr string

	Payload ConditionPayload
}

// Kind is the kind of instance the condition addresses.
func (c *Condition) Kind() Kind {
	if c == nil || c.Payload == nil {
		return KindMatter
	}
	return c.Payload.conditionKind()
}

// ConditionPayload is the closed set of kind-specific condition payloads.
type ConditionPayload interface {
	conditionKind() Kind
}

type ElementCondition struct {
	Symbol *TextConstraint
}

type SubstanceCondition struct{}

type CompoundCondition struct {
	Substances             []PartCondition
	AllMandatorySubstances bool
}

type MixtureCondition struct {
	Substances             []PartCondition
	AllMandatorySubstances bool
	MixtureKind            *TextConstraint
}

type MaterialCondition struct {
	Layers     []PartCondition
	LayerCount *NumberConstraint
}

type LayerCondition struct {
	StackIndex *NumberConstraint
	Thickness  *NumberConstraint
}

func (ElementCondition) conditionKind() Kind   { return KindElement }
func (SubstanceCondition) conditionKind() Kind { return KindSubstance }
func (CompoundCondition) conditionKind() Kind  { return KindCompound }
func (MixtureCondition) conditionKind() Kind   { return KindMixture }
func (MaterialCondition) conditionKind() Kind  { return KindMaterial }
func (LayerCondition) conditionKind() Kind     { return KindLayer }
