package matter

import (
	"fmt"
	"math"
	"math/rand"
)

// Sign is a comparison operator. The vocabulary matches the catalog
// format: eq, ne, gt, gte, lt, lte.
type Sign string

const (
	SignEq  Sign = "eq"
	SignNe  Sign = "ne"
	SignGt  Sign = "gt"
	SignGte Sign = "gte"
	SignLt  Sign = "lt"
	SignLte Sign = "lte"
)

var validSigns = map[Sign]bool{
	SignEq:  true,
	SignNe:  true,
	SignGt:  true,
	SignGte: true,
	SignLt:  true,
	SignLte: true,
}

// Valid reports whether s is a known operator. The empty sign is treated
// as eq by every comparison and is therefore valid.
func (s Sign) Valid() bool {
	return s == "" || validSigns[s]
}

// epsilon absorbs float noise from ratio arithmetic (0.1+0.2 style).
const epsilon = 1e-9

// CompareNumber compares left against right using the sign.
func CompareNumber(left float64, sign Sign, right float64) bool {
	eq := math.Abs(left-right) <= epsilon
	switch sign {
	case "", SignEq:
		return eq
	case SignNe:
		return !eq
	case SignGt:
		return left > right && !eq
	case SignGte:
		return left > right || eq
	case SignLt:
		return left < right && !eq
	case SignLte:
		return left < right || eq
	}
	return false
}

// CompareText compares strings; only eq and ne are meaningful, ordering
// operators fall back to lexical comparison.
func CompareText(left string, sign Sign, right string) bool {
	switch sign {
	case "", SignEq:
		return left == right
	case SignNe:
		return left != right
	case SignGt:
		return left > right
	case SignGte:
		return left >= right
	case SignLt:
		return left < right
	case SignLte:
		return left <= right
	}
	return false
}

// Range is a closed numeric interval used for quantity specifications.
// A zero Max with a positive Min is read as the single value Min.
type Range struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max,omitempty" toml:"max,omitempty"`
}

// Exactly returns the degenerate range [v, v].
func Exactly(v float64) Range {
	return Range{Min: v, Max: v}
}

func (r Range) upper() float64 {
	if r.Max < r.Min {
		return r.Min
	}
	return r.Max
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min-epsilon && v <= r.upper()+epsilon
}

// Nominal is the amount a recipe or default instantiation requires: the
// lower bound of the range.
func (r Range) Nominal() float64 {
	return r.Min
}

// Sample draws a value uniformly from the range. A degenerate range
// returns its single value without touching rng.
func (r Range) Sample(rng *rand.Rand) float64 {
	hi := r.upper()
	if hi-r.Min <= epsilon || rng == nil {
		return r.Min
	}
	return r.Min + rng.Float64()*(hi-r.Min)
}

func (r Range) String() string {
	if r.upper()-r.Min <= epsilon {
		return fmt.Sprintf("%g", r.Min)
	}
	return fmt.Sprintf("%g..%g", r.Min, r.upper())
}

// clampQuantity applies the zero floor.
func clampQuantity(v float64) float64 {
	if v < epsilon || math.IsNaN(v) {
		return 0
	}
	return v
}
