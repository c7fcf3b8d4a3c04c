package matter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_Number(t *testing.T) {
	e := newEvaluator(0, NewNoOpLogger())
	self := selfView{Quantity: 4, State: "liquid", Children: 2}

	tests := []struct {
		name    string
		op      Operand
		vars    Bindings
		want    float64
		wantErr bool
	}{
		{"literal", Lit(2.5), nil, 2.5, false},
		{"self", ExprOperand("self.quantity / 2"), nil, 2, false},
		{"int binding", ExprOperand("vars.n + self.children"), Bindings{"n": 3}, 5, false},
		{"float binding", ExprOperand("vars.rate * self.quantity"), Bindings{"rate": 0.5}, 2, false},
		{"not a number", ExprOperand("self.state"), nil, 0, true},
		{"syntax error", ExprOperand("self.quantity +"), nil, 0, true},
		{"runtime error", ExprOperand("vars.missing.field"), Bindings{}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.number(tt.op, self, tt.vars)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, epsilon)
		})
	}
}

func TestEvaluator_Predicate(t *testing.T) {
	e := newEvaluator(4, NewNoOpLogger())
	self := selfView{Quantity: 4, Kind: "substance", Type: "water"}

	assert.True(t, e.predicate(`self.type == "water" && self.quantity >= vars.min`, self, Bindings{"min": 4}))
	assert.False(t, e.predicate(`self.kind == "mixture"`, self, nil))
	assert.False(t, e.predicate("self.quantity", self, nil), "non-boolean expressions do not compile as predicates")
	assert.Error(t, e.Compile("self.quantity", true))
	assert.NoError(t, e.Compile("self.quantity", false))
}

func TestEvaluator_CachesPrograms(t *testing.T) {
	e := newEvaluator(2, NewNoOpLogger())

	p1, err := e.program("self.quantity + 1", false)
	require.NoError(t, err)
	p2, err := e.program("self.quantity + 1", false)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	// the same source compiled as a predicate is a distinct program
	_, err = e.program("self.quantity > 1", true)
	require.NoError(t, err)
	_, err = e.program("self.quantity > 2", true)
	require.NoError(t, err)
	assert.Equal(t, 2, e.programs.Len())
	assert.False(t, e.programs.Contains("n:self.quantity + 1"), "least recently used entry is evicted")
}

func TestToFloat64(t *testing.T) {
	for _, v := range []any{1, int32(1), int64(1), uint(1), uint32(1), uint64(1), float32(1), 1.0} {
		f, ok := toFloat64(v)
		assert.True(t, ok, "%T", v)
		assert.InDelta(t, 1, f, epsilon)
	}
	_, ok := toFloat64("1")
	assert.False(t, ok)
}

func TestCompareNumber(t *testing.T) {
	tests := []struct {
		left  float64
		sign  Sign
		right float64
		want  bool
	}{
		{0.1 + 0.2, SignEq, 0.3, true},
		{0.1 + 0.2, "", 0.3, true},
		{1, SignNe, 1, false},
		{2, SignGt, 1, true},
		{1, SignGt, 1, false},
		{1, SignGte, 1, true},
		{0.3, SignLt, 0.1 + 0.2, false},
		{0.3, SignLte, 0.1 + 0.2, true},
		{1, "approx", 1, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareNumber(tt.left, tt.sign, tt.right), "%v %s %v", tt.left, tt.sign, tt.right)
	}

	assert.True(t, CompareText("NaCl", SignEq, "NaCl"))
	assert.True(t, CompareText("NaCl", SignNe, "H2O"))
}

func TestRange(t *testing.T) {
	assert.True(t, Range{}.IsZero())
	assert.Equal(t, 3.0, Range{Min: 3}.Sample(nil))
	assert.True(t, Range{Min: 1, Max: 2}.Contains(1.5))
	assert.False(t, Range{Min: 1, Max: 2}.Contains(2.5))
	assert.Equal(t, "1..2", Range{Min: 1, Max: 2}.String())
	assert.Equal(t, "4", Exactly(4).String())
	assert.Equal(t, 0.0, clampQuantity(-1))
}
