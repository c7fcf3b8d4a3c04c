package matter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_BaseEffects(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	water := g.create(t, "water")

	tests := []struct {
		name  string
		cfg   ChangeConfig
		vars  Bindings
		check func(t *testing.T, info Info)
	}{
		{
			name: "set quantity",
			cfg:  ChangeConfig{Quantity: &QuantityChangeConfig{Value: ptr(7.0)}},
			check: func(t *testing.T, info Info) {
				assert.InDelta(t, 7, info.Quantity, epsilon)
			},
		},
		{
			name: "delta quantity",
			cfg:  ChangeConfig{Quantity: &QuantityChangeConfig{Mode: "delta", Value: ptr(-2.0)}},
			check: func(t *testing.T, info Info) {
				assert.InDelta(t, 5, info.Quantity, epsilon)
			},
		},
		{
			name: "delta from binding",
			cfg:  ChangeConfig{Quantity: &QuantityChangeConfig{Mode: "delta", Expr: "vars.rate * 2"}},
			vars: Bindings{"rate": 1.5},
			check: func(t *testing.T, info Info) {
				assert.InDelta(t, 8, info.Quantity, epsilon)
			},
		},
		{
			name: "broken expression leaves quantity",
			cfg:  ChangeConfig{Quantity: &QuantityChangeConfig{Expr: "vars.nothing.deeper"}},
			check: func(t *testing.T, info Info) {
				assert.InDelta(t, 8, info.Quantity, epsilon)
			},
		},
		{
			name: "state",
			cfg:  ChangeConfig{State: ptr("gas")},
			check: func(t *testing.T, info Info) {
				assert.Equal(t, StateGas, info.State)
			},
		},
		{
			name: "formula",
			cfg:  ChangeConfig{Formula: ptr("H2O")},
			check: func(t *testing.T, info Info) {
				assert.Equal(t, "H2O", info.Formula)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := g.change(t, tt.cfg)
			assert.True(t, g.Apply(water, change, tt.vars))
			info, ok := g.Info(water)
			require.True(t, ok)
			tt.check(t, info)
		})
	}
}

func TestApply_UnrecognizedFansOutToChildren(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	salt := g.childOfType(brine, "salt")

	grow := g.change(t, ChangeConfig{Kind: "substance", Type: "salt", Quantity: &QuantityChangeConfig{Value: ptr(4.0)}})
	assert.True(t, g.Apply(brine, grow, nil))
	assert.InDelta(t, 4, g.Quantity(salt), epsilon)
	assert.InDelta(t, 9, g.Quantity(brine), epsilon, "the delta reaches the mixture")

	laminate := g.create(t, "laminate")
	assert.False(t, g.Apply(laminate, grow, nil))
	assert.Equal(t, 1, g.metrics.count("apply/unrecognized"))

	obj, _ := g.NewContainer(KindObject)
	g.AddChild(obj, brine)
	boil, err := g.Registry().Change("boil")
	require.NoError(t, err)
	assert.True(t, g.Apply(obj, boil, nil))
	info, _ := g.Info(g.childOfType(brine, "water"))
	assert.Equal(t, StateGas, info.State)
}

func TestApply_SatisfiesDuality(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	water := g.create(t, "water")

	boil, err := g.Registry().Change("boil")
	require.NoError(t, err)
	gas := g.condition(t, ConditionConfig{Kind: "substance", State: &TextConfig{Value: "gas"}})

	require.False(t, g.Satisfies(water, gas, nil))
	require.True(t, g.Apply(water, boil, nil))
	assert.True(t, g.Satisfies(water, gas, nil))
}

func TestApply_DepletionDestroys(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	salt := g.childOfType(brine, "salt")

	drain, err := g.Registry().Change("drain")
	require.NoError(t, err)
	require.True(t, g.Apply(salt, drain, nil))
	assert.False(t, g.Exists(salt))
	assert.InDelta(t, 5, g.Quantity(brine), epsilon)

	// applying to a stale handle fails
	assert.False(t, g.Apply(salt, drain, nil))
	assert.Equal(t, 1, g.metrics.count("apply/fail"))
}

func TestApply_CompositeAddAndRemove(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")

	add := g.change(t, ChangeConfig{Kind: "mixture", Add: []PartConfig{part("salt", "solid", 2)}})
	require.True(t, g.Apply(brine, add, nil))
	assert.InDelta(t, 3, g.Quantity(g.childOfType(brine, "salt")), epsilon, "additions merge into siblings")
	assert.InDelta(t, 8, g.Quantity(brine), epsilon)

	removeFirst := g.change(t, ChangeConfig{Kind: "mixture", Remove: []RemovalConfig{
		{Condition: &ConditionConfig{Kind: "substance", Type: "salt"}},
	}})
	require.True(t, g.Apply(brine, removeFirst, nil))
	assert.True(t, g.childOfType(brine, "salt").IsZero())
	assert.InDelta(t, 5, g.Quantity(brine), epsilon)

	drainWater := g.change(t, ChangeConfig{Kind: "mixture", Remove: []RemovalConfig{
		{Ref: "is_water", Quantity: num("", 2)},
	}})
	require.True(t, g.Apply(brine, drainWater, nil))
	assert.InDelta(t, 3, g.Quantity(g.childOfType(brine, "water")), epsilon)
	assert.InDelta(t, 3, g.Quantity(brine), epsilon)
}

func TestApply_RemovalQuantitySpansSiblings(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	heavy := g.create(t, "heavy_water")
	g.SetQuantity(heavy, 4)
	g.AddChild(brine, heavy)
	require.InDelta(t, 10, g.Quantity(brine), epsilon)

	remove := g.change(t, ChangeConfig{Kind: "mixture", Remove: []RemovalConfig{
		{Condition: &ConditionConfig{Type: "water"}, Quantity: num("", 7)},
	}})
	require.True(t, g.Apply(brine, remove, nil))

	assert.True(t, g.childOfType(brine, "water").IsZero(), "the first match is exhausted")
	assert.InDelta(t, 2, g.Quantity(heavy), epsilon)
	assert.InDelta(t, 3, g.Quantity(brine), epsilon)
}

func TestApply_RemovingEverythingCollapsesTarget(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")

	var removed int
	g.Subscribe(func(ev ContainmentEvent) {
		if ev.Type == EventRemoved {
			removed++
		}
	})
	empty := g.change(t, ChangeConfig{Kind: "mixture", Remove: []RemovalConfig{
		{Condition: &ConditionConfig{Kind: "substance"}, Quantity: num("", 100)},
	}})
	require.True(t, g.Apply(brine, empty, nil))
	assert.False(t, g.Exists(brine))
	assert.Equal(t, 2, removed)
}

func TestApply_NestedSubstanceChanges(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")

	freeze := g.change(t, ChangeConfig{Kind: "mixture", MixtureKind: ptr("slurry"), Substances: []ChangeConfig{
		{Kind: "substance", Type: "water", State: ptr("solid")},
	}})
	require.True(t, g.Apply(brine, freeze, nil))

	info, _ := g.Info(brine)
	assert.Equal(t, "slurry", info.MixtureKind)
	water, _ := g.Info(g.childOfType(brine, "water"))
	assert.Equal(t, StateSolid, water.State)
	salt, _ := g.Info(g.childOfType(brine, "salt"))
	assert.Equal(t, StateSolid, salt.State)
}

func TestApply_ElementSymbolResyncsOwnerFormula(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	water := g.create(t, "water")
	oxygen := g.childOfType(water, "oxygen")

	rename := g.change(t, ChangeConfig{Kind: "element", Symbol: ptr("O2")})
	require.True(t, g.Apply(oxygen, rename, nil))

	info, _ := g.Info(water)
	assert.Equal(t, "HO2", info.Formula)

	addChlorine := g.change(t, ChangeConfig{Kind: "substance", AddElements: []PartConfig{part("chlorine", "", 1)}})
	require.True(t, g.Apply(water, addChlorine, nil))
	info, _ = g.Info(water)
	assert.Equal(t, "HO2Cl", info.Formula)

	dropHydrogen := g.change(t, ChangeConfig{Kind: "substance", RemoveElements: []RemovalConfig{
		{Condition: &ConditionConfig{Type: "hydrogen"}},
	}})
	require.True(t, g.Apply(water, dropHydrogen, nil))
	info, _ = g.Info(water)
	assert.Equal(t, "O2Cl", info.Formula)
	assert.InDelta(t, 10, info.Quantity, epsilon)
}

func TestApply_LayerStackIndex(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	laminate := g.create(t, "laminate")
	top := g.childOfType(laminate, "top_layer")

	restack := g.change(t, ChangeConfig{Kind: "material", Layers: []ChangeConfig{
		{Kind: "layer", Type: "top_layer", StackIndex: ptr(5), Thickness: &QuantityChangeConfig{Mode: "delta", Value: ptr(0.5)}},
	}})
	require.True(t, g.Apply(laminate, restack, nil))

	info, _ := g.Info(top)
	assert.Equal(t, 5, info.StackIndex)
	assert.InDelta(t, 1.5, info.Thickness, epsilon)
	base, _ := g.Info(g.childOfType(laminate, "base_layer"))
	assert.Equal(t, 0, base.StackIndex)

	atFive := g.condition(t, ConditionConfig{Kind: "material", Layers: []PartConditionConfig{
		{Condition: &ConditionConfig{Kind: "layer", StackIndex: num(SignEq, 5)}},
	}})
	assert.True(t, g.Satisfies(laminate, atFive, nil))
}

func TestApply_TypeRestriction(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	water := g.create(t, "water")
	heavy := g.create(t, "heavy_water")

	onlyHeavy := g.change(t, ChangeConfig{Type: "heavy_water", State: ptr("solid")})
	assert.True(t, g.Apply(heavy, onlyHeavy, nil))
	assert.False(t, g.Apply(water, onlyHeavy, nil))

	waterInfo, _ := g.Info(water)
	assert.Equal(t, StateLiquid, waterInfo.State)
}

func TestApply_RemovalsSeeFreshAdditions(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	require.True(t, g.childOfType(brine, "heavy_water").IsZero())

	var events []EventType
	g.Subscribe(func(ev ContainmentEvent) {
		if ev.ChildType == "heavy_water" {
			events = append(events, ev.Type)
		}
	})
	flush := g.change(t, ChangeConfig{
		Kind:   "mixture",
		Add:    []PartConfig{part("heavy_water", "liquid", 3)},
		Remove: []RemovalConfig{{Condition: &ConditionConfig{Kind: "substance", Type: "heavy_water"}}},
	})
	require.True(t, g.Apply(brine, flush, nil))

	assert.True(t, g.childOfType(brine, "heavy_water").IsZero())
	assert.Equal(t, []EventType{EventAdded, EventRemoved}, events)
	assert.InDelta(t, 6, g.Quantity(brine), epsilon)
	assert.InDelta(t, 5, g.Quantity(g.childOfType(brine, "water")), epsilon)
	assert.Len(t, g.Children(brine), 2)
}

func TestApply_CompositeQuantityRescalesParts(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	water := g.childOfType(brine, "water")
	salt := g.childOfType(brine, "salt")

	fill := g.change(t, ChangeConfig{Kind: "mixture", Quantity: &QuantityChangeConfig{Value: ptr(12.0)}})
	require.True(t, g.Apply(brine, fill, nil))
	assert.InDelta(t, 12, g.Quantity(brine), epsilon)
	assert.InDelta(t, 10, g.Quantity(water), epsilon)
	assert.InDelta(t, 2, g.Quantity(salt), epsilon)
	assert.InDelta(t, g.Quantity(water)+g.Quantity(salt), g.Quantity(brine), epsilon)

	require.True(t, g.Destroy(water))
	assert.InDelta(t, 2, g.Quantity(brine), epsilon)
	require.True(t, g.Destroy(salt))
	assert.False(t, g.Exists(brine), "an emptied mixture keeps no quantity of its own")
}
