package matter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_InstantiatesMandatoryParts(t *testing.T) {
	g := newTestGraph(t, labCatalog())

	water := g.create(t, "water")
	info, ok := g.Info(water)
	require.True(t, ok)
	assert.Equal(t, KindSubstance, info.Kind)
	assert.Equal(t, StateLiquid, info.State)
	assert.InDelta(t, 10, info.Quantity, epsilon)
	require.Len(t, info.Children, 2)
	// the formula follows the element children in order
	assert.Equal(t, "HO", info.Formula)

	h := g.childOfType(water, "hydrogen")
	assert.InDelta(t, 2, g.Quantity(h), epsilon)
	assert.Equal(t, water, g.Owner(h))
}

func TestCreate_AggregateFromConservedParts(t *testing.T) {
	g := newTestGraph(t, labCatalog())

	brine := g.create(t, "brine")
	assert.InDelta(t, 6, g.Quantity(brine), epsilon)

	water := g.childOfType(brine, "water")
	salt := g.childOfType(brine, "salt")
	require.False(t, water.IsZero())
	require.False(t, salt.IsZero())
	assert.InDelta(t, 5, g.Quantity(water), epsilon)

	info, _ := g.Info(salt)
	assert.Equal(t, StateSolid, info.State)

	brineInfo, _ := g.Info(brine)
	assert.Equal(t, "solution", brineInfo.MixtureKind)
}

func TestCreateByID_UnknownType(t *testing.T) {
	g := newTestGraph(t, labCatalog())

	_, err := g.CreateByID("watr")
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, err.Error(), "water")
}

func TestAddChild_MergesSameType(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	existing := g.childOfType(brine, "water")

	extra := g.create(t, "water")
	require.True(t, g.SetQuantity(extra, 3))

	merged, rel := g.AddChild(brine, extra)
	assert.Equal(t, RelationSuccess, rel)
	assert.Equal(t, existing, merged)
	assert.False(t, g.Exists(extra), "incoming duplicate is discarded")
	assert.InDelta(t, 8, g.Quantity(existing), epsilon)
	assert.InDelta(t, 9, g.Quantity(brine), epsilon)
	assert.Len(t, g.Children(brine), 2)
}

func TestAddChild_MergeIsIdempotentOnTypeCount(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")

	for range 3 {
		s := g.create(t, "salt")
		_, rel := g.AddChild(brine, s)
		require.Equal(t, RelationSuccess, rel)
	}
	salts := 0
	for _, ch := range g.Children(brine) {
		if info, _ := g.Info(ch); info.Type == "salt" {
			salts++
		}
	}
	assert.Equal(t, 1, salts)
	assert.InDelta(t, 4, g.Quantity(g.childOfType(brine, "salt")), epsilon)
}

func TestAddChild_SubtypeIsNotMerged(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")

	heavy := g.create(t, "heavy_water")
	got, rel := g.AddChild(brine, heavy)
	assert.Equal(t, RelationSuccess, rel)
	assert.Equal(t, heavy, got)
	assert.Len(t, g.Children(brine), 3)
}

func TestAddChild_Rejections(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	obj, ok := g.NewContainer(KindObject)
	require.True(t, ok)
	brine := g.create(t, "brine")
	water := g.childOfType(brine, "water")
	hydrogen := g.childOfType(water, "hydrogen")

	tests := []struct {
		name          string
		parent, child Handle
		want          Relation
	}{
		{"element under object", obj, hydrogen, RelationFail},
		{"self", brine, brine, RelationFail},
		{"stale child", brine, Handle{index: 999, gen: 1}, RelationFail},
		{"mixture under substance", water, brine, RelationFail},
		{"already owned", brine, water, RelationAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rel := g.AddChild(tt.parent, tt.child)
			assert.Equal(t, tt.want, rel)
		})
	}
	assert.Equal(t, 4, g.metrics.count("add_child/fail"))
}

func TestAddChild_KindRules(t *testing.T) {
	tests := []struct {
		parent, child Kind
		want          bool
	}{
		{KindSubstance, KindElement, true},
		{KindMixture, KindSubstance, true},
		{KindMixture, KindMixture, false},
		{KindMaterial, KindLayer, true},
		{KindLayer, KindSubstance, false},
		{KindObject, KindMaterial, true},
		{KindSpace, KindObject, false},
		{KindElement, KindElement, false},
	}
	for _, tt := range tests {
		t.Run(tt.parent.String()+"/"+tt.child.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.parent.CanOwn(tt.child))
		})
	}
	assert.True(t, KindMixture.conserved(KindSubstance))
	assert.False(t, KindMixture.conserved(KindElement))
	assert.False(t, KindObject.conserved(KindSubstance))
	assert.True(t, KindMaterial.narrower(KindElement))
	assert.False(t, KindSubstance.narrower(KindLayer))
}

func TestAddChild_MovesBetweenOwners(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	a := g.create(t, "brine")
	b, _ := g.NewContainer(KindObject)
	salt := g.childOfType(a, "salt")

	got, rel := g.AddChild(b, salt)
	require.Equal(t, RelationSuccess, rel)
	assert.Equal(t, salt, got)
	assert.Equal(t, b, g.Owner(salt))
	assert.InDelta(t, 5, g.Quantity(a), epsilon, "the previous owner gives up the salt")
	assert.True(t, g.childOfType(a, "salt").IsZero())
}

func TestSetQuantity_FloorsAndCollapses(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	water := g.childOfType(brine, "water")
	hydrogen := g.childOfType(water, "hydrogen")

	var removed []ContainmentEvent
	g.Subscribe(func(ev ContainmentEvent) {
		if ev.Type == EventRemoved {
			removed = append(removed, ev)
		}
	})

	require.True(t, g.AdjustQuantity(water, -100))
	assert.False(t, g.Exists(water))
	assert.False(t, g.Exists(hydrogen), "the subtree goes with it")
	assert.InDelta(t, 1, g.Quantity(brine), epsilon)
	require.Len(t, removed, 1)
	assert.Equal(t, water, removed[0].Child)
	assert.Equal(t, brine, removed[0].Parent)
}

func TestSetQuantity_CollapsePropagatesUpward(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	water := g.childOfType(brine, "water")
	salt := g.childOfType(brine, "salt")

	require.True(t, g.SetQuantity(salt, 0))
	require.True(t, g.SetQuantity(water, 0))
	assert.False(t, g.Exists(brine), "an emptied mixture collapses")
}

func TestSetQuantity_CompositeKeepsSumOfParts(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	water := g.childOfType(brine, "water")
	salt := g.childOfType(brine, "salt")
	hydrogen := g.childOfType(water, "hydrogen")

	require.True(t, g.AdjustQuantity(brine, -3))
	assert.InDelta(t, 3, g.Quantity(brine), epsilon)
	assert.InDelta(t, 2.5, g.Quantity(water), epsilon)
	assert.InDelta(t, 0.5, g.Quantity(salt), epsilon)
	assert.InDelta(t, 2, g.Quantity(hydrogen), epsilon, "element parts are not rescaled")

	require.True(t, g.SetQuantity(brine, 0))
	assert.False(t, g.Exists(brine))
	assert.False(t, g.Exists(water))
	assert.False(t, g.Exists(salt))
}

func TestSetQuantity_ContainersHaveNoQuantity(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	obj, _ := g.NewContainer(KindSpace)
	assert.False(t, g.SetQuantity(obj, 4))
	assert.Zero(t, g.Quantity(obj))

	_, ok := g.NewContainer(KindSubstance)
	assert.False(t, ok)
}

func TestElementQuantityIsNotConserved(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	water := g.create(t, "water")
	hydrogen := g.childOfType(water, "hydrogen")

	g.SetQuantity(hydrogen, 7)
	assert.InDelta(t, 10, g.Quantity(water), epsilon)
}

func TestRemoveChild(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	water := g.create(t, "water")
	oxygen := g.childOfType(water, "oxygen")
	g.AttachWorld(water)

	assert.Equal(t, RelationSuccess, g.RemoveChild(water, oxygen))
	assert.True(t, g.Exists(oxygen))
	assert.True(t, g.Owner(oxygen).IsZero())
	assert.False(t, g.world.Contains(oxygen), "a detached child leaves the world")
	info, _ := g.Info(water)
	assert.Equal(t, "H", info.Formula)

	assert.Equal(t, RelationFail, g.RemoveChild(water, oxygen))
}

func TestWorldMembershipFollowsOwnership(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	space, _ := g.NewContainer(KindSpace)
	require.True(t, g.AttachWorld(space))

	brine := g.create(t, "brine")
	assert.False(t, g.world.Contains(brine))
	_, rel := g.AddChild(space, brine)
	require.Equal(t, RelationSuccess, rel)

	water := g.childOfType(brine, "water")
	assert.True(t, g.world.Contains(brine))
	assert.True(t, g.world.Contains(water))
	assert.True(t, g.world.Contains(g.childOfType(water, "oxygen")))

	assert.False(t, g.AttachWorld(water), "owned instances follow their owner")

	g.Destroy(brine)
	assert.Equal(t, 1, g.world.Len())
	assert.Equal(t, []Handle{space}, g.world.Handles())
}

func TestDestroy_StaleHandles(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	salt := g.create(t, "salt")
	before := g.Len()

	require.True(t, g.Destroy(salt))
	assert.Equal(t, before-3, g.Len())
	assert.False(t, g.Exists(salt))
	assert.False(t, g.Destroy(salt))

	again := g.create(t, "salt")
	assert.NotEqual(t, salt, again)
	assert.False(t, g.Exists(salt), "a reused slot does not revive the old handle")
	_, ok := g.Info(salt)
	assert.False(t, ok)
	live, _ := g.metrics.liveIn("test")
	assert.Equal(t, g.Len(), live)
}

func TestHandle_StringRoundTrip(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	h := g.create(t, "salt")

	parsed, err := ParseHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	bare, err := ParseHandle(h.String()[1:])
	require.NoError(t, err)
	assert.Equal(t, h, bare)

	_, err = ParseHandle("#3.0")
	assert.Error(t, err)
	_, err = ParseHandle("nope")
	assert.Error(t, err)
	assert.Equal(t, "#nil", Handle{}.String())
}

func TestEvents_SubscribeAndWatch(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	obj, _ := g.NewContainer(KindObject)

	var global, local []ContainmentEvent
	unsubscribe := g.Subscribe(func(ev ContainmentEvent) { global = append(global, ev) })
	g.Watch(obj, func(ev ContainmentEvent) { local = append(local, ev) })

	salt := g.create(t, "salt")
	added := len(global)
	_, rel := g.AddChild(obj, salt)
	require.Equal(t, RelationSuccess, rel)

	require.Len(t, local, 1)
	assert.Equal(t, EventAdded, local[0].Type)
	assert.Equal(t, salt.String(), local[0].ChildRef)
	assert.Equal(t, TypeID("salt"), local[0].ChildType)
	assert.Equal(t, "test", local[0].WorldID)
	assert.Len(t, global, added+1)

	more := g.create(t, "salt")
	_, rel = g.AddChild(obj, more)
	require.Equal(t, RelationSuccess, rel)
	require.Len(t, local, 2)
	assert.True(t, local[1].Merged)
	assert.Equal(t, salt, local[1].Child)

	unsubscribe()
	count := len(global)
	g.RemoveChild(obj, salt)
	assert.Len(t, global, count)
	assert.Len(t, local, 3)
	assert.Equal(t, EventRemoved, local[2].Type)
}

func TestMove_CarriesSubtree(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	obj, _ := g.NewContainer(KindObject)
	brine := g.create(t, "brine")
	g.AddChild(obj, brine)
	water := g.childOfType(brine, "water")

	g.SetPosition(obj, Vector{X: 1, Y: 2})
	assert.Equal(t, Vector{X: 1, Y: 2}, g.Position(water))

	g.Move(brine, Vector{Z: 3})
	assert.Equal(t, Vector{X: 1, Y: 2}, g.Position(obj))
	assert.Equal(t, Vector{X: 1, Y: 2, Z: 3}, g.Position(water))
}

func TestClone_DeepCopy(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	brine := g.create(t, "brine")
	before := g.Len()

	c := g.Clone(brine)
	require.False(t, c.IsZero())
	assert.Equal(t, before*2, g.Len())
	assert.InDelta(t, g.Quantity(brine), g.Quantity(c), epsilon)
	assert.True(t, g.Owner(c).IsZero())

	g.SetQuantity(g.childOfType(c, "salt"), 5)
	assert.InDelta(t, 1, g.Quantity(g.childOfType(brine, "salt")), epsilon)
	assert.InDelta(t, 10, g.Quantity(c), epsilon)
}

func TestAbsorb_MergesMixtures(t *testing.T) {
	g := newTestGraph(t, labCatalog())
	a := g.create(t, "brine")
	b := g.create(t, "brine")

	require.True(t, g.Absorb(a, b))
	assert.False(t, g.Exists(b))
	assert.InDelta(t, 12, g.Quantity(a), epsilon)
	assert.InDelta(t, 10, g.Quantity(g.childOfType(a, "water")), epsilon)
	assert.Len(t, g.Children(a), 2)

	water := g.create(t, "water")
	assert.False(t, g.Absorb(a, water))
}

func TestCreate_OptionalParts(t *testing.T) {
	cfg := labCatalog()
	cfg.Types = append(cfg.Types, TypeConfig{
		ID: "sea", Kind: "mixture",
		Substances: []PartConfig{
			part("water", "liquid", 10),
			{Type: "salt", Necessity: "optional", State: "solid", Quantity: Exactly(1)},
		},
	})

	g := newTestGraph(t, cfg)
	sea := g.create(t, "sea")
	assert.Len(t, g.Children(sea), 1)

	withOptional := NewGraph(Context{Registry: g.Registry(), Options: Options{InstantiateOptional: true}})
	full, err := withOptional.CreateByID("sea")
	require.NoError(t, err)
	assert.Len(t, withOptional.Children(full), 2)
	assert.InDelta(t, 11, withOptional.Quantity(full), epsilon)
}
