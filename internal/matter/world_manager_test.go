package matter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldManager_CreateAndGet(t *testing.T) {
	wm := NewWorldManager(nil, nil)
	r := newRegistry(t, labCatalog())

	ws, err := wm.CreateWorld("lab", r, Options{})
	require.NoError(t, err)
	assert.Equal(t, WorldID("lab"), ws.ID)
	assert.Same(t, r, ws.Registry())

	got, ok := wm.GetWorld("lab")
	require.True(t, ok)
	assert.Same(t, ws, got)

	_, err = wm.CreateWorld("lab", r, Options{})
	assert.Error(t, err, "duplicate id")
	_, err = wm.CreateWorld("", r, Options{})
	assert.Error(t, err)
	_, err = wm.CreateWorld("other", nil, Options{})
	assert.Error(t, err)
}

func TestWorldManager_ListAndDelete(t *testing.T) {
	wm := NewWorldManager(nil, nil)
	r := newRegistry(t, labCatalog())
	for _, id := range []WorldID{"c", "a", "b"} {
		_, err := wm.CreateWorld(id, r, Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, []WorldID{"a", "b", "c"}, wm.ListWorlds())

	require.NoError(t, wm.DeleteWorld("b"))
	assert.Equal(t, []WorldID{"a", "c"}, wm.ListWorlds())
	assert.Error(t, wm.DeleteWorld("b"))
}

func TestWorldManager_WorldsAreIsolated(t *testing.T) {
	wm := NewWorldManager(nil, nil)
	r := newRegistry(t, labCatalog())
	a, err := wm.CreateWorld("a", r, Options{})
	require.NoError(t, err)
	b, err := wm.CreateWorld("b", r, Options{})
	require.NoError(t, err)

	var salt Handle
	require.NoError(t, a.Do(func(g *Graph) error {
		h, err := g.CreateByID("salt")
		if err != nil {
			return err
		}
		g.AttachWorld(h)
		salt = h
		return nil
	}))

	assert.Len(t, a.Members(), 3)
	assert.Empty(t, b.Members())
	require.NoError(t, b.Do(func(g *Graph) error {
		assert.Zero(t, g.Len())
		return nil
	}))

	var seen string
	a.Do(func(g *Graph) error {
		info, _ := g.Info(salt)
		seen = info.Formula
		return nil
	})
	assert.Equal(t, "NaCl", seen)
}

func TestWorldManager_UpdateWorldRegistry(t *testing.T) {
	wm := NewWorldManager(nil, nil)
	ws, err := wm.CreateWorld("lab", newRegistry(t, labCatalog()), Options{})
	require.NoError(t, err)

	var water Handle
	ws.Do(func(g *Graph) error {
		water, err = g.CreateByID("water")
		return err
	})

	next := newRegistry(t, reactorCatalog())
	require.NoError(t, wm.UpdateWorldRegistry("lab", next))
	assert.Same(t, next, ws.Registry())

	ws.Do(func(g *Graph) error {
		assert.True(t, g.Exists(water), "existing instances survive a catalog swap")
		_, err := g.CreateByID("water")
		assert.ErrorIs(t, err, ErrUnknownType)
		_, err = g.CreateByID("ABC")
		assert.NoError(t, err)
		return nil
	})

	assert.Error(t, wm.UpdateWorldRegistry("missing", next))
	assert.Error(t, wm.UpdateWorldRegistry("lab", nil))
}

func TestWorldManager_ConcurrentSteps(t *testing.T) {
	metrics := newRecorder()
	wm := NewWorldManager(nil, metrics)
	ws, err := wm.CreateWorld("lab", newRegistry(t, labCatalog()), Options{})
	require.NoError(t, err)

	var brine Handle
	ws.Do(func(g *Graph) error {
		brine, err = g.CreateByID("brine")
		return err
	})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws.Do(func(g *Graph) error {
				h, err := g.CreateByID("salt")
				if err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
				g.AddChild(brine, h)
				return nil
			})
		}(i)
	}
	wg.Wait()

	ws.Do(func(g *Graph) error {
		assert.InDelta(t, 26, g.Quantity(brine), epsilon)
		live, _ := metrics.liveIn("lab")
		assert.Equal(t, g.Len(), live)
		return nil
	})
	assert.Equal(t, 20, metrics.count("add_child/merged"))
}

func TestWorldManager_LiveInstancesPerWorld(t *testing.T) {
	metrics := newRecorder()
	wm := NewWorldManager(nil, metrics)
	lab, err := wm.CreateWorld("lab", newRegistry(t, labCatalog()), Options{})
	require.NoError(t, err)
	kitchen, err := wm.CreateWorld("kitchen", newRegistry(t, labCatalog()), Options{})
	require.NoError(t, err)

	lab.Do(func(g *Graph) error {
		_, err := g.CreateByID("brine")
		return err
	})
	kitchen.Do(func(g *Graph) error {
		_, err := g.CreateByID("salt")
		return err
	})

	labLive, ok := metrics.liveIn("lab")
	require.True(t, ok)
	kitchenLive, ok := metrics.liveIn("kitchen")
	require.True(t, ok)
	assert.Equal(t, 7, labLive, "brine, water and salt with their elements")
	assert.Equal(t, 3, kitchenLive)

	require.NoError(t, wm.DeleteWorld("kitchen"))
	_, ok = metrics.liveIn("kitchen")
	assert.False(t, ok)
	labLive, _ = metrics.liveIn("lab")
	assert.Equal(t, 7, labLive)
}
