package matter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func part(id, state string, qty float64) PartConfig {
	p := PartConfig{Type: id, State: state}
	if qty > 0 {
		p.Quantity = Exactly(qty)
	}
	return p
}

func num(sign Sign, v float64) *NumberConfig {
	return &NumberConfig{Sign: string(sign), Value: &v}
}

func ptr[T any](v T) *T { return &v }

// labCatalog covers every matter kind: water and salt carry element
// parts, brine mixes them, laminate stacks two layers.
func labCatalog() CatalogConfig {
	return CatalogConfig{
		Name: "lab",
		Types: []TypeConfig{
			{ID: "hydrogen", Kind: "element", Formula: "H"},
			{ID: "oxygen", Kind: "element", Formula: "O"},
			{ID: "sodium", Kind: "element", Formula: "Na"},
			{ID: "chlorine", Kind: "element", Formula: "Cl"},
			{
				ID: "water", Kind: "substance", State: "liquid", Formula: "H2O",
				Quantity: Exactly(10),
				Elements: []PartConfig{part("hydrogen", "", 2), part("oxygen", "", 1)},
			},
			{ID: "heavy_water", Kind: "substance", Parent: "water"},
			{
				ID: "salt", Kind: "substance", State: "solid",
				Elements: []PartConfig{part("sodium", "", 1), part("chlorine", "", 1)},
			},
			{
				ID: "brine", Kind: "mixture", MixtureKind: "solution",
				Substances: []PartConfig{part("water", "liquid", 5), part("salt", "solid", 1)},
			},
			{ID: "base_layer", Kind: "layer", StackIndex: 0, Thickness: Exactly(2)},
			{ID: "top_layer", Kind: "layer", StackIndex: 1, Thickness: Exactly(1)},
			{
				ID: "laminate", Kind: "material",
				Layers: []PartConfig{part("base_layer", "", 1), part("top_layer", "", 1)},
			},
		},
		Conditions: []ConditionConfig{
			{ID: "is_water", Kind: "substance", Type: "water"},
			{ID: "salty", Kind: "mixture", Substances: []PartConditionConfig{{Ref: "is_salt"}}},
			{ID: "is_salt", Kind: "substance", Type: "salt"},
		},
		Changes: []ChangeConfig{
			{ID: "boil", Kind: "substance", Type: "water", State: ptr("gas")},
			{ID: "drain", Kind: "substance", Quantity: &QuantityChangeConfig{Mode: "delta", Value: ptr(-1.0)}},
		},
	}
}

// recorder collects observations for assertions.
type recorder struct {
	mu     sync.Mutex
	counts map[string]int
	live   map[string]int
}

func newRecorder() *recorder {
	return &recorder{counts: make(map[string]int), live: make(map[string]int)}
}

func (r *recorder) Observe(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[op+"/"+outcome]++
}

func (r *recorder) SetLiveInstances(world string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[world] = n
}

func (r *recorder) ForgetWorld(world string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, world)
}

func (r *recorder) liveIn(world string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.live[world]
	return n, ok
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func newRegistry(t *testing.T, cfg CatalogConfig) *Registry {
	t.Helper()
	src, err := NewCatalogSource(cfg)
	require.NoError(t, err)
	return NewRegistry(src)
}

type testGraph struct {
	*Graph
	world   *World
	metrics *recorder
}

func newTestGraph(t *testing.T, cfg CatalogConfig) testGraph {
	t.Helper()
	world := NewWorld()
	metrics := newRecorder()
	g := NewGraph(Context{
		Registry: newRegistry(t, cfg),
		World:    world,
		WorldID:  "test",
		Metrics:  metrics,
		Options:  Options{Seed: 1},
	})
	return testGraph{Graph: g, world: world, metrics: metrics}
}

func (g testGraph) create(t *testing.T, id TypeID) Handle {
	t.Helper()
	h, err := g.CreateByID(id)
	require.NoError(t, err)
	return h
}

// childOfType returns the first child of h with the given type.
func (g testGraph) childOfType(h Handle, id TypeID) Handle {
	for _, ch := range g.Children(h) {
		if info, ok := g.Info(ch); ok && info.Type == id {
			return ch
		}
	}
	return Handle{}
}

func (g testGraph) condition(t *testing.T, cfg ConditionConfig) *Condition {
	t.Helper()
	c, err := g.Registry().BuildCondition(cfg)
	require.NoError(t, err)
	return c
}

func (g testGraph) change(t *testing.T, cfg ChangeConfig) *Change {
	t.Helper()
	c, err := g.Registry().BuildChange(cfg)
	require.NoError(t, err)
	return c
}
