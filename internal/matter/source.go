package matter

import (
	"errors"
	"fmt"
)

// Category partitions declarative ids.
type Category string

const (
	CategoryType      Category = "type"
	CategoryCondition Category = "condition"
	CategoryChange    Category = "change"
)

// ErrNotDeclared is returned by a Source when an id is absent.
var ErrNotDeclared = errors.New("not declared")

// Source is the declarative origin of types, conditions and changes. The
// Registry resolves from it lazily and caches the result, so a Source is
// consulted at most once per id.
type Source interface {
	Type(id TypeID) (TypeConfig, error)
	Condition(id TypeID) (ConditionConfig, error)
	Change(id TypeID) (ChangeConfig, error)

	// IDs lists declared ids of a category in declaration order.
	IDs(category Category) ([]TypeID, error)
}

// CatalogSource serves a validated CatalogConfig from memory.
type CatalogSource struct {
	name       string
	types      map[TypeID]TypeConfig
	conditions map[TypeID]ConditionConfig
	changes    map[TypeID]ChangeConfig
	order      map[Category][]TypeID
}

// NewCatalogSource validates cfg and indexes it.
func NewCatalogSource(cfg CatalogConfig) (*CatalogSource, error) {
	if err := ValidateCatalogConfig(cfg); err != nil {
		return nil, err
	}
	s := &CatalogSource{
		name:       cfg.Name,
		types:      make(map[TypeID]TypeConfig, len(cfg.Types)),
		conditions: make(map[TypeID]ConditionConfig, len(cfg.Conditions)),
		changes:    make(map[TypeID]ChangeConfig, len(cfg.Changes)),
		order:      make(map[Category][]TypeID, 3),
	}
	for _, tc := range cfg.Types {
		id := TypeID(tc.ID)
		s.types[id] = tc
		s.order[CategoryType] = append(s.order[CategoryType], id)
	}
	for _, cc := range cfg.Conditions {
		id := TypeID(cc.ID)
		s.conditions[id] = cc
		s.order[CategoryCondition] = append(s.order[CategoryCondition], id)
	}
	for _, ch := range cfg.Changes {
		id := TypeID(ch.ID)
		s.changes[id] = ch
		s.order[CategoryChange] = append(s.order[CategoryChange], id)
	}
	return s, nil
}

// Name returns the catalog name.
func (s *CatalogSource) Name() string { return s.name }

func (s *CatalogSource) Type(id TypeID) (TypeConfig, error) {
	tc, ok := s.types[id]
	if !ok {
		return TypeConfig{}, fmt.Errorf("type %q: %w", id, ErrNotDeclared)
	}
	return tc, nil
}

func (s *CatalogSource) Condition(id TypeID) (ConditionConfig, error) {
	cc, ok := s.conditions[id]
	if !ok {
		return ConditionConfig{}, fmt.Errorf("condition %q: %w", id, ErrNotDeclared)
	}
	return cc, nil
}

func (s *CatalogSource) Change(id TypeID) (ChangeConfig, error) {
	ch, ok := s.changes[id]
	if !ok {
		return ChangeConfig{}, fmt.Errorf("change %q: %w", id, ErrNotDeclared)
	}
	return ch, nil
}

func (s *CatalogSource) IDs(category Category) ([]TypeID, error) {
	ids := s.order[category]
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out, nil
}
