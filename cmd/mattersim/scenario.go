package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/daniacca/mattercore/internal/matter/sources"
)

// Step operations.
const (
	opCreate     = "create"
	opAdd        = "add"
	opRemove     = "remove"
	opApply      = "apply"
	opSatisfies  = "satisfies"
	opSynthesize = "synthesize"
)

// scenario is a scripted run against one world. Steps name the instances
// they create with As and refer to them by that label afterwards.
type scenario struct {
	Name  string `json:"name" toml:"name"`
	Steps []step `json:"steps" toml:"steps"`
}

type step struct {
	Op string `json:"op" toml:"op"`
	As string `json:"as,omitempty" toml:"as,omitempty"`

	// create
	Type     string  `json:"type,omitempty" toml:"type,omitempty"`
	Kind     string  `json:"kind,omitempty" toml:"kind,omitempty"`
	Quantity float64 `json:"quantity,omitempty" toml:"quantity,omitempty"`

	// add, remove, create
	Parent string `json:"parent,omitempty" toml:"parent,omitempty"`
	Child  string `json:"child,omitempty" toml:"child,omitempty"`

	// apply, satisfies
	Target    string         `json:"target,omitempty" toml:"target,omitempty"`
	Change    string         `json:"change,omitempty" toml:"change,omitempty"`
	Condition string         `json:"condition,omitempty" toml:"condition,omitempty"`
	Vars      map[string]any `json:"vars,omitempty" toml:"vars,omitempty"`
	Repeat    int            `json:"repeat,omitempty" toml:"repeat,omitempty"`

	// synthesize
	Pool []string `json:"pool,omitempty" toml:"pool,omitempty"`
}

func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}
	var sc scenario
	switch sources.FormatFromPath(path) {
	case sources.FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&sc); err != nil {
			return scenario{}, fmt.Errorf("parsing scenario TOML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sc); err != nil {
			return scenario{}, fmt.Errorf("parsing scenario JSON: %w", err)
		}
	}
	if err := sc.validate(); err != nil {
		return scenario{}, err
	}
	return sc, nil
}

// validate checks every step names its operation's inputs and that labels
// are defined before use.
func (sc scenario) validate() error {
	labels := make(map[string]bool)
	need := func(i int, field, label string) error {
		if label == "" {
			return fmt.Errorf("step %d (%s): %s is required", i, sc.Steps[i].Op, field)
		}
		if !labels[label] {
			return fmt.Errorf("step %d (%s): unknown label %q", i, sc.Steps[i].Op, label)
		}
		return nil
	}
	for i, st := range sc.Steps {
		var err error
		switch st.Op {
		case opCreate:
			if st.Type == "" && st.Kind == "" {
				err = fmt.Errorf("step %d (create): type or kind is required", i)
			} else if st.Parent != "" {
				err = need(i, "parent", st.Parent)
			}
		case opAdd, opRemove:
			if err = need(i, "parent", st.Parent); err == nil {
				err = need(i, "child", st.Child)
			}
		case opApply:
			if err = need(i, "target", st.Target); err == nil && st.Change == "" {
				err = fmt.Errorf("step %d (apply): change is required", i)
			}
		case opSatisfies:
			if err = need(i, "target", st.Target); err == nil && st.Condition == "" {
				err = fmt.Errorf("step %d (satisfies): condition is required", i)
			}
		case opSynthesize:
			if len(st.Pool) == 0 {
				err = fmt.Errorf("step %d (synthesize): pool is required", i)
			}
			for _, l := range st.Pool {
				if err == nil {
					err = need(i, "pool", l)
				}
			}
		default:
			err = fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if err != nil {
			return err
		}
		if st.As != "" {
			labels[st.As] = true
		}
	}
	return nil
}
