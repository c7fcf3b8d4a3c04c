package matter

import "strings"

// Kind identifies which layer of the matter hierarchy a type, condition,
// change or instance belongs to.
type Kind uint8

const (
	// KindMatter is the generic kind: conditions and changes of this kind
	// apply to any matter instance.
	KindMatter Kind = iota
	KindElement
	KindSubstance
	KindCompound
	KindMixture
	KindMaterial
	KindLayer

	// Containers are not matter; they own matter and carry a position.
	KindObject
	KindSpace
)

var kindNames = map[Kind]string{
	KindMatter:    "matter",
	KindElement:   "element",
	KindSubstance: "substance",
	KindCompound:  "compound",
	KindMixture:   "mixture",
	KindMaterial:  "material",
	KindLayer:     "layer",
	KindObject:    "object",
	KindSpace:     "space",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind parses a kind name (case-insensitive).
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindMatter, false
}

// IsContainer reports whether the kind is a tangible object or a space.
func (k Kind) IsContainer() bool {
	return k == KindObject || k == KindSpace
}

// partKinds lists the kinds an instance of kind k may own directly.
func (k Kind) partKinds() []Kind {
	switch k {
	case KindElement:
		return nil
	case KindSubstance, KindLayer:
		return []Kind{KindElement}
	case KindCompound, KindMixture:
		return []Kind{KindElement, KindSubstance}
	case KindMaterial:
		return []Kind{KindElement, KindLayer}
	case KindObject, KindSpace:
		return []Kind{KindSubstance, KindCompound, KindMixture, KindMaterial}
	}
	return nil
}

// CanOwn reports whether an instance of kind k may directly own a child of
// kind child.
func (k Kind) CanOwn(child Kind) bool {
	for _, pk := range k.partKinds() {
		if pk == child {
			return true
		}
	}
	return false
}

// narrower reports whether part is reachable from k through ownership, i.e.
// a condition or change of kind part can be reinterpreted against the
// children of a k instance.
func (k Kind) narrower(part Kind) bool {
	if part == KindMatter || part == k {
		return false
	}
	for _, pk := range k.partKinds() {
		if pk == part || pk.narrower(part) {
			return true
		}
	}
	return false
}

// conserved reports whether children of kind child contribute to the
// quantity of a k owner. Elements describe composition only.
func (k Kind) conserved(child Kind) bool {
	if child == KindElement || k.IsContainer() {
		return false
	}
	return k.CanOwn(child)
}

// StateOfMatter is the physical state of an instance.
type StateOfMatter uint8

const (
	StateUnknown StateOfMatter = iota
	StateSolid
	StateLiquid
	StateGas
	StatePlasma
)

var stateNames = map[StateOfMatter]string{
	StateUnknown: "unknown",
	StateSolid:   "solid",
	StateLiquid:  "liquid",
	StateGas:     "gas",
	StatePlasma:  "plasma",
}

func (s StateOfMatter) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseState parses a state-of-matter name (case-insensitive). The empty
// string parses as StateUnknown.
func ParseState(s string) (StateOfMatter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StateUnknown, true
	}
	for st, name := range stateNames {
		if name == s {
			return st, true
		}
	}
	return StateUnknown, false
}

// Necessity flags whether a part requirement must be present.
type Necessity uint8

const (
	Mandatory Necessity = iota
	Optional
)

func (n Necessity) String() string {
	if n == Optional {
		return "optional"
	}
	return "mandatory"
}

// ParseNecessity parses "mandatory" or "optional"; empty means mandatory.
func ParseNecessity(s string) (Necessity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mandatory":
		return Mandatory, true
	case "optional":
		return Optional, true
	}
	return Mandatory, false
}
