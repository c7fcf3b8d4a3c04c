package matter

// CatalogConfig is the declarative source format: matter types plus named
// conditions and changes. It decodes from JSON or TOML.
type CatalogConfig struct {
	Name       string            `json:"name" toml:"name"`
	Types      []TypeConfig      `json:"types" toml:"types"`
	Conditions []ConditionConfig `json:"conditions,omitempty" toml:"conditions,omitempty"`
	Changes    []ChangeConfig    `json:"changes,omitempty" toml:"changes,omitempty"`
}

// PartConfig references a type as a part of another type.
type PartConfig struct {
	Type      string `json:"type" toml:"type"`
	Necessity string `json:"necessity,omitempty" toml:"necessity,omitempty"`
	State     string `json:"state,omitempty" toml:"state,omitempty"`
	Quantity  Range  `json:"quantity" toml:"quantity"`
}

type TypeConfig struct {
	ID          string       `json:"id" toml:"id"`
	Kind        string       `json:"kind" toml:"kind"`
	Parent      string       `json:"parent,omitempty" toml:"parent,omitempty"`
	State       string       `json:"state,omitempty" toml:"state,omitempty"`
	Formula     string       `json:"formula,omitempty" toml:"formula,omitempty"`
	Quantity    Range        `json:"quantity" toml:"quantity"`
	Elements    []PartConfig `json:"elements,omitempty" toml:"elements,omitempty"`
	Substances  []PartConfig `json:"substances,omitempty" toml:"substances,omitempty"`
	Layers      []PartConfig `json:"layers,omitempty" toml:"layers,omitempty"`
	MixtureKind string       `json:"mixture_kind,omitempty" toml:"mixture_kind,omitempty"`
	Composition string       `json:"composition,omitempty" toml:"composition,omitempty"`
	StackIndex  int          `json:"stack_index,omitempty" toml:"stack_index,omitempty"`
	Thickness   Range        `json:"thickness" toml:"thickness"`
}

// NumberConfig is a numeric constraint or operand: a literal value or an
// expression over the binding context.
type NumberConfig struct {
	Sign  string   `json:"sign,omitempty" toml:"sign,omitempty"`
	Value *float64 `json:"value,omitempty" toml:"value,omitempty"`
	Expr  string   `json:"expr,omitempty" toml:"expr,omitempty"`
}

type TextConfig struct {
	Sign  string `json:"sign,omitempty" toml:"sign,omitempty"`
	Value string `json:"value" toml:"value"`
}

// PartConditionConfig nests a condition either inline or by reference.
type PartConditionConfig struct {
	Ref       string           `json:"ref,omitempty" toml:"ref,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty" toml:"condition,omitempty"`
	Count     *NumberConfig    `json:"count,omitempty" toml:"count,omitempty"`
	Amount    *NumberConfig    `json:"amount,omitempty" toml:"amount,omitempty"`
}

type ConditionConfig struct {
	ID                   string                `json:"id,omitempty" toml:"id,omitempty"`
	Kind                 string                `json:"kind,omitempty" toml:"kind,omitempty"`
	Type                 string                `json:"type,omitempty" toml:"type,omitempty"`
	Quantity             *NumberConfig         `json:"quantity,omitempty" toml:"quantity,omitempty"`
	State                *TextConfig           `json:"state,omitempty" toml:"state,omitempty"`
	Formula              *TextConfig           `json:"formula,omitempty" toml:"formula,omitempty"`
	AllMandatoryElements bool                  `json:"all_mandatory_elements,omitempty" toml:"all_mandatory_elements,omitempty"`
	Elements             []PartConditionConfig `json:"elements,omitempty" toml:"elements,omitempty"`
	Expr                 string                `json:"expr,omitempty" toml:"expr,omitempty"`

	// kind-specific
	Symbol                 *TextConfig           `json:"symbol,omitempty" toml:"symbol,omitempty"`
	Substances             []PartConditionConfig `json:"substances,omitempty" toml:"substances,omitempty"`
	AllMandatorySubstances bool                  `json:"all_mandatory_substances,omitempty" toml:"all_mandatory_substances,omitempty"`
	MixtureKind            *TextConfig           `json:"mixture_kind,omitempty" toml:"mixture_kind,omitempty"`
	Layers                 []PartConditionConfig `json:"layers,omitempty" toml:"layers,omitempty"`
	LayerCount             *NumberConfig         `json:"layer_count,omitempty" toml:"layer_count,omitempty"`
	StackIndex             *NumberConfig         `json:"stack_index,omitempty" toml:"stack_index,omitempty"`
	Thickness              *NumberConfig         `json:"thickness,omitempty" toml:"thickness,omitempty"`
}

// QuantityChangeConfig: mode is "set" (default) or "delta".
type QuantityChangeConfig struct {
	Mode  string   `json:"mode,omitempty" toml:"mode,omitempty"`
	Value *float64 `json:"value,omitempty" toml:"value,omitempty"`
	Expr  string   `json:"expr,omitempty" toml:"expr,omitempty"`
}

type RemovalConfig struct {
	Ref       string           `json:"ref,omitempty" toml:"ref,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty" toml:"condition,omitempty"`
	Quantity  *NumberConfig    `json:"quantity,omitempty" toml:"quantity,omitempty"`
}

type ChangeConfig struct {
	ID             string                `json:"id,omitempty" toml:"id,omitempty"`
	Kind           string                `json:"kind,omitempty" toml:"kind,omitempty"`
	Type           string                `json:"type,omitempty" toml:"type,omitempty"`
	Quantity       *QuantityChangeConfig `json:"quantity,omitempty" toml:"quantity,omitempty"`
	State          *string               `json:"state,omitempty" toml:"state,omitempty"`
	Formula        *string               `json:"formula,omitempty" toml:"formula,omitempty"`
	Elements       []ChangeConfig        `json:"elements,omitempty" toml:"elements,omitempty"`
	AddElements    []PartConfig          `json:"add_elements,omitempty" toml:"add_elements,omitempty"`
	RemoveElements []RemovalConfig       `json:"remove_elements,omitempty" toml:"remove_elements,omitempty"`

	// kind-specific
	Symbol      *string               `json:"symbol,omitempty" toml:"symbol,omitempty"`
	Substances  []ChangeConfig        `json:"substances,omitempty" toml:"substances,omitempty"`
	Layers      []ChangeConfig        `json:"layers,omitempty" toml:"layers,omitempty"`
	Add         []PartConfig          `json:"add,omitempty" toml:"add,omitempty"`
	Remove      []RemovalConfig       `json:"remove,omitempty" toml:"remove,omitempty"`
	MixtureKind *string               `json:"mixture_kind,omitempty" toml:"mixture_kind,omitempty"`
	StackIndex  *int                  `json:"stack_index,omitempty" toml:"stack_index,omitempty"`
	Thickness   *QuantityChangeConfig `json:"thickness,omitempty" toml:"thickness,omitempty"`
}
