package matter

import (
	"fmt"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid catalog: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "catalog validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// catalogIndex is the lookup state shared by the validators.
type catalogIndex struct {
	kinds      map[string]Kind
	typeIDs    []string
	conditions map[string]bool
	condIDs    []string
}

func (ix *catalogIndex) unknownType(prefix, id string) string {
	msg := prefix + ": type '" + id + "' does not exist"
	if s := suggest(id, ix.typeIDs); len(s) > 0 {
		msg += " (did you mean " + strings.Join(s, ", ") + "?)"
	}
	return msg
}

// ValidateCatalogConfig performs comprehensive validation of a CatalogConfig
func ValidateCatalogConfig(cfg CatalogConfig) error {
	err := &ValidationError{}

	if cfg.Name == "" {
		err.Add("catalog name is required")
	}

	ix := &catalogIndex{
		kinds:      make(map[string]Kind),
		conditions: make(map[string]bool),
	}

	for i, tc := range cfg.Types {
		if tc.ID == "" {
			err.Add(fmt.Sprintf("type at index %d: id is required", i))
			continue
		}
		if _, dup := ix.kinds[tc.ID]; dup {
			err.Add("duplicate type id: " + tc.ID)
			continue
		}
		k, ok := ParseKind(tc.Kind)
		if !ok || k == KindMatter || k.IsContainer() {
			err.Add("type '" + tc.ID + "': invalid kind '" + tc.Kind + "'")
		}
		ix.kinds[tc.ID] = k
		ix.typeIDs = append(ix.typeIDs, tc.ID)
	}

	for _, tc := range cfg.Types {
		if tc.ID == "" {
			continue
		}
		validateType(tc, ix, err)
	}

	for i, cc := range cfg.Conditions {
		if cc.ID == "" {
			err.Add(fmt.Sprintf("condition at index %d: id is required", i))
			continue
		}
		if ix.conditions[cc.ID] {
			err.Add("duplicate condition id: " + cc.ID)
			continue
		}
		ix.conditions[cc.ID] = true
		ix.condIDs = append(ix.condIDs, cc.ID)
	}
	for _, cc := range cfg.Conditions {
		if cc.ID == "" {
			continue
		}
		validateCondition(cc, "condition '"+cc.ID+"'", ix, err)
	}

	changeIDs := make(map[string]bool)
	for i, ch := range cfg.Changes {
		prefix := fmt.Sprintf("change at index %d", i)
		if ch.ID == "" {
			err.Add(prefix + ": id is required")
			continue
		}
		if changeIDs[ch.ID] {
			err.Add("duplicate change id: " + ch.ID)
			continue
		}
		changeIDs[ch.ID] = true
		validateChange(ch, "change '"+ch.ID+"'", ix, err)
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

func validateType(tc TypeConfig, ix *catalogIndex, err *ValidationError) {
	prefix := "type '" + tc.ID + "'"
	kind := ix.kinds[tc.ID]

	if tc.Parent != "" {
		pk, ok := ix.kinds[tc.Parent]
		switch {
		case !ok:
			err.Add(ix.unknownType(prefix+" parent", tc.Parent))
		case pk != kind:
			err.Add(prefix + ": parent '" + tc.Parent + "' is a " + pk.String() + ", not a " + kind.String())
		}
	}
	if _, ok := ParseState(tc.State); !ok {
		err.Add(prefix + ": invalid state '" + tc.State + "'")
	}
	if tc.Quantity.Max != 0 && tc.Quantity.Max < tc.Quantity.Min {
		err.Add(prefix + ": quantity max is below min")
	}

	if len(tc.Substances) > 0 && kind != KindCompound && kind != KindMixture {
		err.Add(prefix + ": only compounds and mixtures declare substances")
	}
	if len(tc.Layers) > 0 && kind != KindMaterial {
		err.Add(prefix + ": only materials declare layers")
	}
	if tc.MixtureKind != "" && kind != KindMixture {
		err.Add(prefix + ": mixture_kind is only valid on mixtures")
	}

	validateParts(tc.Elements, KindElement, prefix+" element", ix, err)
	validateParts(tc.Substances, KindSubstance, prefix+" substance", ix, err)
	validateParts(tc.Layers, KindLayer, prefix+" layer", ix, err)
}

func validateParts(parts []PartConfig, want Kind, prefix string, ix *catalogIndex, err *ValidationError) {
	for i, p := range parts {
		partPrefix := prefix + " at index " + fmt.Sprintf("%d", i)
		k, ok := ix.kinds[p.Type]
		switch {
		case p.Type == "":
			err.Add(partPrefix + ": type is required")
		case !ok:
			err.Add(ix.unknownType(partPrefix, p.Type))
		case k != want:
			err.Add(partPrefix + ": '" + p.Type + "' is a " + k.String() + ", not a " + want.String())
		}
		if _, ok := ParseNecessity(p.Necessity); !ok {
			err.Add(partPrefix + ": invalid necessity '" + p.Necessity + "'")
		}
		if _, ok := ParseState(p.State); !ok {
			err.Add(partPrefix + ": invalid state '" + p.State + "'")
		}
		if p.Quantity.Min < 0 {
			err.Add(partPrefix + ": quantity must not be negative")
		}
	}
}

func validateNumber(n *NumberConfig, prefix string, err *ValidationError) {
	if n == nil {
		return
	}
	if !Sign(n.Sign).Valid() {
		err.Add(prefix + ": invalid sign '" + n.Sign + "', must be one of: eq, ne, gt, gte, lt, lte")
	}
	if n.Value == nil && n.Expr == "" {
		err.Add(prefix + ": either value or expr is required")
	}
}

func validateText(t *TextConfig, prefix string, err *ValidationError) {
	if t == nil {
		return
	}
	if !Sign(t.Sign).Valid() {
		err.Add(prefix + ": invalid sign '" + t.Sign + "', must be one of: eq, ne, gt, gte, lt, lte")
	}
}

func validateKindField(present bool, kind Kind, allowed []Kind, field, prefix string, err *ValidationError) {
	if !present {
		return
	}
	for _, k := range allowed {
		if k == kind {
			return
		}
	}
	err.Add(prefix + ": " + field + " is not valid on a " + kind.String())
}

func validateCondition(cc ConditionConfig, prefix string, ix *catalogIndex, err *ValidationError) {
	kind, ok := ParseKind(cc.Kind)
	if cc.Kind != "" && (!ok || kind.IsContainer()) {
		err.Add(prefix + ": invalid kind '" + cc.Kind + "'")
	}
	if cc.Type != "" {
		if tk, ok := ix.kinds[cc.Type]; !ok {
			err.Add(ix.unknownType(prefix, cc.Type))
		} else if kind != KindMatter && tk != kind {
			err.Add(prefix + ": type '" + cc.Type + "' is a " + tk.String() + ", not a " + kind.String())
		}
	}
	validateNumber(cc.Quantity, prefix+" quantity", err)
	validateText(cc.Formula, prefix+" formula", err)
	if cc.State != nil {
		validateText(cc.State, prefix+" state", err)
		if _, ok := ParseState(cc.State.Value); !ok {
			err.Add(prefix + ": invalid state '" + cc.State.Value + "'")
		}
	}

	validateKindField(cc.Symbol != nil, kind, []Kind{KindElement}, "symbol", prefix, err)
	validateKindField(len(cc.Substances) > 0 || cc.AllMandatorySubstances, kind, []Kind{KindCompound, KindMixture}, "substances", prefix, err)
	validateKindField(cc.MixtureKind != nil, kind, []Kind{KindMixture}, "mixture_kind", prefix, err)
	validateKindField(len(cc.Layers) > 0 || cc.LayerCount != nil, kind, []Kind{KindMaterial}, "layers", prefix, err)
	validateKindField(cc.StackIndex != nil || cc.Thickness != nil, kind, []Kind{KindLayer}, "stack_index/thickness", prefix, err)

	validateText(cc.Symbol, prefix+" symbol", err)
	validateText(cc.MixtureKind, prefix+" mixture_kind", err)
	validateNumber(cc.LayerCount, prefix+" layer_count", err)
	validateNumber(cc.StackIndex, prefix+" stack_index", err)
	validateNumber(cc.Thickness, prefix+" thickness", err)

	validatePartConditions(cc.Elements, prefix+" element", ix, err)
	validatePartConditions(cc.Substances, prefix+" substance", ix, err)
	validatePartConditions(cc.Layers, prefix+" layer", ix, err)
}

func validatePartConditions(parts []PartConditionConfig, prefix string, ix *catalogIndex, err *ValidationError) {
	for i, p := range parts {
		partPrefix := prefix + " at index " + fmt.Sprintf("%d", i)
		validateConditionRef(p.Ref, p.Condition, partPrefix, ix, err)
		validateNumber(p.Count, partPrefix+" count", err)
		validateNumber(p.Amount, partPrefix+" amount", err)
	}
}

func validateConditionRef(ref string, inline *ConditionConfig, prefix string, ix *catalogIndex, err *ValidationError) {
	switch {
	case ref != "" && inline != nil:
		err.Add(prefix + ": ref and condition are mutually exclusive")
	case ref != "":
		if !ix.conditions[ref] {
			msg := prefix + ": condition '" + ref + "' does not exist"
			if s := suggest(ref, ix.condIDs); len(s) > 0 {
				msg += " (did you mean " + strings.Join(s, ", ") + "?)"
			}
			err.Add(msg)
		}
	case inline != nil:
		validateCondition(*inline, prefix, ix, err)
	default:
		err.Add(prefix + ": ref or condition is required")
	}
}

func validateQuantityChange(q *QuantityChangeConfig, prefix string, err *ValidationError) {
	if q == nil {
		return
	}
	if q.Mode != "" && q.Mode != "set" && q.Mode != "delta" {
		err.Add(prefix + ": invalid mode '" + q.Mode + "', must be set or delta")
	}
	if q.Value == nil && q.Expr == "" {
		err.Add(prefix + ": either value or expr is required")
	}
}

func validateChange(ch ChangeConfig, prefix string, ix *catalogIndex, err *ValidationError) {
	kind, ok := ParseKind(ch.Kind)
	if ch.Kind != "" && (!ok || kind.IsContainer()) {
		err.Add(prefix + ": invalid kind '" + ch.Kind + "'")
	}
	if ch.Type != "" {
		if tk, ok := ix.kinds[ch.Type]; !ok {
			err.Add(ix.unknownType(prefix, ch.Type))
		} else if kind != KindMatter && tk != kind {
			err.Add(prefix + ": type '" + ch.Type + "' is a " + tk.String() + ", not a " + kind.String())
		}
	}
	validateQuantityChange(ch.Quantity, prefix+" quantity", err)
	if ch.State != nil {
		if _, ok := ParseState(*ch.State); !ok {
			err.Add(prefix + ": invalid state '" + *ch.State + "'")
		}
	}

	validateKindField(ch.Symbol != nil, kind, []Kind{KindElement}, "symbol", prefix, err)
	validateKindField(len(ch.Substances) > 0, kind, []Kind{KindCompound, KindMixture}, "substances", prefix, err)
	validateKindField(ch.MixtureKind != nil, kind, []Kind{KindMixture}, "mixture_kind", prefix, err)
	validateKindField(len(ch.Layers) > 0, kind, []Kind{KindMaterial}, "layers", prefix, err)
	validateKindField(len(ch.Add) > 0 || len(ch.Remove) > 0, kind, []Kind{KindCompound, KindMixture, KindMaterial}, "add/remove", prefix, err)
	validateKindField(ch.StackIndex != nil || ch.Thickness != nil, kind, []Kind{KindLayer}, "stack_index/thickness", prefix, err)
	validateQuantityChange(ch.Thickness, prefix+" thickness", err)

	for i, sub := range ch.Elements {
		validateChange(sub, prefix+" element change at index "+fmt.Sprintf("%d", i), ix, err)
	}
	for i, sub := range ch.Substances {
		validateChange(sub, prefix+" substance change at index "+fmt.Sprintf("%d", i), ix, err)
	}
	for i, sub := range ch.Layers {
		validateChange(sub, prefix+" layer change at index "+fmt.Sprintf("%d", i), ix, err)
	}

	validateParts(ch.AddElements, KindElement, prefix+" added element", ix, err)
	addKind := KindSubstance
	if kind == KindMaterial {
		addKind = KindLayer
	}
	validateParts(ch.Add, addKind, prefix+" added part", ix, err)

	for i, r := range ch.RemoveElements {
		p := prefix + " element removal at index " + fmt.Sprintf("%d", i)
		validateConditionRef(r.Ref, r.Condition, p, ix, err)
		validateNumber(r.Quantity, p+" quantity", err)
	}
	for i, r := range ch.Remove {
		p := prefix + " removal at index " + fmt.Sprintf("%d", i)
		validateConditionRef(r.Ref, r.Condition, p, ix, err)
		validateNumber(r.Quantity, p+" quantity", err)
	}
}
