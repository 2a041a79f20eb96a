package model

import (
	"fmt"
)

// RefKind tags a typed shadow identifier. Shadow names are constructed
// values; the rendered text (y_5, x_2, param_3, ...) is a serialization
// of this type, never assembled ad hoc from strings.
type RefKind int

const (
	RefEndogenous RefKind = iota
	RefExogenous
	RefParameter
	RefDefinition
	RefSteadyState
	RefRegimeState
)

// ShadowRef is one entry of the canonical variable ordering: a kind, the
// symbol's table index, and (for endogenous entries) the time shift.
type ShadowRef struct {
	Kind  RefKind `json:"kind"`
	Index int     `json:"index"`
	Shift int     `json:"shift,omitempty"`

	// Position is the 1-based slot inside the y vector (endogenous
	// entries of the dynamic ordering only).
	Position int `json:"position,omitempty"`
}

// Render serializes the reference into the solver vocabulary.
func (r ShadowRef) Render() string {
	switch r.Kind {
	case RefEndogenous:
		return fmt.Sprintf("y_%d", r.Position)
	case RefExogenous:
		return fmt.Sprintf("x_%d", r.Index+1)
	case RefParameter:
		return fmt.Sprintf("param_%d", r.Index+1)
	case RefDefinition:
		return fmt.Sprintf("def_%d", r.Index+1)
	case RefSteadyState:
		return fmt.Sprintf("ss_%d", r.Index+1)
	case RefRegimeState:
		return fmt.Sprintf("s%d", r.Index)
	}
	return "?"
}

// DynamicOrder is the canonical dynamic-model variable ordering: lead
// occurrences first, then every current endogenous, then lag occurrences,
// then the shocks. Its layout is a stable contract for solvers.
type DynamicOrder struct {
	Entries  []ShadowRef `json:"entries"`
	NumLeads int         `json:"num_leads"`
	NumVars  int         `json:"num_vars"`
	NumLags  int         `json:"num_lags"`

	// byKey maps an occurrence key such as "C(+1)" to its entry.
	byKey map[string]ShadowRef
}

// buildDynamicOrder derives the ordering from the after-reorder
// incidence. Shocks follow the exogenous table order.
func buildDynamicOrder(dict *Dictionary, inc *Incidence) *DynamicOrder {
	ord := &DynamicOrder{byKey: map[string]ShadowRef{}}
	pos := 0
	addEndo := func(idx, shift int) {
		pos++
		ref := ShadowRef{Kind: RefEndogenous, Index: idx, Shift: shift, Position: pos}
		ord.Entries = append(ord.Entries, ref)
		ord.byKey[occurrenceKey(dict.Endogenous[idx].Name, shift)] = ref
	}
	for idx := range dict.Endogenous {
		if inc.AnyLead(idx) {
			addEndo(idx, 1)
			ord.NumLeads++
		}
	}
	for idx := range dict.Endogenous {
		addEndo(idx, 0)
		ord.NumVars++
	}
	for idx := range dict.Endogenous {
		if inc.AnyLag(idx) {
			addEndo(idx, -1)
			ord.NumLags++
		}
	}
	for idx, sym := range dict.Exogenous {
		ref := ShadowRef{Kind: RefExogenous, Index: idx}
		ord.Entries = append(ord.Entries, ref)
		ord.byKey[sym.Name] = ref
	}
	return ord
}

// Resolve maps an occurrence key (e.g. "C(+1)", "K(-1)", "E_a") to its
// shadow reference.
func (o *DynamicOrder) Resolve(key string) (ShadowRef, bool) {
	r, ok := o.byKey[key]
	return r, ok
}

// YSize is the length of the y vector: leads + currents + lags.
func (o *DynamicOrder) YSize() int { return o.NumLeads + o.NumVars + o.NumLags }

func occurrenceKey(name string, shift int) string {
	if shift == 0 {
		return name
	}
	return fmt.Sprintf("%s(%+d)", name, shift)
}
