// Package deriv orchestrates differentiation of the compiled model: it
// fixes the wrt lists for each model variant, invokes the symbolic
// engine, and packages the printed derivatives into routines for the
// numerical solvers.
package deriv

import (
	"github.com/irisccy/rise/model"
)

// Partition classifies the endogenous variables from the after-reorder
// incidence and fixes the differentiation-list sizes and offsets. Both
// maps are a stable contract: downstream solvers index into the dynamic
// wrt vector using these numbers.
type Partition struct {
	// Variable classes, as after-reorder endogenous indices: Forward
	// variables appear with a lead but no lag, Backward with a lag but
	// no lead, Both with both, Static with neither. Predetermined lists
	// every variable with a lag occurrence.
	Forward       []int `json:"forward"`
	Backward      []int `json:"backward"`
	Both          []int `json:"both"`
	Static        []int `json:"static"`
	Predetermined []int `json:"predetermined"`

	Siz     map[string]int `json:"siz"`
	Offsets map[string]int `json:"offsets"`
}

// BuildPartition derives the partition from the incidence and the
// dictionary. Offsets address the dynamic wrt vector laid out as
// [leads | currents | lags | shocks].
func BuildPartition(dict *model.Dictionary, inc *model.Incidence, ord *model.DynamicOrder) Partition {
	p := Partition{Siz: map[string]int{}, Offsets: map[string]int{}}
	for idx := range dict.Endogenous {
		lead := inc.AnyLead(idx)
		lag := inc.AnyLag(idx)
		switch {
		case lead && lag:
			p.Both = append(p.Both, idx)
		case lead:
			p.Forward = append(p.Forward, idx)
		case lag:
			p.Backward = append(p.Backward, idx)
		default:
			p.Static = append(p.Static, idx)
		}
		if lag {
			p.Predetermined = append(p.Predetermined, idx)
		}
	}
	p.Siz["forward"] = len(p.Forward)
	p.Siz["backward"] = len(p.Backward)
	p.Siz["both"] = len(p.Both)
	p.Siz["static"] = len(p.Static)
	p.Siz["predetermined"] = len(p.Predetermined)
	p.Siz["shocks"] = len(dict.Exogenous)
	p.Siz["parameters"] = len(dict.Parameters)

	p.Offsets["lead"] = 0
	p.Offsets["current"] = ord.NumLeads
	p.Offsets["lag"] = ord.NumLeads + ord.NumVars
	p.Offsets["shock"] = ord.YSize()
	return p
}
