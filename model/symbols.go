// Package model builds the compiler's symbol dictionary and compiles the
// equation blocks into canonical shadow form with incidence matrices.
package model

import (
	"fmt"
	"regexp"
	"strconv"
)

// SymbolKind classifies a declared name.
type SymbolKind int

const (
	Endogenous SymbolKind = iota
	Exogenous
	Parameter
	Observable
	Definition
)

func (k SymbolKind) String() string {
	switch k {
	case Endogenous:
		return "endogenous"
	case Exogenous:
		return "exogenous"
	case Parameter:
		return "parameter"
	case Observable:
		return "observable"
	case Definition:
		return "definition"
	}
	return "unknown"
}

// Symbol is one declared name. Index is immutable once assigned and is
// the canonical cross-reference between text and symbolic form.
type Symbol struct {
	Name    string     `json:"name"`
	TexName string     `json:"tex_name,omitempty"`
	Kind    SymbolKind `json:"kind"`
	Index   int        `json:"index"`

	IsLogVar    bool `json:"is_log_var,omitempty"`
	IsSwitching bool `json:"is_switching,omitempty"`
	IsObserved  bool `json:"is_observed,omitempty"`
	IsAuxiliary bool `json:"is_auxiliary,omitempty"`
	IsInUse     bool `json:"is_in_use,omitempty"`

	// ChainID is the governing Markov chain index, or -1.
	ChainID int `json:"chain_id"`
}

// MarkovChain describes one declared chain of discrete regimes.
type MarkovChain struct {
	Name             string   `json:"name"`
	NumStates        int      `json:"number_of_states"`
	ControlledParams []string `json:"controlled_parameters,omitempty"`
	IsEndogenous     bool     `json:"is_endogenous,omitempty"`
}

// Regime is one combination of per-chain states (1-based, one entry per
// chain in chain order).
type Regime struct {
	Index  int   `json:"index"`
	States []int `json:"states"`
}

// SemanticError is a model-level error reported against an equation.
type SemanticError struct {
	Equation int
	Msg      string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("equation %d: %s", e.Equation, e.Msg)
}

func semanticf(eq int, format string, args ...any) *SemanticError {
	return &SemanticError{Equation: eq, Msg: fmt.Sprintf(format, args...)}
}

// Dictionary is the frozen symbol table for one compilation run. It is
// produced by BuildDictionary and never mutated afterwards.
type Dictionary struct {
	Endogenous  []*Symbol `json:"endogenous"`
	Exogenous   []*Symbol `json:"exogenous"`
	Parameters  []*Symbol `json:"parameters"`
	Observables []*Symbol `json:"observables"`
	Definitions []*Symbol `json:"definitions,omitempty"`

	Chains  []*MarkovChain `json:"markov_chains,omitempty"`
	Regimes []Regime       `json:"regimes"`

	// Calibration holds the parameterization block entries in file order.
	Calibration []Calib `json:"calibration,omitempty"`

	// LogRenames maps an original declared name to its log substitute
	// (X -> log_X) for log_vars declarations.
	LogRenames map[string]string `json:"log_renames,omitempty"`

	// originalNames holds every user-declared name, before auxiliary
	// expansion; auxiliaries created later are not in this set.
	originalNames map[string]bool
	byName        map[string]*Symbol
}

// Lookup resolves a name against every symbol table.
func (d *Dictionary) Lookup(name string) (*Symbol, bool) {
	s, ok := d.byName[name]
	return s, ok
}

// IsOriginal reports whether the name was user-declared (as opposed to a
// compiler-synthesized auxiliary).
func (d *Dictionary) IsOriginal(name string) bool { return d.originalNames[name] }

// EndogenousNames returns the endogenous names in table order.
func (d *Dictionary) EndogenousNames() []string {
	out := make([]string, len(d.Endogenous))
	for i, s := range d.Endogenous {
		out[i] = s.Name
	}
	return out
}

var tpNameRe = regexp.MustCompile(`^(.+)_tp_(\d+)_(\d+)$`)

// TransitionProb decomposes a transition-probability parameter name of
// the form <chain>_tp_<from>_<to>.
func (d *Dictionary) TransitionProb(name string) (chain *MarkovChain, from, to int, ok bool) {
	m := tpNameRe.FindStringSubmatch(name)
	if m == nil {
		return nil, 0, 0, false
	}
	for _, c := range d.Chains {
		if c.Name == m[1] {
			from, _ = strconv.Atoi(m[2])
			to, _ = strconv.Atoi(m[3])
			return c, from, to, true
		}
	}
	return nil, 0, 0, false
}

// enumerateRegimes builds the cartesian product of chain states in
// declaration order, rightmost chain advancing fastest, so regime 0 is
// (1,1,...,1) and the enumeration is canonical.
func enumerateRegimes(chains []*MarkovChain) []Regime {
	total := 1
	for _, c := range chains {
		total *= c.NumStates
	}
	regimes := make([]Regime, 0, total)
	states := make([]int, len(chains))
	for i := range states {
		states[i] = 1
	}
	for r := 0; r < total; r++ {
		regimes = append(regimes, Regime{Index: r, States: append([]int{}, states...)})
		// Advance the rightmost chain first (lexicographic tuples).
		for i := len(chains) - 1; i >= 0; i-- {
			states[i]++
			if states[i] <= chains[i].NumStates {
				break
			}
			states[i] = 1
		}
	}
	return regimes
}
