package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Incidence records which structural equations reference which endogenous
// variables at which time shift. It is a 3-D boolean array stored as
// three equation-by-variable planes.
type Incidence struct {
	Vars    []string
	Lead    *mat.Dense
	Current *mat.Dense
	Lag     *mat.Dense
}

func NewIncidence(numEquations int, vars []string) *Incidence {
	n := len(vars)
	if numEquations == 0 || n == 0 {
		return &Incidence{Vars: vars}
	}
	return &Incidence{
		Vars:    vars,
		Lead:    mat.NewDense(numEquations, n, nil),
		Current: mat.NewDense(numEquations, n, nil),
		Lag:     mat.NewDense(numEquations, n, nil),
	}
}

// Plane returns the matrix for a shift in {-1, 0, +1}.
func (inc *Incidence) Plane(shift int) *mat.Dense {
	switch {
	case shift > 0:
		return inc.Lead
	case shift < 0:
		return inc.Lag
	}
	return inc.Current
}

func (inc *Incidence) Mark(equation, variable, shift int) {
	inc.Plane(shift).Set(equation, variable, 1)
}

func (inc *Incidence) Has(equation, variable, shift int) bool {
	p := inc.Plane(shift)
	if p == nil {
		return false
	}
	return p.At(equation, variable) != 0
}

// CheckCurrent enforces the incidence invariant: every endogenous
// variable must appear with a current-dated occurrence in at least one
// structural equation.
func (inc *Incidence) CheckCurrent() error {
	if inc.Current == nil {
		if len(inc.Vars) == 0 {
			return nil
		}
		return fmt.Errorf("endogenous variable %q does not appear as current in any equation", inc.Vars[0])
	}
	rows, _ := inc.Current.Dims()
	for v, name := range inc.Vars {
		found := false
		for e := 0; e < rows; e++ {
			if inc.Current.At(e, v) != 0 {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("endogenous variable %q does not appear as current in any equation", name)
		}
	}
	return nil
}

// Permute returns a copy with variable columns reordered by perm, where
// perm[newIdx] = oldIdx.
func (inc *Incidence) Permute(vars []string, perm []int) *Incidence {
	rows := 0
	if inc.Current != nil {
		rows, _ = inc.Current.Dims()
	}
	out := NewIncidence(rows, vars)
	if rows == 0 {
		return out
	}
	for newIdx, oldIdx := range perm {
		for e := 0; e < rows; e++ {
			for _, shift := range []int{-1, 0, 1} {
				if inc.Plane(shift).At(e, oldIdx) != 0 {
					out.Mark(e, newIdx, shift)
				}
			}
		}
	}
	return out
}

// AnyLead reports whether the variable appears with a lead anywhere.
func (inc *Incidence) AnyLead(variable int) bool { return inc.anyIn(inc.Lead, variable) }

// AnyLag reports whether the variable appears with a lag anywhere.
func (inc *Incidence) AnyLag(variable int) bool { return inc.anyIn(inc.Lag, variable) }

func (inc *Incidence) anyIn(p *mat.Dense, variable int) bool {
	if p == nil {
		return false
	}
	rows, _ := p.Dims()
	for e := 0; e < rows; e++ {
		if p.At(e, variable) != 0 {
			return true
		}
	}
	return false
}
