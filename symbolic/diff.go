package symbolic

import (
	"fmt"
	"sort"
	"strings"
)

// Tensor holds the order-k partial derivatives of an equation system with
// respect to an ordered wrt list. Only structurally nonzero entries are
// stored; indices are nondecreasing positions into the wrt list (the
// remaining entries follow by symmetry of partial derivatives).
type Tensor struct {
	Order     int
	Equations int
	Wrt       []string
	Entries   []Entry
}

// Entry is one nonzero derivative: equation index, wrt positions
// (0-based, nondecreasing) and the derivative expression.
type Entry struct {
	Equation int
	Index    []int
	Expr     Expr `json:"-"`
	Code     string
}

// IndexKey renders a multi-index as "i_j_k" (1-based, for solver output).
func IndexKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprintf("%d", v+1)
	}
	return strings.Join(parts, "_")
}

// At returns the stored derivative for (equation, idx), or a zero
// expression when the entry is structurally zero. idx must be sorted.
func (t *Tensor) At(equation int, idx ...int) Expr {
	for _, e := range t.Entries {
		if e.Equation != equation || len(e.Index) != len(idx) {
			continue
		}
		match := true
		for i := range idx {
			if e.Index[i] != idx[i] {
				match = false
				break
			}
		}
		if match {
			return e.Expr
		}
	}
	return N(0)
}

// Differentiate computes derivative tensors of orders 1..order for the
// equation system with respect to wrt. Each equation is first reduced to
// the wrt symbols it actually references, so absent symbols contribute
// structural zeros without any graph work. Output order is deterministic:
// equations ascending, multi-indices lexicographic.
func Differentiate(eqs []Expr, wrt []string, order int) ([]*Tensor, error) {
	if order < 1 {
		return nil, fmt.Errorf("derivative order must be >= 1, got %d", order)
	}
	perEq := make([][]*Tensor, len(eqs))
	for i, eq := range eqs {
		perEq[i] = DifferentiateOne(eq, i, wrt, order)
	}
	return MergeTensors(perEq, len(eqs), wrt, order), nil
}

// DifferentiateOne differentiates a single equation. It is safe to call
// concurrently for distinct equations: nothing is shared between calls.
func DifferentiateOne(eq Expr, eqIndex int, wrt []string, order int) []*Tensor {
	active := activePositions(eq, wrt)
	out := make([]*Tensor, order)
	current := []Entry{{Equation: eqIndex, Index: nil, Expr: eq}}
	for k := 1; k <= order; k++ {
		var next []Entry
		for _, ent := range current {
			floor := 0
			if len(ent.Index) > 0 {
				floor = ent.Index[len(ent.Index)-1]
			}
			for _, j := range active {
				if j < floor {
					continue
				}
				d := Diff(ent.Expr, wrt[j])
				if IsZero(d) {
					continue
				}
				idx := append(append([]int{}, ent.Index...), j)
				next = append(next, Entry{Equation: eqIndex, Index: idx, Expr: d, Code: d.String()})
			}
		}
		out[k-1] = &Tensor{Order: k, Equations: eqIndex + 1, Wrt: wrt, Entries: next}
		current = next
	}
	return out
}

// MergeTensors stitches per-equation tensors into system-wide tensors,
// preserving the deterministic equation/index ordering.
func MergeTensors(perEq [][]*Tensor, numEquations int, wrt []string, order int) []*Tensor {
	out := make([]*Tensor, order)
	for k := 0; k < order; k++ {
		merged := &Tensor{Order: k + 1, Equations: numEquations, Wrt: wrt}
		for _, ts := range perEq {
			if k < len(ts) && ts[k] != nil {
				merged.Entries = append(merged.Entries, ts[k].Entries...)
			}
		}
		sort.SliceStable(merged.Entries, func(i, j int) bool {
			a, b := merged.Entries[i], merged.Entries[j]
			if a.Equation != b.Equation {
				return a.Equation < b.Equation
			}
			for p := range a.Index {
				if a.Index[p] != b.Index[p] {
					return a.Index[p] < b.Index[p]
				}
			}
			return false
		})
		out[k] = merged
	}
	return out
}

// activePositions returns the wrt positions whose symbol occurs in eq,
// ascending. The regime indicators s0 and s1 are always considered
// active when present in the wrt list.
func activePositions(eq Expr, wrt []string) []int {
	free := FreeSymbols(eq)
	var active []int
	for j, name := range wrt {
		if free[name] || name == "s0" || name == "s1" {
			active = append(active, j)
		}
	}
	return active
}
