package deriv

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/irisccy/rise/symbolic"
)

// Binding carries the numeric point a routine is evaluated at. Slices
// back the shadow vocabulary positionally: Y[i] is y_<i+1>, X[i] is
// x_<i+1>, and so on. S0 and S1 are the regime indicators.
type Binding struct {
	Y     []float64
	X     []float64
	Param []float64
	SS    []float64
	Def   []float64
	S0    float64
	S1    float64
}

// Env expands the binding into a symbolic evaluation environment.
func (b Binding) Env() symbolic.Env {
	env := symbolic.Env{"s0": b.S0, "s1": b.S1}
	fill := func(prefix string, vals []float64) {
		for i, v := range vals {
			env[fmt.Sprintf("%s_%d", prefix, i+1)] = v
		}
	}
	fill("y", b.Y)
	fill("x", b.X)
	fill("param", b.Param)
	fill("ss", b.SS)
	fill("def", b.Def)
	return env
}

// Eval evaluates the routine's residuals at the binding.
func (r *Routine) Eval(b Binding) (*mat.VecDense, error) {
	env := b.Env()
	out := mat.NewVecDense(len(r.Exprs), nil)
	for i, e := range r.Exprs {
		v, ok := e.Eval(env)
		if !ok {
			return nil, fmt.Errorf("routine %s: equation %d does not evaluate at the given point", r.Name, i+1)
		}
		out.SetVec(i, v)
	}
	return out, nil
}

// Jacobian evaluates the first-order tensor into a dense equations-by-wrt
// matrix. Structural zeros stay zero.
func (r *Routine) Jacobian(b Binding) (*mat.Dense, error) {
	if len(r.Derivatives) == 0 {
		return nil, fmt.Errorf("routine %s carries no derivatives", r.Name)
	}
	env := b.Env()
	t := r.Derivatives[0]
	out := mat.NewDense(len(r.Exprs), len(r.Wrt), nil)
	for _, ent := range t.Entries {
		v, ok := ent.Expr.Eval(env)
		if !ok {
			return nil, fmt.Errorf("routine %s: derivative d(eq %d)/d(%s) does not evaluate at the given point",
				r.Name, ent.Equation+1, r.Wrt[ent.Index[0]])
		}
		out.Set(ent.Equation, ent.Index[0], v)
	}
	return out, nil
}

// Hessians evaluates the second-order tensor into one dense wrt-by-wrt
// matrix per equation, mirroring each stored upper triangle across the
// diagonal.
func (r *Routine) Hessians(b Binding) ([]*mat.SymDense, error) {
	if len(r.Derivatives) < 2 {
		return nil, fmt.Errorf("routine %s carries no second-order derivatives", r.Name)
	}
	env := b.Env()
	t := r.Derivatives[1]
	out := make([]*mat.SymDense, len(r.Exprs))
	for i := range out {
		out[i] = mat.NewSymDense(len(r.Wrt), nil)
	}
	for _, ent := range t.Entries {
		v, ok := ent.Expr.Eval(env)
		if !ok {
			return nil, fmt.Errorf("routine %s: second derivative of equation %d does not evaluate at the given point",
				r.Name, ent.Equation+1)
		}
		out[ent.Equation].SetSym(ent.Index[0], ent.Index[1], v)
	}
	return out, nil
}
