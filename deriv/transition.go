package deriv

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/irisccy/rise/model"
	"github.com/irisccy/rise/symbolic"
)

// Transition is the regime transition matrix assembled from the
// per-chain transition-probability parameters. Cell (r, s) is the
// probability of moving from regime r to regime s, stored as a shadow
// expression over param_<i> names so the matrix re-evaluates under any
// parameterization.
type Transition struct {
	// Chains holds the per-chain symbolic matrices, in chain order.
	Chains []*ChainTransition `json:"chains"`
	// Code prints the full regime matrix row-major, one cell per line.
	Code []string `json:"code"`

	regimes []model.Regime
	cells   [][]symbolic.Expr
}

// ChainTransition is one chain's symbolic transition matrix. Diagonal
// cells are one minus the off-diagonal row sum.
type ChainTransition struct {
	Name   string     `json:"name"`
	States int        `json:"states"`
	Code   [][]string `json:"code"`

	cells [][]symbolic.Expr
}

// BuildTransition assembles the per-chain matrices and their product
// over the regime grid. The full matrix cell (r, s) multiplies, chain
// by chain, the probability of moving from r's state to s's state.
func BuildTransition(dict *model.Dictionary) (*Transition, error) {
	t := &Transition{regimes: dict.Regimes}
	for _, chain := range dict.Chains {
		ct, err := buildChainTransition(dict, chain)
		if err != nil {
			return nil, err
		}
		t.Chains = append(t.Chains, ct)
	}
	n := len(dict.Regimes)
	t.cells = make([][]symbolic.Expr, n)
	for r := 0; r < n; r++ {
		t.cells[r] = make([]symbolic.Expr, n)
		for s := 0; s < n; s++ {
			cell := symbolic.Expr(symbolic.N(1))
			for ci, ct := range t.Chains {
				from := dict.Regimes[r].States[ci]
				to := dict.Regimes[s].States[ci]
				cell = symbolic.MulOf(cell, ct.cells[from-1][to-1])
			}
			t.cells[r][s] = cell
			t.Code = append(t.Code, fmt.Sprintf("Q(%d,%d) = %s", r+1, s+1, cell.String()))
		}
	}
	return t, nil
}

func buildChainTransition(dict *model.Dictionary, chain *model.MarkovChain) (*ChainTransition, error) {
	n := chain.NumStates
	ct := &ChainTransition{Name: chain.Name, States: n}
	ct.cells = make([][]symbolic.Expr, n)
	ct.Code = make([][]string, n)
	for i := 1; i <= n; i++ {
		row := make([]symbolic.Expr, n)
		diag := symbolic.Expr(symbolic.N(1))
		for j := 1; j <= n; j++ {
			if i == j {
				continue
			}
			name := fmt.Sprintf("%s_tp_%d_%d", chain.Name, i, j)
			sym, ok := dict.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("markov chain %q: transition probability %s is not registered", chain.Name, name)
			}
			p := symbolic.S(fmt.Sprintf("param_%d", sym.Index+1))
			row[j-1] = p
			diag = symbolic.Sub2(diag, p)
		}
		row[i-1] = diag
		ct.cells[i-1] = row
		codes := make([]string, n)
		for j, c := range row {
			codes[j] = c.String()
		}
		ct.Code[i-1] = codes
	}
	return ct, nil
}

// Eval evaluates the regime transition matrix under a parameter vector
// indexed like the param shadow names (param[i] backs param_<i+1>).
func (t *Transition) Eval(param []float64) (*mat.Dense, error) {
	env := symbolic.Env{}
	for i, v := range param {
		env[fmt.Sprintf("param_%d", i+1)] = v
	}
	n := len(t.regimes)
	out := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for s := 0; s < n; s++ {
			v, ok := t.cells[r][s].Eval(env)
			if !ok {
				return nil, fmt.Errorf("transition cell (%d,%d) does not evaluate under the given parameters", r+1, s+1)
			}
			out.Set(r, s, v)
		}
	}
	return out, nil
}
