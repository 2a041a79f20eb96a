package deriv

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/irisccy/rise/model"
	"github.com/irisccy/rise/restrict"
	"github.com/irisccy/rise/symbolic"
)

// Routine is one derivative bundle: a printable symbolic function over
// the solver vocabulary plus its partial-derivative tensors, keyed by
// the wrt list that produced them.
type Routine struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
	// Code holds the printed function bodies, one line per equation.
	Code []string `json:"code"`
	// Wrt is the ordered differentiation list; empty for routines that
	// carry no derivatives.
	Wrt         []string           `json:"wrt,omitempty"`
	Derivatives []*symbolic.Tensor `json:"derivatives,omitempty"`

	Exprs []symbolic.Expr `json:"-"`
}

// Bundle is the frozen compiler output: symbol tables, incidence,
// partition, and every routine the numerical solvers consume.
type Bundle struct {
	Dict            *model.Dictionary      `json:"dictionary"`
	Equations       []*model.Equation      `json:"equations"`
	IncidenceBefore *model.Incidence       `json:"-"`
	IncidenceAfter  *model.Incidence       `json:"-"`
	Order           *model.DynamicOrder    `json:"dynamic_order"`
	Partition       Partition              `json:"partition"`
	Routines        map[string]*Routine    `json:"routines"`
	Transition      *Transition            `json:"transition,omitempty"`
	Restrictions    *restrict.Restrictions `json:"restrictions,omitempty"`
	Planner         []*model.Equation      `json:"planner_equations,omitempty"`
}

// Config carries the orchestrator options.
type Config struct {
	MaxDerivOrder                     int
	ParameterDifferentiation          bool
	DefinitionsInserted               bool
	DefinitionsInParamDifferentiation bool
	StationaryModel                   bool
	Workers                           int
}

var dynamicArgs = []string{"y", "x", "param", "ss", "def", "s0", "s1"}

// BuildRoutines runs the differentiation plan: dynamic (order N),
// static (order 1), balanced-growth-path (order 1, suppressed for
// stationary models) and optional parameter derivatives (order 1).
func BuildRoutines(cm *model.CompiledModel, cfg Config, logger *zap.Logger) (*Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDerivOrder < 1 {
		cfg.MaxDerivOrder = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	b := &Bundle{
		Dict:            cm.Dict,
		Equations:       cm.Equations,
		IncidenceBefore: cm.IncidenceBefore,
		IncidenceAfter:  cm.IncidenceAfter,
		Order:           cm.Order,
		Partition:       BuildPartition(cm.Dict, cm.IncidenceAfter, cm.Order),
		Routines:        map[string]*Routine{},
	}

	structural := cm.Structural()
	dynExprs, err := shadowAll(cm, structural, model.VariantDynamic)
	if err != nil {
		return nil, err
	}
	statExprs, err := shadowAll(cm, structural, model.VariantStatic)
	if err != nil {
		return nil, err
	}

	plans := []struct {
		name  string
		exprs []symbolic.Expr
		wrt   []string
		order int
		skip  bool
	}{
		{"dynamic", dynExprs, dynamicWrt(cm), cfg.MaxDerivOrder, false},
		{"static", statExprs, currentWrt(cm), 1, false},
		{"bgp", nil, bgpWrt(cm), 1, cfg.StationaryModel},
		{"params", nil, parameterWrt(cm), 1, !cfg.ParameterDifferentiation},
	}
	for i := range plans {
		plan := &plans[i]
		if plan.skip {
			continue
		}
		switch plan.name {
		case "bgp":
			plan.exprs, err = shadowAll(cm, structural, model.VariantBGP)
		case "params":
			plan.exprs = dynExprs
			if cfg.DefinitionsInParamDifferentiation && !cfg.DefinitionsInserted {
				plan.exprs, err = substituteDefs(cm, dynExprs)
			}
		}
		if err != nil {
			return nil, err
		}
		routine, derr := differentiate(plan.name, plan.exprs, plan.wrt, plan.order, cfg.Workers)
		if derr != nil {
			return nil, fmt.Errorf("%s model: %w", plan.name, derr)
		}
		b.Routines[plan.name] = routine
	}

	if b.Routines["definitions"], err = definitionsRoutine(cm); err != nil {
		return nil, err
	}
	b.Routines["steady_state_model"] = steadyStateRoutine(cm, model.SteadyState)
	b.Routines["steady_state_auxiliary"] = steadyStateRoutine(cm, model.SteadyStateAux)
	if len(cm.TVPs()) > 0 {
		b.Routines["transition_probabilities"] = tvpRoutine(cm)
	}
	if len(cm.ExogenousDefs) > 0 {
		b.Routines["exogenous_definitions"] = exogenousDefsRoutine(cm)
	}
	if cm.Planner != nil {
		if err := b.addPlanner(cm); err != nil {
			return nil, err
		}
	}
	if len(cm.Dict.Chains) > 0 {
		b.Transition, err = BuildTransition(cm.Dict)
		if err != nil {
			return nil, err
		}
	}
	logger.Debug("routines built",
		zap.Int("routines", len(b.Routines)),
		zap.Int("equations", len(structural)),
		zap.Int("order", cfg.MaxDerivOrder))
	return b, nil
}

// differentiate reduces each equation to its occurring symbols and
// differentiates every equation independently on a bounded worker pool;
// no intermediate graph is shared across equations, and each equation's
// graph is released as soon as its printed entries are merged.
func differentiate(name string, exprs []symbolic.Expr, wrt []string, order, workers int) (*Routine, error) {
	if order < 1 {
		return nil, fmt.Errorf("derivative order must be >= 1, got %d", order)
	}
	perEq := make([][]*symbolic.Tensor, len(exprs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range exprs {
		i := i
		g.Go(func() error {
			perEq[i] = symbolic.DifferentiateOne(exprs[i], i, wrt, order)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r := &Routine{
		Name:        name,
		Args:        dynamicArgs,
		Wrt:         wrt,
		Exprs:       exprs,
		Derivatives: symbolic.MergeTensors(perEq, len(exprs), wrt, order),
	}
	for _, e := range exprs {
		r.Code = append(r.Code, e.String())
	}
	return r, nil
}

func shadowAll(cm *model.CompiledModel, eqs []*model.Equation, v model.Variant) ([]symbolic.Expr, error) {
	out := make([]symbolic.Expr, len(eqs))
	for i, eq := range eqs {
		s, err := cm.ShadowExpr(eq.Residual, v)
		if err != nil {
			return nil, fmt.Errorf("equation %d: %w", eq.Index, err)
		}
		out[i] = s
	}
	return out, nil
}

// substituteDefs replaces def_<i> symbols with their (static-shadowed)
// bodies, for parameter differentiation through definitions.
func substituteDefs(cm *model.CompiledModel, exprs []symbolic.Expr) ([]symbolic.Expr, error) {
	bodies := map[string]symbolic.Expr{}
	replace := func(e symbolic.Expr) symbolic.Expr {
		return symbolic.Rewrite(e, func(x symbolic.Expr) symbolic.Expr {
			if s, ok := x.(*symbolic.Sym); ok {
				if body, found := bodies[s.Name()]; found {
					return body
				}
			}
			return x
		})
	}
	// Definitions may reference earlier definitions; resolve the chain so
	// parameter derivatives flow through nested bodies.
	for _, eq := range cm.Definitions() {
		sym, _ := cm.Dict.Lookup(eq.DefName)
		body, err := cm.ShadowExpr(eq.Body(), model.VariantStatic)
		if err != nil {
			return nil, err
		}
		bodies[fmt.Sprintf("def_%d", sym.Index+1)] = replace(body)
	}
	out := make([]symbolic.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = replace(e)
	}
	return out, nil
}

// dynamicWrt renders the dynamic differentiation list: the y vector in
// canonical order, then the shocks.
func dynamicWrt(cm *model.CompiledModel) []string {
	out := make([]string, 0, len(cm.Order.Entries))
	for _, e := range cm.Order.Entries {
		out = append(out, e.Render())
	}
	return out
}

func currentWrt(cm *model.CompiledModel) []string {
	n := len(cm.Dict.Endogenous)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("y_%d", i+1)
	}
	return out
}

func bgpWrt(cm *model.CompiledModel) []string {
	out := currentWrt(cm)
	for i := 0; i < cm.Order.NumLags; i++ {
		out = append(out, fmt.Sprintf("y_%d", len(cm.Dict.Endogenous)+i+1))
	}
	return out
}

func parameterWrt(cm *model.CompiledModel) []string {
	out := make([]string, len(cm.Dict.Parameters))
	for i := range cm.Dict.Parameters {
		out[i] = fmt.Sprintf("param_%d", i+1)
	}
	return out
}

func definitionsRoutine(cm *model.CompiledModel) (*Routine, error) {
	r := &Routine{Name: "definitions", Args: []string{"param", "def"}}
	for _, eq := range cm.Definitions() {
		sym, _ := cm.Dict.Lookup(eq.DefName)
		body, err := cm.ShadowExpr(eq.Body(), model.VariantStatic)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", eq.DefName, err)
		}
		r.Exprs = append(r.Exprs, body)
		r.Code = append(r.Code, fmt.Sprintf("def_%d = %s", sym.Index+1, body.String()))
	}
	return r, nil
}

func steadyStateRoutine(cm *model.CompiledModel, typ model.EquationType) *Routine {
	name := "steady_state_model"
	if typ == model.SteadyStateAux {
		name = "steady_state_auxiliary"
	}
	r := &Routine{Name: name, Args: []string{"y", "param"}}
	for _, eq := range cm.SteadyState {
		if eq.Type != typ {
			continue
		}
		r.Code = append(r.Code, eq.Shadow)
		r.Exprs = append(r.Exprs, eq.Residual)
	}
	return r
}

// exogenousDefsRoutine carries the exogenous_definitions block verbatim;
// the estimation side interprets these lines, the compiler only ships them.
func exogenousDefsRoutine(cm *model.CompiledModel) *Routine {
	r := &Routine{Name: "exogenous_definitions"}
	for _, line := range cm.ExogenousDefs {
		r.Code = append(r.Code, line.Text)
	}
	return r
}

func tvpRoutine(cm *model.CompiledModel) *Routine {
	r := &Routine{Name: "transition_probabilities", Args: dynamicArgs}
	for _, eq := range cm.TVPs() {
		r.Code = append(r.Code, eq.Shadow)
		r.Exprs = append(r.Exprs, eq.Residual)
	}
	return r
}

// addPlanner shadows the planner objective and exports it with its
// first- and second-order derivatives with respect to the current
// endogenous variables, plus the printed osr-derivative equations.
func (b *Bundle) addPlanner(cm *model.CompiledModel) error {
	obj, err := cm.ShadowExpr(cm.Planner.Objective, model.VariantDynamic)
	if err != nil {
		return fmt.Errorf("planner objective: %w", err)
	}
	wrt := currentShadowNames(cm)
	tensors, err := symbolic.Differentiate([]symbolic.Expr{obj}, wrt, 2)
	if err != nil {
		return fmt.Errorf("planner objective: %w", err)
	}
	b.Routines["planner_objective"] = &Routine{
		Name:        "planner_objective",
		Args:        dynamicArgs,
		Code:        []string{obj.String()},
		Wrt:         wrt,
		Derivatives: tensors,
		Exprs:       []symbolic.Expr{obj},
	}
	for _, entry := range tensors[0].Entries {
		b.Planner = append(b.Planner, &model.Equation{
			Index:  len(b.Planner) + 1,
			Type:   model.OSRDerivative,
			Shadow: entry.Expr.String(),
		})
	}
	return nil
}

// currentShadowNames lists the dynamic-order shadow names of the
// current-dated endogenous block.
func currentShadowNames(cm *model.CompiledModel) []string {
	out := make([]string, 0, cm.Order.NumVars)
	for _, e := range cm.Order.Entries {
		if e.Kind == model.RefEndogenous && e.Shift == 0 {
			out = append(out, e.Render())
		}
	}
	return out
}
