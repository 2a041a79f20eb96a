package model

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/irisccy/rise/dsl"
	"github.com/irisccy/rise/symbolic"
)

// EquationType tags every compiled equation. Structural is 1 by
// convention; solvers key off the numeric value.
type EquationType int

const (
	Structural EquationType = iota + 1
	DefinitionEq
	TVP
	MCP
	SteadyState
	SteadyStateAux
	PlannerObjectiveEq
	OSRDerivative
	StaticMult
)

func (t EquationType) String() string {
	switch t {
	case Structural:
		return "structural"
	case DefinitionEq:
		return "definition"
	case TVP:
		return "tvp"
	case MCP:
		return "mcp"
	case SteadyState:
		return "steady-state"
	case SteadyStateAux:
		return "steady-state-auxiliary"
	case PlannerObjectiveEq:
		return "planner-objective"
	case OSRDerivative:
		return "osr-derivative"
	case StaticMult:
		return "static-mult"
	}
	return "unknown"
}

// Equation is one compiled equation: original text, canonical residual,
// per-variable shift record, and (after shadowing) the canonical shadow
// text consumed by the symbolic engine.
type Equation struct {
	Index  int          `json:"index"`
	Type   EquationType `json:"type"`
	Text   string       `json:"text"`
	Shadow string       `json:"shadow,omitempty"`
	File   string       `json:"file,omitempty"`
	Line   int          `json:"line,omitempty"`

	Residual symbolic.Expr `json:"-"`
	// Shifts records every occurring (variable, shift) pair.
	Shifts map[string][]int `json:"shifts,omitempty"`
	// DefName is the defined symbol for definition and tvp equations.
	DefName string `json:"def_name,omitempty"`

	defBody symbolic.Expr
}

// Body returns the right-hand side of a definition equation, nil for
// every other equation type.
func (e *Equation) Body() symbolic.Expr { return e.defBody }

// Variant selects a shadow vocabulary for one model variant.
type Variant int

const (
	VariantDynamic Variant = iota
	VariantStatic
	VariantBGP
)

// Options for the equation compiler.
type Options struct {
	DefinitionsInserted bool
	AddWelfare          bool
}

// PlannerInfo carries the planner objective when declared.
type PlannerInfo struct {
	Objective     symbolic.Expr `json:"-"`
	ObjectiveText string        `json:"objective"`
	DiscountParam string        `json:"discount,omitempty"`
}

// CompiledModel is the frozen result of the equation-compilation phase.
type CompiledModel struct {
	Dict *Dictionary `json:"dictionary"`

	Equations   []*Equation `json:"equations"`
	SteadyState []*Equation `json:"steady_state,omitempty"`

	IncidenceBefore *Incidence    `json:"-"`
	IncidenceAfter  *Incidence    `json:"-"`
	Order           *DynamicOrder `json:"dynamic_order"`

	Planner       *PlannerInfo     `json:"planner,omitempty"`
	ExogenousDefs []dsl.SourceLine `json:"exogenous_definitions,omitempty"`
}

// Structural returns the equations that enter the incidence matrices:
// structural and complementarity equations, in order.
func (cm *CompiledModel) Structural() []*Equation {
	var out []*Equation
	for _, eq := range cm.Equations {
		if eq.Type == Structural || eq.Type == MCP {
			out = append(out, eq)
		}
	}
	return out
}

// Definitions returns the definition equations in order.
func (cm *CompiledModel) Definitions() []*Equation {
	var out []*Equation
	for _, eq := range cm.Equations {
		if eq.Type == DefinitionEq {
			out = append(out, eq)
		}
	}
	return out
}

// TVPs returns the time-varying-probability equations in order.
func (cm *CompiledModel) TVPs() []*Equation {
	var out []*Equation
	for _, eq := range cm.Equations {
		if eq.Type == TVP {
			out = append(out, eq)
		}
	}
	return out
}

// Compile turns the model and steady-state blocks into canonical
// equations with incidence matrices and the dynamic shadow ordering.
func Compile(dict *Dictionary, blocks *dsl.Blocks, opts Options, logger *zap.Logger) (*CompiledModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &eqCompiler{dict: cloneDictionary(dict), opts: opts, log: logger}

	modelBlock := blocks.Get(dsl.BlockModel)
	if modelBlock == nil || len(modelBlock.Lines) == 0 {
		return nil, fmt.Errorf("model block is missing or empty")
	}
	if err := c.compileModelBlock(modelBlock); err != nil {
		return nil, err
	}
	if err := c.compilePlanner(blocks.Get(dsl.BlockPlannerObjectiv)); err != nil {
		return nil, err
	}
	if opts.DefinitionsInserted {
		c.insertDefinitions()
	}
	if err := c.buildIncidence(); err != nil {
		return nil, err
	}
	c.reorderEndogenous()
	if err := c.shadowModel(); err != nil {
		return nil, err
	}
	if ssBlock := blocks.Get(dsl.BlockSteadyState); ssBlock != nil {
		if err := c.compileSteadyState(ssBlock); err != nil {
			return nil, err
		}
	}
	c.appendSteadyStateAux()

	cm := &CompiledModel{
		Dict:            c.dict,
		Equations:       c.equations,
		SteadyState:     c.steadyState,
		IncidenceBefore: c.incBefore,
		IncidenceAfter:  c.incAfter,
		Order:           c.order,
		Planner:         c.planner,
	}
	if ed := blocks.Get(dsl.BlockExogenousDefs); ed != nil {
		cm.ExogenousDefs = ed.Lines
	}
	logger.Debug("equations compiled",
		zap.Int("equations", len(cm.Equations)),
		zap.Int("structural", len(cm.Structural())),
		zap.Int("steady_state", len(cm.SteadyState)))
	return cm, nil
}

type eqCompiler struct {
	dict *Dictionary
	opts Options
	log  *zap.Logger

	equations   []*Equation
	steadyState []*Equation
	auxPairs    [][2]string // aux name, base name (for steady-state aux)
	planner     *PlannerInfo

	incBefore *Incidence
	incAfter  *Incidence
	order     *DynamicOrder
}

func cloneDictionary(d *Dictionary) *Dictionary {
	out := &Dictionary{
		Chains:        d.Chains,
		Regimes:       d.Regimes,
		Calibration:   d.Calibration,
		LogRenames:    d.LogRenames,
		originalNames: d.originalNames,
		byName:        map[string]*Symbol{},
	}
	clone := func(in []*Symbol) []*Symbol {
		outs := make([]*Symbol, len(in))
		for i, s := range in {
			cp := *s
			outs[i] = &cp
			out.byName[cp.Name] = outs[i]
		}
		return outs
	}
	out.Endogenous = clone(d.Endogenous)
	out.Exogenous = clone(d.Exogenous)
	out.Parameters = clone(d.Parameters)
	out.Observables = clone(d.Observables)
	out.Definitions = clone(d.Definitions)
	return out
}

// statement is one semicolon-terminated piece of a block.
type statement struct {
	File string
	Line int
	Text string
	MCP  bool
}

func splitStatements(lines []dsl.SourceLine) []statement {
	var out []statement
	var cur strings.Builder
	curFile, curLine := "", 0
	flush := func() {
		text := strings.TrimSpace(cur.String())
		cur.Reset()
		if text == "" {
			return
		}
		st := statement{File: curFile, Line: curLine, Text: text}
		if strings.HasPrefix(st.Text, "[mcp]") {
			st.MCP = true
			st.Text = strings.TrimSpace(strings.TrimPrefix(st.Text, "[mcp]"))
		}
		out = append(out, st)
	}
	for _, ln := range lines {
		rest := ln.Text
		for {
			if cur.Len() == 0 {
				curFile, curLine = ln.File, ln.Line
			}
			i := strings.IndexByte(rest, ';')
			if i < 0 {
				if rest != "" {
					cur.WriteString(rest)
					cur.WriteByte(' ')
				}
				break
			}
			cur.WriteString(rest[:i])
			flush()
			rest = rest[i+1:]
		}
	}
	flush()
	return out
}

func (c *eqCompiler) compileModelBlock(bl *dsl.Block) error {
	for _, st := range splitStatements(bl.Lines) {
		if err := c.compileStatement(st); err != nil {
			return err
		}
	}
	if len(c.equations) == 0 {
		return fmt.Errorf("model block is missing or empty")
	}
	return nil
}

func (c *eqCompiler) compileStatement(st statement) error {
	eq := &Equation{
		Text: st.Text,
		File: st.File,
		Line: st.Line,
	}
	lhsName := ""
	if lhs, _, ok := symbolic.SplitEquation(st.Text); ok {
		if name := strings.TrimSpace(lhs); identRe.MatchString(name) {
			lhsName = name
		}
	}

	residual, err := symbolic.ParseEquation(st.Text)
	if err != nil {
		return dsl.Errorf(st.File, st.Line, "equation %d: %v", len(c.equations)+1, err)
	}
	residual = c.rewriteLogVars(residual)
	residual, err = c.expandAuxiliaries(residual, st)
	if err != nil {
		return err
	}
	if err := c.resolveRefs(residual, st); err != nil {
		return err
	}
	eq.Index = len(c.equations) + 1
	eq.Residual = residual
	eq.Shifts = shiftRecord(residual)

	// Classify. The declared left-hand side decides definition and tvp
	// equations; a [mcp] marker decides complementarity equations.
	switch {
	case c.isDefinitionName(lhsName):
		eq.Type = DefinitionEq
		eq.DefName = lhsName
		if err := c.checkDefinitionBody(eq, st); err != nil {
			return err
		}
		_, rhs, _ := symbolic.SplitEquation(st.Text)
		body, err := symbolic.Parse(rhs)
		if err != nil {
			return dsl.Errorf(st.File, st.Line, "equation %d: %v", eq.Index, err)
		}
		eq.defBody = c.rewriteLogVars(body)
	case c.isTransitionProbName(lhsName):
		eq.Type = TVP
		eq.DefName = lhsName
		for _, shifts := range eq.Shifts {
			for _, s := range shifts {
				if s != 0 {
					return semanticf(eq.Index, "time-varying probability equation cannot contain leads or lags")
				}
			}
		}
	case st.MCP:
		eq.Type = MCP
	default:
		eq.Type = Structural
	}
	c.markInUse(residual)
	c.equations = append(c.equations, eq)
	return nil
}

func (c *eqCompiler) isDefinitionName(name string) bool {
	if name == "" {
		return false
	}
	s, ok := c.dict.Lookup(name)
	return ok && s.Kind == Definition
}

func (c *eqCompiler) isTransitionProbName(name string) bool {
	if name == "" {
		return false
	}
	_, _, _, ok := c.dict.TransitionProb(name)
	return ok
}

func (c *eqCompiler) checkDefinitionBody(eq *Equation, st statement) error {
	for _, ref := range symbolic.Refs(eq.Residual) {
		name := ref.VarName()
		if name == eq.DefName {
			continue
		}
		sym, ok := c.dict.Lookup(name)
		if !ok {
			continue // caught by resolveRefs
		}
		if sym.Kind == Endogenous || sym.Kind == Exogenous {
			return semanticf(eq.Index, "definition equation for %q references model variable %q", eq.DefName, name)
		}
	}
	return nil
}

// rewriteLogVars replaces every occurrence of an original log_vars name X
// with exp(log_X), preserving the time shift.
func (c *eqCompiler) rewriteLogVars(e symbolic.Expr) symbolic.Expr {
	if len(c.dict.LogRenames) == 0 {
		return e
	}
	return symbolic.Rewrite(e, func(x symbolic.Expr) symbolic.Expr {
		switch v := x.(type) {
		case *symbolic.Sym:
			if renamed, ok := c.dict.LogRenames[v.Name()]; ok {
				return symbolic.ExpOf(symbolic.S(renamed))
			}
		case *symbolic.TimeRef:
			if renamed, ok := c.dict.LogRenames[v.VarName()]; ok {
				return symbolic.ExpOf(symbolic.Ref(renamed, v.Shift()))
			}
		}
		return x
	})
}

// expandAuxiliaries rewrites |shift| >= 2 endogenous references into
// chains of auxiliary variables so the compiled model only carries
// shifts in {-1, 0, +1}.
func (c *eqCompiler) expandAuxiliaries(e symbolic.Expr, st statement) (symbolic.Expr, error) {
	var rewriteErr error
	out := symbolic.Rewrite(e, func(x symbolic.Expr) symbolic.Expr {
		ref, ok := x.(*symbolic.TimeRef)
		if !ok || rewriteErr != nil {
			return x
		}
		shift := ref.Shift()
		if shift >= -1 && shift <= 1 {
			return x
		}
		sym, found := c.dict.Lookup(ref.VarName())
		if !found || sym.Kind != Endogenous {
			return x // caught by resolveRefs
		}
		aux, err := c.ensureAuxChain(ref.VarName(), shift, st)
		if err != nil {
			rewriteErr = err
			return x
		}
		if shift > 0 {
			return symbolic.Ref(aux, 1)
		}
		return symbolic.Ref(aux, -1)
	})
	return out, rewriteErr
}

// ensureAuxChain creates AUX_LEAD_k_name / AUX_LAG_k_name variables and
// their chain equations up to |shift|-1, returning the deepest aux name.
func (c *eqCompiler) ensureAuxChain(name string, shift int, st statement) (string, error) {
	dir := "LEAD"
	unit := 1
	if shift < 0 {
		dir = "LAG"
		unit = -1
		shift = -shift
	}
	prev := name
	for k := 1; k < shift; k++ {
		aux := fmt.Sprintf("AUX_%s_%d_%s", dir, k, name)
		if _, exists := c.dict.Lookup(aux); !exists {
			s := &Symbol{
				Name: aux, Kind: Endogenous, Index: len(c.dict.Endogenous),
				IsAuxiliary: true, ChainID: -1,
			}
			c.dict.Endogenous = append(c.dict.Endogenous, s)
			c.dict.byName[aux] = s
			c.auxPairs = append(c.auxPairs, [2]string{aux, name})
			c.equations = append(c.equations, &Equation{
				Index:    len(c.equations) + 1,
				Type:     Structural,
				Text:     fmt.Sprintf("%s = %s(%+d);", aux, prev, unit),
				File:     st.File,
				Line:     st.Line,
				Residual: symbolic.Sub2(symbolic.S(aux), symbolic.Ref(prev, unit)).Simplify(),
				Shifts:   map[string][]int{aux: {0}, prev: {unit}},
			})
		}
		prev = aux
	}
	return prev, nil
}

// resolveRefs rejects unresolved names and misplaced time shifts.
func (c *eqCompiler) resolveRefs(e symbolic.Expr, st statement) error {
	for _, ref := range symbolic.Refs(e) {
		name := ref.VarName()
		if name == "s0" || name == "s1" {
			continue
		}
		sym, ok := c.dict.Lookup(name)
		if !ok {
			return dsl.Errorf(st.File, st.Line, "unresolved symbol %q in equation %q", name, st.Text)
		}
		if ref.Shift() != 0 {
			switch sym.Kind {
			case Exogenous:
				return dsl.Errorf(st.File, st.Line, "shock %q must appear at the current date", name)
			case Parameter, Definition, Observable:
				return dsl.Errorf(st.File, st.Line, "%s %q cannot have a lead or lag", sym.Kind, name)
			}
		}
	}
	return nil
}

func (c *eqCompiler) markInUse(e symbolic.Expr) {
	for _, ref := range symbolic.Refs(e) {
		if sym, ok := c.dict.Lookup(ref.VarName()); ok {
			sym.IsInUse = true
		}
	}
}

func shiftRecord(e symbolic.Expr) map[string][]int {
	out := map[string][]int{}
	for _, ref := range symbolic.Refs(e) {
		name := ref.VarName()
		seen := false
		for _, s := range out[name] {
			if s == ref.Shift() {
				seen = true
				break
			}
		}
		if !seen {
			out[name] = append(out[name], ref.Shift())
		}
	}
	for _, shifts := range out {
		sort.Ints(shifts)
	}
	return out
}

// compilePlanner parses the planner_objective block and, with
// AddWelfare, injects the recursive welfare equation.
func (c *eqCompiler) compilePlanner(bl *dsl.Block) error {
	if bl == nil {
		return nil
	}
	info := &PlannerInfo{}
	for _, st := range splitStatements(bl.Lines) {
		if strings.HasPrefix(st.Text, "discount") {
			_, rhs, ok := symbolic.SplitEquation(st.Text)
			if !ok {
				return dsl.Errorf(st.File, st.Line, "malformed discount declaration %q", st.Text)
			}
			name := strings.TrimSpace(rhs)
			sym, found := c.dict.Lookup(name)
			if !found || sym.Kind != Parameter {
				return dsl.Errorf(st.File, st.Line, "discount %q is not a declared parameter", name)
			}
			info.DiscountParam = name
			continue
		}
		obj, err := symbolic.Parse(st.Text)
		if err != nil {
			return dsl.Errorf(st.File, st.Line, "planner objective: %v", err)
		}
		obj = c.rewriteLogVars(obj)
		if err := c.resolveRefs(obj, st); err != nil {
			return err
		}
		info.Objective = obj
		info.ObjectiveText = st.Text
	}
	if info.Objective == nil {
		return fmt.Errorf("planner_objective block has no objective expression")
	}
	c.planner = info

	if c.opts.AddWelfare {
		if info.DiscountParam == "" {
			return fmt.Errorf("add_welfare requires a discount parameter in planner_objective")
		}
		const welf = "WELF"
		if _, exists := c.dict.Lookup(welf); exists {
			return fmt.Errorf("add_welfare: symbol %q already declared", welf)
		}
		s := &Symbol{Name: welf, Kind: Endogenous, Index: len(c.dict.Endogenous), IsAuxiliary: true, ChainID: -1}
		c.dict.Endogenous = append(c.dict.Endogenous, s)
		c.dict.byName[welf] = s
		residual := symbolic.Sub2(
			symbolic.S(welf),
			symbolic.AddOf(info.Objective, symbolic.MulOf(symbolic.S(info.DiscountParam), symbolic.Ref(welf, 1))),
		).Simplify()
		c.equations = append(c.equations, &Equation{
			Index:    len(c.equations) + 1,
			Type:     Structural,
			Text:     fmt.Sprintf("%s = %s + %s*%s(+1);", welf, info.ObjectiveText, info.DiscountParam, welf),
			Residual: residual,
			Shifts:   shiftRecord(residual),
		})
	}
	return nil
}

// insertDefinitions substitutes definition bodies into every structural,
// mcp and tvp equation (and into later definition bodies).
func (c *eqCompiler) insertDefinitions() {
	bodies := map[string]symbolic.Expr{}
	substitute := func(e symbolic.Expr) symbolic.Expr {
		return symbolic.Rewrite(e, func(x symbolic.Expr) symbolic.Expr {
			if s, ok := x.(*symbolic.Sym); ok {
				if body, found := bodies[s.Name()]; found {
					return body
				}
			}
			return x
		})
	}
	for _, eq := range c.equations {
		if eq.Type == DefinitionEq {
			bodies[eq.DefName] = substitute(eq.defBody)
		}
	}
	for _, eq := range c.equations {
		switch eq.Type {
		case Structural, MCP, TVP:
			eq.Residual = substitute(eq.Residual)
			eq.Shifts = shiftRecord(eq.Residual)
		}
	}
	if c.planner != nil {
		c.planner.Objective = substitute(c.planner.Objective)
	}
}

func (c *eqCompiler) buildIncidence() error {
	structural := []*Equation{}
	for _, eq := range c.equations {
		if eq.Type == Structural || eq.Type == MCP {
			structural = append(structural, eq)
		}
	}
	inc := NewIncidence(len(structural), c.dict.EndogenousNames())
	for row, eq := range structural {
		for name, shifts := range eq.Shifts {
			sym, ok := c.dict.Lookup(name)
			if !ok || sym.Kind != Endogenous {
				continue
			}
			for _, s := range shifts {
				inc.Mark(row, sym.Index, s)
			}
		}
	}
	if err := inc.CheckCurrent(); err != nil {
		return err
	}
	c.incBefore = inc
	return nil
}

// reorderEndogenous fixes the canonical alphabetical variable order and
// recomputes the incidence under the permutation.
func (c *eqCompiler) reorderEndogenous() {
	names := c.dict.EndogenousNames()
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	perm := make([]int, len(sorted)) // perm[newIdx] = oldIdx
	oldIndex := map[string]int{}
	for i, n := range names {
		oldIndex[n] = i
	}
	newEndo := make([]*Symbol, len(sorted))
	for newIdx, name := range sorted {
		perm[newIdx] = oldIndex[name]
		sym := c.dict.Endogenous[oldIndex[name]]
		sym.Index = newIdx
		newEndo[newIdx] = sym
	}
	c.dict.Endogenous = newEndo
	c.incAfter = c.incBefore.Permute(sorted, perm)
	c.order = buildDynamicOrder(c.dict, c.incAfter)
}

// shadowModel renders the canonical shadow text of every model equation
// using the dynamic vocabulary.
func (c *eqCompiler) shadowModel() error {
	for _, eq := range c.equations {
		shadow, err := c.shadowExpr(eq.Residual, VariantDynamic)
		if err != nil {
			return fmt.Errorf("equation %d: %w", eq.Index, err)
		}
		eq.Shadow = shadow.String()
	}
	return nil
}

// ShadowExpr rewrites a compiled residual into the given variant's
// shadow vocabulary.
func (cm *CompiledModel) ShadowExpr(e symbolic.Expr, v Variant) (symbolic.Expr, error) {
	c := &eqCompiler{dict: cm.Dict, order: cm.Order}
	return c.shadowExpr(e, v)
}

func (c *eqCompiler) shadowExpr(e symbolic.Expr, v Variant) (symbolic.Expr, error) {
	var mapErr error
	out := symbolic.Rewrite(e, func(x symbolic.Expr) symbolic.Expr {
		var name string
		var shift int
		switch t := x.(type) {
		case *symbolic.Sym:
			name, shift = t.Name(), 0
		case *symbolic.TimeRef:
			name, shift = t.VarName(), t.Shift()
		default:
			return x
		}
		if name == "s0" || name == "s1" {
			return x
		}
		sym, ok := c.dict.Lookup(name)
		if !ok {
			mapErr = fmt.Errorf("unresolved symbol %q", name)
			return x
		}
		ref, err := c.shadowRef(sym, shift, v)
		if err != nil {
			mapErr = err
			return x
		}
		return symbolic.S(ref.Render())
	})
	return out, mapErr
}

func (c *eqCompiler) shadowRef(sym *Symbol, shift int, v Variant) (ShadowRef, error) {
	switch sym.Kind {
	case Parameter:
		return ShadowRef{Kind: RefParameter, Index: sym.Index}, nil
	case Definition:
		return ShadowRef{Kind: RefDefinition, Index: sym.Index}, nil
	case Exogenous:
		return ShadowRef{Kind: RefExogenous, Index: sym.Index}, nil
	case Endogenous:
		switch v {
		case VariantDynamic:
			ref, ok := c.order.Resolve(occurrenceKey(sym.Name, shift))
			if !ok {
				return ShadowRef{}, fmt.Errorf("occurrence %s not in dynamic ordering", occurrenceKey(sym.Name, shift))
			}
			return ref, nil
		case VariantStatic:
			return ShadowRef{Kind: RefEndogenous, Index: sym.Index, Position: sym.Index + 1}, nil
		case VariantBGP:
			if shift >= 0 {
				return ShadowRef{Kind: RefEndogenous, Index: sym.Index, Position: sym.Index + 1}, nil
			}
			dyn, ok := c.order.Resolve(occurrenceKey(sym.Name, -1))
			if !ok {
				return ShadowRef{}, fmt.Errorf("lag occurrence of %q not in dynamic ordering", sym.Name)
			}
			lagPos := dyn.Position - c.order.NumLeads - c.order.NumVars
			return ShadowRef{Kind: RefEndogenous, Index: sym.Index, Shift: -1,
				Position: c.order.NumVars + lagPos}, nil
		}
	}
	return ShadowRef{}, fmt.Errorf("cannot shadow symbol %q", sym.Name)
}

// compileSteadyState parses the steady_state_model block: a sequence of
// assignments var = expr over endogenous variables and parameters.
func (c *eqCompiler) compileSteadyState(bl *dsl.Block) error {
	for _, st := range splitStatements(bl.Lines) {
		lhs, rhs, ok := symbolic.SplitEquation(st.Text)
		if !ok {
			return dsl.Errorf(st.File, st.Line, "steady state statement %q is not an assignment", st.Text)
		}
		name := strings.TrimSpace(lhs)
		if renamed, was := c.dict.LogRenames[name]; was {
			name = renamed
		}
		sym, found := c.dict.Lookup(name)
		if !found || sym.Kind != Endogenous {
			return dsl.Errorf(st.File, st.Line, "steady state assigns unknown endogenous variable %q", strings.TrimSpace(lhs))
		}
		body, err := symbolic.Parse(rhs)
		if err != nil {
			return dsl.Errorf(st.File, st.Line, "steady state for %q: %v", name, err)
		}
		body = c.rewriteLogVars(body)
		if sym.IsLogVar {
			body = symbolic.LogOf(body)
		}
		for _, ref := range symbolic.Refs(body) {
			if ref.Shift() != 0 {
				return dsl.Errorf(st.File, st.Line, "steady state expression cannot contain leads or lags")
			}
			rsym, known := c.dict.Lookup(ref.VarName())
			if !known {
				return dsl.Errorf(st.File, st.Line, "unresolved symbol %q in steady state for %q", ref.VarName(), name)
			}
			if rsym.Kind == Exogenous {
				return dsl.Errorf(st.File, st.Line, "steady state expression references shock %q", ref.VarName())
			}
		}
		shadowBody, err := c.shadowExpr(body, VariantStatic)
		if err != nil {
			return dsl.Errorf(st.File, st.Line, "steady state for %q: %v", name, err)
		}
		c.steadyState = append(c.steadyState, &Equation{
			Index:    len(c.steadyState) + 1,
			Type:     SteadyState,
			Text:     st.Text,
			Shadow:   fmt.Sprintf("y_%d = %s", sym.Index+1, shadowBody.String()),
			File:     st.File,
			Line:     st.Line,
			Residual: body,
			DefName:  name,
		})
	}
	return nil
}

// appendSteadyStateAux adds the trivial steady-state equations of the
// synthesized auxiliary variables: each auxiliary equals its base.
func (c *eqCompiler) appendSteadyStateAux() {
	for _, pair := range c.auxPairs {
		aux, _ := c.dict.Lookup(pair[0])
		base, _ := c.dict.Lookup(pair[1])
		c.steadyState = append(c.steadyState, &Equation{
			Index:    len(c.steadyState) + 1,
			Type:     SteadyStateAux,
			Text:     fmt.Sprintf("%s = %s;", pair[0], pair[1]),
			Shadow:   fmt.Sprintf("y_%d = y_%d", aux.Index+1, base.Index+1),
			Residual: symbolic.Sub2(symbolic.S(pair[0]), symbolic.S(pair[1])).Simplify(),
			DefName:  pair[0],
		})
	}
}
