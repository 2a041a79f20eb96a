// Package symbolic implements the expression graph the model compiler
// differentiates. Expressions are immutable trees over a fixed symbol
// vocabulary; simplification orders operands canonically so the same input
// always prints the same text, which downstream solvers rely on.
package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

// Env binds symbol names to numeric values for evaluation.
type Env map[string]float64

// ============================================================
// Core interface
// ============================================================

type Expr interface {
	Simplify() Expr
	String() string
	Sub(name string, value Expr) Expr
	Diff(name string) Expr
	Eval(env Env) (float64, bool)
	Equal(other Expr) bool
}

// ============================================================
// Num — exact rational constant
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		panic("symbolic: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NumFromString parses a decimal or rational literal exactly.
func NumFromString(s string) (*Num, bool) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	return &Num{val: r}, true
}

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Sub(string, Expr) Expr { return n }
func (n *Num) Diff(string) Expr      { return N(0) }
func (n *Num) Eval(Env) (float64, bool) {
	f, _ := n.val.Float64()
	return f, true
}
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) IsZero() bool          { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool           { return n.val.Cmp(ratOne) == 0 }
func (n *Num) IsNegOne() bool        { return n.val.Cmp(ratNegOne) == 0 }
func (n *Num) IsInteger() bool       { return n.val.IsInt() }
func (n *Num) IsNegative() bool      { return n.val.Sign() < 0 }
func (n *Num) Float64() float64      { f, _ := n.val.Float64(); return f }

var (
	ratOne    = new(big.Rat).SetInt64(1)
	ratNegOne = new(big.Rat).SetInt64(-1)
)

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numRecip(a *Num) *Num {
	if a.IsZero() {
		panic("symbolic: division by zero")
	}
	return &Num{val: new(big.Rat).Inv(a.val)}
}

// ============================================================
// Sym — named symbol
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym      { return &Sym{name: name} }
func (s *Sym) Simplify() Expr { return s }
func (s *Sym) String() string { return s.name }
func (s *Sym) Name() string   { return s.name }
func (s *Sym) Eval(env Env) (float64, bool) {
	v, ok := env[s.name]
	return v, ok
}
func (s *Sym) Equal(other Expr) bool { o, ok := other.(*Sym); return ok && s.name == o.name }
func (s *Sym) Sub(name string, value Expr) Expr {
	if s.name == name {
		return value
	}
	return s
}
func (s *Sym) Diff(name string) Expr {
	if s.name == name {
		return N(1)
	}
	return N(0)
}

// ============================================================
// TimeRef — variable reference with a lead/lag shift
// ============================================================

// TimeRef is a pre-shadow variable occurrence such as C(+1) or K(-1).
// It behaves like a symbol keyed by its rendered form; the equation
// compiler rewrites every TimeRef into a canonical Sym before the
// differentiation stage runs.
type TimeRef struct {
	name  string
	shift int
}

func Ref(name string, shift int) *TimeRef { return &TimeRef{name: name, shift: shift} }

func (r *TimeRef) VarName() string { return r.name }
func (r *TimeRef) Shift() int      { return r.shift }

// Key renders the canonical occurrence key, e.g. "C(+1)", "K(-1)", "Y".
func (r *TimeRef) Key() string {
	if r.shift == 0 {
		return r.name
	}
	return fmt.Sprintf("%s(%+d)", r.name, r.shift)
}

func (r *TimeRef) Simplify() Expr { return r }
func (r *TimeRef) String() string { return r.Key() }
func (r *TimeRef) Eval(env Env) (float64, bool) {
	v, ok := env[r.Key()]
	return v, ok
}
func (r *TimeRef) Equal(other Expr) bool {
	o, ok := other.(*TimeRef)
	return ok && o.name == r.name && o.shift == r.shift
}
func (r *TimeRef) Sub(name string, value Expr) Expr {
	if r.Key() == name {
		return value
	}
	return r
}
func (r *TimeRef) Diff(name string) Expr {
	if r.Key() == name {
		return N(1)
	}
	return N(0)
}

// ============================================================
// Add — sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

// Sub2 builds a - b in the canonical a + (-1)*b form.
func Sub2(a, b Expr) Expr { return AddOf(a, MulOf(N(-1), b)) }

func (a *Add) Terms() []Expr { return a.terms }

func (a *Add) Simplify() Expr {
	flat := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		s := t.Simplify()
		if inner, ok := s.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, s)
		}
	}
	numAccum := N(0)
	symCoeffs := map[string]*Num{}
	symOrder := []string{}
	others := []Expr{}
	for _, t := range flat {
		switch v := t.(type) {
		case *Num:
			numAccum = numAdd(numAccum, v)
		case *Sym:
			if _, seen := symCoeffs[v.name]; !seen {
				symOrder = append(symOrder, v.name)
				symCoeffs[v.name] = N(0)
			}
			symCoeffs[v.name] = numAdd(symCoeffs[v.name], N(1))
		default:
			others = append(others, t)
		}
	}
	result := []Expr{}
	sort.Strings(symOrder)
	for _, name := range symOrder {
		coeff := symCoeffs[name]
		if coeff.IsZero() {
			continue
		}
		if coeff.IsOne() {
			result = append(result, S(name))
		} else {
			result = append(result, MulOf(coeff, S(name)))
		}
	}
	result = append(result, sortExprs(others)...)
	if !numAccum.IsZero() {
		result = append(result, numAccum)
	}
	if len(result) == 0 {
		return N(0)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Add{terms: result}
}

func (a *Add) String() string {
	if len(a.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

func (a *Add) Sub(name string, value Expr) Expr {
	newTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		newTerms[i] = t.Sub(name, value)
	}
	return AddOf(newTerms...)
}

func (a *Add) Diff(name string) Expr {
	dTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		dTerms[i] = t.Diff(name)
	}
	return AddOf(dTerms...)
}

func (a *Add) Eval(env Env) (float64, bool) {
	acc := 0.0
	for _, t := range a.terms {
		v, ok := t.Eval(env)
		if !ok {
			return 0, false
		}
		acc += v
	}
	return acc, true
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	if !ok || len(a.terms) != len(o.terms) {
		return false
	}
	for i := range a.terms {
		if !a.terms[i].Equal(o.terms[i]) {
			return false
		}
	}
	return true
}

// sortExprs orders expressions by their printed key so every Simplify
// produces the same operand order.
func sortExprs(es []Expr) []Expr {
	type keyed struct {
		e   Expr
		key string
	}
	ks := make([]keyed, len(es))
	for i, e := range es {
		ks[i] = keyed{e: e, key: e.String()}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	out := make([]Expr, len(ks))
	for i := range ks {
		out[i] = ks[i].e
	}
	return out
}

// ============================================================
// Mul — product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

// Div builds a/b in the canonical a * b^-1 form.
func Div(a, b Expr) Expr { return MulOf(a, PowOf(b, N(-1))) }

func (m *Mul) Factors() []Expr { return m.factors }

func (m *Mul) Simplify() Expr {
	flat := make([]Expr, 0, len(m.factors))
	for _, f := range m.factors {
		s := f.Simplify()
		if inner, ok := s.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, s)
		}
	}
	coeff := N(1)
	others := []Expr{}
	for _, f := range flat {
		if v, ok := f.(*Num); ok {
			coeff = numMul(coeff, v)
		} else {
			others = append(others, f)
		}
	}
	if coeff.IsZero() {
		return N(0)
	}
	if len(others) == 0 {
		return coeff
	}
	others = sortExprs(others)
	if coeff.IsOne() {
		if len(others) == 1 {
			return others[0]
		}
		return &Mul{factors: others}
	}
	return &Mul{factors: append([]Expr{coeff}, others...)}
}

func (m *Mul) String() string {
	if len(m.factors) == 0 {
		return "1"
	}
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		if needsParens(f) {
			parts[i] = "(" + f.String() + ")"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "*")
}

func needsParens(e Expr) bool {
	switch e.(type) {
	case *Add, *Cmp:
		return true
	}
	return false
}

func (m *Mul) Sub(name string, value Expr) Expr {
	newFactors := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		newFactors[i] = f.Sub(name, value)
	}
	return MulOf(newFactors...)
}

func (m *Mul) Diff(name string) Expr {
	terms := make([]Expr, len(m.factors))
	for i, fi := range m.factors {
		dfi := fi.Diff(name)
		others := make([]Expr, 0, len(m.factors)-1)
		for j, fj := range m.factors {
			if j != i {
				others = append(others, fj)
			}
		}
		if len(others) == 0 {
			terms[i] = dfi
		} else {
			terms[i] = MulOf(append([]Expr{dfi}, others...)...)
		}
	}
	return AddOf(terms...)
}

func (m *Mul) Eval(env Env) (float64, bool) {
	acc := 1.0
	for _, f := range m.factors {
		v, ok := f.Eval(env)
		if !ok {
			return 0, false
		}
		acc *= v
	}
	return acc, true
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	if !ok || len(m.factors) != len(o.factors) {
		return false
	}
	for i := range m.factors {
		if !m.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

// ============================================================
// Pow — base^exponent
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

func (p *Pow) Base() Expr     { return p.base }
func (p *Pow) Exponent() Expr { return p.exp }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			return N(1)
		}
		if en.IsOne() {
			return base
		}
	}
	if bn, ok := base.(*Num); ok && bn.IsZero() {
		if en, ok2 := exp.(*Num); ok2 && (en.IsZero() || en.IsNegative()) {
			// 0^0 and 0^negative stay unevaluated.
			return &Pow{base: base, exp: exp}
		}
		return N(0)
	}
	if bn, ok := base.(*Num); ok && bn.IsOne() {
		return N(1)
	}
	if bn, ok := base.(*Num); ok {
		if en, ok2 := exp.(*Num); ok2 && en.IsInteger() {
			e := en.val.Num().Int64()
			if e >= -20 && e <= 20 {
				mag := e
				if mag < 0 {
					mag = -mag
				}
				result := N(1)
				for i := int64(0); i < mag; i++ {
					result = numMul(result, bn)
				}
				if e < 0 {
					return numRecip(result)
				}
				return result
			}
		}
	}
	if inner, ok := base.(*Pow); ok {
		return PowOf(inner.base, MulOf(inner.exp, exp).Simplify())
	}
	return &Pow{base: base, exp: exp}
}

func (p *Pow) String() string {
	baseStr := p.base.String()
	switch p.base.(type) {
	case *Add, *Mul, *Cmp:
		baseStr = "(" + baseStr + ")"
	}
	expStr := p.exp.String()
	switch v := p.exp.(type) {
	case *Add, *Mul, *Cmp:
		expStr = "(" + expStr + ")"
	case *Num:
		if !v.IsInteger() {
			expStr = "(" + expStr + ")"
		}
	}
	return baseStr + "^" + expStr
}

func (p *Pow) Sub(name string, value Expr) Expr {
	return PowOf(p.base.Sub(name, value), p.exp.Sub(name, value))
}

func (p *Pow) Diff(name string) Expr {
	du := p.base.Diff(name)
	dv := p.exp.Diff(name)
	if _, expIsNum := p.exp.(*Num); expIsNum {
		return MulOf(p.exp, PowOf(p.base, AddOf(p.exp, N(-1))), du)
	}
	if _, baseIsNum := p.base.(*Num); baseIsNum {
		return MulOf(PowOf(p.base, p.exp), LogOf(p.base), dv)
	}
	logTerm := MulOf(dv, LogOf(p.base))
	divTerm := MulOf(p.exp, du, PowOf(p.base, N(-1)))
	return MulOf(PowOf(p.base, p.exp), AddOf(logTerm, divTerm))
}

func (p *Pow) Eval(env Env) (float64, bool) {
	b, ok1 := p.base.Eval(env)
	e, ok2 := p.exp.Eval(env)
	if !ok1 || !ok2 {
		return 0, false
	}
	v := math.Pow(b, e)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

// ============================================================
// Func — unary function applications
// ============================================================

type Func struct {
	name string
	arg  Expr
}

func funcOf(name string, arg Expr) *Func { return &Func{name: name, arg: arg} }

func SinOf(arg Expr) Expr  { return funcOf("sin", arg).Simplify() }
func CosOf(arg Expr) Expr  { return funcOf("cos", arg).Simplify() }
func TanOf(arg Expr) Expr  { return funcOf("tan", arg).Simplify() }
func ExpOf(arg Expr) Expr  { return funcOf("exp", arg).Simplify() }
func LogOf(arg Expr) Expr  { return funcOf("log", arg).Simplify() }
func SqrtOf(arg Expr) Expr { return PowOf(arg, F(1, 2)) }
func AbsOf(arg Expr) Expr  { return funcOf("abs", arg).Simplify() }
func SignOf(arg Expr) Expr { return funcOf("sign", arg).Simplify() }

// FuncNames lists every unary function the parser recognizes.
var FuncNames = map[string]bool{
	"sin": true, "cos": true, "tan": true,
	"asin": true, "acos": true, "atan": true,
	"sinh": true, "cosh": true, "tanh": true,
	"exp": true, "log": true, "sqrt": true,
	"abs": true, "sign": true,
}

func (f *Func) Name() string { return f.name }
func (f *Func) Arg() Expr    { return f.arg }

func (f *Func) Simplify() Expr {
	arg := f.arg.Simplify()
	// Exact identities only; transcendental folding would turn clean
	// literals into unwieldy rationals in the printed code.
	switch f.name {
	case "sin", "tan", "sinh", "tanh", "asin", "atan":
		if isNumEqual(arg, 0) {
			return N(0)
		}
	case "cos", "cosh":
		if isNumEqual(arg, 0) {
			return N(1)
		}
	case "log":
		if isNumEqual(arg, 1) {
			return N(0)
		}
		if inner, ok := arg.(*Func); ok && inner.name == "exp" {
			return inner.arg
		}
	case "exp":
		if isNumEqual(arg, 0) {
			return N(1)
		}
		if inner, ok := arg.(*Func); ok && inner.name == "log" {
			return inner.arg
		}
	case "abs":
		if n, ok := arg.(*Num); ok {
			if n.IsNegative() {
				return numMul(N(-1), n)
			}
			return n
		}
	}
	return &Func{name: f.name, arg: arg}
}

func (f *Func) String() string { return f.name + "(" + f.arg.String() + ")" }

func (f *Func) Sub(name string, value Expr) Expr {
	return funcOf(f.name, f.arg.Sub(name, value)).Simplify()
}

func (f *Func) Diff(name string) Expr {
	du := f.arg.Diff(name)
	var outer Expr
	switch f.name {
	case "sin":
		outer = CosOf(f.arg)
	case "cos":
		outer = MulOf(N(-1), SinOf(f.arg))
	case "tan":
		outer = AddOf(N(1), PowOf(TanOf(f.arg), N(2)))
	case "exp":
		outer = ExpOf(f.arg)
	case "log":
		outer = PowOf(f.arg, N(-1))
	case "asin":
		outer = PowOf(AddOf(N(1), MulOf(N(-1), PowOf(f.arg, N(2)))), F(-1, 2))
	case "acos":
		outer = MulOf(N(-1), PowOf(AddOf(N(1), MulOf(N(-1), PowOf(f.arg, N(2)))), F(-1, 2)))
	case "atan":
		outer = PowOf(AddOf(N(1), PowOf(f.arg, N(2))), N(-1))
	case "sinh":
		outer = funcOf("cosh", f.arg).Simplify()
	case "cosh":
		outer = funcOf("sinh", f.arg).Simplify()
	case "tanh":
		outer = AddOf(N(1), MulOf(N(-1), PowOf(funcOf("tanh", f.arg).Simplify(), N(2))))
	case "abs":
		outer = SignOf(f.arg)
	case "sign":
		return N(0)
	default:
		return MulOf(funcOf("D["+f.name+"]", f.arg), du)
	}
	return MulOf(outer, du).Simplify()
}

func (f *Func) Eval(env Env) (float64, bool) {
	v, ok := f.arg.Eval(env)
	if !ok {
		return 0, false
	}
	switch f.name {
	case "sin":
		return math.Sin(v), true
	case "cos":
		return math.Cos(v), true
	case "tan":
		return math.Tan(v), true
	case "asin":
		return math.Asin(v), true
	case "acos":
		return math.Acos(v), true
	case "atan":
		return math.Atan(v), true
	case "sinh":
		return math.Sinh(v), true
	case "cosh":
		return math.Cosh(v), true
	case "tanh":
		return math.Tanh(v), true
	case "exp":
		return math.Exp(v), true
	case "log":
		if v <= 0 {
			return 0, false
		}
		return math.Log(v), true
	case "sqrt":
		if v < 0 {
			return 0, false
		}
		return math.Sqrt(v), true
	case "abs":
		return math.Abs(v), true
	case "sign":
		switch {
		case v > 0:
			return 1, true
		case v < 0:
			return -1, true
		}
		return 0, true
	}
	return 0, false
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && f.arg.Equal(o.arg)
}

func isNumEqual(e Expr, v int64) bool {
	n, ok := e.(*Num)
	return ok && n.Equal(N(v))
}

// ============================================================
// Cmp — comparison operator
// ============================================================

// Cmp is a comparison expression. It evaluates to 1 or 0 and its
// derivative is zero everywhere (a piecewise-constant selector).
type Cmp struct {
	op       string // "<", "<=", ">", ">=", "=="
	lhs, rhs Expr
}

func CmpOf(op string, lhs, rhs Expr) Expr {
	return &Cmp{op: op, lhs: lhs.Simplify(), rhs: rhs.Simplify()}
}

func (c *Cmp) Op() string { return c.op }
func (c *Cmp) LHS() Expr  { return c.lhs }
func (c *Cmp) RHS() Expr  { return c.rhs }

func (c *Cmp) Simplify() Expr {
	return &Cmp{op: c.op, lhs: c.lhs.Simplify(), rhs: c.rhs.Simplify()}
}
func (c *Cmp) String() string { return c.lhs.String() + c.op + c.rhs.String() }
func (c *Cmp) Sub(name string, value Expr) Expr {
	return &Cmp{op: c.op, lhs: c.lhs.Sub(name, value), rhs: c.rhs.Sub(name, value)}
}
func (c *Cmp) Diff(string) Expr { return N(0) }
func (c *Cmp) Eval(env Env) (float64, bool) {
	l, ok1 := c.lhs.Eval(env)
	r, ok2 := c.rhs.Eval(env)
	if !ok1 || !ok2 {
		return 0, false
	}
	var hold bool
	switch c.op {
	case "<":
		hold = l < r
	case "<=":
		hold = l <= r
	case ">":
		hold = l > r
	case ">=":
		hold = l >= r
	case "==":
		hold = l == r
	}
	if hold {
		return 1, true
	}
	return 0, true
}
func (c *Cmp) Equal(other Expr) bool {
	o, ok := other.(*Cmp)
	return ok && c.op == o.op && c.lhs.Equal(o.lhs) && c.rhs.Equal(o.rhs)
}

// ============================================================
// Walkers
// ============================================================

// FreeSymbols returns every symbol name occurring in e. TimeRef
// occurrences report their canonical key, e.g. "C(+1)".
func FreeSymbols(e Expr) map[string]bool {
	out := map[string]bool{}
	collectSymbols(e, out)
	return out
}

func collectSymbols(e Expr, out map[string]bool) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = true
	case *TimeRef:
		out[v.Key()] = true
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Func:
		collectSymbols(v.arg, out)
	case *Cmp:
		collectSymbols(v.lhs, out)
		collectSymbols(v.rhs, out)
	}
}

// SortedSymbols returns the free symbols of e in lexical order.
func SortedSymbols(e Expr) []string {
	set := FreeSymbols(e)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Refs returns every TimeRef and bare Sym occurrence in e, in
// depth-first order. Duplicates are kept.
func Refs(e Expr) []*TimeRef {
	var out []*TimeRef
	collectRefs(e, &out)
	return out
}

func collectRefs(e Expr, out *[]*TimeRef) {
	switch v := e.(type) {
	case *Sym:
		*out = append(*out, Ref(v.name, 0))
	case *TimeRef:
		*out = append(*out, v)
	case *Add:
		for _, t := range v.terms {
			collectRefs(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectRefs(f, out)
		}
	case *Pow:
		collectRefs(v.base, out)
		collectRefs(v.exp, out)
	case *Func:
		collectRefs(v.arg, out)
	case *Cmp:
		collectRefs(v.lhs, out)
		collectRefs(v.rhs, out)
	}
}

// Rewrite applies fn bottom-up over the tree and simplifies the result.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	var walk func(Expr) Expr
	walk = func(x Expr) Expr {
		switch v := x.(type) {
		case *Add:
			newTerms := make([]Expr, len(v.terms))
			for i, t := range v.terms {
				newTerms[i] = walk(t)
			}
			return fn(AddOf(newTerms...))
		case *Mul:
			newFactors := make([]Expr, len(v.factors))
			for i, f := range v.factors {
				newFactors[i] = walk(f)
			}
			return fn(MulOf(newFactors...))
		case *Pow:
			return fn(PowOf(walk(v.base), walk(v.exp)))
		case *Func:
			return fn(funcOf(v.name, walk(v.arg)).Simplify())
		case *Cmp:
			return fn(&Cmp{op: v.op, lhs: walk(v.lhs), rhs: walk(v.rhs)})
		}
		return fn(x)
	}
	return walk(e).Simplify()
}

// ============================================================
// Top-level helpers
// ============================================================

func Simplify(e Expr) Expr { return e.Simplify() }

func Diff(e Expr, name string) Expr { return e.Diff(name).Simplify() }

func DiffN(e Expr, name string, n int) Expr {
	result := e
	for i := 0; i < n; i++ {
		result = Diff(result, name)
	}
	return result
}

func IsZero(e Expr) bool {
	n, ok := e.Simplify().(*Num)
	return ok && n.IsZero()
}
