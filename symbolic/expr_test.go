package symbolic_test

import (
	"testing"

	symbolic "github.com/irisccy/rise/symbolic"
)

// ============================================================
// Num tests
// ============================================================

func TestNum_Integer(t *testing.T) {
	n := symbolic.N(42)
	if n.String() != "42" {
		t.Errorf("want 42, got %s", n.String())
	}
}

func TestNum_Rational(t *testing.T) {
	n := symbolic.F(1, 3)
	if n.String() != "1/3" {
		t.Errorf("want 1/3, got %s", n.String())
	}
}

func TestNum_FromString_Decimal(t *testing.T) {
	n, ok := symbolic.NumFromString("0.25")
	if !ok || n.String() != "1/4" {
		t.Errorf("want 1/4, got %v %v", n, ok)
	}
}

func TestNum_Diff_IsZero(t *testing.T) {
	result := symbolic.Diff(symbolic.N(5), "x")
	if result.String() != "0" {
		t.Errorf("d/dx(5) should be 0, got %s", result.String())
	}
}

func TestNum_Eval(t *testing.T) {
	v, ok := symbolic.N(7).Eval(nil)
	if !ok || v != 7 {
		t.Errorf("Num.Eval() should succeed with same value, got %v %v", v, ok)
	}
}

// ============================================================
// Sym tests
// ============================================================

func TestSym_String(t *testing.T) {
	x := symbolic.S("x")
	if x.String() != "x" {
		t.Errorf("want x, got %s", x.String())
	}
}

func TestSym_Sub_Match(t *testing.T) {
	result := symbolic.S("x").Sub("x", symbolic.N(3))
	if result.String() != "3" {
		t.Errorf("want 3, got %s", result.String())
	}
}

func TestSym_Sub_NoMatch(t *testing.T) {
	result := symbolic.S("x").Sub("y", symbolic.N(3))
	if result.String() != "x" {
		t.Errorf("want x, got %s", result.String())
	}
}

func TestSym_Diff_Self(t *testing.T) {
	result := symbolic.Diff(symbolic.S("x"), "x")
	if result.String() != "1" {
		t.Errorf("d/dx(x) should be 1, got %s", result.String())
	}
}

func TestSym_Eval_Missing(t *testing.T) {
	_, ok := symbolic.S("x").Eval(symbolic.Env{"y": 1})
	if ok {
		t.Errorf("unbound symbol should not evaluate")
	}
}

// ============================================================
// TimeRef tests
// ============================================================

func TestTimeRef_Key_Lead(t *testing.T) {
	r := symbolic.Ref("C", 1)
	if r.Key() != "C(+1)" {
		t.Errorf("want C(+1), got %s", r.Key())
	}
}

func TestTimeRef_Key_Lag(t *testing.T) {
	r := symbolic.Ref("K", -1)
	if r.Key() != "K(-1)" {
		t.Errorf("want K(-1), got %s", r.Key())
	}
}

func TestTimeRef_Key_Current(t *testing.T) {
	r := symbolic.Ref("Y", 0)
	if r.Key() != "Y" {
		t.Errorf("want Y, got %s", r.Key())
	}
}

func TestTimeRef_Diff_ByKey(t *testing.T) {
	r := symbolic.Ref("C", 1)
	if symbolic.Diff(r, "C(+1)").String() != "1" {
		t.Errorf("d/dC(+1) of C(+1) should be 1")
	}
	if symbolic.Diff(r, "C").String() != "0" {
		t.Errorf("d/dC of C(+1) should be 0")
	}
}

func TestTimeRef_Sub_ByKey(t *testing.T) {
	r := symbolic.Ref("C", 1)
	got := r.Sub("C(+1)", symbolic.S("y_3"))
	if got.String() != "y_3" {
		t.Errorf("want y_3, got %s", got.String())
	}
}

// ============================================================
// Add tests
// ============================================================

func TestAdd_CollectsLikeTerms(t *testing.T) {
	e := symbolic.AddOf(symbolic.S("x"), symbolic.S("x"), symbolic.N(1))
	if e.String() != "2*x + 1" {
		t.Errorf("want 2*x + 1, got %s", e.String())
	}
}

func TestAdd_CancelsToZero(t *testing.T) {
	e := symbolic.Sub2(symbolic.S("x"), symbolic.S("x"))
	if e.String() != "0" {
		t.Errorf("x - x should be 0, got %s", e.String())
	}
}

func TestAdd_DeterministicOrder(t *testing.T) {
	ab := symbolic.AddOf(symbolic.S("a"), symbolic.S("b"))
	ba := symbolic.AddOf(symbolic.S("b"), symbolic.S("a"))
	if ab.String() != ba.String() {
		t.Errorf("operand order should not matter: %s vs %s", ab.String(), ba.String())
	}
	if ab.String() != "a + b" {
		t.Errorf("want a + b, got %s", ab.String())
	}
}

// ============================================================
// Mul tests
// ============================================================

func TestMul_FoldsCoefficient(t *testing.T) {
	e := symbolic.MulOf(symbolic.N(2), symbolic.S("x"), symbolic.N(3))
	if e.String() != "6*x" {
		t.Errorf("want 6*x, got %s", e.String())
	}
}

func TestMul_ZeroAnnihilates(t *testing.T) {
	e := symbolic.MulOf(symbolic.N(0), symbolic.S("x"))
	if e.String() != "0" {
		t.Errorf("0*x should be 0, got %s", e.String())
	}
}

func TestMul_ParenthesizesSums(t *testing.T) {
	e := symbolic.MulOf(symbolic.S("a"), symbolic.AddOf(symbolic.S("x"), symbolic.N(1)))
	if e.String() != "a*(x + 1)" {
		t.Errorf("want a*(x + 1), got %s", e.String())
	}
}

// ============================================================
// Pow tests
// ============================================================

func TestPow_ExponentZero(t *testing.T) {
	e := symbolic.PowOf(symbolic.S("x"), symbolic.N(0))
	if e.String() != "1" {
		t.Errorf("x^0 should be 1, got %s", e.String())
	}
}

func TestPow_FoldsIntegerPower(t *testing.T) {
	e := symbolic.PowOf(symbolic.N(2), symbolic.N(10))
	if e.String() != "1024" {
		t.Errorf("2^10 should fold to 1024, got %s", e.String())
	}
}

func TestPow_ZeroToNegative_Unevaluated(t *testing.T) {
	e := symbolic.PowOf(symbolic.N(0), symbolic.N(-1))
	if e.String() != "0^-1" {
		t.Errorf("0^-1 should stay unevaluated, got %s", e.String())
	}
}

func TestPow_NestedCollapse(t *testing.T) {
	e := symbolic.PowOf(symbolic.PowOf(symbolic.S("x"), symbolic.N(2)), symbolic.N(3))
	if e.String() != "x^6" {
		t.Errorf("(x^2)^3 should be x^6, got %s", e.String())
	}
}

func TestPow_RationalExponent_Parens(t *testing.T) {
	e := symbolic.SqrtOf(symbolic.S("x"))
	if e.String() != "x^(1/2)" {
		t.Errorf("want x^(1/2), got %s", e.String())
	}
}

// ============================================================
// Func tests
// ============================================================

func TestFunc_ExpLog_Cancels(t *testing.T) {
	e := symbolic.ExpOf(symbolic.LogOf(symbolic.S("x")))
	if e.String() != "x" {
		t.Errorf("exp(log(x)) should be x, got %s", e.String())
	}
}

func TestFunc_LogOfOne(t *testing.T) {
	e := symbolic.LogOf(symbolic.N(1))
	if e.String() != "0" {
		t.Errorf("log(1) should be 0, got %s", e.String())
	}
}

func TestFunc_NoTranscendentalFolding(t *testing.T) {
	e := symbolic.SinOf(symbolic.N(2))
	if e.String() != "sin(2)" {
		t.Errorf("sin(2) should stay symbolic, got %s", e.String())
	}
}

func TestFunc_DiffChainRule(t *testing.T) {
	e := symbolic.ExpOf(symbolic.MulOf(symbolic.N(2), symbolic.S("x")))
	d := symbolic.Diff(e, "x")
	if d.String() != "2*exp(2*x)" {
		t.Errorf("want 2*exp(2*x), got %s", d.String())
	}
}

func TestFunc_Eval_LogDomain(t *testing.T) {
	_, ok := symbolic.LogOf(symbolic.S("x")).Eval(symbolic.Env{"x": -1})
	if ok {
		t.Errorf("log of a negative should not evaluate")
	}
}

// ============================================================
// Cmp tests
// ============================================================

func TestCmp_DiffIsZero(t *testing.T) {
	e := symbolic.CmpOf("<=", symbolic.S("x"), symbolic.N(1))
	if symbolic.Diff(e, "x").String() != "0" {
		t.Errorf("comparison derivative should be 0")
	}
}

func TestCmp_EvalIndicator(t *testing.T) {
	e := symbolic.CmpOf("<", symbolic.S("x"), symbolic.N(1))
	v, ok := e.Eval(symbolic.Env{"x": 0})
	if !ok || v != 1 {
		t.Errorf("0 < 1 should evaluate to 1, got %v %v", v, ok)
	}
	v, _ = e.Eval(symbolic.Env{"x": 2})
	if v != 0 {
		t.Errorf("2 < 1 should evaluate to 0, got %v", v)
	}
}

// ============================================================
// Walker tests
// ============================================================

func TestFreeSymbols_IncludesRefKeys(t *testing.T) {
	e := symbolic.AddOf(symbolic.Ref("C", 1), symbolic.S("beta"))
	free := symbolic.FreeSymbols(e)
	if !free["C(+1)"] || !free["beta"] {
		t.Errorf("want C(+1) and beta free, got %v", free)
	}
}

func TestRewrite_ReplacesSymbols(t *testing.T) {
	e := symbolic.AddOf(symbolic.S("x"), symbolic.S("y"))
	got := symbolic.Rewrite(e, func(x symbolic.Expr) symbolic.Expr {
		if s, ok := x.(*symbolic.Sym); ok && s.Name() == "x" {
			return symbolic.S("z")
		}
		return x
	})
	if got.String() != "y + z" {
		t.Errorf("want y + z, got %s", got.String())
	}
}
