package symbolic

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse turns an equation-side expression string into an Expr. Variable
// references with a time shift, e.g. C(+1) or K(-1), become TimeRef
// nodes; recognized unary functions become Func nodes; any other
// name(...) form is an error.
func Parse(src string) (Expr, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return e.Simplify(), nil
}

// ParseEquation parses "lhs = rhs" (or a bare expression, treated as
// "expr = 0") and returns the residual lhs - rhs in canonical form.
func ParseEquation(src string) (Expr, error) {
	lhs, rhs, ok := splitEquals(src)
	if !ok {
		return Parse(src)
	}
	l, err := Parse(lhs)
	if err != nil {
		return nil, err
	}
	r, err := Parse(rhs)
	if err != nil {
		return nil, err
	}
	return Sub2(l, r).Simplify(), nil
}

// SplitEquation splits "lhs = rhs" at the top-level assignment sign, if
// any. Callers use it to inspect the left-hand side before parsing.
func SplitEquation(src string) (lhs, rhs string, ok bool) { return splitEquals(src) }

// splitEquals finds a top-level bare '=' (not ==, <=, >=) outside parens.
func splitEquals(src string) (lhs, rhs string, ok bool) {
	depth := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(src) && src[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && (src[i-1] == '<' || src[i-1] == '>' || src[i-1] == '=' || src[i-1] == '!') {
				continue
			}
			return src[:i], src[i+1:], true
		}
	}
	return "", "", false
}

// ============================================================
// Scanner
// ============================================================

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokOp // single- or double-char operator
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func scan(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			seenExp := false
			for i < len(src) {
				d := src[i]
				if d >= '0' && d <= '9' || d == '.' {
					i++
					continue
				}
				if (d == 'e' || d == 'E') && !seenExp && i+1 < len(src) {
					next := src[i+1]
					if next >= '0' && next <= '9' || next == '+' || next == '-' {
						seenExp = true
						i += 2
						continue
					}
				}
				break
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		case strings.ContainsRune("+-*/^(),", rune(c)):
			toks = append(toks, token{tokOp, string(c), i})
			i++
		case c == '<' || c == '>' || c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokOp, src[i : i+2], i})
				i += 2
			} else {
				toks = append(toks, token{tokOp, string(c), i})
				i++
			}
		default:
			return nil, fmt.Errorf("unexpected character %q at column %d", string(c), i+1)
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// ============================================================
// Parser
// ============================================================

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%s (column %d in %q)", fmt.Sprintf(format, args...), p.peek().pos+1, p.src)
}

func (p *parser) accept(text string) bool {
	if p.peek().kind == tokOp && p.peek().text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q, got %q", text, p.peek().text)
	}
	return nil
}

func (p *parser) parseCmp() (Expr, error) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "<", "<=", ">", ">=", "==":
			p.next()
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			return CmpOf(t.text, lhs, rhs), nil
		}
	}
	return lhs, nil
}

func (p *parser) parseAdd() (Expr, error) {
	e, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("+"):
			r, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			e = AddOf(e, r)
		case p.accept("-"):
			r, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			e = Sub2(e, r)
		default:
			return e, nil
		}
	}
}

func (p *parser) parseMul() (Expr, error) {
	e, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("*"):
			r, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			e = MulOf(e, r)
		case p.accept("/"):
			r, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			e = Div(e, r)
		default:
			return e, nil
		}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.accept("-") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return MulOf(N(-1), e), nil
	}
	if p.accept("+") {
		return p.parseUnary()
	}
	return p.parsePow()
}

func (p *parser) parsePow() (Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.accept("^") {
		// Right associative; exponent may carry a unary sign.
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return PowOf(base, exp), nil
	}
	return base, nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		n, ok := NumFromString(t.text)
		if !ok {
			return nil, p.errorf("malformed number %q", t.text)
		}
		return n, nil
	case tokIdent:
		p.next()
		if !p.accept("(") {
			return S(t.text), nil
		}
		if FuncNames[t.text] {
			arg, err := p.parseCmp()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return funcOf(t.text, arg).Simplify(), nil
		}
		// Not a function: must be a time-shift reference name(+k).
		shift, err := p.parseShift(t.text)
		if err != nil {
			return nil, err
		}
		return Ref(t.text, shift), nil
	case tokOp:
		if t.text == "(" {
			p.next()
			e, err := p.parseCmp()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.errorf("unexpected %q", t.text)
}

// parseShift consumes "[+-]? integer )" after "name(" was read.
func (p *parser) parseShift(name string) (int, error) {
	sign := 1
	if p.accept("-") {
		sign = -1
	} else {
		p.accept("+")
	}
	t := p.peek()
	if t.kind != tokNumber || strings.ContainsAny(t.text, ".eE") {
		return 0, p.errorf("%q is not a function; expected a lead/lag like %s(+1)", name, name)
	}
	p.next()
	var k int
	if _, err := fmt.Sscanf(t.text, "%d", &k); err != nil {
		return 0, p.errorf("bad lead/lag value %q", t.text)
	}
	if err := p.expect(")"); err != nil {
		return 0, err
	}
	return sign * k, nil
}
