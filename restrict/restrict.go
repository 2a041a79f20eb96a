// Package restrict normalizes parameter-restriction expressions into
// canonical parameter-name strings for the estimation collaborators.
// Inequality restrictions are routed to the nonlinear-restriction engine;
// equality restrictions stay linear.
package restrict

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/irisccy/rise/dsl"
	"github.com/irisccy/rise/model"
)

// Restriction is one normalized restriction: the raw text, the canonical
// rewrite with every coef(...) reference resolved, and the comparison
// operator that classified it.
type Restriction struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
	Op        string `json:"op"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Restrictions partitions the block into linear (equality) and nonlinear
// (inequality) restrictions.
type Restrictions struct {
	Linear    []Restriction `json:"linear,omitempty"`
	Nonlinear []Restriction `json:"nonlinear,omitempty"`
}

// CoefRef is the typed form of a coef(eqtn,vbl,lag[,chain,state])
// reference. The canonical text is a serialization of this value.
type CoefRef struct {
	Equation int
	Variable int // 1-based position in the endogenous list
	Lag      int
	Chain    string
	State    int
}

// Name renders the canonical parameter name: an a/b prefix for the
// lead/lag sign, the absolute shift, equation and variable indices, and
// the optional chain and state.
func (c CoefRef) Name() string {
	prefix := "a"
	lag := c.Lag
	if lag < 0 {
		prefix = "b"
		lag = -lag
	}
	name := fmt.Sprintf("%s%d_%d_%d", prefix, lag, c.Equation, c.Variable)
	if c.Chain != "" {
		name += fmt.Sprintf("_%s_%d", c.Chain, c.State)
	}
	return name
}

var coefRe = regexp.MustCompile(`coef\(\s*([^)]*?)\s*\)`)

// Normalize rewrites the parameter_restrictions block. Each restriction
// must compare two parameter expressions; a restriction that would
// define a parameter in terms of others (a derived parameter) is a
// configuration error in this context.
func Normalize(lines []dsl.SourceLine, dict *model.Dictionary, logger *zap.Logger) (*Restrictions, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := &Restrictions{}
	endoIndex := map[string]int{}
	for i, name := range dict.EndogenousNames() {
		endoIndex[name] = i + 1
	}
	for _, ln := range lines {
		for _, stmt := range strings.Split(ln.Text, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			canonical, err := resolveCoefs(stmt, endoIndex, dict, ln)
			if err != nil {
				return nil, err
			}
			op, err := classify(canonical, ln)
			if err != nil {
				return nil, err
			}
			r := Restriction{Raw: stmt, Canonical: canonical, Op: op, File: ln.File, Line: ln.Line}
			if strings.ContainsAny(op, "<>") {
				out.Nonlinear = append(out.Nonlinear, r)
				continue
			}
			if name := derivedParameter(canonical, dict); name != "" {
				return nil, dsl.Errorf(ln.File, ln.Line,
					"restriction %q derives parameter %q from others; derived parameters are not allowed here", stmt, name)
			}
			out.Linear = append(out.Linear, r)
		}
	}
	logger.Debug("restrictions normalized",
		zap.Int("linear", len(out.Linear)),
		zap.Int("nonlinear", len(out.Nonlinear)))
	return out, nil
}

// resolveCoefs replaces every coef(...) reference with its canonical
// parameter name.
func resolveCoefs(stmt string, endoIndex map[string]int, dict *model.Dictionary, ln dsl.SourceLine) (string, error) {
	var resolveErr error
	out := coefRe.ReplaceAllStringFunc(stmt, func(m string) string {
		if resolveErr != nil {
			return m
		}
		inner := coefRe.FindStringSubmatch(m)[1]
		ref, err := parseCoef(inner, endoIndex, dict)
		if err != nil {
			resolveErr = dsl.Errorf(ln.File, ln.Line, "bad coefficient reference coef(%s): %v", inner, err)
			return m
		}
		return ref.Name()
	})
	return out, resolveErr
}

func parseCoef(inner string, endoIndex map[string]int, dict *model.Dictionary) (CoefRef, error) {
	parts := strings.Split(inner, ",")
	if len(parts) != 3 && len(parts) != 5 {
		return CoefRef{}, fmt.Errorf("want coef(eqtn,vbl,lag) or coef(eqtn,vbl,lag,chain,state)")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	ref := CoefRef{}
	var err error
	if ref.Equation, err = strconv.Atoi(parts[0]); err != nil || ref.Equation < 1 {
		return CoefRef{}, fmt.Errorf("equation id %q is not a positive integer", parts[0])
	}
	if idx, numErr := strconv.Atoi(parts[1]); numErr == nil {
		ref.Variable = idx
	} else {
		idx, ok := endoIndex[parts[1]]
		if !ok {
			return CoefRef{}, fmt.Errorf("unknown endogenous variable %q", parts[1])
		}
		ref.Variable = idx
	}
	if ref.Variable < 1 || ref.Variable > len(endoIndex) {
		return CoefRef{}, fmt.Errorf("variable index %d out of range", ref.Variable)
	}
	if ref.Lag, err = strconv.Atoi(parts[2]); err != nil {
		return CoefRef{}, fmt.Errorf("lag %q is not an integer", parts[2])
	}
	if len(parts) == 5 {
		ref.Chain = parts[3]
		found := false
		var chain *model.MarkovChain
		for _, c := range dict.Chains {
			if c.Name == ref.Chain {
				found = true
				chain = c
				break
			}
		}
		if !found {
			return CoefRef{}, fmt.Errorf("unknown markov chain %q", ref.Chain)
		}
		if ref.State, err = strconv.Atoi(parts[4]); err != nil || ref.State < 1 || ref.State > chain.NumStates {
			return CoefRef{}, fmt.Errorf("state %q out of range for chain %q", parts[4], ref.Chain)
		}
	}
	return ref, nil
}

// classify finds the single top-level comparison operator.
func classify(stmt string, ln dsl.SourceLine) (string, error) {
	for _, op := range []string{"<=", ">=", "==", "<", ">", "="} {
		if strings.Contains(stmt, op) {
			if strings.Count(stmt, op) > 1 && op != "=" {
				return "", dsl.Errorf(ln.File, ln.Line, "malformed restriction %q", stmt)
			}
			return op, nil
		}
	}
	return "", dsl.Errorf(ln.File, ln.Line, "restriction %q has no comparison operator", stmt)
}

var bareNameRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// derivedParameter reports the parameter name when an equality
// restriction has a bare declared parameter as its left-hand side, i.e.
// it would define that parameter in terms of the others.
func derivedParameter(stmt string, dict *model.Dictionary) string {
	i := strings.Index(stmt, "=")
	if i < 0 {
		return ""
	}
	lhs := strings.TrimSpace(stmt[:i])
	if !bareNameRe.MatchString(lhs) {
		return ""
	}
	if sym, ok := dict.Lookup(lhs); ok && sym.Kind == model.Parameter {
		return lhs
	}
	return ""
}
