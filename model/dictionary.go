package model

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/irisccy/rise/dsl"
)

// Calib is one parameterization entry: a value for a parameter, possibly
// specific to a state of its governing Markov chain.
type Calib struct {
	Name  string  `json:"name"`
	Chain string  `json:"chain,omitempty"`
	State int     `json:"state,omitempty"`
	Value float64 `json:"value"`
}

// BuildDictionary folds the declaration blocks into a frozen Dictionary.
// Duplicate names, unknown observables and malformed chain declarations
// are fatal structural errors carrying file and line.
func BuildDictionary(blocks *dsl.Blocks, logger *zap.Logger) (*Dictionary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &dictBuilder{
		d: &Dictionary{
			LogRenames:    map[string]string{},
			originalNames: map[string]bool{},
			byName:        map[string]*Symbol{},
		},
		log: logger,
	}
	steps := []struct {
		block string
		fold  func(*dsl.Block) error
	}{
		{dsl.BlockEndogenous, func(bl *dsl.Block) error { return b.foldDecls(bl, Endogenous) }},
		{dsl.BlockExogenous, func(bl *dsl.Block) error { return b.foldDecls(bl, Exogenous) }},
		{dsl.BlockParameters, func(bl *dsl.Block) error { return b.foldDecls(bl, Parameter) }},
		{dsl.BlockDefinitions, func(bl *dsl.Block) error { return b.foldDecls(bl, Definition) }},
		{dsl.BlockMarkovChains, b.foldChains},
		{dsl.BlockLogVars, b.foldLogVars},
		{dsl.BlockObservables, b.foldObservables},
		{dsl.BlockParameterize, b.foldParameterization},
	}
	for _, step := range steps {
		if bl := blocks.Get(step.block); bl != nil {
			if err := step.fold(bl); err != nil {
				return nil, err
			}
		}
	}
	b.d.Regimes = enumerateRegimes(b.d.Chains)
	logger.Debug("dictionary built",
		zap.Int("endogenous", len(b.d.Endogenous)),
		zap.Int("exogenous", len(b.d.Exogenous)),
		zap.Int("parameters", len(b.d.Parameters)),
		zap.Int("regimes", len(b.d.Regimes)))
	return b.d, nil
}

type dictBuilder struct {
	d   *Dictionary
	log *zap.Logger
}

func (b *dictBuilder) table(kind SymbolKind) *[]*Symbol {
	switch kind {
	case Endogenous:
		return &b.d.Endogenous
	case Exogenous:
		return &b.d.Exogenous
	case Parameter:
		return &b.d.Parameters
	case Observable:
		return &b.d.Observables
	}
	return &b.d.Definitions
}

func (b *dictBuilder) add(kind SymbolKind, name, tex string, original bool, file string, line int) (*Symbol, error) {
	if _, dup := b.d.byName[name]; dup {
		return nil, dsl.Errorf(file, line, "duplicate symbol %q", name)
	}
	table := b.table(kind)
	s := &Symbol{Name: name, TexName: tex, Kind: kind, Index: len(*table), ChainID: -1}
	*table = append(*table, s)
	b.d.byName[name] = s
	if original {
		b.d.originalNames[name] = true
	} else {
		s.IsAuxiliary = true
	}
	return s, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

func (b *dictBuilder) foldDecls(bl *dsl.Block, kind SymbolKind) error {
	for _, ln := range bl.Lines {
		names, texes, err := scanDeclLine(ln)
		if err != nil {
			return err
		}
		for i, name := range names {
			if _, err := b.add(kind, name, texes[i], true, ln.File, ln.Line); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanDeclLine splits a declaration line into names with optional quoted
// tex names: `C "consumption" K, E_a "technology shock"`.
func scanDeclLine(ln dsl.SourceLine) (names, texes []string, err error) {
	s := ln.Text
	i := 0
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == ',' || s[i] == ';' || s[i] == '\t':
			i++
		case s[i] == '"':
			j := strings.IndexByte(s[i+1:], '"')
			if j < 0 {
				return nil, nil, dsl.Errorf(ln.File, ln.Line, "unterminated tex name")
			}
			if len(names) == 0 {
				return nil, nil, dsl.Errorf(ln.File, ln.Line, "tex name with no preceding symbol")
			}
			texes[len(texes)-1] = s[i+1 : i+1+j]
			i += j + 2
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != ',' && s[j] != ';' && s[j] != '"' && s[j] != '\t' {
				j++
			}
			name := s[i:j]
			if !identRe.MatchString(name) {
				return nil, nil, dsl.Errorf(ln.File, ln.Line, "invalid symbol name %q", name)
			}
			names = append(names, name)
			texes = append(texes, "")
			i = j
		}
	}
	return names, texes, nil
}

var chainRe = regexp.MustCompile(
	`^chain\(\s*name\s*=\s*(\w+)\s*,\s*number_of_states\s*=\s*(\d+)` +
		`(?:\s*,\s*controlled_parameters\s*=\s*\[([^\]]*)\])?` +
		`(?:\s*,\s*endogenous\s*=\s*(true|false))?\s*\)\s*;?$`)

func (b *dictBuilder) foldChains(bl *dsl.Block) error {
	for _, ln := range bl.Lines {
		m := chainRe.FindStringSubmatch(ln.Text)
		if m == nil {
			return dsl.Errorf(ln.File, ln.Line, "malformed markov chain declaration %q", ln.Text)
		}
		name := m[1]
		for _, c := range b.d.Chains {
			if c.Name == name {
				return dsl.Errorf(ln.File, ln.Line, "duplicate markov chain %q", name)
			}
		}
		n, _ := strconv.Atoi(m[2])
		if n < 2 {
			return dsl.Errorf(ln.File, ln.Line, "markov chain %q needs at least 2 states", name)
		}
		chain := &MarkovChain{Name: name, NumStates: n, IsEndogenous: m[4] == "true"}
		chainID := len(b.d.Chains)
		if m[3] != "" {
			for _, p := range strings.Split(m[3], ",") {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				sym, ok := b.d.byName[p]
				if !ok || sym.Kind != Parameter {
					return dsl.Errorf(ln.File, ln.Line, "chain %q controls unknown parameter %q", name, p)
				}
				sym.IsSwitching = true
				sym.ChainID = chainID
				chain.ControlledParams = append(chain.ControlledParams, p)
			}
		}
		b.d.Chains = append(b.d.Chains, chain)
	}
	// Register the transition probabilities now so the parameterization
	// block can calibrate them.
	b.registerTransitionProbs()
	return nil
}

func (b *dictBuilder) foldLogVars(bl *dsl.Block) error {
	for _, ln := range bl.Lines {
		names, _, err := scanDeclLine(ln)
		if err != nil {
			return err
		}
		for _, name := range names {
			sym, ok := b.d.byName[name]
			if !ok || sym.Kind != Endogenous {
				return dsl.Errorf(ln.File, ln.Line, "log_vars entry %q is not a declared endogenous variable", name)
			}
			renamed := "log_" + name
			if _, dup := b.d.byName[renamed]; dup {
				return dsl.Errorf(ln.File, ln.Line, "log_vars rename collides with existing symbol %q", renamed)
			}
			delete(b.d.byName, name)
			sym.Name = renamed
			sym.IsLogVar = true
			b.d.byName[renamed] = sym
			b.d.LogRenames[name] = renamed
			b.d.originalNames[renamed] = true
		}
	}
	return nil
}

func (b *dictBuilder) foldObservables(bl *dsl.Block) error {
	for _, ln := range bl.Lines {
		names, texes, err := scanDeclLine(ln)
		if err != nil {
			return err
		}
		for i, name := range names {
			target, ok := b.d.byName[name]
			if !ok {
				if renamed, was := b.d.LogRenames[name]; was {
					target = b.d.byName[renamed]
				} else {
					return dsl.Errorf(ln.File, ln.Line, "observable %q is not a declared variable", name)
				}
			}
			if target.Kind != Endogenous && target.Kind != Exogenous {
				return dsl.Errorf(ln.File, ln.Line, "observable %q must be endogenous or exogenous", name)
			}
			target.IsObserved = true
			obs := &Symbol{
				Name: target.Name, TexName: texes[i], Kind: Observable,
				Index: len(b.d.Observables), ChainID: -1, IsObserved: true,
			}
			b.d.Observables = append(b.d.Observables, obs)
		}
	}
	return nil
}

var calibRe = regexp.MustCompile(`^(\w+)(?:\(\s*(\w+)\s*,\s*(\d+)\s*\))?\s*,\s*([^,;]+)$`)

func (b *dictBuilder) foldParameterization(bl *dsl.Block) error {
	for _, ln := range bl.Lines {
		for _, stmt := range strings.Split(ln.Text, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			m := calibRe.FindStringSubmatch(stmt)
			if m == nil {
				return dsl.Errorf(ln.File, ln.Line, "malformed parameterization entry %q", stmt)
			}
			name := m[1]
			sym, ok := b.d.byName[name]
			if !ok || sym.Kind != Parameter {
				return dsl.Errorf(ln.File, ln.Line, "parameterization of unknown parameter %q", name)
			}
			val, err := strconv.ParseFloat(strings.TrimSpace(m[4]), 64)
			if err != nil {
				return dsl.Errorf(ln.File, ln.Line, "bad value for parameter %q: %v", name, err)
			}
			entry := Calib{Name: name, Value: val}
			if m[2] != "" {
				if !sym.IsSwitching {
					return dsl.Errorf(ln.File, ln.Line, "parameter %q is not controlled by a markov chain", name)
				}
				entry.Chain = m[2]
				entry.State, _ = strconv.Atoi(m[3])
				if sym.ChainID < 0 || b.d.Chains[sym.ChainID].Name != entry.Chain {
					return dsl.Errorf(ln.File, ln.Line, "parameter %q is not controlled by chain %q", name, entry.Chain)
				}
				if entry.State < 1 || entry.State > b.d.Chains[sym.ChainID].NumStates {
					return dsl.Errorf(ln.File, ln.Line, "state %d out of range for chain %q", entry.State, entry.Chain)
				}
			} else if sym.IsSwitching {
				return dsl.Errorf(ln.File, ln.Line, "switching parameter %q needs a (chain,state) qualifier", name)
			}
			b.d.Calibration = append(b.d.Calibration, entry)
		}
	}
	return nil
}

// registerTransitionProbs adds the <chain>_tp_<i>_<j> parameters for
// every off-diagonal transition of every declared chain.
func (b *dictBuilder) registerTransitionProbs() {
	for id, chain := range b.d.Chains {
		for i := 1; i <= chain.NumStates; i++ {
			for j := 1; j <= chain.NumStates; j++ {
				if i == j {
					continue
				}
				name := chain.Name + "_tp_" + strconv.Itoa(i) + "_" + strconv.Itoa(j)
				if _, exists := b.d.byName[name]; exists {
					continue
				}
				s := &Symbol{Name: name, Kind: Parameter, Index: len(b.d.Parameters), ChainID: id}
				b.d.Parameters = append(b.d.Parameters, s)
				b.d.byName[name] = s
			}
		}
	}
}
