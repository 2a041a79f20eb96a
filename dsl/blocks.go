package dsl

import (
	"strings"
)

// Block keyword names. A line whose first word is one of these opens a
// new block; everything after the keyword on the same line is content.
const (
	BlockEndogenous      = "endogenous"
	BlockExogenous       = "exogenous"
	BlockParameters      = "parameters"
	BlockObservables     = "observables"
	BlockDefinitions     = "definitions"
	BlockLogVars         = "log_vars"
	BlockMarkovChains    = "markov_chains"
	BlockModel           = "model"
	BlockSteadyState     = "steady_state_model"
	BlockParameterize    = "parameterization"
	BlockRestrictions    = "parameter_restrictions"
	BlockExogenousDefs   = "exogenous_definitions"
	BlockPlannerObjectiv = "planner_objective"
)

var blockKeywords = map[string]bool{
	BlockEndogenous:      true,
	BlockExogenous:       true,
	BlockParameters:      true,
	BlockObservables:     true,
	BlockDefinitions:     true,
	BlockLogVars:         true,
	BlockMarkovChains:    true,
	BlockModel:           true,
	BlockSteadyState:     true,
	BlockParameterize:    true,
	BlockRestrictions:    true,
	BlockExogenousDefs:   true,
	BlockPlannerObjectiv: true,
}

// Block is one named section of the model file with its raw line listing.
type Block struct {
	Name  string
	Lines []SourceLine
}

// Blocks is the ordered set of extracted blocks.
type Blocks struct {
	ordered []*Block
	byName  map[string]*Block
}

// Get returns the named block, or nil when absent.
func (b *Blocks) Get(name string) *Block {
	if b == nil {
		return nil
	}
	return b.byName[name]
}

// All returns the blocks in declaration order.
func (b *Blocks) All() []*Block { return b.ordered }

// Extract partitions source lines into named blocks. The first line must
// open a block; duplicate block names are structural errors.
func Extract(lines []SourceLine) (*Blocks, error) {
	out := &Blocks{byName: map[string]*Block{}}
	var current *Block
	for _, ln := range lines {
		word, rest := firstWord(ln.Text)
		if blockKeywords[word] {
			if out.byName[word] != nil {
				return nil, Errorf(ln.File, ln.Line, "duplicate block %q", word)
			}
			current = &Block{Name: word}
			out.ordered = append(out.ordered, current)
			out.byName[word] = current
			if rest != "" {
				current.Lines = append(current.Lines, SourceLine{File: ln.File, Line: ln.Line, Text: rest})
			}
			continue
		}
		if current == nil {
			return nil, Errorf(ln.File, ln.Line, "unknown block %q", word)
		}
		current.Lines = append(current.Lines, ln)
	}
	return out, nil
}

// firstWord splits off the leading identifier of a line. Punctuation
// directly after the word (e.g. "model;") is treated as content.
func firstWord(s string) (word, rest string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	word = s[:i]
	rest = strings.TrimSpace(strings.TrimPrefix(s[i:], ";"))
	return word, rest
}
