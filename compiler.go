// Package rise compiles model files into symbolic derivative routines.
// The pipeline reads a model file, folds its declaration blocks into a
// dictionary, compiles and reorders the equations, normalizes parameter
// restrictions, and differentiates every model variant to the requested
// order.
package rise

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/irisccy/rise/deriv"
	"github.com/irisccy/rise/dsl"
	"github.com/irisccy/rise/model"
	"github.com/irisccy/rise/restrict"
)

// Options steers the compilation pipeline. The yaml tags match the
// option names accepted in configuration files.
type Options struct {
	// MaxDerivOrder is the highest derivative order of the dynamic model.
	MaxDerivOrder int `yaml:"max_deriv_order"`

	// ParameterDifferentiation enables first-order derivatives with
	// respect to the parameters.
	ParameterDifferentiation bool `yaml:"parameter_differentiation"`

	// DefinitionsInserted substitutes definition bodies into the model
	// equations instead of keeping def_<i> placeholders.
	DefinitionsInserted bool `yaml:"definitions_inserted"`

	// DefinitionsInParamDifferentiation substitutes definition bodies
	// before parameter differentiation only. Has no effect when
	// DefinitionsInserted is set.
	DefinitionsInParamDifferentiation bool `yaml:"definitions_in_param_differentiation"`

	// AddWelfare injects the recursive welfare equation alongside a
	// planner objective.
	AddWelfare bool `yaml:"add_welfare"`

	// StationaryModel suppresses the balanced-growth-path variant when
	// true. Nil means unknown, and the variant is built.
	StationaryModel *bool `yaml:"stationary_model"`

	// Workers bounds the differentiation worker pool. Zero means one
	// worker per CPU.
	Workers int `yaml:"workers"`
}

// DefaultOptions returns the pipeline defaults: second-order dynamic
// derivatives, no parameter differentiation, definitions kept symbolic.
func DefaultOptions() Options {
	return Options{MaxDerivOrder: 2}
}

// LoadOptions reads options from a yaml file, on top of the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("options file %s: %w", path, err)
	}
	return opts, nil
}

// Compile runs the full pipeline over already-read source lines.
func Compile(lines []dsl.SourceLine, opts Options, logger *zap.Logger) (*deriv.Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	blocks, err := dsl.Extract(lines)
	if err != nil {
		return nil, err
	}
	dict, err := model.BuildDictionary(blocks, logger)
	if err != nil {
		return nil, err
	}
	cm, err := model.Compile(dict, blocks, model.Options{
		DefinitionsInserted: opts.DefinitionsInserted,
		AddWelfare:          opts.AddWelfare,
	}, logger)
	if err != nil {
		return nil, err
	}
	bundle, err := deriv.BuildRoutines(cm, deriv.Config{
		MaxDerivOrder:                     opts.MaxDerivOrder,
		ParameterDifferentiation:          opts.ParameterDifferentiation,
		DefinitionsInserted:               opts.DefinitionsInserted,
		DefinitionsInParamDifferentiation: opts.DefinitionsInParamDifferentiation,
		StationaryModel:                   opts.StationaryModel != nil && *opts.StationaryModel,
		Workers:                           opts.Workers,
	}, logger)
	if err != nil {
		return nil, err
	}
	if bl := blocks.Get(dsl.BlockRestrictions); bl != nil {
		bundle.Restrictions, err = restrict.Normalize(bl.Lines, cm.Dict, logger)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("model compiled",
		zap.Int("equations", len(cm.Equations)),
		zap.Int("endogenous", len(cm.Dict.Endogenous)),
		zap.Int("regimes", len(cm.Dict.Regimes)),
		zap.Int("order", opts.MaxDerivOrder))
	return bundle, nil
}

// CompileFile reads a model file and compiles it.
func CompileFile(path string, opts Options, logger *zap.Logger) (*deriv.Bundle, error) {
	lines, err := dsl.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(lines, opts, logger)
}
