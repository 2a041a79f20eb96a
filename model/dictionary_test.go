package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irisccy/rise/dsl"
	"github.com/irisccy/rise/model"
)

func buildDict(t *testing.T, src string) *model.Dictionary {
	t.Helper()
	blocks, err := dsl.Extract(dsl.Lines("test.rs", src))
	require.NoError(t, err)
	dict, err := model.BuildDictionary(blocks, nil)
	require.NoError(t, err)
	return dict
}

func buildDictErr(t *testing.T, src string) error {
	t.Helper()
	blocks, err := dsl.Extract(dsl.Lines("test.rs", src))
	require.NoError(t, err)
	_, err = model.BuildDictionary(blocks, nil)
	require.Error(t, err)
	return err
}

func TestBuildDictionary_TablesAndTexNames(t *testing.T) {
	dict := buildDict(t, `endogenous C "consumption" K
exogenous E_a "technology shock"
parameters alpha beta`)

	require.Len(t, dict.Endogenous, 2)
	assert.Equal(t, "consumption", dict.Endogenous[0].TexName)
	assert.Equal(t, 1, dict.Endogenous[1].Index)

	sym, ok := dict.Lookup("E_a")
	require.True(t, ok)
	assert.Equal(t, model.Exogenous, sym.Kind)
	assert.Equal(t, "technology shock", sym.TexName)

	assert.True(t, dict.IsOriginal("alpha"))
	assert.False(t, dict.IsOriginal("gamma"))
}

func TestBuildDictionary_DuplicateSymbol(t *testing.T) {
	err := buildDictErr(t, "endogenous C\nexogenous C")
	var perr *dsl.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Msg, `duplicate symbol "C"`)
}

func TestBuildDictionary_InvalidName(t *testing.T) {
	err := buildDictErr(t, "endogenous 1C")
	assert.Contains(t, err.Error(), "invalid symbol name")
}

func TestBuildDictionary_MarkovChain(t *testing.T) {
	dict := buildDict(t, `parameters alpha beta
markov_chains
chain(name=pol, number_of_states=2, controlled_parameters=[alpha]);`)

	require.Len(t, dict.Chains, 1)
	assert.Equal(t, 2, dict.Chains[0].NumStates)
	assert.Equal(t, []string{"alpha"}, dict.Chains[0].ControlledParams)

	alpha, _ := dict.Lookup("alpha")
	assert.True(t, alpha.IsSwitching)
	assert.Equal(t, 0, alpha.ChainID)
	beta, _ := dict.Lookup("beta")
	assert.False(t, beta.IsSwitching)

	// Off-diagonal transition probabilities are auto-registered.
	tp, ok := dict.Lookup("pol_tp_1_2")
	require.True(t, ok)
	assert.Equal(t, model.Parameter, tp.Kind)
	_, ok = dict.Lookup("pol_tp_1_1")
	assert.False(t, ok, "diagonal probabilities are implied")

	chain, from, to, ok := dict.TransitionProb("pol_tp_2_1")
	require.True(t, ok)
	assert.Equal(t, "pol", chain.Name)
	assert.Equal(t, 2, from)
	assert.Equal(t, 1, to)
}

func TestBuildDictionary_RegimeEnumeration(t *testing.T) {
	dict := buildDict(t, `markov_chains
chain(name=a, number_of_states=2);
chain(name=b, number_of_states=3);`)

	require.Len(t, dict.Regimes, 6)
	// Declaration order, rightmost chain fastest.
	assert.Equal(t, []int{1, 1}, dict.Regimes[0].States)
	assert.Equal(t, []int{1, 2}, dict.Regimes[1].States)
	assert.Equal(t, []int{1, 3}, dict.Regimes[2].States)
	assert.Equal(t, []int{2, 1}, dict.Regimes[3].States)
	assert.Equal(t, 5, dict.Regimes[5].Index)
}

func TestBuildDictionary_NoChains_SingleRegime(t *testing.T) {
	dict := buildDict(t, "endogenous C")
	require.Len(t, dict.Regimes, 1)
	assert.Empty(t, dict.Regimes[0].States)
}

func TestBuildDictionary_LogVars(t *testing.T) {
	dict := buildDict(t, "endogenous C K\nlog_vars K")

	_, ok := dict.Lookup("K")
	assert.False(t, ok, "original name is renamed away")
	sym, ok := dict.Lookup("log_K")
	require.True(t, ok)
	assert.True(t, sym.IsLogVar)
	assert.Equal(t, "log_K", dict.LogRenames["K"])
}

func TestBuildDictionary_LogVars_NotEndogenous(t *testing.T) {
	err := buildDictErr(t, "exogenous E\nlog_vars E")
	assert.Contains(t, err.Error(), "not a declared endogenous variable")
}

func TestBuildDictionary_Observables(t *testing.T) {
	dict := buildDict(t, "endogenous C K\nobservables C")
	require.Len(t, dict.Observables, 1)
	c, _ := dict.Lookup("C")
	assert.True(t, c.IsObserved)
	k, _ := dict.Lookup("K")
	assert.False(t, k.IsObserved)
}

func TestBuildDictionary_Observables_Unknown(t *testing.T) {
	err := buildDictErr(t, "endogenous C\nobservables Z")
	assert.Contains(t, err.Error(), "not a declared variable")
}

func TestBuildDictionary_Parameterization(t *testing.T) {
	dict := buildDict(t, `parameters alpha beta
markov_chains
chain(name=pol, number_of_states=2, controlled_parameters=[alpha]);
parameterization
beta, 0.99;
alpha(pol,1), 0.3;
alpha(pol,2), 0.5;
pol_tp_1_2, 0.1;`)

	require.Len(t, dict.Calibration, 4)
	assert.Equal(t, model.Calib{Name: "beta", Value: 0.99}, dict.Calibration[0])
	assert.Equal(t, model.Calib{Name: "alpha", Chain: "pol", State: 2, Value: 0.5}, dict.Calibration[2])
	assert.Equal(t, model.Calib{Name: "pol_tp_1_2", Value: 0.1}, dict.Calibration[3])
}

func TestBuildDictionary_Parameterization_SwitchingNeedsState(t *testing.T) {
	err := buildDictErr(t, `parameters alpha
markov_chains
chain(name=pol, number_of_states=2, controlled_parameters=[alpha]);
parameterization
alpha, 0.3;`)
	assert.Contains(t, err.Error(), "needs a (chain,state) qualifier")
}

func TestBuildDictionary_Parameterization_StateOutOfRange(t *testing.T) {
	err := buildDictErr(t, `parameters alpha
markov_chains
chain(name=pol, number_of_states=2, controlled_parameters=[alpha]);
parameterization
alpha(pol,3), 0.3;`)
	assert.Contains(t, err.Error(), "out of range")
}

func TestBuildDictionary_ChainNeedsTwoStates(t *testing.T) {
	err := buildDictErr(t, "markov_chains\nchain(name=pol, number_of_states=1);")
	assert.Contains(t, err.Error(), "at least 2 states")
}
