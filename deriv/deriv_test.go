package deriv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irisccy/rise/deriv"
	"github.com/irisccy/rise/dsl"
	"github.com/irisccy/rise/model"
)

func compileSource(t *testing.T, src string) *model.CompiledModel {
	t.Helper()
	blocks, err := dsl.Extract(dsl.Lines("test.rs", src))
	require.NoError(t, err)
	dict, err := model.BuildDictionary(blocks, nil)
	require.NoError(t, err)
	cm, err := model.Compile(dict, blocks, model.Options{}, nil)
	require.NoError(t, err)
	return cm
}

const rbcSource = `endogenous C K
exogenous E
parameters alpha beta
model;
C = alpha*K(-1) + E;
K = beta*K(-1) + C(+1);
parameterization
alpha, 0.3;
beta, 0.99;`

func buildBundle(t *testing.T, src string, cfg deriv.Config) *deriv.Bundle {
	t.Helper()
	b, err := deriv.BuildRoutines(compileSource(t, src), cfg, nil)
	require.NoError(t, err)
	return b
}

func TestBuildPartition(t *testing.T) {
	cm := compileSource(t, rbcSource)
	p := deriv.BuildPartition(cm.Dict, cm.IncidenceAfter, cm.Order)

	assert.Equal(t, []int{0}, p.Forward, "C appears with a lead")
	assert.Equal(t, []int{1}, p.Backward, "K appears with a lag")
	assert.Empty(t, p.Both)
	assert.Empty(t, p.Static)
	assert.Equal(t, []int{1}, p.Predetermined)

	assert.Equal(t, 1, p.Siz["forward"])
	assert.Equal(t, 1, p.Siz["shocks"])
	assert.Equal(t, 2, p.Siz["parameters"])

	assert.Equal(t, 0, p.Offsets["lead"])
	assert.Equal(t, 1, p.Offsets["current"])
	assert.Equal(t, 3, p.Offsets["lag"])
	assert.Equal(t, 4, p.Offsets["shock"])
}

func TestBuildRoutines_DynamicWrtLayout(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 2})
	dyn := b.Routines["dynamic"]
	require.NotNil(t, dyn)
	assert.Equal(t, []string{"y_1", "y_2", "y_3", "y_4", "x_1"}, dyn.Wrt)
	require.Len(t, dyn.Derivatives, 2)
	assert.Len(t, dyn.Code, 2)
}

func TestBuildRoutines_DynamicJacobianValues(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1})
	dyn := b.Routines["dynamic"]
	jac, err := dyn.Jacobian(deriv.Binding{
		Y:     []float64{1, 1, 1, 1},
		X:     []float64{0},
		Param: []float64{0.3, 0.99},
	})
	require.NoError(t, err)

	// d eq1 / d [C(+1) C K K(-1) E] = [0 1 0 -alpha -1]
	assert.InDelta(t, 0, jac.At(0, 0), 1e-12)
	assert.InDelta(t, 1, jac.At(0, 1), 1e-12)
	assert.InDelta(t, -0.3, jac.At(0, 3), 1e-12)
	assert.InDelta(t, -1, jac.At(0, 4), 1e-12)
	// d eq2 / d [C(+1) C K K(-1) E] = [-1 0 1 -beta 0]
	assert.InDelta(t, -1, jac.At(1, 0), 1e-12)
	assert.InDelta(t, 1, jac.At(1, 2), 1e-12)
	assert.InDelta(t, -0.99, jac.At(1, 3), 1e-12)
}

func TestBuildRoutines_LinearModelHasNoSecondOrder(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 2})
	hess := b.Routines["dynamic"].Derivatives[1]
	assert.Empty(t, hess.Entries)
}

func TestBuildRoutines_FirstOrderStableAcrossMaxOrder(t *testing.T) {
	b1 := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1})
	b2 := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 2})
	j1 := b1.Routines["dynamic"].Derivatives[0]
	j2 := b2.Routines["dynamic"].Derivatives[0]
	require.Len(t, j2.Entries, len(j1.Entries))
	for i := range j1.Entries {
		assert.Equal(t, j1.Entries[i].Code, j2.Entries[i].Code)
	}
}

func TestBuildRoutines_StaticAndBGP(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1})

	static := b.Routines["static"]
	require.NotNil(t, static)
	assert.Equal(t, []string{"y_1", "y_2"}, static.Wrt)

	bgp := b.Routines["bgp"]
	require.NotNil(t, bgp)
	assert.Equal(t, []string{"y_1", "y_2", "y_3"}, bgp.Wrt, "currents plus the lag block")
}

func TestBuildRoutines_StationarySkipsBGP(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1, StationaryModel: true})
	assert.Nil(t, b.Routines["bgp"])
}

func TestBuildRoutines_ParameterDerivatives(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1, ParameterDifferentiation: true})
	params := b.Routines["params"]
	require.NotNil(t, params)
	assert.Equal(t, []string{"param_1", "param_2"}, params.Wrt)

	jac, err := params.Jacobian(deriv.Binding{Y: []float64{1, 1, 1, 2}, X: []float64{0}, Param: []float64{0.3, 0.99}})
	require.NoError(t, err)
	// d eq1/d alpha = -K(-1), d eq2/d beta = -K(-1).
	assert.InDelta(t, -2, jac.At(0, 0), 1e-12)
	assert.InDelta(t, -2, jac.At(1, 1), 1e-12)
}

func TestBuildRoutines_NoParamsWithoutFlag(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1})
	assert.Nil(t, b.Routines["params"])
}

func TestRoutine_EvalResiduals(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1})
	dyn := b.Routines["dynamic"]
	// C = alpha*K(-1) + E holds at C=0.6, K(-1)=2, E=0.
	res, err := dyn.Eval(deriv.Binding{
		Y:     []float64{0.6, 0.6, 2.58, 2},
		X:     []float64{0},
		Param: []float64{0.3, 0.99},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.AtVec(0), 1e-12)
	assert.InDelta(t, 0, res.AtVec(1), 1e-12)
}

func TestRoutine_Eval_MissingBinding(t *testing.T) {
	b := buildBundle(t, rbcSource, deriv.Config{MaxDerivOrder: 1})
	_, err := b.Routines["dynamic"].Eval(deriv.Binding{Y: []float64{1}})
	require.Error(t, err)
}

func TestBuildRoutines_SteadyStateRoutine(t *testing.T) {
	b := buildBundle(t, `endogenous C K
parameters alpha
model;
C = alpha*K;
K = C;
steady_state_model;
K = alpha;
C = alpha*K;`, deriv.Config{MaxDerivOrder: 1})
	ss := b.Routines["steady_state_model"]
	require.NotNil(t, ss)
	assert.Equal(t, []string{"y_2 = param_1", "y_1 = param_1*y_2"}, ss.Code)
}

func TestBuildRoutines_ExogenousDefinitions(t *testing.T) {
	b := buildBundle(t, `endogenous C
parameters alpha
model;
C = alpha;
exogenous_definitions;
OIL = data(oil_price);
GAP = hpfilter(log_gdp);`, deriv.Config{MaxDerivOrder: 1})

	ed := b.Routines["exogenous_definitions"]
	require.NotNil(t, ed)
	assert.Equal(t, []string{"OIL = data(oil_price);", "GAP = hpfilter(log_gdp);"}, ed.Code)
	assert.Empty(t, ed.Derivatives)
}

func TestBuildTransition_TwoStateChain(t *testing.T) {
	b := buildBundle(t, `endogenous C
parameters alpha
markov_chains
chain(name=pol, number_of_states=2);
model;
C = alpha;
parameterization
alpha, 1;
pol_tp_1_2, 0.1;
pol_tp_2_1, 0.2;`, deriv.Config{MaxDerivOrder: 1})

	tr := b.Transition
	require.NotNil(t, tr)
	require.Len(t, tr.Chains, 1)
	assert.Equal(t, 2, tr.Chains[0].States)

	// Parameters: alpha, pol_tp_1_2, pol_tp_2_1.
	q, err := tr.Eval([]float64{1, 0.1, 0.2})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, q.At(0, 0), 1e-12)
	assert.InDelta(t, 0.1, q.At(0, 1), 1e-12)
	assert.InDelta(t, 0.2, q.At(1, 0), 1e-12)
	assert.InDelta(t, 0.8, q.At(1, 1), 1e-12)
}

func TestBuildTransition_TwoChainsProduct(t *testing.T) {
	b := buildBundle(t, `endogenous C
parameters alpha
markov_chains
chain(name=a, number_of_states=2);
chain(name=b, number_of_states=2);
model;
C = alpha;
parameterization
alpha, 1;
a_tp_1_2, 0.1;
a_tp_2_1, 0.2;
b_tp_1_2, 0.3;
b_tp_2_1, 0.4;`, deriv.Config{MaxDerivOrder: 1})

	require.Len(t, b.Dict.Regimes, 4)
	// Parameters: alpha, a_tp_1_2, a_tp_2_1, b_tp_1_2, b_tp_2_1.
	q, err := b.Transition.Eval([]float64{1, 0.1, 0.2, 0.3, 0.4})
	require.NoError(t, err)
	// Regime (1,1) -> (1,1): (1-0.1)*(1-0.3).
	assert.InDelta(t, 0.63, q.At(0, 0), 1e-12)
	// Regime (1,1) -> (2,2): 0.1*0.3.
	assert.InDelta(t, 0.03, q.At(0, 3), 1e-12)
	// Rows sum to one.
	for r := 0; r < 4; r++ {
		sum := 0.0
		for s := 0; s < 4; s++ {
			sum += q.At(r, s)
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
}

func TestBuildRoutines_PlannerObjective(t *testing.T) {
	b := buildBundle(t, `endogenous C
parameters beta
model;
C = 1;
planner_objective;
discount = beta;
log(C);`, deriv.Config{MaxDerivOrder: 1})

	pl := b.Routines["planner_objective"]
	require.NotNil(t, pl)
	require.Len(t, pl.Derivatives, 2)
	require.NotEmpty(t, b.Planner)
	assert.Equal(t, model.OSRDerivative, b.Planner[0].Type)
}
