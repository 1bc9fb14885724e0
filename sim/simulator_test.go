package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transmission-sim/transmission-sim/sim/equilibrium"
	"github.com/transmission-sim/transmission-sim/sim/intervention"
	"github.com/transmission-sim/transmission-sim/sim/internal/testutil"
	"github.com/transmission-sim/transmission-sim/sim/output"
	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/state"
)

func mustEquilibrium(t *testing.T, s params.Snapshot) *InitializedState {
	t.Helper()
	init, err := SetEquilibrium(s, 8)
	require.NoError(t, err)
	return init
}

func column(t *testing.T, tbl *output.Table, name string) []float64 {
	t.Helper()
	col, err := tbl.Column(name)
	require.NoError(t, err)
	return col
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func TestSetEquilibrium_Idempotent(t *testing.T) {
	s := testutil.WithPopulation(t, params.LoadDefaultParameters(), 300)

	a := mustEquilibrium(t, s)
	b := mustEquilibrium(t, s)

	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.Solution.FOI, b.Solution.FOI)
}

func TestSetEquilibrium_TinyBudget_ConvergenceError(t *testing.T) {
	_, err := SetEquilibriumWith(params.LoadDefaultParameters(), 8, equilibrium.Options{MaxIterations: 1})

	var ce *equilibrium.ConvergenceError
	assert.True(t, errors.As(err, &ce))
}

func TestRunSimulation_Deterministic(t *testing.T) {
	// GIVEN one equilibrium state with nets and treatment scheduled
	s := testutil.WithNets(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 300), []int{20}, []float64{0.6})
	s = params.SetDrugs(s, []params.DrugParameters{params.ALParams()})
	s, err := params.SetClinicalTreatment(s, 0, []int{0}, []float64{0.5})
	require.NoError(t, err)
	init := mustEquilibrium(t, s)

	// WHEN it is run twice
	a, err := RunSimulation(context.Background(), 120, init)
	require.NoError(t, err)
	b, err := RunSimulation(context.Background(), 120, init)
	require.NoError(t, err)

	// THEN the tables are bit-identical
	assert.Equal(t, 120, a.Rows())
	assert.True(t, a.Frozen())
	assert.True(t, a.Equal(b))
}

func TestRunSimulation_DoesNotMutateInitializedState(t *testing.T) {
	init := mustEquilibrium(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 200))
	before := init.State.Clone()

	_, err := RunSimulation(context.Background(), 50, init)
	require.NoError(t, err)

	assert.Equal(t, before, init.State)
}

func TestRunSimulation_ZeroCoverageNetMatchesBaseline(t *testing.T) {
	// GIVEN the same population with and without a coverage-0 net round
	base := testutil.WithPopulation(t, params.LoadDefaultParameters(), 300)
	withZero := testutil.WithNets(t, base, []int{10}, []float64{0})

	a, err := RunSimulation(context.Background(), 60, mustEquilibrium(t, base))
	require.NoError(t, err)
	b, err := RunSimulation(context.Background(), 60, mustEquilibrium(t, withZero))
	require.NoError(t, err)

	// THEN mosquito death rates, and everything else, are unchanged
	assert.Equal(t, column(t, a, "mu_gamb"), column(t, b, "mu_gamb"))
	assert.True(t, a.Equal(b))
}

func TestRunSimulation_NoInterventionsHoldsMosquitoTotal(t *testing.T) {
	init := mustEquilibrium(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 300))
	tbl, err := RunSimulation(context.Background(), 100, init)
	require.NoError(t, err)

	m0 := init.State.Mosquitoes[0].Total()
	for i, m := range column(t, tbl, "total_M_gamb") {
		testutil.AssertFloat64Equal(t, "total_M_gamb", m0, m, 1e-9)
		if t.Failed() {
			t.Fatalf("drift at day %d", i)
		}
	}
	for _, mu := range column(t, tbl, "mu_gamb") {
		testutil.AssertFloat64Equal(t, "mu_gamb", params.GambParams().Mum, mu, 1e-12)
	}
}

func TestRunSimulation_ScenarioA_TwoDeclinesWithRecovery(t *testing.T) {
	// GIVEN nets at days 365 and 1460, 50% coverage, retention 1825, EIR 8
	init := mustEquilibrium(t, testutil.ScenarioA(t))

	// WHEN run for 2555 days
	tbl, err := RunSimulation(context.Background(), testutil.ScenarioASteps, init)
	require.NoError(t, err)
	m := column(t, tbl, "total_M_gamb")
	require.Len(t, m, testutil.ScenarioASteps)

	first, second := testutil.ScenarioANetRounds[0], testutil.ScenarioANetRounds[1]
	pre := m[first-1]

	// THEN the population is flat before the first round
	testutil.AssertFloat64Equal(t, "pre-intervention total_M", m[0], pre, 1e-9)

	// AND declines after the first round
	trough1 := minOf(m[first:second])
	assert.Less(t, trough1, 0.8*pre)
	assert.Less(t, m[first+60], 0.9*pre)

	// AND partially recovers before the second round
	beforeSecond := m[second-1]
	assert.Greater(t, beforeSecond, trough1)
	assert.Less(t, beforeSecond, pre)

	// AND declines again after the second, then recovers partially
	trough2 := minOf(m[second:])
	assert.Less(t, trough2, 0.9*beforeSecond)
	assert.Greater(t, m[len(m)-1], trough2)

	// AND net use appears only after the first round
	nets := column(t, tbl, "n_use_net")
	assert.Equal(t, 0.0, nets[first-1])
	assert.Greater(t, nets[first], 0.0)
}

func TestRunSimulation_TreatmentCuresClinicalCases(t *testing.T) {
	s := testutil.WithPopulation(t, params.LoadDefaultParameters(), 500)
	s = params.SetDrugs(s, []params.DrugParameters{params.ALParams()})
	s, err := params.SetClinicalTreatment(s, 0, []int{0}, []float64{0.9})
	require.NoError(t, err)

	tbl, err := RunSimulation(context.Background(), 200, mustEquilibrium(t, s))
	require.NoError(t, err)

	var treated, inTreatment float64
	for _, v := range column(t, tbl, "n_treated") {
		treated += v
	}
	for _, v := range column(t, tbl, "T_count") {
		inTreatment += v
	}
	assert.Greater(t, treated, 0.0)
	assert.Greater(t, inTreatment, 0.0)
}

func TestRunSimulation_OutOfOrderSchedule_FailsBeforeFirstStep(t *testing.T) {
	s := testutil.WithNets(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 100), []int{300, 100}, []float64{0.5, 0.5})
	init := mustEquilibrium(t, s)

	tbl, err := RunSimulation(context.Background(), 10, init)

	var se *intervention.ScheduleError
	require.True(t, errors.As(err, &se))
	assert.Nil(t, tbl)
}

func TestRun_UnknownColumn_SchemaError(t *testing.T) {
	init := mustEquilibrium(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 100))

	_, err := Run(context.Background(), 10, init, RunConfig{Columns: []string{"Infected_fun_count"}})

	var se *output.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestRun_ColumnSubset(t *testing.T) {
	init := mustEquilibrium(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 100))

	tbl, err := Run(context.Background(), 5, init, RunConfig{Columns: []string{"n_detect_730_3650", "n_730_3650"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"timestep", "n_detect_730_3650", "n_730_3650"}, tbl.Columns())
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, column(t, tbl, "timestep"))
}

func TestRunSimulation_NegativeTimesteps_ValidationError(t *testing.T) {
	init := mustEquilibrium(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 100))

	_, err := RunSimulation(context.Background(), -1, init)

	var ve *params.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has("timesteps"))
}

// cancelAfter reports cancellation once Err has been consulted n times.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	c.n--
	if c.n < 0 {
		return context.Canceled
	}
	return nil
}

func TestRunSimulation_Cancelled_ReturnsNoTable(t *testing.T) {
	init := mustEquilibrium(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 100))

	t.Run("before the first step", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tbl, err := RunSimulation(ctx, 50, init)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, tbl)
	})

	t.Run("between steps", func(t *testing.T) {
		tbl, err := RunSimulation(&cancelAfter{Context: context.Background(), n: 10}, 50, init)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, tbl)
	})
}

func TestSimulator_TreatmentEventsApplyPerDrug(t *testing.T) {
	// GIVEN two drugs with disjoint timelines
	s := testutil.WithPopulation(t, params.LoadDefaultParameters(), 50)
	s = params.SetDrugs(s, []params.DrugParameters{params.ALParams(), params.SPAQParams()})
	s, err := params.SetClinicalTreatment(s, 0, []int{0, 10}, []float64{0.4, 0})
	require.NoError(t, err)
	s, err = params.SetClinicalTreatment(s, 1, []int{10}, []float64{0.3})
	require.NoError(t, err)

	sim, err := NewSimulator(mustEquilibrium(t, s), 20, RunConfig{})
	require.NoError(t, err)

	// WHEN stepping through the switch
	for day := int64(0); day < 20; day++ {
		require.NoError(t, sim.Step(day))
		// THEN the applied coverage matches the scheduler at every day
		assert.Equal(t, sim.timeline.TreatmentCoverage(int(day)), sim.TreatmentCoverage(), "day %d", day)
	}
	assert.Equal(t, []float64{0, 0.3}, sim.TreatmentCoverage())
}

func TestSimulator_LiverStageDelaysBloodStageOnset(t *testing.T) {
	// GIVEN a 20-day liver stage
	s, err := params.ApplyOverrides(testutil.WithPopulation(t, params.LoadDefaultParameters(), 400), map[string]float64{"dur_E": 20})
	require.NoError(t, err)
	sim, err := NewSimulator(mustEquilibrium(t, s), 60, RunConfig{})
	require.NoError(t, err)
	h := sim.State().Humans

	bitten := map[int]int32{} // susceptible individual -> day of the bite
	onsets := 0
	free := make([]bool, h.Len())
	for day := int64(0); day < 60; day++ {
		for i := range free {
			free[i] = h.State[i] == state.Susceptible && !h.Latent(i)
		}
		require.NoError(t, sim.Step(day))

		for i := 0; i < h.Len(); i++ {
			t0, tracked := bitten[i]
			switch {
			case tracked && h.Age[i] == 0:
				delete(bitten, i)
			case tracked && int32(day)-t0 < 20:
				// THEN the state is untouched while the liver stage develops
				assert.Equal(t, state.Susceptible, h.State[i], "individual %d day %d", i, day)
				assert.Equal(t, t0, h.InfectTime[i])
			case tracked:
				// AND the blood stage starts exactly dur_E days after the bite
				assert.NotEqual(t, state.Susceptible, h.State[i], "individual %d day %d", i, day)
				assert.False(t, h.Latent(i))
				delete(bitten, i)
				onsets++
			case free[i] && day < 30 && h.Latent(i):
				assert.Equal(t, int32(day), h.InfectTime[i])
				bitten[i] = int32(day)
			}
		}
	}
	assert.Greater(t, onsets, 0)
}

func TestRunSimulation_LiverStageOverrideChangesOutput(t *testing.T) {
	run := func(durE float64) *output.Table {
		s, err := params.ApplyOverrides(testutil.WithPopulation(t, params.LoadDefaultParameters(), 300), map[string]float64{"dur_E": durE})
		require.NoError(t, err)
		tbl, err := RunSimulation(context.Background(), 100, mustEquilibrium(t, s))
		require.NoError(t, err)
		return tbl
	}
	a, b := run(12), run(30)
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, column(t, a, "n_infections"), column(t, b, "n_infections"))
}

func TestRunSimulation_LongProphylaxisPreventsInfections(t *testing.T) {
	// GIVEN full treatment coverage with drugs that differ only in how long
	// they protect against reinfection
	infections := func(scale float64) float64 {
		drug := params.ALParams()
		drug.ProphylaxisScale = scale
		s := testutil.WithPopulation(t, params.LoadDefaultParameters(), 500)
		s = params.SetDrugs(s, []params.DrugParameters{drug})
		s, err := params.SetClinicalTreatment(s, 0, []int{0}, []float64{1})
		require.NoError(t, err)

		tbl, err := RunSimulation(context.Background(), 730, mustEquilibrium(t, s))
		require.NoError(t, err)
		var n float64
		for _, v := range column(t, tbl, "n_infections") {
			n += v
		}
		return n
	}

	short, long := infections(0.5), infections(5000)

	// THEN protection that outlasts the run blocks reinfection of everyone treated
	assert.Greater(t, short, 0.0)
	assert.Less(t, long, 0.9*short)
}

func TestSimulator_ModifiersFollowNetDistribution(t *testing.T) {
	s := testutil.WithNets(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 200), []int{5}, []float64{0.5})
	sim, err := NewSimulator(mustEquilibrium(t, s), 10, RunConfig{})
	require.NoError(t, err)

	for day := int64(0); day < 5; day++ {
		require.NoError(t, sim.Step(day))
		assert.Equal(t, 0, sim.Modifiers().NetUsers, "day %d", day)
		assert.InDelta(t, 1.0, sim.Modifiers().Feed[0], 1e-12)
	}
	require.NoError(t, sim.Step(5))
	m := sim.Modifiers()
	assert.Greater(t, m.NetUsers, 0)
	assert.Greater(t, m.Repel[0], 0.0)
	assert.Less(t, m.Feed[0], 1.0)
}
