// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/transmission-sim/transmission-sim/sim/equilibrium"
	"github.com/transmission-sim/transmission-sim/sim/intervention"
	"github.com/transmission-sim/transmission-sim/sim/output"
	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/state"
)

// InitializedState is a parameter snapshot together with its equilibrium
// population. It is read-only: every run clones the compartments it starts
// from, so one InitializedState may seed any number of runs.
type InitializedState struct {
	Params   params.Snapshot
	InitEIR  float64
	Solution *equilibrium.Solution
	State    *state.Compartments
}

// SetEquilibrium solves the steady state for an annual EIR and samples the
// individual-based starting population with the snapshot seed.
func SetEquilibrium(s params.Snapshot, initEIR float64) (*InitializedState, error) {
	return SetEquilibriumWith(s, initEIR, equilibrium.DefaultOptions())
}

// SetEquilibriumWith is SetEquilibrium with explicit solver bounds.
func SetEquilibriumWith(s params.Snapshot, initEIR float64, opts equilibrium.Options) (*InitializedState, error) {
	sol, err := equilibrium.Solve(s, initEIR, opts)
	if err != nil {
		return nil, fmt.Errorf("setting equilibrium: %w", err)
	}
	rng := NewPartitionedRNG(NewSimulationKey(s.Seed))
	humans := sol.Sample(s.HumanPopulation, rng.ForSubsystem(SubsystemEquilibrium))
	logrus.Infof("equilibrium for EIR %.3g: mean FOI %.4g/day after %d iterations", initEIR, sol.FOI, sol.Iterations)

	return &InitializedState{
		Params:   s.Clone(),
		InitEIR:  initEIR,
		Solution: sol,
		State: &state.Compartments{
			Humans:     humans,
			Mosquitoes: append([]state.Mosquitoes(nil), sol.Mosquitoes...),
		},
	}, nil
}

// RunConfig selects optional run behaviour.
type RunConfig struct {
	Columns []string // output columns; nil for the full schema
}

// RunSimulation advances init for the given number of daily timesteps and
// returns the frozen output table. Schedule and schema problems are reported
// before the first step; a cancelled context stops the run between steps and
// returns ctx.Err() with no table.
func RunSimulation(ctx context.Context, timesteps int, init *InitializedState) (*output.Table, error) {
	return Run(ctx, timesteps, init, RunConfig{})
}

// Run is RunSimulation with a RunConfig.
func Run(ctx context.Context, timesteps int, init *InitializedState, cfg RunConfig) (*output.Table, error) {
	sim, err := NewSimulator(init, timesteps, cfg)
	if err != nil {
		return nil, err
	}
	return sim.Run(ctx)
}

// Simulator advances one run. It owns its compartments exclusively and is
// not safe for concurrent use.
type Simulator struct {
	Clock   int64
	Horizon int64

	params   params.Snapshot
	timeline *intervention.Timeline
	rates    state.Rates
	rng      *PartitionedRNG
	state    *state.Compartments
	events   *EventQueue

	treatment []float64 // active coverage per drug
	mods      *intervention.Modifiers
	cycles    []intervention.FeedingCycle
	psi       []float64
	rowEIR    []float64 // per-person reference EIR per species before biting heterogeneity
	norm      []float64 // mean(psi * bite weight) per species
	cbar      []float64

	agg   *output.Aggregator
	table *output.Table

	// per-step accumulators
	counters     output.Counters
	clinicalAges []int32
	foim, mu     []float64
}

// NewSimulator prepares a run of horizon timesteps from init.
func NewSimulator(init *InitializedState, horizon int, cfg RunConfig) (*Simulator, error) {
	if horizon < 0 {
		return nil, &params.ValidationError{Violations: []params.Violation{{
			Field: "timesteps", Expected: ">= 0", Actual: fmt.Sprint(horizon),
		}}}
	}
	p := init.Params
	tl, err := intervention.NewTimeline(p)
	if err != nil {
		return nil, fmt.Errorf("building intervention timeline: %w", err)
	}
	agg, err := output.NewAggregator(output.ConfigFor(p), cfg.Columns)
	if err != nil {
		return nil, err
	}

	st := init.State.Clone()
	n, k := st.Humans.Len(), len(p.Species)
	sim := &Simulator{
		Horizon:   int64(horizon),
		params:    p,
		timeline:  tl,
		rates:     state.NewRates(p.Disease),
		rng:       NewPartitionedRNG(NewSimulationKey(p.Seed)),
		state:     st,
		events:    NewEventQueue(),
		treatment: make([]float64, len(p.Drugs)),
		mods:      intervention.NewModifiers(k, n),
		psi:       make([]float64, n),
		rowEIR:    make([]float64, k),
		norm:      make([]float64, k),
		cbar:      make([]float64, k),
		agg:       agg,
		table:     output.NewTable(agg.Columns()),
		foim:      make([]float64, k),
		mu:        make([]float64, k),
	}
	for i, ev := range tl.Events() {
		if ev.Timestep < horizon {
			sim.events.Schedule(newEvent(ev, int64(i)))
		}
	}
	return sim, nil
}

// Run executes every timestep and returns the frozen table.
func (sim *Simulator) Run(ctx context.Context) (*output.Table, error) {
	logrus.Infof("running %d timesteps: %d humans, %d species, %d scheduled events",
		sim.Horizon, sim.state.Humans.Len(), len(sim.params.Species), sim.events.Len())
	for t := int64(0); t < sim.Horizon; t++ {
		if err := ctx.Err(); err != nil {
			logrus.Infof("[day %05d] run cancelled", t)
			return nil, err
		}
		if err := sim.Step(t); err != nil {
			return nil, err
		}
	}
	sim.table.Freeze()
	logrus.Infof("[day %05d] simulation ended", sim.Horizon)
	return sim.table, nil
}

// Step advances one day: scheduled events, vector rates under the current
// net distribution, human and mosquito transitions, demography, then the
// output row.
func (sim *Simulator) Step(t int64) error {
	sim.Clock = t
	sim.counters = output.Counters{}
	sim.clinicalAges = sim.clinicalAges[:0]

	for _, ev := range sim.events.PopDue(t) {
		ev.Execute(sim)
	}

	sim.updateVectorRates(int(t))
	sim.stepMosquitoes()
	sim.stepHumans(int(t))
	sim.stepDemography()
	intervention.RetainNets(sim.timeline.NetLossProbability(), sim.state.Humans, sim.rng.ForSubsystem(SubsystemBednets))

	row := sim.agg.Aggregate(output.StepView{
		Timestep:     int(t),
		Humans:       sim.state.Humans,
		Mosquitoes:   sim.state.Mosquitoes,
		EIR:          sim.rowEIR,
		FOIM:         sim.foim,
		Mu:           sim.mu,
		ClinicalAges: sim.clinicalAges,
		Counters:     sim.counters,
	})
	if err := sim.table.Append(row); err != nil {
		return fmt.Errorf("recording day %d: %w", t, err)
	}
	if t%365 == 0 {
		c := sim.state.Humans.Count()
		logrus.Debugf("[day %05d] S=%d D=%d A=%d U=%d T=%d", t, c[0], c[1], c[2], c[3], c[4])
	}
	return nil
}

// updateVectorRates derives each species' feeding cycle from today's net
// coverage and the mean infectiousness of the humans it bites.
func (sim *Simulator) updateVectorRates(t int) {
	h := sim.state.Humans
	d := sim.params.Disease
	for i := range sim.psi {
		sim.psi[i] = state.RelativeBiting(float64(h.Age[i]), d.Rho, d.A0)
	}
	sim.timeline.ModifiersAt(t, h, sim.psi, sim.mods)
	sim.cycles = sim.timeline.Cycles(sim.mods)

	n := float64(h.Len())
	for k, c := range sim.cycles {
		bite := sim.mods.Bite[k]
		var weight, infect float64
		for i := range sim.psi {
			w := sim.psi[i] * bite[i]
			weight += w
			infect += w * sim.infectiousness(i)
		}
		sim.norm[k] = weight / n
		sim.cbar[k] = 0
		if weight > 0 {
			sim.cbar[k] = infect / weight
		}
		sim.rowEIR[k] = c.A * sim.state.Mosquitoes[k].Im / n
		sim.foim[k] = c.A * sim.cbar[k]
		sim.mu[k] = c.Mu
	}
}

func (sim *Simulator) infectiousness(i int) float64 {
	h := sim.state.Humans
	s := h.State[i]
	c := sim.rates.Infectiousness[s]
	if s == state.Treated && h.Drug[i] != state.None {
		c *= sim.params.Drugs[h.Drug[i]].RelC
	}
	return c
}

// stepMosquitoes applies the daily adult map with constant emergence.
func (sim *Simulator) stepMosquitoes() {
	g := state.RateToProbability(1 / sim.params.Disease.TauEIP)
	for k := range sim.state.Mosquitoes {
		m := &sim.state.Mosquitoes[k]
		p := math.Exp(-sim.cycles[k].Mu)
		pinf := state.RateToProbability(sim.foim[k])
		sm := m.Sm*p*(1-pinf) + m.Emergence
		pm := m.Pm*p*(1-g) + m.Sm*p*pinf
		im := m.Im*p + m.Pm*p*g
		m.Sm, m.Pm, m.Im = sm, pm, im
	}
}

// stepHumans draws infection, blood-stage onset and recovery for every
// individual. A successful bite leaves the state unchanged for LatentDays
// while the liver stage develops; the individual cannot be reinfected in
// that window but keeps recovering from any earlier infection.
func (sim *Simulator) stepHumans(t int) {
	h := sim.state.Humans
	d := sim.params.Disease
	r := sim.rates
	rng := sim.rng.ForSubsystem(SubsystemHumans)

	for i := 0; i < h.Len(); i++ {
		s := h.State[i]
		switch {
		case h.Latent(i) && int32(t)-h.InfectTime[i] >= r.LatentDays:
			sim.onset(i, t)
			h.IB[i] *= r.IBDecay
			continue
		case !h.Latent(i) && s.Infectable():
			var eir float64
			for k := range sim.cycles {
				if sim.norm[k] > 0 {
					eir += sim.rowEIR[k] * sim.psi[i] * sim.mods.Bite[k][i] / sim.norm[k]
				}
			}
			foi := state.InfectionProbability(h.IB[i], d.B0, d.B1, d.IB0, d.KB) * eir
			if h.Drug[i] != state.None {
				foi *= 1 - sim.timeline.Prophylaxis(int(h.Drug[i]), t-int(h.DrugTime[i]))
			}
			if foi > 0 && rng.Float64() < state.RateToProbability(foi) {
				h.IB[i]++
				h.InfectTime[i] = int32(t)
				h.IB[i] *= r.IBDecay
				continue
			}
		}
		if s != state.Susceptible && rng.Float64() < r.Recover[s] {
			h.State[i] = r.RecoverTo[s]
		}
		h.IB[i] *= r.IBDecay
	}
}

// onset moves the pending infection of individual i into the blood. Clinical
// cases seek treatment with the drug mix active today.
func (sim *Simulator) onset(i, t int) {
	h := sim.state.Humans
	d := sim.params.Disease
	h.InfectTime[i] = state.NoInfection
	sim.counters.Infections++

	if sim.rng.ForSubsystem(SubsystemHumans).Float64() >= d.PhiClinical {
		h.State[i] = state.Asymptomatic
		return
	}
	sim.clinicalAges = append(sim.clinicalAges, h.Age[i])
	h.State[i] = state.Clinical

	trng := sim.rng.ForSubsystem(SubsystemTreatment)
	drug := intervention.ChooseDrug(sim.treatment, trng.Float64())
	if drug < 0 {
		return
	}
	sim.counters.Treated++
	h.Drug[i], h.DrugTime[i] = int32(drug), int32(t)
	if trng.Float64() < sim.params.Drugs[drug].Efficacy {
		h.State[i] = state.Treated
	}
}

// stepDemography ages everyone by a day and replaces deaths with newborns.
func (sim *Simulator) stepDemography() {
	h := sim.state.Humans
	rng := sim.rng.ForSubsystem(SubsystemDemography)
	for i := 0; i < h.Len(); i++ {
		h.Age[i]++
		if h.Age[i] >= sim.rates.MaxAge || rng.Float64() < sim.rates.Death {
			h.Reset(i)
			sim.counters.NaturalDeaths++
		}
	}
}

// State exposes the live compartments for inspection between steps.
func (sim *Simulator) State() *state.Compartments { return sim.state }

// TreatmentCoverage returns the per-drug coverage applied today.
func (sim *Simulator) TreatmentCoverage() []float64 {
	return append([]float64(nil), sim.treatment...)
}

// Modifiers returns the intervention modifiers of the last step.
func (sim *Simulator) Modifiers() *intervention.Modifiers { return sim.mods }
