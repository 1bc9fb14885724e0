// Package equilibrium finds the intervention-free steady state consistent
// with a target annual entomological inoculation rate (EIR).
//
// The human side is solved as a one-dimensional root find on the
// population-mean daily force of infection. For a candidate mean, an inner
// fixed point settles the normaliser mean(psi*b) that links individual
// exposure to the mean, since infection-blocking immunity along the age
// profile depends on exposure and in turn scales it. The implied EIR is
// compared with the target and the candidate is bisected.
//
// The vector side then follows in closed form: the population's mean
// infectiousness fixes each species' stationary Sm/Pm/Im split, and total
// density is chosen so the species, mixed by their proportions, deliver the
// target EIR.
package equilibrium

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/transmission-sim/transmission-sim/sim/intervention"
	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/state"
)

// Options bound the solver.
type Options struct {
	Tolerance     float64 // relative |implied - target| / target
	MaxIterations int     // bisection steps
	MaxInner      int     // fixed-point steps per bisection step
}

// DefaultOptions converge for every default parameter set with EIR in the
// usual 0.1 to 1000 range.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-9, MaxIterations: 200, MaxInner: 200}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.MaxInner <= 0 {
		o.MaxInner = def.MaxInner
	}
	return o
}

// ConvergenceError reports a solve that ran out of iterations.
type ConvergenceError struct {
	Stage      string // "bisection" or "immunity fixed point"
	Iterations int
	Residual   float64
	Tolerance  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("equilibrium %s did not converge after %d iterations: residual %.3g > tolerance %.3g",
		e.Stage, e.Iterations, e.Residual, e.Tolerance)
}

// Solution is a converged steady state.
type Solution struct {
	AnnualEIR      float64
	FOI            float64 // population-mean daily force of infection
	Infectiousness float64 // biting-weighted mean probability of infecting a mosquito
	Iterations     int
	Residual       float64

	Profile *Profile

	// Per species, in snapshot order, sized for the snapshot's population.
	Cycles     []intervention.FeedingCycle
	Mosquitoes []state.Mosquitoes

	averageAge float64
}

// Solve computes the steady state of s for the given annual EIR. An EIR that
// is not a positive finite number is a *params.ValidationError; running out
// of iterations is a *ConvergenceError.
func Solve(s params.Snapshot, annualEIR float64, opts Options) (*Solution, error) {
	if !(annualEIR > 0) || math.IsInf(annualEIR, 0) {
		return nil, &params.ValidationError{Violations: []params.Violation{{
			Field: "init_eir", Expected: "> 0 and finite", Actual: fmt.Sprint(annualEIR),
		}}}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	d := s.Disease
	rates := state.NewRates(d)
	prof := newProfile(d)
	target := annualEIR / 365

	// b ranges over [b0*b1, b0], so mean(psi*b)/psiBar does too.
	lo, hi := target*d.B0*d.B1, target*d.B0
	norm := d.B0 * prof.PsiBar

	var (
		foi, cbar, residual float64
		err                 error
	)
	for it := 1; it <= opts.MaxIterations; it++ {
		foi = (lo + hi) / 2
		norm, cbar, err = settle(prof, foi, norm, d, rates, opts)
		if err != nil {
			return nil, err
		}
		implied := foi * prof.PsiBar / norm
		residual = (implied - target) / target
		if math.Abs(residual) < opts.Tolerance {
			sol := &Solution{
				AnnualEIR:      annualEIR,
				FOI:            foi,
				Infectiousness: cbar,
				Iterations:     it,
				Residual:       residual,
				Profile:        prof,
				averageAge:     d.AverageAge,
			}
			sol.Cycles, sol.Mosquitoes = vectors(s, target, cbar)
			return sol, nil
		}
		if residual < 0 {
			lo = foi
		} else {
			hi = foi
		}
	}
	return nil, &ConvergenceError{Stage: "bisection", Iterations: opts.MaxIterations, Residual: math.Abs(residual), Tolerance: opts.Tolerance}
}

// settle iterates the immunity normaliser to its fixed point for a given
// mean force of infection, leaving the converged profile in prof.
func settle(prof *Profile, foi, norm float64, d params.DiseaseParameters, r state.Rates, opts Options) (float64, float64, error) {
	tol := opts.Tolerance / 100
	var delta float64
	for i := 0; i < opts.MaxInner; i++ {
		next, cbar := prof.integrate(foi, norm, d, r)
		delta = math.Abs(next-norm) / norm
		if delta < tol {
			return next, cbar, nil
		}
		norm = next
	}
	return 0, 0, &ConvergenceError{Stage: "immunity fixed point", Iterations: opts.MaxInner, Residual: delta, Tolerance: tol}
}

// vectors places each species at its stationary state given mean human
// infectiousness cbar, scaled so the mix delivers the daily EIR target.
func vectors(s params.Snapshot, target, cbar float64) ([]intervention.FeedingCycle, []state.Mosquitoes) {
	g := state.RateToProbability(1 / s.Disease.TauEIP)
	cycles := make([]intervention.FeedingCycle, len(s.Species))
	fractions := make([]state.Mosquitoes, len(s.Species))

	var perMosquito float64 // EIR delivered per mosquito per human
	for k, sp := range s.Species {
		c := intervention.NewFeedingCycle(sp, 0, 1)
		cycles[k] = c
		p := math.Exp(-c.Mu)
		pinf := state.RateToProbability(c.A * cbar)

		// stationary per unit emergence
		sm := 1 / (1 - p*(1-pinf))
		pm := p * pinf * sm / (1 - p*(1-g))
		im := p * g * pm / (1 - p)
		total := sm + pm + im
		fractions[k] = state.Mosquitoes{Sm: sm / total, Pm: pm / total, Im: im / total, Emergence: 1 - p}

		perMosquito += s.Proportions[k] * c.A * fractions[k].Im
	}

	m := target / perMosquito * float64(s.HumanPopulation)
	out := make([]state.Mosquitoes, len(s.Species))
	for k, f := range fractions {
		total := m * s.Proportions[k]
		out[k] = state.Mosquitoes{
			Sm:        f.Sm * total,
			Pm:        f.Pm * total,
			Im:        f.Im * total,
			Emergence: f.Emergence * total,
		}
	}
	return cycles, out
}

// DailyEIR is the EIR the solution's mosquitoes deliver to n humans per day.
func (sol *Solution) DailyEIR(n int) float64 {
	var eir float64
	for k, m := range sol.Mosquitoes {
		eir += sol.Cycles[k].A * m.Im
	}
	return eir / float64(n)
}

// Sample draws n individuals from the profile: ages from the stationary
// exponential age distribution truncated at the profile's length, immunity
// from the age mean, and state from the age-specific distribution. An
// individual drawn into S, A or U carries a liver-stage infection with the
// age's latent share of that mass, bitten uniformly within the latent window.
func (sol *Solution) Sample(n int, rng *rand.Rand) *state.Humans {
	h := state.NewHumans(n)
	ages := distuv.Exponential{Rate: 1 / sol.averageAge, Src: rng}
	maxAge := len(sol.Profile.Weight)
	for i := 0; i < n; i++ {
		a := int(ages.Rand())
		for a >= maxAge {
			a = int(ages.Rand())
		}
		h.Age[i] = int32(a)
		h.IB[i] = sol.Profile.IB[a]
		h.State[i] = pickState(sol.Profile.States[a], rng.Float64())
		if h.State[i].Infectable() {
			st := sol.Profile.States[a]
			infectable := st[state.Susceptible] + st[state.Asymptomatic] + st[state.Subpatent]
			if infectable > 0 && rng.Float64() < sol.Profile.Latent[a]/infectable {
				h.InfectTime[i] = -int32(1 + rng.Intn(sol.Profile.LatentDays))
			}
		}
	}
	return h
}

func pickState(dist [state.NumHumanStates]float64, u float64) state.HumanState {
	var acc float64
	for s, p := range dist {
		acc += p
		if u < acc {
			return state.HumanState(s)
		}
	}
	return state.Susceptible
}
