package equilibrium

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/state"
)

// Profile is the stationary age structure of the human population under a
// constant force of infection. Index a is age in days.
type Profile struct {
	Weight []float64 // share of the population aged a
	Psi    []float64 // relative biting rate at age a
	States [][state.NumHumanStates]float64
	IB     []float64 // mean infection-blocking immunity at age a

	// Latent is the share of the age-a population carrying a liver-stage
	// infection, already counted in States under the state it was bitten in.
	Latent     []float64
	LatentDays int

	PsiBar float64 // population mean of Psi
}

// newProfile lays out the age axis. Deaths are age independent up to MaxAge,
// so the stationary age distribution is a truncated geometric.
func newProfile(d params.DiseaseParameters) *Profile {
	n := int(d.MaxAge)
	p := &Profile{
		Weight: make([]float64, n),
		Psi:    make([]float64, n),
		States: make([][state.NumHumanStates]float64, n),
		IB:     make([]float64, n),
		Latent: make([]float64, n),
	}
	for a := 0; a < n; a++ {
		p.Weight[a] = math.Exp(-float64(a) / d.AverageAge)
		p.Psi[a] = state.RelativeBiting(float64(a), d.Rho, d.A0)
	}
	floats.Scale(1/floats.Sum(p.Weight), p.Weight)
	p.PsiBar = floats.Dot(p.Weight, p.Psi)
	return p
}

// integrate walks the profile from birth with the engine's daily human map,
// given the population-mean hazard foi and the normaliser norm =
// mean(psi * b). It returns the recomputed normaliser and the
// biting-weighted mean infectiousness to mosquitoes.
//
// Bitten mass waits r.LatentDays in a ring of cohorts, recovering but not
// reinfectable, before entering D or A.
func (p *Profile) integrate(foi, norm float64, d params.DiseaseParameters, r state.Rates) (nextNorm, cbar float64) {
	const (
		S = state.Susceptible
		D = state.Clinical
		A = state.Asymptomatic
		U = state.Subpatent
		T = state.Treated
	)
	p.LatentDays = int(r.LatentDays)
	var free [state.NumHumanStates]float64
	free[S] = 1
	ib := 0.0
	pending := make([][state.NumHumanStates]float64, p.LatentDays)
	oldest := 0

	var wpb, wpc float64
	for a := range p.Weight {
		all := free
		var latent float64
		for _, cohort := range pending {
			for s, share := range cohort {
				all[s] += share
				latent += share
			}
		}
		p.States[a] = all
		p.Latent[a] = latent
		p.IB[a] = ib

		b := state.InfectionProbability(ib, d.B0, d.B1, d.IB0, d.KB)
		wpb += p.Weight[a] * p.Psi[a] * b
		var c float64
		for s, share := range all {
			c += share * r.Infectiousness[s]
		}
		wpc += p.Weight[a] * p.Psi[a] * c

		inf := state.RateToProbability(foi * b * p.Psi[a] / norm)
		due := pending[oldest][S] + pending[oldest][A] + pending[oldest][U]

		var next [state.NumHumanStates]float64
		next[S] = free[S]*(1-inf) + free[U]*(1-inf)*r.Recover[U] + free[T]*r.Recover[T]
		next[D] = due*d.PhiClinical + free[D]*(1-r.Recover[D])
		next[A] = due*(1-d.PhiClinical) + free[D]*r.Recover[D] + free[A]*(1-inf)*(1-r.Recover[A])
		next[U] = free[A]*(1-inf)*r.Recover[A] + free[U]*(1-inf)*(1-r.Recover[U])
		next[T] = free[T] * (1 - r.Recover[T])

		for j := range pending {
			if j == oldest {
				continue
			}
			q := &pending[j]
			q[S], q[A], q[U] = q[S]+q[U]*r.Recover[U], q[A]*(1-r.Recover[A]), q[U]*(1-r.Recover[U])+q[A]*r.Recover[A]
		}
		pending[oldest] = [state.NumHumanStates]float64{S: free[S] * inf, A: free[A] * inf, U: free[U] * inf}
		oldest = (oldest + 1) % len(pending)

		ib = (ib + (free[S]+free[A]+free[U])*inf) * r.IBDecay
		free = next
	}
	return wpb, wpc / p.PsiBar
}

// Prevalence returns the expected share of the population in each state.
func (p *Profile) Prevalence() [state.NumHumanStates]float64 {
	var out [state.NumHumanStates]float64
	for a, w := range p.Weight {
		for s, share := range p.States[a] {
			out[s] += w * share
		}
	}
	return out
}
