package state

import (
	"math"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

// Rates are the daily transition probabilities of the human model, shared by
// the equilibrium profile and the stochastic engine so both advance the same
// map.
type Rates struct {
	// Recover[s] is the daily probability of leaving s by recovery, into
	// RecoverTo[s]. Zero for Susceptible.
	Recover   [NumHumanStates]float64
	RecoverTo [NumHumanStates]HumanState

	// Infectiousness[s] is the probability a mosquito feeding on someone in
	// s becomes infected. Treated uses cD; the engine scales it by the drug's
	// relative infectiousness.
	Infectiousness [NumHumanStates]float64

	IBDecay float64 // daily multiplier applied to IB
	Death   float64 // daily background mortality
	MaxAge  int32

	// LatentDays is dur_E rounded to whole timesteps, at least one: the delay
	// between an infectious bite and blood-stage onset.
	LatentDays int32
}

// NewRates converts the disease durations into daily probabilities.
func NewRates(d params.DiseaseParameters) Rates {
	r := Rates{
		IBDecay: math.Exp(-1 / d.DB),
		Death:   RateToProbability(1 / d.AverageAge),
		MaxAge:  int32(d.MaxAge),

		LatentDays: max(1, int32(math.Round(d.DurE))),
	}
	r.Recover[Clinical] = RateToProbability(1 / d.DurD)
	r.Recover[Asymptomatic] = RateToProbability(1 / d.DurA)
	r.Recover[Subpatent] = RateToProbability(1 / d.DurU)
	r.Recover[Treated] = RateToProbability(1 / d.DurT)

	r.RecoverTo = [NumHumanStates]HumanState{
		Susceptible:  Susceptible,
		Clinical:     Asymptomatic,
		Asymptomatic: Subpatent,
		Subpatent:    Susceptible,
		Treated:      Susceptible,
	}

	r.Infectiousness[Clinical] = d.CD
	r.Infectiousness[Asymptomatic] = d.CA
	r.Infectiousness[Subpatent] = d.CU
	r.Infectiousness[Treated] = d.CD
	return r
}
