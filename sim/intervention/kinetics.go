package intervention

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

// NetEffect is the outcome distribution of a mosquito meeting a net. The
// three outcomes always sum to 1.
type NetEffect struct {
	Kill    float64 // killed while attempting to feed
	Repel   float64 // survived the net but repelled without feeding
	Survive float64 // fed successfully
}

// NetEffect evaluates the kinetics of a round-r net, elapsed days after its
// distribution, against species k. Repelling acts on mosquitoes the net did
// not kill:
//
//	dn = dn0 * exp(-g*t), rn = (rn0 - rnm) * exp(-g*t) + rnm, g = ln2 / gamman
//	kill = dn, repel = (1 - dn) * rn, survive = (1 - dn) * (1 - rn)
func (tl *Timeline) NetEffect(round, species, elapsed int) NetEffect {
	b := tl.params.Bednets
	decay := math.Exp(-math.Ln2 / b.Gamman[round] * float64(elapsed))
	dn := b.DN0.At(species, round) * decay
	rnm := b.RNM.At(species, round)
	rn := (b.RN.At(species, round)-rnm)*decay + rnm
	return NetEffect{Kill: dn, Repel: (1 - dn) * rn, Survive: (1 - dn) * (1 - rn)}
}

// NetLossProbability is the daily probability that a held net is discarded,
// given exponentially distributed retention.
func (tl *Timeline) NetLossProbability() float64 {
	if tl.params.Bednets == nil {
		return 0
	}
	return -math.Expm1(-1 / tl.params.Bednets.Retention)
}

// Prophylaxis is the protection against new infection left elapsed days
// after a course of drug, as a Weibull survival curve.
func (tl *Timeline) Prophylaxis(drug, elapsed int) float64 {
	if drug < 0 {
		return 0
	}
	return prophylaxis(tl.params.Drugs[drug], float64(elapsed))
}

func prophylaxis(d params.DrugParameters, elapsed float64) float64 {
	w := distuv.Weibull{K: d.ProphylaxisShape, Lambda: d.ProphylaxisScale}
	return w.Survival(elapsed)
}

// minFeed keeps the cycle finite when every bite is blocked.
const minFeed = 1e-12

// FeedingCycle is the per-species gonotrophic cycle under net pressure.
type FeedingCycle struct {
	F  float64 // feeding rate
	Mu float64 // adult death rate
	Q  float64 // anthropophagy
	A  float64 // human biting rate per mosquito
}

// NewFeedingCycle derives the cycle from the population-averaged repel
// probability zbar and successful-feed probability wbar. With no nets
// (zbar=0, wbar=1) it reduces to f = blood meal rate, mu = mum, Q = Q0.
func NewFeedingCycle(sp params.SpeciesParameters, zbar, wbar float64) FeedingCycle {
	tau1, tau2 := sp.ForagingTime, sp.RestingTime()
	wbar = math.Max(wbar, minFeed)
	p10 := math.Exp(-sp.Mum * tau1)
	p1 := wbar * p10 / (1 - zbar*p10)
	p2 := math.Exp(-sp.Mum * tau2)
	f := 1 / (tau1/(1-zbar) + tau2)
	mu := -f * math.Log(p1*p2)
	q := 1 - (1-sp.Q0)/wbar
	if q < 0 {
		q = 0
	}
	return FeedingCycle{F: f, Mu: mu, Q: q, A: q * f}
}
