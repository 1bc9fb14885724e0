package intervention

import (
	"github.com/transmission-sim/transmission-sim/sim/state"
)

// Modifiers are the intervention effects active at one timestep, reduced
// from the per-individual distribution of net age.
type Modifiers struct {
	Timestep int

	// Per species, biting-weighted over the population.
	Repel []float64 // z: probability a feeding attempt is repelled
	Feed  []float64 // w: probability a feeding attempt succeeds

	// Bite[k][i] is the relative rate at which species k successfully bites
	// individual i (1 without a net).
	Bite [][]float64

	NetUsers int
}

// NewModifiers allocates buffers for the given run shape. Modifiers is
// reused across timesteps; ModifiersAt overwrites every field.
func NewModifiers(species, humans int) *Modifiers {
	m := &Modifiers{
		Repel: make([]float64, species),
		Feed:  make([]float64, species),
		Bite:  make([][]float64, species),
	}
	for k := range m.Bite {
		m.Bite[k] = make([]float64, humans)
	}
	return m
}

// ModifiersAt fills m with the modifiers active at step t. psi holds each
// individual's relative biting rate; it weights the species-level averages.
//
// For an individual holding a round-r net distributed at t0, against species
// k with indoor-biting share phi:
//
//	z = phi * rn(t - t0),  w = 1 - phi + phi * sn(t - t0)
//
// and individuals without a net contribute z = 0, w = 1.
func (tl *Timeline) ModifiersAt(t int, h *state.Humans, psi []float64, m *Modifiers) {
	m.Timestep = t
	m.NetUsers = 0

	species := tl.params.Species
	var psiSum float64
	for _, p := range psi {
		psiSum += p
	}
	for k := range species {
		m.Repel[k], m.Feed[k] = 0, 0
	}

	for i := 0; i < h.Len(); i++ {
		if !h.HasNet(i) {
			for k := range species {
				m.Bite[k][i] = 1
				m.Feed[k] += psi[i]
			}
			continue
		}
		m.NetUsers++
		round, elapsed := int(h.NetRound[i]), t-int(h.NetTime[i])
		for k, sp := range species {
			eff := tl.NetEffect(round, k, elapsed)
			phi := sp.PhiBednets
			z := phi * eff.Repel
			w := 1 - phi + phi*eff.Survive
			m.Bite[k][i] = w
			m.Repel[k] += psi[i] * z
			m.Feed[k] += psi[i] * w
		}
	}

	if psiSum > 0 {
		for k := range species {
			m.Repel[k] /= psiSum
			m.Feed[k] /= psiSum
		}
	} else {
		for k := range species {
			m.Repel[k], m.Feed[k] = 0, 1
		}
	}
}

// Cycles derives the per-species feeding cycle from the averaged modifiers.
func (tl *Timeline) Cycles(m *Modifiers) []FeedingCycle {
	out := make([]FeedingCycle, len(tl.params.Species))
	for k, sp := range tl.params.Species {
		out[k] = NewFeedingCycle(sp, m.Repel[k], m.Feed[k])
	}
	return out
}
