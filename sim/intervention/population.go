package intervention

import (
	"math/rand"

	"github.com/transmission-sim/transmission-sim/sim/state"
)

// Distribute applies a bednet round at step t: every individual
// independently receives a fresh round-ev.Round net with probability
// ev.Coverage, replacing any net they already hold. Individuals not reached
// keep their current net and its decay. Returns the number of nets handed
// out. A zero-coverage round draws nothing from rng.
func Distribute(ev Event, t int, h *state.Humans, rng *rand.Rand) int {
	if ev.Kind != KindBednet || ev.NoOp() {
		return 0
	}
	given := 0
	for i := 0; i < h.Len(); i++ {
		if rng.Float64() < ev.Coverage {
			h.NetRound[i] = int32(ev.Round)
			h.NetTime[i] = int32(t)
			given++
		}
	}
	return given
}

// RetainNets discards each held net with probability pLoss. Returns the
// number of nets lost.
func RetainNets(pLoss float64, h *state.Humans, rng *rand.Rand) int {
	if pLoss <= 0 {
		return 0
	}
	lost := 0
	for i := 0; i < h.Len(); i++ {
		if !h.HasNet(i) {
			continue
		}
		if rng.Float64() < pLoss {
			h.NetRound[i] = state.None
			lost++
		}
	}
	return lost
}

// ChooseDrug maps a uniform draw u in [0,1) onto the per-drug coverages laid
// end to end. Returns the chosen drug index, or -1 when u falls past the
// total coverage (the case goes untreated).
func ChooseDrug(coverage []float64, u float64) int {
	var acc float64
	for d, c := range coverage {
		acc += c
		if u < acc {
			return d
		}
	}
	return -1
}
