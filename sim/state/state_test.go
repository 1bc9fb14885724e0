package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

func TestNewHumans_AllNewborns(t *testing.T) {
	h := NewHumans(4)
	assert.Equal(t, 4, h.Len())
	for i := 0; i < h.Len(); i++ {
		assert.Equal(t, Susceptible, h.State[i])
		assert.False(t, h.HasNet(i))
		assert.Equal(t, None, h.Drug[i])
		assert.False(t, h.Latent(i))
	}
	assert.Equal(t, [NumHumanStates]int{4, 0, 0, 0, 0}, h.Count())
}

func TestHumans_CloneIsIndependent(t *testing.T) {
	h := NewHumans(2)
	c := h.Clone()
	c.State[0] = Clinical
	c.NetRound[1] = 3
	c.InfectTime[0] = -4
	assert.Equal(t, Susceptible, h.State[0])
	assert.False(t, h.HasNet(1))
	assert.False(t, h.Latent(0))
	assert.True(t, c.Latent(0))
}

func TestHumans_ResetClearsLatentInfection(t *testing.T) {
	h := NewHumans(1)
	h.InfectTime[0] = 10
	h.Reset(0)
	assert.False(t, h.Latent(0))
}

func TestHumanState_Infectable(t *testing.T) {
	assert.True(t, Susceptible.Infectable())
	assert.True(t, Asymptomatic.Infectable())
	assert.True(t, Subpatent.Infectable())
	assert.False(t, Clinical.Infectable())
	assert.False(t, Treated.Infectable())
	assert.Equal(t, "U", Subpatent.String())
}

func TestRelativeBiting(t *testing.T) {
	assert.InDelta(t, 0.15, RelativeBiting(0, 0.85, 2920), 1e-12)
	assert.InDelta(t, 1.0, RelativeBiting(1e7, 0.85, 2920), 1e-9)
}

func TestInfectionProbability_DecreasesWithImmunity(t *testing.T) {
	naive := InfectionProbability(0, 0.59, 0.5, 43.9, 2.16)
	immune := InfectionProbability(1000, 0.59, 0.5, 43.9, 2.16)
	assert.InDelta(t, 0.59, naive, 1e-12)
	assert.Less(t, immune, naive)
	assert.Greater(t, immune, 0.59*0.5)
}

func TestRateToProbability(t *testing.T) {
	assert.Equal(t, 0.0, RateToProbability(0))
	assert.InDelta(t, 1-math.Exp(-0.2), RateToProbability(0.2), 1e-15)
}

func TestNewRates_LatentDaysRoundsDurE(t *testing.T) {
	d := params.LoadDefaultParameters().Disease
	assert.Equal(t, int32(12), NewRates(d).LatentDays)
	d.DurE = 7.6
	assert.Equal(t, int32(8), NewRates(d).LatentDays)
	d.DurE = 0.2
	assert.Equal(t, int32(1), NewRates(d).LatentDays)
}
