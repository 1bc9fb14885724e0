// Package state holds the mutable compartment state of one simulation run.
//
// Humans are stored arena-style: one flat slice per field, indexed by
// individual. A state value is owned by exactly one run; batch runs each get
// their own copy.
package state

import (
	"fmt"
	"math"
)

// HumanState is the disease state of an individual.
type HumanState uint8

const (
	Susceptible HumanState = iota // S
	Clinical                      // D
	Asymptomatic                  // A
	Subpatent                     // U
	Treated                       // T
)

// NumHumanStates is the number of HumanState values.
const NumHumanStates = 5

var humanStateNames = [NumHumanStates]string{"S", "D", "A", "U", "T"}

func (s HumanState) String() string {
	if int(s) < len(humanStateNames) {
		return humanStateNames[s]
	}
	return fmt.Sprintf("HumanState(%d)", s)
}

// Infectable reports whether a new infection can take hold in this state.
func (s HumanState) Infectable() bool {
	return s == Susceptible || s == Asymptomatic || s == Subpatent
}

// None marks an absent net or drug in the index fields.
const None int32 = -1

// NoInfection marks an individual with no liver-stage infection pending.
// InfectTime may be negative for infections sampled before day 0, so the
// sentinel cannot be None.
const NoInfection int32 = math.MinInt32

// Humans is the individual-based human population.
type Humans struct {
	State []HumanState
	Age   []int32   // days
	IB    []float64 // pre-erythrocytic (infection-blocking) immunity

	NetRound []int32 // bednet round currently held, or None
	NetTime  []int32 // timestep the held net was distributed

	Drug     []int32 // last drug taken, or None
	DrugTime []int32 // timestep of the last treatment

	// InfectTime is the timestep of an infectious bite whose liver stage has
	// not yet reached the blood, or NoInfection.
	InfectTime []int32
}

// NewHumans allocates n individuals, all susceptible newborns.
func NewHumans(n int) *Humans {
	h := &Humans{
		State:    make([]HumanState, n),
		Age:      make([]int32, n),
		IB:       make([]float64, n),
		NetRound: make([]int32, n),
		NetTime:  make([]int32, n),
		Drug:     make([]int32, n),
		DrugTime: make([]int32, n),

		InfectTime: make([]int32, n),
	}
	for i := 0; i < n; i++ {
		h.Reset(i)
	}
	return h
}

// Len is the population size.
func (h *Humans) Len() int { return len(h.State) }

// Reset turns individual i into a newborn: susceptible, age 0, naive, and
// holding no net, drug or pending infection.
func (h *Humans) Reset(i int) {
	h.State[i] = Susceptible
	h.Age[i] = 0
	h.IB[i] = 0
	h.NetRound[i] = None
	h.NetTime[i] = 0
	h.Drug[i] = None
	h.DrugTime[i] = 0
	h.InfectTime[i] = NoInfection
}

// HasNet reports whether individual i currently holds a net.
func (h *Humans) HasNet(i int) bool { return h.NetRound[i] != None }

// Latent reports whether individual i carries a liver-stage infection.
func (h *Humans) Latent(i int) bool { return h.InfectTime[i] != NoInfection }

// Count returns the number of individuals in each HumanState.
func (h *Humans) Count() [NumHumanStates]int {
	var out [NumHumanStates]int
	for _, s := range h.State {
		out[s]++
	}
	return out
}

// Clone returns a deep copy.
func (h *Humans) Clone() *Humans {
	return &Humans{
		State:    append([]HumanState(nil), h.State...),
		Age:      append([]int32(nil), h.Age...),
		IB:       append([]float64(nil), h.IB...),
		NetRound: append([]int32(nil), h.NetRound...),
		NetTime:  append([]int32(nil), h.NetTime...),
		Drug:     append([]int32(nil), h.Drug...),
		DrugTime: append([]int32(nil), h.DrugTime...),

		InfectTime: append([]int32(nil), h.InfectTime...),
	}
}

// Mosquitoes holds the adult female compartments of one species.
type Mosquitoes struct {
	Sm float64 // susceptible
	Pm float64 // infected, incubating parasites
	Im float64 // infectious

	// Emergence is the constant daily number of new adults.
	Emergence float64
}

// Total is the adult female population.
func (m Mosquitoes) Total() float64 { return m.Sm + m.Pm + m.Im }

// Compartments is the full mutable state of one run.
type Compartments struct {
	Humans     *Humans
	Mosquitoes []Mosquitoes // one per species, in snapshot order
}

// Clone returns a deep copy so independent runs never share state.
func (c *Compartments) Clone() *Compartments {
	return &Compartments{
		Humans:     c.Humans.Clone(),
		Mosquitoes: append([]Mosquitoes(nil), c.Mosquitoes...),
	}
}
