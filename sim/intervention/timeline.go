// Package intervention turns scheduled bednet and drug inputs into a
// timeline of discrete events and into the per-timestep rate modifiers the
// engine applies.
//
// Between events, protection decays continuously: net killing and repelling
// decay exponentially towards rnm with half-life gamman, and drug
// prophylaxis follows a Weibull survival curve. Because nets are held and
// lost per individual, the population carries a distribution of
// time-since-distribution rather than a single value; Modifiers reduces that
// distribution to the species-level quantities the mosquito model needs.
package intervention

import (
	"fmt"
	"sort"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

// Kind identifies the mechanism an event belongs to.
type Kind int

const (
	KindBednet Kind = iota
	KindTreatment
)

func (k Kind) String() string {
	switch k {
	case KindBednet:
		return "bednet"
	case KindTreatment:
		return "treatment"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one scheduled change. For bednets Round indexes the columns of
// the dn0/rn/rnm matrices; for treatment Drug indexes the drug list.
type Event struct {
	Kind     Kind
	Timestep int
	Coverage float64
	Round    int
	Drug     int
}

// NoOp reports whether applying the event changes nothing. Zero-coverage net
// rounds stay in the timeline but never reset anyone's decay.
func (e Event) NoOp() bool {
	return e.Kind == KindBednet && e.Coverage == 0
}

// ScheduleError reports an out-of-order event sequence.
type ScheduleError struct {
	Mechanism string // "bednets" or "clinical_treatment[drug=N]"
	Index     int    // position of the offending event
	Previous  int    // timestep of the event before it
	Got       int    // offending timestep
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s: timesteps must be non-decreasing, event %d at t=%d follows t=%d",
		e.Mechanism, e.Index, e.Got, e.Previous)
}

// Timeline is the ordered set of events for a run plus the kinetics needed
// to evaluate protection between events. Read-only once built.
type Timeline struct {
	params    params.Snapshot
	events    []Event
	treatment [][]Event // per drug, in timestep order
}

// NewTimeline builds the event timeline of a snapshot. Each schedule must be
// non-decreasing in time; the first violation is returned as *ScheduleError.
func NewTimeline(s params.Snapshot) (*Timeline, error) {
	tl := &Timeline{
		params:    s,
		treatment: make([][]Event, len(s.Drugs)),
	}

	if b := s.Bednets; b != nil {
		if err := checkOrder("bednets", b.Timesteps); err != nil {
			return nil, err
		}
		for r, ts := range b.Timesteps {
			tl.events = append(tl.events, Event{Kind: KindBednet, Timestep: ts, Coverage: b.Coverages[r], Round: r, Drug: -1})
		}
	}

	for _, sched := range s.Treatment {
		if err := checkOrder(fmt.Sprintf("clinical_treatment[drug=%d]", sched.Drug), sched.Timesteps); err != nil {
			return nil, err
		}
		if sched.Drug < 0 || sched.Drug >= len(s.Drugs) {
			return nil, fmt.Errorf("clinical_treatment: drug index %d out of range [0, %d)", sched.Drug, len(s.Drugs))
		}
		for i, ts := range sched.Timesteps {
			ev := Event{Kind: KindTreatment, Timestep: ts, Coverage: sched.Coverages[i], Round: -1, Drug: sched.Drug}
			tl.events = append(tl.events, ev)
			tl.treatment[sched.Drug] = append(tl.treatment[sched.Drug], ev)
		}
	}

	// timestep, then nets before treatment, then input order
	sort.SliceStable(tl.events, func(i, j int) bool {
		if tl.events[i].Timestep != tl.events[j].Timestep {
			return tl.events[i].Timestep < tl.events[j].Timestep
		}
		return tl.events[i].Kind < tl.events[j].Kind
	})
	return tl, nil
}

func checkOrder(mechanism string, timesteps []int) error {
	for i := 1; i < len(timesteps); i++ {
		if timesteps[i] < timesteps[i-1] {
			return &ScheduleError{Mechanism: mechanism, Index: i, Previous: timesteps[i-1], Got: timesteps[i]}
		}
	}
	return nil
}

// Events returns every event in application order.
func (tl *Timeline) Events() []Event {
	return append([]Event(nil), tl.events...)
}

// EventsAt returns the events scheduled exactly at step.
func (tl *Timeline) EventsAt(step int) []Event {
	lo := sort.Search(len(tl.events), func(i int) bool { return tl.events[i].Timestep >= step })
	var out []Event
	for i := lo; i < len(tl.events) && tl.events[i].Timestep == step; i++ {
		out = append(out, tl.events[i])
	}
	return out
}

// TreatmentCoverage returns the active coverage of every drug at step,
// indexed by drug. Each drug's timeline is a step function independent of
// the others.
func (tl *Timeline) TreatmentCoverage(step int) []float64 {
	out := make([]float64, len(tl.treatment))
	for d, evs := range tl.treatment {
		for _, ev := range evs {
			if ev.Timestep > step {
				break
			}
			out[d] = ev.Coverage
		}
	}
	return out
}
