package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/transmission-sim/transmission-sim/sim/intervention"
)

// Event defines the interface for all scheduled simulation events.
// Each event has a Timestamp (in days), a type Priority used to order events
// sharing a day, a Seq for deterministic tie-breaking, and an Execute method
// that mutates simulation state when invoked.
type Event interface {
	Timestamp() int64
	Priority() int
	Seq() int64
	Execute(*Simulator)
}

// Event type priorities; lower runs first within a day.
const (
	PriorityBednet    = 0
	PriorityTreatment = 1
)

// BednetEvent distributes a round of nets.
type BednetEvent struct {
	time  int64
	seq   int64
	Round intervention.Event
}

// Timestamp returns the day of the distribution.
func (e *BednetEvent) Timestamp() int64 { return e.time }

// Priority returns PriorityBednet.
func (e *BednetEvent) Priority() int { return PriorityBednet }

// Seq returns the position of the round in the timeline.
func (e *BednetEvent) Seq() int64 { return e.seq }

// Execute hands out nets. A zero-coverage round is logged and otherwise
// leaves every individual's net, and its decay, untouched.
func (e *BednetEvent) Execute(sim *Simulator) {
	if e.Round.NoOp() {
		logrus.Debugf("[day %05d] bednet round %d: coverage 0, no-op", e.time, e.Round.Round)
		return
	}
	given := intervention.Distribute(e.Round, int(e.time), sim.state.Humans, sim.rng.ForSubsystem(SubsystemBednets))
	logrus.Debugf("[day %05d] bednet round %d: %d nets distributed (coverage %.2f)", e.time, e.Round.Round, given, e.Round.Coverage)
}

// TreatmentEvent changes the clinical treatment coverage of one drug.
type TreatmentEvent struct {
	time   int64
	seq    int64
	Change intervention.Event
}

// Timestamp returns the day the coverage changes.
func (e *TreatmentEvent) Timestamp() int64 { return e.time }

// Priority returns PriorityTreatment.
func (e *TreatmentEvent) Priority() int { return PriorityTreatment }

// Seq returns the position of the change in the timeline.
func (e *TreatmentEvent) Seq() int64 { return e.seq }

// Execute sets the drug's coverage; other drugs keep theirs.
func (e *TreatmentEvent) Execute(sim *Simulator) {
	sim.treatment[e.Change.Drug] = e.Change.Coverage
	logrus.Debugf("[day %05d] treatment drug %d coverage -> %.2f", e.time, e.Change.Drug, e.Change.Coverage)
}

// newEvent wraps a timeline entry as a schedulable event.
func newEvent(ev intervention.Event, seq int64) Event {
	if ev.Kind == intervention.KindBednet {
		return &BednetEvent{time: int64(ev.Timestep), seq: seq, Round: ev}
	}
	return &TreatmentEvent{time: int64(ev.Timestep), seq: seq, Change: ev}
}
