package params

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// BednetSchedule is a sequence of net distribution rounds. DN0, RN and RNM
// are species x round matrices; Gamman holds the per-round half-life of net
// efficacy in days.
type BednetSchedule struct {
	Timesteps []int
	Coverages []float64
	Retention float64 // mean days a distributed net is kept
	DN0       *mat.Dense
	RN        *mat.Dense
	RNM       *mat.Dense
	Gamman    []float64
}

// Rounds is the number of scheduled distributions.
func (b BednetSchedule) Rounds() int { return len(b.Timesteps) }

func (b BednetSchedule) clone() BednetSchedule {
	return BednetSchedule{
		Timesteps: append([]int(nil), b.Timesteps...),
		Coverages: append([]float64(nil), b.Coverages...),
		Retention: b.Retention,
		DN0:       cloneDense(b.DN0),
		RN:        cloneDense(b.RN),
		RNM:       cloneDense(b.RNM),
		Gamman:    append([]float64(nil), b.Gamman...),
	}
}

// TreatmentSchedule is the clinical treatment coverage timeline of one drug.
type TreatmentSchedule struct {
	Drug      int
	Timesteps []int
	Coverages []float64
}

func (t TreatmentSchedule) clone() TreatmentSchedule {
	return TreatmentSchedule{
		Drug:      t.Drug,
		Timesteps: append([]int(nil), t.Timesteps...),
		Coverages: append([]float64(nil), t.Coverages...),
	}
}

// CoverageAt returns the coverage of the latest event at or before t, or 0.
func (t TreatmentSchedule) CoverageAt(step int) float64 {
	best, cov := -1, 0.0
	for i, ts := range t.Timesteps {
		if ts <= step && ts >= best {
			best, cov = ts, t.Coverages[i]
		}
	}
	return cov
}

// SetBednets schedules net distributions. Shape rules: the three matrices
// have one row per species and one column per round, and timesteps,
// coverages and gamman each have one entry per round.
func SetBednets(s Snapshot, timesteps []int, coverages []float64, retention float64, dn0, rn, rnm *mat.Dense, gamman []float64) (Snapshot, error) {
	next := s.Clone()
	b := BednetSchedule{
		Timesteps: timesteps,
		Coverages: coverages,
		Retention: retention,
		DN0:       dn0,
		RN:        rn,
		RNM:       rnm,
		Gamman:    gamman,
	}.clone()
	next.Bednets = &b
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// SetClinicalTreatment sets the coverage timeline of one drug. Timelines of
// other drugs are left untouched; a second call for the same drug replaces
// that drug's timeline.
func SetClinicalTreatment(s Snapshot, drugIndex int, timesteps []int, coverages []float64) (Snapshot, error) {
	next := s.Clone()
	ts := TreatmentSchedule{Drug: drugIndex, Timesteps: timesteps, Coverages: coverages}.clone()

	replaced := false
	for i := range next.Treatment {
		if next.Treatment[i].Drug == drugIndex {
			next.Treatment[i] = ts
			replaced = true
		}
	}
	if !replaced {
		next.Treatment = append(next.Treatment, ts)
	}
	sort.SliceStable(next.Treatment, func(i, j int) bool {
		return next.Treatment[i].Drug < next.Treatment[j].Drug
	})

	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// TreatmentFor returns the timeline of drug, if one is set.
func (s Snapshot) TreatmentFor(drug int) (TreatmentSchedule, bool) {
	for _, ts := range s.Treatment {
		if ts.Drug == drug {
			return ts, true
		}
	}
	return TreatmentSchedule{}, false
}
