// Package params is the parameter store of the transmission simulator.
//
// A Snapshot is a value: every builder function (ApplyOverrides, SetSpecies,
// SetBednets, SetDrugs, SetClinicalTreatment, SetOutputBands) deep-copies its
// input and returns a new Snapshot, so a snapshot handed to a run is never
// mutated afterwards and may be shared read-only across parallel runs.
//
// All durations are in days and all rates are daily.
package params

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ProportionTolerance bounds |sum(proportions) - 1| for species mixes.
const ProportionTolerance = 1e-6

// DiseaseParameters groups the human disease, immunity and demography values.
type DiseaseParameters struct {
	DurE float64 `yaml:"dur_E"` // liver-stage latency, days from bite to blood stage
	DurD float64 `yaml:"dur_D"` // clinical disease
	DurA float64 `yaml:"dur_A"` // asymptomatic patent infection
	DurU float64 `yaml:"dur_U"` // sub-patent infection
	DurT float64 `yaml:"dur_T"` // time under treatment

	PhiClinical float64 `yaml:"phi_clinical"` // probability an infection is clinical
	DetectA     float64 `yaml:"detect_A"`     // microscopy detection probability of A

	CD float64 `yaml:"cd"` // onward infectiousness of D
	CA float64 `yaml:"ca"` // onward infectiousness of A
	CU float64 `yaml:"cu"` // onward infectiousness of U

	B0  float64 `yaml:"b0"`  // max probability of infection per infectious bite
	B1  float64 `yaml:"b1"`  // fraction of b0 retained at full immunity
	IB0 float64 `yaml:"ib0"` // immunity scale for infection blocking
	KB  float64 `yaml:"kb"`  // immunity shape for infection blocking
	DB  float64 `yaml:"db"`  // mean duration of infection-blocking immunity

	Rho float64 `yaml:"rho"` // age-dependent biting heterogeneity
	A0  float64 `yaml:"a0"`  // age scale of biting heterogeneity

	AverageAge float64 `yaml:"average_age"`
	MaxAge     float64 `yaml:"max_age"`

	TauEIP float64 `yaml:"tau_eip"` // mean extrinsic incubation period in the mosquito
}

// AgeBand is a half-open age interval [Lo, Hi) in days used by output columns.
type AgeBand struct {
	Lo int `yaml:"lo"`
	Hi int `yaml:"hi"`
}

func (b AgeBand) String() string {
	return fmt.Sprintf("%d_%d", b.Lo, b.Hi)
}

// Contains reports whether ageDays lies in the band.
func (b AgeBand) Contains(ageDays int) bool {
	return ageDays >= b.Lo && ageDays < b.Hi
}

// Snapshot is an immutable set of simulation parameters.
type Snapshot struct {
	Seed            int64
	HumanPopulation int
	Disease         DiseaseParameters

	Species     []SpeciesParameters
	Proportions []float64

	Bednets   *BednetSchedule     // nil when no nets are distributed
	Drugs     []DrugParameters
	Treatment []TreatmentSchedule // at most one per drug index, sorted by drug

	PrevalenceBands []AgeBand
	IncidenceBands  []AgeBand
}

// LoadDefaultParameters returns the default snapshot: a single gambiae
// population, no interventions, 1000 humans.
func LoadDefaultParameters() Snapshot {
	return Snapshot{
		Seed:            42,
		HumanPopulation: 1000,
		Disease: DiseaseParameters{
			DurE:        12,
			DurD:        5,
			DurA:        200,
			DurU:        110,
			DurT:        5,
			PhiClinical: 0.5,
			DetectA:     0.5,
			CD:          0.068,
			CA:          0.03,
			CU:          0.0062,
			B0:          0.59,
			B1:          0.5,
			IB0:         43.9,
			KB:          2.16,
			DB:          3650,
			Rho:         0.85,
			A0:          2920,
			AverageAge:  7663,
			MaxAge:      100 * 365,
			TauEIP:      10,
		},
		Species:         []SpeciesParameters{GambParams()},
		Proportions:     []float64{1},
		PrevalenceBands: []AgeBand{{Lo: 730, Hi: 3650}},
		IncidenceBands:  []AgeBand{{Lo: 0, Hi: 100 * 365}},
	}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Species = append([]SpeciesParameters(nil), s.Species...)
	out.Proportions = append([]float64(nil), s.Proportions...)
	out.Drugs = append([]DrugParameters(nil), s.Drugs...)
	out.PrevalenceBands = append([]AgeBand(nil), s.PrevalenceBands...)
	out.IncidenceBands = append([]AgeBand(nil), s.IncidenceBands...)
	if s.Bednets != nil {
		b := s.Bednets.clone()
		out.Bednets = &b
	}
	if s.Treatment != nil {
		out.Treatment = make([]TreatmentSchedule, len(s.Treatment))
		for i, ts := range s.Treatment {
			out.Treatment[i] = ts.clone()
		}
	}
	return out
}

// SetOutputBands replaces the age bands used for prevalence and clinical
// incidence columns.
func SetOutputBands(s Snapshot, prevalence, incidence []AgeBand) (Snapshot, error) {
	next := s.Clone()
	next.PrevalenceBands = append([]AgeBand(nil), prevalence...)
	next.IncidenceBands = append([]AgeBand(nil), incidence...)
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

func cloneDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
