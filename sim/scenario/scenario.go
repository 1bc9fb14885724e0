// Package scenario loads simulation scenarios from YAML and turns them into
// parameter snapshots.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

// Scenario is the top-level scenario configuration.
// Loaded from YAML via LoadScenario(path).
type Scenario struct {
	Version         string             `yaml:"version"`
	Name            string             `yaml:"name,omitempty"`
	Seed            *int64             `yaml:"seed,omitempty"`
	Timesteps       int                `yaml:"timesteps"`
	InitEIR         float64            `yaml:"init_eir"`
	HumanPopulation *int               `yaml:"human_population,omitempty"`
	Overrides       map[string]float64 `yaml:"overrides,omitempty"`

	Species           []SpeciesSpec   `yaml:"species,omitempty"`
	Bednets           *BednetSpec     `yaml:"bednets,omitempty"`
	Drugs             []DrugSpec      `yaml:"drugs,omitempty"`
	ClinicalTreatment []TreatmentSpec `yaml:"clinical_treatment,omitempty"`
	Output            *OutputSpec     `yaml:"output,omitempty"`
}

// SpeciesSpec names a built-in species or spells out its bionomics.
// Exactly one of Preset and Params is set.
type SpeciesSpec struct {
	Preset     string                    `yaml:"preset,omitempty"`
	Params     *params.SpeciesParameters `yaml:"params,omitempty"`
	Proportion float64                   `yaml:"proportion"`
}

// DrugSpec names a built-in drug or spells out its parameters.
// Exactly one of Preset and Params is set.
type DrugSpec struct {
	Preset string                 `yaml:"preset,omitempty"`
	Params *params.DrugParameters `yaml:"params,omitempty"`
}

// BednetSpec schedules net distributions. DN0, RN and RNM are species x round.
type BednetSpec struct {
	Timesteps []int       `yaml:"timesteps"`
	Coverages []float64   `yaml:"coverages"`
	Retention float64     `yaml:"retention"`
	DN0       [][]float64 `yaml:"dn0"`
	RN        [][]float64 `yaml:"rn"`
	RNM       [][]float64 `yaml:"rnm"`
	Gamman    []float64   `yaml:"gamman"`
}

// TreatmentSpec is the coverage timeline of one drug, referenced by name.
type TreatmentSpec struct {
	Drug      string    `yaml:"drug"`
	Timesteps []int     `yaml:"timesteps"`
	Coverages []float64 `yaml:"coverages"`
}

// OutputSpec selects age bands and columns of the output table.
type OutputSpec struct {
	PrevalenceBands []params.AgeBand `yaml:"prevalence_bands,omitempty"`
	IncidenceBands  []params.AgeBand `yaml:"incidence_bands,omitempty"`
	Columns         []string         `yaml:"columns,omitempty"`
}

// CurrentVersion is the only scenario format version understood.
const CurrentVersion = "1"

// LoadScenario reads and parses a YAML scenario file.
// Unknown keys are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses YAML scenario bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.Version == "" {
		logrus.Debugf("scenario %q has no version; assuming %q", s.Name, CurrentVersion)
		s.Version = CurrentVersion
	}
	return &s, nil
}

// Validate checks the structure of the scenario. Parameter values are
// checked later by Snapshot.
func (s *Scenario) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported version %q; valid: %s", s.Version, CurrentVersion)
	}
	if s.Timesteps < 0 {
		return fmt.Errorf("timesteps must be non-negative, got %d", s.Timesteps)
	}
	if math.IsNaN(s.InitEIR) || math.IsInf(s.InitEIR, 0) || s.InitEIR <= 0 {
		return fmt.Errorf("init_eir must be a finite positive number, got %f", s.InitEIR)
	}
	for i, sp := range s.Species {
		if (sp.Preset == "") == (sp.Params == nil) {
			return fmt.Errorf("species[%d]: exactly one of preset and params is required", i)
		}
	}
	for i, d := range s.Drugs {
		if (d.Preset == "") == (d.Params == nil) {
			return fmt.Errorf("drugs[%d]: exactly one of preset and params is required", i)
		}
	}
	if len(s.ClinicalTreatment) > 0 && len(s.Drugs) == 0 {
		return fmt.Errorf("clinical_treatment requires at least one drug")
	}
	return nil
}

// Snapshot builds the parameter snapshot the scenario describes, starting
// from the defaults.
func (s *Scenario) Snapshot() (params.Snapshot, error) {
	if err := s.Validate(); err != nil {
		return params.Snapshot{}, err
	}
	snap := params.LoadDefaultParameters()

	overrides := make(map[string]float64, len(s.Overrides)+2)
	for k, v := range s.Overrides {
		overrides[k] = v
	}
	if s.Seed != nil {
		overrides["seed"] = float64(*s.Seed)
	}
	if s.HumanPopulation != nil {
		overrides["human_population"] = float64(*s.HumanPopulation)
	}
	snap, err := params.ApplyOverrides(snap, overrides)
	if err != nil {
		return params.Snapshot{}, fmt.Errorf("overrides: %w", err)
	}

	if len(s.Species) > 0 {
		species := make([]params.SpeciesParameters, len(s.Species))
		proportions := make([]float64, len(s.Species))
		for i, sp := range s.Species {
			if sp.Params != nil {
				species[i] = *sp.Params
			} else if species[i], err = params.SpeciesPreset(sp.Preset); err != nil {
				return params.Snapshot{}, fmt.Errorf("species[%d]: %w", i, err)
			}
			proportions[i] = sp.Proportion
		}
		if snap, err = params.SetSpecies(snap, species, proportions); err != nil {
			return params.Snapshot{}, fmt.Errorf("species: %w", err)
		}
	}

	if len(s.Drugs) > 0 {
		drugs := make([]params.DrugParameters, len(s.Drugs))
		for i, d := range s.Drugs {
			if d.Params != nil {
				drugs[i] = *d.Params
			} else if drugs[i], err = params.DrugPreset(d.Preset); err != nil {
				return params.Snapshot{}, fmt.Errorf("drugs[%d]: %w", i, err)
			}
		}
		snap = params.SetDrugs(snap, drugs)
	}

	if b := s.Bednets; b != nil {
		dn0, err := dense("bednets.dn0", b.DN0)
		if err != nil {
			return params.Snapshot{}, err
		}
		rn, err := dense("bednets.rn", b.RN)
		if err != nil {
			return params.Snapshot{}, err
		}
		rnm, err := dense("bednets.rnm", b.RNM)
		if err != nil {
			return params.Snapshot{}, err
		}
		if snap, err = params.SetBednets(snap, b.Timesteps, b.Coverages, b.Retention, dn0, rn, rnm, b.Gamman); err != nil {
			return params.Snapshot{}, fmt.Errorf("bednets: %w", err)
		}
	}

	for i, tr := range s.ClinicalTreatment {
		idx := drugIndex(snap.Drugs, tr.Drug)
		if idx < 0 {
			return params.Snapshot{}, fmt.Errorf("clinical_treatment[%d]: unknown drug %q", i, tr.Drug)
		}
		if snap, err = params.SetClinicalTreatment(snap, idx, tr.Timesteps, tr.Coverages); err != nil {
			return params.Snapshot{}, fmt.Errorf("clinical_treatment[%d]: %w", i, err)
		}
	}

	if o := s.Output; o != nil && (o.PrevalenceBands != nil || o.IncidenceBands != nil) {
		prev, inc := snap.PrevalenceBands, snap.IncidenceBands
		if o.PrevalenceBands != nil {
			prev = o.PrevalenceBands
		}
		if o.IncidenceBands != nil {
			inc = o.IncidenceBands
		}
		if snap, err = params.SetOutputBands(snap, prev, inc); err != nil {
			return params.Snapshot{}, fmt.Errorf("output: %w", err)
		}
	}

	if err := snap.Validate(); err != nil {
		return params.Snapshot{}, err
	}
	return snap, nil
}

// Columns returns the requested output columns, or nil for all of them.
func (s *Scenario) Columns() []string {
	if s.Output == nil {
		return nil
	}
	return s.Output.Columns
}

func drugIndex(drugs []params.DrugParameters, name string) int {
	for i, d := range drugs {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// dense converts a ragged-checked row list into a matrix.
func dense(field string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%s must have at least one row and column", field)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%s: row %d has %d entries, want %d", field, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}
