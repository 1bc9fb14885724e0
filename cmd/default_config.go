package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

// Defaults is the document printed by the params command: the default
// snapshot plus the built-in presets and accepted override names.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Defaults struct {
	Seed            int64                      `yaml:"seed"`
	HumanPopulation int                        `yaml:"human_population"`
	Disease         params.DiseaseParameters   `yaml:"disease"`
	Species         []params.SpeciesParameters `yaml:"species"`
	Proportions     []float64                  `yaml:"proportions"`
	SpeciesPresets  []params.SpeciesParameters `yaml:"species_presets"`
	DrugPresets     []params.DrugParameters    `yaml:"drug_presets"`
	PrevalenceBands []params.AgeBand           `yaml:"prevalence_bands"`
	IncidenceBands  []params.AgeBand           `yaml:"incidence_bands"`
	OverrideNames   []string                   `yaml:"override_names"`
}

// DefaultsFor builds the defaults document for a snapshot.
func DefaultsFor(s params.Snapshot) Defaults {
	return Defaults{
		Seed:            s.Seed,
		HumanPopulation: s.HumanPopulation,
		Disease:         s.Disease,
		Species:         s.Species,
		Proportions:     s.Proportions,
		SpeciesPresets:  []params.SpeciesParameters{params.GambParams(), params.ArabParams(), params.FunParams()},
		DrugPresets:     []params.DrugParameters{params.ALParams(), params.DHAPQPParams(), params.SPAQParams()},
		PrevalenceBands: s.PrevalenceBands,
		IncidenceBands:  s.IncidenceBands,
		OverrideNames:   params.OverrideNames(),
	}
}

// writeDefaults encodes d as YAML.
func writeDefaults(w io.Writer, d Defaults) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	return enc.Close()
}

// loadDefaults parses a defaults document with strict field checking.
// Sections the document leaves out keep their default values.
func loadDefaults(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("reading defaults file: %w", err)
	}
	d := DefaultsFor(params.LoadDefaultParameters())
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return Defaults{}, fmt.Errorf("parsing defaults YAML: %w", err)
	}
	return d, nil
}

// Snapshot builds the document's parameters through the params builders.
// Disease, species and band violations are all collected into one
// *params.ValidationError. Presets and override names are informational and
// not checked.
func (d Defaults) Snapshot() (params.Snapshot, error) {
	raw, err := yaml.Marshal(d.Disease)
	if err != nil {
		return params.Snapshot{}, fmt.Errorf("encoding disease parameters: %w", err)
	}
	overrides := map[string]float64{}
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return params.Snapshot{}, fmt.Errorf("decoding disease parameters: %w", err)
	}
	overrides["human_population"] = float64(d.HumanPopulation)

	var all []params.Violation
	collect := func(err error) error {
		var ve *params.ValidationError
		if errors.As(err, &ve) {
			all = append(all, ve.Violations...)
			return nil
		}
		return err
	}

	s, err := params.ApplyOverrides(params.LoadDefaultParameters(), overrides)
	if err := collect(err); err != nil {
		return params.Snapshot{}, err
	}
	s, err = params.SetSpecies(s, d.Species, d.Proportions)
	if err := collect(err); err != nil {
		return params.Snapshot{}, err
	}
	s, err = params.SetOutputBands(s, d.PrevalenceBands, d.IncidenceBands)
	if err := collect(err); err != nil {
		return params.Snapshot{}, err
	}
	if len(all) > 0 {
		return params.Snapshot{}, &params.ValidationError{Violations: all}
	}
	s.Seed = d.Seed
	return s, nil
}

var checkPath string // Scenario or defaults file to validate

// paramsCmd prints the default parameters, or checks a scenario or defaults file
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print default parameters, or validate a file with --check",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkPath != "" {
			return checkFile(cmd.OutOrStdout(), checkPath)
		}
		return writeDefaults(cmd.OutOrStdout(), DefaultsFor(params.LoadDefaultParameters()))
	},
}

func init() {
	paramsCmd.Flags().StringVar(&checkPath, "check", "", "Validate a scenario or defaults file and report every parameter violation")
	rootCmd.AddCommand(paramsCmd)
}
