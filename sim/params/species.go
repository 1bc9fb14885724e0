package params

import "fmt"

// SpeciesParameters holds the bionomics of one mosquito species.
type SpeciesParameters struct {
	Name          string  `yaml:"name"`
	BloodMealRate float64 `yaml:"blood_meal_rate"` // 1 / gonotrophic cycle length
	ForagingTime  float64 `yaml:"foraging_time"`   // days spent host seeking per cycle
	Q0            float64 `yaml:"q0"`              // anthropophagy without nets
	PhiBednets    float64 `yaml:"phi_bednets"`     // share of bites taken while people are in bed
	PhiIndoors    float64 `yaml:"phi_indoors"`     // share of bites taken indoors, bounds PhiBednets
	Mum           float64 `yaml:"mum"`             // baseline adult death rate
}

// GambParams returns An. gambiae bionomics.
func GambParams() SpeciesParameters {
	return SpeciesParameters{Name: "gamb", BloodMealRate: 1.0 / 3, ForagingTime: 0.69, Q0: 0.92, PhiBednets: 0.85, PhiIndoors: 0.90, Mum: 0.132}
}

// ArabParams returns An. arabiensis bionomics.
func ArabParams() SpeciesParameters {
	return SpeciesParameters{Name: "arab", BloodMealRate: 1.0 / 3, ForagingTime: 0.69, Q0: 0.71, PhiBednets: 0.80, PhiIndoors: 0.86, Mum: 0.132}
}

// FunParams returns An. funestus bionomics.
func FunParams() SpeciesParameters {
	return SpeciesParameters{Name: "fun", BloodMealRate: 1.0 / 3, ForagingTime: 0.69, Q0: 0.94, PhiBednets: 0.78, PhiIndoors: 0.87, Mum: 0.112}
}

var speciesPresets = map[string]func() SpeciesParameters{
	"gamb": GambParams,
	"arab": ArabParams,
	"fun":  FunParams,
}

// SpeciesPreset looks up built-in bionomics by name ("gamb", "arab", "fun").
func SpeciesPreset(name string) (SpeciesParameters, error) {
	f, ok := speciesPresets[name]
	if !ok {
		return SpeciesParameters{}, fmt.Errorf("unknown species preset %q; valid: gamb, arab, fun", name)
	}
	return f(), nil
}

// RestingTime is the part of the gonotrophic cycle not spent foraging.
func (sp SpeciesParameters) RestingTime() float64 {
	return 1/sp.BloodMealRate - sp.ForagingTime
}

// SetSpecies replaces the species mix. proportions must align with species
// and sum to 1 within ProportionTolerance.
func SetSpecies(s Snapshot, species []SpeciesParameters, proportions []float64) (Snapshot, error) {
	next := s.Clone()
	next.Species = append([]SpeciesParameters(nil), species...)
	next.Proportions = append([]float64(nil), proportions...)
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}
