package params

import "fmt"

// DrugParameters describes an antimalarial used for clinical treatment.
type DrugParameters struct {
	Name             string  `yaml:"name"`
	Efficacy         float64 `yaml:"efficacy"`          // probability treatment clears infection
	RelC             float64 `yaml:"rel_c"`             // infectiousness while treated, relative to cd
	ProphylaxisShape float64 `yaml:"prophylaxis_shape"` // Weibull shape of post-treatment protection
	ProphylaxisScale float64 `yaml:"prophylaxis_scale"` // Weibull scale (days)
}

// ALParams returns artemether-lumefantrine.
func ALParams() DrugParameters {
	return DrugParameters{Name: "AL", Efficacy: 0.95, RelC: 0.323, ProphylaxisShape: 4.3, ProphylaxisScale: 38.1}
}

// DHAPQPParams returns dihydroartemisinin-piperaquine.
func DHAPQPParams() DrugParameters {
	return DrugParameters{Name: "DHA_PQP", Efficacy: 0.95, RelC: 0.323, ProphylaxisShape: 4.4, ProphylaxisScale: 28.1}
}

// SPAQParams returns sulfadoxine-pyrimethamine with amodiaquine.
func SPAQParams() DrugParameters {
	return DrugParameters{Name: "SP_AQ", Efficacy: 0.9, RelC: 0.323, ProphylaxisShape: 4.3, ProphylaxisScale: 38.1}
}

var drugPresets = map[string]func() DrugParameters{
	"AL":      ALParams,
	"DHA_PQP": DHAPQPParams,
	"SP_AQ":   SPAQParams,
}

// DrugPreset looks up a built-in drug by name ("AL", "DHA_PQP", "SP_AQ").
func DrugPreset(name string) (DrugParameters, error) {
	f, ok := drugPresets[name]
	if !ok {
		return DrugParameters{}, fmt.Errorf("unknown drug preset %q; valid: AL, DHA_PQP, SP_AQ", name)
	}
	return f(), nil
}

// SetDrugs replaces the drug list. Drug values are checked by Validate, which
// every later builder and the equilibrium solver run.
func SetDrugs(s Snapshot, drugs []DrugParameters) Snapshot {
	next := s.Clone()
	next.Drugs = append([]DrugParameters(nil), drugs...)
	return next
}
