package params

import (
	"math"
	"sort"
)

// scalarFields maps override names to the disease field they set.
var scalarFields = map[string]func(*DiseaseParameters) *float64{
	"dur_E":        func(d *DiseaseParameters) *float64 { return &d.DurE },
	"dur_D":        func(d *DiseaseParameters) *float64 { return &d.DurD },
	"dur_A":        func(d *DiseaseParameters) *float64 { return &d.DurA },
	"dur_U":        func(d *DiseaseParameters) *float64 { return &d.DurU },
	"dur_T":        func(d *DiseaseParameters) *float64 { return &d.DurT },
	"phi_clinical": func(d *DiseaseParameters) *float64 { return &d.PhiClinical },
	"detect_A":     func(d *DiseaseParameters) *float64 { return &d.DetectA },
	"cd":           func(d *DiseaseParameters) *float64 { return &d.CD },
	"ca":           func(d *DiseaseParameters) *float64 { return &d.CA },
	"cu":           func(d *DiseaseParameters) *float64 { return &d.CU },
	"b0":           func(d *DiseaseParameters) *float64 { return &d.B0 },
	"b1":           func(d *DiseaseParameters) *float64 { return &d.B1 },
	"ib0":          func(d *DiseaseParameters) *float64 { return &d.IB0 },
	"kb":           func(d *DiseaseParameters) *float64 { return &d.KB },
	"db":           func(d *DiseaseParameters) *float64 { return &d.DB },
	"rho":          func(d *DiseaseParameters) *float64 { return &d.Rho },
	"a0":           func(d *DiseaseParameters) *float64 { return &d.A0 },
	"average_age":  func(d *DiseaseParameters) *float64 { return &d.AverageAge },
	"max_age":      func(d *DiseaseParameters) *float64 { return &d.MaxAge },
	"tau_eip":      func(d *DiseaseParameters) *float64 { return &d.TauEIP },
}

// OverrideNames lists every name accepted by ApplyOverrides, sorted.
func OverrideNames() []string {
	names := []string{"human_population", "seed"}
	for name := range scalarFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides sets named scalar parameters. Unknown names, non-integer
// values for integer parameters and any constraint the result violates are
// all reported together in one ValidationError.
func ApplyOverrides(s Snapshot, overrides map[string]float64) (Snapshot, error) {
	next := s.Clone()
	var vs violations

	// sorted for a stable violation order
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val := overrides[name]
		switch name {
		case "human_population":
			if val != math.Trunc(val) || math.IsInf(val, 0) {
				vs.add(name, "an integer", val)
				continue
			}
			next.HumanPopulation = int(val)
		case "seed":
			if val != math.Trunc(val) || math.IsInf(val, 0) {
				vs.add(name, "an integer", val)
				continue
			}
			next.Seed = int64(val)
		default:
			field, ok := scalarFields[name]
			if !ok {
				vs.add(name, "a known parameter name", "unknown")
				continue
			}
			*field(&next.Disease) = val
		}
	}

	if err := next.Validate(); err != nil {
		vs = append(vs, err.(*ValidationError).Violations...)
	}
	if err := vs.err(); err != nil {
		return s, err
	}
	return next, nil
}
