package params

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Validate checks every cross-field constraint of the snapshot and returns a
// *ValidationError listing all violations, or nil.
func (s Snapshot) Validate() error {
	var vs violations

	if s.HumanPopulation < 1 {
		vs.add("human_population", ">= 1", s.HumanPopulation)
	}
	validateDisease(&vs, s.Disease)
	validateSpecies(&vs, s.Species, s.Proportions)
	if s.Bednets != nil {
		validateBednets(&vs, *s.Bednets, len(s.Species))
	}
	for i, d := range s.Drugs {
		validateDrug(&vs, fmt.Sprintf("drugs[%d]", i), d)
	}
	validateTreatment(&vs, s.Treatment, len(s.Drugs))
	validateBands(&vs, "prevalence_bands", s.PrevalenceBands)
	validateBands(&vs, "incidence_bands", s.IncidenceBands)

	return vs.err()
}

func validateDisease(vs *violations, d DiseaseParameters) {
	positive := []struct {
		name string
		val  float64
	}{
		{"dur_E", d.DurE}, {"dur_D", d.DurD}, {"dur_A", d.DurA}, {"dur_U", d.DurU}, {"dur_T", d.DurT},
		{"ib0", d.IB0}, {"kb", d.KB}, {"db", d.DB}, {"a0", d.A0},
		{"average_age", d.AverageAge}, {"tau_eip", d.TauEIP},
	}
	for _, p := range positive {
		checkPositive(vs, p.name, p.val)
	}
	// Ages advance in whole days.
	if !(d.MaxAge >= 1) || isNonFinite(d.MaxAge) {
		vs.add("max_age", ">= 1 day", d.MaxAge)
	}
	probabilities := []struct {
		name string
		val  float64
	}{
		{"phi_clinical", d.PhiClinical}, {"detect_A", d.DetectA},
		{"cd", d.CD}, {"ca", d.CA}, {"cu", d.CU},
		{"b0", d.B0}, {"b1", d.B1}, {"rho", d.Rho},
	}
	for _, p := range probabilities {
		checkProbability(vs, p.name, p.val)
	}
}

func validateSpecies(vs *violations, species []SpeciesParameters, proportions []float64) {
	if len(species) == 0 {
		vs.add("species", "at least one species", 0)
	}
	if len(proportions) != len(species) {
		vs.add("proportions", fmt.Sprintf("%d entries (one per species)", len(species)), len(proportions))
	}
	sum := 0.0
	for i, p := range proportions {
		checkProbability(vs, fmt.Sprintf("proportions[%d]", i), p)
		sum += p
	}
	if len(proportions) > 0 && math.Abs(sum-1) > ProportionTolerance {
		vs.add("proportions", fmt.Sprintf("sum of 1 ± %g", ProportionTolerance), sum)
	}

	seen := make(map[string]bool, len(species))
	for i, sp := range species {
		prefix := fmt.Sprintf("species[%d]", i)
		if sp.Name == "" {
			vs.add(prefix+".name", "a non-empty name", `""`)
		} else if seen[sp.Name] {
			vs.add(prefix+".name", "a unique name", sp.Name)
		}
		seen[sp.Name] = true
		checkPositive(vs, prefix+".blood_meal_rate", sp.BloodMealRate)
		checkPositive(vs, prefix+".mum", sp.Mum)
		if sp.ForagingTime < 0 || isNonFinite(sp.ForagingTime) {
			vs.add(prefix+".foraging_time", "a finite value >= 0", sp.ForagingTime)
		} else if sp.BloodMealRate > 0 && sp.RestingTime() <= 0 {
			vs.add(prefix+".foraging_time", fmt.Sprintf("< gonotrophic cycle %g", 1/sp.BloodMealRate), sp.ForagingTime)
		}
		if !(sp.Q0 > 0 && sp.Q0 <= 1) {
			vs.add(prefix+".q0", "a value in (0, 1]", sp.Q0)
		}
		checkProbability(vs, prefix+".phi_bednets", sp.PhiBednets)
		checkProbability(vs, prefix+".phi_indoors", sp.PhiIndoors)
		// bites taken in bed are a subset of indoor bites
		if sp.PhiBednets > sp.PhiIndoors {
			vs.add(prefix+".phi_bednets", fmt.Sprintf("<= phi_indoors %g", sp.PhiIndoors), sp.PhiBednets)
		}
	}
}

func validateBednets(vs *violations, b BednetSchedule, nSpecies int) {
	rounds := len(b.Timesteps)
	if len(b.Coverages) != rounds {
		vs.add("bednets.coverages", fmt.Sprintf("length %d (one per timestep)", rounds), len(b.Coverages))
	}
	if len(b.Gamman) != rounds {
		vs.add("bednets.gamman", fmt.Sprintf("length %d (one per timestep)", rounds), len(b.Gamman))
	}
	checkPositive(vs, "bednets.retention", b.Retention)
	for i, ts := range b.Timesteps {
		if ts < 0 {
			vs.add(fmt.Sprintf("bednets.timesteps[%d]", i), ">= 0", ts)
		}
	}
	for i, c := range b.Coverages {
		checkProbability(vs, fmt.Sprintf("bednets.coverages[%d]", i), c)
	}
	for i, g := range b.Gamman {
		checkPositive(vs, fmt.Sprintf("bednets.gamman[%d]", i), g)
	}

	shapesOK := true
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{
		{"bednets.dn0", b.DN0},
		{"bednets.rn", b.RN},
		{"bednets.rnm", b.RNM},
	} {
		if m.m == nil {
			vs.add(m.name, fmt.Sprintf("a %dx%d matrix", nSpecies, rounds), "nil")
			shapesOK = false
			continue
		}
		r, c := m.m.Dims()
		if r != nSpecies {
			vs.add(m.name+".rows", fmt.Sprintf("%d (one per species)", nSpecies), r)
			shapesOK = false
		}
		if c != rounds {
			vs.add(m.name+".cols", fmt.Sprintf("%d (one per timestep)", rounds), c)
			shapesOK = false
		}
	}
	if !shapesOK {
		return
	}

	for k := 0; k < nSpecies; k++ {
		for j := 0; j < rounds; j++ {
			dn0, rn, rnm := b.DN0.At(k, j), b.RN.At(k, j), b.RNM.At(k, j)
			cell := fmt.Sprintf("[%d][%d]", k, j)
			checkProbability(vs, "bednets.dn0"+cell, dn0)
			checkProbability(vs, "bednets.rn"+cell, rn)
			checkProbability(vs, "bednets.rnm"+cell, rnm)
			if rnm > rn {
				vs.add("bednets.rnm"+cell, fmt.Sprintf("<= rn (%g)", rn), rnm)
			}
		}
	}
}

func validateDrug(vs *violations, prefix string, d DrugParameters) {
	checkProbability(vs, prefix+".efficacy", d.Efficacy)
	if d.RelC < 0 || isNonFinite(d.RelC) {
		vs.add(prefix+".rel_c", "a finite value >= 0", d.RelC)
	}
	checkPositive(vs, prefix+".prophylaxis_shape", d.ProphylaxisShape)
	checkPositive(vs, prefix+".prophylaxis_scale", d.ProphylaxisScale)
}

func validateTreatment(vs *violations, schedules []TreatmentSchedule, nDrugs int) {
	steps := map[int]bool{}
	for _, ts := range schedules {
		prefix := fmt.Sprintf("clinical_treatment[drug=%d]", ts.Drug)
		if ts.Drug < 0 || ts.Drug >= nDrugs {
			vs.add(prefix+".drug", fmt.Sprintf("an index in [0, %d)", nDrugs), ts.Drug)
		}
		if len(ts.Coverages) != len(ts.Timesteps) {
			vs.add(prefix+".coverages", fmt.Sprintf("length %d (one per timestep)", len(ts.Timesteps)), len(ts.Coverages))
			continue
		}
		for i, c := range ts.Coverages {
			checkProbability(vs, fmt.Sprintf("%s.coverages[%d]", prefix, i), c)
		}
		for i, step := range ts.Timesteps {
			if step < 0 {
				vs.add(fmt.Sprintf("%s.timesteps[%d]", prefix, i), ">= 0", step)
			}
			steps[step] = true
		}
	}
	// coverage is a step function per drug, so the sum only changes at event times
	sorted := make([]int, 0, len(steps))
	for step := range steps {
		sorted = append(sorted, step)
	}
	sort.Ints(sorted)
	for _, step := range sorted {
		total := 0.0
		for _, ts := range schedules {
			if len(ts.Coverages) == len(ts.Timesteps) {
				total += ts.CoverageAt(step)
			}
		}
		if total > 1+1e-9 {
			vs.add(fmt.Sprintf("clinical_treatment.total_coverage[t=%d]", step), "<= 1 across drugs", total)
		}
	}
}

func validateBands(vs *violations, name string, bands []AgeBand) {
	for i, b := range bands {
		if b.Lo < 0 || b.Lo >= b.Hi {
			vs.add(fmt.Sprintf("%s[%d]", name, i), "0 <= lo < hi", b.String())
		}
	}
}

func checkPositive(vs *violations, name string, v float64) {
	if !(v > 0) || isNonFinite(v) {
		vs.add(name, "a finite value > 0", v)
	}
}

func checkProbability(vs *violations, name string, v float64) {
	if !(v >= 0 && v <= 1) {
		vs.add(name, "a probability in [0, 1]", v)
	}
}

func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
