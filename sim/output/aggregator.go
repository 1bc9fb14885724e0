// Package output reduces simulation state to the per-timestep summary table
// and persists finished tables.
//
// Column names follow the usual malaria model conventions:
//
//	timestep
//	Susceptible_<sp>_count, Protected_<sp>_count, Infected_<sp>_count  (Sm, Pm, Im)
//	total_M_<sp>, EIR_<sp>, FOIM_<sp>, mu_<sp>
//	n_<lo>_<hi>, n_detect_<lo>_<hi>, n_inc_clinical_<lo>_<hi>           (ages in days)
//	S_count, D_count, A_count, U_count, T_count
//	n_infections, n_treated, n_use_net, natural_deaths
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/state"
)

// TimestepColumn is always the first column of a table.
const TimestepColumn = "timestep"

// SchemaError reports a requested column that no aggregate defines.
type SchemaError struct {
	Column string
	Known  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unknown output column %q (known: %s)", e.Column, strings.Join(e.Known, ", "))
}

// Config describes the shape of a run's output.
type Config struct {
	Species         []string
	PrevalenceBands []params.AgeBand
	IncidenceBands  []params.AgeBand
	DetectA         float64 // detection probability of asymptomatic infections
}

// ConfigFor derives the output shape from a snapshot.
func ConfigFor(s params.Snapshot) Config {
	species := make([]string, len(s.Species))
	for k, sp := range s.Species {
		species[k] = sp.Name
	}
	return Config{
		Species:         species,
		PrevalenceBands: s.PrevalenceBands,
		IncidenceBands:  s.IncidenceBands,
		DetectA:         s.Disease.DetectA,
	}
}

// Counters are the event counts of one timestep.
type Counters struct {
	Infections    int
	Treated       int
	NaturalDeaths int
}

// StepView is the read-only state the aggregator summarises. ClinicalAges
// holds the age of every individual who became clinically ill this step.
type StepView struct {
	Timestep   int
	Humans     *state.Humans
	Mosquitoes []state.Mosquitoes

	// Per species.
	EIR  []float64 // infectious bites per person per day
	FOIM []float64 // force of infection on mosquitoes
	Mu   []float64 // adult death rate

	ClinicalAges []int32
	Counters     Counters
}

// Aggregator maps a StepView onto a fixed list of columns.
type Aggregator struct {
	cfg     Config
	bands   []params.AgeBand // union of prevalence and incidence bands for n_ columns
	pick    []int            // positions in the full row of the requested columns
	columns []string
	full    []float64
}

// DefaultColumns lists every column cfg defines, in table order.
func DefaultColumns(cfg Config) []string {
	cols := []string{TimestepColumn}
	for _, sp := range cfg.Species {
		cols = append(cols,
			"Susceptible_"+sp+"_count",
			"Protected_"+sp+"_count",
			"Infected_"+sp+"_count",
			"total_M_"+sp,
			"EIR_"+sp,
			"FOIM_"+sp,
			"mu_"+sp,
		)
	}
	for _, b := range bandUnion(cfg) {
		cols = append(cols, "n_"+b.String())
	}
	for _, b := range cfg.PrevalenceBands {
		cols = append(cols, "n_detect_"+b.String())
	}
	for _, b := range cfg.IncidenceBands {
		cols = append(cols, "n_inc_clinical_"+b.String())
	}
	for s := 0; s < state.NumHumanStates; s++ {
		cols = append(cols, state.HumanState(s).String()+"_count")
	}
	return append(cols, "n_infections", "n_treated", "n_use_net", "natural_deaths")
}

func bandUnion(cfg Config) []params.AgeBand {
	seen := make(map[params.AgeBand]bool)
	var out []params.AgeBand
	for _, bs := range [][]params.AgeBand{cfg.PrevalenceBands, cfg.IncidenceBands} {
		for _, b := range bs {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	return out
}

// NewAggregator builds an aggregator for the requested columns. nil columns
// selects the full default schema. The timestep column is always emitted
// first and repeated names are emitted once. An unknown column name is a
// *SchemaError.
func NewAggregator(cfg Config, columns []string) (*Aggregator, error) {
	all := DefaultColumns(cfg)
	index := make(map[string]int, len(all))
	for i, c := range all {
		index[c] = i
	}

	a := &Aggregator{cfg: cfg, bands: bandUnion(cfg), full: make([]float64, len(all))}
	if columns == nil {
		a.columns = all
		a.pick = make([]int, len(all))
		for i := range all {
			a.pick[i] = i
		}
		return a, nil
	}

	a.columns = []string{TimestepColumn}
	a.pick = []int{0}
	seen := map[string]bool{TimestepColumn: true}
	for _, c := range columns {
		if seen[c] {
			continue
		}
		seen[c] = true
		i, ok := index[c]
		if !ok {
			known := append([]string(nil), all...)
			sort.Strings(known)
			return nil, &SchemaError{Column: c, Known: known}
		}
		a.columns = append(a.columns, c)
		a.pick = append(a.pick, i)
	}
	return a, nil
}

// Columns returns the emitted column names.
func (a *Aggregator) Columns() []string {
	return append([]string(nil), a.columns...)
}

// Aggregate computes one output row. It never mutates v.
func (a *Aggregator) Aggregate(v StepView) []float64 {
	row := a.full
	for i := range row {
		row[i] = 0
	}
	pos := 0
	put := func(x float64) {
		row[pos] = x
		pos++
	}

	put(float64(v.Timestep))
	for k := range a.cfg.Species {
		m := v.Mosquitoes[k]
		put(m.Sm)
		put(m.Pm)
		put(m.Im)
		put(m.Total())
		put(v.EIR[k])
		put(v.FOIM[k])
		put(v.Mu[k])
	}

	h := v.Humans
	for _, b := range a.bands {
		n := 0
		for i := 0; i < h.Len(); i++ {
			if b.Contains(int(h.Age[i])) {
				n++
			}
		}
		put(float64(n))
	}
	for _, b := range a.cfg.PrevalenceBands {
		var detect float64
		for i := 0; i < h.Len(); i++ {
			if !b.Contains(int(h.Age[i])) {
				continue
			}
			switch h.State[i] {
			case state.Clinical, state.Treated:
				detect++
			case state.Asymptomatic:
				detect += a.cfg.DetectA
			}
		}
		put(detect)
	}
	for _, b := range a.cfg.IncidenceBands {
		n := 0
		for _, age := range v.ClinicalAges {
			if b.Contains(int(age)) {
				n++
			}
		}
		put(float64(n))
	}

	counts := h.Count()
	nets := 0
	for i := 0; i < h.Len(); i++ {
		if h.HasNet(i) {
			nets++
		}
	}
	for _, c := range counts {
		put(float64(c))
	}
	put(float64(v.Counters.Infections))
	put(float64(v.Counters.Treated))
	put(float64(nets))
	put(float64(v.Counters.NaturalDeaths))

	out := make([]float64, len(a.pick))
	for i, p := range a.pick {
		out[i] = row[p]
	}
	return out
}
