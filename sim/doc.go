// Package sim provides the daily stepping engine of the malaria transmission
// simulator.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - simulator.go: SetEquilibrium, RunSimulation and the per-day step
//   - event.go: scheduled intervention events (bednet rounds, treatment changes)
//   - rng.go: per-subsystem random streams that make runs reproducible
//
// # Architecture
//
// The engine composes sub-packages:
//   - sim/params/: immutable parameter snapshots and their validation
//   - sim/intervention/: event timeline, net and drug kinetics, modifiers
//   - sim/equilibrium/: steady state for a target EIR
//   - sim/state/: arena-style human population and mosquito compartments
//   - sim/output/: per-day summary table and its CSV/Arrow/SQLite writers
//   - sim/scenario/: YAML scenario files
//   - sim/batch/: independent runs in parallel
//
// # Model
//
// Humans are individual-based and stochastic; each mosquito species is a
// deterministic Sm/Pm/Im compartment model with constant emergence. Each day
// the engine applies due events, reduces the population's nets to
// per-species feeding-cycle rates, advances mosquitoes and humans from the
// same pre-step state, ages the population and records one output row.
//
// A run is single-threaded. Given the same snapshot and seed it produces a
// bit-identical table.
package sim
