package state

import "math"

// RelativeBiting is the age-dependent relative biting rate
// psi(a) = 1 - rho * exp(-a / a0).
func RelativeBiting(ageDays, rho, a0 float64) float64 {
	return 1 - rho*math.Exp(-ageDays/a0)
}

// InfectionProbability is the probability that an infectious bite infects
// an individual with infection-blocking immunity ib:
// b = b0 * (b1 + (1 - b1) / (1 + (ib/ib0)^kb)).
func InfectionProbability(ib, b0, b1, ib0, kb float64) float64 {
	return b0 * (b1 + (1-b1)/(1+math.Pow(ib/ib0, kb)))
}

// RateToProbability converts a daily rate into the probability of at least
// one event in a day.
func RateToProbability(rate float64) float64 {
	return -math.Expm1(-rate)
}
