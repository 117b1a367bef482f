package apc

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CenteredRandomWalk turns n increments into an n+1 point walk: a leading
// zero followed by the cumulative sum, with the mean of the whole walk
// subtracted. The result always sums to zero, which is what makes the
// age, period and cohort effects jointly identifiable against the grand
// mean.
func CenteredRandomWalk(increments []float64) []float64 {
	walk := make([]float64, len(increments)+1)
	for i, d := range increments {
		walk[i+1] = walk[i] + d
	}
	floats.AddConst(-stat.Mean(walk, nil), walk)
	return walk
}
