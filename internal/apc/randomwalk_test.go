package apc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func TestCenteredRandomWalk_SumsToZero(t *testing.T) {
	tests := []struct {
		name       string
		increments []float64
	}{
		{"empty", nil},
		{"single", []float64{3.2}},
		{"mixed", []float64{1, -2, 0.5, 4}},
		{"constant", []float64{1, 1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			walk := CenteredRandomWalk(tt.increments)
			assert.Len(t, walk, len(tt.increments)+1)
			assert.InDelta(t, 0.0, floats.Sum(walk), 1e-12)
		})
	}
}

func TestCenteredRandomWalk_PreservesDifferences(t *testing.T) {
	// Centering shifts the whole walk, so consecutive differences must
	// reproduce the increments exactly.
	increments := []float64{0.5, -1.5, 2.0}
	walk := CenteredRandomWalk(increments)
	for i, d := range increments {
		assert.InDelta(t, d, walk[i+1]-walk[i], 1e-12, "increment %d", i)
	}
}

func TestCenteredRandomWalk_NoIncrements(t *testing.T) {
	// A length-1 effect vector degenerates to a single zero.
	assert.Equal(t, []float64{0}, CenteredRandomWalk(nil))
}
