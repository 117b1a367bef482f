package apc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"mortfit/internal/dataset"
	apperrors "mortfit/internal/errors"
)

func validOptions() Options {
	return Options{
		Draws:         25,
		Tune:          25,
		Chains:        2,
		TargetAccept:  0.9,
		Seed:          42,
		LeapfrogSteps: 5,
	}
}

func TestSample_OptionValidation(t *testing.T) {
	m, err := NewModel(gridCells(3, 4), 3, 4)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero_draws", func(o *Options) { o.Draws = 0 }},
		{"negative_tune", func(o *Options) { o.Tune = -1 }},
		{"zero_chains", func(o *Options) { o.Chains = 0 }},
		{"accept_zero", func(o *Options) { o.TargetAccept = 0 }},
		{"accept_one", func(o *Options) { o.TargetAccept = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)
			_, err := Sample(context.Background(), m, opts)
			require.Error(t, err)
			assert.True(t, apperrors.IsConfig(err))
		})
	}
}

func TestSample_SmallRun(t *testing.T) {
	cells := make([]dataset.Cell, 0, 12)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			cells = append(cells, dataset.Cell{
				AgeIndex:    i,
				YearIndex:   j,
				CohortIndex: j - i + 2,
				Exposure:    100,
				Deaths:      float64(4 + i),
			})
		}
	}
	m, err := NewModel(cells, 3, 4)
	require.NoError(t, err)

	opts := validOptions()
	post, err := Sample(context.Background(), m, opts)
	require.NoError(t, err)

	require.Len(t, post.Chains, opts.Chains)
	for c, chain := range post.Chains {
		require.Len(t, chain, opts.Draws, "chain %d", c)
		for _, draw := range chain {
			require.Len(t, draw, len(post.ParamNames))
		}
	}

	// The scale transforms keep every sigma draw strictly positive.
	assert.Greater(t, post.SigmaAlpha, 0.0)
	assert.Greater(t, post.SigmaBeta, 0.0)
	assert.Greater(t, post.SigmaGamma, 0.0)

	// Centering survives averaging across draws and chains.
	assert.InDelta(t, 0.0, floats.Sum(post.Alpha), 1e-8)
	assert.InDelta(t, 0.0, floats.Sum(post.Beta), 1e-8)
	assert.InDelta(t, 0.0, floats.Sum(post.Gamma), 1e-8)
}

func TestSample_Reproducible(t *testing.T) {
	m, err := NewModel(gridCells(3, 4), 3, 4)
	require.NoError(t, err)

	opts := validOptions()
	first, err := Sample(context.Background(), m, opts)
	require.NoError(t, err)
	second, err := Sample(context.Background(), m, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Chains, second.Chains)
}

func TestFittedRates_PlugInSurface(t *testing.T) {
	m, err := NewModel(gridCells(3, 4), 3, 4)
	require.NoError(t, err)

	opts := validOptions()
	opts.Chains = 1
	post, err := Sample(context.Background(), m, opts)
	require.NoError(t, err)

	rm := &dataset.RateMatrix{
		Ages:  []int{1, 2, 3},
		Years: []int{2000, 2001, 2002, 2003},
	}
	s, err := post.FittedRates(rm)
	require.NoError(t, err)

	rows, cols := s.Values.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 4, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.Greater(t, s.At(i, j), 0.0)
		}
	}
}

func TestFittedRates_GridMismatch(t *testing.T) {
	m, err := NewModel(gridCells(3, 4), 3, 4)
	require.NoError(t, err)

	opts := validOptions()
	opts.Chains = 1
	post, err := Sample(context.Background(), m, opts)
	require.NoError(t, err)

	rm := &dataset.RateMatrix{Ages: []int{1, 2}, Years: []int{2000, 2001, 2002, 2003}}
	_, err = post.FittedRates(rm)
	require.Error(t, err)
	assert.True(t, apperrors.IsData(err))
}
