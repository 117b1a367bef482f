package evaluate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"mortfit/internal/dataset"
	apperrors "mortfit/internal/errors"
)

func surface(ages, years []int, values []float64) *dataset.Surface {
	return &dataset.Surface{
		Ages:   ages,
		Years:  years,
		Values: mat.NewDense(len(ages), len(years), values),
	}
}

func TestCompare_PerfectFit(t *testing.T) {
	obs := surface([]int{1, 2}, []int{2000, 2001}, []float64{0.01, 0.02, 0.03, 0.04})
	fit := surface([]int{1, 2}, []int{2000, 2001}, []float64{0.01, 0.02, 0.03, 0.04})

	m, err := Compare("lee_carter", obs, fit)
	require.NoError(t, err)

	assert.Equal(t, "lee_carter", m.Model)
	assert.Equal(t, 4, m.N)
	assert.Zero(t, m.MAE)
	assert.Zero(t, m.RMSE)
	assert.Zero(t, m.MAPE)
	assert.Zero(t, m.MPE)
	assert.Zero(t, m.Bias)
	assert.InDelta(t, 1.0, m.R2, 1e-12)
}

func TestCompare_KnownErrors(t *testing.T) {
	obs := surface([]int{1}, []int{2000, 2001}, []float64{0.10, 0.20})
	fit := surface([]int{1}, []int{2000, 2001}, []float64{0.12, 0.18})

	m, err := Compare("apc", obs, fit)
	require.NoError(t, err)

	assert.Equal(t, 2, m.N)
	assert.InDelta(t, 0.02, m.MAE, 1e-12)
	assert.InDelta(t, 0.02, m.RMSE, 1e-12)
	// |+0.02/0.10| and |-0.02/0.20| average to 15%.
	assert.InDelta(t, 15.0, m.MAPE, 1e-9)
	// Signed: +20% and -10% average to +5%.
	assert.InDelta(t, 5.0, m.MPE, 1e-9)
	assert.InDelta(t, 0.0, m.Bias, 1e-12)
}

func TestCompare_SwappingArgumentsFlipsSignedMetrics(t *testing.T) {
	obs := surface([]int{1, 2}, []int{2000, 2001}, []float64{0.05, 0.08, 0.11, 0.30})
	fit := surface([]int{1, 2}, []int{2000, 2001}, []float64{0.06, 0.07, 0.13, 0.24})

	fwd, err := Compare("m", obs, fit)
	require.NoError(t, err)
	rev, err := Compare("m", fit, obs)
	require.NoError(t, err)

	// Absolute error metrics are direction-free.
	assert.InDelta(t, fwd.MAE, rev.MAE, 1e-12)
	assert.InDelta(t, fwd.RMSE, rev.RMSE, 1e-12)

	// Signed and relative metrics are not: the denominator is always the
	// first argument, and Bias flips sign exactly.
	assert.InDelta(t, fwd.Bias, -rev.Bias, 1e-12)
	assert.Greater(t, math.Abs(fwd.MPE+rev.MPE), 0.1)
	assert.NotEqual(t, fwd.R2, rev.R2)
}

func TestCompare_IntersectionOnly(t *testing.T) {
	obs := surface([]int{1, 2, 3}, []int{2000, 2001}, []float64{
		0.01, 0.02,
		0.03, 0.04,
		0.05, 0.06,
	})
	// Fitted covers ages 2-3 and years 2001-2002 with different ordering
	// of the overlap.
	fit := surface([]int{2, 3}, []int{2001, 2002}, []float64{
		0.04, 0.09,
		0.06, 0.10,
	})

	m, err := Compare("m", obs, fit)
	require.NoError(t, err)

	// Only (2,2001) and (3,2001) overlap, and both match exactly.
	assert.Equal(t, 2, m.N)
	assert.Zero(t, m.MAE)
}

func TestCompare_DropsNonFinitePairs(t *testing.T) {
	obs := surface([]int{1, 2}, []int{2000, 2001}, []float64{0.01, math.NaN(), 0.03, 0.04})
	fit := surface([]int{1, 2}, []int{2000, 2001}, []float64{0.01, 0.02, math.Inf(1), 0.04})

	m, err := Compare("m", obs, fit)
	require.NoError(t, err)
	assert.Equal(t, 2, m.N)
	assert.Zero(t, m.MAE)
}

func TestCompare_EmptyIntersection(t *testing.T) {
	obs := surface([]int{1}, []int{2000}, []float64{0.01})
	fit := surface([]int{2}, []int{2001}, []float64{0.02})

	_, err := Compare("m", obs, fit)
	require.Error(t, err)
	assert.True(t, apperrors.IsData(err))
}

func TestCompare_AllPairsNonFinite(t *testing.T) {
	obs := surface([]int{1}, []int{2000}, []float64{math.NaN()})
	fit := surface([]int{1}, []int{2000}, []float64{0.02})

	_, err := Compare("m", obs, fit)
	require.Error(t, err)
	assert.True(t, apperrors.IsData(err))
}
