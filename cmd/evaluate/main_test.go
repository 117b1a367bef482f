package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"mortfit/internal/dataset"
	"mortfit/internal/exporter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSurface() *dataset.Surface {
	return &dataset.Surface{
		Ages:   []int{1, 2},
		Years:  []int{2000, 2001},
		Values: mat.NewDense(2, 2, []float64{0.01, 0.02, 0.03, 0.04}),
	}
}

// writeSurface writes a fitted surface under dir/<model>/fitted_rates.csv
// and returns its path.
func writeSurface(t *testing.T, dir, model string, s *dataset.Surface) string {
	t.Helper()
	w := exporter.NewCSVWriter(filepath.Join(dir, model))
	require.NoError(t, w.WriteSurface(exporter.FileFittedRates, s))
	return filepath.Join(dir, model, exporter.FileFittedRates)
}

func TestSurfaceSpecs_Defaults(t *testing.T) {
	specs := surfaceSpecs("outputs", "", "")

	require.Len(t, specs, 2)
	assert.Equal(t, "lee_carter", specs[0].model)
	assert.Equal(t, filepath.Join("outputs", "lee_carter", exporter.FileFittedRates), specs[0].path)
	assert.False(t, specs[0].explicit)
	assert.Equal(t, "apc_bayes", specs[1].model)
	assert.Equal(t, filepath.Join("outputs", "apc_bayes", exporter.FileFittedRates), specs[1].path)
	assert.False(t, specs[1].explicit)
}

func TestSurfaceSpecs_ExplicitFlagsWin(t *testing.T) {
	specs := surfaceSpecs("outputs", "custom/lc.csv", "")

	assert.Equal(t, "custom/lc.csv", specs[0].path)
	assert.True(t, specs[0].explicit)
	assert.False(t, specs[1].explicit)
}

func TestEvaluateSurfaces_BothModels(t *testing.T) {
	dir := t.TempDir()
	s := testSurface()
	writeSurface(t, dir, "lee_carter", s)
	writeSurface(t, dir, "apc_bayes", s)

	metrics, err := evaluateSurfaces(testLogger(), s, surfaceSpecs(dir, "", ""))
	require.NoError(t, err)

	require.Len(t, metrics, 2)
	assert.Equal(t, "lee_carter", metrics[0].Model)
	assert.Equal(t, "apc_bayes", metrics[1].Model)
	assert.Zero(t, metrics[0].MAE)
}

func TestEvaluateSurfaces_MissingDefaultIsSkipped(t *testing.T) {
	dir := t.TempDir()
	s := testSurface()
	writeSurface(t, dir, "lee_carter", s)

	metrics, err := evaluateSurfaces(testLogger(), s, surfaceSpecs(dir, "", ""))
	require.NoError(t, err)

	require.Len(t, metrics, 1)
	assert.Equal(t, "lee_carter", metrics[0].Model)
}

func TestEvaluateSurfaces_MissingExplicitIsFatal(t *testing.T) {
	dir := t.TempDir()
	s := testSurface()
	writeSurface(t, dir, "lee_carter", s)

	// The APC surface is requested by path but does not exist: this must
	// fail, not fall back to scoring only the other model.
	specs := surfaceSpecs(dir, "", filepath.Join(dir, "nope.csv"))
	_, err := evaluateSurfaces(testLogger(), s, specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apc_bayes")
}

func TestEvaluateSurfaces_NoSurfacesAtAll(t *testing.T) {
	dir := t.TempDir()

	_, err := evaluateSurfaces(testLogger(), testSurface(), surfaceSpecs(dir, "", ""))
	require.Error(t, err)
}
