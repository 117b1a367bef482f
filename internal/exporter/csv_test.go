package exporter

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"mortfit/internal/apc"
	"mortfit/internal/dataset"
	"mortfit/internal/evaluate"
	"mortfit/internal/leecarter"
)

func TestCSVWriter_WriteCSV(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	err := w.WriteCSV("out.csv", WriteOptions{
		Headers: []string{"a", "b"},
		Records: [][]string{{"1", "2"}, {"3", "4"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(w.outDir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n3,4\n", string(data))
}

func TestCSVWriter_BOMPrefix(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	err := w.WriteCSV("bom.csv", WriteOptions{
		Headers:   []string{"x"},
		Records:   [][]string{{"1"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(w.outDir, "bom.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\ufeff"))
}

func TestCSVWriter_Append(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	require.NoError(t, w.WriteCSV("log.csv", WriteOptions{
		Headers: []string{"a"},
		Records: [][]string{{"1"}},
	}))
	require.NoError(t, w.WriteCSV("log.csv", WriteOptions{
		Records: [][]string{{"2"}},
		Append:  true,
	}))

	data, err := os.ReadFile(filepath.Join(w.outDir, "log.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n2\n", string(data))
}

func TestCSVWriter_CreatesNestedDirectories(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	err := w.WriteSimpleCSV(filepath.Join("nested", "deep", "out.csv"),
		[]string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(w.outDir, "nested", "deep", "out.csv"))
	assert.NoError(t, err)
}

func TestWriteLeeCarterComponents(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	fit := &leecarter.Fit{
		Ages: []int{1, 2, 3},
		Ax:   []float64{-3.5, -4.25, -5},
		Bx:   []float64{0.2, 0.3, 0.5},
	}
	require.NoError(t, w.WriteLeeCarterComponents(fit))

	data, err := os.ReadFile(filepath.Join(w.outDir, FileComponents))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "gr_et,ax,bx", lines[0])
	assert.Equal(t, "1,-3.5,0.2", lines[1])
	assert.Equal(t, "2,-4.25,0.3", lines[2])
}

func TestWriteKt(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	require.NoError(t, w.WriteKt(FileKt, []int{2000, 2001}, []float64{1.5, -1.5}))

	data, err := os.ReadFile(filepath.Join(w.outDir, FileKt))
	require.NoError(t, err)
	assert.Equal(t, "ano,kt\n2000,1.5\n2001,-1.5\n", string(data))
}

func TestWriteSurface_RoundTrip(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	in := &dataset.Surface{
		Ages:  []int{1, 2},
		Years: []int{2000, 2001, 2002},
		Values: mat.NewDense(2, 3, []float64{
			0.01, 0.02, math.NaN(),
			0.04, 0.05, 0.06,
		}),
	}
	require.NoError(t, w.WriteSurface(FileFittedRates, in))

	out, err := dataset.ReadSurfaceCSV(filepath.Join(w.outDir, FileFittedRates))
	require.NoError(t, err)

	assert.Equal(t, in.Ages, out.Ages)
	assert.Equal(t, in.Years, out.Years)
	for i := range in.Ages {
		for j := range in.Years {
			if math.IsNaN(in.At(i, j)) {
				assert.True(t, math.IsNaN(out.At(i, j)), "cell (%d,%d)", i, j)
				continue
			}
			assert.Equal(t, in.At(i, j), out.At(i, j), "cell (%d,%d)", i, j)
		}
	}
}

func TestWriteEffect(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	err := w.WriteEffect(FileAlpha, "gr_et", "alpha", []int{1, 2}, []float64{0.25, -0.25})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(w.outDir, FileAlpha))
	require.NoError(t, err)
	assert.Equal(t, "gr_et,alpha\n1,0.25\n2,-0.25\n", string(data))
}

func TestWriteMetrics(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	metrics := []*evaluate.Metrics{
		{Model: "lee_carter", N: 12, MAE: 0.001, RMSE: 0.002, MAPE: 5, MPE: -1, R2: 0.99, Bias: -0.0001},
		{Model: "apc_bayes", N: 12, MAE: 0.002, RMSE: 0.003, MAPE: 7, MPE: 2, R2: 0.97, Bias: 0.0002},
	}
	require.NoError(t, w.WriteMetrics(metrics))

	data, err := os.ReadFile(filepath.Join(w.outDir, FileMetrics))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "model,n,mae,rmse,mape_pct,mpe_pct,r2,bias", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "lee_carter,12,"))
	assert.True(t, strings.HasPrefix(lines[2], "apc_bayes,12,"))
}

func TestWritePosteriorDraws(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	post := &apc.Posterior{
		ParamNames: []string{"mu", "sigma_alpha"},
		Chains: [][][]float64{
			{{0.1, 1.0}, {0.2, 1.1}},
			{{0.3, 0.9}},
		},
	}
	require.NoError(t, w.WritePosteriorDraws(post))

	data, err := os.ReadFile(filepath.Join(w.outDir, FilePosteriorDraws))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "chain,draw,mu,sigma_alpha", lines[0])
	assert.Equal(t, "0,0,0.1,1", lines[1])
	assert.Equal(t, "1,0,0.3,0.9", lines[3])
}

func TestWriteSummary(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	post := &apc.Posterior{
		ParamNames: []string{"mu", "sigma_alpha", "sigma_beta", "sigma_gamma", "alpha_0"},
		Mu:         -4.5,
		SigmaAlpha: 0.8,
		SigmaBeta:  0.2,
		SigmaGamma: 0.1,
		Alpha:      []float64{0.3},
	}
	require.NoError(t, w.WriteSummary(post))

	data, err := os.ReadFile(filepath.Join(w.outDir, FileSummary))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "param,mean", lines[0])
	assert.Equal(t, "mu,-4.5", lines[1])
	assert.Equal(t, "alpha_0,0.3", lines[5])
}

func TestWriteWorkbook(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	sheets := []Sheet{
		{Name: "components", Headers: []string{"gr_et", "ax"}, Records: [][]string{{"1", "-3.5"}}},
		{Name: "kt", Headers: []string{"ano", "kt"}, Records: [][]string{{"2000", "1.5"}, {"2001", "-1.5"}}},
	}
	require.NoError(t, w.WriteWorkbook(sheets))

	f, err := excelize.OpenFile(filepath.Join(w.outDir, FileWorkbook))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"components", "kt"}, f.GetSheetList())

	v, err := f.GetCellValue("kt", "B3")
	require.NoError(t, err)
	assert.Equal(t, "-1.5", v)
}

func TestWriteWorkbook_NoSheets(t *testing.T) {
	w := NewCSVWriter(t.TempDir())
	assert.Error(t, w.WriteWorkbook(nil))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "", formatFloat(math.NaN()))
	assert.Equal(t, "0.5", formatFloat(0.5))
	assert.Equal(t, "1e-07", formatFloat(1e-7))
}
