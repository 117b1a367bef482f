package exporter

import (
	"math"
	"strconv"

	"mortfit/internal/apc"
	"mortfit/internal/dataset"
	apperrors "mortfit/internal/errors"
	"mortfit/internal/evaluate"
	"mortfit/internal/leecarter"
)

// Output artifact names, one table per file.
const (
	FileComponents     = "components.csv"
	FileKt             = "kt.csv"
	FileKtExtended     = "kt_extended.csv"
	FileFittedRates    = "fitted_rates.csv"
	FileForecastRates  = "forecast_rates.csv"
	FileAlpha          = "alpha.csv"
	FileBeta           = "beta.csv"
	FileGamma          = "gamma.csv"
	FileSummary        = "components_summary.csv"
	FilePosteriorDraws = "posterior_draws.csv"
	FileMetrics        = "metrics_overall.csv"
)

// WriteLeeCarterComponents writes the per-age components ax and bx.
func (w *CSVWriter) WriteLeeCarterComponents(fit *leecarter.Fit) error {
	records := make([][]string, len(fit.Ages))
	for i, age := range fit.Ages {
		records[i] = []string{
			strconv.Itoa(age),
			formatFloat(fit.Ax[i]),
			formatFloat(fit.Bx[i]),
		}
	}
	if err := w.WriteSimpleCSV(FileComponents, []string{"gr_et", "ax", "bx"}, records); err != nil {
		return apperrors.NewExportError("failed writing "+FileComponents, err)
	}
	return nil
}

// WriteKt writes a time index series, one row per year.
func (w *CSVWriter) WriteKt(filename string, years []int, kt []float64) error {
	records := make([][]string, len(years))
	for j, year := range years {
		records[j] = []string{strconv.Itoa(year), formatFloat(kt[j])}
	}
	if err := w.WriteSimpleCSV(filename, []string{"ano", "kt"}, records); err != nil {
		return apperrors.NewExportError("failed writing "+filename, err)
	}
	return nil
}

// WriteSurface writes an age-by-year surface with the age label in the
// first column and one column per year. NaN cells are written empty so
// the file round-trips through dataset.ReadSurfaceCSV.
func (w *CSVWriter) WriteSurface(filename string, s *dataset.Surface) error {
	headers := make([]string, 0, len(s.Years)+1)
	headers = append(headers, "gr_et")
	for _, y := range s.Years {
		headers = append(headers, strconv.Itoa(y))
	}

	records := make([][]string, len(s.Ages))
	for i, age := range s.Ages {
		row := make([]string, 0, len(s.Years)+1)
		row = append(row, strconv.Itoa(age))
		for j := range s.Years {
			row = append(row, formatFloat(s.At(i, j)))
		}
		records[i] = row
	}
	if err := w.WriteSimpleCSV(filename, headers, records); err != nil {
		return apperrors.NewExportError("failed writing "+filename, err)
	}
	return nil
}

// WriteEffect writes one posterior-mean effect vector keyed by its label
// column (gr_et, ano or cohorte).
func (w *CSVWriter) WriteEffect(filename, labelHeader, valueHeader string, labels []int, values []float64) error {
	records := make([][]string, len(labels))
	for i, label := range labels {
		records[i] = []string{strconv.Itoa(label), formatFloat(values[i])}
	}
	if err := w.WriteSimpleCSV(filename, []string{labelHeader, valueHeader}, records); err != nil {
		return apperrors.NewExportError("failed writing "+filename, err)
	}
	return nil
}

// WriteSummary writes the posterior means of every parameter.
func (w *CSVWriter) WriteSummary(post *apc.Posterior) error {
	means := post.Summary()
	records := make([][]string, len(post.ParamNames))
	for i, name := range post.ParamNames {
		records[i] = []string{name, formatFloat(means[i])}
	}
	if err := w.WriteSimpleCSV(FileSummary, []string{"param", "mean"}, records); err != nil {
		return apperrors.NewExportError("failed writing "+FileSummary, err)
	}
	return nil
}

// WritePosteriorDraws archives every retained draw of every chain, one
// row per draw, for external convergence diagnostics.
func (w *CSVWriter) WritePosteriorDraws(post *apc.Posterior) error {
	headers := append([]string{"chain", "draw"}, post.ParamNames...)

	var records [][]string
	for c, chain := range post.Chains {
		for d, draw := range chain {
			row := make([]string, 0, len(headers))
			row = append(row, strconv.Itoa(c), strconv.Itoa(d))
			for _, v := range draw {
				row = append(row, formatFloat(v))
			}
			records = append(records, row)
		}
	}
	if err := w.WriteSimpleCSV(FilePosteriorDraws, headers, records); err != nil {
		return apperrors.NewExportError("failed writing "+FilePosteriorDraws, err)
	}
	return nil
}

// WriteMetrics writes one row of fit metrics per model.
func (w *CSVWriter) WriteMetrics(metrics []*evaluate.Metrics) error {
	headers := []string{"model", "n", "mae", "rmse", "mape_pct", "mpe_pct", "r2", "bias"}
	records := make([][]string, len(metrics))
	for i, m := range metrics {
		records[i] = []string{
			m.Model,
			strconv.Itoa(m.N),
			formatFloat(m.MAE),
			formatFloat(m.RMSE),
			formatFloat(m.MAPE),
			formatFloat(m.MPE),
			formatFloat(m.R2),
			formatFloat(m.Bias),
		}
	}
	if err := w.WriteSimpleCSV(FileMetrics, headers, records); err != nil {
		return apperrors.NewExportError("failed writing "+FileMetrics, err)
	}
	return nil
}

// formatFloat renders a value with full float64 round-trip precision.
// NaN becomes an empty field.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
