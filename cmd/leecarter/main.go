// Command leecarter fits the Lee-Carter model to a population/deaths
// table, forecasts the time index, and writes the component tables, the
// fitted and forecast rate surfaces and an Excel workbook.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"mortfit/internal/config"
	"mortfit/internal/dataset"
	"mortfit/internal/exporter"
	"mortfit/internal/infrastructure"
	"mortfit/internal/leecarter"
	"mortfit/internal/plot"
)

func main() {
	configFile := flag.String("config", config.DefaultConfigFile, "path to YAML config file")
	input := flag.String("input", "", "input CSV table (overrides config)")
	sex := flag.Int("sex", -1, "sex code to fit (overrides config)")
	out := flag.String("out", "", "output directory (overrides config)")
	horizon := flag.Int("horizon", -1, "forecast horizon in years (overrides config)")
	plots := flag.Bool("plots", false, "render diagnostic plots with gnuplot")
	flag.Parse()

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *input, *sex, *out, *horizon, *plots)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	outDir := filepath.Join(cfg.OutputDir, "lee_carter")
	logger.Info("Starting Lee-Carter fit",
		slog.String("input", cfg.Input),
		slog.Int("sex", cfg.Sex),
		slog.String("output_dir", outDir),
		slog.Int("horizon", cfg.Forecast.Horizon))

	obs, err := dataset.LoadTable(cfg.Input)
	if err != nil {
		logger.Error("Failed to load input table", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rm, err := dataset.BuildMatrices(obs, cfg.Sex)
	if err != nil {
		logger.Error("Failed to pivot observations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logRates, err := rm.LogRates()
	if err != nil {
		logger.Error("Failed to build log-rate matrix", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Built log-rate matrix",
		slog.Int("ages", len(logRates.Ages)),
		slog.Int("years", len(logRates.Years)))

	fit, err := leecarter.FitLogRates(logRates)
	if err != nil {
		logger.Error("Fit failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fc, err := leecarter.ForecastKt(fit.Years, fit.Kt, cfg.Forecast.Horizon)
	if err != nil {
		logger.Error("Forecast failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Forecast complete",
		slog.String("method", fc.Method),
		slog.Int("horizon", cfg.Forecast.Horizon))

	w := exporter.NewCSVWriter(outDir)
	forecastRates := fit.RatesForKt(fc.Years, fc.Kt)
	writes := []struct {
		name string
		fn   func() error
	}{
		{exporter.FileComponents, func() error { return w.WriteLeeCarterComponents(fit) }},
		{exporter.FileKt, func() error { return w.WriteKt(exporter.FileKt, fit.Years, fit.Kt) }},
		{exporter.FileKtExtended, func() error { return w.WriteKt(exporter.FileKtExtended, fc.Years, fc.Kt) }},
		{exporter.FileFittedRates, func() error { return w.WriteSurface(exporter.FileFittedRates, fit.Rates()) }},
		{exporter.FileForecastRates, func() error { return w.WriteSurface(exporter.FileForecastRates, forecastRates) }},
	}
	for _, wr := range writes {
		if err := wr.fn(); err != nil {
			logger.Error("Export failed",
				slog.String("file", wr.name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if err := w.WriteWorkbook(workbookSheets(fit, fc)); err != nil {
		logger.Error("Workbook export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.Plots {
		renderPlots(logger, outDir, fit, fc)
	}

	logger.Info("Lee-Carter run finished", slog.String("output_dir", outDir))
}

func applyOverrides(cfg *config.Config, input string, sex int, out string, horizon int, plots bool) {
	if input != "" {
		cfg.Input = input
	}
	if sex >= 0 {
		cfg.Sex = sex
	}
	if out != "" {
		cfg.OutputDir = out
	}
	if horizon >= 0 {
		cfg.Forecast.Horizon = horizon
	}
	if plots {
		cfg.Plots = true
	}
}

func workbookSheets(fit *leecarter.Fit, fc *leecarter.Forecast) []exporter.Sheet {
	components := make([][]string, len(fit.Ages))
	for i, age := range fit.Ages {
		components[i] = []string{
			strconv.Itoa(age),
			strconv.FormatFloat(fit.Ax[i], 'g', -1, 64),
			strconv.FormatFloat(fit.Bx[i], 'g', -1, 64),
		}
	}

	kt := make([][]string, len(fc.Years))
	for j, year := range fc.Years {
		kt[j] = []string{strconv.Itoa(year), strconv.FormatFloat(fc.Kt[j], 'g', -1, 64)}
	}

	return []exporter.Sheet{
		{Name: "components", Headers: []string{"gr_et", "ax", "bx"}, Records: components},
		{Name: "kt_extended", Headers: []string{"ano", "kt"}, Records: kt},
	}
}

// renderPlots is best effort: failures are warnings, not fatal.
func renderPlots(logger *slog.Logger, outDir string, fit *leecarter.Fit, fc *leecarter.Forecast) {
	if !plot.Available() {
		logger.Warn("gnuplot not found, skipping plots")
		return
	}

	p := plot.New(filepath.Join(outDir, "plots"))
	if err := p.Series("kt.png", "Lee-Carter time index", "ano", "kt",
		fc.Years, fc.Kt, len(fit.Years)); err != nil {
		logger.Warn("Failed to render kt plot", slog.String("error", err.Error()))
	}
	if err := p.Series("ax.png", "Age profile ax", "gr_et", "ax",
		fit.Ages, fit.Ax, 0); err != nil {
		logger.Warn("Failed to render ax plot", slog.String("error", err.Error()))
	}
	if err := p.Series("bx.png", "Age sensitivity bx", "gr_et", "bx",
		fit.Ages, fit.Bx, 0); err != nil {
		logger.Warn("Failed to render bx plot", slog.String("error", err.Error()))
	}
}
