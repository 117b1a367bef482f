// Command evaluate scores fitted rate surfaces against the observed
// Haldane-corrected rates and writes a one-row-per-model metrics table.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mortfit/internal/config"
	"mortfit/internal/dataset"
	"mortfit/internal/evaluate"
	"mortfit/internal/exporter"
	"mortfit/internal/infrastructure"
)

// modelSurface is one fitted surface to score. A surface requested
// explicitly on the command line must exist; the implicit defaults are
// skipped when absent so a single-model run can still be evaluated.
type modelSurface struct {
	model    string
	path     string
	explicit bool
}

func main() {
	configFile := flag.String("config", config.DefaultConfigFile, "path to YAML config file")
	input := flag.String("input", "", "input CSV table (overrides config)")
	sex := flag.Int("sex", -1, "sex code to evaluate (overrides config)")
	out := flag.String("out", "", "output directory (overrides config)")
	lcPath := flag.String("lc", "", "Lee-Carter fitted surface CSV (default <out>/lee_carter/fitted_rates.csv)")
	apcPath := flag.String("apc", "", "age-period-cohort fitted surface CSV (default <out>/apc_bayes/fitted_rates.csv)")
	flag.Parse()

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Input = *input
	}
	if *sex >= 0 {
		cfg.Sex = *sex
	}
	if *out != "" {
		cfg.OutputDir = *out
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	specs := surfaceSpecs(cfg.OutputDir, *lcPath, *apcPath)
	logger.Info("Starting evaluation",
		slog.String("input", cfg.Input),
		slog.Int("sex", cfg.Sex),
		slog.String("lee_carter", specs[0].path),
		slog.String("apc_bayes", specs[1].path))

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

	metrics, err := evaluateSurfaces(logger, rm.ObservedRates(), specs)
	if err != nil {
		logger.Error("Evaluation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	w := exporter.NewCSVWriter(cfg.OutputDir)
	if err := w.WriteMetrics(metrics); err != nil {
		logger.Error("Failed to write metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Evaluation finished",
		slog.String("output", filepath.Join(cfg.OutputDir, exporter.FileMetrics)),
		slog.Int("models", len(metrics)))
}

// surfaceSpecs resolves the fitted surface per model, in stable output
// order: an explicit flag wins, otherwise the conventional path under the
// output directory.
func surfaceSpecs(outputDir, lcPath, apcPath string) []modelSurface {
	specs := []modelSurface{
		{model: "lee_carter", path: lcPath, explicit: lcPath != ""},
		{model: "apc_bayes", path: apcPath, explicit: apcPath != ""},
	}
	for i, spec := range specs {
		if !spec.explicit {
			specs[i].path = filepath.Join(outputDir, spec.model, exporter.FileFittedRates)
		}
	}
	return specs
}

// evaluateSurfaces scores every readable surface against the observed
// rates. An unreadable explicit surface is an error; an unreadable
// default is skipped with a warning. At least one surface must score.
func evaluateSurfaces(logger *slog.Logger, observed *dataset.Surface, specs []modelSurface) ([]*evaluate.Metrics, error) {
	var metrics []*evaluate.Metrics
	for _, spec := range specs {
		fitted, err := dataset.ReadSurfaceCSV(spec.path)
		if err != nil {
			if spec.explicit {
				return nil, fmt.Errorf("requested %s surface %s: %w", spec.model, spec.path, err)
			}
			logger.Warn("Skipping model, surface not readable",
				slog.String("model", spec.model),
				slog.String("path", spec.path),
				slog.String("error", err.Error()))
			continue
		}

		m, err := evaluate.Compare(spec.model, observed, fitted)
		if err != nil {
			return nil, fmt.Errorf("comparing %s surface: %w", spec.model, err)
		}
		logger.Info("Evaluated model",
			slog.String("model", m.Model),
			slog.Int("n", m.N),
			slog.Float64("mae", m.MAE),
			slog.Float64("rmse", m.RMSE),
			slog.Float64("mape_pct", m.MAPE),
			slog.Float64("r2", m.R2))
		metrics = append(metrics, m)
	}

	if len(metrics) == 0 {
		return nil, fmt.Errorf("no fitted surfaces could be evaluated")
	}
	return metrics, nil
}
