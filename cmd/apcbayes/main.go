// Command apcbayes fits the Bayesian age-period-cohort model with HMC and
// writes the posterior-mean effects, the full draw archive and the
// plug-in fitted rate surface.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"mortfit/internal/apc"
	"mortfit/internal/config"
	"mortfit/internal/dataset"
	"mortfit/internal/exporter"
	"mortfit/internal/infrastructure"
	"mortfit/internal/plot"
)

func main() {
	configFile := flag.String("config", config.DefaultConfigFile, "path to YAML config file")
	input := flag.String("input", "", "input CSV table (overrides config)")
	sex := flag.Int("sex", -1, "sex code to fit (overrides config)")
	out := flag.String("out", "", "output directory (overrides config)")
	draws := flag.Int("draws", -1, "posterior draws per chain (overrides config)")
	tune := flag.Int("tune", -1, "tuning iterations per chain (overrides config)")
	chains := flag.Int("chains", -1, "number of chains (overrides config)")
	seed := flag.Uint64("seed", 0, "RNG seed (overrides config when nonzero)")
	plots := flag.Bool("plots", false, "render diagnostic plots with gnuplot")
	progress := flag.Bool("progress", false, "show a sampling progress bar")
	flag.Parse()

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *input, *sex, *out, *draws, *tune, *chains, *seed, *plots)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	outDir := filepath.Join(cfg.OutputDir, "apc_bayes")
	logger.Info("Starting age-period-cohort fit",
		slog.String("input", cfg.Input),
		slog.Int("sex", cfg.Sex),
		slog.String("output_dir", outDir),
		slog.Int("draws", cfg.Sampler.Draws),
		slog.Int("tune", cfg.Sampler.Tune),
		slog.Int("chains", cfg.Sampler.Chains))

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

	cells, err := rm.ObservedCells()
	if err != nil {
		logger.Error("No observable cells", slog.String("error", err.Error()))
		os.Exit(1)
	}

	model, err := apc.NewModel(cells, rm.NumAges(), rm.NumYears())
	if err != nil {
		logger.Error("Model construction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	post, err := apc.Sample(context.Background(), model, apc.Options{
		Draws:        cfg.Sampler.Draws,
		Tune:         cfg.Sampler.Tune,
		Chains:       cfg.Sampler.Chains,
		TargetAccept: cfg.Sampler.TargetAccept,
		Seed:         cfg.Sampler.Seed,
		Progress:     *progress,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Sampling failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fitted, err := post.FittedRates(rm)
	if err != nil {
		logger.Error("Failed to build fitted surface", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cohorts := make([]int, post.NumCohorts)
	for k := range cohorts {
		cohorts[k] = k
	}

	w := exporter.NewCSVWriter(outDir)
	writes := []struct {
		name string
		fn   func() error
	}{
		{exporter.FileAlpha, func() error {
			return w.WriteEffect(exporter.FileAlpha, "gr_et", "alpha", rm.Ages, post.Alpha)
		}},
		{exporter.FileBeta, func() error {
			return w.WriteEffect(exporter.FileBeta, "ano", "beta", rm.Years, post.Beta)
		}},
		{exporter.FileGamma, func() error {
			return w.WriteEffect(exporter.FileGamma, "cohorte", "gamma", cohorts, post.Gamma)
		}},
		{exporter.FileSummary, func() error { return w.WriteSummary(post) }},
		{exporter.FilePosteriorDraws, func() error { return w.WritePosteriorDraws(post) }},
		{exporter.FileFittedRates, func() error { return w.WriteSurface(exporter.FileFittedRates, fitted) }},
	}
	for _, wr := range writes {
		if err := wr.fn(); err != nil {
			logger.Error("Export failed",
				slog.String("file", wr.name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if cfg.Plots {
		renderPlots(logger, outDir, rm, post)
	}

	logger.Info("Age-period-cohort run finished",
		slog.String("output_dir", outDir),
		slog.Float64("mu", post.Mu))
}

// applyOverrides layers the command-line flags over the loaded config.
// Sentinel values (empty string, negative int, zero seed) mean the flag
// was not given.
func applyOverrides(cfg *config.Config, input string, sex int, out string, draws, tune, chains int, seed uint64, plots bool) {
	if input != "" {
		cfg.Input = input
	}
	if sex >= 0 {
		cfg.Sex = sex
	}
	if out != "" {
		cfg.OutputDir = out
	}
	if draws >= 0 {
		cfg.Sampler.Draws = draws
	}
	if tune >= 0 {
		cfg.Sampler.Tune = tune
	}
	if chains >= 0 {
		cfg.Sampler.Chains = chains
	}
	if seed != 0 {
		cfg.Sampler.Seed = seed
	}
	if plots {
		cfg.Plots = true
	}
}

// renderPlots is best effort: failures are warnings, not fatal.
func renderPlots(logger *slog.Logger, outDir string, rm *dataset.RateMatrix, post *apc.Posterior) {
	if !plot.Available() {
		logger.Warn("gnuplot not found, skipping plots")
		return
	}

	p := plot.New(filepath.Join(outDir, "plots"))
	if err := p.Series("alpha.png", "Age effect", "gr_et", "alpha", rm.Ages, post.Alpha, 0); err != nil {
		logger.Warn("Failed to render alpha plot", slog.String("error", err.Error()))
	}
	if err := p.Series("beta.png", "Period effect", "ano", "beta", rm.Years, post.Beta, 0); err != nil {
		logger.Warn("Failed to render beta plot", slog.String("error", err.Error()))
	}
	cohorts := make([]int, post.NumCohorts)
	for k := range cohorts {
		cohorts[k] = k
	}
	if err := p.Series("gamma.png", "Cohort effect", "cohorte", "gamma", cohorts, post.Gamma, 0); err != nil {
		logger.Warn("Failed to render gamma plot", slog.String("error", err.Error()))
	}
}
