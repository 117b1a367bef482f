package apc

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "mortfit/internal/errors"
)

// Dual-averaging constants from Hoffman & Gelman (2014).
const (
	adaptGamma = 0.05
	adaptT0    = 10.0
	adaptKappa = 0.75
	initialEps = 0.1
)

const defaultLeapfrogSteps = 20

// Options controls a sampling run. Draws and Tune are per chain; tuning
// iterations adapt the step size and are discarded.
type Options struct {
	Draws        int
	Tune         int
	Chains       int
	TargetAccept float64
	Seed         uint64

	// LeapfrogSteps is the fixed trajectory length; zero selects the
	// default.
	LeapfrogSteps int

	Progress bool
	Logger   *slog.Logger
}

func (o Options) validate() error {
	if o.Draws < 1 {
		return apperrors.NewConfigError(fmt.Sprintf("draws must be >= 1, got %d", o.Draws), nil)
	}
	if o.Tune < 0 {
		return apperrors.NewConfigError(fmt.Sprintf("tune must be >= 0, got %d", o.Tune), nil)
	}
	if o.Chains < 1 {
		return apperrors.NewConfigError(fmt.Sprintf("chains must be >= 1, got %d", o.Chains), nil)
	}
	if !(o.TargetAccept > 0 && o.TargetAccept < 1) {
		return apperrors.NewConfigError(
			fmt.Sprintf("target_accept must be in (0, 1), got %g", o.TargetAccept), nil)
	}
	return nil
}

// Sample runs opts.Chains independent HMC chains over the model and
// collects their retained draws in the natural parameterization. Options
// are validated before any chain starts. Each chain derives its own RNG
// from the seed, so runs with identical options are reproducible and
// chains never share state.
func Sample(ctx context.Context, m *Model, opts Options) (*Posterior, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	steps := opts.LeapfrogSteps
	if steps <= 0 {
		steps = defaultLeapfrogSteps
	}

	logger.Info("starting sampler",
		slog.Int("chains", opts.Chains),
		slog.Int("draws", opts.Draws),
		slog.Int("tune", opts.Tune),
		slog.Int("parameters", m.Dim()),
		slog.Int("cells", len(m.cells)))

	var bar *progressbar.ProgressBar
	if opts.Progress {
		total := int64(opts.Chains) * int64(opts.Draws+opts.Tune)
		bar = progressbar.Default(total, "sampling")
	}

	chains := make([][][]float64, opts.Chains)
	g, ctx := errgroup.WithContext(ctx)
	for chain := 0; chain < opts.Chains; chain++ {
		chain := chain
		g.Go(func() error {
			draws, err := runChain(ctx, m, opts, steps, chain, bar)
			if err != nil {
				return fmt.Errorf("chain %d: %w", chain, err)
			}
			chains[chain] = draws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	post := newPosterior(m, chains)
	logger.Info("sampling finished",
		slog.Int("chains", opts.Chains),
		slog.Int("draws_per_chain", opts.Draws),
		slog.Float64("mu_mean", post.Mu))
	return post, nil
}

// runChain executes tune+draws HMC iterations and returns the retained
// draws, already mapped through Model.Transform.
func runChain(ctx context.Context, m *Model, opts Options, steps, chain int, bar *progressbar.ProgressBar) ([][]float64, error) {
	rng := rand.New(rand.NewSource(opts.Seed + uint64(chain)*1000003))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	dim := m.Dim()
	theta := make([]float64, dim)
	for i := range theta {
		theta[i] = 0.05 * normal.Rand()
	}

	grad := make([]float64, dim)
	lp := m.logPostGrad(theta, grad)
	if math.IsInf(lp, -1) {
		return nil, fmt.Errorf("initial point has zero posterior density")
	}

	// Dual-averaging state.
	eps := initialEps
	muDA := math.Log(10 * initialEps)
	logEpsBar := 0.0
	hBar := 0.0

	scratch := newLeapfrogScratch(dim)
	draws := make([][]float64, 0, opts.Draws)
	total := opts.Tune + opts.Draws

	for iter := 0; iter < total; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if iter == opts.Tune && opts.Tune > 0 {
			eps = math.Exp(logEpsBar)
		}

		accept := hmcStep(m, theta, grad, &lp, eps, steps, normal, rng, scratch)

		if iter < opts.Tune {
			t := float64(iter + 1)
			w := 1.0 / (t + adaptT0)
			hBar = (1-w)*hBar + w*(opts.TargetAccept-accept)
			logEps := muDA - math.Sqrt(t)/adaptGamma*hBar
			eta := math.Pow(t, -adaptKappa)
			logEpsBar = eta*logEps + (1-eta)*logEpsBar
			eps = math.Exp(logEps)
		} else {
			draws = append(draws, m.Transform(theta))
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	return draws, nil
}

type leapfrogScratch struct {
	q, p, g []float64
}

func newLeapfrogScratch(dim int) *leapfrogScratch {
	return &leapfrogScratch{
		q: make([]float64, dim),
		p: make([]float64, dim),
		g: make([]float64, dim),
	}
}

// hmcStep proposes one fixed-length leapfrog trajectory with an identity
// mass matrix and applies the Metropolis correction. On acceptance theta,
// grad and *lp are updated in place; the return value is the acceptance
// probability fed to step size adaptation.
func hmcStep(m *Model, theta, grad []float64, lp *float64, eps float64, steps int, normal distuv.Normal, rng *rand.Rand, s *leapfrogScratch) float64 {
	copy(s.q, theta)
	copy(s.g, grad)

	kinetic := 0.0
	for i := range s.p {
		s.p[i] = normal.Rand()
		kinetic += s.p[i] * s.p[i]
	}
	h0 := -*lp + kinetic/2.0

	lpNew := *lp
	for l := 0; l < steps; l++ {
		for i := range s.p {
			s.p[i] += eps / 2.0 * s.g[i]
		}
		for i := range s.q {
			s.q[i] += eps * s.p[i]
		}
		lpNew = m.logPostGrad(s.q, s.g)
		for i := range s.p {
			s.p[i] += eps / 2.0 * s.g[i]
		}
	}

	kinetic = 0.0
	for _, pi := range s.p {
		kinetic += pi * pi
	}
	h1 := -lpNew + kinetic/2.0

	accept := 0.0
	if !math.IsNaN(h1) && !math.IsInf(h1, 0) {
		accept = math.Min(1, math.Exp(h0-h1))
	}

	if rng.Float64() < accept {
		copy(theta, s.q)
		copy(grad, s.g)
		*lp = lpNew
	}
	return accept
}
