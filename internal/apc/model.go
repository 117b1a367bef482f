package apc

import (
	"fmt"
	"math"

	"mortfit/internal/dataset"
	apperrors "mortfit/internal/errors"
)

// Unconstrained parameter vector layout. The three smoothness scales live
// on the log scale so the sampler works on an unbounded space; the
// HalfNormal prior picks up the exp(l) change-of-variables Jacobian in the
// log posterior.
const (
	idxMu         = 0
	idxLogSigmaA  = 1
	idxLogSigmaT  = 2
	idxLogSigmaC  = 3
	numScalarPars = 4
)

// Model is the age-period-cohort Poisson model over a set of observed
// cells. It evaluates the joint log posterior and its gradient on the
// unconstrained parameterization; the methods are reentrant so chains can
// evaluate concurrently.
type Model struct {
	cells      []dataset.Cell
	numAges    int
	numYears   int
	numCohorts int
}

// NewModel validates the observed cells against the grid dimensions. Every
// cell must carry positive exposure and an in-range age, year and cohort
// index; the cohort range follows from the grid corners, c in
// [0, A+T-2].
func NewModel(cells []dataset.Cell, numAges, numYears int) (*Model, error) {
	if numAges < 2 || numYears < 2 {
		return nil, apperrors.NewDataError(
			fmt.Sprintf("model needs at least 2 ages and 2 years, got %dx%d", numAges, numYears), nil)
	}
	if len(cells) == 0 {
		return nil, apperrors.NewDataError("no observable cells to fit", nil)
	}

	numCohorts := numAges + numYears - 1
	for i, c := range cells {
		if c.AgeIndex < 0 || c.AgeIndex >= numAges ||
			c.YearIndex < 0 || c.YearIndex >= numYears ||
			c.CohortIndex < 0 || c.CohortIndex >= numCohorts {
			return nil, apperrors.NewDataError(
				fmt.Sprintf("cell %d has out-of-range indices (age=%d year=%d cohort=%d)",
					i, c.AgeIndex, c.YearIndex, c.CohortIndex), nil)
		}
		if !(c.Exposure > 0) || math.IsNaN(c.Deaths) || c.Deaths < 0 {
			return nil, apperrors.NewDataError(
				fmt.Sprintf("cell %d has exposure %g and deaths %g", i, c.Exposure, c.Deaths), nil)
		}
	}

	return &Model{
		cells:      cells,
		numAges:    numAges,
		numYears:   numYears,
		numCohorts: numCohorts,
	}, nil
}

// NumAges returns A, the number of age groups on the grid.
func (m *Model) NumAges() int { return m.numAges }

// NumYears returns T, the number of periods on the grid.
func (m *Model) NumYears() int { return m.numYears }

// NumCohorts returns A+T-1, the number of diagonals on the grid.
func (m *Model) NumCohorts() int { return m.numCohorts }

// Dim is the length of the unconstrained parameter vector: the grand mean,
// three log scales, and the A-1, T-1 and C-1 random-walk increments.
func (m *Model) Dim() int {
	return numScalarPars + (m.numAges - 1) + (m.numYears - 1) + (m.numCohorts - 1)
}

// slices splits theta into its increment blocks. The returned slices alias
// theta.
func (m *Model) slices(theta []float64) (deltaA, deltaT, deltaC []float64) {
	off := numScalarPars
	deltaA = theta[off : off+m.numAges-1]
	off += m.numAges - 1
	deltaT = theta[off : off+m.numYears-1]
	off += m.numYears - 1
	deltaC = theta[off : off+m.numCohorts-1]
	return deltaA, deltaT, deltaC
}

// logPostGrad evaluates the joint log posterior at theta and writes its
// gradient into grad (len == Dim). Normalizing constants that do not
// depend on theta are dropped. A non-finite posterior returns -Inf with a
// zero gradient, which the sampler treats as a rejected region.
func (m *Model) logPostGrad(theta, grad []float64) float64 {
	for i := range grad {
		grad[i] = 0
	}

	mu := theta[idxMu]
	la, lt, lc := theta[idxLogSigmaA], theta[idxLogSigmaT], theta[idxLogSigmaC]
	sa, st, sc := math.Exp(la), math.Exp(lt), math.Exp(lc)
	deltaA, deltaT, deltaC := m.slices(theta)

	// Priors. mu ~ Normal(0,5); each sigma ~ HalfNormal(1) with the log
	// Jacobian of sigma = exp(l); increments are standard normal.
	lp := -mu * mu / 50.0
	grad[idxMu] = -mu / 25.0

	lp += -sa*sa/2.0 + la
	lp += -st*st/2.0 + lt
	lp += -sc*sc/2.0 + lc
	grad[idxLogSigmaA] = -sa*sa + 1.0
	grad[idxLogSigmaT] = -st*st + 1.0
	grad[idxLogSigmaC] = -sc*sc + 1.0

	for i := numScalarPars; i < len(theta); i++ {
		lp -= theta[i] * theta[i] / 2.0
		grad[i] = -theta[i]
	}

	alpha := CenteredRandomWalk(deltaA)
	beta := CenteredRandomWalk(deltaT)
	gamma := CenteredRandomWalk(deltaC)

	// Likelihood: sum over cells of y*eta - E*exp(eta), accumulating the
	// residual y - lambda per effect element for the chain rule below.
	gAlpha := make([]float64, m.numAges)
	gBeta := make([]float64, m.numYears)
	gGamma := make([]float64, m.numCohorts)
	var gMu float64

	for _, cell := range m.cells {
		eta := mu + sa*alpha[cell.AgeIndex] + st*beta[cell.YearIndex] + sc*gamma[cell.CohortIndex]
		lambda := cell.Exposure * math.Exp(eta)
		if math.IsInf(lambda, 0) {
			for i := range grad {
				grad[i] = 0
			}
			return math.Inf(-1)
		}
		lp += cell.Deaths*eta - lambda

		r := cell.Deaths - lambda
		gMu += r
		gAlpha[cell.AgeIndex] += r
		gBeta[cell.YearIndex] += r
		gGamma[cell.CohortIndex] += r
	}

	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		for i := range grad {
			grad[i] = 0
		}
		return math.Inf(-1)
	}

	grad[idxMu] += gMu

	off := numScalarPars
	grad[idxLogSigmaA] += sa * walkChain(gAlpha, alpha, grad[off:off+len(deltaA)], sa)
	off += len(deltaA)
	grad[idxLogSigmaT] += st * walkChain(gBeta, beta, grad[off:off+len(deltaT)], st)
	off += len(deltaT)
	grad[idxLogSigmaC] += sc * walkChain(gGamma, gamma, grad[off:off+len(deltaC)], sc)

	return lp
}

// walkChain back-propagates the per-element likelihood gradient gEffect
// through effect = sigma * CenteredRandomWalk(delta). It adds the delta
// contributions into gDelta and returns sum_j gEffect[j]*walk[j], the
// inner product that (scaled by sigma) is the log-scale gradient term,
// since d(effect)/d(log sigma) = effect.
//
// Element k of the walk gradient: increment delta[k] enters every walk
// point from k+1 on, each mean-centered, so the chain rule reduces to a
// suffix sum of gEffect minus its share of the total.
func walkChain(gEffect, walk, gDelta []float64, sigma float64) float64 {
	n := len(gEffect)

	var dot, total float64
	for j, g := range gEffect {
		dot += g * walk[j]
		total += g
	}

	suffix := 0.0
	for k := n - 2; k >= 0; k-- {
		suffix += gEffect[k+1]
		gDelta[k] += sigma * (suffix - float64(n-1-k)/float64(n)*total)
	}
	return dot
}

// Transform maps an unconstrained point to the natural parameterization:
// [mu, sigma_alpha, sigma_beta, sigma_gamma, alpha..., beta..., gamma...].
func (m *Model) Transform(theta []float64) []float64 {
	sa := math.Exp(theta[idxLogSigmaA])
	st := math.Exp(theta[idxLogSigmaT])
	sc := math.Exp(theta[idxLogSigmaC])
	deltaA, deltaT, deltaC := m.slices(theta)

	out := make([]float64, 0, numScalarPars+m.numAges+m.numYears+m.numCohorts)
	out = append(out, theta[idxMu], sa, st, sc)
	for _, w := range CenteredRandomWalk(deltaA) {
		out = append(out, sa*w)
	}
	for _, w := range CenteredRandomWalk(deltaT) {
		out = append(out, st*w)
	}
	for _, w := range CenteredRandomWalk(deltaC) {
		out = append(out, sc*w)
	}
	return out
}

// ParamNames labels the Transform output, in order.
func (m *Model) ParamNames() []string {
	names := make([]string, 0, numScalarPars+m.numAges+m.numYears+m.numCohorts)
	names = append(names, "mu", "sigma_alpha", "sigma_beta", "sigma_gamma")
	for i := 0; i < m.numAges; i++ {
		names = append(names, fmt.Sprintf("alpha_%d", i))
	}
	for j := 0; j < m.numYears; j++ {
		names = append(names, fmt.Sprintf("beta_%d", j))
	}
	for k := 0; k < m.numCohorts; k++ {
		names = append(names, fmt.Sprintf("gamma_%d", k))
	}
	return names
}
