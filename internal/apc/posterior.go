package apc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"mortfit/internal/dataset"
	apperrors "mortfit/internal/errors"
)

// Posterior holds the retained draws of every chain together with
// posterior-mean summaries of the natural parameters. Draws are in the
// Transform layout, labelled by ParamNames.
type Posterior struct {
	NumAges    int
	NumYears   int
	NumCohorts int

	ParamNames []string
	Chains     [][][]float64 // chain -> draw -> parameter

	Mu         float64
	SigmaAlpha float64
	SigmaBeta  float64
	SigmaGamma float64
	Alpha      []float64
	Beta       []float64
	Gamma      []float64
}

func newPosterior(m *Model, chains [][][]float64) *Posterior {
	p := &Posterior{
		NumAges:    m.numAges,
		NumYears:   m.numYears,
		NumCohorts: m.numCohorts,
		ParamNames: m.ParamNames(),
		Chains:     chains,
	}

	means := make([]float64, len(p.ParamNames))
	n := 0
	for _, chain := range chains {
		for _, draw := range chain {
			for i, v := range draw {
				means[i] += v
			}
			n++
		}
	}
	for i := range means {
		means[i] /= float64(n)
	}

	p.Mu = means[idxMu]
	p.SigmaAlpha = means[idxLogSigmaA]
	p.SigmaBeta = means[idxLogSigmaT]
	p.SigmaGamma = means[idxLogSigmaC]

	off := numScalarPars
	p.Alpha = append([]float64(nil), means[off:off+m.numAges]...)
	off += m.numAges
	p.Beta = append([]float64(nil), means[off:off+m.numYears]...)
	off += m.numYears
	p.Gamma = append([]float64(nil), means[off:off+m.numCohorts]...)
	return p
}

// Summary returns the posterior mean per parameter, aligned with
// ParamNames.
func (p *Posterior) Summary() []float64 {
	out := make([]float64, 0, len(p.ParamNames))
	out = append(out, p.Mu, p.SigmaAlpha, p.SigmaBeta, p.SigmaGamma)
	out = append(out, p.Alpha...)
	out = append(out, p.Beta...)
	out = append(out, p.Gamma...)
	return out
}

// FittedRates builds the plug-in rate surface exp(mu + alpha + beta +
// gamma) over the full grid, using the posterior means. The grid must
// match the one the model was fitted on.
func (p *Posterior) FittedRates(rm *dataset.RateMatrix) (*dataset.Surface, error) {
	if len(rm.Ages) != p.NumAges || len(rm.Years) != p.NumYears {
		return nil, apperrors.NewDataError(
			fmt.Sprintf("grid is %dx%d but posterior was fitted on %dx%d",
				len(rm.Ages), len(rm.Years), p.NumAges, p.NumYears), nil)
	}

	values := mat.NewDense(p.NumAges, p.NumYears, nil)
	for i := 0; i < p.NumAges; i++ {
		for j := 0; j < p.NumYears; j++ {
			c := j - i + p.NumAges - 1
			values.Set(i, j, math.Exp(p.Mu+p.Alpha[i]+p.Beta[j]+p.Gamma[c]))
		}
	}
	return &dataset.Surface{Ages: rm.Ages, Years: rm.Years, Values: values}, nil
}
