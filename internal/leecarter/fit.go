package leecarter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"mortfit/internal/dataset"
)

// bxSumEpsilon guards the identifiability normalization against a
// degenerate first singular vector whose entries sum to (near) zero.
const bxSumEpsilon = 1e-8

// Fit holds the Lee-Carter decomposition of a log-rate surface.
type Fit struct {
	Ages  []int
	Years []int
	Ax    []float64 // time-averaged log-rate per age
	Bx    []float64 // sensitivity to the time index, sum(Bx) = 1
	Kt    []float64 // time index, sum(Kt) = 0

	// LogFitted is the rank-1 reconstruction ax + bx*kt.
	LogFitted *mat.Dense
}

// FitLogRates decomposes a dense log-rate surface. The input must have at
// least two ages and two years and contain no missing values.
func FitLogRates(logRates *dataset.Surface) (*Fit, error) {
	a, t := logRates.Values.Dims()
	if a < 2 || t < 2 {
		return nil, fmt.Errorf("log-rate matrix must be at least 2x2, got %dx%d", a, t)
	}

	// ax: time average per age; residual R = L - ax.
	ax := make([]float64, a)
	r := mat.NewDense(a, t, nil)
	for i := 0; i < a; i++ {
		row := mat.Row(nil, i, logRates.Values)
		ax[i] = stat.Mean(row, nil)
		for j := 0; j < t; j++ {
			r.Set(i, j, row[j]-ax[i])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(r, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization of %dx%d residual matrix failed", a, t)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s1 := svd.Values(nil)[0]

	bx := mat.Col(nil, 0, &u)
	kt := mat.Col(nil, 0, &v)
	floats.Scale(s1, kt)

	// First constraint: sum(bx) = 1. The time index absorbs the scale so
	// the product bx*kt is unchanged.
	sum := floats.Sum(bx)
	if math.Abs(sum) < bxSumEpsilon {
		sum = floats.Norm(bx, 1) + 1e-12
	}
	floats.Scale(1/sum, bx)
	floats.Scale(sum, kt)

	// Second constraint: sum(kt) = 0. The age effect absorbs the shift,
	// keeping the reconstruction exact.
	ktMean := stat.Mean(kt, nil)
	floats.AddConst(-ktMean, kt)
	floats.AddScaled(ax, ktMean, bx)

	fitted := mat.NewDense(a, t, nil)
	for i := 0; i < a; i++ {
		for j := 0; j < t; j++ {
			fitted.Set(i, j, ax[i]+bx[i]*kt[j])
		}
	}

	return &Fit{
		Ages:      logRates.Ages,
		Years:     logRates.Years,
		Ax:        ax,
		Bx:        bx,
		Kt:        kt,
		LogFitted: fitted,
	}, nil
}

// Rates returns the fitted mortality rate surface exp(ax + bx*kt).
func (f *Fit) Rates() *dataset.Surface {
	s := &dataset.Surface{Ages: f.Ages, Years: f.Years, Values: f.LogFitted}
	return s.Exp()
}

// RatesForKt builds a rate surface from the fitted ax and bx over an
// arbitrary time index, typically the forecast-extended kt.
func (f *Fit) RatesForKt(years []int, kt []float64) *dataset.Surface {
	a := len(f.Ax)
	values := mat.NewDense(a, len(kt), nil)
	for i := 0; i < a; i++ {
		for j := range kt {
			values.Set(i, j, math.Exp(f.Ax[i]+f.Bx[i]*kt[j]))
		}
	}
	return &dataset.Surface{Ages: f.Ages, Years: years, Values: values}
}
