// Package evaluate scores fitted mortality surfaces against observed
// rates on the overlap of their grids.
package evaluate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"mortfit/internal/dataset"
	apperrors "mortfit/internal/errors"
)

// Metrics summarizes fit quality over the paired cells of one model.
// MAPE and MPE are percentages; MPE and Bias keep their sign, so a
// negative MPE means the model under-predicts on average.
type Metrics struct {
	Model string
	N     int
	MAE   float64
	RMSE  float64
	MAPE  float64
	MPE   float64
	R2    float64
	Bias  float64
}

// Compare pairs the observed and fitted surfaces on the intersection of
// their ages and years, drops pairs where either value is not finite, and
// computes the metrics over what remains. An empty intersection or no
// finite pairs is an error, never a zero-filled result.
func Compare(model string, observed, fitted *dataset.Surface) (*Metrics, error) {
	var truth, pred []float64

	for i, age := range observed.Ages {
		fi := index(fitted.Ages, age)
		if fi < 0 {
			continue
		}
		for j, year := range observed.Years {
			fj := index(fitted.Years, year)
			if fj < 0 {
				continue
			}
			t := observed.At(i, j)
			p := fitted.At(fi, fj)
			if !finite(t) || !finite(p) {
				continue
			}
			truth = append(truth, t)
			pred = append(pred, p)
		}
	}

	if len(truth) == 0 {
		return nil, apperrors.NewDataError(
			fmt.Sprintf("no comparable cells between observed and %s surfaces", model), nil)
	}

	n := len(truth)
	var sumAbs, sumSq, sumAbsPct, sumPct, sumErr float64
	for k := range truth {
		e := pred[k] - truth[k]
		sumAbs += math.Abs(e)
		sumSq += e * e
		sumAbsPct += math.Abs(e / truth[k])
		sumPct += e / truth[k]
		sumErr += e
	}

	return &Metrics{
		Model: model,
		N:     n,
		MAE:   sumAbs / float64(n),
		RMSE:  math.Sqrt(sumSq / float64(n)),
		MAPE:  sumAbsPct / float64(n) * 100,
		MPE:   sumPct / float64(n) * 100,
		R2:    stat.RSquaredFrom(pred, truth, nil),
		Bias:  sumErr / float64(n),
	}, nil
}

func index(vals []int, v int) int {
	for i, x := range vals {
		if x == v {
			return i
		}
	}
	return -1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
