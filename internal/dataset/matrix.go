package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	apperrors "mortfit/internal/errors"
)

var nan = math.NaN()

// RateMatrix holds the age-by-year death count and exposure matrices for a
// single sex, aligned on the union of all observed ages and years.
// Unobserved cells are NaN, never zero.
type RateMatrix struct {
	Ages     []int
	Years    []int
	Deaths   *mat.Dense
	Exposure *mat.Dense
}

// Cell is one observable training example for the age-period-cohort model,
// indexed by position in the rate matrix.
type Cell struct {
	AgeIndex    int
	YearIndex   int
	CohortIndex int
	Exposure    float64
	Deaths      float64
}

// HaldaneRate computes the zero-corrected mortality rate (deaths+0.5)/population.
// Strictly positive for any population > 0 and deaths >= 0.
func HaldaneRate(deaths, population float64) float64 {
	return (deaths + 0.5) / population
}

// BuildMatrices pivots the observation table for one sex into age-by-year
// matrices of death counts and exposures.
func BuildMatrices(obs []Observation, sex int) (*RateMatrix, error) {
	ageSet := make(map[int]bool)
	yearSet := make(map[int]bool)
	n := 0
	for _, o := range obs {
		if o.Sex != sex {
			continue
		}
		n++
		ageSet[o.AgeGroup] = true
		yearSet[o.Year] = true
	}
	if n == 0 {
		return nil, apperrors.NewDataError(fmt.Sprintf("no rows for sex=%d", sex), nil)
	}

	ages := sortedKeys(ageSet)
	years := sortedKeys(yearSet)
	ageIdx := indexOf(ages)
	yearIdx := indexOf(years)

	rm := &RateMatrix{
		Ages:     ages,
		Years:    years,
		Deaths:   fullNaN(len(ages), len(years)),
		Exposure: fullNaN(len(ages), len(years)),
	}

	// Duplicates are tracked in a seen set: a NaN death count (empty
	// field) still claims its cell.
	seen := make(map[[2]int]bool, n)
	for _, o := range obs {
		if o.Sex != sex {
			continue
		}
		i, j := ageIdx[o.AgeGroup], yearIdx[o.Year]
		if seen[[2]int{i, j}] {
			return nil, apperrors.NewDataError(
				fmt.Sprintf("duplicate cell for sex=%d gr_et=%d ano=%d", sex, o.AgeGroup, o.Year), nil)
		}
		seen[[2]int{i, j}] = true
		rm.Deaths.Set(i, j, o.Deaths)
		rm.Exposure.Set(i, j, o.Population)
	}

	return rm, nil
}

// NumAges returns the number of age groups in the matrix.
func (rm *RateMatrix) NumAges() int { return len(rm.Ages) }

// NumYears returns the number of years in the matrix.
func (rm *RateMatrix) NumYears() int { return len(rm.Years) }

// observable reports whether cell (i, j) has positive exposure and a
// recorded death count.
func (rm *RateMatrix) observable(i, j int) bool {
	e := rm.Exposure.At(i, j)
	d := rm.Deaths.At(i, j)
	return !math.IsNaN(e) && !math.IsNaN(d) && e > 0
}

// ObservedRates returns the Haldane-corrected rate surface, with NaN for
// cells that are not observable. Used as the ground truth by the evaluator.
func (rm *RateMatrix) ObservedRates() *Surface {
	a, t := rm.NumAges(), rm.NumYears()
	v := fullNaN(a, t)
	for i := 0; i < a; i++ {
		for j := 0; j < t; j++ {
			if rm.observable(i, j) {
				v.Set(i, j, HaldaneRate(rm.Deaths.At(i, j), rm.Exposure.At(i, j)))
			}
		}
	}
	return &Surface{Ages: rm.Ages, Years: rm.Years, Values: v}
}

// LogRates returns the dense log-rate matrix ln((D+0.5)/E) for the
// Lee-Carter fit. Rows and columns that are entirely unobservable are
// dropped first; if partially missing cells remain, the offending columns
// and then rows are dropped entirely rather than imputed, so the result is
// always dense and log-definable. The surviving matrix must keep at least
// two ages and two years.
func (rm *RateMatrix) LogRates() (*Surface, error) {
	a, t := rm.NumAges(), rm.NumYears()
	ln := fullNaN(a, t)
	for i := 0; i < a; i++ {
		for j := 0; j < t; j++ {
			if rm.observable(i, j) {
				ln.Set(i, j, math.Log(HaldaneRate(rm.Deaths.At(i, j), rm.Exposure.At(i, j))))
			}
		}
	}

	keepRow := notAllNaNRows(ln)
	keepCol := notAllNaNCols(ln)
	ages, years, ln := submatrix(rm.Ages, rm.Years, ln, keepRow, keepCol)
	if err := checkLogRateDims(ages, years); err != nil {
		return nil, err
	}

	if hasNaN(ln) {
		// Conservative partial-missing policy: columns first, then rows.
		keepCol = noNaNCols(ln)
		ages, years, ln = submatrix(ages, years, ln, all(len(ages)), keepCol)
		if err := checkLogRateDims(ages, years); err != nil {
			return nil, err
		}
		keepRow = noNaNRows(ln)
		ages, years, ln = submatrix(ages, years, ln, keepRow, all(len(years)))
	}

	if err := checkLogRateDims(ages, years); err != nil {
		return nil, err
	}
	return &Surface{Ages: ages, Years: years, Values: ln}, nil
}

// ObservedCells flattens the matrix into independent training examples for
// the age-period-cohort model, keeping only cells with positive exposure.
// The cohort index is derived as yearIndex - ageIndex + (numAges-1) and
// ranges over [0, numAges+numYears-2].
func (rm *RateMatrix) ObservedCells() ([]Cell, error) {
	a, t := rm.NumAges(), rm.NumYears()
	var cells []Cell
	for i := 0; i < a; i++ {
		for j := 0; j < t; j++ {
			if !rm.observable(i, j) {
				continue
			}
			cells = append(cells, Cell{
				AgeIndex:    i,
				YearIndex:   j,
				CohortIndex: j - i + (a - 1),
				Exposure:    rm.Exposure.At(i, j),
				Deaths:      rm.Deaths.At(i, j),
			})
		}
	}
	if len(cells) == 0 {
		return nil, apperrors.NewDataError("no observed cells with positive exposure", nil)
	}
	return cells, nil
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func indexOf(vals []int) map[int]int {
	idx := make(map[int]int, len(vals))
	for i, v := range vals {
		idx[v] = i
	}
	return idx
}

func fullNaN(r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, nan)
		}
	}
	return m
}

func hasNaN(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.At(i, j)) {
				return true
			}
		}
	}
	return false
}

func notAllNaNRows(m *mat.Dense) []bool {
	r, c := m.Dims()
	keep := make([]bool, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !math.IsNaN(m.At(i, j)) {
				keep[i] = true
				break
			}
		}
	}
	return keep
}

func notAllNaNCols(m *mat.Dense) []bool {
	r, c := m.Dims()
	keep := make([]bool, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			if !math.IsNaN(m.At(i, j)) {
				keep[j] = true
				break
			}
		}
	}
	return keep
}

func noNaNRows(m *mat.Dense) []bool {
	r, c := m.Dims()
	keep := make([]bool, r)
	for i := 0; i < r; i++ {
		keep[i] = true
		for j := 0; j < c; j++ {
			if math.IsNaN(m.At(i, j)) {
				keep[i] = false
				break
			}
		}
	}
	return keep
}

func noNaNCols(m *mat.Dense) []bool {
	r, c := m.Dims()
	keep := make([]bool, c)
	for j := 0; j < c; j++ {
		keep[j] = true
		for i := 0; i < r; i++ {
			if math.IsNaN(m.At(i, j)) {
				keep[j] = false
				break
			}
		}
	}
	return keep
}

func all(n int) []bool {
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	return keep
}

func checkLogRateDims(ages, years []int) error {
	if len(ages) < 2 || len(years) < 2 {
		return apperrors.NewDataError(
			fmt.Sprintf("log-rate matrix too small after dropping missing cells: %d ages x %d years", len(ages), len(years)), nil)
	}
	return nil
}

// submatrix selects the kept rows and columns along with their labels.
// Returns a nil matrix when nothing survives; callers check dimensions.
func submatrix(ages, years []int, m *mat.Dense, keepRow, keepCol []bool) ([]int, []int, *mat.Dense) {
	var outAges, outYears []int
	for i, k := range keepRow {
		if k {
			outAges = append(outAges, ages[i])
		}
	}
	for j, k := range keepCol {
		if k {
			outYears = append(outYears, years[j])
		}
	}
	if len(outAges) == 0 || len(outYears) == 0 {
		return outAges, outYears, nil
	}
	out := mat.NewDense(len(outAges), len(outYears), nil)
	oi := 0
	for i, ki := range keepRow {
		if !ki {
			continue
		}
		oj := 0
		for j, kj := range keepCol {
			if !kj {
				continue
			}
			out.Set(oi, oj, m.At(i, j))
			oj++
		}
		oi++
	}
	return outAges, outYears, out
}
