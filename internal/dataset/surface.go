package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	apperrors "mortfit/internal/errors"
)

// Surface is an age-by-year matrix of values (rates or log-rates), keyed by
// age-group rows and year columns. Fitted and forecast surfaces from both
// models use this shape, as does the observed-rate pivot.
type Surface struct {
	Ages   []int
	Years  []int
	Values *mat.Dense
}

// At returns the value at age row i and year column j.
func (s *Surface) At(i, j int) float64 { return s.Values.At(i, j) }

// Exp returns a new surface with every value exponentiated. Converts a
// log-rate surface into a rate surface.
func (s *Surface) Exp() *Surface {
	r, c := s.Values.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, s.Values)
	return &Surface{Ages: s.Ages, Years: s.Years, Values: out}
}

// ReadSurfaceCSV reads a surface written by the exporter: a header row with
// the age-label column followed by one column per year, then one row per
// age group. Empty cells become NaN.
func ReadSurfaceCSV(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open surface: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed reading header of %s", filepath.Base(path)), err)
	}
	if len(header) < 2 {
		return nil, apperrors.NewDataError(fmt.Sprintf("surface %s has no year columns", filepath.Base(path)), nil)
	}

	years := make([]int, 0, len(header)-1)
	for _, h := range header[1:] {
		y, err := strconv.Atoi(strings.TrimLeft(strings.TrimSpace(h), "\ufeff"))
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("bad year column %q in %s", h, filepath.Base(path)), err)
		}
		years = append(years, y)
	}

	var ages []int
	var rows [][]float64
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed reading row %d of %s", line+1, filepath.Base(path)), err)
		}
		line++
		if len(rec) != len(header) {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("row %d of %s has %d fields, want %d", line, filepath.Base(path), len(rec), len(header)), nil)
		}

		age, err := strconv.Atoi(strings.TrimLeft(strings.TrimSpace(rec[0]), "\ufeff"))
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("bad age label %q at row %d", rec[0], line), err)
		}
		vals := make([]float64, len(years))
		for j, field := range rec[1:] {
			field = strings.TrimSpace(field)
			if field == "" {
				vals[j] = nan
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("bad value %q at row %d", field, line), err)
			}
			vals[j] = v
		}
		ages = append(ages, age)
		rows = append(rows, vals)
	}

	if len(ages) == 0 {
		return nil, apperrors.NewDataError(fmt.Sprintf("surface %s has no age rows", filepath.Base(path)), nil)
	}

	values := mat.NewDense(len(ages), len(years), nil)
	for i, row := range rows {
		values.SetRow(i, row)
	}
	return &Surface{Ages: ages, Years: years, Values: values}, nil
}
