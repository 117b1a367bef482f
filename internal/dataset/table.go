package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "mortfit/internal/errors"
)

// Observation is one cell of the mortality table: a (year, sex, age group)
// combination with its population exposure and death count.
type Observation struct {
	Year       int
	Sex        int
	AgeGroup   int
	Population float64
	Deaths     float64
}

// requiredColumns are the header names the preprocessing pipeline emits.
var requiredColumns = []string{"ano", "sexo", "gr_et", "poblacion", "conteo_defunciones"}

// LoadTable reads the mortality table from a CSV file. Missing combinations
// are absent rows, not zero rows; the loader preserves that.
func LoadTable(path string) ([]Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed reading header of %s", filepath.Base(path)), err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimLeft(strings.TrimSpace(name), "\ufeff")] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewDataError(
			fmt.Sprintf("missing columns in %s: %s", filepath.Base(path), strings.Join(missing, ", ")), nil).
			WithContext("columns", missing)
	}

	var obs []Observation
	row := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed reading row %d", row+1), err)
		}
		row++

		o, err := parseObservation(rec, cols)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("bad value at row %d", row), err)
		}
		obs = append(obs, o)
	}

	if len(obs) == 0 {
		return nil, apperrors.NewDataError(fmt.Sprintf("input table %s has no data rows", filepath.Base(path)), nil)
	}
	return obs, nil
}

func parseObservation(rec []string, cols map[string]int) (Observation, error) {
	year, err := strconv.Atoi(strings.TrimSpace(rec[cols["ano"]]))
	if err != nil {
		return Observation{}, fmt.Errorf("ano: %w", err)
	}
	sex, err := strconv.Atoi(strings.TrimSpace(rec[cols["sexo"]]))
	if err != nil {
		return Observation{}, fmt.Errorf("sexo: %w", err)
	}
	age, err := strconv.Atoi(strings.TrimSpace(rec[cols["gr_et"]]))
	if err != nil {
		return Observation{}, fmt.Errorf("gr_et: %w", err)
	}
	pop, err := parseOptionalFloat(rec[cols["poblacion"]])
	if err != nil {
		return Observation{}, fmt.Errorf("poblacion: %w", err)
	}
	deaths, err := parseOptionalFloat(rec[cols["conteo_defunciones"]])
	if err != nil {
		return Observation{}, fmt.Errorf("conteo_defunciones: %w", err)
	}

	return Observation{Year: year, Sex: sex, AgeGroup: age, Population: pop, Deaths: deaths}, nil
}

// parseOptionalFloat treats an empty field as NaN so the cell is excluded
// by the exposure filter instead of failing the whole load.
func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nan, nil
	}
	return strconv.ParseFloat(s, 64)
}
