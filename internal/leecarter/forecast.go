package leecarter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Forecast method names, recorded for logging.
const (
	MethodDrift  = "random-walk-drift"
	MethodLinear = "linear-trend"
)

// Forecast is the historical time index extended by h future points.
type Forecast struct {
	Years  []int
	Kt     []float64
	Method string
}

// ForecastKt extrapolates the time index h years past the last observed
// year. The primary model is a random walk with drift, the conventional
// ARIMA(0,1,0)+drift choice for kt; when that fit is degenerate the
// forecaster silently falls back to extrapolating an ordinary
// least-squares line over the history. Forecasting always produces a
// result for valid input; it never fails the pipeline.
func ForecastKt(years []int, kt []float64, horizon int) (*Forecast, error) {
	if len(years) != len(kt) {
		return nil, fmt.Errorf("years and kt length mismatch: %d vs %d", len(years), len(kt))
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("empty time index")
	}
	if horizon < 0 {
		return nil, fmt.Errorf("horizon must be >= 0, got %d", horizon)
	}

	outYears := make([]int, len(years), len(years)+horizon)
	outKt := make([]float64, len(kt), len(kt)+horizon)
	copy(outYears, years)
	copy(outKt, kt)

	if horizon == 0 {
		return &Forecast{Years: outYears, Kt: outKt, Method: MethodDrift}, nil
	}

	lastYear := years[len(years)-1]
	for i := 1; i <= horizon; i++ {
		outYears = append(outYears, lastYear+i)
	}

	future, method := forecastValues(years, kt, horizon)
	outKt = append(outKt, future...)

	return &Forecast{Years: outYears, Kt: outKt, Method: method}, nil
}

func forecastValues(years []int, kt []float64, horizon int) ([]float64, string) {
	if future, err := driftForecast(kt, horizon); err == nil {
		return future, MethodDrift
	}
	return linearForecast(years, kt, horizon), MethodLinear
}

// driftForecast fits a random walk with drift: the drift is the mean first
// difference of the series, and the point forecast advances the last
// observed value by the drift each step.
func driftForecast(kt []float64, horizon int) ([]float64, error) {
	if len(kt) < 2 {
		return nil, fmt.Errorf("need at least 2 observations to estimate drift, got %d", len(kt))
	}

	drift := (kt[len(kt)-1] - kt[0]) / float64(len(kt)-1)
	if math.IsNaN(drift) || math.IsInf(drift, 0) {
		return nil, fmt.Errorf("non-finite drift estimate")
	}

	last := kt[len(kt)-1]
	future := make([]float64, horizon)
	for i := range future {
		future[i] = last + float64(i+1)*drift
	}
	return future, nil
}

// linearForecast extrapolates an OLS line kt ~ b0 + b1*year. With a single
// observation the series is extended flat.
func linearForecast(years []int, kt []float64, horizon int) []float64 {
	future := make([]float64, horizon)

	if len(kt) == 1 {
		for i := range future {
			future[i] = kt[0]
		}
		return future
	}

	xs := make([]float64, len(years))
	for i, y := range years {
		xs[i] = float64(y)
	}
	b0, b1 := stat.LinearRegression(xs, kt, nil, false)

	lastYear := float64(years[len(years)-1])
	for i := range future {
		future[i] = b0 + b1*(lastYear+float64(i+1))
	}
	return future
}
