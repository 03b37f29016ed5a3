package contracts

import "time"

// DecompositionMode is the closed set of forecast decompositions
type DecompositionMode string

const (
	ModeAdditive       DecompositionMode = "additive"
	ModeMultiplicative DecompositionMode = "multiplicative"
	ModeMovingAverage  DecompositionMode = "moving_average" // insufficient_history fallback
)

// SeriesPoint is one input value of the demand series
type SeriesPoint struct {
	Period time.Time `json:"period"`
	Units  float64   `json:"units"`
	// Exclude keeps the point out of trend/seasonal estimation (promoted periods)
	Exclude bool `json:"exclude"`
}

// SeriesFromObservations converts observations to a demand series, excluding promoted periods
func SeriesFromObservations(obs []Observation) []SeriesPoint {
	series := make([]SeriesPoint, 0, len(obs))
	for _, o := range obs {
		series = append(series, SeriesPoint{
			Period:  o.Period,
			Units:   o.UnitsSold,
			Exclude: o.IsPromoted(),
		})
	}
	return series
}

// ForecastPoint is one period of a baseline curve
type ForecastPoint struct {
	Period   time.Time `json:"period"`
	Expected float64   `json:"expected_units"`
	Lower    float64   `json:"lower_bound"`
	Upper    float64   `json:"upper_bound"`
}

// ForecastModel is a baseline demand curve for one SKU
// ⭐ 가격 변화 없는 기준선: Optimizer는 이것을 0% 가격변화 anchor로 사용
type ForecastModel struct {
	SKU                 string            `json:"sku_id"`
	FitID               string            `json:"fit_id"`
	FittedAt            time.Time         `json:"fitted_at"`
	ValidUntil          time.Time         `json:"valid_until"`
	Mode                DecompositionMode `json:"mode"`
	Horizon             int               `json:"horizon"`
	SeasonLength        int               `json:"season_length"`
	HistoryLength       int               `json:"history_length"`
	InsufficientHistory bool              `json:"insufficient_history"`
	SeriesCV            float64           `json:"series_cv"`
	TrendIntercept      float64           `json:"trend_intercept"`
	TrendSlope          float64           `json:"trend_slope"`
	SeasonalIndices     []float64         `json:"seasonal_indices,omitempty"`
	ResidualStd         float64           `json:"residual_std"`
	Points              []ForecastPoint   `json:"points"` // forecast horizon
	Fitted              []ForecastPoint   `json:"fitted"` // in-sample baseline
}

// ValidAt reports whether the fit is usable (non-stale) at t
func (m *ForecastModel) ValidAt(t time.Time) bool {
	if m == nil || m.FitID == "" {
		return false
	}
	if m.ValidUntil.IsZero() {
		return true
	}
	return !t.After(m.ValidUntil)
}

// BaselineUnits returns total expected units over the horizon
func (m *ForecastModel) BaselineUnits() float64 {
	total := 0.0
	for _, p := range m.Points {
		total += p.Expected
	}
	return total
}

// FittedFor returns the in-sample baseline for a period
func (m *ForecastModel) FittedFor(period time.Time) (ForecastPoint, bool) {
	for _, p := range m.Fitted {
		if p.Period.Equal(period) {
			return p, true
		}
	}
	return ForecastPoint{}, false
}
