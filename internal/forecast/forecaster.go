package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/rgm/internal/contracts"
)

// decompositionPasses alternates trend and seasonal estimation this many times
const decompositionPasses = 2

// defaultStep is the period spacing used when the series has a single point
const defaultStep = 7 * 24 * time.Hour

// median spacings in this range are treated as calendar months
const (
	minMonthStep = 28 * 24 * time.Hour
	maxMonthStep = 31 * 24 * time.Hour
)

// Forecaster 기준선 수요 예측기
// ⭐ SSOT: 가격 변화 0% 기준선. 추세 + 계절성 분해를 명시적으로 수행
//
// Mode rule: the series coefficient of variation above MultiplicativeCVThreshold with a
// positive trend selects multiplicative decomposition, otherwise additive. A history
// spanning fewer than two full seasonal cycles selects the moving-average fallback.
// Excluded (promoted) periods still count toward the span but not toward the fit.
//
// Points sit on a period grid derived from their dates, so missing periods keep the
// seasonal phase and the horizon continues at the series' own spacing.
type Forecaster struct {
	config contracts.ForecastConfig
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewForecaster 새 예측기 생성
func NewForecaster(config contracts.ForecastConfig, ttl time.Duration, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		config: config,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "forecast.forecaster").Logger(),
	}
}

// WithClock overrides the fit timestamp source
func (f *Forecaster) WithClock(now func() time.Time) *Forecaster {
	f.now = now
	return f
}

// Fit produces the baseline curve for one SKU over the horizon
func (f *Forecaster) Fit(sku string, series []contracts.SeriesPoint, horizon int) (*contracts.ForecastModel, error) {
	if horizon < 1 {
		horizon = f.config.Horizon
	}
	points := cleanSeries(series)
	if len(points) == 0 {
		return nil, &contracts.DataQualityError{
			SKU:    sku,
			Flag:   contracts.FlagInsufficientHistory,
			Reason: "empty demand series",
		}
	}

	fittedAt := f.now()
	model := &contracts.ForecastModel{
		SKU:           sku,
		FitID:         uuid.NewString(),
		FittedAt:      fittedAt,
		Horizon:       horizon,
		SeasonLength:  f.config.SeasonLength,
		HistoryLength: len(points),
	}
	if f.ttl > 0 {
		model.ValidUntil = fittedAt.Add(f.ttl)
	}

	g := newGrid(points)
	pos := make([]int, len(points))
	for i, p := range points {
		pos[i] = g.position(p.Period)
	}
	span := pos[len(pos)-1] + 1

	usable := usableIndexes(points)
	ys := make([]float64, len(usable))
	for i, idx := range usable {
		ys[i] = points[idx].Units
	}
	if len(ys) > 1 {
		mean, std := stat.MeanStdDev(ys, nil)
		if mean > 0 {
			model.SeriesCV = std / mean
		}
	}

	z := distuv.UnitNormal.Quantile(1 - (1-f.config.ConfidenceLevel)/2)

	if span < 2*f.config.SeasonLength {
		f.fitMovingAverage(model, points, usable, z)
		f.log.Debug().
			Str("sku", sku).
			Int("history", span).
			Int("required", 2*f.config.SeasonLength).
			Msg("insufficient history, moving-average baseline")
	} else {
		f.fitDecomposition(model, points, pos, usable, z)
		f.log.Debug().
			Str("sku", sku).
			Int("points", len(points)).
			Int("span", span).
			Str("mode", string(model.Mode)).
			Float64("series_cv", model.SeriesCV).
			Float64("trend_slope", model.TrendSlope).
			Float64("residual_std", model.ResidualStd).
			Msg("baseline fitted")
	}

	width := z * model.ResidualStd
	if model.InsufficientHistory {
		width *= f.config.FallbackWidening
	}
	last := len(points) - 1
	model.Points = make([]contracts.ForecastPoint, horizon)
	for h := 1; h <= horizon; h++ {
		model.Points[h-1] = band(g.after(points[last].Period, h), valueAt(model, pos[last]+h), width)
	}

	return model, nil
}

// fitMovingAverage 이력 부족 시 이동평균 기준선 (불확실성 구간 확대)
func (f *Forecaster) fitMovingAverage(model *contracts.ForecastModel, points []contracts.SeriesPoint, usable []int, z float64) {
	model.Mode = contracts.ModeMovingAverage
	model.InsufficientHistory = true

	window := f.config.MAWindow
	if window > len(usable) {
		window = len(usable)
	}
	tail := make([]float64, window)
	for i, idx := range usable[len(usable)-window:] {
		tail[i] = points[idx].Units
	}
	level := stat.Mean(tail, nil)
	if window > 1 {
		model.ResidualStd = stat.StdDev(tail, nil)
	}
	model.TrendIntercept = level

	width := z * model.ResidualStd * f.config.FallbackWidening
	model.Fitted = make([]contracts.ForecastPoint, len(points))
	for i, p := range points {
		expected := trailingMean(points, usable, i, window, level)
		model.Fitted[i] = band(p.Period, expected, width)
	}
}

// fitDecomposition 추세(선형회귀) + 계절지수 분해
func (f *Forecaster) fitDecomposition(model *contracts.ForecastModel, points []contracts.SeriesPoint, pos, usable []int, z float64) {
	L := f.config.SeasonLength
	ts := make([]float64, len(usable))
	ys := make([]float64, len(usable))
	for i, idx := range usable {
		ts[i] = float64(pos[idx])
		ys[i] = points[idx].Units
	}

	alpha, beta := stat.LinearRegression(ts, ys, nil, false)
	mode := contracts.ModeAdditive
	if model.SeriesCV > f.config.MultiplicativeCVThreshold && beta > 0 && alpha > 0 {
		mode = contracts.ModeMultiplicative
	}

	var seasonal []float64
	adjusted := make([]float64, len(ys))
	for pass := 0; pass < decompositionPasses; pass++ {
		seasonal = seasonalIndices(ts, ys, L, mode, func(t float64) float64 { return alpha + beta*t })

		for i, t := range ts {
			s := seasonal[int(t)%L]
			if mode == contracts.ModeMultiplicative && s > 0 {
				adjusted[i] = ys[i] / s
			} else if mode == contracts.ModeAdditive {
				adjusted[i] = ys[i] - s
			} else {
				adjusted[i] = ys[i]
			}
		}
		alpha, beta = stat.LinearRegression(ts, adjusted, nil, false)
	}

	model.Mode = mode
	model.TrendIntercept = alpha
	model.TrendSlope = beta
	model.SeasonalIndices = seasonal

	sse := 0.0
	for i, t := range ts {
		r := ys[i] - valueAt(model, int(t))
		sse += r * r
	}
	if dof := len(ts) - 2; dof > 0 {
		model.ResidualStd = math.Sqrt(sse / float64(dof))
	}

	width := z * model.ResidualStd
	model.Fitted = make([]contracts.ForecastPoint, len(points))
	for i, p := range points {
		model.Fitted[i] = band(p.Period, valueAt(model, pos[i]), width)
	}
}

// valueAt evaluates the fitted components at series position t
func valueAt(model *contracts.ForecastModel, t int) float64 {
	switch model.Mode {
	case contracts.ModeMovingAverage:
		return model.TrendIntercept
	case contracts.ModeMultiplicative:
		return (model.TrendIntercept + model.TrendSlope*float64(t)) * model.SeasonalIndices[t%len(model.SeasonalIndices)]
	case contracts.ModeAdditive:
		return model.TrendIntercept + model.TrendSlope*float64(t) + model.SeasonalIndices[t%len(model.SeasonalIndices)]
	default:
		return 0
	}
}

// seasonalIndices averages detrended values per seasonal position and normalizes them
func seasonalIndices(ts, ys []float64, L int, mode contracts.DecompositionMode, trend func(float64) float64) []float64 {
	sums := make([]float64, L)
	counts := make([]int, L)
	for i, t := range ts {
		pos := int(t) % L
		tr := trend(t)
		switch mode {
		case contracts.ModeMultiplicative:
			if tr <= 0 {
				continue
			}
			sums[pos] += ys[i] / tr
		default:
			sums[pos] += ys[i] - tr
		}
		counts[pos]++
	}

	idx := make([]float64, L)
	for p := range idx {
		switch {
		case counts[p] > 0:
			idx[p] = sums[p] / float64(counts[p])
		case mode == contracts.ModeMultiplicative:
			idx[p] = 1
		}
	}

	mean := stat.Mean(idx, nil)
	for p := range idx {
		if mode == contracts.ModeMultiplicative {
			if mean > 0 {
				idx[p] /= mean
			}
		} else {
			idx[p] -= mean
		}
	}
	return idx
}

// cleanSeries drops invalid points and sorts by period
func cleanSeries(series []contracts.SeriesPoint) []contracts.SeriesPoint {
	out := make([]contracts.SeriesPoint, 0, len(series))
	for _, p := range series {
		if p.Period.IsZero() || math.IsNaN(p.Units) || math.IsInf(p.Units, 0) || p.Units < 0 {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// usableIndexes returns non-excluded positions; a fully promoted history uses everything
func usableIndexes(points []contracts.SeriesPoint) []int {
	idx := make([]int, 0, len(points))
	for i, p := range points {
		if !p.Exclude {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		for i := range points {
			idx = append(idx, i)
		}
	}
	return idx
}

// trailingMean averages up to window usable points at or before position i
func trailingMean(points []contracts.SeriesPoint, usable []int, i, window int, fallback float64) float64 {
	sum, n := 0.0, 0
	for k := len(usable) - 1; k >= 0 && n < window; k-- {
		if usable[k] > i {
			continue
		}
		sum += points[usable[k]].Units
		n++
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

// grid maps periods to integer positions counted from the first period.
// The step is the median spacing, so isolated gaps do not change it.
type grid struct {
	origin  time.Time
	step    time.Duration
	monthly bool
}

func newGrid(points []contracts.SeriesPoint) grid {
	g := grid{origin: points[0].Period, step: defaultStep}
	diffs := make([]float64, 0, len(points))
	for i := 1; i < len(points); i++ {
		if d := points[i].Period.Sub(points[i-1].Period); d > 0 {
			diffs = append(diffs, float64(d))
		}
	}
	if len(diffs) > 0 {
		sort.Float64s(diffs)
		g.step = time.Duration(stat.Quantile(0.5, stat.Empirical, diffs, nil))
	}
	g.monthly = g.step >= minMonthStep && g.step <= maxMonthStep
	return g
}

// position is the number of steps between the origin and t
func (g grid) position(t time.Time) int {
	if g.monthly {
		return (t.Year()-g.origin.Year())*12 + int(t.Month()-g.origin.Month())
	}
	return int(math.Round(float64(t.Sub(g.origin)) / float64(g.step)))
}

// after returns the period h steps after t
func (g grid) after(t time.Time, h int) time.Time {
	if g.monthly {
		return t.AddDate(0, h, 0)
	}
	return t.Add(time.Duration(h) * g.step)
}

func band(period time.Time, expected, width float64) contracts.ForecastPoint {
	expected = math.Max(0, expected)
	return contracts.ForecastPoint{
		Period:   period,
		Expected: expected,
		Lower:    math.Max(0, expected-width),
		Upper:    expected + width,
	}
}

// Baseline returns the fitted in-sample baseline for the given periods
func Baseline(model *contracts.ForecastModel, periods []time.Time) ([]float64, error) {
	if model == nil {
		return nil, fmt.Errorf("no forecast model")
	}
	out := make([]float64, len(periods))
	for i, p := range periods {
		fp, ok := model.FittedFor(p)
		if !ok {
			return nil, fmt.Errorf("no fitted baseline for %s at %s", model.SKU, p.Format("2006-01-02"))
		}
		out[i] = fp.Expected
	}
	return out, nil
}
