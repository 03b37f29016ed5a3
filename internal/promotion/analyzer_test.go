package promotion

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/internal/contracts"
)

var week0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func period(i int) time.Time {
	return week0.AddDate(0, 0, 7*i)
}

// flatBaseline fits 100 units for every period
func flatBaseline(n int) *contracts.ForecastModel {
	m := &contracts.ForecastModel{SKU: "SKU-P", FitID: "fc-1", Mode: contracts.ModeAdditive}
	for i := 0; i < n; i++ {
		m.Fitted = append(m.Fitted, contracts.ForecastPoint{Period: period(i), Expected: 100, Lower: 90, Upper: 110})
	}
	return m
}

func history(n int) []contracts.Observation {
	obs := make([]contracts.Observation, n)
	for i := range obs {
		obs[i] = contracts.Observation{SKU: "SKU-P", Period: period(i), Price: 10, UnitsSold: 100}
	}
	return obs
}

func promote(o *contracts.Observation, units, price float64, events ...contracts.PromotionEvent) {
	o.PromotionFlag = true
	o.UnitsSold = units
	o.Price = price
	o.Promotions = events
	if len(events) > 0 {
		o.DiscountDepth = events[0].DiscountDepth
	}
}

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(contracts.DefaultScenarioConfig().Promotion, zerolog.Nop())
}

func TestAnalyze_NonOverlappingLiftsAttributedExactly(t *testing.T) {
	obs := history(30)
	for _, i := range []int{3, 9, 15} {
		promote(&obs[i], 120, 8.5, contracts.PromotionEvent{PromotionID: "A", DiscountDepth: 0.15, Cost: 20})
	}
	for _, i := range []int{6, 12, 20, 25} {
		promote(&obs[i], 135, 6.5, contracts.PromotionEvent{PromotionID: "B", DiscountDepth: 0.35, Cost: 50})
	}

	report, err := newTestAnalyzer().Analyze("SKU-P", obs, flatBaseline(30), 4)
	require.NoError(t, err)

	assert.Equal(t, "fc-1", report.ForecastFitID)
	assert.Empty(t, report.AmbiguousPeriods)
	require.Len(t, report.Mechanics, 2)

	a, ok := report.Mechanic("depth_10_20")
	require.True(t, ok)
	assert.Equal(t, 3, a.Periods)
	assert.InDelta(t, 0.20, a.Lift, 1e-12)
	assert.InDelta(t, 60, a.IncrementalVolume, 1e-9)
	// 20 units × (8.5 - 4) - 20 cost, per period
	assert.InDelta(t, 3*(20*4.5-20), a.IncrementalMargin, 1e-9)
	assert.InDelta(t, (3*(20*4.5-20))/60.0, a.ROI, 1e-12)
	assert.InDelta(t, 0.15, a.AvgDiscountDepth, 1e-12)

	b, ok := report.Mechanic("depth_30_50")
	require.True(t, ok)
	assert.Equal(t, 4, b.Periods)
	assert.InDelta(t, 0.35, b.Lift, 1e-12)

	for _, at := range report.Attributions {
		assert.False(t, at.Overlapping)
		assert.Equal(t, 1.0, at.Share)
	}
}

func TestAnalyze_OverlapWithoutHistoryIsAmbiguous(t *testing.T) {
	obs := history(10)
	for _, i := range []int{2, 7} {
		promote(&obs[i], 160, 7,
			contracts.PromotionEvent{PromotionID: "A", DiscountDepth: 0.15, Cost: 20},
			contracts.PromotionEvent{PromotionID: "B", DiscountDepth: 0.35, Cost: 50},
		)
	}

	report, err := newTestAnalyzer().Analyze("SKU-P", obs, flatBaseline(10), 4)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{period(2), period(7)}, report.AmbiguousPeriods)
	assert.Empty(t, report.Attributions, "ambiguous periods are excluded")
	assert.Empty(t, report.Mechanics)
}

func TestAnalyze_OverlapSplitByHistoricalLift(t *testing.T) {
	obs := history(20)
	promote(&obs[1], 120, 9, contracts.PromotionEvent{PromotionID: "A", DiscountDepth: 0.15})
	promote(&obs[4], 160, 7, contracts.PromotionEvent{PromotionID: "B", DiscountDepth: 0.35})
	promote(&obs[10], 180, 6,
		contracts.PromotionEvent{PromotionID: "A", DiscountDepth: 0.15},
		contracts.PromotionEvent{PromotionID: "B", DiscountDepth: 0.35},
	)

	report, err := newTestAnalyzer().Analyze("SKU-P", obs, flatBaseline(20), 4)
	require.NoError(t, err)
	assert.Empty(t, report.AmbiguousPeriods)

	var split []contracts.PeriodAttribution
	for _, at := range report.Attributions {
		if at.Overlapping {
			split = append(split, at)
		}
	}
	require.Len(t, split, 2)
	// solo lifts 0.2 and 0.6 → shares 1/4 and 3/4 of 80 incremental units
	assert.Equal(t, "depth_10_20", split[0].Mechanic)
	assert.InDelta(t, 0.25, split[0].Share, 1e-12)
	assert.InDelta(t, 20, split[0].IncrementalVolume, 1e-9)
	assert.InDelta(t, 60, split[1].IncrementalVolume, 1e-9)
}

func TestAnalyze_MissingBaselineCounted(t *testing.T) {
	obs := history(12)
	promote(&obs[11], 150, 8, contracts.PromotionEvent{DiscountDepth: 0.2})

	report, err := newTestAnalyzer().Analyze("SKU-P", obs, flatBaseline(10), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingBaseline)
	assert.Empty(t, report.Mechanics)
}

func TestAnalyze_ObservationCostOverridesCatalog(t *testing.T) {
	obs := history(5)
	promote(&obs[2], 110, 9, contracts.PromotionEvent{DiscountDepth: 0.1, Cost: 0})
	obs[2].UnitCost = contracts.Float64(8)

	report, err := newTestAnalyzer().Analyze("SKU-P", obs, flatBaseline(5), 4)
	require.NoError(t, err)
	require.Len(t, report.Attributions, 1)
	assert.InDelta(t, 10*(9-8), report.Attributions[0].IncrementalMargin, 1e-9)
	assert.Zero(t, report.Mechanics[0].ROI, "zero cost yields zero ROI")
}

func TestAnalyze_RequiresBaseline(t *testing.T) {
	_, err := newTestAnalyzer().Analyze("SKU-P", history(3), nil, 1)
	assert.Error(t, err)
}

func TestBucket(t *testing.T) {
	edges := []float64{0.10, 0.20, 0.30, 0.50}
	tests := []struct {
		depth float64
		want  string
	}{
		{0, "depth_00_10"},
		{0.05, "depth_00_10"},
		{0.10, "depth_10_20"},
		{0.25, "depth_20_30"},
		{0.45, "depth_30_50"},
		{0.50, "depth_50_plus"},
		{0.90, "depth_50_plus"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bucket(edges, tt.depth), "depth=%v", tt.depth)
	}
}

func TestBestPlan(t *testing.T) {
	report := &contracts.ROIReport{
		Mechanics: []contracts.MechanicROI{
			{Mechanic: "depth_10_20", AvgDiscountDepth: 0.15, BaselineUnits: 300, IncrementalVolume: 60, IncrementalMargin: 210, PromotionCost: 60, Lift: 0.2, ROI: 3.5},
			{Mechanic: "depth_30_50", AvgDiscountDepth: 0.35, BaselineUnits: 400, IncrementalVolume: 140, IncrementalMargin: -40, PromotionCost: 200, Lift: 0.35, ROI: -0.2},
		},
	}

	plan := BestPlan(report, 1300)
	require.NotNil(t, plan)
	assert.Equal(t, "depth_10_20", plan.Mechanic)
	assert.InDelta(t, 260, plan.ExpectedIncrementalVolume, 1e-9)
	assert.InDelta(t, 210*1300/300.0, plan.ExpectedIncrementalMargin, 1e-9)

	assert.Nil(t, BestPlan(&contracts.ROIReport{}, 1300))
	assert.Nil(t, BestPlan(nil, 1300))
}
