package promotion

import (
	"fmt"
	"math"

	"github.com/wonny/rgm/internal/contracts"
)

// Bucket returns the discount-depth bucket name for a depth.
// Edges are ascending upper bounds: [0.10, 0.20] gives depth_00_10, depth_10_20, depth_20_plus.
func Bucket(edges []float64, depth float64) string {
	lower := 0.0
	for _, edge := range edges {
		if depth < edge {
			return fmt.Sprintf("depth_%02d_%02d", pct(lower), pct(edge))
		}
		lower = edge
	}
	return fmt.Sprintf("depth_%02d_plus", pct(lower))
}

func pct(v float64) int {
	return int(math.Round(v * 100))
}

// BestPlan proposes the historically best mechanic for the coming horizon.
// Only mechanics with positive incremental margin and positive ROI qualify.
func BestPlan(report *contracts.ROIReport, horizonBaseline float64) *contracts.PromotionPlan {
	if report == nil || horizonBaseline <= 0 {
		return nil
	}

	var best *contracts.MechanicROI
	for i := range report.Mechanics {
		m := &report.Mechanics[i]
		if m.ROI <= 0 || m.IncrementalMargin <= 0 || m.BaselineUnits <= 0 {
			continue
		}
		if best == nil || m.ROI > best.ROI {
			best = m
		}
	}
	if best == nil {
		return nil
	}

	scale := horizonBaseline / best.BaselineUnits
	return &contracts.PromotionPlan{
		Mechanic:                  best.Mechanic,
		DiscountDepth:             best.AvgDiscountDepth,
		ExpectedLift:              best.Lift,
		ExpectedIncrementalVolume: best.Lift * horizonBaseline,
		ExpectedIncrementalMargin: best.IncrementalMargin * scale,
		HistoricalROI:             best.ROI,
	}
}
