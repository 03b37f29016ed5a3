package promotion

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
)

// Analyzer 프로모션 ROI 분석기
// ⭐ SSOT: 증분 = 실판매 - 기준선 (기준선은 Forecaster 결과만 사용)
type Analyzer struct {
	config contracts.PromotionConfig
	log    zerolog.Logger
}

// NewAnalyzer creates an analyzer with the given depth buckets
func NewAnalyzer(config contracts.PromotionConfig, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		config: config,
		log:    log.With().Str("component", "promotion.analyzer").Logger(),
	}
}

// mechanicSlice is one bucket's part of a promoted period
type mechanicSlice struct {
	mechanic string
	ids      []string
	depth    float64
	cost     float64
}

// promotedPeriod is a promoted observation paired with its baseline
type promotedPeriod struct {
	obs       contracts.Observation
	baseline  float64
	unitCost  float64
	mechanics []mechanicSlice
}

// Analyze computes incremental volume and margin per discount-depth bucket.
// Solo periods are attributed first; overlapping periods are then split by the solo
// lift of each mechanic, or excluded as ambiguous when a mechanic has no solo history.
func (a *Analyzer) Analyze(sku string, obs []contracts.Observation, baseline *contracts.ForecastModel, unitCost float64) (*contracts.ROIReport, error) {
	if baseline == nil {
		return nil, fmt.Errorf("promotion analysis for %s requires a baseline forecast", sku)
	}

	report := &contracts.ROIReport{
		SKU:           sku,
		ForecastFitID: baseline.FitID,
	}

	sorted := make([]contracts.Observation, 0, len(obs))
	for _, o := range obs {
		if o.IsPromoted() && o.HasRequiredFields() {
			sorted = append(sorted, o)
		}
	}
	contracts.SortByPeriod(sorted)

	var solo, overlapping []promotedPeriod
	for _, o := range sorted {
		fp, ok := baseline.FittedFor(o.Period)
		if !ok {
			report.MissingBaseline++
			continue
		}
		p := promotedPeriod{
			obs:       o,
			baseline:  fp.Expected,
			unitCost:  unitCost,
			mechanics: a.slices(o),
		}
		if o.UnitCost != nil {
			p.unitCost = *o.UnitCost
		}
		if len(p.mechanics) == 1 {
			solo = append(solo, p)
		} else {
			overlapping = append(overlapping, p)
		}
	}

	// 1단계: 단독 프로모션 기간
	soloInc := make(map[string]float64)
	soloBase := make(map[string]float64)
	for _, p := range solo {
		m := p.mechanics[0]
		inc := p.obs.UnitsSold - p.baseline
		soloInc[m.mechanic] += inc
		soloBase[m.mechanic] += p.baseline
		report.Attributions = append(report.Attributions, attribution(p, m, 1, inc, p.baseline, false))
	}

	// 2단계: 중복 프로모션 기간은 단독 lift 비율로 배분
	for _, p := range overlapping {
		lifts := make([]float64, len(p.mechanics))
		total := 0.0
		resolvable := true
		for i, m := range p.mechanics {
			base := soloBase[m.mechanic]
			if base <= 0 || soloInc[m.mechanic] <= 0 {
				resolvable = false
				break
			}
			lifts[i] = soloInc[m.mechanic] / base
			total += lifts[i]
		}
		if !resolvable || total <= 0 {
			names := make([]string, len(p.mechanics))
			for i, m := range p.mechanics {
				names[i] = m.mechanic
			}
			err := &contracts.AttributionAmbiguityError{SKU: sku, Period: p.obs.Period, Mechanics: names}
			a.log.Warn().Err(err).Str("sku", sku).Msg("overlapping promotions excluded from ROI sample")
			report.AmbiguousPeriods = append(report.AmbiguousPeriods, p.obs.Period)
			continue
		}

		inc := p.obs.UnitsSold - p.baseline
		for i, m := range p.mechanics {
			share := lifts[i] / total
			report.Attributions = append(report.Attributions,
				attribution(p, m, share, inc*share, p.baseline*share, true))
		}
	}

	sort.SliceStable(report.Attributions, func(i, j int) bool {
		ai, aj := report.Attributions[i], report.Attributions[j]
		if !ai.Period.Equal(aj.Period) {
			return ai.Period.Before(aj.Period)
		}
		return ai.Mechanic < aj.Mechanic
	})
	report.Mechanics = summarize(report.Attributions)

	a.log.Debug().
		Str("sku", sku).
		Int("solo_periods", len(solo)).
		Int("overlapping_periods", len(overlapping)).
		Int("ambiguous_periods", len(report.AmbiguousPeriods)).
		Int("missing_baseline", report.MissingBaseline).
		Int("mechanics", len(report.Mechanics)).
		Msg("promotion ROI analyzed")

	return report, nil
}

// slices groups the active promotions of a period by depth bucket
func (a *Analyzer) slices(o contracts.Observation) []mechanicSlice {
	byBucket := make(map[string]*mechanicSlice)
	var order []string
	for _, ev := range o.ActivePromotions() {
		name := Bucket(a.config.DepthBuckets, ev.DiscountDepth)
		s, ok := byBucket[name]
		if !ok {
			s = &mechanicSlice{mechanic: name, depth: ev.DiscountDepth}
			byBucket[name] = s
			order = append(order, name)
		}
		if ev.PromotionID != "" {
			s.ids = append(s.ids, ev.PromotionID)
		}
		s.cost += ev.Cost
	}
	sort.Strings(order)

	out := make([]mechanicSlice, len(order))
	for i, name := range order {
		out[i] = *byBucket[name]
	}
	return out
}

func attribution(p promotedPeriod, m mechanicSlice, share, inc, base float64, overlapping bool) contracts.PeriodAttribution {
	unitMargin := p.obs.Price - p.unitCost
	id := ""
	if len(m.ids) > 0 {
		id = m.ids[0]
	}
	return contracts.PeriodAttribution{
		Period:            p.obs.Period,
		Mechanic:          m.mechanic,
		PromotionID:       id,
		DiscountDepth:     m.depth,
		BaselineUnits:     base,
		RealizedUnits:     p.obs.UnitsSold * share,
		IncrementalVolume: inc,
		IncrementalMargin: inc*unitMargin - m.cost,
		PromotionCost:     m.cost,
		Share:             share,
		Overlapping:       overlapping,
	}
}

// summarize rolls attributions up per mechanic, sorted by name
func summarize(attrs []contracts.PeriodAttribution) []contracts.MechanicROI {
	acc := make(map[string]*contracts.MechanicROI)
	depthSum := make(map[string]float64)
	for _, at := range attrs {
		m, ok := acc[at.Mechanic]
		if !ok {
			m = &contracts.MechanicROI{Mechanic: at.Mechanic}
			acc[at.Mechanic] = m
		}
		m.Periods++
		m.BaselineUnits += at.BaselineUnits
		m.IncrementalVolume += at.IncrementalVolume
		m.IncrementalMargin += at.IncrementalMargin
		m.PromotionCost += at.PromotionCost
		depthSum[at.Mechanic] += at.DiscountDepth
	}

	out := make([]contracts.MechanicROI, 0, len(acc))
	for name, m := range acc {
		m.AvgDiscountDepth = depthSum[name] / float64(m.Periods)
		if m.BaselineUnits > 0 {
			m.Lift = m.IncrementalVolume / m.BaselineUnits
		}
		if m.PromotionCost > 0 {
			m.ROI = m.IncrementalMargin / m.PromotionCost
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mechanic < out[j].Mechanic })
	return out
}
