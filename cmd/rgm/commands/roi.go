package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// roiCmd represents the roi command
var roiCmd = &cobra.Command{
	Use:   "roi [sku]",
	Short: "프로모션 ROI 분석",
	Long: `기준 수요 대비 프로모션 기간의 증분 판매량과 증분 마진을 할인 깊이 버킷별로 집계합니다.
같은 기간에 겹친 프로모션은 비례 배분되고 ambiguous_attribution으로 표시됩니다.

Example:
  go run ./cmd/rgm roi COLA-8`,
	Args: cobra.ExactArgs(1),
	RunE: runROI,
}

var roiJSON bool

func init() {
	rootCmd.AddCommand(roiCmd)

	roiCmd.Flags().BoolVar(&roiJSON, "json", false, "print the report as JSON")
}

func runROI(cmd *cobra.Command, args []string) error {
	sku := args[0]
	a, est, err := estimate(cmd.Context(), []string{sku})
	if err != nil {
		return err
	}
	defer a.Close()

	fit, ok := est.Fit(sku)
	if !ok {
		return fmt.Errorf("sku %s not found", sku)
	}
	if fit.ROI == nil {
		PrintWarning(fmt.Sprintf("%s: no ROI report (%s)", sku, flagList(fit.Flags)))
		return nil
	}
	report := fit.ROI
	if roiJSON {
		return printJSON(report)
	}

	PrintHeader("Promotion ROI "+sku, [][2]string{
		{"Baseline", report.ForecastFitID},
		{"Promoted", fmt.Sprintf("%d periods", len(report.Attributions))},
		{"Ambiguous", fmt.Sprintf("%d periods", len(report.AmbiguousPeriods))},
	})

	widths := []int{10, 8, 8, 12, 12, 10, 8, 8}
	PrintTableHeader([]string{"MECHANIC", "PERIODS", "DEPTH", "INCR_VOL", "INCR_MARGIN", "COST", "LIFT", "ROI"}, widths)
	for _, m := range report.Mechanics {
		PrintTableRow([]string{
			m.Mechanic,
			fmt.Sprintf("%d", m.Periods),
			fmt.Sprintf("%.0f%%", m.AvgDiscountDepth*100),
			fmt.Sprintf("%+.0f", m.IncrementalVolume),
			fmt.Sprintf("%+.0f", m.IncrementalMargin),
			fmt.Sprintf("%.0f", m.PromotionCost),
			fmt.Sprintf("%.2f", m.Lift),
			fmt.Sprintf("%.2f", m.ROI),
		}, widths)
	}
	if report.MissingBaseline > 0 {
		PrintWarning(fmt.Sprintf("%d promoted periods had no baseline", report.MissingBaseline))
	}
	return nil
}
