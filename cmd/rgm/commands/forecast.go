package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// forecastCmd represents the forecast command
var forecastCmd = &cobra.Command{
	Use:   "forecast [sku]",
	Short: "기준 수요(baseline) 예측",
	Long: `SKU의 가격 변화 없는 기준 수요를 분해(추세 + 계절성)하여 예측합니다.
이력이 2 시즌 미만이면 이동평균으로 대체되고 insufficient_history가 표시됩니다.

Example:
  go run ./cmd/rgm forecast COLA-2
  go run ./cmd/rgm forecast COLA-2 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runForecast,
}

var forecastJSON bool

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().BoolVar(&forecastJSON, "json", false, "print the model as JSON")
}

func runForecast(cmd *cobra.Command, args []string) error {
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
	if fit.Forecast == nil {
		PrintWarning(fmt.Sprintf("%s: no baseline (%s)", sku, flagList(fit.Flags)))
		return nil
	}
	fm := fit.Forecast
	if forecastJSON {
		return printJSON(fm)
	}

	PrintHeader("Baseline Forecast "+sku, [][2]string{
		{"Mode", string(fm.Mode)},
		{"History", fmt.Sprintf("%d periods", fm.HistoryLength)},
		{"Trend", fmt.Sprintf("%.2f %+.3f/period", fm.TrendIntercept, fm.TrendSlope)},
		{"Series CV", fmt.Sprintf("%.3f", fm.SeriesCV)},
		{"Fit ID", fm.FitID},
	})
	if fm.InsufficientHistory {
		PrintWarning("insufficient history: moving-average baseline with widened intervals")
	}

	widths := []int{12, 10, 10, 10}
	PrintTableHeader([]string{"PERIOD", "BASELINE", "LOWER", "UPPER"}, widths)
	for _, p := range fm.Points {
		PrintTableRow([]string{
			p.Period.Format("2006-01-02"),
			fmt.Sprintf("%.1f", p.Expected),
			fmt.Sprintf("%.1f", p.Lower),
			fmt.Sprintf("%.1f", p.Upper),
		}, widths)
	}
	return nil
}
