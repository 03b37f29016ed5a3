package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rgm/internal/brain"
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "SKU별 가격 탄력성 추정",
	Long: `Feature Store 이력으로 탄력성, 기준 수요, 프로모션 ROI를 추정하고 모델 저장소에 기록합니다.

출력:
- 탄력성 점추정치와 신뢰구간
- 표본 크기와 fit 품질 (reliable / low_sample / unidentifiable)
- 탄력성 카테고리와 가격 변동성(CV)

Example:
  go run ./cmd/rgm estimate
  go run ./cmd/rgm estimate --sku COLA-2,COLA-4 --json`,
	RunE: runEstimate,
}

var (
	estimateSKUs []string
	estimateJSON bool
)

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringSliceVar(&estimateSKUs, "sku", nil, "SKUs to estimate (default: scenario scope)")
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "print fits as JSON")
}

// estimate wires the app and runs one estimation pass
func estimate(ctx context.Context, skus []string) (*app, *brain.EstimationResult, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}

	rc, err := a.runConfig(time.Now())
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if len(skus) > 0 {
		rc.SKUs = skus
	}

	est, err := a.orch.Estimate(ctx, rc)
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("estimate: %w", err)
	}
	return a, est, nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	a, est, err := estimate(cmd.Context(), estimateSKUs)
	if err != nil {
		return err
	}
	defer a.Close()

	if estimateJSON {
		return printJSON(est.Fits)
	}

	PrintHeader("Elasticity Estimation", [][2]string{
		{"Scenario", a.scenario.Meta.Name},
		{"SKUs", fmt.Sprintf("%d", len(est.Fits))},
		{"Rows", fmt.Sprintf("%d valid / %d total", est.Dataset.Report.Valid, est.Dataset.Report.Total)},
	})
	printFits(est)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d model versions stored in %s", est.Stored, est.Duration.Round(time.Millisecond)))
	return nil
}
