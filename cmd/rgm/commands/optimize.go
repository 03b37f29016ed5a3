package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rgm/internal/brain"
	"github.com/wonny/rgm/internal/contracts"
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "시나리오 가격 최적화",
	Long: `시나리오 YAML의 목적함수와 제약조건으로 포트폴리오 가격을 최적화합니다.

기본적으로 모델 저장소의 최신 fit을 사용하며, --reestimate는 먼저 재추정합니다.
결과는 저장소에 기록되고 설정된 publisher(Kafka, webhook)로 발행됩니다.

Example:
  go run ./cmd/rgm optimize --scenario config/scenario/cola_ladder.yaml --reestimate
  go run ./cmd/rgm optimize --id spring-2026 --json`,
	RunE: runOptimize,
}

var (
	optimizeID         string
	optimizeReestimate bool
	optimizeJSON       bool
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVar(&optimizeID, "id", "", "scenario id (default: generated)")
	optimizeCmd.Flags().BoolVar(&optimizeReestimate, "reestimate", false, "fit models before optimizing")
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "print the result as JSON")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rc, err := a.runConfig(time.Now())
	if err != nil {
		return err
	}
	rc.ScenarioID = optimizeID

	// 별도 프로세스 실행이면 미러에서 최신 fit을 먼저 로드
	if !optimizeReestimate {
		if n, err := a.warm(ctx, rc.SKUs); err != nil {
			a.log.WithError(err).Warn("Model warm-up failed")
		} else if n > 0 {
			a.log.WithField("loaded", n).Info("Loaded models from mirror")
		}
	}

	run := a.orch.Optimize
	if optimizeReestimate {
		run = a.orch.Run
	}
	res, err := run(ctx, rc)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	if optimizeJSON {
		return printJSON(res.Result)
	}
	if res.Estimation != nil {
		printFits(res.Estimation)
	}
	printResult(res.Result)
	return reportStatus(res)
}

func reportStatus(res *brain.RunResult) error {
	switch res.Result.Status {
	case contracts.StatusCompleted:
		PrintSuccess("All SKUs have actionable recommendations")
	case contracts.StatusPartial:
		PrintWarning("Some SKUs have no actionable recommendation (see flags)")
	case contracts.StatusInfeasible:
		PrintError("Constraints cannot be satisfied together; no prices emitted")
		return errors.New("scenario infeasible")
	}
	return nil
}
