package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	scenarioFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rgm",
	Short: "RGM - 가격 탄력성 및 가격/프로모션 최적화",
	Long: `RGM Elasticity & Optimization CLI

Feature Store의 주간 판매 이력으로 SKU별 가격 탄력성, 기준 수요, 프로모션 ROI를
추정하고 제약조건 하에서 포트폴리오 가격을 최적화합니다.

Usage:
  go run ./cmd/rgm [command]

Examples:
  go run ./cmd/rgm sample
  go run ./cmd/rgm estimate --scenario config/scenario/cola_ladder.yaml
  go run ./cmd/rgm optimize --scenario config/scenario/cola_ladder.yaml
  go run ./cmd/rgm api
  go run ./cmd/rgm test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&scenarioFile, "scenario", "", "scenario YAML (default: SCENARIO_FILE or built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
