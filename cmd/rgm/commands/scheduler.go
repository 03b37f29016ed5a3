package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rgm/internal/scheduler"
	"github.com/wonny/rgm/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `모델 재추정 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/rgm scheduler start
  go run ./cmd/rgm scheduler run reestimate_models`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- reestimate_models: REESTIMATE_CRON (기본 매일 오전 3시, 탄력성/기준수요/ROI 재추정)
- model_warm: 15분마다 (Redis 미러에서 최신 fit 로드, REDIS_ENABLED일 때만)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== RGM Scheduler ===")

	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for name, stat := range sched.GetJobStats() {
		next := "-"
		if stat.NextRun != nil {
			next = stat.NextRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  - %s (%s, next %s)\n", name, stat.Schedule, next)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Println("Registered jobs:")
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s (%s)\n", name, stats[name].Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempts: %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration))
	return nil
}

func initScheduler(cmd *cobra.Command) (*app, *scheduler.Scheduler, error) {
	a, err := newApp(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log)

	if err := sched.AddJob(jobs.NewReestimateJob(a.orch, a.scenario, a.cfg.ReestimateCron, a.log)); err != nil {
		a.Close()
		return nil, nil, err
	}
	if a.redis.Enabled() {
		if err := sched.AddJob(jobs.NewModelWarmJob(a.models, a.reader, a.scenario.Scope.SKUs, a.log)); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
