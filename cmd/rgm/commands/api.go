package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rgm/internal/api"
	"github.com/wonny/rgm/internal/api/handlers"
	"github.com/wonny/rgm/internal/publish"
	"github.com/wonny/rgm/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                              - Health check (DB, Redis)
  POST /api/scenarios                       - 시나리오 실행
  GET  /api/scenarios                       - 최근 시나리오 목록
  GET  /api/scenarios/{id}                  - 시나리오 결과
  GET  /api/scenarios/{id}/recommendations  - 추천 목록 (?actionable=true)
  GET  /api/models/{sku}/elasticity         - 최신 탄력성 fit
  GET  /metrics                             - Prometheus
  GET  /ws/scenarios                        - 완료 시나리오 push (websocket)

Example:
  go run ./cmd/rgm api
  go run ./cmd/rgm api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== RGM API Server ===")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 1. Websocket feed joins the publishers
	hub := publish.NewHub(log.Zerolog())
	defer hub.Close()
	a.multi.Add(hub)

	// 2. Warm the model store from the shared mirror
	if n, err := a.warm(ctx, a.scenario.Scope.SKUs); err != nil {
		log.WithError(err).Warn("Model warm-up failed")
	} else {
		log.WithField("loaded", n).Info("Model store warmed")
	}

	// 3. Handlers
	health := handlers.NewHealthHandler("rgm-api", cfg.Env).
		AddCheck("redis", a.redis.Ping)
	if a.db != nil {
		health.AddCheck("database", a.db.Ping)
	}

	limiter := api.NewSubmitLimiter(cfg.ScenarioRateRPS, cfg.ScenarioRateBurst, log)
	if a.redis.Enabled() {
		limiter.WithShared(redis.NewRateLimiter(a.redis, cfg.Redis.KeyPrefix))
	}

	router := api.NewRouter(api.Routes{
		Health:    health,
		Scenarios: handlers.NewScenarioHandler(a.orch, a.results, a.scenario, log),
		Models:    handlers.NewModelHandler(a.models, log),
		Feed:      hub,
		Metrics:   a.metrics,
		Limiter:   limiter,
	}, log)

	// 4. Start server; SIGINT/SIGTERM drains in-flight scenarios
	server := api.New(cfg, log, router)
	server.OnShutdown(hub.Close)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(sigCtx)
	}()

	log.WithFields(map[string]interface{}{
		"port":          cfg.Port,
		"feature_store": cfg.FeatureStore,
		"publishers":    a.multi.Len(),
	}).Info("API server started")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := <-errCh; err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
