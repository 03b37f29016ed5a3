package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/rgm/internal/api/handlers"
	"github.com/wonny/rgm/pkg/logger"
	"github.com/wonny/rgm/pkg/metrics"
)

// Routes holds everything the router serves. Nil entries are not mounted.
type Routes struct {
	Health    *handlers.HealthHandler
	Scenarios *handlers.ScenarioHandler
	Models    *handlers.ModelHandler
	Feed      http.Handler // websocket scenario feed

	Metrics  *metrics.Recorder
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Limiter  *SubmitLimiter
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	if routes.Health != nil {
		r.HandleFunc("/health", routes.Health.Health).Methods("GET")
	}

	if routes.Metrics != nil {
		gatherer := routes.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	if routes.Feed != nil {
		r.Handle("/ws/scenarios", routes.Feed).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	if s := routes.Scenarios; s != nil {
		var submit http.Handler = http.HandlerFunc(s.Submit)
		if routes.Limiter != nil {
			submit = routes.Limiter.Middleware(submit)
		}
		api.Handle("/scenarios", submit).Methods("POST")
		api.HandleFunc("/scenarios", s.ListScenarios).Methods("GET")
		api.HandleFunc("/scenarios/{id}", s.GetScenario).Methods("GET")
		api.HandleFunc("/scenarios/{id}/recommendations", s.GetRecommendations).Methods("GET")
	}

	if m := routes.Models; m != nil {
		api.HandleFunc("/models/{sku}/elasticity", m.GetElasticity).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(metricsMiddleware(routes.Metrics))
	r.Use(recoveryMiddleware(log))

	return r
}
