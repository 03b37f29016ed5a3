package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/internal/api/handlers"
	"github.com/wonny/rgm/internal/brain"
	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/featurestore"
	"github.com/wonny/rgm/internal/modelstore"
	"github.com/wonny/rgm/internal/publish"
	"github.com/wonny/rgm/internal/recommend"
	"github.com/wonny/rgm/internal/rgmconfig"
	"github.com/wonny/rgm/internal/sample"
	"github.com/wonny/rgm/pkg/logger"
	"github.com/wonny/rgm/pkg/metrics"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	server   *httptest.Server
	from, to string
	hub      *publish.Hub
	registry *prometheus.Registry
}

func newTestAPI(t *testing.T, limiter *SubmitLimiter) *testAPI {
	t.Helper()
	log := logger.NewNop()
	data := sample.Generate(sample.LadderSKUs(), sample.DefaultOptions())

	reader := featurestore.NewMemoryReader(data.Products, data.Observations)
	models := modelstore.NewStore(nil, log.Zerolog())
	results := recommend.NewMemoryStore()
	hub := publish.NewHub(log.Zerolog())
	reg := prometheus.NewRegistry()
	rec := metrics.NewWithRegistry(reg)

	orch := brain.NewOrchestrator(reader, models, results, log).
		WithPublisher(hub).
		WithMetrics(rec).
		WithClock(func() time.Time { return testNow })

	base := rgmconfig.Default()
	base.Constraints = sample.LadderConstraints()

	router := NewRouter(Routes{
		Health:    handlers.NewHealthHandler("rgm-api", "development"),
		Scenarios: handlers.NewScenarioHandler(orch, results, base, log).WithClock(func() time.Time { return testNow }),
		Models:    handlers.NewModelHandler(models, log),
		Feed:      hub,
		Metrics:   rec,
		Gatherer:  reg,
		Limiter:   limiter,
	}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	from, to := data.Period()
	return &testAPI{
		server:   srv,
		from:     from.Format("2006-01-02"),
		to:       to.Format("2006-01-02"),
		hub:      hub,
		registry: reg,
	}
}

func (a *testAPI) submit(t *testing.T, body map[string]interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(a.server.URL+"/api/scenarios", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(a.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, nil)

	resp := a.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "development", body["env"])
}

func TestHealth_DegradedDependency(t *testing.T) {
	h := handlers.NewHealthHandler("rgm-api", "production").
		AddCheck("database", func(context.Context) error { return errors.New("connection refused") }).
		AddCheck("redis", func(context.Context) error { return nil })
	srv := httptest.NewServer(NewRouter(Routes{Health: h}, logger.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connection refused", body.Dependencies["database"])
	assert.Equal(t, "ok", body.Dependencies["redis"])
}

func TestScenario_SubmitAndRead(t *testing.T) {
	a := newTestAPI(t, nil)

	resp := a.submit(t, map[string]interface{}{
		"scenario_id": "scn-api",
		"from":        a.from,
		"to":          a.to,
		"reestimate":  true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result contracts.ScenarioResult
	decode(t, resp, &result)
	assert.Equal(t, "scn-api", result.ScenarioID)
	assert.Equal(t, contracts.StatusCompleted, result.Status)
	assert.Len(t, result.Recommendations, 3)
	assert.NotEmpty(t, result.ConfigHash)

	got := a.get(t, "/api/scenarios/scn-api")
	require.Equal(t, http.StatusOK, got.StatusCode)
	var stored contracts.ScenarioResult
	decode(t, got, &stored)
	assert.Equal(t, result.ConfigHash, stored.ConfigHash)

	recs := a.get(t, "/api/scenarios/scn-api/recommendations?actionable=true")
	require.Equal(t, http.StatusOK, recs.StatusCode)
	var page struct {
		Count           int                        `json:"count"`
		Recommendations []contracts.Recommendation `json:"recommendations"`
	}
	decode(t, recs, &page)
	assert.Equal(t, 3, page.Count)

	list := a.get(t, "/api/scenarios?limit=5")
	require.Equal(t, http.StatusOK, list.StatusCode)
	var summaries []map[string]interface{}
	decode(t, list, &summaries)
	assert.Len(t, summaries, 1)

	model := a.get(t, "/api/models/COLA-4/elasticity")
	require.Equal(t, http.StatusOK, model.StatusCode)
	var fit struct {
		Model    contracts.ElasticityModel `json:"model"`
		Versions []string                  `json:"versions"`
	}
	decode(t, model, &fit)
	assert.Equal(t, "COLA-4", fit.Model.Key)
	assert.Len(t, fit.Versions, 1)

	// write-once: same id is rejected
	dup := a.submit(t, map[string]interface{}{"scenario_id": "scn-api", "from": a.from, "to": a.to})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
}

func TestScenario_ConcurrentDuplicateIsConflict(t *testing.T) {
	a := newTestAPI(t, nil)

	// both requests pass the pre-run lookup; the store decides which one wins
	codes := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			raw, _ := json.Marshal(map[string]interface{}{"scenario_id": "scn-race"})
			resp, err := http.Post(a.server.URL+"/api/scenarios", "application/json", bytes.NewReader(raw))
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	got := []int{<-codes, <-codes}
	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusConflict}, got)
}

func TestScenario_OptimizeWithoutModels(t *testing.T) {
	a := newTestAPI(t, nil)

	resp := a.submit(t, map[string]interface{}{"scenario_id": "scn-cold"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result contracts.ScenarioResult
	decode(t, resp, &result)
	assert.Equal(t, contracts.StatusPartial, result.Status)
	for _, rec := range result.Recommendations {
		assert.False(t, rec.Actionable)
		assert.Contains(t, rec.Flags, contracts.FlagNoRecommendation)
	}
}

func TestScenario_Validation(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"negative weight", map[string]interface{}{"weights": map[string]float64{"margin": -1}}},
		{"bad date", map[string]interface{}{"from": "01/02/2024"}},
		{"empty sku", map[string]interface{}{"skus": []string{""}}},
		{"inverted window", map[string]interface{}{"from": "2025-01-01", "to": "2024-01-01"}},
		{"invalid constraint", map[string]interface{}{"constraints": []map[string]interface{}{
			{"id": "bad", "kind": "max_price_change_pct", "scope": "portfolio", "value": -0.1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.submit(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Post(a.server.URL+"/api/scenarios", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScenario_NotFound(t *testing.T) {
	a := newTestAPI(t, nil)

	assert.Equal(t, http.StatusNotFound, a.get(t, "/api/scenarios/missing").StatusCode)
	assert.Equal(t, http.StatusNotFound, a.get(t, "/api/scenarios/missing/recommendations").StatusCode)
	assert.Equal(t, http.StatusNotFound, a.get(t, "/api/models/NOPE/elasticity").StatusCode)
	assert.Equal(t, http.StatusBadRequest, a.get(t, "/api/scenarios?limit=0").StatusCode)
}

func TestSubmitLimiter(t *testing.T) {
	a := newTestAPI(t, NewSubmitLimiter(0.001, 1, logger.NewNop()))

	first := a.submit(t, map[string]interface{}{"weights": map[string]float64{"margin": -1}})
	assert.Equal(t, http.StatusBadRequest, first.StatusCode)

	second := a.submit(t, map[string]interface{}{})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusNotFound, a.get(t, "/api/scenarios/x").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, nil)
	a.get(t, "/health")

	resp := a.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rgm_http_requests_total{method="GET",route="/health",status="200"}`)
}

func TestScenarioFeed(t *testing.T) {
	a := newTestAPI(t, nil)

	wsURL := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/scenarios"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := a.submit(t, map[string]interface{}{"scenario_id": "scn-feed", "from": a.from, "to": a.to, "reestimate": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var summary publish.Summary
	require.NoError(t, conn.ReadJSON(&summary))
	assert.Equal(t, "scn-feed", summary.ScenarioID)
	assert.Equal(t, 3, summary.Actionable)
}
