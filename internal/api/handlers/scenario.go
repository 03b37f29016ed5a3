package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/wonny/rgm/internal/brain"
	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/recommend"
	"github.com/wonny/rgm/internal/rgmconfig"
	"github.com/wonny/rgm/pkg/logger"
)

const dateLayout = "2006-01-02"

// Runner executes scenarios
type Runner interface {
	Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error)
	Optimize(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error)
}

// ScenarioHandler handles scenario API endpoints
// ⭐ SSOT: 시나리오 API 핸들러는 이 구조체에서만
type ScenarioHandler struct {
	runner   Runner
	results  recommend.Store
	base     *rgmconfig.Config
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

// NewScenarioHandler creates a new scenario handler.
// base is the scenario config that request overrides are applied to.
func NewScenarioHandler(runner Runner, results recommend.Store, base *rgmconfig.Config, log *logger.Logger) *ScenarioHandler {
	if base == nil {
		base = rgmconfig.Default()
	}
	return &ScenarioHandler{
		runner:   runner,
		results:  results,
		base:     base,
		validate: validator.New(),
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for the default history window
func (h *ScenarioHandler) WithClock(now func() time.Time) *ScenarioHandler {
	h.now = now
	return h
}

// ScenarioRequest represents a scenario submission
type ScenarioRequest struct {
	ScenarioID  string                 `json:"scenario_id" validate:"omitempty,max=64,excludesall=/?#"`
	SKUs        []string               `json:"skus" validate:"omitempty,dive,required"`
	From        string                 `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To          string                 `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Reestimate  bool                   `json:"reestimate"` // fit models before optimizing
	Weights     *WeightsRequest        `json:"weights"`
	Constraints []contracts.Constraint `json:"constraints" validate:"omitempty,dive"`
	LowSample   *bool                  `json:"optimize_low_sample"`
}

// WeightsRequest overrides the objective weights
type WeightsRequest struct {
	Margin  float64 `json:"margin" validate:"gte=0"`
	Revenue float64 `json:"revenue" validate:"gte=0"`
	Volume  float64 `json:"volume" validate:"gte=0"`
}

// Submit runs a scenario
// POST /api/scenarios
func (h *ScenarioHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	runCfg, err := h.runConfig(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if runCfg.ScenarioID != "" {
		if _, err := h.results.GetResult(ctx, runCfg.ScenarioID); err == nil {
			respondError(w, http.StatusConflict, "scenario already exists")
			return
		}
	}

	run := h.runner.Optimize
	if req.Reestimate {
		run = h.runner.Run
	}
	result, err := run(ctx, runCfg)
	if err != nil {
		h.respondRunError(w, runCfg, err)
		return
	}

	respondJSON(w, http.StatusCreated, result.Result)
}

func (h *ScenarioHandler) respondRunError(w http.ResponseWriter, cfg brain.RunConfig, err error) {
	var malformed *contracts.MalformedInputError
	switch {
	case errors.Is(err, contracts.ErrScenarioExists):
		respondError(w, http.StatusConflict, "scenario already exists")
	case errors.As(err, &malformed):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "scenario cancelled")
	default:
		h.logger.WithError(err).WithField("scenario_id", cfg.ScenarioID).Error("Scenario run failed")
		respondError(w, http.StatusInternalServerError, "scenario run failed")
	}
}

// runConfig applies the request overrides to a copy of the base config
func (h *ScenarioHandler) runConfig(req ScenarioRequest) (brain.RunConfig, error) {
	cfg := *h.base
	if len(req.SKUs) > 0 {
		cfg.Scope.SKUs = req.SKUs
	}
	if req.Weights != nil {
		cfg.Optimizer.Weights = contracts.ObjectiveWeights{
			Margin:  req.Weights.Margin,
			Revenue: req.Weights.Revenue,
			Volume:  req.Weights.Volume,
		}
	}
	if len(req.Constraints) > 0 {
		cfg.Constraints = req.Constraints
	}
	if req.LowSample != nil {
		cfg.Optimizer.OptimizeLowSample = *req.LowSample
	}

	if err := rgmconfig.Validate(&cfg); err != nil {
		return brain.RunConfig{}, err
	}
	sc, err := cfg.ToScenarioConfig()
	if err != nil {
		return brain.RunConfig{}, err
	}
	hash, err := rgmconfig.Hash(&cfg)
	if err != nil {
		return brain.RunConfig{}, err
	}

	from, to := cfg.HistoryWindow(h.now())
	if req.From != "" {
		from, _ = time.Parse(dateLayout, req.From)
	}
	if req.To != "" {
		to, _ = time.Parse(dateLayout, req.To)
	}
	if to.Before(from) {
		return brain.RunConfig{}, errors.New("to must not be before from")
	}

	return brain.RunConfig{
		ScenarioID: req.ScenarioID,
		SKUs:       cfg.Scope.SKUs,
		From:       from,
		To:         to,
		Config:     sc,
		ConfigHash: hash,
	}, nil
}

// GetScenario returns a stored scenario result
// GET /api/scenarios/{id}
func (h *ScenarioHandler) GetScenario(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetRecommendations returns the recommendations of a scenario.
// ?actionable=true keeps only actionable records.
// GET /api/scenarios/{id}/recommendations
func (h *ScenarioHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookup(w, r)
	if !ok {
		return
	}

	recs := result.Recommendations
	if v := r.URL.Query().Get("actionable"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "actionable must be a boolean")
			return
		}
		filtered := make([]contracts.Recommendation, 0, len(recs))
		for _, rec := range recs {
			if rec.Actionable == want {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scenario_id":     result.ScenarioID,
		"status":          result.Status,
		"count":           len(recs),
		"recommendations": recs,
	})
}

// ListScenarios returns the most recent scenario results
// GET /api/scenarios?limit=20
func (h *ScenarioHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	results, err := h.results.ListResults(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list scenarios")
		respondError(w, http.StatusInternalServerError, "failed to list scenarios")
		return
	}

	summaries := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, map[string]interface{}{
			"scenario_id":  res.ScenarioID,
			"status":       res.Status,
			"submitted_at": res.SubmittedAt,
			"skus":         len(res.Recommendations),
		})
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (h *ScenarioHandler) lookup(w http.ResponseWriter, r *http.Request) (*contracts.ScenarioResult, bool) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "scenario id is required")
		return nil, false
	}

	result, err := h.results.GetResult(r.Context(), id)
	if errors.Is(err, contracts.ErrScenarioNotFound) {
		respondError(w, http.StatusNotFound, "scenario not found")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("scenario_id", id).Error("Failed to get scenario")
		respondError(w, http.StatusInternalServerError, "failed to get scenario")
		return nil, false
	}
	return result, true
}

func respondValidation(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	body := fieldErrors{Error: "validation failed", Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		body.Fields[fe.Namespace()] = fe.Tag()
	}
	respondJSON(w, http.StatusBadRequest, body)
}
