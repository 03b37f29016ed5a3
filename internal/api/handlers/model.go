package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/rgm/internal/modelstore"
	"github.com/wonny/rgm/pkg/logger"
)

// ModelHandler serves cached model fits
type ModelHandler struct {
	models *modelstore.Store
	logger *logger.Logger
}

// NewModelHandler creates a new model handler
func NewModelHandler(models *modelstore.Store, log *logger.Logger) *ModelHandler {
	return &ModelHandler{models: models, logger: log}
}

// GetElasticity returns the newest elasticity fit of a SKU and its version history
// GET /api/models/{sku}/elasticity
func (h *ModelHandler) GetElasticity(w http.ResponseWriter, r *http.Request) {
	sku := mux.Vars(r)["sku"]
	if sku == "" {
		respondError(w, http.StatusBadRequest, "sku is required")
		return
	}

	m, ok := h.models.LatestElasticity(sku)
	if !ok {
		respondError(w, http.StatusNotFound, "no elasticity fit for sku")
		return
	}

	versions := h.models.Versions(sku, modelstore.TypeElasticity)
	history := make([]string, 0, len(versions))
	for _, k := range versions {
		history = append(history, k.FittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"model":    m,
		"versions": history,
	})
}
