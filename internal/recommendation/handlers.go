package recommendation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/eventlyhq/evently-backend/internal/common/utils"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// GetRecommendations serves the stored list with cold-start fallback.
// Query params: limit, city.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	city := r.URL.Query().Get("city")

	recos, err := h.engine.GetStoredRecos(r.Context(), userID, limit, city)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get recommendations")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, recos)
}

// RefreshRecommendations is the on-demand single-user path ("refresh my
// recommendations"): recompute, store, return.
func (h *Handler) RefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	city := r.URL.Query().Get("city")

	recos, err := h.engine.ComputeRecosForUser(r.Context(), userID, city, nil)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute recommendations")
		return
	}

	if err := h.engine.StoreUserRecos(r.Context(), userID, recos); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to store recommendations")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, recos)
}

// LogClick records a recommendation click as a feedback signal.
func (h *Handler) LogClick(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var body struct {
		EventID int64 `json:"event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EventID == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.engine.LogRecoClick(r.Context(), userID, body.EventID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to log click")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// TriggerBatch runs a full batch compute. Intended for the external
// scheduler or an admin; runs synchronously and reports the result.
func (h *Handler) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	var override *RecoConfigOverride
	if r.Body != nil && r.ContentLength > 0 {
		override = &RecoConfigOverride{}
		if err := json.NewDecoder(r.Body).Decode(override); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid config override")
			return
		}
	}

	result, err := h.engine.RunBatchCompute(r.Context(), override)
	if err != nil {
		if err == ErrBatchRunning {
			utils.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Batch compute failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}
