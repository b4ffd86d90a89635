package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/glucolens/glucolens-server/internal/config"
	apperrors "github.com/glucolens/glucolens-server/internal/errors"
	"github.com/glucolens/glucolens-server/internal/middleware"
	"github.com/glucolens/glucolens-server/internal/service"
	"github.com/glucolens/glucolens-server/internal/storage"
)

type MealHandler struct {
	analysisService *service.AnalysisService
	images          *storage.ImageStore
}

func NewMealHandler(analysisService *service.AnalysisService, images *storage.ImageStore) *MealHandler {
	return &MealHandler{
		analysisService: analysisService,
		images:          images,
	}
}

type analyzeRequest struct {
	ImageRef       string   `json:"imageRef"`
	CurrentGlucose *float64 `json:"currentGlucose,omitempty"`
}

// POST /v1/meals/analyze
func (h *MealHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "expected JSON"))
		return
	}
	if req.ImageRef == "" {
		writeError(w, apperrors.MissingRequired("imageRef"))
		return
	}
	if req.CurrentGlucose != nil && *req.CurrentGlucose <= 0 {
		writeError(w, apperrors.InvalidInput("currentGlucose", "must be positive"))
		return
	}

	result, err := h.analysisService.Analyze(r.Context(), user, service.AnalyzeParams{
		ImageRef:       req.ImageRef,
		CurrentGlucose: req.CurrentGlucose,
	})
	if err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("meal analysis failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/meals/history?limit=N
func (h *MealHandler) History(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	limit := config.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, apperrors.InvalidInput("limit", "must be a positive integer"))
			return
		}
		limit = min(parsed, config.MaxHistoryLimit)
	}

	meals, err := h.analysisService.History(r.Context(), user.ID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list meal history")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meals)
}

// GET /v1/meals/images/{storageRef}
func (h *MealHandler) Image(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	ref := chi.URLParam(r, "storageRef")

	f, err := h.images.Open(ref)
	if err != nil {
		writeError(w, apperrors.NotFound("Image"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", storage.ContentType(ref))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, f); err != nil {
		log.Debug().Err(err).Msg("image response aborted")
	}
}
