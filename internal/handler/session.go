package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/glucolens/glucolens-server/internal/errors"
	"github.com/glucolens/glucolens-server/internal/middleware"
	"github.com/glucolens/glucolens-server/internal/repository"
	"github.com/glucolens/glucolens-server/internal/service"
)

// statusRecentUploads caps how many received images the status endpoint
// reports back to the desktop.
const statusRecentUploads = 10

type SessionHandler struct {
	sessionService *service.SessionService
	uploadRepo     repository.UploadRepository
}

func NewSessionHandler(sessionService *service.SessionService, uploadRepo repository.UploadRepository) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		uploadRepo:     uploadRepo,
	}
}

// POST /v1/sessions/create
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	result, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/sessions/{token}/status
//
// Unauthenticated: the token is the capability. Answers validity, expiry
// and the refs received so far, so the phone page can render a countdown
// and the desktop can poll for arrivals it missed on the event stream.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	session := h.sessionService.Status(r.Context(), token)
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}

	resp := map[string]any{
		"valid":     true,
		"expiresAt": session.ExpiresAt.Format(time.RFC3339),
	}

	uploads, err := h.uploadRepo.FindRecentBySessionID(r.Context(), session.ID, statusRecentUploads)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list session uploads")
	} else {
		refs := make([]string, 0, len(uploads))
		for _, upload := range uploads {
			refs = append(refs, upload.StorageRef)
		}
		resp["receivedImages"] = refs
	}

	writeJSON(w, http.StatusOK, resp)
}
