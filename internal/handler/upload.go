package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/glucolens/glucolens-server/internal/errors"
	"github.com/glucolens/glucolens-server/internal/model"
	"github.com/glucolens/glucolens-server/internal/repository"
	"github.com/glucolens/glucolens-server/internal/service"
	"github.com/glucolens/glucolens-server/internal/sse"
	"github.com/glucolens/glucolens-server/internal/storage"
)

// EventImageReceived notifies subscribers that an upload under their token
// is stored and readable.
const EventImageReceived = "image-received"

type ImageReceivedPayload struct {
	StorageRef string    `json:"storageRef"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type UploadHandler struct {
	sessionService *service.SessionService
	images         *storage.ImageStore
	uploadRepo     repository.UploadRepository
	broker         *sse.Broker
	maxUploadBytes int64
}

func NewUploadHandler(
	sessionService *service.SessionService,
	images *storage.ImageStore,
	uploadRepo repository.UploadRepository,
	broker *sse.Broker,
	maxUploadBytes int64,
) *UploadHandler {
	return &UploadHandler{
		sessionService: sessionService,
		images:         images,
		uploadRepo:     uploadRepo,
		broker:         broker,
		maxUploadBytes: maxUploadBytes,
	}
}

// POST /v1/meals/upload (multipart: token, image)
//
// Unauthenticated by design: the pairing token alone grants upload
// capability. Commit then notify: the binary is durably stored before any
// subscriber hears about it, and notify failure never fails the request.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperrors.PayloadTooLarge(h.maxUploadBytes))
			return
		}
		writeError(w, apperrors.InvalidInput("request", "expected multipart form data"))
		return
	}

	token := r.FormValue("token")
	if token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperrors.MissingRequired("image"))
		return
	}
	defer file.Close()

	session, err := h.sessionService.Validate(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	storageRef, err := h.images.Save(file)
	if err != nil {
		if errors.Is(err, storage.ErrNotAnImage) {
			writeError(w, apperrors.InvalidInput("image", "unsupported image format"))
			return
		}
		log.Error().Err(err).Msg("failed to store uploaded image")
		writeError(w, apperrors.StorageFailure("store image", err))
		return
	}

	upload, err := h.uploadRepo.Create(r.Context(), model.CreateUploadParams{
		SessionID:  session.ID,
		OwnerID:    session.OwnerID,
		StorageRef: storageRef,
	})
	if err != nil {
		log.Error().Err(err).Str("storageRef", storageRef).Msg("failed to record upload")
		writeError(w, apperrors.Database(err))
		return
	}

	h.publishImageReceived(token, upload)

	writeJSON(w, http.StatusOK, map[string]any{
		"storageRef": upload.StorageRef,
		"receivedAt": upload.ReceivedAt.Format(time.RFC3339),
	})
}

// publishImageReceived is best-effort: zero subscribers or a dead
// connection is not an upload failure, the image is reachable through
// analyze/history regardless.
func (h *UploadHandler) publishImageReceived(token string, upload *model.UploadedImage) {
	payload, err := json.Marshal(ImageReceivedPayload{
		StorageRef: upload.StorageRef,
		ReceivedAt: upload.ReceivedAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode image-received payload")
		return
	}

	h.broker.Publish(token, sse.Event{Type: EventImageReceived, Data: payload})
}
