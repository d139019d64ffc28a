package attachment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fiambond/attachments/internal/metrics"
	"github.com/fiambond/attachments/internal/middleware"
	"github.com/fiambond/attachments/internal/response"
)

// Handler serves the attachment upload endpoint.
type Handler struct {
	svc      *Service
	maxBytes int64
}

// NewHandler creates a Handler. Request bodies larger than maxBytes are rejected.
func NewHandler(svc *Service, maxBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxBytes}
}

type uploadRequest struct {
	File string `json:"file" example:"data:text/plain;base64,SGVsbG8="`
}

type uploadData struct {
	URL string `json:"url" example:"http://localhost:4566/fiambond-local-test-bucket/attachments/0b7c6f3e-6f5a-4d0e-9a55-1f0e9d3c2b11.txt"`
}

// Upload godoc
//
//	@Summary		Upload attachment
//	@Description	Decode a Base64 data URL, store it under attachments/<uuid><ext> and return its URL.
//	@Tags			attachments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		uploadRequest	true	"Data URL payload"
//	@Success		200		{object}	response.Envelope{data=uploadData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/attachments [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	var req uploadRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, "Request body too large.")
			return
		}
		h.reject(w, "Invalid request body.")
		return
	}
	if req.File == "" {
		h.reject(w, "Missing 'file' argument.")
		return
	}

	res, err := h.svc.Upload(r.Context(), req.File)
	if errors.Is(err, ErrMalformedPayload) {
		log.Warn().Err(err).Str("caller", middleware.CallerID(r.Context())).Msg("rejected attachment")
		response.InvalidArgument(w, "The 'file' argument must be a data URL: data:<mime>;base64,<data>.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("caller", middleware.CallerID(r.Context())).Msg("attachment upload failed")
		response.InternalError(w)
		return
	}

	log.Info().Str("caller", middleware.CallerID(r.Context())).Str("key", res.Key).Msg("attachment uploaded")
	response.OK(w, uploadData{URL: res.URL})
}

// reject answers invalid-argument for requests that never reach the Service,
// counting them like payloads the Service rejects.
func (h *Handler) reject(w http.ResponseWriter, msg string) {
	h.svc.metrics.ObserveUpload(metrics.OutcomeInvalidArgument, 0)
	response.InvalidArgument(w, msg)
}
