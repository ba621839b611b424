package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-storefront/internal/logger"
	"go-storefront/internal/media"
	"go-storefront/internal/middleware"
)

// MediaHandler accepts image uploads for use in blocks.
type MediaHandler struct {
	store     media.Store
	maxUpload int64
	log       logger.Logger
}

// NewMediaHandler creates a MediaHandler. store may be nil when uploads are
// not configured.
func NewMediaHandler(store media.Store, maxUploadMB int64, log logger.Logger) *MediaHandler {
	return &MediaHandler{store: store, maxUpload: maxUploadMB << 20, log: log}
}

// uploadHandler stores the "file" part and returns {"url","publicId"}.
func (h *MediaHandler) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		middleware.WriteJSONError(w, http.StatusServiceUnavailable, "image uploads are not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		middleware.WriteJSONError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	body, _, err := media.Sniff(file)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			middleware.WriteJSONError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		middleware.WriteJSONError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	asset, err := h.store.Upload(r.Context(), body)
	if err != nil {
		h.log.Error(err, "image upload failed")
		middleware.WriteJSONError(w, http.StatusBadGateway, "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// deleteHandler removes an uploaded image by its public id.
func (h *MediaHandler) deleteHandler(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		middleware.WriteJSONError(w, http.StatusServiceUnavailable, "image uploads are not configured")
		return
	}
	publicID := chi.URLParam(r, "*")
	if publicID == "" {
		middleware.WriteJSONError(w, http.StatusBadRequest, "missing public id")
		return
	}
	if err := h.store.Delete(r.Context(), publicID); err != nil {
		h.log.Error(err, "image delete failed")
		middleware.WriteJSONError(w, http.StatusBadGateway, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
