package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-storefront/internal/middleware"
	"go-storefront/internal/service"
	"go-storefront/internal/view"
)

// statusFor maps a service error onto an HTTP status and a message safe to show.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Page not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "That slug is already used by another page"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "You are not allowed to do that"
	case errors.Is(err, service.ErrDamaged):
		return http.StatusConflict, "Part of the stored content could not be read. Confirm discarding it to save"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "The page store is currently unavailable"
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

func appError(err error) *middleware.AppError {
	code, msg := statusFor(err)
	return &middleware.AppError{Error: err, Message: msg, Code: code}
}

func pageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrNotFound
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	code, msg := statusFor(err)
	middleware.WriteJSONError(w, code, msg)
}

// renderStatus renders a full page with the given status code. Nothing is
// written when rendering fails.
func renderStatus(w http.ResponseWriter, r *http.Request, v *view.View, status int, name string, data map[string]interface{}) error {
	var buf bytes.Buffer
	if err := v.Render(&buf, r, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
