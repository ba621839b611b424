package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-storefront/internal/logger"
	"go-storefront/internal/middleware"
	"go-storefront/internal/render"
	"go-storefront/internal/service"
	"go-storefront/internal/view"
)

// PageHandler serves published pages to shoppers.
type PageHandler struct {
	pageService service.PageServicer
	renderer    *render.Renderer
	view        *view.View
	homeSlug    string
	log         logger.Logger
}

// NewPageHandler creates a new PageHandler with the given dependencies.
func NewPageHandler(ps service.PageServicer, rr *render.Renderer, v *view.View, homeSlug string, log logger.Logger) *PageHandler {
	return &PageHandler{
		pageService: ps,
		renderer:    rr,
		view:        v,
		homeSlug:    homeSlug,
		log:         log,
	}
}

// homeHandler renders the page configured as the home page.
func (h *PageHandler) homeHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.render(w, r, h.homeSlug)
}

// viewHandler renders the published page named by the slug in the URL.
func (h *PageHandler) viewHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	slug := chi.URLParam(r, "slug")
	if slug == h.homeSlug {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
		return nil
	}
	return h.render(w, r, slug)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, slug string) *middleware.AppError {
	page, err := h.pageService.GetPublishedPage(r.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrUnavailable) {
			w.Header().Set("Retry-After", "30")
			return &middleware.AppError{Error: err, Message: "Page unavailable", Code: http.StatusServiceUnavailable}
		}
		return appError(err)
	}

	data := map[string]interface{}{
		"Page":    page,
		"Content": h.renderer.RenderPage(r.Context(), page.Blocks),
	}
	if err := h.view.Render(w, r, "page.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page", Code: http.StatusInternalServerError}
	}
	return nil
}
