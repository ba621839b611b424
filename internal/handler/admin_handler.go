package handler

import (
	"errors"
	"net/http"
	"strconv"

	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/middleware"
	"go-storefront/internal/service"
	"go-storefront/internal/session"
	"go-storefront/internal/view"
)

// AdminHandler serves the page management screens.
type AdminHandler struct {
	pageService service.PageServicer
	sessions    session.Manager
	view        *view.View
	log         logger.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ps service.PageServicer, sm session.Manager, v *view.View, log logger.Logger) *AdminHandler {
	return &AdminHandler{pageService: ps, sessions: sm, view: v, log: log}
}

func (h *AdminHandler) listHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	filter := data.PageFilter{}
	if v := r.URL.Query().Get("published"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Published = &b
		}
	}
	pages, err := h.pageService.ListPages(r.Context(), filter)
	if err != nil {
		return appError(err)
	}

	data := map[string]interface{}{
		"Pages":  pages,
		"Filter": r.URL.Query().Get("published"),
		"Flash":  h.sessions.PopString(r.Context(), session.KeyFlash),
	}
	if err := h.view.Render(w, r, "admin_pages.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page list", Code: http.StatusInternalServerError}
	}
	return nil
}

func (h *AdminHandler) newHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.renderForm(w, r, http.StatusOK, service.NewPage{}, "")
}

func (h *AdminHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, in service.NewPage, errMsg string) *middleware.AppError {
	data := map[string]interface{}{
		"Form":  in,
		"Error": errMsg,
	}
	if err := renderStatus(w, r, h.view, status, "page_form.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page form", Code: http.StatusInternalServerError}
	}
	return nil
}

// createHandler creates an empty page and opens it in the builder.
func (h *AdminHandler) createHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if err := r.ParseForm(); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid form", Code: http.StatusBadRequest}
	}
	in := service.NewPage{
		Title:     r.PostForm.Get("title"),
		Slug:      r.PostForm.Get("slug"),
		Published: r.PostForm.Get("published") == "on",
	}
	page, err := h.pageService.CreatePage(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrConflict) || errors.Is(err, service.ErrValidation) {
			code, msg := statusFor(err)
			return h.renderForm(w, r, code, in, msg)
		}
		return appError(err)
	}
	h.sessions.Put(r.Context(), session.KeyFlash, "Page \""+page.Title+"\" created.")
	http.Redirect(w, r, builderURL(page.ID), http.StatusSeeOther)
	return nil
}

func (h *AdminHandler) publishHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, err := pageID(r)
	if err != nil {
		return appError(err)
	}
	published := r.FormValue("published") == "true"
	page, err := h.pageService.SetPublished(r.Context(), id, published)
	if err != nil {
		return appError(err)
	}
	msg := "Page \"" + page.Title + "\" is now hidden."
	if page.Published {
		msg = "Page \"" + page.Title + "\" is now live."
	}
	h.sessions.Put(r.Context(), session.KeyFlash, msg)
	http.Redirect(w, r, "/admin/pages", http.StatusSeeOther)
	return nil
}

func (h *AdminHandler) deleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, err := pageID(r)
	if err != nil {
		return appError(err)
	}
	if err := h.pageService.DeletePage(r.Context(), id); err != nil {
		return appError(err)
	}
	h.sessions.Remove(r.Context(), session.DraftKey(id))
	h.sessions.Put(r.Context(), session.KeyFlash, "Page deleted.")
	http.Redirect(w, r, "/admin/pages", http.StatusSeeOther)
	return nil
}

func builderURL(id int64) string {
	return "/admin/pages/" + strconv.FormatInt(id, 10) + "/builder"
}
