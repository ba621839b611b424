package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go-storefront/internal/block"
	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/middleware"
	"go-storefront/internal/service"
)

const maxPageBody = 2 << 20

// CategoryLister lists the catalog categories a product grid can show.
type CategoryLister interface {
	GetAll(ctx context.Context) ([]*data.Category, error)
}

// APIHandler exposes pages, categories and the block registry as JSON.
type APIHandler struct {
	pageService service.PageServicer
	registry    *block.Registry
	categories  CategoryLister
	log         logger.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(ps service.PageServicer, reg *block.Registry, categories CategoryLister, log logger.Logger) *APIHandler {
	return &APIHandler{pageService: ps, registry: reg, categories: categories, log: log}
}

// blockTypeInfo describes a block type for the admin palette.
type blockTypeInfo struct {
	Type        block.Type              `json:"type"`
	Label       string                  `json:"label"`
	Description string                  `json:"description"`
	Fields      []block.FieldDescriptor `json:"fields"`
	Defaults    json.RawMessage         `json:"defaults"`
}

func (h *APIHandler) blocksHandler(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.Entries()
	out := make([]blockTypeInfo, 0, len(entries))
	for _, e := range entries {
		defaults, err := h.registry.Defaults(e.Type)
		if err != nil {
			h.log.Error(err, "failed to encode block defaults")
			continue
		}
		out = append(out, blockTypeInfo{
			Type:        e.Type,
			Label:       e.Label,
			Description: e.Description,
			Fields:      e.Fields,
			Defaults:    defaults,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// categoriesHandler feeds the category field of product grid blocks.
func (h *APIHandler) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.GetAll(r.Context())
	if err != nil {
		h.log.Error(err, "failed to list categories")
		middleware.WriteJSONError(w, http.StatusServiceUnavailable, "categories are currently unavailable")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *APIHandler) listHandler(w http.ResponseWriter, r *http.Request) {
	filter := data.PageFilter{}
	if v := r.URL.Query().Get("published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteJSONError(w, http.StatusBadRequest, "published must be true or false")
			return
		}
		filter.Published = &b
	}
	pages, err := h.pageService.ListPages(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (h *APIHandler) createHandler(w http.ResponseWriter, r *http.Request) {
	var in service.NewPage
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	page, err := h.pageService.CreatePage(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/pages/"+strconv.FormatInt(page.ID, 10))
	writeJSON(w, http.StatusCreated, page)
}

func (h *APIHandler) getHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pageID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page, err := h.pageService.GetPage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// updateHandler changes only the fields present in the body.
func (h *APIHandler) updateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pageID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var upd service.PageUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	page, err := h.pageService.UpdatePage(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pageID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.pageService.DeletePage(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPageBody))
	return dec.Decode(v)
}
