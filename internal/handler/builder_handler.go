package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"go-storefront/internal/auth"
	"go-storefront/internal/block"
	"go-storefront/internal/canvas"
	"go-storefront/internal/logger"
	"go-storefront/internal/media"
	"go-storefront/internal/middleware"
	"go-storefront/internal/render"
	"go-storefront/internal/service"
	"go-storefront/internal/session"
	"go-storefront/internal/view"
)

// draft is the builder state of one page kept in the editor's session
// until it is saved or discarded.
type draft struct {
	PageID    int64         `json:"pageId"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Published bool          `json:"published"`
	Blocks    []block.Block `json:"blocks"`
	Selected  string        `json:"selected,omitempty"`
	Dragging  string        `json:"dragging,omitempty"`
	Dirty     bool          `json:"dirty"`
	Damaged   bool          `json:"damaged,omitempty"`
}

// blockPreview is one block of the builder canvas.
type blockPreview struct {
	ID       string
	Type     string
	Label    string
	Index    int
	Known    bool
	Selected bool
	Dragging bool
	Preview  template.HTML
	Form     []block.FormField
	Image    string
}

// imageFields names the content field an uploaded image fills per block type.
var imageFields = map[block.Type]string{
	block.TypeImage: "imageUrl",
	block.TypeHero:  "backgroundImage",
}

// BuilderHandler runs the page canvas for editors.
type BuilderHandler struct {
	pageService service.PageServicer
	registry    *block.Registry
	editor      *block.Editor
	renderer    *render.Renderer
	media       media.Store
	sessions    session.Manager
	view        *view.View
	log         logger.Logger
	maxUpload   int64

	mu     sync.Mutex
	saving map[string]bool
}

// NewBuilderHandler creates a BuilderHandler. store may be nil when image
// uploads are not configured.
func NewBuilderHandler(ps service.PageServicer, reg *block.Registry, rr *render.Renderer, store media.Store, sm session.Manager, v *view.View, maxUploadMB int64, log logger.Logger) *BuilderHandler {
	return &BuilderHandler{
		pageService: ps,
		registry:    reg,
		editor:      block.NewEditor(reg),
		renderer:    rr,
		media:       store,
		sessions:    sm,
		view:        v,
		log:         log,
		maxUpload:   maxUploadMB << 20,
		saving:      make(map[string]bool),
	}
}

func (h *BuilderHandler) loadDraft(r *http.Request) (*draft, *middleware.AppError) {
	id, err := pageID(r)
	if err != nil {
		return nil, appError(err)
	}
	if raw := h.sessions.GetBytes(r.Context(), session.DraftKey(id)); len(raw) > 0 {
		var d draft
		if err := json.Unmarshal(raw, &d); err == nil && d.PageID == id {
			return &d, nil
		}
		h.log.Warn("discarding unreadable builder draft")
		h.sessions.Remove(r.Context(), session.DraftKey(id))
	}

	page, err := h.pageService.GetPage(r.Context(), id)
	if err != nil {
		return nil, appError(err)
	}
	return &draft{
		PageID:    page.ID,
		Title:     page.Title,
		Slug:      page.Slug,
		Published: page.Published,
		Blocks:    page.Blocks,
		Damaged:   page.Damaged,
	}, nil
}

func (h *BuilderHandler) canvasFor(d *draft) *canvas.Canvas {
	c := canvas.New(h.registry, d.Blocks)
	if d.Selected != "" {
		_ = c.Select(d.Selected)
	}
	if d.Dragging != "" {
		_ = c.BeginDrag(d.Dragging)
	}
	return c
}

func (h *BuilderHandler) storeDraft(r *http.Request, d *draft, c *canvas.Canvas) {
	d.Blocks = c.Blocks()
	d.Selected = c.Selected()
	d.Dragging = c.Dragging()
	raw, err := json.Marshal(d)
	if err != nil {
		h.log.Error(err, "failed to encode builder draft")
		return
	}
	h.sessions.Put(r.Context(), session.DraftKey(d.PageID), raw)
}

// showHandler renders the builder for a page.
func (h *BuilderHandler) showHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	d, appErr := h.loadDraft(r)
	if appErr != nil {
		return appErr
	}
	return h.renderBuilder(w, r, http.StatusOK, d, h.canvasFor(d), "")
}

func (h *BuilderHandler) renderBuilder(w http.ResponseWriter, r *http.Request, status int, d *draft, c *canvas.Canvas, errMsg string) *middleware.AppError {
	blocks := c.Blocks()
	previews := make([]blockPreview, 0, len(blocks))
	for i, b := range blocks {
		p := blockPreview{
			ID:       b.ID,
			Type:     string(b.Type),
			Label:    string(b.Type),
			Index:    i,
			Selected: b.ID == c.Selected(),
			Dragging: b.ID == c.Dragging(),
			Image:    imageFields[b.Type],
		}
		if entry, err := h.registry.Lookup(b.Type); err == nil {
			p.Known = true
			p.Label = entry.Label
			html, err := h.renderer.RenderBlock(r.Context(), b)
			if err != nil {
				h.log.Error(err, "builder preview failed")
			}
			p.Preview = html
			if p.Selected {
				p.Form, _ = h.editor.Form(b)
			}
		}
		previews = append(previews, p)
	}

	data := map[string]interface{}{
		"Draft":       d,
		"Blocks":      previews,
		"Toolbox":     h.registry.Entries(),
		"Error":       errMsg,
		"Flash":       h.sessions.PopString(r.Context(), session.KeyFlash),
		"Saving":      h.isSaving(saveKey(r, d.PageID)),
		"CanUpload":   h.media != nil,
		"LastIndex":   len(blocks) - 1,
		"BuilderPath": builderURL(d.PageID),
	}
	if err := renderStatus(w, r, h.view, status, "builder.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render builder", Code: http.StatusInternalServerError}
	}
	return nil
}

// mutate applies op to the draft canvas and returns to the builder.
func (h *BuilderHandler) mutate(w http.ResponseWriter, r *http.Request, op func(c *canvas.Canvas) error) *middleware.AppError {
	if err := r.ParseForm(); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid form", Code: http.StatusBadRequest}
	}
	d, appErr := h.loadDraft(r)
	if appErr != nil {
		return appErr
	}
	c := h.canvasFor(d)
	if err := op(c); err != nil {
		return canvasError(err)
	}
	d.Dirty = true
	h.storeDraft(r, d, c)
	http.Redirect(w, r, builderURL(d.PageID), http.StatusSeeOther)
	return nil
}

func canvasError(err error) *middleware.AppError {
	switch {
	case errors.Is(err, canvas.ErrNotFound):
		return &middleware.AppError{Error: err, Message: "Block not found", Code: http.StatusNotFound}
	case errors.Is(err, block.ErrUnknownBlockType):
		return &middleware.AppError{Error: err, Message: "Unknown block type", Code: http.StatusUnprocessableEntity}
	}
	return &middleware.AppError{Error: err, Message: err.Error(), Code: http.StatusBadRequest}
}

func (h *BuilderHandler) addHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		b, err := c.AddBlock(block.Type(r.PostForm.Get("type")))
		if err != nil {
			return err
		}
		return c.Select(b.ID)
	})
}

func (h *BuilderHandler) editHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id := chi.URLParam(r, "blockID")
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		b, err := c.Block(id)
		if err != nil {
			return err
		}
		edited, err := h.editor.Apply(b, r.PostForm)
		if err != nil {
			return err
		}
		return c.ReplaceBlock(edited)
	})
}

func (h *BuilderHandler) deleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id := chi.URLParam(r, "blockID")
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		if !c.DeleteBlock(id) {
			return canvas.ErrNotFound
		}
		return nil
	})
}

func (h *BuilderHandler) selectHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id := chi.URLParam(r, "blockID")
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		if c.Selected() == id {
			c.ClearSelection()
			return nil
		}
		return c.Select(id)
	})
}

func (h *BuilderHandler) dragHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id := chi.URLParam(r, "blockID")
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		return c.BeginDrag(id)
	})
}

// dropHandler ends a drag on the block in the URL; dropping on the dragged
// block itself cancels.
func (h *BuilderHandler) dropHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	over := chi.URLParam(r, "blockID")
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		return c.EndDrag(over)
	})
}

func (h *BuilderHandler) reorderHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		from, err := strconv.Atoi(r.PostForm.Get("from"))
		if err != nil {
			return errors.New("from must be a block position")
		}
		to, err := strconv.Atoi(r.PostForm.Get("to"))
		if err != nil {
			return errors.New("to must be a block position")
		}
		return c.Reorder(from, to)
	})
}

func (h *BuilderHandler) moveHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.mutate(w, r, func(c *canvas.Canvas) error {
		return c.Move(r.PostForm.Get("active"), r.PostForm.Get("over"))
	})
}

// uploadHandler stores an image and puts its URL into the block's image field.
func (h *BuilderHandler) uploadHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if h.media == nil {
		return &middleware.AppError{Error: errors.New("media store not configured"), Message: "Image uploads are not configured", Code: http.StatusServiceUnavailable}
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return &middleware.AppError{Error: err, Message: "The upload is too large or malformed", Code: http.StatusRequestEntityTooLarge}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return &middleware.AppError{Error: err, Message: "No file uploaded", Code: http.StatusBadRequest}
	}
	defer file.Close()

	id := chi.URLParam(r, "blockID")
	d, appErr := h.loadDraft(r)
	if appErr != nil {
		return appErr
	}
	c := h.canvasFor(d)
	b, err := c.Block(id)
	if err != nil {
		return canvasError(err)
	}
	field, ok := imageFields[b.Type]
	if !ok {
		return &middleware.AppError{Error: errors.New("block has no image field"), Message: "This block has no image", Code: http.StatusBadRequest}
	}

	body, _, err := media.Sniff(file)
	if err != nil {
		return &middleware.AppError{Error: err, Message: media.ErrUnsupportedType.Error(), Code: http.StatusUnsupportedMediaType}
	}
	asset, err := h.media.Upload(r.Context(), body)
	if err != nil {
		h.log.Error(err, "image upload failed for "+header.Filename)
		return &middleware.AppError{Error: err, Message: "Image upload failed", Code: http.StatusBadGateway}
	}

	edited, err := h.editor.Apply(b, map[string][]string{field: {asset.URL}})
	if err != nil {
		return canvasError(err)
	}
	if err := c.ReplaceBlock(edited); err != nil {
		return canvasError(err)
	}
	d.Dirty = true
	h.storeDraft(r, d, c)
	http.Redirect(w, r, builderURL(d.PageID), http.StatusSeeOther)
	return nil
}

func saveKey(r *http.Request, pageID int64) string {
	return auth.IdentityFrom(r.Context()).Email + ":" + strconv.FormatInt(pageID, 10)
}

func (h *BuilderHandler) isSaving(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saving[key]
}

func (h *BuilderHandler) beginSave(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.saving[key] {
		return false
	}
	h.saving[key] = true
	return true
}

func (h *BuilderHandler) endSave(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.saving, key)
}

// saveHandler writes the draft as the page's whole document. On failure the
// draft stays in the session and the builder shows the error.
func (h *BuilderHandler) saveHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if err := r.ParseForm(); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid form", Code: http.StatusBadRequest}
	}
	d, appErr := h.loadDraft(r)
	if appErr != nil {
		return appErr
	}
	c := h.canvasFor(d)
	if _, ok := r.PostForm["title"]; ok {
		d.Title = strings.TrimSpace(r.PostForm.Get("title"))
	}
	if _, ok := r.PostForm["slug"]; ok {
		d.Slug = strings.TrimSpace(r.PostForm.Get("slug"))
	}
	if _, ok := r.PostForm["published"]; ok {
		d.Published = r.PostForm.Get("published") == "true" || r.PostForm.Get("published") == "on"
	}

	key := saveKey(r, d.PageID)
	if !h.beginSave(key) {
		return h.renderBuilder(w, r, http.StatusConflict, d, c, "A save for this page is already in progress.")
	}
	defer h.endSave(key)

	_, err := h.pageService.SavePage(r.Context(), &service.Page{
		ID:             d.PageID,
		Title:          d.Title,
		Slug:           d.Slug,
		Published:      d.Published,
		Blocks:         c.Blocks(),
		DiscardDamaged: r.PostForm.Get("discardDamaged") == "true",
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrForbidden) {
			return appError(err)
		}
		d.Dirty = true
		h.storeDraft(r, d, c)
		code, msg := statusFor(err)
		return h.renderBuilder(w, r, code, d, c, "Not saved: "+msg+". Your changes are kept.")
	}

	h.sessions.Remove(r.Context(), session.DraftKey(d.PageID))
	h.sessions.Put(r.Context(), session.KeyFlash, "Page saved.")
	http.Redirect(w, r, builderURL(d.PageID), http.StatusSeeOther)
	return nil
}

// discardHandler drops unsaved changes.
func (h *BuilderHandler) discardHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, err := pageID(r)
	if err != nil {
		return appError(err)
	}
	h.sessions.Remove(r.Context(), session.DraftKey(id))
	h.sessions.Put(r.Context(), session.KeyFlash, "Changes discarded.")
	http.Redirect(w, r, builderURL(id), http.StatusSeeOther)
	return nil
}
