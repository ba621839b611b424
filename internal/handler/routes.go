package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"go-storefront/internal/metrics"
	"go-storefront/internal/middleware"
	"go-storefront/internal/session"
	"go-storefront/web"
)

// Handlers bundles every HTTP handler of the application.
type Handlers struct {
	Page    *PageHandler
	Admin   *AdminHandler
	Builder *BuilderHandler
	API     *APIHandler
	Auth    *AuthHandler
	Media   *MediaHandler
	Seo     *SeoHandler
}

// NewRouter creates and configures a new chi router.
func NewRouter(h Handlers, sm session.Manager, authzMiddleware func(http.Handler) http.Handler, errorMiddleware func(middleware.AppHandler) http.Handler, loginLimiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(sm.LoadAndSave)

	html := func(fn middleware.AppHandler) http.Handler { return errorMiddleware(fn) }

	// Unauthenticated infrastructure routes
	r.Handle("/metrics", metrics.Handler())
	r.Get("/robots.txt", h.Seo.robotsHandler)
	r.Get("/sitemap.xml", h.Seo.sitemapHandler)

	r.Group(func(r chi.Router) {
		r.Use(authzMiddleware)

		r.Handle("/static/*", http.FileServer(http.FS(web.StaticFS)))

		// Authentication routes
		r.Method(http.MethodGet, "/admin/login", html(h.Auth.loginFormHandler))
		r.With(loginLimiter.Handler).Method(http.MethodPost, "/admin/login", html(h.Auth.loginHandler))
		r.Post("/admin/logout", h.Auth.handleLogout)
		r.Get("/auth/oidc/login", h.Auth.handleLogin)
		r.Get("/auth/oidc/callback", h.Auth.handleCallback)

		// Admin screens
		r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/pages", http.StatusFound)
		})
		r.Route("/admin/pages", func(r chi.Router) {
			r.Method(http.MethodGet, "/", html(h.Admin.listHandler))
			r.Method(http.MethodPost, "/", html(h.Admin.createHandler))
			r.Method(http.MethodGet, "/new", html(h.Admin.newHandler))
			r.Method(http.MethodPost, "/{id}/publish", html(h.Admin.publishHandler))
			r.Method(http.MethodPost, "/{id}/delete", html(h.Admin.deleteHandler))

			r.Route("/{id}/builder", func(r chi.Router) {
				r.Method(http.MethodGet, "/", html(h.Builder.showHandler))
				r.Method(http.MethodPost, "/blocks", html(h.Builder.addHandler))
				r.Method(http.MethodPost, "/blocks/{blockID}", html(h.Builder.editHandler))
				r.Method(http.MethodPost, "/blocks/{blockID}/delete", html(h.Builder.deleteHandler))
				r.Method(http.MethodPost, "/blocks/{blockID}/select", html(h.Builder.selectHandler))
				r.Method(http.MethodPost, "/blocks/{blockID}/drag", html(h.Builder.dragHandler))
				r.Method(http.MethodPost, "/blocks/{blockID}/drop", html(h.Builder.dropHandler))
				r.Method(http.MethodPost, "/blocks/{blockID}/image", html(h.Builder.uploadHandler))
				r.Method(http.MethodPost, "/reorder", html(h.Builder.reorderHandler))
				r.Method(http.MethodPost, "/move", html(h.Builder.moveHandler))
				r.Method(http.MethodPost, "/save", html(h.Builder.saveHandler))
				r.Method(http.MethodPost, "/discard", html(h.Builder.discardHandler))
			})
		})
		r.Post("/admin/media", h.Media.uploadHandler)
		r.Delete("/admin/media/*", h.Media.deleteHandler)

		// JSON API
		r.Get("/api/blocks", h.API.blocksHandler)
		r.Get("/api/categories", h.API.categoriesHandler)
		r.Route("/api/pages", func(r chi.Router) {
			r.Get("/", h.API.listHandler)
			r.Post("/", h.API.createHandler)
			r.Get("/{id}", h.API.getHandler)
			r.Put("/{id}", h.API.updateHandler)
			r.Delete("/{id}", h.API.deleteHandler)
		})

		// Storefront
		r.Method(http.MethodGet, "/", html(h.Page.homeHandler))
		r.Method(http.MethodGet, "/{slug}", html(h.Page.viewHandler))
	})

	return r
}
