//go:build integration

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/internal/auth"
	"go-storefront/internal/block"
	"go-storefront/internal/cache"
	"go-storefront/internal/config"
	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/middleware"
	"go-storefront/internal/render"
	"go-storefront/internal/service"
	"go-storefront/internal/session"
	"go-storefront/internal/view"
	"go-storefront/web"
)

type integrationApp struct {
	Router *chi.Mux
	Users  *data.SQLUserRepository
}

// setupIntegrationTest initializes a full application stack for testing.
func setupIntegrationTest(t *testing.T) *integrationApp {
	t.Helper()
	dbCfg := config.DBConfig{Driver: "sqlite3", DSN: "file::memory:"}
	db, err := data.NewDB(dbCfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := filepath.Glob("../../migrations/sqlite3/*.up.sql")
	require.NoError(t, err)
	sort.Strings(files)
	for _, f := range files {
		schema, err := os.ReadFile(f)
		require.NoError(t, err)
		db.MustExec(string(schema))
	}

	log := logger.Nop()
	reg := block.DefaultRegistry()
	viewService, err := view.New(web.TemplateFS, "Test Shop")
	require.NoError(t, err)

	pageCache, err := cache.New(config.CacheConfig{FilePath: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { pageCache.Close() })

	users := data.NewSQLUserRepository(db)
	catalog := service.NewCatalogService(data.NewSQLProductRepository(db), log)
	renderer, err := render.New(reg, web.TemplateFS, catalog, log)
	require.NoError(t, err)
	pageService := service.NewPageService(data.NewSQLPageRepository(db), reg, pageCache, time.Minute, log)

	sessionManager := session.New(config.SessionConfig{Lifetime: 1, CookieName: "test_session"}, "sqlite3", db, false)

	enforcer, err := auth.NewMemoryEnforcer()
	require.NoError(t, err)
	auth.SeedDefaultPolicies(enforcer, log)

	handlers := Handlers{
		Page:    NewPageHandler(pageService, renderer, viewService, "home", log),
		Admin:   NewAdminHandler(pageService, sessionManager, viewService, log),
		Builder: NewBuilderHandler(pageService, reg, renderer, nil, sessionManager, viewService, 5, log),
		API:     NewAPIHandler(pageService, reg, data.NewCategoryRepository(db), log),
		Auth:    NewAuthHandler(nil, auth.NewCredentials(users), users, sessionManager, viewService, log),
		Media:   NewMediaHandler(nil, 5, log),
		Seo:     NewSeoHandler(pageService, "http://shop.test", "home"),
	}
	router := NewRouter(handlers, sessionManager,
		middleware.Authorizer(enforcer, sessionManager, log),
		middleware.Error(log, viewService),
		middleware.NewRateLimiter(100, 100, log))

	return &integrationApp{Router: router, Users: users}
}

// client carries the session cookie between requests.
type client struct {
	app     *integrationApp
	cookies []*http.Cookie
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	c.app.Router.ServeHTTP(rr, req)
	if set := rr.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return rr
}

func (c *client) form(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

func (c *client) json(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.send(httptest.NewRequest("GET", target, nil))
}

func TestHandlers_Integration(t *testing.T) {
	app := setupIntegrationTest(t)
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, app.Users.CreateUser(context.Background(), &data.User{
		Email: "staff@example.com", Name: "Staff", PasswordHash: hash, Role: "STAFF",
	}))

	visitor := &client{app: app}
	rr := visitor.json("POST", "/api/pages", `{"title":"Sneaky"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	staff := &client{app: app}
	rr = staff.form("/admin/login", url.Values{"email": {"staff@example.com"}, "password": {"wrong"}})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = staff.form("/admin/login", url.Values{"email": {"staff@example.com"}, "password": {"s3cret"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/admin/pages", rr.Header().Get("Location"))

	rr = staff.json("POST", "/api/pages", `{"title":"Home","slug":"home","blocks":[
		{"id":"b1","type":"text","content":{"text":"Fresh arrivals"}},
		{"id":"b2","type":"mystery","content":{"x":1}}
	]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// Drafts are invisible to shoppers.
	rr = visitor.get("/")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = staff.form("/admin/pages/1/publish", url.Values{"published": {"true"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = visitor.get("/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Fresh arrivals")
	assert.NotContains(t, rr.Body.String(), "mystery")

	// The builder flags the unknown block and keeps it on save.
	rr = staff.get("/admin/pages/1/builder")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `Unknown block type "mystery"`)

	rr = staff.form("/admin/pages/1/builder/reorder", url.Values{"from": {"1"}, "to": {"0"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	rr = staff.form("/admin/pages/1/builder/save", url.Values{"title": {"Home"}, "slug": {"home"}, "published": {"true"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = staff.get("/api/pages/1")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Less(t, strings.Index(body, `"b2"`), strings.Index(body, `"b1"`))

	rr = visitor.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<loc>http://shop.test/</loc>")

	rr = staff.form("/admin/logout", url.Values{})
	assert.Equal(t, http.StatusFound, rr.Code)
	rr = staff.get("/admin/pages")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}
