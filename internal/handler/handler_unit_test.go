//go:build unit

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"go-storefront/internal/auth"
	"go-storefront/internal/block"
	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/middleware"
	"go-storefront/internal/render"
	"go-storefront/internal/service"
	"go-storefront/internal/session"
	"go-storefront/internal/view"
	"go-storefront/web"
)

// mockSessionManager is an in-memory implementation of the session.Manager interface.
type mockSessionManager struct {
	mu            sync.Mutex
	values        map[string]interface{}
	destroyCalled bool
	renewCalled   bool
}

// Ensure mockSessionManager implements the session.Manager interface.
var _ session.Manager = (*mockSessionManager)(nil)

func newMockSession() *mockSessionManager {
	return &mockSessionManager{values: make(map[string]interface{})}
}

// signedIn returns a session holding a signed-in identity.
func signedIn(role auth.Role) *mockSessionManager {
	m := newMockSession()
	m.values[session.KeyUserID] = int64(7)
	m.values[session.KeyUserEmail] = "editor@example.com"
	m.values[session.KeyUserName] = "Editor"
	m.values[session.KeyUserRole] = string(role)
	return m
}

func (m *mockSessionManager) LoadAndSave(next http.Handler) http.Handler { return next }
func (m *mockSessionManager) Put(ctx context.Context, key string, val interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = val
}
func (m *mockSessionManager) Get(ctx context.Context, key string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}
func (m *mockSessionManager) GetString(ctx context.Context, key string) string {
	s, _ := m.Get(ctx, key).(string)
	return s
}
func (m *mockSessionManager) GetInt64(ctx context.Context, key string) int64 {
	n, _ := m.Get(ctx, key).(int64)
	return n
}
func (m *mockSessionManager) GetBytes(ctx context.Context, key string) []byte {
	b, _ := m.Get(ctx, key).([]byte)
	return b
}
func (m *mockSessionManager) PopString(ctx context.Context, key string) string {
	s := m.GetString(ctx, key)
	m.Remove(ctx, key)
	return s
}
func (m *mockSessionManager) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
func (m *mockSessionManager) RenewToken(ctx context.Context) error {
	m.renewCalled = true
	return nil
}
func (m *mockSessionManager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyCalled = true
	m.values = make(map[string]interface{})
	return nil
}
func (m *mockSessionManager) Remove(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// fakePageService is an in-memory service.PageServicer.
type fakePageService struct {
	mu      sync.Mutex
	pages   map[int64]*service.Page
	nextID  int64
	err     error
	saveErr error
	saves   int
}

var _ service.PageServicer = (*fakePageService)(nil)

func newFakePageService(pages ...*service.Page) *fakePageService {
	f := &fakePageService{pages: make(map[int64]*service.Page)}
	for _, p := range pages {
		f.pages[p.ID] = p
		if p.ID > f.nextID {
			f.nextID = p.ID
		}
	}
	return f
}

func clonePage(p *service.Page) *service.Page {
	cp := *p
	cp.Blocks = append([]block.Block(nil), p.Blocks...)
	return &cp
}

func (f *fakePageService) slugTaken(slug string, excludeID int64) bool {
	for _, p := range f.pages {
		if p.Slug == slug && p.ID != excludeID {
			return true
		}
	}
	return false
}

func (f *fakePageService) GetPage(ctx context.Context, id int64) (*service.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pages[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return clonePage(p), nil
}

func (f *fakePageService) GetPublishedPage(ctx context.Context, slug string) (*service.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.pages {
		if p.Slug == slug && p.Published {
			return clonePage(p), nil
		}
	}
	return nil, service.ErrNotFound
}

func (f *fakePageService) ListPages(ctx context.Context, filter data.PageFilter) ([]*service.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []*service.Page{}
	for _, p := range f.pages {
		if filter.Published != nil && p.Published != *filter.Published {
			continue
		}
		out = append(out, clonePage(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePageService) ListPublishedPages(ctx context.Context) ([]*service.Page, error) {
	published := true
	return f.ListPages(ctx, data.PageFilter{Published: &published})
}

func (f *fakePageService) CreatePage(ctx context.Context, in service.NewPage) (*service.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, service.ErrValidation
	}
	slug := in.Slug
	if slug == "" {
		slug = service.Slugify(in.Title)
	}
	if f.slugTaken(slug, 0) {
		return nil, service.ErrConflict
	}
	f.nextID++
	p := &service.Page{ID: f.nextID, Title: in.Title, Slug: slug, Published: in.Published, Blocks: in.Blocks}
	if p.Blocks == nil {
		p.Blocks = []block.Block{}
	}
	f.pages[p.ID] = p
	return clonePage(p), nil
}

func (f *fakePageService) SavePage(ctx context.Context, page *service.Page) (*service.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	stored, ok := f.pages[page.ID]
	if !ok {
		return nil, service.ErrNotFound
	}
	if stored.Damaged && !page.DiscardDamaged {
		return nil, service.ErrDamaged
	}
	if f.slugTaken(page.Slug, page.ID) {
		return nil, service.ErrConflict
	}
	saved := clonePage(page)
	saved.Damaged, saved.DiscardDamaged = false, false
	f.pages[page.ID] = saved
	return clonePage(saved), nil
}

func (f *fakePageService) UpdatePage(ctx context.Context, id int64, upd service.PageUpdate) (*service.Page, error) {
	f.mu.Lock()
	p, ok := f.pages[id]
	f.mu.Unlock()
	if !ok {
		return nil, service.ErrNotFound
	}
	next := clonePage(p)
	if upd.Title != nil {
		next.Title = *upd.Title
	}
	if upd.Slug != nil {
		next.Slug = *upd.Slug
	}
	if upd.Published != nil {
		next.Published = *upd.Published
	}
	if upd.Blocks != nil {
		next.Blocks = *upd.Blocks
	}
	return f.SavePage(ctx, next)
}

func (f *fakePageService) SetPublished(ctx context.Context, id int64, published bool) (*service.Page, error) {
	return f.UpdatePage(ctx, id, service.PageUpdate{Published: &published})
}

func (f *fakePageService) DeletePage(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pages[id]; !ok {
		return service.ErrNotFound
	}
	delete(f.pages, id)
	return nil
}

func (f *fakePageService) page(id int64) *service.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clonePage(f.pages[id])
}

type testApp struct {
	Router   *chi.Mux
	Handlers Handlers
	Pages    *fakePageService
	Session  *mockSessionManager
	Registry *block.Registry
}

// newTestApp wires every handler the way the server does, with in-memory
// pages, sessions and policies.
func newTestApp(t *testing.T, sm *mockSessionManager, pages *fakePageService) *testApp {
	t.Helper()
	log := logger.Nop()
	reg := block.DefaultRegistry()

	v, err := view.New(web.TemplateFS, "Test Shop")
	require.NoError(t, err)
	renderer, err := render.New(reg, web.TemplateFS, nil, log)
	require.NoError(t, err)

	enforcer, err := auth.NewMemoryEnforcer()
	require.NoError(t, err)
	auth.SeedDefaultPolicies(enforcer, log)

	handlers := Handlers{
		Page:    NewPageHandler(pages, renderer, v, "home", log),
		Admin:   NewAdminHandler(pages, sm, v, log),
		Builder: NewBuilderHandler(pages, reg, renderer, nil, sm, v, 5, log),
		API:     NewAPIHandler(pages, reg, stubCategories{}, log),
		Auth:    NewAuthHandler(nil, nil, nil, sm, v, log),
		Media:   NewMediaHandler(nil, 5, log),
		Seo:     NewSeoHandler(pages, "https://shop.example.com", "home"),
	}
	router := NewRouter(handlers, sm,
		middleware.Authorizer(enforcer, sm, log),
		middleware.Error(log, v),
		middleware.NewRateLimiter(100, 100, log))

	return &testApp{Router: router, Handlers: handlers, Pages: pages, Session: sm, Registry: reg}
}

func (a *testApp) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) doJSON(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

type stubCategories struct{ err error }

func (s stubCategories) GetAll(ctx context.Context) ([]*data.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*data.Category{{ID: 1, Name: "Shoes", Slug: "shoes"}, {ID: 2, Name: "Shirts", Slug: "shirts"}}, nil
}

func textBlock(id, text string) block.Block {
	return block.Block{ID: id, Type: block.TypeText, Content: []byte(`{"text":"` + text + `","textColor":"#111827","textAlign":"left","fontSize":"base","markdown":false}`)}
}
