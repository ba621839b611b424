package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-storefront/internal/auth"
	"go-storefront/internal/block"
	"go-storefront/internal/canvas"
	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/metrics"
)

// PageRepository defines the interface for database operations on pages.
type PageRepository interface {
	CreatePage(ctx context.Context, page *data.Page) error
	GetPageByID(ctx context.Context, id int64) (*data.Page, error)
	GetPageBySlug(ctx context.Context, slug string, publishedOnly bool) (*data.Page, error)
	ListPages(ctx context.Context, filter data.PageFilter) ([]*data.Page, error)
	SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error)
	UpdatePage(ctx context.Context, page *data.Page) error
	DeletePage(ctx context.Context, id int64) error
}

// PageCache stores rendered lookups of published pages.
type PageCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// PageServicer defines the interface for interacting with pages.
type PageServicer interface {
	GetPage(ctx context.Context, id int64) (*Page, error)
	GetPublishedPage(ctx context.Context, slug string) (*Page, error)
	ListPages(ctx context.Context, filter data.PageFilter) ([]*Page, error)
	ListPublishedPages(ctx context.Context) ([]*Page, error)
	CreatePage(ctx context.Context, in NewPage) (*Page, error)
	SavePage(ctx context.Context, page *Page) (*Page, error)
	UpdatePage(ctx context.Context, id int64, upd PageUpdate) (*Page, error)
	SetPublished(ctx context.Context, id int64, published bool) (*Page, error)
	DeletePage(ctx context.Context, id int64) error
}

// Page is a storefront page with its decoded block list.
//
// Damaged reports stored content that could only be read in part; Blocks
// then holds the readable blocks. Saving over damaged content requires
// DiscardDamaged.
type Page struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Published bool          `json:"published"`
	Blocks    []block.Block `json:"blocks"`
	Damaged   bool          `json:"damaged,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`

	DiscardDamaged bool `json:"-"`
}

// NewPage holds the fields of a page to create. An empty Slug is derived
// from the title.
type NewPage struct {
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Published bool          `json:"published"`
	Blocks    []block.Block `json:"blocks"`
}

// PageUpdate changes only the fields that are set. Replacing the blocks of
// a damaged page requires DiscardDamaged.
type PageUpdate struct {
	Title          *string        `json:"title"`
	Slug           *string        `json:"slug"`
	Published      *bool          `json:"published"`
	Blocks         *[]block.Block `json:"blocks"`
	DiscardDamaged bool           `json:"discardDamaged"`
}

// PageService provides business logic for managing pages. Every mutation
// and every lookup of unpublished pages requires an identity that can edit.
type PageService struct {
	repo     PageRepository
	registry *block.Registry
	cache    PageCache
	cacheTTL time.Duration
	log      logger.Logger

	// gen counts cache invalidations. A public read only fills the cache
	// when no invalidation ran since it started.
	mu  sync.Mutex
	gen uint64
}

// NewPageService creates a new PageService. cache may be nil.
func NewPageService(repo PageRepository, reg *block.Registry, cache PageCache, cacheTTL time.Duration, log logger.Logger) *PageService {
	return &PageService{
		repo:     repo,
		registry: reg,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func requireEditor(ctx context.Context) error {
	if !auth.IdentityFrom(ctx).CanEdit() {
		return ErrForbidden
	}
	return nil
}

// storeError maps repository errors onto the service taxonomy.
func (s *PageService) storeError(op string, err error) error {
	switch {
	case errors.Is(err, data.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, data.ErrDuplicate):
		return ErrConflict
	}
	s.log.Error(err, op+" failed")
	return fmt.Errorf("%s: %w", op, ErrUnavailable)
}

func (s *PageService) fromRecord(p *data.Page) *Page {
	doc, err := block.DecodeDocument([]byte(p.Content))
	if err != nil {
		s.log.With(map[string]interface{}{"page_id": p.ID}).Warn("stored page content is damaged: " + err.Error())
	}
	return &Page{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Published: p.Published,
		Blocks:    doc.Blocks,
		Damaged:   err != nil,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *PageService) toRecord(p *Page) (*data.Page, error) {
	content, err := block.Document{Blocks: p.Blocks}.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &data.Page{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Published: p.Published,
		Content:   string(content),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// cleanBlocks gives every block a unique non-empty id.
func (s *PageService) cleanBlocks(blocks []block.Block) []block.Block {
	if len(blocks) == 0 {
		return []block.Block{}
	}
	return canvas.New(s.registry, blocks).Blocks()
}

func validateFields(title, slug string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !ValidSlug(slug) {
		return fmt.Errorf("%w: slug %q may only contain letters, digits and hyphens", ErrValidation, slug)
	}
	return nil
}

func (s *PageService) checkSlug(ctx context.Context, slug string, excludeID int64) error {
	taken, err := s.repo.SlugTaken(ctx, slug, excludeID)
	if err != nil {
		return s.storeError("check slug", err)
	}
	if taken {
		return ErrConflict
	}
	return nil
}

// GetPage returns any page by id, published or not.
func (s *PageService) GetPage(ctx context.Context, id int64) (*Page, error) {
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPageByID(ctx, id)
	if err != nil {
		return nil, s.storeError("get page", err)
	}
	return s.fromRecord(p), nil
}

// cacheKey is case-insensitive like slug uniqueness in the page store.
func cacheKey(slug string) string {
	return "page:" + strings.ToLower(slug)
}

// GetPublishedPage returns the published page with the given slug.
// Unpublished pages are reported as ErrNotFound.
func (s *PageService) GetPublishedPage(ctx context.Context, slug string) (*Page, error) {
	if !slugPattern.MatchString(slug) {
		return nil, ErrNotFound
	}
	slug = strings.ToLower(slug)
	var gen uint64
	if s.cache != nil {
		s.mu.Lock()
		gen = s.gen
		s.mu.Unlock()
		if raw, err := s.cache.Get(cacheKey(slug)); err != nil {
			s.log.Error(err, "page cache lookup failed")
		} else if raw != nil {
			var page Page
			if err := json.Unmarshal(raw, &page); err == nil {
				metrics.RecordCacheLookup(true)
				return &page, nil
			}
		}
		metrics.RecordCacheLookup(false)
	}

	p, err := s.repo.GetPageBySlug(ctx, slug, true)
	if err != nil {
		return nil, s.storeError("get published page", err)
	}
	page := s.fromRecord(p)
	if s.cache != nil {
		s.fill(slug, page, gen)
	}
	return page, nil
}

// fill caches page unless an invalidation happened after gen was taken.
func (s *PageService) fill(slug string, page *Page, gen uint64) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if err := s.cache.Set(cacheKey(slug), raw, s.cacheTTL); err != nil {
		s.log.Error(err, "page cache store failed")
	}
}

func (s *PageService) invalidate(slugs ...string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		if err := s.cache.Delete(cacheKey(slug)); err != nil {
			s.log.Error(err, "page cache invalidation failed")
		}
	}
}

// ListPages returns pages most recently updated first.
func (s *PageService) ListPages(ctx context.Context, filter data.PageFilter) ([]*Page, error) {
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListPublishedPages returns every published page.
func (s *PageService) ListPublishedPages(ctx context.Context) ([]*Page, error) {
	published := true
	return s.list(ctx, data.PageFilter{Published: &published})
}

func (s *PageService) list(ctx context.Context, filter data.PageFilter) ([]*Page, error) {
	records, err := s.repo.ListPages(ctx, filter)
	if err != nil {
		return nil, s.storeError("list pages", err)
	}
	pages := make([]*Page, 0, len(records))
	for _, r := range records {
		pages = append(pages, s.fromRecord(r))
	}
	return pages, nil
}

// CreatePage stores a new page. A slug already in use yields ErrConflict
// and nothing is written.
func (s *PageService) CreatePage(ctx context.Context, in NewPage) (page *Page, err error) {
	defer func() { metrics.RecordPageSave("create", err) }()
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Slug = normalizeSlug(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Title)
	}
	if err := validateFields(in.Title, in.Slug); err != nil {
		return nil, err
	}
	if err := s.checkSlug(ctx, in.Slug, 0); err != nil {
		return nil, err
	}

	page = &Page{
		Title:     in.Title,
		Slug:      in.Slug,
		Published: in.Published,
		Blocks:    s.cleanBlocks(in.Blocks),
	}
	record, err := s.toRecord(page)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePage(ctx, record); err != nil {
		return nil, s.storeError("create page", err)
	}
	page.ID, page.CreatedAt, page.UpdatedAt = record.ID, record.CreatedAt, record.UpdatedAt
	s.invalidate(page.Slug)
	return page, nil
}

// SavePage replaces the stored page with page as a whole: title, slug,
// published flag and the complete block list. Keeping a page's own slug
// is never a conflict.
func (s *PageService) SavePage(ctx context.Context, page *Page) (saved *Page, err error) {
	defer func() { metrics.RecordPageSave("save", err) }()
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetPageByID(ctx, page.ID)
	if err != nil {
		return nil, s.storeError("load page for save", err)
	}
	if s.fromRecord(existing).Damaged && !page.DiscardDamaged {
		return nil, ErrDamaged
	}
	return s.replace(ctx, existing, &Page{
		ID:        page.ID,
		Title:     strings.TrimSpace(page.Title),
		Slug:      normalizeSlug(page.Slug),
		Published: page.Published,
		Blocks:    page.Blocks,
	}, false)
}

// UpdatePage applies the set fields of upd to the stored page. The write
// itself is still a whole-document replace.
func (s *PageService) UpdatePage(ctx context.Context, id int64, upd PageUpdate) (saved *Page, err error) {
	defer func() { metrics.RecordPageSave("update", err) }()
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetPageByID(ctx, id)
	if err != nil {
		return nil, s.storeError("load page for update", err)
	}
	next := s.fromRecord(existing)
	if upd.Title != nil {
		next.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Slug != nil {
		next.Slug = normalizeSlug(*upd.Slug)
	}
	if upd.Published != nil {
		next.Published = *upd.Published
	}
	if upd.Blocks == nil {
		// Untouched content is written back exactly as stored.
		return s.replace(ctx, existing, next, true)
	}
	if next.Damaged && !upd.DiscardDamaged {
		return nil, ErrDamaged
	}
	next.Blocks = *upd.Blocks
	return s.replace(ctx, existing, next, false)
}

// SetPublished toggles public visibility without touching other fields.
func (s *PageService) SetPublished(ctx context.Context, id int64, published bool) (*Page, error) {
	return s.UpdatePage(ctx, id, PageUpdate{Published: &published})
}

// replace writes next over existing. With keepContent the stored document
// is kept byte for byte and next.Blocks is only returned.
func (s *PageService) replace(ctx context.Context, existing *data.Page, next *Page, keepContent bool) (*Page, error) {
	if err := validateFields(next.Title, next.Slug); err != nil {
		return nil, err
	}
	if next.Slug != existing.Slug {
		if err := s.checkSlug(ctx, next.Slug, existing.ID); err != nil {
			return nil, err
		}
	}
	if !keepContent {
		next.Blocks = s.cleanBlocks(next.Blocks)
		next.Damaged = false
	}
	next.DiscardDamaged = false
	next.CreatedAt = existing.CreatedAt

	record, err := s.toRecord(next)
	if err != nil {
		return nil, err
	}
	if keepContent {
		record.Content = existing.Content
	}
	if err := s.repo.UpdatePage(ctx, record); err != nil {
		return nil, s.storeError("update page", err)
	}
	next.UpdatedAt = record.UpdatedAt
	s.invalidate(existing.Slug, next.Slug)
	return next, nil
}

// DeletePage handles the deletion of a page by its ID.
func (s *PageService) DeletePage(ctx context.Context, id int64) (err error) {
	defer func() { metrics.RecordPageSave("delete", err) }()
	if err := requireEditor(ctx); err != nil {
		return err
	}
	existing, err := s.repo.GetPageByID(ctx, id)
	if err != nil {
		return s.storeError("load page for delete", err)
	}
	if err := s.repo.DeletePage(ctx, id); err != nil {
		return s.storeError("delete page", err)
	}
	s.invalidate(existing.Slug)
	return nil
}
