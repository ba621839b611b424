package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const pageColumns = `id, title, slug, published, content, created_at, updated_at`

// SQLPageRepository is a concrete implementation of the PageRepository interface using sqlx.
type SQLPageRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreatePage inserts a new page and fills in its generated id and timestamps.
// A slug that is already taken yields ErrDuplicate.
func (r *SQLPageRepository) CreatePage(ctx context.Context, page *Page) error {
	now := r.now()
	page.CreatedAt, page.UpdatedAt = now, now
	query := `INSERT INTO pages (title, slug, published, content, created_at, updated_at)
		VALUES (:title, :slug, :published, :content, :created_at, :updated_at)`
	res, err := r.db.NamedExecContext(ctx, query, page)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("slug %q: %w", page.Slug, ErrDuplicate)
		}
		return fmt.Errorf("failed to execute create page query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new page id: %w", err)
	}
	page.ID = id
	return nil
}

// GetPageByID retrieves a single page by its ID, published or not.
func (r *SQLPageRepository) GetPageByID(ctx context.Context, id int64) (*Page, error) {
	var page Page
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`
	if err := r.db.GetContext(ctx, &page, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page with id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page by id: %w", err)
	}
	return &page, nil
}

// GetPageBySlug retrieves a page by slug. With publishedOnly, drafts are
// reported as ErrNotFound.
func (r *SQLPageRepository) GetPageBySlug(ctx context.Context, slug string, publishedOnly bool) (*Page, error) {
	var page Page
	query := `SELECT ` + pageColumns + ` FROM pages WHERE slug = ?`
	args := []interface{}{slug}
	if publishedOnly {
		query += ` AND published = ?`
		args = append(args, true)
	}
	if err := r.db.GetContext(ctx, &page, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page with slug %q: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page by slug: %w", err)
	}
	return &page, nil
}

// ListPages returns pages most recently updated first.
func (r *SQLPageRepository) ListPages(ctx context.Context, filter PageFilter) ([]*Page, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Published != nil {
		where = append(where, "published = ?")
		args = append(args, *filter.Published)
	}
	query := `SELECT ` + pageColumns + ` FROM pages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	pages := []*Page{}
	if err := r.db.SelectContext(ctx, &pages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// SlugTaken reports whether another page than excludeID uses slug.
func (r *SQLPageRepository) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM pages WHERE slug = ? AND id <> ?`
	if err := r.db.GetContext(ctx, &n, query, slug, excludeID); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return n > 0, nil
}

// UpdatePage overwrites every mutable column of an existing page,
// including the whole content document, and bumps updated_at.
func (r *SQLPageRepository) UpdatePage(ctx context.Context, page *Page) error {
	page.UpdatedAt = r.now()
	query := `UPDATE pages SET title = :title, slug = :slug, published = :published,
		content = :content, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, page)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("slug %q: %w", page.Slug, ErrDuplicate)
		}
		return fmt.Errorf("failed to update page: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no page to update with id %d: %w", page.ID, ErrNotFound)
	}
	return nil
}

// DeletePage removes a page from the database by its ID.
func (r *SQLPageRepository) DeletePage(ctx context.Context, id int64) error {
	query := `DELETE FROM pages WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no page to delete with id %d: %w", id, ErrNotFound)
	}
	return nil
}
