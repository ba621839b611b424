package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CategoryRepository handles database operations for product categories.
type CategoryRepository struct {
	DB *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

// FindBySlug finds a category by its slug. A missing category is not an
// error: it returns nil, nil.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (*Category, error) {
	var category Category
	err := r.DB.GetContext(ctx, &category, "SELECT id, name, slug, parent_id FROM categories WHERE slug = ?", slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return &category, nil
}

// GetAll retrieves all categories ordered by name.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]*Category, error) {
	categories := []*Category{}
	err := r.DB.SelectContext(ctx, &categories, "SELECT id, name, slug, parent_id FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Save creates a new category and returns its ID.
func (r *CategoryRepository) Save(ctx context.Context, category *Category) (int64, error) {
	res, err := r.DB.NamedExecContext(ctx, "INSERT INTO categories (name, slug, parent_id) VALUES (:name, :slug, :parent_id)", category)
	if err != nil {
		if isDuplicate(err) {
			return 0, fmt.Errorf("category %q: %w", category.Slug, ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to save category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	category.ID = id
	return id, nil
}
