package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const productColumns = `p.id, p.name, p.slug, p.description, p.price_cents, p.image_url,
	p.image_public_id, p.category_id, p.active, p.created_at`

// SQLProductRepository reads and writes catalog products.
type SQLProductRepository struct {
	db *sqlx.DB
}

// NewSQLProductRepository creates a new SQLProductRepository.
func NewSQLProductRepository(db *sqlx.DB) *SQLProductRepository {
	return &SQLProductRepository{db: db}
}

// CreateProduct inserts a product and sets its ID.
func (r *SQLProductRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO products (name, slug, description, price_cents, image_url, image_public_id, category_id, active, created_at)
		VALUES (:name, :slug, :description, :price_cents, :image_url, :image_public_id, :category_id, :active, :created_at)`
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("product %q: %w", p.Slug, ErrDuplicate)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new product id: %w", err)
	}
	p.ID = id
	return nil
}

// GetProductBySlug returns one product or ErrNotFound.
func (r *SQLProductRepository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var p Product
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.slug = ?`
	if err := r.db.GetContext(ctx, &p, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %q: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListActiveProducts returns active products, newest first. A non-empty
// categorySlug restricts the list to that category.
func (r *SQLProductRepository) ListActiveProducts(ctx context.Context, categorySlug string, limit int) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p`
	args := []interface{}{}
	if categorySlug != "" {
		query += ` JOIN categories c ON c.id = p.category_id WHERE p.active = ? AND c.slug = ?`
		args = append(args, true, categorySlug)
	} else {
		query += ` WHERE p.active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	products := []*Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}
