package data

import (
	"time"
)

// Page is one storefront page. Content holds the serialized block
// document, {"blocks":[...]}.
type Page struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	Published bool      `db:"published" json:"published"`
	Content   string    `db:"content" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PageFilter narrows a page listing. A nil Published means any state.
type PageFilter struct {
	Published *bool
	Limit     int
}

// Category groups products.
type Category struct {
	ID       int64  `db:"id" json:"id" yaml:"-"`
	Name     string `db:"name" json:"name" yaml:"name"`
	Slug     string `db:"slug" json:"slug" yaml:"slug"`
	ParentID *int64 `db:"parent_id" json:"parentId,omitempty" yaml:"-"`
}

// Product is a catalog item.
type Product struct {
	ID            int64     `db:"id"`
	Name          string    `db:"name"`
	Slug          string    `db:"slug"`
	Description   string    `db:"description"`
	PriceCents    int64     `db:"price_cents"`
	ImageURL      string    `db:"image_url"`
	ImagePublicID string    `db:"image_public_id"`
	CategoryID    *int64    `db:"category_id"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
}

// User is an account allowed to sign in.
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}
