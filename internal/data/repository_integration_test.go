//go:build integration

package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"go-storefront/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a new in-memory SQLite database with every sqlite3
// migration applied. The database is closed when the test ends.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	// Use a non-shared in-memory database for complete test isolation.
	db, err := NewDB(config.DBConfig{Driver: "sqlite3", DSN: "file::memory:"})
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := filepath.Glob("../../migrations/sqlite3/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)
	for _, f := range files {
		schema, err := os.ReadFile(f)
		require.NoError(t, err)
		db.MustExec(string(schema))
	}
	return db
}

func TestPageRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLPageRepository(setupTestDB(t))

	home := &Page{Title: "Home", Slug: "home", Published: true, Content: `{"blocks":[]}`}
	require.NoError(t, repo.CreatePage(ctx, home))
	require.NotZero(t, home.ID)

	draft := &Page{Title: "Draft", Slug: "draft", Content: `{"blocks":[]}`}
	require.NoError(t, repo.CreatePage(ctx, draft))

	t.Run("duplicate slug", func(t *testing.T) {
		err := repo.CreatePage(ctx, &Page{Title: "Other", Slug: "home", Content: "{}"})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

		err = repo.CreatePage(ctx, &Page{Title: "Other", Slug: "HOME", Content: "{}"})
		assert.True(t, errors.Is(err, ErrDuplicate), "slugs differing in case must collide, got %v", err)

		taken, err := repo.SlugTaken(ctx, "Home", 0)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("publish gating", func(t *testing.T) {
		_, err := repo.GetPageBySlug(ctx, "draft", true)
		assert.True(t, errors.Is(err, ErrNotFound))

		got, err := repo.GetPageByID(ctx, draft.ID)
		require.NoError(t, err)
		assert.False(t, got.Published)

		got.Published = true
		require.NoError(t, repo.UpdatePage(ctx, got))
		public, err := repo.GetPageBySlug(ctx, "draft", true)
		require.NoError(t, err)
		assert.Equal(t, got.Title, public.Title)
		assert.Equal(t, got.Content, public.Content)
	})

	t.Run("slug taken excludes self", func(t *testing.T) {
		taken, err := repo.SlugTaken(ctx, "home", home.ID)
		require.NoError(t, err)
		assert.False(t, taken)

		taken, err = repo.SlugTaken(ctx, "home", draft.ID)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("update to a taken slug", func(t *testing.T) {
		got, err := repo.GetPageByID(ctx, draft.ID)
		require.NoError(t, err)
		got.Slug = "home"
		assert.True(t, errors.Is(repo.UpdatePage(ctx, got), ErrDuplicate))
	})

	t.Run("list newest first", func(t *testing.T) {
		time.Sleep(5 * time.Millisecond)
		got, err := repo.GetPageByID(ctx, home.ID)
		require.NoError(t, err)
		got.Title = "Home v2"
		require.NoError(t, repo.UpdatePage(ctx, got))

		pages, err := repo.ListPages(ctx, PageFilter{})
		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Equal(t, home.ID, pages[0].ID)

		unpublished := false
		pages, err = repo.ListPages(ctx, PageFilter{Published: &unpublished})
		require.NoError(t, err)
		assert.Empty(t, pages)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeletePage(ctx, draft.ID))
		assert.True(t, errors.Is(repo.DeletePage(ctx, draft.ID), ErrNotFound))
		_, err := repo.GetPageByID(ctx, draft.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestCatalogRepositories_Integration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	categories := NewCategoryRepository(db)
	products := NewSQLProductRepository(db)

	fashionID, err := categories.Save(ctx, &Category{Name: "Fashion", Slug: "fashion"})
	require.NoError(t, err)
	_, err = categories.Save(ctx, &Category{Name: "Home", Slug: "home-goods"})
	require.NoError(t, err)

	_, err = categories.Save(ctx, &Category{Name: "Fashion again", Slug: "fashion"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	found, err := categories.FindBySlug(ctx, "fashion")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, fashionID, found.ID)

	missing, err := categories.FindBySlug(ctx, "toys")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := categories.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range []*Product{
		{Name: "Shirt", Slug: "shirt", PriceCents: 2999, CategoryID: &fashionID, Active: true},
		{Name: "Scarf", Slug: "scarf", PriceCents: 1999, CategoryID: &fashionID, Active: false},
		{Name: "Lamp", Slug: "lamp", PriceCents: 4999, Active: true},
		{Name: "Jacket", Slug: "jacket", PriceCents: 8999, CategoryID: &fashionID, Active: true},
	} {
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, products.CreateProduct(ctx, p))
	}

	list, err := products.ListActiveProducts(ctx, "fashion", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Jacket", list[0].Name)
	assert.Equal(t, "Shirt", list[1].Name)

	list, err = products.ListActiveProducts(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Jacket", list[0].Name)
	assert.Equal(t, "Lamp", list[1].Name)

	p, err := products.GetProductBySlug(ctx, "lamp")
	require.NoError(t, err)
	assert.Nil(t, p.CategoryID)
	_, err = products.GetProductBySlug(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	users := NewSQLUserRepository(setupTestDB(t))

	u := &User{Email: "admin@example.com", Name: "Admin", PasswordHash: "x", Role: "ADMIN"}
	require.NoError(t, users.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)

	assert.True(t, errors.Is(users.CreateUser(ctx, &User{Email: "admin@example.com", Role: "STAFF"}), ErrDuplicate))

	got, err := users.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", got.Role)

	_, err = users.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, ErrNotFound))
}
