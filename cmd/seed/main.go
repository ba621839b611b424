// Command seed loads an admin account, catalog data and starter pages
// from a YAML file. Rows that already exist are left untouched, so the
// command can be run repeatedly.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"go-storefront/internal/auth"
	"go-storefront/internal/block"
	"go-storefront/internal/config"
	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/service"
)

type seedFile struct {
	Admin struct {
		Email    string `yaml:"email"`
		Name     string `yaml:"name"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Categories []data.Category `yaml:"categories"`
	Products   []seedProduct   `yaml:"products"`
	Pages      []seedPage      `yaml:"pages"`
}

type seedProduct struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	PriceCents  int64  `yaml:"price_cents"`
	ImageURL    string `yaml:"image_url"`
	Category    string `yaml:"category"`
}

type seedPage struct {
	Title     string      `yaml:"title"`
	Slug      string      `yaml:"slug"`
	Published bool        `yaml:"published"`
	Blocks    []seedBlock `yaml:"blocks"`
}

type seedBlock struct {
	Type    string                 `yaml:"type"`
	Content map[string]interface{} `yaml:"content"`
}

func main() {
	path := flag.String("file", "seed.yml", "seed file to load")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log, os.Stdout)

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal(err, "Failed to read seed file")
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		log.Fatal(err, "Failed to parse seed file")
	}

	if err := data.ApplyMigrations(cfg.DB); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	db, err := data.NewDB(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	s := &seeder{
		log:        log,
		users:      data.NewSQLUserRepository(db),
		categories: data.NewCategoryRepository(db),
		products:   data.NewSQLProductRepository(db),
		pages:      service.NewPageService(data.NewSQLPageRepository(db), block.DefaultRegistry(), nil, 0, log),
	}
	if err := s.run(ctx, &seed); err != nil {
		log.Fatal(err, "Seeding failed")
	}
	log.Info("Seeding complete.")
}

type seeder struct {
	log        logger.Logger
	users      *data.SQLUserRepository
	categories *data.CategoryRepository
	products   *data.SQLProductRepository
	pages      *service.PageService
}

func (s *seeder) run(ctx context.Context, seed *seedFile) error {
	admin, err := s.seedAdmin(ctx, seed)
	if err != nil {
		return err
	}
	categoryIDs, err := s.seedCategories(ctx, seed.Categories)
	if err != nil {
		return err
	}
	if err := s.seedProducts(ctx, seed.Products, categoryIDs); err != nil {
		return err
	}
	// Pages are created through the service so blocks get the same checks
	// as editor saves.
	return s.seedPages(auth.WithIdentity(ctx, admin), seed.Pages)
}

func (s *seeder) seedAdmin(ctx context.Context, seed *seedFile) (auth.Identity, error) {
	a := seed.Admin
	if a.Email == "" {
		return auth.Identity{}, errors.New("admin.email is required")
	}
	existing, err := s.users.GetUserByEmail(ctx, a.Email)
	if err == nil {
		s.log.Info("admin user exists: " + a.Email)
		return auth.Identity{ID: existing.ID, Email: existing.Email, Name: existing.Name, Role: auth.ParseRole(existing.Role)}, nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		return auth.Identity{}, err
	}
	if a.Password == "" {
		return auth.Identity{}, errors.New("admin.password is required for a new admin")
	}
	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return auth.Identity{}, err
	}
	u := &data.User{Email: a.Email, Name: a.Name, PasswordHash: hash, Role: string(auth.RoleAdmin)}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return auth.Identity{}, err
	}
	s.log.Info("created admin user: " + a.Email)
	return auth.Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: auth.RoleAdmin}, nil
}

func (s *seeder) seedCategories(ctx context.Context, categories []data.Category) (map[string]int64, error) {
	ids := make(map[string]int64, len(categories))
	for i := range categories {
		c := categories[i]
		existing, err := s.categories.FindBySlug(ctx, c.Slug)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			ids[c.Slug] = existing.ID
			continue
		}
		id, err := s.categories.Save(ctx, &c)
		if err != nil {
			return nil, err
		}
		ids[c.Slug] = id
		s.log.Info("created category: " + c.Slug)
	}
	return ids, nil
}

func (s *seeder) seedProducts(ctx context.Context, products []seedProduct, categoryIDs map[string]int64) error {
	for _, sp := range products {
		if _, err := s.products.GetProductBySlug(ctx, sp.Slug); err == nil {
			continue
		} else if !errors.Is(err, data.ErrNotFound) {
			return err
		}
		p := &data.Product{
			Name:        sp.Name,
			Slug:        sp.Slug,
			Description: sp.Description,
			PriceCents:  sp.PriceCents,
			ImageURL:    sp.ImageURL,
			Active:      true,
		}
		if sp.Category != "" {
			id, ok := categoryIDs[sp.Category]
			if !ok {
				return fmt.Errorf("product %q: unknown category %q", sp.Slug, sp.Category)
			}
			p.CategoryID = &id
		}
		if err := s.products.CreateProduct(ctx, p); err != nil {
			return err
		}
		s.log.Info("created product: " + sp.Slug)
	}
	return nil
}

func (s *seeder) seedPages(ctx context.Context, pages []seedPage) error {
	for _, sp := range pages {
		blocks := make([]block.Block, 0, len(sp.Blocks))
		for _, sb := range sp.Blocks {
			content, err := json.Marshal(sb.Content)
			if err != nil {
				return fmt.Errorf("page %q: %w", sp.Slug, err)
			}
			blocks = append(blocks, block.Block{Type: block.Type(sb.Type), Content: content})
		}
		_, err := s.pages.CreatePage(ctx, service.NewPage{
			Title:     sp.Title,
			Slug:      sp.Slug,
			Published: sp.Published,
			Blocks:    blocks,
		})
		switch {
		case err == nil:
			s.log.Info("created page: " + sp.Slug)
		case errors.Is(err, service.ErrConflict):
			s.log.Info("page exists: " + sp.Slug)
		default:
			return fmt.Errorf("page %q: %w", sp.Slug, err)
		}
	}
	return nil
}
