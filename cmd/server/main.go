package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-storefront/internal/auth"
	"go-storefront/internal/block"
	"go-storefront/internal/cache"
	"go-storefront/internal/config"
	"go-storefront/internal/data"
	"go-storefront/internal/handler"
	"go-storefront/internal/logger"
	"go-storefront/internal/media"
	"go-storefront/internal/middleware"
	"go-storefront/internal/render"
	"go-storefront/internal/service"
	"go-storefront/internal/session"
	"go-storefront/internal/view"
	"go-storefront/web"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log, os.Stdout)

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	if err := data.ApplyMigrations(cfg.DB); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info("Migrations applied successfully.")

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Session Management Setup ---
	sessionManager := session.New(cfg.Session, cfg.DB.Driver, db, cfg.Server.TLS.Enabled)

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	enforcer, err := auth.NewEnforcer(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err, "Failed to initialize enforcer")
	}
	auth.SeedDefaultPolicies(enforcer, log)

	// A nil *Authenticator must not end up inside the interface.
	var oidcAuth handler.OIDCAuthenticator
	if cfg.OIDC.Enabled() {
		authenticator, err := auth.NewAuthenticator(context.Background(), cfg.OIDC)
		if err != nil {
			log.Fatal(err, "Failed to initialize authenticator")
		}
		oidcAuth = authenticator
	} else {
		log.Info("OIDC issuer not configured, single sign-on disabled.")
	}

	userRepository := data.NewSQLUserRepository(db)
	credentials := auth.NewCredentials(userRepository)
	log.Info("Auth components initialized and policies seeded.")

	// --- View Template Initialization ---
	viewService, err := view.New(web.TemplateFS, cfg.Site.Name)
	if err != nil {
		log.Fatal(err, "Failed to initialize view templates")
	}

	// --- Cache Initialization ---
	log.Info("Initializing SQLite cache...")
	pageCache, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer pageCache.Close()
	scheduler, err := pageCache.StartPurger(cfg.Cache.PurgeSchedule, log)
	if err != nil {
		log.Fatal(err, "Failed to schedule cache purge")
	}
	defer scheduler.Stop()
	log.Info("Cache initialized.")

	// --- Block Rendering ---
	registry := block.DefaultRegistry()
	productRepository := data.NewSQLProductRepository(db)
	catalog := service.NewCatalogService(productRepository, log)
	renderer, err := render.New(registry, web.TemplateFS, catalog, log)
	if err != nil {
		log.Fatal(err, "Failed to initialize block renderer")
	}

	// --- Media Storage ---
	var mediaStore media.Store
	if cfg.Media.CloudinaryURL != "" {
		store, err := media.NewCloudinaryStore(cfg.Media)
		if err != nil {
			log.Fatal(err, "Failed to initialize media store")
		}
		mediaStore = store
	} else {
		log.Info("Cloudinary not configured, image uploads disabled.")
	}

	// --- Dependency Injection and Handler Initialization ---
	pageRepository := data.NewSQLPageRepository(db)
	categoryRepository := data.NewCategoryRepository(db)
	pageService := service.NewPageService(pageRepository, registry, pageCache, cfg.Cache.TTL, log)

	handlers := handler.Handlers{
		Page:    handler.NewPageHandler(pageService, renderer, viewService, cfg.Site.HomeSlug, log),
		Admin:   handler.NewAdminHandler(pageService, sessionManager, viewService, log),
		Builder: handler.NewBuilderHandler(pageService, registry, renderer, mediaStore, sessionManager, viewService, cfg.Media.MaxUploadMB, log),
		API:     handler.NewAPIHandler(pageService, registry, categoryRepository, log),
		Auth:    handler.NewAuthHandler(oidcAuth, credentials, userRepository, sessionManager, viewService, log),
		Media:   handler.NewMediaHandler(mediaStore, cfg.Media.MaxUploadMB, log),
		Seo:     handler.NewSeoHandler(pageService, cfg.Server.BaseURL, cfg.Site.HomeSlug),
	}

	authzMiddleware := middleware.Authorizer(enforcer, sessionManager, log)
	errorMiddleware := middleware.Error(log, viewService)
	loginLimiter := middleware.NewRateLimiter(cfg.Auth.LoginPerMinute, cfg.Auth.LoginBurst, log)
	if _, err := scheduler.AddFunc("@every 5m", func() { loginLimiter.Cleanup(15 * time.Minute) }); err != nil {
		log.Fatal(err, "Failed to schedule rate limiter cleanup")
	}

	// --- Router Setup ---
	router := handler.NewRouter(handlers, sessionManager, authzMiddleware, errorMiddleware, loginLimiter)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}
