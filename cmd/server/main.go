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

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"evolv/internal/config"
	"evolv/internal/database"
	"evolv/internal/handlers"
	"evolv/internal/jobs"
	"evolv/internal/middleware"
	"evolv/internal/models"
	"evolv/internal/repository"
	"evolv/internal/supabase"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("Server stopped")
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("log_level", cfg.LogLevel).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	artworks, users, err := loadSeed(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, artworks)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := newResultStore(cfg)
	if err != nil {
		return err
	}

	jobService := jobs.NewService(store, results,
		jobs.WithProcessingTime(cfg.JobProcessingTime),
		jobs.WithRetention(cfg.JobRetention),
	)

	router := handlers.NewRouter(handlers.RouterConfig{
		JWTSecret: cfg.SupabaseJWTSecret,
		Artworks:  store,
		Jobs:      jobService,
		Users:     repository.NewUserDirectory(users),
		Limiter:   middleware.NewSubmitLimiter(cfg.SubmitRatePerMin, cfg.SubmitBurst),
		Logger:    logrus.WithField("component", "http"),
	})

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"port":         cfg.Port,
			"environment":  cfg.Environment,
			"result_store": cfg.ResultStore,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return jobService.Run(gctx, sweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadSeed(cfg *config.Config) ([]models.Artwork, []models.User, error) {
	if cfg.SeedFile == "" {
		return repository.DefaultSeed(), repository.DefaultUsers(), nil
	}
	artworks, users, err := repository.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"seed_file": cfg.SeedFile,
		"artworks":  len(artworks),
		"users":     len(users),
	}).Info("Loaded seed file")
	return artworks, users, nil
}

// openStore uses Postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func openStore(ctx context.Context, cfg *config.Config, seed []models.Artwork) (repository.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logrus.Warn("DATABASE_URL not set, using in-memory artwork store")
		return repository.NewMemoryStore(seed), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	if err := database.NewMigrator(db).Run(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logrus.Info("Migrations completed successfully")

	store := database.NewStore(db)
	if err := store.Seed(ctx, seed); err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}

func newResultStore(cfg *config.Config) (jobs.ResultStore, error) {
	switch cfg.ResultStore {
	case config.ResultStoreSupabase:
		return supabase.NewResultStore(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket), nil
	case config.ResultStorePlaceholder:
		return jobs.PlaceholderResults{}, nil
	}
	return nil, fmt.Errorf("unknown result store %q", cfg.ResultStore)
}
