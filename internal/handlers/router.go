package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"evolv/internal/middleware"
	"evolv/internal/repository"
)

// RouterConfig carries everything the API routes depend on.
type RouterConfig struct {
	JWTSecret string
	Artworks  repository.Reader
	Jobs      JobService
	Users     *repository.UserDirectory
	Limiter   *middleware.SubmitLimiter
	Logger    *logrus.Entry
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.WithField("component", "http")
	}
	if cfg.Users == nil {
		cfg.Users = repository.NewUserDirectory(nil)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = middleware.NewSubmitLimiter(0, 0)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger))

	// Health check (no auth)
	router.GET("/health", HealthHandler)
	router.GET("/api/placeholder/:width/:height", PlaceholderImage)

	artworks := NewArtworksHandler(cfg.Artworks)
	evolutions := NewEvolutionsHandler(cfg.Jobs)
	users := NewUsersHandler(cfg.Users)

	public := router.Group("/api/v1")
	public.Use(middleware.OptionalAuth(cfg.JWTSecret))
	public.GET("/artworks", artworks.List)
	public.GET("/artworks/:artwork_id", artworks.Get)
	public.GET("/users/:user_id/artworks", artworks.ListByOwner)
	public.GET("/jobs/:job_id", evolutions.GetJob)
	public.GET("/me", users.Me)

	authed := router.Group("/api/v1")
	authed.Use(middleware.AuthMiddleware(cfg.JWTSecret), cfg.Limiter.Middleware())
	authed.POST("/evolutions", evolutions.Submit)

	return router
}
