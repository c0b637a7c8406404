package handlers

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"zerodb/auth"
	"zerodb/errs"
	"zerodb/middleware"
	"zerodb/registry"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Registry      *registry.Registry
	Authenticator auth.Authenticator
	// AdminKey enables /v1/admin when non-empty; otherwise those paths answer 404.
	AdminKey string
	// Pingers are checked by /ready.
	Pingers []Pinger
	Logger  zerolog.Logger
}

var registerFieldNames sync.Once

// NewRouter builds the gin engine with the error responder installed
// ahead of every route, including the 404 and 405 fallbacks.
func NewRouter(cfg RouterConfig) *gin.Engine {
	registerFieldNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(errs.FieldName)
		}
	})

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.RequestLogger(cfg.Logger),
		middleware.Recovery(cfg.Logger),
		middleware.ErrorHandler(cfg.Logger),
	)

	r.NoRoute(func(c *gin.Context) {
		fail(c, errs.NotFound(""))
	})
	r.NoMethod(func(c *gin.Context) {
		fail(c, errs.MethodNotAllowed())
	})

	r.GET("/health", HealthCheck)
	r.GET("/ready", ReadinessCheck(cfg.Pingers...))

	public := r.Group("/v1/public", middleware.APIKeyAuth(cfg.Authenticator))
	{
		public.POST("/projects", CreateProject(cfg.Registry))
		public.GET("/projects", ListProjects(cfg.Registry))
		public.GET("/projects/:id", GetProject(cfg.Registry))
		public.DELETE("/projects/:id", DeleteProject(cfg.Registry))
	}

	// Without an admin key the admin routes are not registered, so every
	// method on them falls through to NoRoute.
	if cfg.AdminKey != "" {
		admin := r.Group("/v1/admin", middleware.AdminKeyAuth(cfg.AdminKey))
		{
			admin.POST("/projects/:id/status", ChangeStatus(cfg.Registry))
		}
	}

	return r
}
