// Package server assembles the HTTP router.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pollsite/backend/config"
	"github.com/pollsite/backend/internal/auth"
	"github.com/pollsite/backend/internal/middleware"
	"github.com/pollsite/backend/internal/polls"
	"github.com/pollsite/backend/internal/questions"
	"github.com/pollsite/backend/internal/sessions"
	"github.com/pollsite/backend/internal/web"
	"github.com/pollsite/backend/pkg/response"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Questions questions.Repository
	Users     auth.Repository
	Sessions  *sessions.Manager
	Limiter   *auth.LoginLimiter
	Logger    *zap.Logger
	// Health is called by GET /health; nil reports healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) (*gin.Engine, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		web.ServerError(c)
		c.Abort()
	}))
	router.Use(middleware.CORS(d.Config.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	// Health and metrics bypass sessions.
	router.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				response.ServiceUnavailable(c, "unhealthy")
				return
			}
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := auth.NewHandler(d.Users, d.Sessions, d.Limiter, d.Config.Auth.LoginRedirectURL, logger)
	pollHandler := polls.NewHandler(d.Questions, d.Config.Polls.IndexLimit, logger)
	questionHandler := questions.NewHandler(d.Questions, d.Config.Polls.IndexLimit, logger)

	site := router.Group("")
	site.Use(d.Sessions.Middleware(), middleware.CurrentUser(d.Users, logger))
	{
		// Public pages
		site.GET("/", pollHandler.Index)
		site.GET("/:id/", pollHandler.Detail)
		site.GET("/:id/results/", pollHandler.Results)
		site.POST("/:id/vote/", pollHandler.Vote)

		// Auth
		site.GET("/accounts/login/", authHandler.ShowLogin)
		site.POST("/accounts/login/", authHandler.Login)
		site.GET("/logout/", authHandler.Logout)
		site.POST("/logout/", authHandler.Logout)

		// JSON API
		api := site.Group("/api")
		api.GET("/questions", questionHandler.List)
		api.GET("/questions/:id", questionHandler.Get)

		staff := api.Group("", middleware.RequireStaff())
		staff.GET("/admin/questions", questionHandler.AdminList)
		staff.POST("/questions", questionHandler.Create)
		staff.POST("/questions/:id/choices", questionHandler.AddChoice)
		staff.DELETE("/questions/:id", questionHandler.Delete)
		staff.PATCH("/choices/:id", questionHandler.SetVotes)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			response.NotFound(c, "not found")
			return
		}
		web.NotFound(c)
	})
	return router, nil
}
