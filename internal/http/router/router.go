package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/config"
	"github.com/ignatzorin/civic-intake/internal/http/handlers"
	"github.com/ignatzorin/civic-intake/internal/http/middleware"
)

func SetupRouter(
	cfg *config.Config,
	log logrus.FieldLogger,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))

	r.GET("/health", healthHandler.Health)

	// Cloud API настраивается либо на корень, либо на /webhook
	webhookLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	for _, path := range []string{"/", "/webhook"} {
		r.GET(path, webhookLimit, webhookHandler.Verify)
		r.POST(path, webhookLimit, webhookHandler.Receive)
	}

	return r
}
