package app

import (
	"github.com/gin-gonic/gin"

	"github.com/justinchung712/swe-repo-notify/internal/middleware"
	"github.com/justinchung712/swe-repo-notify/internal/modules/admin"
	"github.com/justinchung712/swe-repo-notify/internal/modules/dispatch"
	"github.com/justinchung712/swe-repo-notify/internal/modules/identity"
	"github.com/justinchung712/swe-repo-notify/internal/modules/preference"
	"github.com/justinchung712/swe-repo-notify/internal/modules/subscription"
	"github.com/justinchung712/swe-repo-notify/internal/modules/token"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/deliverq"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/response"
)

func (a *App) registerRoutes(queue *deliverq.Queue) {
	r := a.router
	db := a.db
	logger := a.logger

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.NotFound(c, "not found")
	})

	r.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"ok": true})
	})

	identitySvc := identity.NewService(db, logger.Named("identity"))
	prefSvc := preference.NewService(db)
	tokenSvc := token.NewService(db)

	subSvc := subscription.NewService(db, identitySvc, prefSvc, tokenSvc, queue, a.cfg.BaseURL, logger.Named("subscription"))
	subscription.NewHandler(subSvc, logger.Named("subscription")).RegisterRoutes(&r.RouterGroup)

	dispatchSvc := dispatch.NewService(db, tokenSvc, queue, a.cfg.BaseURL, logger.Named("dispatch"))
	admin.NewHandler(db, dispatchSvc, a.cfg.Admin, logger.Named("admin")).
		RegisterRoutes(&r.RouterGroup, middleware.Auth())
}
