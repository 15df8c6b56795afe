package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinchung712/swe-repo-notify/internal/config"
	"github.com/justinchung712/swe-repo-notify/internal/database"
	"github.com/justinchung712/swe-repo-notify/internal/middleware"
	pkgcron "github.com/justinchung712/swe-repo-notify/internal/pkg/cron"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/deliverq"
	jwtpkg "github.com/justinchung712/swe-repo-notify/internal/pkg/jwt"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/mail"
	pkgredis "github.com/justinchung712/swe-repo-notify/internal/pkg/redis"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/sms"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → routes → workers.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())

	queue := deliverq.NewQueue(rc)
	worker := deliverq.NewWorker(queue, mail.New(cfg.Mail), sms.New(cfg.SMS), logger.Named("deliver"))
	go worker.Run(ctx)

	sched := pkgcron.New()

	app := &App{cfg: cfg, router: router, db: db, rc: rc, logger: logger, cancel: cancel, sched: sched}
	app.registerRoutes(queue)
	app.registerCronJobs()
	go sched.Start(ctx)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines and connections.
func (a *App) Shutdown() {
	a.cancel()
	if a.rc != nil {
		_ = a.rc.Close()
	}
}
