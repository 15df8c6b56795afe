package admin

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/justinchung712/swe-repo-notify/internal/config"
	"github.com/justinchung712/swe-repo-notify/internal/models"
	"github.com/justinchung712/swe-repo-notify/internal/modules/dispatch"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/jwt"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/response"
)

const sessionTTL = 12 * time.Hour

// Handler exposes the operator surface: login, subscriber listing and
// posting-batch dispatch. Everything except login sits behind the auth
// middleware.
type Handler struct {
	db       *gorm.DB
	dispatch *dispatch.Service
	admin    config.AdminConfig
	logger   *zap.Logger
}

func NewHandler(db *gorm.DB, dispatchSvc *dispatch.Service, admin config.AdminConfig, logger *zap.Logger) *Handler {
	return &Handler{db: db, dispatch: dispatchSvc, admin: admin, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/admin")
	g.POST("/login", h.login)
	g.GET("/subscribers", authMW, h.listSubscribers)
	g.POST("/dispatch", authMW, h.runDispatch)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if h.admin.Username == "" || h.admin.PasswordHash == "" {
		response.Forbidden(c, "admin access is not configured")
		return
	}
	if dto.Username != h.admin.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(dto.Password)) != nil {
		// Same timing-insensitive answer for bad user and bad password.
		response.Unauthorized(c)
		return
	}

	token, err := jwt.Sign(dto.Username, sessionTTL)
	if err != nil {
		h.logger.Error("admin token signing failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, loginResponse{Token: token})
}

func (h *Handler) listSubscribers(c *gin.Context) {
	var subs []models.SubscriberModel
	if err := h.db.Order("created_at DESC").Find(&subs).Error; err != nil {
		h.logger.Error("subscriber listing failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"data": subs})
}

func (h *Handler) runDispatch(c *gin.Context) {
	var dto DispatchDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	label := dto.Label
	if label == "" {
		label = string(dto.Repo)
	}
	stats, err := h.dispatch.Run(c.Request.Context(), dto.Repo, label, dto.Postings)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownRepo) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("dispatch run failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}
