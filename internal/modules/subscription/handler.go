package subscription

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/justinchung712/swe-repo-notify/internal/modules/identity"
	"github.com/justinchung712/swe-repo-notify/internal/modules/preference"
	"github.com/justinchung712/swe-repo-notify/internal/modules/token"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/response"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscribe", h.subscribe)
	rg.POST("/request-edit-link", h.requestEditLink)
	rg.POST("/update-prefs", h.updatePrefs)
	rg.POST("/unsubscribe/confirm", h.unsubscribeConfirm)
	rg.GET("/verify", h.verify) // ?token=...
}

func (h *Handler) subscribe(c *gin.Context) {
	var dto SubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	status, warnings, err := h.svc.Subscribe(c.Request.Context(), dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"status": status}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	response.OK(c, body)
}

func (h *Handler) requestEditLink(c *gin.Context) {
	var dto RequestEditLinkDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.RequestEditLink(c.Request.Context(), dto); err != nil {
		h.fail(c, err)
		return
	}
	// Always succeeds for well-formed input, registered contact or not.
	response.OK(c, gin.H{})
}

func (h *Handler) updatePrefs(c *gin.Context) {
	var dto UpdatePrefsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	warnings, err := h.svc.UpdatePrefs(c.Request.Context(), dto.Token, dto.PrefsDTO)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	response.OK(c, body)
}

func (h *Handler) unsubscribeConfirm(c *gin.Context) {
	var dto UnsubscribeConfirmDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.UnsubscribeConfirm(c.Request.Context(), dto); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{})
}

func (h *Handler) verify(c *gin.Context) {
	if err := h.svc.Verify(c.Request.Context(), c.Query("token")); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"status": "verified"})
}

// fail maps service errors onto the wire contract. Every token failure
// collapses to the same generic response so callers cannot distinguish
// unknown, expired, superseded and already-used links.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, token.ErrTokenNotFound),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenUsed),
		errors.Is(err, token.ErrTokenRevoked),
		errors.Is(err, token.ErrTokenPurpose):
		response.LinkInvalid(c)
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, preference.ErrValidation),
		errors.Is(err, ErrNoChannel):
		response.BadRequest(c, err.Error())
	case errors.Is(err, identity.ErrConflict):
		response.Conflict(c, "please retry")
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.InternalError(c)
	}
}
