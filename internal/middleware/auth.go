package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/justinchung712/swe-repo-notify/internal/pkg/jwt"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/response"
)

const ContextKeyAdmin = "admin_subject"

// Auth returns a middleware that enforces admin JWT authentication.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validate(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyAdmin, claims.Subject)
		c.Next()
	}
}

// CurrentAdmin extracts the authenticated admin subject from context.
func CurrentAdmin(c *gin.Context) string {
	v, _ := c.Get(ContextKeyAdmin)
	s, _ := v.(string)
	return s
}

func validate(raw string) (*jwt.Claims, error) {
	if raw == "" {
		return nil, errors.New("token is required")
	}
	return jwt.Parse(raw)
}

func extractToken(c *gin.Context) string {
	return normalizeToken(c.GetHeader("Authorization"))
}

// normalizeToken trims spaces and strips an optional Bearer prefix.
func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
