package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Errors carry a single `detail` message; success bodies are returned as-is.
// Token-related failures must go through LinkInvalid so that callers cannot
// distinguish unknown, expired, revoked and already-used links.

const linkInvalidDetail = "link invalid or expired"

// OK sends a 200 response.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": detail})
}

// LinkInvalid sends the generic 403 used for every token failure.
func LinkInvalid(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": linkInvalidDetail})
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": detail})
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": detail})
}

// InternalError sends a 500 error response without echoing the cause.
func InternalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}
