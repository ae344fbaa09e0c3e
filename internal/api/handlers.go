// Package api contains the HTTP API handlers for the health log.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/healthlog/healthlog/internal/auth"
	"github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/models"
)

// Handler carries the cross-cutting middleware and the health endpoint.
type Handler struct {
	db         *gorm.DB
	jwtService *auth.JWTService
	log        *zap.Logger
}

// NewHandler creates the base API handler.
func NewHandler(db *gorm.DB, jwtService *auth.JWTService, log *zap.Logger) *Handler {
	return &Handler{db: db, jwtService: jwtService, log: log}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// AuthMiddleware validates the bearer token and stores the caller's
// identity on the request context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respondError(c, errors.NewUnauthorizedError("missing bearer token"))
			c.Abort()
			return
		}

		claims, err := h.jwtService.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondError(c, errors.NewUnauthorizedError("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// RequireAdminMiddleware rejects callers without the ADMIN role.
func (h *Handler) RequireAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get("user_role"); role != models.RoleAdmin {
			respondError(c, errors.NewPermissionDeniedError())
			c.Abort()
			return
		}
		c.Next()
	}
}

// Health is the liveness endpoint.
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func respondError(c *gin.Context, err error) {
	status, body := errors.ToHTTPError(err)
	c.JSON(status, body)
}

func currentUserID(c *gin.Context) int64 {
	return c.MustGet("user_id").(int64)
}

// parseDateParam reads a yyyy-mm-dd query parameter.
func parseDateParam(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, errors.NewValidationError(name, name+" is required")
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.NewValidationError(name, "must be a date in the form "+models.DateLayout)
	}
	return t, nil
}
