// Package api - Router setup
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/healthlog/healthlog/internal/config"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(cfg *config.Config, handler *Handler, authHandler *AuthHandler, fieldHandler *FieldHandler, recordHandler *RecordHandler, reportHandler *ReportHandler) *gin.Engine {
	r := gin.Default()

	// When credentials are used, specific origins must be provided (not *).
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check (no auth required)
	r.GET("/api/health", handler.Health)

	// ==========================================================================
	// AUTH - account lifecycle (no auth required)
	// ==========================================================================
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.RefreshToken)
		authRoutes.GET("/verify-email", authHandler.VerifyEmail)
	}

	authProtected := r.Group("/auth")
	authProtected.Use(handler.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
		authProtected.POST("/change-password", authHandler.ChangePassword)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// ==========================================================================
	// ADMIN - field catalog management, ADMIN role required
	// ==========================================================================
	admin := r.Group("/admin")
	admin.Use(handler.AuthMiddleware())
	admin.Use(handler.RequireAdminMiddleware())
	{
		admin.GET("/fields", fieldHandler.ListAll)
		admin.POST("/fields", fieldHandler.Create)
		admin.GET("/fields/:id", fieldHandler.Get)
		admin.PUT("/fields/:id", fieldHandler.Update)
		admin.DELETE("/fields/:id", fieldHandler.Delete)
	}

	// ==========================================================================
	// API - per-user records and reports
	// ==========================================================================
	api := r.Group("/api")
	api.Use(handler.AuthMiddleware())
	{
		api.GET("/fields", fieldHandler.ListActive)

		records := api.Group("/records")
		{
			records.GET("", recordHandler.List)
			records.POST("/search", recordHandler.Search)
			records.GET("/export", recordHandler.Export)
			records.GET("/:date", recordHandler.GetByDate)
			records.PUT("/:date", recordHandler.Save)
			records.DELETE("/:date", recordHandler.Delete)
		}

		reports := api.Group("/reports")
		{
			reports.GET("/number", reportHandler.Number)
			reports.GET("/number/export", reportHandler.ExportNumber)
			reports.GET("/trend", reportHandler.Trend)
			reports.GET("/enum/distribution", reportHandler.EnumDistribution)
			reports.GET("/enum/trend", reportHandler.EnumTrend)
			reports.GET("/text", reportHandler.Text)
		}
	}

	return r
}
