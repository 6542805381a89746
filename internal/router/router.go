// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/handlers"
	"github.com/tonytran1984vn/trustchecker/internal/middleware"
	"github.com/tonytran1984vn/trustchecker/internal/services"
	"github.com/tonytran1984vn/trustchecker/internal/utils"
)

func Initialize(db *gorm.DB, bus *events.Bus, cfg *config.Config) *gin.Engine {
	// Initialize services
	storageService, _ := services.NewStorageService(cfg)
	sealService := services.NewSealService(services.NewSealStore(db), bus, cfg.Seal)
	fraudService := services.NewFraudService(db, bus, cfg.Fraud)
	trustService := services.NewTrustService(db, bus)
	verificationService := services.NewVerificationService(db, bus, fraudService, trustService, sealService, storageService)
	codeService := services.NewCodeService(db)
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(db, cfg)

	// Notification listener runs for the lifetime of the process.
	go notificationService.Listen(bus)

	// Initialize handlers
	verificationHandler := handlers.NewVerificationHandler(verificationService, sealService)
	auditHandler := handlers.NewAuditHandler(auditService, sealService, trustService, bus)
	codeHandler := handlers.NewCodeHandler(codeService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Public verification routes
		verify := v1.Group("/verify")
		verify.Use(middleware.ScanRateLimit())
		{
			verify.POST("", verificationHandler.VerifyScan)
			verify.POST("/mobile", verificationHandler.MobileScan)
			verify.GET("/chain", middleware.AuthRequired(), verificationHandler.VerifyChainIntegrity)
		}

		// Public product check (freemium lookup, tighter rate limit)
		v1.GET("/products/:id/check", middleware.PublicCheckRateLimit(), auditHandler.ProductCheck)

		// Authenticated audit and operations routes
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/scans", auditHandler.ScanHistory)
			protected.GET("/alerts", auditHandler.FraudAlerts)
			protected.POST("/alerts/:id/resolve", auditHandler.ResolveAlert)
			protected.GET("/chain/stats", auditHandler.ChainStats)
			protected.GET("/chain/seals", auditHandler.RecentSeals)
			protected.GET("/stats/dashboard", auditHandler.Dashboard)
			protected.GET("/events", auditHandler.RecentEvents)
			protected.GET("/products/:id/trust", auditHandler.TrustHistory)

			// Code lifecycle
			protected.POST("/products/:id/codes", codeHandler.GenerateCodes)
			protected.POST("/codes/:id/revoke", codeHandler.RevokeCode)
			protected.DELETE("/codes/:id", middleware.AdminRequired(), codeHandler.DeleteCode)
		}
	}

	return r
}
