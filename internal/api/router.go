package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"minecloud-platform/internal/api/handlers"
	"minecloud-platform/internal/api/middleware"
	"minecloud-platform/internal/config"
	"minecloud-platform/internal/service"
)

// SetupRouter настраивает и возвращает роутер с всеми эндпоинтами
func SetupRouter(
	platformService *service.PlatformService,
	jwtMiddleware *middleware.JWTMiddleware,
	jwtConfig config.JWTConfig,
	logger *logrus.Logger,
	ginMode string,
) *gin.Engine {
	// Установка режима Gin
	gin.SetMode(ginMode)

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Инициализация handlers
	authHandler := handlers.NewAuthHandler(platformService, jwtMiddleware, jwtConfig, logger)
	accountHandler := handlers.NewAccountHandler(platformService, logger)
	walletHandler := handlers.NewWalletHandler(platformService, logger)
	deviceHandler := handlers.NewDeviceHandler(platformService, logger)
	chatHandler := handlers.NewChatHandler(platformService, logger)
	adminHandler := handlers.NewAdminHandler(platformService, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (без авторизации)
		v1.POST("/register", authHandler.Register)
		v1.POST("/login", authHandler.Login)
		v1.POST("/password/reset", authHandler.ResetPassword)
		v1.GET("/email/exists", authHandler.CheckEmail)

		// Protected routes (требуют авторизации)
		authorized := v1.Group("")
		authorized.Use(jwtMiddleware.Auth())
		{
			authorized.POST("/logout", authHandler.Logout)

			// Account operations
			authorized.GET("/account", accountHandler.GetAccount)
			authorized.POST("/account/onboarding", accountHandler.CompleteOnboarding)
			authorized.POST("/account/recovery-key", accountHandler.ConfirmRecoveryKey)
			authorized.GET("/account/export", accountHandler.ExportAccount)
			authorized.GET("/referrals", accountHandler.GetReferrals)
			authorized.GET("/notifications", accountHandler.GetNotifications)
			authorized.POST("/notifications/read", accountHandler.MarkNotificationsRead)
			authorized.DELETE("/notifications", accountHandler.ClearNotifications)

			// Device operations
			authorized.GET("/catalog", deviceHandler.GetCatalog)
			authorized.GET("/devices", deviceHandler.GetDevices)
			authorized.POST("/devices/purchase", deviceHandler.Purchase)
			authorized.POST("/devices/:id/activate", deviceHandler.Activate)

			// Wallet operations
			authorized.POST("/wallet/deposit", walletHandler.Deposit)
			authorized.POST("/wallet/withdraw", walletHandler.Withdraw)
			authorized.POST("/wallet/gift", walletHandler.ClaimGift)
			authorized.GET("/transactions", walletHandler.GetTransactions)

			// Chat operations
			authorized.GET("/chat", chatHandler.GetMessages)
			authorized.POST("/chat", chatHandler.SendMessage)
			authorized.POST("/chat/read", chatHandler.MarkRead)
			authorized.GET("/chat/unread", chatHandler.GetUnread)

			// Admin operations
			admin := authorized.Group("/admin")
			admin.Use(jwtMiddleware.RequireAdmin())
			{
				admin.GET("/users", adminHandler.ListUsers)
				admin.GET("/transactions", adminHandler.ListPendingTransactions)
				admin.POST("/transactions/:id/approve", adminHandler.ApproveTransaction)
				admin.POST("/transactions/:id/reject", adminHandler.RejectTransaction)
				admin.POST("/balance", adminHandler.AdjustBalance)
			}
		}
	}

	return router
}
