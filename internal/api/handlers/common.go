package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minecloud-platform/internal/api/middleware"
	"minecloud-platform/internal/service"
)

// sessionFromContext достает открытую сессию пользователя из токена.
// При ошибке сам пишет ответ и возвращает nil.
func sessionFromContext(c *gin.Context, svc *service.PlatformService) *service.Session {
	email, err := middleware.GetEmail(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil
	}

	// Сессия могла быть потеряна при рестарте сервера, токен при этом
	// остается валидным, поэтому открываем ее заново
	session, err := svc.GetSession(c.Request.Context(), email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return nil
	}

	return session
}
