package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/service"
)

// AccountHandler обработчик для профиля и уведомлений
type AccountHandler struct {
	service *service.PlatformService
	logger  *logrus.Logger
}

// NewAccountHandler создает новый обработчик аккаунта
func NewAccountHandler(service *service.PlatformService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger,
	}
}

// GetAccount возвращает полное состояние аккаунта
// @Summary Get account state
// @Description Get the full account aggregate: balance, devices, transactions, notifications, referrals
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/account [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	user, err := h.service.CurrentUser(session)
	if err != nil {
		h.logger.Errorf("Failed to snapshot account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "unreadChatCount": session.Unread()})
}

// CompleteOnboarding помечает онбординг пройденным
// @Summary Complete onboarding
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/account/onboarding [post]
func (h *AccountHandler) CompleteOnboarding(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	h.service.CompleteOnboarding(session)
	c.JSON(http.StatusOK, gin.H{"message": "Onboarding completed"})
}

// ConfirmRecoveryKey помечает ключ восстановления сохраненным
// @Summary Confirm recovery key saved
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/account/recovery-key [post]
func (h *AccountHandler) ConfirmRecoveryKey(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	h.service.ConfirmRecoveryKeySaved(session)
	c.JSON(http.StatusOK, gin.H{"message": "Recovery key confirmed"})
}

// ExportAccount возвращает переносимый снимок аккаунта
// @Summary Export account snapshot
// @Description Export the account aggregate as a base64 encoded snapshot
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/account/export [get]
func (h *AccountHandler) ExportAccount(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	export, err := h.service.ExportAccount(session)
	if err != nil {
		h.logger.Errorf("Failed to export account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": export})
}

// GetNotifications возвращает уведомления пользователя, новые первыми
// @Summary Get notifications
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/notifications [get]
func (h *AccountHandler) GetNotifications(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	user, err := h.service.CurrentUser(session)
	if err != nil {
		h.logger.Errorf("Failed to snapshot account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": user.Notifications})
}

// MarkNotificationsRead помечает все уведомления прочитанными
// @Summary Mark notifications read
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/notifications/read [post]
func (h *AccountHandler) MarkNotificationsRead(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	h.service.MarkNotificationsRead(session)
	c.JSON(http.StatusOK, gin.H{"message": "Notifications marked as read"})
}

// ClearNotifications очищает список уведомлений
// @Summary Clear notifications
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/notifications [delete]
func (h *AccountHandler) ClearNotifications(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	h.service.ClearNotifications(session)
	c.JSON(http.StatusOK, gin.H{"message": "Notifications cleared"})
}

// GetReferrals возвращает реферальную сводку пользователя
// @Summary Get referral summary
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/referrals [get]
func (h *AccountHandler) GetReferrals(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	user, err := h.service.CurrentUser(session)
	if err != nil {
		h.logger.Errorf("Failed to snapshot account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referralCode":     user.ReferralCode,
		"referralCount":    user.ReferralCount,
		"referralEarnings": user.ReferralEarnings,
		"referrals":        user.ReferralsList,
	})
}
