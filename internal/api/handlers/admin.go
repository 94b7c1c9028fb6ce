package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/service"
	"minecloud-platform/internal/storages"
)

// AdminHandler обработчик административных операций
type AdminHandler struct {
	service *service.PlatformService
	logger  *logrus.Logger
}

// NewAdminHandler создает новый административный обработчик
func NewAdminHandler(service *service.PlatformService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger,
	}
}

// ResolveTransactionRequest запрос на модерацию транзакции
type ResolveTransactionRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// AdjustBalanceRequest запрос на ручную корректировку баланса
type AdjustBalanceRequest struct {
	Email string  `json:"email" binding:"required,email"`
	Delta float64 `json:"delta" binding:"required"`
}

// ListUsers возвращает всех пользователей платформы
// @Summary List all users
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/v1/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListPendingTransactions возвращает транзакции, ожидающие модерации
// @Summary List pending transactions
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/v1/admin/transactions [get]
func (h *AdminHandler) ListPendingTransactions(c *gin.Context) {
	pending, err := h.service.ListPendingTransactions(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list pending transactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": pending})
}

// ApproveTransaction подтверждает pending-транзакцию
// @Summary Approve a pending transaction
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param request body ResolveTransactionRequest true "Transaction owner"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/admin/transactions/{id}/approve [post]
func (h *AdminHandler) ApproveTransaction(c *gin.Context) {
	h.resolveTransaction(c, true)
}

// RejectTransaction отклоняет pending-транзакцию
// @Summary Reject a pending transaction
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param request body ResolveTransactionRequest true "Transaction owner"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/admin/transactions/{id}/reject [post]
func (h *AdminHandler) RejectTransaction(c *gin.Context) {
	h.resolveTransaction(c, false)
}

func (h *AdminHandler) resolveTransaction(c *gin.Context, approve bool) {
	txID := c.Param("id")

	var req ResolveTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	var tx *ledger.Transaction
	var err error
	if approve {
		tx, err = h.service.ApproveTransaction(c.Request.Context(), req.UserID, txID)
	} else {
		tx, err = h.service.RejectTransaction(c.Request.Context(), req.UserID, txID)
	}
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound), errors.Is(err, storages.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrTransactionNotPending):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Errorf("Failed to resolve transaction: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve transaction"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// AdjustBalance вручную корректирует баланс пользователя
// @Summary Adjust user balance
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body AdjustBalanceRequest true "Adjustment data"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/admin/balance [post]
func (h *AdminHandler) AdjustBalance(c *gin.Context) {
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.service.AdjustBalance(c.Request.Context(), req.Email, req.Delta)
	if err != nil {
		if errors.Is(err, storages.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Errorf("Failed to adjust balance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to adjust balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
