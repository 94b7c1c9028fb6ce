package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/service"
)

// WalletHandler обработчик для операций с балансом
type WalletHandler struct {
	service *service.PlatformService
	logger  *logrus.Logger
}

// NewWalletHandler создает новый обработчик кошелька
func NewWalletHandler(service *service.PlatformService, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		logger:  logger,
	}
}

// DepositRequest запрос на пополнение
type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	TxHash string  `json:"txHash"`
}

// WithdrawRequest запрос на вывод
type WithdrawRequest struct {
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	Address string  `json:"address" binding:"required"`
}

// Deposit регистрирует запрос на пополнение
// @Summary Request a deposit
// @Description Create a pending deposit transaction awaiting admin approval
// @Tags wallet
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body DepositRequest true "Deposit data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/wallet/deposit [post]
func (h *WalletHandler) Deposit(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	tx, err := h.service.DepositFunds(c.Request.Context(), session, req.Amount, req.TxHash)
	if err != nil {
		if errors.Is(err, ledger.ErrBelowMinimum) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to create deposit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create deposit"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deposit request submitted", "transaction": tx})
}

// Withdraw регистрирует запрос на вывод средств
// @Summary Request a withdrawal
// @Description Debit the balance and create a pending withdrawal transaction
// @Tags wallet
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body WithdrawRequest true "Withdrawal data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/wallet/withdraw [post]
func (h *WalletHandler) Withdraw(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	tx, err := h.service.WithdrawFunds(c.Request.Context(), session, req.Amount, req.Address)
	if err != nil {
		if errors.Is(err, ledger.ErrBelowMinimum) || errors.Is(err, ledger.ErrInsufficientFunds) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to create withdrawal: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create withdrawal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Withdrawal request submitted", "transaction": tx})
}

// GetTransactions возвращает историю транзакций пользователя
// @Summary Get transaction history
// @Tags wallet
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/transactions [get]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	user, err := h.service.CurrentUser(session)
	if err != nil {
		h.logger.Errorf("Failed to snapshot account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": user.Transactions})
}

// ClaimGift выдает одноразовый приветственный подарок
// @Summary Claim welcome gift
// @Description Claim the one-time welcome gift device
// @Tags wallet
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/wallet/gift [post]
func (h *WalletHandler) ClaimGift(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	device, err := h.service.ClaimWelcomeGift(session)
	if err != nil {
		if errors.Is(err, ledger.ErrGiftAlreadyClaimed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to claim gift: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to claim gift"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Welcome gift claimed", "device": device})
}
