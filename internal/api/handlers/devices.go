package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/catalog"
	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/service"
)

// DeviceHandler обработчик для каталога и устройств
type DeviceHandler struct {
	service *service.PlatformService
	logger  *logrus.Logger
}

// NewDeviceHandler создает новый обработчик устройств
func NewDeviceHandler(service *service.PlatformService, logger *logrus.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		logger:  logger,
	}
}

// PurchaseRequest запрос на покупку устройства
type PurchaseRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

// ActivateRequest запрос на запуск цикла добычи
type ActivateRequest struct {
	DurationDays     int     `json:"durationDays" binding:"required,gt=0"`
	DailyRatePercent float64 `json:"dailyRatePercent" binding:"required,gt=0"`
}

// GetCatalog возвращает каталог доступных устройств
// @Summary Get device catalog
// @Tags devices
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/catalog [get]
func (h *DeviceHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": catalog.Devices, "tiers": catalog.Tiers})
}

// GetDevices возвращает устройства пользователя
// @Summary Get owned devices
// @Tags devices
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/devices [get]
func (h *DeviceHandler) GetDevices(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	user, err := h.service.CurrentUser(session)
	if err != nil {
		h.logger.Errorf("Failed to snapshot account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get devices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": user.Devices})
}

// Purchase покупает устройство из каталога
// @Summary Purchase a device
// @Description Buy a device from the catalog, debiting the balance
// @Tags devices
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "Purchase data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/devices/purchase [post]
func (h *DeviceHandler) Purchase(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	device, err := h.service.PurchaseDevice(c.Request.Context(), session, req.DeviceID)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, catalog.ErrDefinitionNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to purchase device: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purchase device"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device purchased", "device": device})
}

// Activate запускает цикл добычи для устройства
// @Summary Activate a mining cycle
// @Description Start a mining cycle on an idle or completed device
// @Tags devices
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Device instance ID"
// @Param request body ActivateRequest true "Activation preset"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/devices/{id}/activate [post]
func (h *DeviceHandler) Activate(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	instanceID := c.Param("id")

	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	device, err := h.service.ActivateCycle(session, instanceID, req.DurationDays, req.DailyRatePercent)
	if err != nil {
		if errors.Is(err, ledger.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, ledger.ErrDeviceAlreadyRunning) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Mining cycle started", "device": device})
}
