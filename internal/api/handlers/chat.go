package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/service"
)

const defaultChatLimit = 100

// ChatHandler обработчик общего чата поддержки
type ChatHandler struct {
	service *service.PlatformService
	logger  *logrus.Logger
}

// NewChatHandler создает новый обработчик чата
func NewChatHandler(service *service.PlatformService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// SendMessageRequest запрос на отправку сообщения
type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// GetMessages возвращает последние сообщения чата
// @Summary Get chat messages
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Max messages to return"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/chat [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	limit := defaultChatLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := h.service.ChatMessages(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("Failed to load chat messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "unreadCount": session.Unread()})
}

// SendMessage отправляет сообщение в чат
// @Summary Send a chat message
// @Tags chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SendMessageRequest true "Message text"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/chat [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text is required"})
		return
	}

	msg, err := h.service.SendChatMessage(c.Request.Context(), session, text)
	if err != nil {
		h.logger.Errorf("Failed to send chat message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkRead сбрасывает счетчик непрочитанных сообщений
// @Summary Mark chat as read
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/chat/read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	h.service.MarkChatRead(session)
	c.JSON(http.StatusOK, gin.H{"message": "Chat marked as read"})
}

// GetUnread возвращает число непрочитанных сообщений
// @Summary Get unread message count
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /api/v1/chat/unread [get]
func (h *ChatHandler) GetUnread(c *gin.Context) {
	session := sessionFromContext(c, h.service)
	if session == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"unreadCount": session.Unread()})
}
