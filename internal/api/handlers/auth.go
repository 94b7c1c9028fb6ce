package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/api/middleware"
	"minecloud-platform/internal/config"
	"minecloud-platform/internal/service"
)

// AuthHandler обработчик для аутентификации
type AuthHandler struct {
	service       *service.PlatformService
	jwtMiddleware *middleware.JWTMiddleware
	jwtConfig     config.JWTConfig
	logger        *logrus.Logger
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(service *service.PlatformService, jwtMiddleware *middleware.JWTMiddleware, jwtConfig config.JWTConfig, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		service:       service,
		jwtMiddleware: jwtMiddleware,
		jwtConfig:     jwtConfig,
		logger:        logger,
	}
}

// RegisterRequest запрос на регистрацию
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	ReferralCode string `json:"referralCode"`
}

// LoginRequest запрос на авторизацию
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest запрос на сброс пароля
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// Register регистрирует нового пользователя
// @Summary Register a new user
// @Description Register a new user with email, password and optional referral code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Регистрируем пользователя
	user, err := h.service.Register(c.Request.Context(), req.Email, req.Password, req.ReferralCode)
	if err != nil {
		if err.Error() == "email already exists" {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to register user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	// Генерируем JWT токен, чтобы клиент сразу вошел в аккаунт
	token, err := h.jwtMiddleware.GenerateToken(user.ID, user.Email, user.Role, h.jwtConfig.Expiration)
	if err != nil {
		h.logger.Errorf("Failed to generate token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	// Открываем сессию с фоновыми задачами
	if _, err := h.service.OpenSession(c.Request.Context(), user.Email); err != nil {
		h.logger.Errorf("Failed to open session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login авторизует пользователя
// @Summary Login user
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Аутентифицируем пользователя
	user, err := h.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	// Генерируем JWT токен
	token, err := h.jwtMiddleware.GenerateToken(user.ID, user.Email, user.Role, h.jwtConfig.Expiration)
	if err != nil {
		h.logger.Errorf("Failed to generate token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	// Открываем сессию с фоновыми задачами
	if _, err := h.service.OpenSession(c.Request.Context(), user.Email); err != nil {
		h.logger.Errorf("Failed to open session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// ResetPassword сбрасывает пароль пользователя
// @Summary Reset password
// @Description Set a new password for an existing account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "New credentials"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// CheckEmail проверяет, зарегистрирован ли email
// @Summary Check email existence
// @Description Check whether an email is already registered
// @Tags auth
// @Produce json
// @Param email query string true "Email to check"
// @Success 200 {object} map[string]bool
// @Router /api/v1/email/exists [get]
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}

	exists, err := h.service.CheckEmailExists(c.Request.Context(), email)
	if err != nil {
		h.logger.Errorf("Failed to check email: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// Logout закрывает сессию пользователя
// @Summary Logout
// @Description Close the user session and flush state to storage
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	email, err := middleware.GetEmail(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	h.service.CloseSession(c.Request.Context(), email)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
