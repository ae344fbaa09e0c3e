// Package api - Authentication handlers
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/healthlog/healthlog/internal/auth"
	"github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/mail"
	"github.com/healthlog/healthlog/internal/models"
)

// LoginRateLimiter throttles login attempts per client/email pair.
type LoginRateLimiter struct {
	attempts map[string]*loginAttempt
	mu       sync.Mutex
}

type loginAttempt struct {
	count     int
	firstTry  time.Time
	blockedAt *time.Time
}

// NewLoginRateLimiter creates a new rate limiter and starts its cleanup
// goroutine.
func NewLoginRateLimiter() *LoginRateLimiter {
	rl := &LoginRateLimiter{
		attempts: make(map[string]*loginAttempt),
	}
	go rl.cleanup()
	return rl
}

// Allow checks if a login attempt is allowed. It returns the remaining
// attempts and, when blocked, how long until attempts resume.
func (rl *LoginRateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &loginAttempt{count: 1, firstTry: now}
		return true, 4, 0
	}

	if attempt.blockedAt != nil {
		blockDuration := 15 * time.Minute
		if now.Sub(*attempt.blockedAt) < blockDuration {
			return false, 0, blockDuration - now.Sub(*attempt.blockedAt)
		}
		attempt.count = 1
		attempt.firstTry = now
		attempt.blockedAt = nil
		return true, 4, 0
	}

	if now.Sub(attempt.firstTry) > 5*time.Minute {
		attempt.count = 1
		attempt.firstTry = now
		return true, 4, 0
	}

	attempt.count++
	if attempt.count > 5 {
		attempt.blockedAt = &now
		return false, 0, 15 * time.Minute
	}
	return true, 5 - attempt.count, 0
}

// Reset clears the attempts for a key after a successful login.
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, attempt := range rl.attempts {
			if now.Sub(attempt.firstTry) > 30*time.Minute {
				delete(rl.attempts, key)
			}
		}
		rl.mu.Unlock()
	}
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	db          *gorm.DB
	jwtService  *auth.JWTService
	refresh     *auth.RefreshStore
	mailer      *mail.Mailer
	rateLimiter *LoginRateLimiter
	log         *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(db *gorm.DB, jwtService *auth.JWTService, refresh *auth.RefreshStore, mailer *mail.Mailer, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:          db,
		jwtService:  jwtService,
		refresh:     refresh,
		mailer:      mailer,
		rateLimiter: NewLoginRateLimiter(),
		log:         log,
	}
}

// RegisterRequest represents registration data.
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// LoginRequest represents login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserResponse represents user data in responses.
type UserResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Role: u.Role, Verified: u.Verified()}
}

// Register creates a new account and sends a verification email.
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if req.Password != req.ConfirmPassword {
		respondError(c, errors.NewValidationError("confirm_password", "passwords do not match"))
		return
	}

	var existing int64
	if err := h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}
	if existing > 0 {
		respondError(c, errors.NewConflictError("email"))
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	token := uuid.New().String()
	user := models.User{
		Email:             req.Email,
		PasswordHash:      passwordHash,
		Role:              models.RoleUser,
		IsActive:          true,
		VerificationToken: &token,
	}
	if err := h.db.Create(&user).Error; err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	// Registration succeeds even if the mail provider is down; the
	// verification mail can be re-sent later.
	if err := h.mailer.SendVerification(c.Request.Context(), user.Email, token); err != nil {
		h.log.Warn("failed to send verification email",
			zap.Int64("user_id", user.ID), zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{"user": userResponse(&user)})
}

// Login authenticates a user and returns an access/refresh token pair.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	rateLimitKey := c.ClientIP() + ":" + req.Email
	allowed, remaining, retryAfter := h.rateLimiter.Allow(rateLimitKey)
	if !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.Seconds(),
		})
		return
	}

	var user models.User
	err := h.db.Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		} else {
			respondError(c, errors.NewInternalError(err))
		}
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account is disabled"})
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "invalid credentials",
			"attempts_remaining": remaining,
		})
		return
	}
	// Unverified accounts get the same generic error as a bad password.
	if !user.Verified() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.rateLimiter.Reset(rateLimitKey)

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userResponse(&user), "tokens": tokens})
}

// RefreshToken rotates a refresh token for a new token pair.
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	userID, err := h.refresh.Lookup(ctx, req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil || !user.IsActive {
		respondError(c, errors.NewUnauthorizedError("user not found or disabled"))
		return
	}

	// Rotation: the presented token is single-use.
	if err := h.refresh.Delete(ctx, req.RefreshToken); err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout revokes the presented refresh token.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.refresh.Delete(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// VerifyEmail completes email verification via the mailed link.
// GET /auth/verify-email?token=...
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondError(c, errors.NewValidationError("token", "token is required"))
		return
	}

	var user models.User
	err := h.db.Where("verification_token = ?", token).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			respondError(c, errors.NewNotFoundError("verification token"))
		} else {
			respondError(c, errors.NewInternalError(err))
		}
		return
	}

	now := time.Now()
	err = h.db.Model(&user).Updates(map[string]interface{}{
		"email_verified_at":  now,
		"verification_token": nil,
	}).Error
	if err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

// GetMe returns the current authenticated user.
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	var user models.User
	if err := h.db.First(&user, currentUserID(c)).Error; err != nil {
		respondError(c, errors.NewNotFoundError("user"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(&user)})
}

// ChangePassword changes the caller's password.
// POST /auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, currentUserID(c)).Error; err != nil {
		respondError(c, errors.NewNotFoundError("user"))
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		return
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}
	if err := h.db.Model(&user).Update("password_hash", newHash).Error; err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed successfully"})
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (*auth.TokenPair, error) {
	accessToken, expiresAt, err := h.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	refreshToken, err := h.refresh.Save(c.Request.Context(), user.ID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return &auth.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}
