package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/config"
	"github.com/wejrox/dogbot/internal/dogact"
	"github.com/wejrox/dogbot/internal/middleware"
)

// AuthHandler mints member tokens for the chat gateway. The gateway has
// already authenticated the member with the platform; it proves itself to
// us with a shared client secret.
type AuthHandler struct {
	svc        *adjudication.Service
	secretHash []byte
	jwtSecret  []byte
	ttl        time.Duration
}

func NewAuthHandler(svc *adjudication.Service, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		secretHash: []byte(cfg.ClientSecretHash),
		jwtSecret:  []byte(cfg.JWTSecret),
		ttl:        cfg.TokenTTL,
	}
}

// IssueToken exchanges the gateway client secret for a member token
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var input struct {
		ClientSecret string `json:"client_secret" binding:"required"`
		MemberID     int64  `json:"member_id" binding:"required"`
		DisplayName  string `json:"display_name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(h.secretHash) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Token issuing is disabled"})
		return
	}

	// Verify client secret
	if err := bcrypt.CompareHashAndPassword(h.secretHash, []byte(input.ClientSecret)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := h.svc.RememberMember(c.Request.Context(), dogact.MemberID(input.MemberID), input.DisplayName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record member"})
		return
	}

	tokenString, err := middleware.IssueToken(h.jwtSecret, input.MemberID, input.DisplayName, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      tokenString,
		"expires_in": int64(h.ttl.Seconds()),
		"member": gin.H{
			"id":           input.MemberID,
			"display_name": input.DisplayName,
		},
	})
}

// GetMe returns the current authenticated member
func (h *AuthHandler) GetMe(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           int64(memberID),
		"display_name": displayNameOr(c.Request.Context(), h.svc, memberID),
	})
}
