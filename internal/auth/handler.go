package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Issuer *TokenIssuer
	logger *zap.Logger
}

func NewHandler(issuer *TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{Issuer: issuer, logger: logger}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me returns the caller's session facts
func (h *Handler) Me(c *gin.Context) {
	session, err := CurrentSession(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

type devTokenRequest struct {
	UserID         string  `json:"user_id" binding:"required"`
	OrganizationID *string `json:"organization_id"`
	EmailVerified  bool    `json:"email_verified"`
	MFAEnabled     bool    `json:"mfa_enabled"`
}

// IssueDevToken signs a token for arbitrary session facts. Only registered
// when dev tokens are enabled in the configuration.
func (h *Handler) IssueDevToken(c *gin.Context) {
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.Issuer.Issue(Session{
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		EmailVerified:  req.EmailVerified,
		MFAEnabled:     req.MFAEnabled,
	})
	if err != nil {
		h.logger.Error("Failed to issue dev token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "token_type": "Bearer"})
}
