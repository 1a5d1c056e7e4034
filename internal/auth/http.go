package auth

import (
	"errors"
	"net/http"

	"github.com/abduss/imagehost/internal/i18n"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts POST /auth/token under the given group.
func RegisterRoutes(router *gin.RouterGroup, service *Service, bundle *i18n.Bundle) {
	handler := &httpHandler{service: service, bundle: bundle}
	router.POST("/auth/token", handler.issueToken)
}

type httpHandler struct {
	service *Service
	bundle  *i18n.Bundle
}

type tokenRequest struct {
	Password string `json:"password" binding:"required,max=72"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (h *httpHandler) issueToken(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.service.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": h.bundle.T(ctx, "error.not_found")})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.bundle.T(ctx, "error.bad_request")})
		return
	}

	token, err := h.service.IssueToken(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.FromContext(ctx).Warn("admin login rejected", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": h.bundle.T(ctx, "error.invalid_credentials")})
		default:
			logger.FromContext(ctx).Error("issue admin token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": h.bundle.T(ctx, "error.internal_error")})
		}
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt.Unix(),
	})
}
