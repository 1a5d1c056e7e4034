package auth

import (
	"net/http"
	"strings"

	"github.com/abduss/imagehost/internal/i18n"
	"github.com/gin-gonic/gin"
)

// RequireAdmin rejects requests without a valid admin bearer token. It lets
// everything through when authentication is not configured.
func RequireAdmin(service *Service, bundle *i18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !service.Enabled() {
			c.Next()
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		if err := service.ValidateToken(token); err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="imagehost"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": bundle.T(c.Request.Context(), "error.unauthorized"),
			})
			return
		}

		c.Next()
	}
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
