package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/modelbridge/gembridge/internal/errors"
)

// APIKeyAuth validates client credentials against the configured key list.
// Keys are read through getKeys so config hot reloads take effect without
// restart. An empty key list disables authentication.
func APIKeyAuth(getKeys func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := getKeys()
		if len(keys) == 0 {
			c.Next()
			return
		}

		provided := extractAPIKey(c.Request)
		if provided == "" {
			abortUnauthorized(c, "Missing API key")
			return
		}
		for _, key := range keys {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
				c.Set("apiKey", provided)
				c.Next()
				return
			}
		}
		abortUnauthorized(c, "Invalid API key")
	}
}

// extractAPIKey accepts "Authorization: Bearer <key>" or "x-api-key: <key>".
func extractAPIKey(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[len("bearer "):])
		}
	}
	return strings.TrimSpace(r.Header.Get("x-api-key"))
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Response{
		Error: apperrors.Detail{
			Message: message,
			Type:    apperrors.TypeAuthentication,
			Code:    apperrors.CodeInvalidAPIKey,
		},
	})
}
