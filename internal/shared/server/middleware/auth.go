package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-api/internal/shared/auth"
	"portfolio-api/internal/shared/server/respond"
)

// RequireAdmin rejects requests whose Authorization header does not carry the
// admin bearer token. It runs before any handler touches storage.
func RequireAdmin(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := v.Authorize(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrSecretNotConfigured) {
				respond.Error(c, http.StatusInternalServerError, "configuration", err.Error())
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		c.Next()
	}
}
