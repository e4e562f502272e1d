package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/middleware"
	"github.com/campos-hq/campos-api/internal/models"
)

// claimsFromContext pulls the authenticated caller's claims out of the gin
// context. Routes behind the auth middleware always have them; elsewhere it
// returns nil and handlers treat the caller as anonymous.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, _ := c.Get(middleware.ContextUserKey)
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
