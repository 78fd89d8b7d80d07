package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-scheduler-api/internal/middleware"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requesterFor pins patients to their own identity; staff may book on anyone's behalf.
func requesterFor(c *gin.Context, requested string) string {
	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RolePatient {
		return claims.UserID
	}
	return requested
}
