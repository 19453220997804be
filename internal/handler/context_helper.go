package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-approval-api/internal/middleware"
	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
	"github.com/noah-isme/leave-approval-api/pkg/response"
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

// currentIdentity resolves the caller or writes a 401 and reports false.
func currentIdentity(c *gin.Context) (models.Identity, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return claims.Identity(), true
}
