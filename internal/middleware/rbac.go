package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/response"
)

// RequireRoles lets the request through only when the caller holds one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.AbortWithError(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.AbortWithError(c, appErrors.ErrUnauthorized)
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.AbortWithError(c, appErrors.ErrForbidden)
	}
}
