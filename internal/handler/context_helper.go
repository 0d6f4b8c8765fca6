package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/uthutho/admin-api/internal/middleware"
	"github.com/uthutho/admin-api/internal/models"
	"github.com/uthutho/admin-api/pkg/middleware/requestid"
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

func requestMeta(c *gin.Context) map[string]interface{} {
	meta := map[string]interface{}{}
	if id := requestid.Value(c); id != "" {
		meta["requestId"] = id
	}
	return meta
}
