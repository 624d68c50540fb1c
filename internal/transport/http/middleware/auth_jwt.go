package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cipherpanel/internal/core/auth"
	resp "cipherpanel/internal/transport/http/response"
)

const KeyUserID = "userId"

// AuthJWT 校验 Bearer Token，并把 uid 放进上下文
func AuthJWT(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "missing bearer token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		c.Set(KeyUserID, claims.UID)
		c.Next()
	}
}
