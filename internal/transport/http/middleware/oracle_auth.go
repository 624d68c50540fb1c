package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	resp "cipherpanel/internal/transport/http/response"
)

const KeyOracleToken = "X-Oracle-Token"

// OracleAuth gates the decryption callback route with a shared token.
// Compare in constant time so the token cannot be probed byte by byte.
func OracleAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(KeyOracleToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, "oracle token mismatch"))
			return
		}
		c.Next()
	}
}
