package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cipherpanel/internal/core/auth"
	"cipherpanel/internal/core/config"
	"cipherpanel/internal/transport/http/handler"
	mdw "cipherpanel/internal/transport/http/middleware"
)

// NewAPIEngine wires middleware and routes. Layout routes sit behind JWT;
// the oracle callback sits behind its own shared token instead.
func NewAPIEngine(l *zap.Logger, cfg *config.Config, jwter *auth.JWTer, ah *handler.AuthHandler, lh *handler.LayoutHandler) *gin.Engine {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(30*time.Second),
		ginzap.RecoveryWithZap(l, true),
		mdw.Metrics(),
		mdw.AccessLog(l),
		cors.Default(),
	)

	// 健康检查 + 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// 公共
	api.POST("/auth/login", ah.Login)

	// 用户侧，全部 JWT 鉴权
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(jwter))
	{
		authed.GET("/me", ah.Me)
		authed.PUT("/profile", lh.UpdateProfile)
		authed.POST("/layout/compute", lh.Compute)
		authed.POST("/layout/decrypt", lh.RequestDecrypt)
		authed.GET("/layout/encrypted", lh.Encrypted)
		authed.GET("/layout/decrypted", lh.Decrypted)
	}

	// 预言机回调，共享 token 鉴权
	oracle := api.Group("/oracle")
	oracle.Use(mdw.OracleAuth(cfg.Oracle.CallbackToken))
	oracle.POST("/callback", lh.Callback)

	return r
}
