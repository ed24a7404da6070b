package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopsense/core/internal/middleware"
	"github.com/shopsense/core/internal/modules/gateway"
	"github.com/shopsense/core/internal/modules/summarize"
	"github.com/shopsense/core/internal/pkg/response"
)

var startTime = time.Now()

func (a *App) registerRoutes(svc *summarize.Service) {
	r := a.router
	authMW := middleware.Auth(a.cfg.JWTSecret)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "shopsense-core",
		"version":  "1.0.0",
		"homepage": "https://github.com/shopsense/core",
	}

	// WebSocket gateway at the root so extension clients can connect
	// without the API prefix.
	root := r.Group("")
	gateway.RegisterRoutes(root, a.hub)

	api := r.Group("/api/v2")

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	api.GET("/health", func(c *gin.Context) {
		sqlDB, err := a.db.DB()
		dbOK := err == nil && sqlDB.PingContext(c.Request.Context()) == nil
		response.OK(c, gin.H{
			"status":       "ok",
			"database":     dbOK,
			"clients":      a.hub.OnlineCount(),
			"uptimeMs":     time.Since(startTime).Milliseconds(),
			"capabilities": svc.Capabilities(c.Request.Context(), false),
		})
	})

	api.GET("/gateway/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"total": a.hub.OnlineCount(),
		})
	})

	summarize.NewHandler(svc).RegisterRoutes(api, authMW)
}
