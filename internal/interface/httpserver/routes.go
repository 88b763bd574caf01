package httpserver

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter はAPIルーティングを構成した gin.Engine を作成する
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(handlers.logger))
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		analyses := api.Group("/analyses")
		{
			analyses.POST("", handlers.SubmitAnalysisHandler)
			analyses.GET("/:id/status", handlers.GetStatusHandler)
			analyses.GET("/:id/result", handlers.GetResultHandler)
		}

		api.GET("/backends", handlers.ListBackendsHandler)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

// requestLogger はリクエストごとの構造化ログを出力する
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTPリクエストを処理",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// corsMiddleware はCORSヘッダを付与する
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
