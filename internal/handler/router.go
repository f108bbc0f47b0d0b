package handler

import (
	"net/http"

	"pointledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		point := api.Group("/point")
		{
			point.GET("/balance", h.GetBalance)
			point.GET("/transfers", h.ListTransfers)
			point.POST("/transfer", h.TransferPoints)
			point.POST("/buy-invitecode", h.BuyInvitecode)
		}

		api.POST("/export/posts", h.ExportPosts)
		api.POST("/account/open", h.OpenAccount)

		settings := api.Group("/settings")
		{
			settings.GET("/emotions", h.GetEmotions)
			settings.POST("/emotions", h.UpdateEmotions)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})

	return r
}
