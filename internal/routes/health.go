package routes

import (
	"net/http"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/utils"

	"github.com/gin-gonic/gin"
)

func Health(r *gin.RouterGroup, env *Env) {
	r.GET("/health", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}

		status := http.StatusOK
		body := gin.H{
			"message": msg,
			"version": utils.GetVersion(),
		}
		if _, err := env.Storage.GetSchemaVersion(c.Request.Context()); err != nil {
			env.logger.Error("Health check failed", "error", err)
			status = http.StatusServiceUnavailable
			body["message"] = "storage unavailable"
		}
		c.JSON(status, body)
	})

	r.GET("/config.json", func(c *gin.Context) {
		// Provide a initial config
		c.JSON(http.StatusOK, gin.H{
			"SupportURL":        env.SupportURL,
			"HistoryLimit":      env.HistoryLimit,
			"MinPasswordLength": access.MinPasswordLength,
		})
	})

	r.GET("/metrics", gin.WrapH(env.Metrics.Handler()))
}
