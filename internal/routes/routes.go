package routes

import (
	"sensor-dashboard/internal/utils"

	"github.com/gin-gonic/gin"
)

// Merge into existing gin.H
func H(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["BaseURL"] = c.GetString("BaseURL")
	data["AppVersion"] = utils.GetVersion()
	data["Session"] = GetSession(c)
	return data
}

// Returns a HTML response with merged data
func HTML(c *gin.Context, code int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data = H(c, data)
	c.HTML(code, name, data)
}

// BaseURL stores the external base URL of the request in the context.
func BaseURL(configured string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("BaseURL", utils.GetBaseURL(c, configured))
		c.Next()
	}
}

// Register mounts every route of the dashboard on r.
func Register(r *gin.Engine, env *Env) {
	r.Use(BaseURL(env.BaseURL), ErrorHandler(), SessionMiddleware(env))

	Health(r.Group("/"), env)

	DashboardRoutes(r.Group("/"), env)
	HistoryRoutes(r.Group("/"), env)
	SensorRoutes(r.Group("/"), env)

	AuthRoutes(r.Group("/auth"), env)
}
