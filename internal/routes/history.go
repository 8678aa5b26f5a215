package routes

import (
	"errors"
	"net/http"
	"strings"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/storage"

	"github.com/gin-gonic/gin"
)

type historyPage struct {
	MAC     string                   `json:"mac"`
	Name    string                   `json:"name"`
	Entries []storage.HistoryEntry   `json:"entries"`
	Summary dashboard.HistorySummary `json:"summary"`
	Sensor  *storage.Sensor          `json:"sensor,omitempty"`
}

// loadHistory reads the newest entries of mac, oldest first. A MAC without a
// sensor row still has a history page.
func loadHistory(c *gin.Context, env *Env) (*historyPage, error) {
	mac := strings.TrimSpace(c.Param("mac"))
	if mac == "" {
		return nil, ErrMissingParameter
	}
	ctx := c.Request.Context()

	page := &historyPage{MAC: mac, Name: mac}
	sensor, err := env.Storage.GetSensor(ctx, mac)
	if err == nil {
		page.Sensor = sensor
		page.Name = dashboard.DisplayName(*sensor)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	page.Entries, err = env.Storage.ListHistory(ctx, mac, env.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if page.Entries == nil {
		page.Entries = []storage.HistoryEntry{}
	}
	page.Summary = dashboard.SummarizeHistory(page.Entries)
	return page, nil
}

func HistoryRoutes(r *gin.RouterGroup, env *Env) {
	viewHistory := RequirePermission(env.Policy, access.ViewHistory)

	r.GET("/history/:mac", RequireAuth(), viewHistory, func(c *gin.Context) {
		page, err := loadHistory(c, env)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		HTML(c, http.StatusOK, "history.html.tmpl", gin.H{
			"History": page,
		})
	})

	r.GET("/api/history/:mac", RequireAuth(), viewHistory, func(c *gin.Context) {
		page, err := loadHistory(c, env)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	})
}
