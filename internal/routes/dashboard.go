package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/feed"

	"github.com/gin-gonic/gin"
)

// Events buffered per stream before the hub starts dropping them.
const streamBuffer = 16

// Comment lines keep idle streams open through proxies.
const streamKeepAlive = 25 * time.Second

// eventMessage sends one SSE event to the client
func eventMessage(c *gin.Context, data any) error {
	// Format the data according to SSE specification
	// Data must start with 'data: ' and end with '\n\n'
	serialized, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal SSE event message", "error", err)
		return err
	}

	serialized = append([]byte("data: "), serialized...)
	serialized = append(serialized, []byte("\n\n")...)

	if _, err := c.Writer.Write(serialized); err != nil {
		return err
	}

	// Flush the buffer to ensure the data is sent immediately
	c.Writer.Flush()
	return nil
}

// streamTopics are the feed topics that change what session sees. Guests
// only see sensor rows.
func streamTopics(session access.Session, policy access.Policy) []feed.Topic {
	if session.Authenticated() && session.Can(policy, access.ViewHistory) {
		return []feed.Topic{feed.TopicSensors, feed.TopicHistory}
	}
	return []feed.Topic{feed.TopicSensors}
}

func drain(ch <-chan feed.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func DashboardRoutes(r *gin.RouterGroup, env *Env) {
	viewData := RequirePermission(env.Policy, access.ViewData)

	r.GET("/", viewData, func(c *gin.Context) {
		view, err := env.Loader.Load(c.Request.Context(), GetSession(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		HTML(c, http.StatusOK, "dashboard.html.tmpl", gin.H{
			"View":       view,
			"SupportURL": env.SupportURL,
		})
	})

	r.GET("/api/dashboard", viewData, func(c *gin.Context) {
		view, err := env.Loader.Load(c.Request.Context(), GetSession(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	// Server-sent events: a dashboard snapshot now, and again after every
	// change the viewer can see.
	r.GET("/api/stream", viewData, func(c *gin.Context) {
		session := GetSession(c)
		ctx := c.Request.Context()
		logger := env.logger.With("userID", session.UserID)

		sub := env.Hub.Subscribe(streamBuffer, streamTopics(session, env.Policy)...)
		defer sub.Close()
		env.Metrics.StreamOpened()
		defer env.Metrics.StreamClosed()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable buffering for Nginx
		c.Writer.WriteHeader(http.StatusOK)

		snapshot := func() bool {
			view, err := env.Loader.Load(ctx, session)
			if err != nil {
				logger.Error("Failed to load dashboard for stream", "error", err)
				return eventMessage(c, errorStruct{Status: "error", Message: GetErrorMessage(err)}) == nil
			}
			return eventMessage(c, view) == nil
		}

		if !snapshot() {
			return
		}

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				logger.Debug("Refreshing stream", "topic", ev.Topic, "mac", ev.MAC)
				// One snapshot covers a burst of events.
				drain(sub.C)
				if !snapshot() {
					return
				}
			case <-keepAlive.C:
				if _, err := c.Writer.Write([]byte(": keep-alive\n\n")); err != nil {
					return
				}
				c.Writer.Flush()
			case <-ctx.Done():
				// Client closed the connection (e.g., closed the tab)
				logger.Debug("SSE client disconnected")
				return
			}
		}
	})
}
