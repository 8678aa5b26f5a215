package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/feed"
	"sensor-dashboard/internal/storage"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

type sensorRequest struct {
	MAC   string `form:"mac" json:"mac"`
	Alias string `form:"alias" json:"alias"`
}

type locationRequest struct {
	Latitude  *float64 `form:"latitude" json:"latitude"`
	Longitude *float64 `form:"longitude" json:"longitude"`
}

// AddSensorPatch creates or revives a sensor under alias, or its MAC.
func AddSensorPatch(mac, alias, createdBy string) storage.Patch {
	name := strings.TrimSpace(alias)
	if name == "" {
		name = mac
	}
	return storage.Patch{
		"name":       name,
		"created_by": createdBy,
		"created_at": storage.ServerTimestamp,
		"status":     storage.SensorStatusActive,
	}
}

// BindSensorPatch names a MAC already reporting history.
func BindSensorPatch(mac, alias string) storage.Patch {
	name := strings.TrimSpace(alias)
	if name == "" {
		name = mac
	}
	return storage.Patch{
		"name":       name,
		"updated_at": storage.ServerTimestamp,
		"status":     storage.SensorStatusActive,
	}
}

func StatusPatch(status storage.SensorStatus) storage.Patch {
	return storage.Patch{
		"status":     status,
		"updated_at": storage.ServerTimestamp,
	}
}

// LocationPatch validates browser coordinates.
func LocationPatch(lat, lng *float64) (storage.Patch, error) {
	if lat == nil || lng == nil {
		return nil, fmt.Errorf("%w: latitude and longitude are required", ErrMissingParameter)
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || *lat < -90 || *lat > 90 {
		return nil, fmt.Errorf("%w: latitude %v", ErrInvalidParameter, *lat)
	}
	if math.IsNaN(*lng) || math.IsInf(*lng, 0) || *lng < -180 || *lng > 180 {
		return nil, fmt.Errorf("%w: longitude %v", ErrInvalidParameter, *lng)
	}
	return storage.Patch{
		"latitude":   *lat,
		"longitude":  *lng,
		"location":   fmt.Sprintf("Lat: %.6f, Lng: %.6f", *lat, *lng),
		"updated_at": storage.ServerTimestamp,
	}, nil
}

// sensorWritten answers a write and tells live views the row changed.
func sensorWritten(c *gin.Context, env *Env, mac string, status int) {
	env.Hub.Publish(feed.Event{Topic: feed.TopicSensors, MAC: mac})
	c.JSON(status, gin.H{"success": true, "mac": mac})
}

func pathMAC(c *gin.Context) (string, bool) {
	mac := strings.TrimSpace(c.Param("mac"))
	if mac == "" {
		AbortWithError(c, ErrMissingParameter)
		return "", false
	}
	return mac, true
}

func SensorRoutes(r *gin.RouterGroup, env *Env) {
	logger := slog.With("component", "sensors")

	addSensor := RequirePermission(env.Policy, access.AddSensor)
	deleteSensor := RequirePermission(env.Policy, access.DeleteSensor)
	updateLocation := RequirePermission(env.Policy, access.UpdateLocation)

	api := r.Group("/api/sensors")

	api.POST("", addSensor, func(c *gin.Context) {
		var req sensorRequest
		if err := c.ShouldBind(&req); err != nil {
			AbortWithError(c, errors.Join(ErrInvalidRequest, err))
			return
		}
		mac := strings.TrimSpace(req.MAC)
		if mac == "" {
			AbortWithHTTPError(c, http.StatusBadRequest, ErrMissingParameter, "MAC address is required", "MISSING_PARAMETER")
			return
		}

		session := GetSession(c)
		createdBy := session.Email
		if createdBy == "" {
			createdBy = session.UserID
		}
		if err := env.Storage.MergeSensor(c.Request.Context(), mac, AddSensorPatch(mac, req.Alias, createdBy)); err != nil {
			AbortWithError(c, err)
			return
		}
		logger.Info("Sensor added", "mac", mac, "by", createdBy)
		sensorWritten(c, env, mac, http.StatusCreated)
	})

	api.POST("/:mac/bind", addSensor, func(c *gin.Context) {
		mac, ok := pathMAC(c)
		if !ok {
			return
		}
		var req sensorRequest
		if err := c.ShouldBind(&req); err != nil {
			AbortWithError(c, errors.Join(ErrInvalidRequest, err))
			return
		}
		if err := env.Storage.MergeSensor(c.Request.Context(), mac, BindSensorPatch(mac, req.Alias)); err != nil {
			AbortWithError(c, err)
			return
		}
		logger.Info("Sensor bound", "mac", mac, "by", GetSession(c).UserID)
		sensorWritten(c, env, mac, http.StatusOK)
	})

	setStatus := func(status storage.SensorStatus) gin.HandlerFunc {
		return func(c *gin.Context) {
			mac, ok := pathMAC(c)
			if !ok {
				return
			}
			if err := env.Storage.UpdateSensor(c.Request.Context(), mac, StatusPatch(status)); err != nil {
				AbortWithError(c, err)
				return
			}
			logger.Info("Sensor status changed", "mac", mac, "status", status, "by", GetSession(c).UserID)
			sensorWritten(c, env, mac, http.StatusOK)
		}
	}
	api.POST("/:mac/archive", deleteSensor, setStatus(storage.SensorStatusArchived))
	api.POST("/:mac/restore", deleteSensor, setStatus(storage.SensorStatusActive))

	api.POST("/:mac/location", updateLocation, func(c *gin.Context) {
		mac, ok := pathMAC(c)
		if !ok {
			return
		}
		var req locationRequest
		if err := c.ShouldBind(&req); err != nil {
			AbortWithError(c, errors.Join(ErrInvalidRequest, err))
			return
		}
		patch, err := LocationPatch(req.Latitude, req.Longitude)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := env.Storage.UpdateSensor(c.Request.Context(), mac, patch); err != nil {
			AbortWithError(c, err)
			return
		}
		logger.Info("Sensor located", "mac", mac, "location", patch["location"])
		sensorWritten(c, env, mac, http.StatusOK)
	})

	// QR code for the sticker on the device: its map location when known,
	// otherwise its history page.
	r.GET("/sensors/:mac/qr.png", RequirePermission(env.Policy, access.ViewData), func(c *gin.Context) {
		mac, ok := pathMAC(c)
		if !ok {
			return
		}
		sensor, err := env.Storage.GetSensor(c.Request.Context(), mac)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		target := c.GetString("BaseURL") + "/history/" + url.PathEscape(mac)
		if coords := dashboard.NewCoordinates(sensor.Latitude, sensor.Longitude); coords != nil {
			target = coords.MapURL
		}

		png, err := qrcode.Encode(target, qrcode.Medium, config.QR_IMAGE_SIZE)
		if err != nil {
			logger.Error("Error generating QR code", "mac", mac, "error", err)
			AbortWithError(c, err)
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "image/png", png)
	})
}
