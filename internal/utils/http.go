package utils

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

func requestScheme(c *gin.Context) string {
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		return "https"
	}
	return "http"
}

// Helper function to generate a URL for a given path
func UrlFor(c *gin.Context, path string) string {
	// Check for "/" prefix in path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", requestScheme(c), c.Request.Host, path)
}

// GetBaseURL automatically detects the base URL from the request
func GetBaseURL(c *gin.Context, configBaseURL string) string {
	// Absolute base URL is used as is
	if strings.Contains(configBaseURL, "://") {
		return strings.TrimSuffix(configBaseURL, "/")
	}

	// Relative one is prefixed with the request origin
	base := fmt.Sprintf("%s://%s", requestScheme(c), c.Request.Host)
	if path := strings.Trim(configBaseURL, "/"); path != "" {
		base += "/" + path
	}
	return base
}
