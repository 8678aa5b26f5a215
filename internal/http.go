package app

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/routes"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
)

const TEMPLATE_DIR = "web/templates"

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")

	// Disable caching
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// Middleware to check if the IP is allowed.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	// Parse allowed CIDRs
	var parsedCIDRs []*net.IPNet

	// Allow local networks in debug mode
	if os.Getenv("GIN_MODE") != "release" {
		localhostCIDRs := []string{"127.0.0.1/8", "::1/128"}
		allowedCIDRs = append(allowedCIDRs, localhostCIDRs...)
	}

	for _, cidr := range allowedCIDRs {
		_, net, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		slog.Debug("Allowed CIDR", "cidr", cidr)
		parsedCIDRs = append(parsedCIDRs, net)
	}

	return func(c *gin.Context) {
		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			// Should not happen
			slog.Warn("Invalid client IP", "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		for _, cidr := range parsedCIDRs {
			if cidr.Contains(clientIP) {
				c.Next()
				return
			}
		}
		slog.Warn("IP not allowed", "ip", clientIP)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

// splitNetworks parses the comma separated allowed_networks setting.
func splitNetworks(networks string) []string {
	var allowedCIDRs []string
	for cidr := range strings.SplitSeq(networks, ",") {
		// Remove spaces and ignore empty sets
		if cidr := strings.TrimSpace(cidr); cidr != "" {
			allowedCIDRs = append(allowedCIDRs, cidr)
		}
	}
	return allowedCIDRs
}

// loadTemplates pairs every page in dir with the shared layouts. Each page is
// rendered through its first layout, which pulls in the page's blocks.
func loadTemplates(dir string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(filepath.Join(dir, "layouts", "*.tmpl"))
	if err != nil {
		return nil, err
	}
	pages, err := filepath.Glob(filepath.Join(dir, "*.html.tmpl"))
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		files := append(slices.Clone(layouts), page)
		r.AddFromFilesFuncs(filepath.Base(page), routes.TemplateFuncs(), files...)
		slog.Debug("Loaded template", "name", filepath.Base(page), "layouts", len(layouts))
	}
	return r, nil
}

func HTTPServer(cfg *config.Config, env *routes.Env) (*gin.Engine, error) {
	r := gin.Default()

	renderer, err := loadTemplates(TEMPLATE_DIR)
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	r.Static("/assets/", "./web/assets/")

	if cfg.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control", "allowed_networks", cfg.AllowedNetworks)
		r.Use(IPAccessControl(splitNetworks(cfg.AllowedNetworks)))
	}
	r.Use(securityHeaders)

	routes.Register(r, env)

	return r, nil
}
