package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/auth"
	"sensor-dashboard/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultUserName = "User"

type credentials struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Name     string `form:"name" json:"name"`
	Next     string `form:"next" json:"next"`
}

// isSafeUrl checks if the target URL is within the same origin as the base URL
func isSafeUrl(c *gin.Context, targetUrl string) bool {
	testUrl, err := url.Parse(targetUrl)
	if err != nil {
		slog.Debug("Failed to parse target URL for safety check", "url", targetUrl, "error", err)
		return false
	}

	// Local path, but not protocol relative
	if testUrl.Scheme == "" && testUrl.Host == "" {
		return strings.HasPrefix(targetUrl, "/") && !strings.HasPrefix(targetUrl, "//")
	}

	refUrl, err := url.Parse(c.GetString("BaseURL"))
	if err != nil {
		return false
	}

	// Check scheme
	if refUrl.Scheme != testUrl.Scheme {
		slog.Debug("Target URL scheme does not match base URL", "target_scheme", testUrl.Scheme, "base_scheme", refUrl.Scheme)
		return false
	}

	// Check host and path prefix
	return refUrl.Host == testUrl.Host && strings.HasPrefix(testUrl.Path, refUrl.Path)
}

func redirectTarget(c *gin.Context, next string) string {
	if next != "" && isSafeUrl(c, next) {
		return next
	}
	return "/"
}

// authenticated answers a successful login or signup.
func authenticated(c *gin.Context, status int, user *storage.User, next string) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{
			"success": true,
			"user":    user,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, redirectTarget(c, next))
}

func bindCredentials(c *gin.Context) (credentials, bool) {
	var req credentials
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, errors.Join(ErrInvalidRequest, err))
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	return req, true
}

func AuthRoutes(r *gin.RouterGroup, env *Env) {
	logger := slog.With("component", "auth")

	r.GET("/login", func(c *gin.Context) {
		HTML(c, http.StatusOK, "login.html.tmpl", gin.H{
			"Next": c.Query("next"),
		})
	})

	r.GET("/signup", func(c *gin.Context) {
		HTML(c, http.StatusOK, "signup.html.tmpl", gin.H{
			"Next":              c.Query("next"),
			"MinPasswordLength": access.MinPasswordLength,
		})
	})

	r.POST("/login", func(c *gin.Context) {
		if !env.limiter.Allow(c.ClientIP()) {
			env.Metrics.LoginAttempt("throttled")
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		req, ok := bindCredentials(c)
		if !ok {
			return
		}
		if err := access.ValidEmail(req.Email); err != nil {
			AbortWithError(c, err)
			return
		}
		if req.Password == "" {
			AbortWithError(c, access.ErrMissingPassword)
			return
		}

		ctx := c.Request.Context()
		user, err := env.Storage.GetUserByEmail(ctx, req.Email)
		if errors.Is(err, storage.ErrNotFound) {
			// Hash anyway so unknown emails take as long as wrong passwords.
			auth.HashPassword(req.Password)
			env.Metrics.LoginAttempt("failure")
			logger.Info("Login for unknown email", "email", req.Email)
			AbortWithError(c, ErrInvalidCredentials)
			return
		} else if err != nil {
			AbortWithError(c, err)
			return
		}

		match, err := auth.VerifyPassword(req.Password, user.PasswordHash)
		if err != nil || !match {
			env.Metrics.LoginAttempt("failure")
			logger.Info("Login with wrong password", "email", req.Email, "error", err)
			AbortWithError(c, ErrInvalidCredentials)
			return
		}

		now := time.Now().UTC()
		if err := env.Storage.TouchLastLogin(ctx, user.UID, now); err != nil {
			logger.Warn("Failed to update last login", "uid", user.UID, "error", err)
		} else {
			user.LastLogin = &now
		}

		if err := startSession(c, env, user); err != nil {
			AbortWithError(c, err)
			return
		}
		env.Metrics.LoginAttempt("success")
		logger.Info("User logged in", "uid", user.UID, "email", user.Email)
		authenticated(c, http.StatusOK, user, req.Next)
	})

	r.POST("/signup", func(c *gin.Context) {
		if !env.limiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		req, ok := bindCredentials(c)
		if !ok {
			return
		}

		// Nothing reaches storage before the input is valid.
		if err := access.ValidEmail(req.Email); err != nil {
			AbortWithError(c, err)
			return
		}
		if err := access.ValidPassword(req.Password); err != nil {
			AbortWithError(c, err)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		name := req.Name
		if name == "" {
			name = defaultUserName
		}
		now := time.Now().UTC()
		user := storage.User{
			UID:          uuid.NewString(),
			Email:        req.Email,
			Name:         name,
			Role:         access.RoleUser.String(),
			PasswordHash: hash,
			CreatedAt:    now,
			LastLogin:    &now,
		}
		if err := env.Storage.CreateUser(c.Request.Context(), user); err != nil {
			AbortWithError(c, err)
			return
		}

		if err := startSession(c, env, &user); err != nil {
			AbortWithError(c, err)
			return
		}
		logger.Info("User signed up", "uid", user.UID, "email", user.Email)
		authenticated(c, http.StatusCreated, &user, req.Next)
	})

	r.POST("/logout", func(c *gin.Context) {
		if claim := getClaim(c); claim != nil {
			if err := env.Issuer.Revoke(c.Request.Context(), claim); err != nil {
				logger.Warn("Failed to revoke session on logout", "error", err)
			}
		}
		clearAuthCookie(c)

		if wantsJSON(c) {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		c.Redirect(http.StatusSeeOther, "/")
	})

	r.GET("/status", func(c *gin.Context) {
		session := GetSession(c)
		role := session.EffectiveRole()
		c.JSON(http.StatusOK, gin.H{
			"authenticated": session.Authenticated(),
			"userID":        session.UserID,
			"email":         session.Email,
			"role":          role,
			"capabilities":  env.Policy.Allowed(role),
		})
	})
}
