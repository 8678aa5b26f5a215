// Session middleware
// Resolves the viewer of every request from the auth cookie. Requests
// without a valid cookie are served as guests.
package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/auth"
	"sensor-dashboard/internal/storage"

	"github.com/gin-gonic/gin"
)

const AUTH_COOKIE_NAME = "auth_token"

const (
	sessionKey = "session"
	claimKey   = "sessionClaim"
)

// Set authentication cookie
// The cookie is set to expire when the token expires
func setAuthCookie(c *gin.Context, env *Env, token string) {
	secure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		AUTH_COOKIE_NAME,
		token,
		int(env.authTTL().Seconds()),
		"/",
		"",
		secure, // Secure
		true,
	)
}

func clearAuthCookie(c *gin.Context) {
	c.SetCookie(AUTH_COOKIE_NAME, "", -1, "/", "", false, true)
}

// GetSession returns the viewer resolved by SessionMiddleware.
func GetSession(c *gin.Context) access.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(access.Session); ok {
			return s
		}
	}
	return access.GuestSession()
}

func getClaim(c *gin.Context) *auth.SessionClaim {
	if v, ok := c.Get(claimKey); ok {
		claim, _ := v.(*auth.SessionClaim)
		return claim
	}
	return nil
}

// startSession issues a new session token for user and sets the cookie.
func startSession(c *gin.Context, env *Env, user *storage.User) error {
	token, claim, err := env.Issuer.Issue(c.Request.Context(), user.UID)
	if err != nil {
		return err
	}
	setAuthCookie(c, env, token)
	c.Set(claimKey, claim)
	c.Set(sessionKey, sessionFor(user))
	return nil
}

func sessionFor(user *storage.User) access.Session {
	session := access.Session{
		UserID: user.UID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   access.RoleUser,
	}
	if role, err := access.ParseRole(user.Role); err == nil {
		session.Role = role
	} else {
		slog.Warn("Unknown role on user, using default", "uid", user.UID, "role", user.Role)
	}
	return session
}

// resolveSession turns the auth cookie into a session. Role lookups that
// fail fall back to the user role.
func resolveSession(c *gin.Context, env *Env) (access.Session, *auth.SessionClaim) {
	token, err := c.Cookie(AUTH_COOKIE_NAME)
	if err != nil || token == "" {
		return access.GuestSession(), nil
	}

	claim, err := env.Issuer.Verify(c.Request.Context(), token)
	if err != nil {
		slog.Debug("Discarding invalid auth token", "error", err)
		clearAuthCookie(c)
		return access.GuestSession(), nil
	}

	user, err := env.Storage.GetUser(c.Request.Context(), claim.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Warn("No user row for session, using default role", "uid", claim.UserID)
		} else {
			slog.Warn("Role lookup failed, using default role", "uid", claim.UserID, "error", err)
		}
		return access.Session{UserID: claim.UserID, Role: access.RoleUser}, claim
	}
	return sessionFor(user), claim
}

// renewSession replaces a token past its half life.
func renewSession(c *gin.Context, env *Env, session access.Session, claim *auth.SessionClaim) {
	if !env.Issuer.NeedsRenewal(claim) {
		return
	}
	slog.Debug("Renewing auth token for user", "userID", session.UserID)

	ctx := c.Request.Context()
	token, newClaim, err := env.Issuer.Issue(ctx, session.UserID)
	if err != nil {
		slog.Error("Failed to renew auth token", "userID", session.UserID, "error", err)
		return
	}
	if err := env.Issuer.Revoke(ctx, claim); err != nil {
		slog.Warn("Failed to revoke renewed token", "userID", session.UserID, "error", err)
	}
	setAuthCookie(c, env, token)
	c.Set(claimKey, newClaim)
}

func SessionMiddleware(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, claim := resolveSession(c, env)
		c.Set(sessionKey, session)
		if claim != nil {
			c.Set(claimKey, claim)
			renewSession(c, env, session, claim)
		}
		c.Next()
	}
}

func loginUrl(c *gin.Context) string {
	return "/auth/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
}

// RequireAuth creates middleware that requires authentication.
// Redirects to login page if not authenticated.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSession(c).Authenticated() {
			c.Next()
			return
		}
		if wantsJSON(c) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		slog.Debug("RequireAuth: Redirecting guest to login", "path", c.Request.URL.Path)
		c.Redirect(http.StatusFound, loginUrl(c))
		c.Abort()
	}
}

// RequirePermission creates middleware that checks for specific permission.
func RequirePermission(policy access.Policy, capability access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if !session.Can(policy, capability) {
			slog.Warn("Permission denied",
				"userID", session.UserID,
				"role", session.EffectiveRole(),
				"capability", capability)
			AbortWithError(c, ErrInsufficientPermissions)
			return
		}

		slog.Debug("Permission granted",
			"userID", session.UserID,
			"role", session.EffectiveRole(),
			"capability", capability)
		c.Next()
	}
}
