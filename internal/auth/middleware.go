package auth

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie holds the signed session token in the browser.
const SessionCookie = "session"

const viewerKey = "viewer"

// JWTMiddleware attaches the viewer named by the session cookie or a bearer
// token. Requests without a valid token continue anonymously.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			token = bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			return c.Next()
		}

		claims, err := parseClaims(secretBytes, token)
		if err != nil {
			return c.Next()
		}

		c.Locals(viewerKey, Viewer{ID: claims.UserID, Username: claims.Username})
		return c.Next()
	}
}

// CurrentViewer returns the signed-in viewer, if any.
func CurrentViewer(c *fiber.Ctx) (Viewer, bool) {
	v, ok := c.Locals(viewerKey).(Viewer)
	return v, ok
}

// RequireLogin redirects anonymous requests to the login page, remembering
// where they were headed.
func RequireLogin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentViewer(c); !ok {
			return c.Redirect(LoginURL(c.OriginalURL()), fiber.StatusFound)
		}
		return c.Next()
	}
}

func LoginURL(next string) string {
	return "/auth/login/?next=" + url.QueryEscape(SafeNext(next))
}

// SafeNext keeps next only when it is a path on this site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// Bind adds the viewer to template data.
func Bind(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}
	if v, ok := CurrentViewer(c); ok {
		data["Viewer"] = &v
	} else {
		data["Viewer"] = nil
	}
	return data
}

func setSession(c *fiber.Ctx, token string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
