package web

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/auth"
)

// ErrorHandler turns service errors into error pages. Anonymous access to
// member pages is sent to the login form instead.
func ErrorHandler(views Renderer) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			return c.Redirect(auth.LoginURL(c.OriginalURL()), fiber.StatusFound)
		}

		code := fiber.StatusInternalServerError
		msg := "Internal server error"

		var fe *fiber.Error
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			code, msg = fiber.StatusNotFound, "Page not found"
		case errors.Is(err, apperr.ErrForbidden):
			code, msg = fiber.StatusForbidden, "Forbidden"
		case errors.Is(err, apperr.ErrConflict):
			code, msg = fiber.StatusConflict, "Conflict"
		case errors.As(err, &fe):
			code, msg = fe.Code, fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(log.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("[web] request failed")
		}

		if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
			return c.Status(code).JSON(fiber.Map{"error": msg})
		}

		if views != nil {
			var buf bytes.Buffer
			rerr := views.Render(&buf, "errors/error", auth.Bind(c, fiber.Map{
				"Title":   msg,
				"Status":  code,
				"Message": msg,
			}), layout)
			if rerr == nil {
				c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
				return c.Status(code).Send(buf.Bytes())
			}
			log.WithError(rerr).Error("[web] render error page")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(code).SendString(msg)
	}
}
