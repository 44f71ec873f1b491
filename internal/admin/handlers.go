// Package admin exposes the operator endpoints: group management and
// response cache invalidation.
package admin

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/blog"
)

// TokenHeader carries the shared admin secret.
const TokenHeader = "X-Admin-Token"

type GroupStore interface {
	Groups(ctx context.Context) ([]blog.Group, error)
	CreateGroup(ctx context.Context, g blog.Group) (blog.Group, error)
}

type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

type CreateGroupRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TokenMiddleware hides the admin surface entirely when no token is set.
func TokenMiddleware(token string) fiber.Handler {
	expected := []byte(token)
	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return fiber.ErrNotFound
		}
		got := []byte(c.Get(TokenHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			return fiber.NewError(fiber.StatusForbidden, "invalid admin token")
		}
		return c.Next()
	}
}

func RegisterRoutes(r fiber.Router, groups GroupStore, cache CacheInvalidator, token string) {
	r.Use(TokenMiddleware(token))

	r.Get("/groups", func(c *fiber.Ctx) error {
		list, err := groups.Groups(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	r.Post("/groups", func(c *fiber.Ctx) error {
		var req CreateGroupRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		g, err := groups.CreateGroup(c.UserContext(), blog.Group{
			Slug:        req.Slug,
			Title:       req.Title,
			Description: req.Description,
		})
		if v, ok := apperr.AsValidation(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": v.Fields})
		}
		if errors.Is(err, apperr.ErrConflict) {
			return fiber.NewError(fiber.StatusConflict, "group with this slug already exists")
		}
		if err != nil {
			return err
		}
		log.WithField("slug", g.Slug).Info("[admin] group created")
		return c.Status(fiber.StatusCreated).JSON(g)
	})

	r.Post("/cache/invalidate", func(c *fiber.Ctx) error {
		if err := cache.InvalidateAll(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "cache unavailable")
		}
		log.Info("[admin] response cache invalidated")
		return c.SendStatus(fiber.StatusNoContent)
	})
}
