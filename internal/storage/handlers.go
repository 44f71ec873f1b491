package storage

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"backend-yatube/internal/auth"
)

// RegisterRoutes serves stored media and accepts direct image uploads.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/storage/upload", authMiddleware, func(c *fiber.Ctx) error {
		viewer, ok := auth.CurrentViewer(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "login required")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
		}
		defer f.Close()

		obj, err := svc.SaveImage(c.UserContext(), viewer.ID, fh.Filename, fh.Header.Get(fiber.HeaderContentType), f)
		if errors.Is(err, ErrUnsupportedType) {
			return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})

	r.Static(svc.BaseURL(), svc.Root(), fiber.Static{Browse: false})
}
