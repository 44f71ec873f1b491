package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"backend-yatube/internal/apperr"
)

const layout = "layouts/main"

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/signup/", func(c *fiber.Ctx) error {
		return c.Render("auth/signup", Bind(c, fiber.Map{"Title": "Sign up"}), layout)
	})

	r.Post("/signup/", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid form")
		}
		_, token, err := svc.Register(c.UserContext(), req)
		if v, ok := apperr.AsValidation(err); ok {
			return c.Render("auth/signup", Bind(c, fiber.Map{
				"Title":  "Sign up",
				"Form":   req,
				"Errors": v.Fields,
			}), layout)
		}
		if err != nil {
			return err
		}
		setSession(c, token, svc.TTL())
		return c.Redirect("/", fiber.StatusFound)
	})

	r.Get("/login/", func(c *fiber.Ctx) error {
		return c.Render("auth/login", Bind(c, fiber.Map{
			"Title":    "Log in",
			"Next":     SafeNext(c.Query("next")),
			"Username": "",
		}), layout)
	})

	r.Post("/login/", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid form")
		}
		if req.Next == "" {
			req.Next = c.Query("next")
		}
		_, token, err := svc.Login(c.UserContext(), req)
		if errors.Is(err, ErrInvalidCredentials) {
			return c.Render("auth/login", Bind(c, fiber.Map{
				"Title":    "Log in",
				"Next":     SafeNext(req.Next),
				"Username": req.Username,
				"Error":    "Please enter a correct username and password.",
			}), layout)
		}
		if err != nil {
			return err
		}
		setSession(c, token, svc.TTL())
		return c.Redirect(SafeNext(req.Next), fiber.StatusFound)
	})

	logout := func(c *fiber.Ctx) error {
		clearSession(c)
		return c.Redirect("/", fiber.StatusFound)
	}
	r.Get("/logout/", logout)
	r.Post("/logout/", logout)
}
