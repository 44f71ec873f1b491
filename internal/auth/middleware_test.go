package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func whoAmI(c *fiber.Ctx) error {
	v, ok := CurrentViewer(c)
	if !ok {
		return c.SendString("anonymous")
	}
	return c.SendString(v.Username)
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestJWTMiddleware(t *testing.T) {
	svc := NewService("secret", nil, time.Hour)
	token, err := svc.signToken(User{ID: "user-1", Username: "leo"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	app := fiber.New()
	app.Use(JWTMiddleware("secret"))
	app.Get("/me", whoAmI)

	// no token
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	if got := body(t, resp); got != "anonymous" {
		t.Fatalf("expected anonymous, got %q", got)
	}

	// session cookie
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	resp, _ = app.Test(req)
	if got := body(t, resp); got != "leo" {
		t.Fatalf("expected leo from cookie, got %q", got)
	}

	// bearer header
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if got := body(t, resp); got != "leo" {
		t.Fatalf("expected leo from bearer, got %q", got)
	}

	// garbage token stays anonymous
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK || body(t, resp) != "anonymous" {
		t.Fatalf("expected anonymous for invalid token")
	}
}

func TestRequireLogin(t *testing.T) {
	svc := NewService("secret", nil, time.Hour)
	token, _ := svc.signToken(User{ID: "user-1", Username: "leo"})

	app := fiber.New()
	app.Use(JWTMiddleware("secret"))
	app.Get("/create/", RequireLogin(), whoAmI)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/create/?x=1", nil))
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/auth/login/?next=%2Fcreate%2F%3Fx%3D1" {
		t.Fatalf("unexpected location %q", loc)
	}

	req := httptest.NewRequest(http.MethodGet, "/create/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok for signed-in viewer, got %d", resp.StatusCode)
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                   "/",
		"/posts/1/":          "/posts/1/",
		"https://evil.test/": "/",
		"//evil.test/":       "/",
		"/\\evil.test":       "/",
		"relative/path":      "/",
		"/follow/?page=2":    "/follow/?page=2",
	}
	for in, want := range cases {
		if got := SafeNext(in); got != want {
			t.Fatalf("SafeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBind(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		data := Bind(c, nil)
		if data["Viewer"] != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "unexpected viewer")
		}
		c.Locals(viewerKey, Viewer{ID: "user-1", Username: "leo"})
		data = Bind(c, fiber.Map{"Title": "x"})
		v, ok := data["Viewer"].(*Viewer)
		if !ok || v.Username != "leo" || data["Title"] != "x" {
			return fiber.NewError(fiber.StatusInternalServerError, "viewer not bound")
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bind failed: %s", body(t, resp))
	}
}
