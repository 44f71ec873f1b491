package storage

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"

	"backend-yatube/internal/auth"
)

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/storage/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newApp(t *testing.T, svc *Service) (*fiber.App, string) {
	t.Helper()
	authSvc := auth.NewService("secret", nil, time.Hour)
	token, err := authSvc.IssueToken(auth.User{ID: "user-1", Username: "leo"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	app := fiber.New()
	app.Use(auth.JWTMiddleware("secret"))
	RegisterRoutes(app, svc, func(c *fiber.Ctx) error { return c.Next() })
	return app, token
}

func TestStorageUploadHandler(t *testing.T) {
	root := t.TempDir()
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), KindPostImage).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app, token := newApp(t, NewService(mock, root, "/media"))

	req := uploadRequest(t, "pic.png", "image/png", pngHeader)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status: %v", err)
	}

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// the stored file is served back under the media prefix
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, obj.URL, nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("media status: %v", err)
	}
	served, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(served, pngHeader) {
		t.Fatalf("served bytes differ")
	}
}

func TestStorageUploadRequiresLogin(t *testing.T) {
	app, _ := newApp(t, NewService(nil, t.TempDir(), "/media"))

	resp, err := app.Test(uploadRequest(t, "pic.png", "image/png", pngHeader))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}

func TestStorageUploadRejectsText(t *testing.T) {
	app, token := newApp(t, NewService(nil, t.TempDir(), "/media"))

	req := uploadRequest(t, "notes.txt", "text/plain", []byte("hello"))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected unsupported media type")
	}
}

func TestStorageUploadMissingFile(t *testing.T) {
	app, token := newApp(t, NewService(nil, t.TempDir(), "/media"))

	req := httptest.NewRequest(http.MethodPost, "/storage/upload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

func TestStorageUploadError(t *testing.T) {
	root := t.TempDir()
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), KindPostImage).
		WillReturnError(errSave)

	app, token := newApp(t, NewService(mock, root, "/media"))

	req := uploadRequest(t, "pic.png", "image/png", pngHeader)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected error status")
	}
	if entries, _ := os.ReadDir(filepath.Join(root, "posts")); len(entries) != 0 {
		t.Fatalf("expected no stored files")
	}
}
