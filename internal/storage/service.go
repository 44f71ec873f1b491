package storage

import (
	"bufio"
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"backend-yatube/internal/db"
)

const KindPostImage = "post_image"

var ErrUnsupportedType = errors.New("upload a valid image: gif, jpeg, png or webp")

var imageExtensions = map[string]string{
	"image/gif":  ".gif",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Object is a stored blob and its public URL.
type Object struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Service struct {
	db      db.Querier
	root    string
	baseURL string
}

// NewService stores files under root and exposes them below baseURL.
func NewService(db db.Querier, root, baseURL string) *Service {
	if strings.Trim(baseURL, "/") == "" {
		baseURL = "/media"
	}
	return &Service{
		db:      db,
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Service) Root() string    { return s.root }
func (s *Service) BaseURL() string { return s.baseURL }

func (s *Service) SaveObject(ctx context.Context, userID, url, kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
	`, id, userID, url, kind)
	if err != nil {
		return "", errors.Wrap(err, "insert storage object")
	}
	return id, nil
}

// SaveImage writes an uploaded post image to disk and records it. The
// content is sniffed and must be one of the accepted image types whatever
// the client declared.
func (s *Service) SaveImage(ctx context.Context, userID, filename, contentType string, r io.Reader) (Object, error) {
	if contentType != "" {
		declared, _, err := mime.ParseMediaType(contentType)
		if err != nil || !strings.HasPrefix(declared, "image/") {
			return Object{}, ErrUnsupportedType
		}
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return Object{}, errors.Wrap(err, "read upload")
	}
	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return Object{}, ErrUnsupportedType
	}

	dir := filepath.Join(s.root, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, errors.Wrap(err, "create media dir")
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return Object{}, errors.Wrap(err, "create media file")
	}
	if _, err := io.Copy(f, br); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return Object{}, errors.Wrap(err, "write media file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return Object{}, errors.Wrap(err, "close media file")
	}

	url := s.baseURL + "/posts/" + name
	id, err := s.SaveObject(ctx, userID, url, KindPostImage)
	if err != nil {
		_ = os.Remove(dst)
		return Object{}, err
	}

	log.WithFields(log.Fields{"user_id": userID, "file": filename, "url": url}).Debug("[storage] image saved")
	return Object{ID: id, URL: url}, nil
}
