package web

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/blog"
)

const requiredMsg = "This field is required."

// PostForm is the create/edit submission. Image is nil when no file was sent.
type PostForm struct {
	Text    string                `form:"text"`
	GroupID string                `form:"group"`
	Image   *multipart.FileHeader `form:"-"`
}

func parsePostForm(c *fiber.Ctx) (PostForm, error) {
	var f PostForm
	if err := c.BodyParser(&f); err != nil {
		return PostForm{}, fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		f.Image = fh
	}
	return f, nil
}

// Validate checks what can be checked without the store; the group choice
// is resolved by the blog service.
func (f PostForm) Validate() error {
	v := apperr.NewValidationError()
	if strings.TrimSpace(f.Text) == "" {
		v.Add("text", requiredMsg)
	}
	return v.OrNil()
}

func (f PostForm) Input(image string) blog.PostInput {
	return blog.PostInput{Text: f.Text, GroupID: f.GroupID, Image: image}
}

type CommentForm struct {
	Text string `form:"text"`
}

func parseCommentForm(c *fiber.Ctx) (CommentForm, error) {
	var f CommentForm
	if err := c.BodyParser(&f); err != nil {
		return CommentForm{}, fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	return f, nil
}
