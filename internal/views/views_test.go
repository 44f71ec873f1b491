package views

import (
	"bytes"
	"html/template"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend-yatube/internal/blog"
	"backend-yatube/internal/paginate"
)

func samplePost() blog.Post {
	return blog.Post{
		ID:        7,
		Author:    blog.Author{ID: "user-1", Username: "auth"},
		Group:     &blog.Group{ID: 1, Slug: "test-slug", Title: "Тестовая группа"},
		Text:      "Тестовый пост\n<b>bold</b>",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEmbeddedTemplatesLoad(t *testing.T) {
	e := New()
	require.NoError(t, e.Load())

	for _, name := range []string{
		"layouts/main", Fragment, "posts/index", "posts/group_list", "posts/profile",
		"posts/post_detail", "posts/create_post", "posts/follow",
		"auth/login", "auth/signup", "errors/error", "partials/post_card",
	} {
		assert.NotNil(t, e.Templates.Lookup(name), name)
	}
}

func TestRenderIndexWithLayout(t *testing.T) {
	e := New()
	var buf bytes.Buffer
	err := e.Render(&buf, "posts/index", fiber.Map{
		"Title":  "Latest posts",
		"Viewer": nil,
		"Posts":  []blog.Post{samplePost()},
		"Page":   paginate.New(11, 1, paginate.PerPage),
	}, "layouts/main")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>Latest posts | Yatube</title>")
	assert.Contains(t, out, "Тестовый пост<br>&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, out, `href="/group/test-slug/"`)
	assert.Contains(t, out, `href="?page=2"`)
	assert.Contains(t, out, "1 May 2024")
	assert.Contains(t, out, `href="/auth/login/"`)
}

func TestRenderFragmentThenLayout(t *testing.T) {
	e := New()
	var fragment bytes.Buffer
	require.NoError(t, e.Render(&fragment, "posts/index", fiber.Map{
		"Posts": []blog.Post{},
		"Page":  paginate.New(0, 1, paginate.PerPage),
	}))
	assert.NotContains(t, fragment.String(), "<html")
	assert.Contains(t, fragment.String(), "No posts yet.")

	var page bytes.Buffer
	require.NoError(t, e.Render(&page, Fragment, fiber.Map{
		"Viewer":   &struct{ Username string }{Username: "leo"},
		"Fragment": template.HTML(fragment.String()),
	}, "layouts/main"))
	assert.Contains(t, page.String(), "<html")
	assert.Contains(t, page.String(), "No posts yet.")
	assert.Contains(t, page.String(), `href="/profile/leo/"`)
}

func TestRenderUnknownTemplate(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, New().Render(&buf, "posts/missing", nil))
	assert.Error(t, New().Render(&buf, "posts/index", nil, "layouts/missing"))
}

func TestCustomFSAndPartials(t *testing.T) {
	fsys := fstest.MapFS{
		"partials/hello.html": {Data: []byte(`{{define "hello"}}hi {{.}}{{end}}`)},
		"layouts/plain.html":  {Data: []byte(`[{{embed}}]`)},
		"pages/greet.html":    {Data: []byte(`{{template "hello" .Name}}`)},
	}
	e := NewFS(fsys)

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "pages/greet", map[string]interface{}{"Name": "<x>"}, "layouts/plain"))
	assert.Equal(t, "[hi &lt;x&gt;]", buf.String())
}

func TestBrokenTemplateFailsLoad(t *testing.T) {
	e := NewFS(fstest.MapFS{"pages/bad.html": {Data: []byte(`{{if}}`)}})
	assert.Error(t, e.Load())
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "one two …", truncateWords(2, "one two three"))
	assert.Equal(t, "one two", truncateWords(5, " one  two "))
}

func TestRenderCreateFormKeepsSelection(t *testing.T) {
	e := New()
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "posts/create_post", fiber.Map{
		"IsEdit": false,
		"Form":   blog.PostInput{GroupID: "1"},
		"Groups": []blog.Group{{ID: 1, Title: "Тестовая группа"}, {ID: 2, Title: "Other"}},
		"Errors": map[string]string{"text": "This field is required."},
	}))
	out := buf.String()
	assert.Contains(t, out, `<option value="1" selected>`)
	assert.Contains(t, out, "This field is required.")
	assert.Contains(t, out, `action="/create/"`)
}
