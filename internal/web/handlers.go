// Package web serves the blog pages: feeds, post detail, post and comment
// forms, and follow actions.
package web

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/auth"
	"backend-yatube/internal/blog"
	"backend-yatube/internal/cache"
	"backend-yatube/internal/feed"
	"backend-yatube/internal/follow"
	"backend-yatube/internal/paginate"
	"backend-yatube/internal/storage"
	"backend-yatube/internal/views"
)

const layout = "layouts/main"

// Renderer is the template engine.
type Renderer interface {
	Render(w io.Writer, name string, bind interface{}, layouts ...string) error
}

// Layout wraps an already rendered fragment in layout, with bind available
// to the layout as usual.
func Layout(w io.Writer, r Renderer, layout string, fragment []byte, bind fiber.Map) error {
	data := make(fiber.Map, len(bind)+1)
	for k, v := range bind {
		data[k] = v
	}
	data["Fragment"] = template.HTML(fragment)
	return r.Render(w, views.Fragment, data, layout)
}

type ImageStore interface {
	SaveImage(ctx context.Context, userID, filename, contentType string, r io.Reader) (storage.Object, error)
}

// Notifier is told about every new post.
type Notifier interface {
	PostCreated(ctx context.Context, post blog.Post)
}

type Handler struct {
	blog     *blog.Service
	feeds    *feed.Service
	follows  *follow.Service
	cache    *cache.Cache
	views    Renderer
	images   ImageStore
	notifier Notifier
}

type Deps struct {
	Blog     *blog.Service
	Feeds    *feed.Service
	Follows  *follow.Service
	Cache    *cache.Cache
	Views    Renderer
	Images   ImageStore
	Notifier Notifier
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		blog:     d.Blog,
		feeds:    d.Feeds,
		follows:  d.Follows,
		cache:    d.Cache,
		views:    d.Views,
		images:   d.Images,
		notifier: d.Notifier,
	}
}

func RegisterRoutes(r fiber.Router, h *Handler) {
	login := auth.RequireLogin()

	r.Get("/", h.index)
	r.Get("/group/:slug/", h.groupPosts)
	r.Get("/profile/:username/", h.profile)
	r.Get("/posts/:id/", h.postDetail)

	r.Get("/create/", login, h.createForm)
	r.Post("/create/", login, h.createPost)
	r.Get("/posts/:id/edit/", login, h.editForm)
	r.Post("/posts/:id/edit/", login, h.editPost)
	r.Post("/posts/:id/comment/", login, h.addComment)

	r.Get("/follow/", login, h.followIndex)
	r.Post("/profile/:username/follow/", login, h.follow)
	r.Post("/profile/:username/unfollow/", login, h.unfollow)
}

func (h *Handler) render(c *fiber.Ctx, name string, data fiber.Map) error {
	return c.Render(name, auth.Bind(c, data), layout)
}

func viewer(c *fiber.Ctx) auth.Viewer {
	v, _ := auth.CurrentViewer(c)
	return v
}

func pageNumber(c *fiber.Ctx) int {
	return paginate.ParseNumber(c.Query("page"))
}

func postID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(apperr.ErrNotFound, "post %q", c.Params("id"))
	}
	return id, nil
}

// maxCachedPage is the deepest global feed page kept in the response cache.
// Deeper pages are rendered on every request.
const maxCachedPage = 50

// index serves the global feed. The feed fragment is cached per page; the
// layout around it is rendered per request for the current viewer.
func (h *Handler) index(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := pageNumber(c)

	render := func() ([]byte, error) {
		res, err := h.feeds.Feed(ctx, feed.Query{Kind: feed.KindGlobal}, page)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := h.views.Render(&buf, "posts/index", fiber.Map{
			"Posts": res.Posts,
			"Page":  res.Page,
		}); err != nil {
			return nil, errors.Wrap(err, "render global feed")
		}
		return buf.Bytes(), nil
	}

	var fragment []byte
	var err error
	if page > maxCachedPage {
		fragment, err = render()
	} else {
		fragment, err = h.cache.GetOrCompute(ctx, cache.Key(string(feed.KindGlobal), "", page), render)
	}
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := Layout(&out, h.views, layout, fragment, auth.Bind(c, fiber.Map{"Title": "Latest posts"})); err != nil {
		return errors.Wrap(err, "render layout")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(out.Bytes())
}

func (h *Handler) groupPosts(c *fiber.Ctx) error {
	res, err := h.feeds.Feed(c.UserContext(), feed.Query{Kind: feed.KindGroup, GroupSlug: c.Params("slug")}, pageNumber(c))
	if err != nil {
		return err
	}
	return h.render(c, "posts/group_list", fiber.Map{
		"Title": res.Group.Title,
		"Group": res.Group,
		"Posts": res.Posts,
		"Page":  res.Page,
	})
}

func (h *Handler) profile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	res, err := h.feeds.Feed(ctx, feed.Query{Kind: feed.KindAuthor, Username: c.Params("username")}, pageNumber(c))
	if err != nil {
		return err
	}

	v, signedIn := auth.CurrentViewer(c)
	following := false
	if signedIn {
		following, err = h.follows.IsFollowing(ctx, v.ID, res.Author.ID)
		if err != nil {
			return err
		}
	}

	return h.render(c, "posts/profile", fiber.Map{
		"Title":     "Profile of " + res.Author.DisplayName(),
		"Author":    res.Author,
		"Posts":     res.Posts,
		"Page":      res.Page,
		"Following": following,
		"CanFollow": signedIn && v.ID != res.Author.ID,
	})
}

func (h *Handler) followIndex(c *fiber.Ctx) error {
	res, err := h.feeds.Feed(c.UserContext(), feed.Query{Kind: feed.KindFollowing, ViewerID: viewer(c).ID}, pageNumber(c))
	if err != nil {
		return err
	}
	return h.render(c, "posts/follow", fiber.Map{
		"Title": "Following",
		"Posts": res.Posts,
		"Page":  res.Page,
	})
}

func (h *Handler) postDetail(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	return h.renderDetail(c, id, "", nil)
}

func (h *Handler) renderDetail(c *fiber.Ctx, id int64, commentText string, formErrors map[string]string) error {
	ctx := c.UserContext()
	post, err := h.blog.Post(ctx, id)
	if err != nil {
		return err
	}
	comments, err := h.blog.Comments(ctx, id)
	if err != nil {
		return err
	}
	count, err := h.blog.CountByAuthor(ctx, post.Author.ID)
	if err != nil {
		return err
	}

	return h.render(c, "posts/post_detail", fiber.Map{
		"Title":       blog.Excerpt(post.Text, 30),
		"Post":        post,
		"Comments":    comments,
		"PostCount":   count,
		"CanEdit":     viewer(c).ID == post.Author.ID,
		"CommentText": commentText,
		"Errors":      formErrors,
	})
}

func (h *Handler) renderPostForm(c *fiber.Ctx, postID int64, form blog.PostInput, formErrors map[string]string) error {
	groups, err := h.blog.Groups(c.UserContext())
	if err != nil {
		return err
	}
	title := "New post"
	if postID != 0 {
		title = "Edit post"
	}
	return h.render(c, "posts/create_post", fiber.Map{
		"Title":  title,
		"IsEdit": postID != 0,
		"PostID": postID,
		"Form":   form,
		"Groups": groups,
		"Errors": formErrors,
	})
}

func (h *Handler) createForm(c *fiber.Ctx) error {
	return h.renderPostForm(c, 0, blog.PostInput{}, nil)
}

// saveImage stores the uploaded image, if any. An unacceptable file comes
// back as a validation error on the image field.
func (h *Handler) saveImage(c *fiber.Ctx, f PostForm) (string, error) {
	if f.Image == nil {
		return "", nil
	}
	file, err := f.Image.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer file.Close()

	obj, err := h.images.SaveImage(c.UserContext(), viewer(c).ID, f.Image.Filename, f.Image.Header.Get(fiber.HeaderContentType), file)
	if errors.Is(err, storage.ErrUnsupportedType) {
		v := apperr.NewValidationError()
		v.Add("image", err.Error())
		return "", v
	}
	if err != nil {
		return "", err
	}
	return obj.URL, nil
}

func (h *Handler) createPost(c *fiber.Ctx) error {
	f, err := parsePostForm(c)
	if err != nil {
		return err
	}

	if err := f.Validate(); err != nil {
		v, _ := apperr.AsValidation(err)
		return h.renderPostForm(c, 0, f.Input(""), v.Fields)
	}

	image, err := h.saveImage(c, f)
	if v, ok := apperr.AsValidation(err); ok {
		return h.renderPostForm(c, 0, f.Input(""), v.Fields)
	}
	if err != nil {
		return err
	}

	me := viewer(c)
	post, err := h.blog.CreatePost(c.UserContext(), blog.Author{ID: me.ID, Username: me.Username}, f.Input(image))
	if v, ok := apperr.AsValidation(err); ok {
		return h.renderPostForm(c, 0, f.Input(image), v.Fields)
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"post_id": post.ID, "author": me.Username}).Info("[web] post created")
	if h.notifier != nil {
		h.notifier.PostCreated(c.UserContext(), post)
	}
	return c.Redirect("/profile/"+me.Username+"/", fiber.StatusFound)
}

// ownPost loads post id for editing, or reports false when the viewer is not
// its author.
func (h *Handler) ownPost(c *fiber.Ctx) (blog.Post, bool, error) {
	id, err := postID(c)
	if err != nil {
		return blog.Post{}, false, err
	}
	post, err := h.blog.Post(c.UserContext(), id)
	if err != nil {
		return blog.Post{}, false, err
	}
	return post, post.Author.ID == viewer(c).ID, nil
}

func detailURL(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10) + "/"
}

func (h *Handler) editForm(c *fiber.Ctx) error {
	post, mine, err := h.ownPost(c)
	if err != nil {
		return err
	}
	if !mine {
		return c.Redirect(detailURL(post.ID), fiber.StatusFound)
	}

	form := blog.PostInput{Text: post.Text, Image: post.Image}
	if post.Group != nil {
		form.GroupID = strconv.FormatInt(post.Group.ID, 10)
	}
	return h.renderPostForm(c, post.ID, form, nil)
}

func (h *Handler) editPost(c *fiber.Ctx) error {
	post, mine, err := h.ownPost(c)
	if err != nil {
		return err
	}
	if !mine {
		return c.Redirect(detailURL(post.ID), fiber.StatusFound)
	}

	f, err := parsePostForm(c)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		v, _ := apperr.AsValidation(err)
		return h.renderPostForm(c, post.ID, f.Input(post.Image), v.Fields)
	}

	image, err := h.saveImage(c, f)
	if v, ok := apperr.AsValidation(err); ok {
		return h.renderPostForm(c, post.ID, f.Input(post.Image), v.Fields)
	}
	if err != nil {
		return err
	}

	_, err = h.blog.UpdatePost(c.UserContext(), post.ID, viewer(c).ID, f.Input(image))
	if v, ok := apperr.AsValidation(err); ok {
		return h.renderPostForm(c, post.ID, f.Input(post.Image), v.Fields)
	}
	if errors.Is(err, apperr.ErrForbidden) {
		return c.Redirect(detailURL(post.ID), fiber.StatusFound)
	}
	if err != nil {
		return err
	}
	return c.Redirect(detailURL(post.ID), fiber.StatusFound)
}

func (h *Handler) addComment(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.blog.Post(ctx, id); err != nil {
		return err
	}

	f, err := parseCommentForm(c)
	if err != nil {
		return err
	}

	me := viewer(c)
	_, err = h.blog.AddComment(ctx, id, blog.Author{ID: me.ID, Username: me.Username}, f.Text)
	if v, ok := apperr.AsValidation(err); ok {
		return h.renderDetail(c, id, f.Text, v.Fields)
	}
	if err != nil {
		return err
	}
	return c.Redirect(detailURL(id), fiber.StatusFound)
}

func (h *Handler) follow(c *fiber.Ctx) error {
	ctx := c.UserContext()
	author, err := h.blog.AuthorByUsername(ctx, c.Params("username"))
	if err != nil {
		return err
	}
	if err := h.follows.Follow(ctx, viewer(c).ID, author.ID); err != nil {
		return err
	}
	return c.Redirect("/profile/"+author.Username+"/", fiber.StatusFound)
}

func (h *Handler) unfollow(c *fiber.Ctx) error {
	ctx := c.UserContext()
	author, err := h.blog.AuthorByUsername(ctx, c.Params("username"))
	if err != nil {
		return err
	}
	if err := h.follows.Unfollow(ctx, viewer(c).ID, author.ID); err != nil {
		return err
	}
	return c.Redirect("/profile/"+author.Username+"/", fiber.StatusFound)
}
