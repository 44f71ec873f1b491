package blog

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/db"
)

// PostColumns is the select list shared by every query that loads posts with
// their author and optional group. Callers scan it with ScanPost.
const PostColumns = `p.id, p.text, p.image, p.created_at,
		u.id, u.username, u.full_name,
		COALESCE(g.id, 0), COALESCE(g.slug, ''), COALESCE(g.title, ''), COALESCE(g.description, '')`

// PostJoins attaches the author and the optional group to posts aliased p.
const PostJoins = `FROM posts p
		JOIN users u ON u.id = p.author_id
		LEFT JOIN groups g ON g.id = p.group_id`

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// ScanPost reads one row selected with PostColumns.
func ScanPost(row pgx.Row) (Post, error) {
	var p Post
	var g Group
	if err := row.Scan(&p.ID, &p.Text, &p.Image, &p.CreatedAt,
		&p.Author.ID, &p.Author.Username, &p.Author.FullName,
		&g.ID, &g.Slug, &g.Title, &g.Description); err != nil {
		return Post{}, err
	}
	if g.ID != 0 {
		p.Group = &g
	}
	return p, nil
}

func (s *Service) Groups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, slug, title, description
		FROM groups
		ORDER BY title, id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list groups")
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Slug, &g.Title, &g.Description); err != nil {
			return nil, errors.Wrap(err, "scan group")
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Service) GroupBySlug(ctx context.Context, slug string) (Group, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, slug, title, description
		FROM groups WHERE slug=$1
	`, slug)
	return scanGroup(row, "group "+slug)
}

func (s *Service) groupByID(ctx context.Context, id int64) (Group, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, slug, title, description
		FROM groups WHERE id=$1
	`, id)
	return scanGroup(row, "group "+strconv.FormatInt(id, 10))
}

func scanGroup(row pgx.Row, what string) (Group, error) {
	var g Group
	if err := row.Scan(&g.ID, &g.Slug, &g.Title, &g.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, errors.Wrap(apperr.ErrNotFound, what)
		}
		return Group{}, errors.Wrap(err, what)
	}
	return g, nil
}

// CreateGroup registers a group. Groups are managed out-of-band, so this is
// only reachable from the admin surface.
func (s *Service) CreateGroup(ctx context.Context, g Group) (Group, error) {
	v := apperr.NewValidationError()
	g.Slug = strings.TrimSpace(g.Slug)
	g.Title = strings.TrimSpace(g.Title)
	if !slugPattern.MatchString(g.Slug) {
		v.Add("slug", "Enter a valid slug consisting of letters, numbers, underscores or hyphens.")
	}
	if g.Title == "" {
		v.Add("title", "This field is required.")
	}
	if err := v.OrNil(); err != nil {
		return Group{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO groups (slug, title, description)
		VALUES ($1,$2,$3)
		RETURNING id
	`, g.Slug, g.Title, g.Description)
	if err := row.Scan(&g.ID); err != nil {
		if db.IsConstraintViolation(err, db.CodeUniqueViolation) {
			return Group{}, errors.Wrap(apperr.ErrConflict, "group with this slug already exists")
		}
		return Group{}, errors.Wrap(err, "insert group")
	}
	return g, nil
}

func (s *Service) AuthorByUsername(ctx context.Context, username string) (Author, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, full_name
		FROM users WHERE username=$1
	`, username)
	var a Author
	if err := row.Scan(&a.ID, &a.Username, &a.FullName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Author{}, errors.Wrap(apperr.ErrNotFound, "author "+username)
		}
		return Author{}, errors.Wrap(err, "author "+username)
	}
	return a, nil
}

func (s *Service) Post(ctx context.Context, id int64) (Post, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+PostColumns+`
		`+PostJoins+`
		WHERE p.id=$1
	`, id)
	p, err := ScanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, errors.Wrapf(apperr.ErrNotFound, "post %d", id)
		}
		return Post{}, errors.Wrapf(err, "post %d", id)
	}
	return p, nil
}

// CountByAuthor returns how many posts authorID has written.
func (s *Service) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE author_id=$1`, authorID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count posts of %s", authorID)
	}
	return n, nil
}

// validate checks a post submission and resolves its group.
func (s *Service) validate(ctx context.Context, in PostInput) (*Group, error) {
	v := apperr.NewValidationError()
	if strings.TrimSpace(in.Text) == "" {
		v.Add("text", "This field is required.")
	}

	var group *Group
	if raw := strings.TrimSpace(in.GroupID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.Add("group", "Select a valid choice.")
		} else {
			g, err := s.groupByID(ctx, id)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				v.Add("group", "Select a valid choice.")
			case err != nil:
				return nil, err
			default:
				group = &g
			}
		}
	}
	return group, v.OrNil()
}

func groupIDArg(g *Group) *int64 {
	if g == nil {
		return nil
	}
	return &g.ID
}

func (s *Service) CreatePost(ctx context.Context, author Author, in PostInput) (Post, error) {
	group, err := s.validate(ctx, in)
	if err != nil {
		return Post{}, err
	}

	post := Post{Author: author, Group: group, Text: in.Text, Image: in.Image}
	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (author_id, group_id, text, image)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, author.ID, groupIDArg(group), post.Text, post.Image)
	if err := row.Scan(&post.ID, &post.CreatedAt); err != nil {
		return Post{}, errors.Wrap(err, "insert post")
	}
	return post, nil
}

// UpdatePost edits text, group and image of a post owned by editorID. An
// empty in.Image keeps the current image; created_at is never touched.
func (s *Service) UpdatePost(ctx context.Context, id int64, editorID string, in PostInput) (Post, error) {
	post, err := s.Post(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if post.Author.ID != editorID {
		return Post{}, errors.Wrapf(apperr.ErrForbidden, "post %d", id)
	}

	group, err := s.validate(ctx, in)
	if err != nil {
		return Post{}, err
	}

	post.Text = in.Text
	post.Group = group
	if in.Image != "" {
		post.Image = in.Image
	}

	_, err = s.db.Exec(ctx, `
		UPDATE posts
		SET text=$2, group_id=$3, image=$4
		WHERE id=$1
	`, post.ID, post.Text, groupIDArg(group), post.Image)
	if err != nil {
		return Post{}, errors.Wrapf(err, "update post %d", id)
	}
	return post, nil
}

// Comments returns the comments of a post in the order they were written.
func (s *Service) Comments(ctx context.Context, postID int64) ([]Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.post_id, c.text, c.created_at, u.id, u.username, u.full_name
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id=$1
		ORDER BY c.created_at, c.id
	`, postID)
	if err != nil {
		return nil, errors.Wrapf(err, "comments of post %d", postID)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Text, &c.CreatedAt, &c.Author.ID, &c.Author.Username, &c.Author.FullName); err != nil {
			return nil, errors.Wrap(err, "scan comment")
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Service) AddComment(ctx context.Context, postID int64, author Author, text string) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		v := apperr.NewValidationError()
		v.Add("text", "This field is required.")
		return Comment{}, v
	}

	c := Comment{PostID: postID, Author: author, Text: text}
	row := s.db.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, text)
		VALUES ($1,$2,$3)
		RETURNING id, created_at
	`, postID, author.ID, text)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return Comment{}, errors.Wrapf(err, "insert comment on post %d", postID)
	}
	return c, nil
}
