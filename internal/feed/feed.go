// Package feed selects, orders and pages the posts shown by each feed view.
package feed

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/blog"
	"backend-yatube/internal/db"
	"backend-yatube/internal/paginate"
)

type Kind string

const (
	KindGlobal    Kind = "global"
	KindGroup     Kind = "group"
	KindAuthor    Kind = "author"
	KindFollowing Kind = "following"
)

// Query names a feed. GroupSlug scopes KindGroup, Username scopes KindAuthor
// and ViewerID scopes KindFollowing.
type Query struct {
	Kind      Kind
	GroupSlug string
	Username  string
	ViewerID  string
}

type Result struct {
	Posts  []blog.Post
	Page   paginate.Page
	Group  *blog.Group
	Author *blog.Author
}

// FollowGraph is the part of the follow service the following feed needs.
type FollowGraph interface {
	AuthorsFollowedBy(ctx context.Context, viewerID string) ([]string, error)
}

type Service struct {
	db      db.Querier
	blog    *blog.Service
	follows FollowGraph
}

func NewService(db db.Querier, blogSvc *blog.Service, follows FollowGraph) *Service {
	return &Service{db: db, blog: blogSvc, follows: follows}
}

// Feed returns page `page` of the feed described by q, newest posts first.
func (s *Service) Feed(ctx context.Context, q Query, page int) (Result, error) {
	switch q.Kind {
	case KindGlobal:
		return s.list(ctx, Result{}, "", nil, page)

	case KindGroup:
		g, err := s.blog.GroupBySlug(ctx, q.GroupSlug)
		if err != nil {
			return Result{}, err
		}
		return s.list(ctx, Result{Group: &g}, "WHERE p.group_id = $1", []any{g.ID}, page)

	case KindAuthor:
		a, err := s.blog.AuthorByUsername(ctx, q.Username)
		if err != nil {
			return Result{}, err
		}
		return s.list(ctx, Result{Author: &a}, "WHERE p.author_id = $1", []any{a.ID}, page)

	case KindFollowing:
		if q.ViewerID == "" {
			return Result{}, apperr.ErrUnauthenticated
		}
		ids, err := s.follows.AuthorsFollowedBy(ctx, q.ViewerID)
		if err != nil {
			return Result{}, err
		}
		if len(ids) == 0 {
			return Result{Page: paginate.New(0, page, paginate.PerPage)}, nil
		}
		return s.list(ctx, Result{}, "WHERE p.author_id = ANY($1::uuid[])", []any{ids}, page)
	}
	return Result{}, errors.Errorf("unknown feed kind %q", q.Kind)
}

func (s *Service) list(ctx context.Context, res Result, where string, args []any, page int) (Result, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p `+where, args...).Scan(&total)
	if err != nil {
		return Result{}, errors.Wrap(err, "count feed")
	}
	res.Page = paginate.New(total, page, paginate.PerPage)
	if total == 0 {
		return res, nil
	}

	n := len(args)
	query := fmt.Sprintf(`
		SELECT %s
		%s
		%s
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $%d OFFSET $%d
	`, blog.PostColumns, blog.PostJoins, where, n+1, n+2)

	rows, err := s.db.Query(ctx, query, append(args, res.Page.Limit(), res.Page.Offset())...)
	if err != nil {
		return Result{}, errors.Wrap(err, "select feed")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := blog.ScanPost(rows)
		if err != nil {
			return Result{}, errors.Wrap(err, "scan feed post")
		}
		res.Posts = append(res.Posts, p)
	}
	if err := rows.Err(); err != nil {
		return Result{}, errors.Wrap(err, "read feed")
	}
	return res, nil
}
