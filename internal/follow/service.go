// Package follow owns the directed subscription edges between readers and
// authors.
package follow

import (
	"context"

	"github.com/pkg/errors"

	"backend-yatube/internal/apperr"
	"backend-yatube/internal/db"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// IsFollowing is false for anonymous viewers and for an author looking at
// their own profile.
func (s *Service) IsFollowing(ctx context.Context, viewerID, authorID string) (bool, error) {
	if viewerID == "" || viewerID == authorID {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id=$1 AND author_id=$2)
	`, viewerID, authorID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check follow")
	}
	return exists, nil
}

func (s *Service) AuthorsFollowedBy(ctx context.Context, viewerID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT author_id FROM follows WHERE follower_id=$1
	`, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "list followed authors")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan followed author")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Follow subscribes viewerID to authorID. Self-follows and repeated follows
// succeed without creating an edge, including when a concurrent request wins
// the insert.
func (s *Service) Follow(ctx context.Context, viewerID, authorID string) error {
	if viewerID == authorID {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO follows (follower_id, author_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, viewerID, authorID)
	if err != nil {
		if db.IsConstraintViolation(err, db.CodeUniqueViolation, db.CodeCheckViolation) {
			return nil
		}
		return errors.Wrap(err, "insert follow")
	}
	return nil
}

// Unfollow removes the edge and reports apperr.ErrNotFound if there was none.
func (s *Service) Unfollow(ctx context.Context, viewerID, authorID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM follows WHERE follower_id=$1 AND author_id=$2
	`, viewerID, authorID)
	if err != nil {
		return errors.Wrap(err, "delete follow")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(apperr.ErrNotFound, "follow")
	}
	return nil
}
