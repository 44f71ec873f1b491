package db

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

func AsPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
