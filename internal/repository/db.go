package repository

import (
	"context"
	"database/sql"
)

type scanner interface {
	Scan(dest ...any) error
}

// Querier is the read surface shared by *sql.DB and *sql.Tx. Queries that
// feed decisions inside an open transaction take it so they observe that
// transaction's own writes instead of the pool's snapshot.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
