package repository

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql operations shared by *sql.DB and
// *sql.Tx. Repositories are constructed over a DBTX so the same queries run
// either on the pool or inside an explicit transaction (see WithTx on the
// individual repositories).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
