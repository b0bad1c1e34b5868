package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and passes the
// infra-defined handle (pgx.Tx for Postgres) through tx. Repositories accept a
// nil tx for the non-transactional path and take row locks when given a real one.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
