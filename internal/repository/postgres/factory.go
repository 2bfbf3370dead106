package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repositories struct {
	users        *usersRepo
	wallets      *walletsRepo
	transactions *transactionsRepo
	items        *itemsRepo
}

func newRepositories(q querier) *repositories {
	return &repositories{
		users:        &usersRepo{q},
		wallets:      &walletsRepo{q},
		transactions: &transactionsRepo{q},
		items:        &itemsRepo{q},
	}
}

func (r *repositories) Users() repo.Users               { return r.users }
func (r *repositories) Wallets() repo.Wallets           { return r.wallets }
func (r *repositories) Transactions() repo.Transactions { return r.transactions }
func (r *repositories) Items() repo.Items               { return r.items }

type Store struct {
	*repositories
	pool  *pgxpool.Pool
	audit *auditLogsRepo
}

var _ repo.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		repositories: newRepositories(pool),
		pool:         pool,
		audit:        &auditLogsRepo{pool},
	}
}

func (s *Store) AuditLogs() repo.AuditLogs { return s.audit }

// WithTx runs fn in a read-committed transaction. Writers serialize on
// SELECT ... FOR UPDATE row locks rather than on serializable retries.
// BeginTxFunc rolls back when fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Repos) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return repo.ErrConflict
		case pgForeignKeyViolation:
			// the referenced user or post is gone
			return repo.ErrNotFound
		}
	}
	return err
}
