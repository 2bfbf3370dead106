package repository

import (
	"context"
	"errors"

	"github.com/kasrafouladi/Elmosyar/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

type Users interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type Wallets interface {
	Get(ctx context.Context, userID string) (models.Wallet, error)
	// GetForUpdate takes an exclusive row lock held until the surrounding tx ends.
	GetForUpdate(ctx context.Context, userID string) (models.Wallet, error)
	Create(ctx context.Context, userID string) (models.Wallet, error)
	UpdateBalance(ctx context.Context, walletID string, balance int64) (models.Wallet, error)
}

type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	GetByAuthority(ctx context.Context, authority, fromUserID string) (models.Transaction, error)
	GetByAuthorityForUpdate(ctx context.Context, authority, fromUserID string) (models.Transaction, error)
	// Finalize moves a pending row to status. It returns ErrConflict when the
	// row is no longer pending.
	Finalize(ctx context.Context, id string, status models.TransactionStatus, processed bool) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	ListPurchases(ctx context.Context, userID string) ([]models.Transaction, error)
	ListSales(ctx context.Context, userID string) ([]models.Transaction, error)
}

type Items interface {
	Get(ctx context.Context, id int64) (models.Item, error)
	GetForUpdate(ctx context.Context, id int64) (models.Item, error)
	MarkSold(ctx context.Context, id int64) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

// Repos is the set of repositories bound to one connection or one transaction.
type Repos interface {
	Users() Users
	Wallets() Wallets
	Transactions() Transactions
	Items() Items
}

// Store hands out pool-bound repos and runs atomic units of work.
type Store interface {
	Repos
	AuditLogs() AuditLogs
	// WithTx runs fn inside a single database transaction. Any error rolls
	// back every write fn made.
	WithTx(ctx context.Context, fn func(Repos) error) error
}
