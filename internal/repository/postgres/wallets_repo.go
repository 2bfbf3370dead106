package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/kasrafouladi/Elmosyar/internal/models"
)

type walletsRepo struct{ q querier }

const walletColumns = `id, user_id, balance, created_at, updated_at`

func scanWallet(row interface{ Scan(...any) error }) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	return w, mapErr(err)
}

func (r *walletsRepo) Get(ctx context.Context, userID string) (models.Wallet, error) {
	return scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

func (r *walletsRepo) GetForUpdate(ctx context.Context, userID string) (models.Wallet, error) {
	return scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *walletsRepo) Create(ctx context.Context, userID string) (models.Wallet, error) {
	return scanWallet(r.q.QueryRow(ctx,
		`INSERT INTO wallets (id, user_id, balance)
		 VALUES ($1, $2, 0)
		 RETURNING `+walletColumns,
		uuid.NewString(), userID,
	))
}

func (r *walletsRepo) UpdateBalance(ctx context.Context, walletID string, balance int64) (models.Wallet, error) {
	return scanWallet(r.q.QueryRow(ctx,
		`UPDATE wallets
		    SET balance = $2,
		        updated_at = now()
		  WHERE id = $1
		  RETURNING `+walletColumns,
		walletID, balance,
	))
}
