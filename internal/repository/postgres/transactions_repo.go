package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

type transactionsRepo struct{ q querier }

const txnColumns = `id, wallet_id, amount, type, status, from_user_id, to_user_id,
	authority, item_id, is_processed, created_at`

func scanTxn(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Status, &t.FromUserID, &t.ToUserID,
		&t.Authority, &t.ItemID, &t.IsProcessed, &t.CreatedAt)
	return t, mapErr(err)
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	return scanTxn(r.q.QueryRow(ctx,
		`INSERT INTO transactions (
		   id, wallet_id, amount, type, status, from_user_id, to_user_id,
		   authority, item_id, is_processed
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING `+txnColumns,
		tx.ID, tx.WalletID, tx.Amount, tx.Type, tx.Status, tx.FromUserID, tx.ToUserID,
		tx.Authority, tx.ItemID, tx.IsProcessed,
	))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *transactionsRepo) GetByAuthority(ctx context.Context, authority, fromUserID string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx,
		`SELECT `+txnColumns+`
		   FROM transactions
		  WHERE authority = $1 AND from_user_id = $2`,
		authority, fromUserID))
}

func (r *transactionsRepo) GetByAuthorityForUpdate(ctx context.Context, authority, fromUserID string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx,
		`SELECT `+txnColumns+`
		   FROM transactions
		  WHERE authority = $1 AND from_user_id = $2
		  FOR UPDATE`,
		authority, fromUserID))
}

func (r *transactionsRepo) Finalize(ctx context.Context, id string, status models.TransactionStatus, processed bool) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE transactions
		    SET status = $2, is_processed = $3
		  WHERE id = $1 AND status = 'pending' AND NOT is_processed`,
		id, status, processed,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT t.id, t.wallet_id, t.amount, t.type, t.status, t.from_user_id, t.to_user_id,
		        t.authority, t.item_id, t.is_processed, t.created_at
		   FROM transactions t
		   JOIN wallets w ON w.id = t.wallet_id
		  WHERE w.user_id = $1 OR (t.to_user_id = $1 AND t.status = 'success')
		  ORDER BY t.created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset)
}

func (r *transactionsRepo) ListPurchases(ctx context.Context, userID string) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT `+txnColumns+`
		   FROM transactions
		  WHERE from_user_id = $1 AND type = 'payment' AND status = 'success' AND item_id IS NOT NULL
		  ORDER BY created_at DESC`,
		userID)
}

func (r *transactionsRepo) ListSales(ctx context.Context, userID string) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT `+txnColumns+`
		   FROM transactions
		  WHERE to_user_id = $1 AND type = 'payment' AND status = 'success' AND item_id IS NOT NULL
		  ORDER BY created_at DESC`,
		userID)
}

func (r *transactionsRepo) list(ctx context.Context, sql string, args ...any) ([]models.Transaction, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
