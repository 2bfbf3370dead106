package models

import "time"

type TransactionType string
const (
	TxnWithdraw TransactionType = "withdraw"
	TxnDeposit  TransactionType = "deposit"
	TxnPayment  TransactionType = "payment"
	TxnReceive  TransactionType = "receive"
	TxnRefund   TransactionType = "refund"
)

type TransactionStatus string
const (
	TxnPending TransactionStatus = "pending"
	TxnSuccess TransactionStatus = "success"
	TxnFailed  TransactionStatus = "failed"
)

// Transaction is a ledger entry. Amount is always positive; Type gives the direction.
type Transaction struct {
	ID          string            `json:"id"`
	WalletID    string            `json:"wallet_id"`
	Amount      int64             `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	FromUserID  *string           `json:"from_user_id,omitempty"`
	ToUserID    *string           `json:"to_user_id,omitempty"`
	Authority   *string           `json:"authority,omitempty"`
	ItemID      *int64            `json:"item_id,omitempty"`
	IsProcessed bool              `json:"is_processed"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Final reports whether the transaction left the pending state.
func (t Transaction) Final() bool { return t.Status != TxnPending }
