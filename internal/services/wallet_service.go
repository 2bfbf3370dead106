package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/kasrafouladi/Elmosyar/internal/metrics"
	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

const DefaultMaxAmount int64 = 1_000_000_000

type WalletService struct {
	store     repo.Store
	guard     *SaleGuard
	audit     *Auditor
	log       *slog.Logger
	maxAmount int64
}

func NewWalletService(store repo.Store, guard *SaleGuard, audit *Auditor, log *slog.Logger, maxAmount int64) *WalletService {
	if maxAmount <= 0 {
		maxAmount = DefaultMaxAmount
	}
	if guard == nil {
		guard = NewSaleGuard()
	}
	return &WalletService{store: store, guard: guard, audit: audit, log: log, maxAmount: maxAmount}
}

// TransferInput describes one sender-to-receiver movement. With Authority set
// it finalizes that pending payment instead of appending a new row; with
// ItemID set the item is locked, checked and sealed in the same transaction.
type TransferInput struct {
	FromUserID string
	ToUserID   string
	Amount     int64
	IsPurchase bool
	Authority  string
	ItemID     *int64
}

// ----------------- Helpers -----------------

func (s *WalletService) checkAmount(amount int64) error {
	if amount <= 0 || amount > s.maxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// fail records the outcome and normalizes err into an *Error.
func (s *WalletService) fail(op string, err error) error {
	e := AsError(op, err)
	metrics.RecordWalletOp(op, e.Code)
	if e.Kind == KindInternal {
		s.log.Error("wallet operation failed", "op", op, "err", e.Err)
	} else {
		s.log.Debug("wallet operation rejected", "op", op, "code", e.Code)
	}
	return e
}

func (s *WalletService) succeed(op, code string, t models.Transaction, actorID string) {
	metrics.RecordWalletOp(op, code)
	metrics.RecordAmount(string(t.Type), t.Amount)
	s.audit.Transaction(t, actorID, op)
}

func lockWallet(ctx context.Context, r repo.Repos, userID string) (models.Wallet, error) {
	w, err := r.Wallets().GetForUpdate(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Wallet{}, ErrWalletNotFound
	}
	return w, err
}

func formatItemID(id int64) string { return strconv.FormatInt(id, 10) }

// ----------------- Queries -----------------

// Wallet returns the user's wallet, creating an empty one on first access.
func (s *WalletService) Wallet(ctx context.Context, userID string) (models.Wallet, error) {
	w, err := s.store.Wallets().Get(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return models.Wallet{}, s.fail("wallet", err)
	}
	w, err = s.store.Wallets().Create(ctx, userID)
	switch {
	case errors.Is(err, repo.ErrConflict):
		// lost a race with a concurrent first access
		w, err = s.store.Wallets().Get(ctx, userID)
	case errors.Is(err, repo.ErrNotFound):
		return models.Wallet{}, s.fail("wallet", ErrUserNotFound)
	}
	if err != nil {
		return models.Wallet{}, s.fail("wallet", err)
	}
	return w, nil
}

func (s *WalletService) Transactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.store.Transactions().ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, s.fail("transactions", err)
	}
	return out, nil
}

// Purchases lists the successful item payments made by userID.
func (s *WalletService) Purchases(ctx context.Context, userID string) ([]models.Transaction, error) {
	out, err := s.store.Transactions().ListPurchases(ctx, userID)
	if err != nil {
		return nil, s.fail("purchases", err)
	}
	return out, nil
}

// Sales lists the successful item payments received by userID.
func (s *WalletService) Sales(ctx context.Context, userID string) ([]models.Transaction, error) {
	out, err := s.store.Transactions().ListSales(ctx, userID)
	if err != nil {
		return nil, s.fail("sales", err)
	}
	return out, nil
}

// ----------------- DEPOSIT -----------------

func (s *WalletService) Deposit(ctx context.Context, userID string, amount int64) (Result, error) {
	if err := s.checkAmount(amount); err != nil {
		return Result{}, s.fail("deposit", err)
	}

	var w models.Wallet
	var t models.Transaction
	err := s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		if w, err = lockWallet(ctx, r, userID); err != nil {
			return err
		}
		if w.Balance > math.MaxInt64-amount {
			return ErrInvalidAmount
		}
		if w, err = r.Wallets().UpdateBalance(ctx, w.ID, w.Balance+amount); err != nil {
			return err
		}
		t, err = r.Transactions().Create(ctx, models.Transaction{
			WalletID:   w.ID,
			Amount:     amount,
			Type:       models.TxnDeposit,
			Status:     models.TxnSuccess,
			FromUserID: &userID,
		})
		return err
	})
	if err != nil {
		return Result{}, s.fail("deposit", err)
	}

	s.succeed("deposit", CodeDepositSuccess, t, userID)
	return Result{
		Message: fmt.Sprintf("%d was added to your wallet", amount),
		Code:    CodeDepositSuccess,
		Data:    BalanceData{Balance: w.Balance},
	}, nil
}

// ----------------- WITHDRAW -----------------

func (s *WalletService) Withdraw(ctx context.Context, userID string, amount int64) (Result, error) {
	if err := s.checkAmount(amount); err != nil {
		return Result{}, s.fail("withdraw", err)
	}

	var w models.Wallet
	var t models.Transaction
	err := s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		if w, err = lockWallet(ctx, r, userID); err != nil {
			return err
		}
		if w.Balance < amount {
			return ErrInsufficientBalance
		}
		if w, err = r.Wallets().UpdateBalance(ctx, w.ID, w.Balance-amount); err != nil {
			return err
		}
		t, err = r.Transactions().Create(ctx, models.Transaction{
			WalletID:   w.ID,
			Amount:     amount,
			Type:       models.TxnWithdraw,
			Status:     models.TxnSuccess,
			FromUserID: &userID,
		})
		return err
	})
	if err != nil {
		return Result{}, s.fail("withdraw", err)
	}

	s.succeed("withdraw", CodeWithdrawSuccess, t, userID)
	return Result{
		Message: fmt.Sprintf("%d was withdrawn from your wallet", amount),
		Code:    CodeWithdrawSuccess,
		Data:    BalanceData{Balance: w.Balance},
	}, nil
}

// ----------------- TRANSFER / PURCHASE -----------------

// Transfer moves amount between two users' wallets.
func (s *WalletService) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (Result, error) {
	if fromUserID != toUserID {
		ok, err := s.store.Users().Exists(ctx, toUserID)
		if err != nil {
			return Result{}, s.fail("transfer", err)
		}
		if !ok {
			return Result{}, s.fail("transfer", ErrUserNotFound)
		}
	}
	return s.PurchaseOrTransfer(ctx, TransferInput{FromUserID: fromUserID, ToUserID: toUserID, Amount: amount})
}

// Purchase buys itemID at its listed price from its owner.
func (s *WalletService) Purchase(ctx context.Context, buyerID string, itemID int64) (Result, error) {
	item, err := s.store.Items().Get(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		err = ErrItemNotFound
	}
	if err != nil {
		return Result{}, s.fail("purchase", err)
	}
	terms, err := s.guard.Check(buyerID, item)
	if err != nil {
		return Result{}, s.fail("purchase", err)
	}
	return s.PurchaseOrTransfer(ctx, TransferInput{
		FromUserID: buyerID,
		ToUserID:   item.OwnerID,
		Amount:     terms.Price,
		IsPurchase: true,
		ItemID:     &itemID,
	})
}

// PurchaseOrTransfer validates in, then locks, moves funds and records the
// payment in one atomic unit.
func (s *WalletService) PurchaseOrTransfer(ctx context.Context, in TransferInput) (Result, error) {
	op := opName(in)
	if err := s.validateTransfer(in); err != nil {
		return Result{}, s.fail(op, err)
	}

	var sender models.Wallet
	var t models.Transaction
	err := s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		sender, t, err = s.applyTransfer(ctx, r, in)
		return err
	})
	if err != nil {
		return Result{}, s.fail(op, err)
	}

	res := transferResult(in, sender)
	s.transferCommitted(op, res.Code, in, t)
	return res, nil
}

func opName(in TransferInput) string {
	if in.IsPurchase {
		return "purchase"
	}
	return "transfer"
}

func (s *WalletService) validateTransfer(in TransferInput) error {
	if in.FromUserID == in.ToUserID {
		return ErrSelfTransfer
	}
	return s.checkAmount(in.Amount)
}

func (s *WalletService) transferCommitted(op, code string, in TransferInput, t models.Transaction) {
	s.succeed(op, code, t, in.FromUserID)
	if in.ItemID != nil {
		s.audit.ItemSold(*in.ItemID, in.FromUserID)
	}
}

func transferResult(in TransferInput, sender models.Wallet) Result {
	if in.IsPurchase {
		return Result{
			Message: "purchase completed",
			Code:    CodePurchaseSuccess,
			Data:    BalanceData{Balance: sender.Balance},
		}
	}
	return Result{
		Message: fmt.Sprintf("%d was transferred", in.Amount),
		Code:    CodeTransferSuccess,
		Data:    BalanceData{Balance: sender.Balance},
	}
}

// applyTransfer does the locked part of PurchaseOrTransfer inside r's
// transaction. Locks are taken in a fixed order on every path: the pending
// transaction row, then the item row, then the wallets in ascending user id.
func (s *WalletService) applyTransfer(ctx context.Context, r repo.Repos, in TransferInput) (models.Wallet, models.Transaction, error) {
	var pending *models.Transaction
	if in.Authority != "" {
		t, err := lockPending(ctx, r, in.Authority, in.FromUserID)
		if err != nil {
			return models.Wallet{}, models.Transaction{}, err
		}
		if t.Amount != in.Amount || t.ToUserID == nil || *t.ToUserID != in.ToUserID ||
			!sameItem(t.ItemID, in.ItemID) {
			return models.Wallet{}, models.Transaction{}, ErrInvalidAuthority
		}
		pending = &t
	}

	if in.ItemID != nil {
		item, err := s.guard.Lock(ctx, r, *in.ItemID)
		if err != nil {
			return models.Wallet{}, models.Transaction{}, err
		}
		terms, err := s.guard.Check(in.FromUserID, item)
		if err != nil {
			return models.Wallet{}, models.Transaction{}, err
		}
		if item.OwnerID != in.ToUserID || terms.Price != in.Amount {
			return models.Wallet{}, models.Transaction{}, ErrInvalidAmount
		}
	}

	sender, _, err := s.moveFunds(ctx, r, in.FromUserID, in.ToUserID, in.Amount)
	if err != nil {
		return models.Wallet{}, models.Transaction{}, err
	}

	var t models.Transaction
	if pending != nil {
		if err := r.Transactions().Finalize(ctx, pending.ID, models.TxnSuccess, true); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				err = ErrAlreadyProcessed
			}
			return models.Wallet{}, models.Transaction{}, err
		}
		t = *pending
		t.Status = models.TxnSuccess
		t.IsProcessed = true
	} else {
		from, to := in.FromUserID, in.ToUserID
		t, err = r.Transactions().Create(ctx, models.Transaction{
			WalletID:   sender.ID,
			Amount:     in.Amount,
			Type:       models.TxnPayment,
			Status:     models.TxnSuccess,
			FromUserID: &from,
			ToUserID:   &to,
			ItemID:     in.ItemID,
		})
		if err != nil {
			return models.Wallet{}, models.Transaction{}, err
		}
	}

	if in.ItemID != nil {
		if err := s.guard.Seal(ctx, r, *in.ItemID); err != nil {
			return models.Wallet{}, models.Transaction{}, err
		}
	}
	return sender, t, nil
}

// moveFunds locks both wallets in ascending user-id order, so that two
// opposite transfers cannot wait on each other, then debits and credits.
func (s *WalletService) moveFunds(ctx context.Context, r repo.Repos, fromUserID, toUserID string, amount int64) (models.Wallet, models.Wallet, error) {
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]models.Wallet, 2)
	for _, id := range []string{first, second} {
		w, err := lockWallet(ctx, r, id)
		if err != nil {
			return models.Wallet{}, models.Wallet{}, err
		}
		locked[id] = w
	}

	sender, receiver := locked[fromUserID], locked[toUserID]
	if sender.Balance < amount {
		return models.Wallet{}, models.Wallet{}, ErrInsufficientBalance
	}
	if receiver.Balance > math.MaxInt64-amount {
		return models.Wallet{}, models.Wallet{}, ErrInvalidAmount
	}

	sender, err := r.Wallets().UpdateBalance(ctx, sender.ID, sender.Balance-amount)
	if err != nil {
		return models.Wallet{}, models.Wallet{}, err
	}
	receiver, err = r.Wallets().UpdateBalance(ctx, receiver.ID, receiver.Balance+amount)
	if err != nil {
		return models.Wallet{}, models.Wallet{}, err
	}
	return sender, receiver, nil
}

// lockPending locks the payment row for authority and requires it to be
// still pending and unprocessed.
func lockPending(ctx context.Context, r repo.Repos, authority, fromUserID string) (models.Transaction, error) {
	t, err := r.Transactions().GetByAuthorityForUpdate(ctx, authority, fromUserID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Transaction{}, ErrInvalidAuthority
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if t.Final() || t.IsProcessed {
		return models.Transaction{}, ErrAlreadyProcessed
	}
	return t, nil
}

func sameItem(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
