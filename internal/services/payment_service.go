package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/kasrafouladi/Elmosyar/internal/gateway"
	"github.com/kasrafouladi/Elmosyar/internal/metrics"
	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

// ReplayGuard keeps concurrent callbacks for one authority from reaching the
// gateway together.
type ReplayGuard interface {
	Acquire(ctx context.Context, authority string) (bool, error)
	Release(ctx context.Context, authority string) error
}

// Session is what the buyer needs to complete a pending payment.
type Session struct {
	Authority   string `json:"authority"`
	Amount      int64  `json:"amount"`
	ItemID      int64  `json:"item_id"`
	RedirectURL string `json:"redirect_url"`
}

type PaymentService struct {
	store        repo.Store
	wallets      *WalletService
	guard        *SaleGuard
	gw           gateway.Gateway
	replay       ReplayGuard
	audit        *Auditor
	log          *slog.Logger
	redirectBase string
}

type PaymentDeps struct {
	Store        repo.Store
	Wallets      *WalletService
	Guard        *SaleGuard
	Gateway      gateway.Gateway
	Replay       ReplayGuard
	Audit        *Auditor
	Log          *slog.Logger
	RedirectBase string
}

func NewPaymentService(d PaymentDeps) *PaymentService {
	if d.Guard == nil {
		d.Guard = NewSaleGuard()
	}
	return &PaymentService{
		store:        d.Store,
		wallets:      d.Wallets,
		guard:        d.Guard,
		gw:           d.Gateway,
		replay:       d.Replay,
		audit:        d.Audit,
		log:          d.Log,
		redirectBase: d.RedirectBase,
	}
}

// CreateSession opens a pending payment for itemID. No money moves until Verify.
func (s *PaymentService) CreateSession(ctx context.Context, buyerID string, itemID int64) (Session, error) {
	const op = "payment_create"

	item, err := s.store.Items().Get(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		err = ErrItemNotFound
	}
	if err != nil {
		return Session{}, s.wallets.fail(op, err)
	}
	terms, err := s.guard.Check(buyerID, item)
	if err != nil {
		return Session{}, s.wallets.fail(op, err)
	}
	if err := s.wallets.checkAmount(terms.Price); err != nil {
		return Session{}, s.wallets.fail(op, err)
	}

	w, err := s.store.Wallets().Get(ctx, buyerID)
	if errors.Is(err, repo.ErrNotFound) {
		err = ErrWalletNotFound
	}
	if err != nil {
		return Session{}, s.wallets.fail(op, err)
	}

	authority := uuid.NewString()
	owner := item.OwnerID
	t, err := s.store.Transactions().Create(ctx, models.Transaction{
		WalletID:   w.ID,
		Amount:     terms.Price,
		Type:       models.TxnPayment,
		Status:     models.TxnPending,
		FromUserID: &buyerID,
		ToUserID:   &owner,
		Authority:  &authority,
		ItemID:     &itemID,
	})
	if err != nil {
		return Session{}, s.wallets.fail(op, err)
	}

	metrics.RecordWalletOp(op, CodeSessionCreated)
	s.audit.Transaction(t, buyerID, "payment_session_created")
	return Session{
		Authority:   authority,
		Amount:      terms.Price,
		ItemID:      itemID,
		RedirectURL: s.redirectURL(authority),
	}, nil
}

func (s *PaymentService) redirectURL(authority string) string {
	if s.redirectBase == "" {
		return ""
	}
	return s.redirectBase + "?authority=" + url.QueryEscape(authority)
}

// Verify resolves the pending payment for authority exactly once. The gateway
// is asked before any row lock is taken; the outcome is then applied under
// lock after re-checking that nobody else resolved the payment or bought the
// item meanwhile. A declined payment is a normal Result with PAYMENT_FAILED.
func (s *PaymentService) Verify(ctx context.Context, buyerID, authority string) (Result, error) {
	const op = "payment_verify"
	if authority == "" {
		return Result{}, s.wallets.fail(op, ErrInvalidAuthority)
	}

	pending, err := s.precheck(ctx, buyerID, authority)
	if err != nil {
		return Result{}, s.wallets.fail(op, err)
	}

	if s.replay != nil {
		ok, err := s.replay.Acquire(ctx, authority)
		if err != nil {
			// the row lock still guarantees single application
			s.log.Warn("replay guard unavailable", "err", err)
		} else if !ok {
			return Result{}, s.wallets.fail(op, ErrAlreadyProcessed)
		} else {
			defer func() {
				if err := s.replay.Release(context.WithoutCancel(ctx), authority); err != nil {
					s.log.Warn("replay guard release failed", "err", err)
				}
			}()
		}
	}

	decision, err := s.gw.Verify(ctx, authority, pending.Amount)
	if err != nil {
		return Result{}, s.wallets.fail(op, err)
	}

	if !decision.Approved {
		return s.decline(ctx, buyerID, authority)
	}

	in := TransferInput{
		FromUserID: buyerID,
		ToUserID:   *pending.ToUserID,
		Amount:     pending.Amount,
		IsPurchase: pending.ItemID != nil,
		Authority:  authority,
		ItemID:     pending.ItemID,
	}
	if err := s.wallets.validateTransfer(in); err != nil {
		return Result{}, s.wallets.fail(op, err)
	}

	var sender models.Wallet
	var t models.Transaction
	err = s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		sender, t, err = s.wallets.applyTransfer(ctx, r, in)
		return err
	})
	if err != nil {
		return Result{}, s.wallets.fail(op, err)
	}

	res := transferResult(in, sender)
	s.wallets.transferCommitted(op, res.Code, in, t)
	return res, nil
}

// precheck rejects unknown, resolved, or unsellable payments without locking.
func (s *PaymentService) precheck(ctx context.Context, buyerID, authority string) (models.Transaction, error) {
	t, err := s.store.Transactions().GetByAuthority(ctx, authority, buyerID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Transaction{}, ErrInvalidAuthority
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if t.Final() || t.IsProcessed {
		return models.Transaction{}, ErrAlreadyProcessed
	}
	if t.ToUserID == nil {
		// the seller's account is gone
		return models.Transaction{}, ErrUserNotFound
	}
	if t.ItemID != nil {
		item, err := s.store.Items().Get(ctx, *t.ItemID)
		if errors.Is(err, repo.ErrNotFound) {
			return models.Transaction{}, ErrItemNotFound
		}
		if err != nil {
			return models.Transaction{}, err
		}
		if terms, _ := s.guard.Terms(item); terms.SoldOut {
			return models.Transaction{}, ErrItemSold
		}
	}
	return t, nil
}

// decline marks the pending row failed. The authority stays on the row, so a
// replayed callback sees a resolved payment.
func (s *PaymentService) decline(ctx context.Context, buyerID, authority string) (Result, error) {
	const op = "payment_verify"

	var t models.Transaction
	var w models.Wallet
	err := s.store.WithTx(ctx, func(r repo.Repos) error {
		var err error
		if t, err = lockPending(ctx, r, authority, buyerID); err != nil {
			return err
		}
		if err := r.Transactions().Finalize(ctx, t.ID, models.TxnFailed, false); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrAlreadyProcessed
			}
			return err
		}
		t.Status = models.TxnFailed
		w, err = r.Wallets().Get(ctx, buyerID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrWalletNotFound
		}
		return err
	})
	if err != nil {
		return Result{}, s.wallets.fail(op, err)
	}

	metrics.RecordWalletOp(op, CodePaymentFailed)
	s.audit.Transaction(t, buyerID, "payment_declined")
	return Result{
		Message: "payment was not approved",
		Code:    CodePaymentFailed,
		Data:    BalanceData{Balance: w.Balance},
	}, nil
}
