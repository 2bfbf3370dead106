package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

// repos binds the repository views to either the committed state (guarded by
// the store mutex) or a transaction's working copy (already exclusive).
type repos struct {
	lock sync.Locker
	st   func() *state
}

func (r *repos) Users() repo.Users               { return usersRepo{r} }
func (r *repos) Wallets() repo.Wallets           { return walletsRepo{r} }
func (r *repos) Transactions() repo.Transactions { return transactionsRepo{r} }
func (r *repos) Items() repo.Items               { return itemsRepo{r} }

type usersRepo struct{ *repos }

func (r usersRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.st().users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r usersRepo) Exists(_ context.Context, id string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, ok := r.st().users[id]
	return ok, nil
}

type walletsRepo struct{ *repos }

func (r walletsRepo) Get(_ context.Context, userID string) (models.Wallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	w, ok := r.st().wallets[userID]
	if !ok {
		return models.Wallet{}, repo.ErrNotFound
	}
	return w, nil
}

func (r walletsRepo) GetForUpdate(ctx context.Context, userID string) (models.Wallet, error) {
	return r.Get(ctx, userID)
}

func (r walletsRepo) Create(_ context.Context, userID string) (models.Wallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	st := r.st()
	if _, ok := st.users[userID]; !ok {
		return models.Wallet{}, repo.ErrNotFound
	}
	if _, ok := st.wallets[userID]; ok {
		return models.Wallet{}, repo.ErrConflict
	}
	now := time.Now()
	w := models.Wallet{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	st.wallets[userID] = w
	return w, nil
}

func (r walletsRepo) UpdateBalance(_ context.Context, walletID string, balance int64) (models.Wallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if balance < 0 {
		return models.Wallet{}, errNegativeBalance
	}
	st := r.st()
	for uid, w := range st.wallets {
		if w.ID == walletID {
			w.Balance = balance
			w.UpdatedAt = time.Now()
			st.wallets[uid] = w
			return w, nil
		}
	}
	return models.Wallet{}, repo.ErrNotFound
}

type transactionsRepo struct{ *repos }

func (r transactionsRepo) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	st := r.st()
	if tx.Authority != nil {
		for _, t := range st.txns {
			if t.Authority != nil && *t.Authority == *tx.Authority {
				return models.Transaction{}, repo.ErrConflict
			}
		}
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, ok := st.txns[tx.ID]; ok {
		return models.Transaction{}, repo.ErrConflict
	}
	tx.CreatedAt = time.Now()
	st.seq++
	st.txns[tx.ID] = tx
	st.txnSeq[tx.ID] = st.seq
	return tx, nil
}

func (r transactionsRepo) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	t, ok := r.st().txns[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return t, nil
}

func (r transactionsRepo) GetByAuthority(_ context.Context, authority, fromUserID string) (models.Transaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, t := range r.st().txns {
		if t.Authority != nil && *t.Authority == authority && t.FromUserID != nil && *t.FromUserID == fromUserID {
			return t, nil
		}
	}
	return models.Transaction{}, repo.ErrNotFound
}

func (r transactionsRepo) GetByAuthorityForUpdate(ctx context.Context, authority, fromUserID string) (models.Transaction, error) {
	return r.GetByAuthority(ctx, authority, fromUserID)
}

func (r transactionsRepo) Finalize(_ context.Context, id string, status models.TransactionStatus, processed bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	st := r.st()
	t, ok := st.txns[id]
	if !ok || t.Status != models.TxnPending || t.IsProcessed {
		return repo.ErrConflict
	}
	t.Status = status
	t.IsProcessed = processed
	st.txns[id] = t
	return nil
}

func (r transactionsRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	st := r.st()
	walletID := ""
	if w, ok := st.wallets[userID]; ok {
		walletID = w.ID
	}
	out := r.filter(st, func(t models.Transaction) bool {
		return (walletID != "" && t.WalletID == walletID) || (t.ToUserID != nil && *t.ToUserID == userID && t.Status == models.TxnSuccess)
	})
	if offset >= len(out) {
		return []models.Transaction{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r transactionsRepo) ListPurchases(_ context.Context, userID string) ([]models.Transaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.filter(r.st(), func(t models.Transaction) bool {
		return soldItem(t) && t.FromUserID != nil && *t.FromUserID == userID
	}), nil
}

func (r transactionsRepo) ListSales(_ context.Context, userID string) ([]models.Transaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.filter(r.st(), func(t models.Transaction) bool {
		return soldItem(t) && t.ToUserID != nil && *t.ToUserID == userID
	}), nil
}

func soldItem(t models.Transaction) bool {
	return t.Type == models.TxnPayment && t.Status == models.TxnSuccess && t.ItemID != nil
}

// filter returns matching rows newest first.
func (r transactionsRepo) filter(st *state, keep func(models.Transaction) bool) []models.Transaction {
	out := []models.Transaction{}
	for _, t := range st.txns {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return st.txnSeq[out[i].ID] > st.txnSeq[out[j].ID] })
	return out
}

type itemsRepo struct{ *repos }

func (r itemsRepo) Get(_ context.Context, id int64) (models.Item, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	it, ok := r.st().items[id]
	if !ok {
		return models.Item{}, repo.ErrNotFound
	}
	return copyItem(it), nil
}

func (r itemsRepo) GetForUpdate(ctx context.Context, id int64) (models.Item, error) {
	return r.Get(ctx, id)
}

func (r itemsRepo) MarkSold(_ context.Context, id int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	st := r.st()
	it, ok := st.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	it = copyItem(it)
	it.Attributes[models.AttrIsSoldOut] = true
	st.items[id] = it
	return nil
}
