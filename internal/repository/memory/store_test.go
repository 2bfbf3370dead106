package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	s.AddUser(models.User{ID: "u1"})
	w := s.PutWallet("u1", 100)
	s.PutItem(models.Item{ID: 1, OwnerID: "u2", Attributes: map[string]any{"price": 10}})
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(r repo.Repos) error {
		_, err := r.Wallets().UpdateBalance(ctx, w.ID, 50)
		require.NoError(t, err)
		_, err = r.Transactions().Create(ctx, models.Transaction{WalletID: w.ID, Amount: 50, Type: models.TxnWithdraw, Status: models.TxnSuccess})
		require.NoError(t, err)
		require.NoError(t, r.Items().MarkSold(ctx, 1))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Wallets().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)
	assert.Empty(t, s.AllTransactions())
	it, err := s.Items().Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, it.Attributes[models.AttrIsSoldOut])
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s := NewStore()
	s.AddUser(models.User{ID: "u1"})
	w := s.PutWallet("u1", 100)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(r repo.Repos) error {
			_, err := r.Wallets().UpdateBalance(ctx, w.ID, 0)
			require.NoError(t, err)
			panic("boom")
		})
	})

	got, err := s.Wallets().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)
	require.NoError(t, s.WithTx(ctx, func(r repo.Repos) error {
		_, err := r.Wallets().UpdateBalance(ctx, w.ID, 150)
		return err
	}))
}

func TestTransactions_ListByUserCounterpartySettledOnly(t *testing.T) {
	s := NewStore()
	s.AddUser(models.User{ID: "buyer"})
	s.AddUser(models.User{ID: "seller"})
	bw := s.PutWallet("buyer", 100)
	s.PutWallet("seller", 0)
	ctx := context.Background()

	buyer, seller := "buyer", "seller"
	for _, st := range []models.TransactionStatus{models.TxnPending, models.TxnFailed, models.TxnSuccess} {
		_, err := s.Transactions().Create(ctx, models.Transaction{
			WalletID: bw.ID, Amount: 10, Type: models.TxnPayment, Status: st,
			FromUserID: &buyer, ToUserID: &seller,
		})
		require.NoError(t, err)
	}

	mine, err := s.Transactions().ListByUser(ctx, "buyer", 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	theirs, err := s.Transactions().ListByUser(ctx, "seller", 0, 0)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, models.TxnSuccess, theirs[0].Status)
}

func TestWithTx_Commits(t *testing.T) {
	s := NewStore()
	w := s.PutWallet("u1", 100)
	ctx := context.Background()

	err := s.WithTx(ctx, func(r repo.Repos) error {
		_, err := r.Wallets().UpdateBalance(ctx, w.ID, 70)
		return err
	})
	require.NoError(t, err)

	got, err := s.Wallets().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), got.Balance)
}

func TestWithTx_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(repo.Repos) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWallets_Constraints(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Wallets().Create(ctx, "ghost")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	s.AddUser(models.User{ID: "u1"})
	w, err := s.Wallets().Create(ctx, "u1")
	require.NoError(t, err)
	_, err = s.Wallets().Create(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrConflict)

	_, err = s.Wallets().UpdateBalance(ctx, w.ID, -1)
	assert.Error(t, err)
}

func TestTransactions_AuthorityAndFinalize(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	auth, buyer := "a-1", "buyer"

	created, err := s.Transactions().Create(ctx, models.Transaction{
		Amount: 5, Type: models.TxnPayment, Status: models.TxnPending, FromUserID: &buyer, Authority: &auth,
	})
	require.NoError(t, err)

	_, err = s.Transactions().Create(ctx, models.Transaction{Authority: &auth, FromUserID: &buyer})
	assert.ErrorIs(t, err, repo.ErrConflict)

	got, err := s.Transactions().GetByAuthority(ctx, auth, buyer)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	_, err = s.Transactions().GetByAuthority(ctx, auth, "someone-else")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, s.Transactions().Finalize(ctx, created.ID, models.TxnSuccess, true))
	assert.ErrorIs(t, s.Transactions().Finalize(ctx, created.ID, models.TxnFailed, false), repo.ErrConflict)
}
