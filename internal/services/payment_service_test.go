package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kasrafouladi/Elmosyar/internal/gateway"
	"github.com/kasrafouladi/Elmosyar/internal/models"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Verify(ctx context.Context, authority string, amount int64) (gateway.Decision, error) {
	args := m.Called(ctx, authority, amount)
	return args.Get(0).(gateway.Decision), args.Error(1)
}

// heldGuard reports every authority as already held.
type heldGuard struct{}

func (heldGuard) Acquire(context.Context, string) (bool, error) { return false, nil }
func (heldGuard) Release(context.Context, string) error         { return nil }

type paymentFixture struct {
	*fixture
	payments *PaymentService
}

func newPaymentFixture(t *testing.T, gw gateway.Gateway, replay ReplayGuard) *paymentFixture {
	t.Helper()
	f := newFixture(t, "buyer", "seller")
	f.store.PutWallet("buyer", 1000)
	f.store.PutWallet("seller", 0)
	f.item(9, "seller", map[string]any{"price": 400})
	return &paymentFixture{
		fixture: f,
		payments: NewPaymentService(PaymentDeps{
			Store:        f.store,
			Wallets:      f.wallets,
			Gateway:      gw,
			Replay:       replay,
			Log:          f.log,
			RedirectBase: "https://pay.example/start",
		}),
	}
}

func TestCreateSession(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: true}, nil)

	s, err := f.payments.CreateSession(context.Background(), "buyer", 9)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Authority)
	assert.Equal(t, int64(400), s.Amount)
	assert.Equal(t, int64(9), s.ItemID)
	assert.Equal(t, "https://pay.example/start?authority="+s.Authority, s.RedirectURL)

	txns := f.store.AllTransactions()
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnPending, txns[0].Status)
	assert.Equal(t, s.Authority, *txns[0].Authority)
	assert.Equal(t, "seller", *txns[0].ToUserID)
	assert.False(t, txns[0].IsProcessed)

	assert.Equal(t, int64(1000), f.balance(t, "buyer"))
	assert.False(t, f.sold(t, 9))
}

func TestCreateSession_Rejections(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: true}, nil)
	f.item(10, "seller", map[string]any{"price": 5, "isSoldOut": true})
	f.item(11, "seller", map[string]any{"price": "free"})
	f.store.AddUser(models.User{ID: "walletless"})

	ctx := context.Background()
	_, err := f.payments.CreateSession(ctx, "buyer", 404)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = f.payments.CreateSession(ctx, "seller", 9)
	assert.ErrorIs(t, err, ErrSelfPurchase)
	_, err = f.payments.CreateSession(ctx, "buyer", 10)
	assert.ErrorIs(t, err, ErrItemSold)
	_, err = f.payments.CreateSession(ctx, "buyer", 11)
	assert.ErrorIs(t, err, ErrPriceMissing)
	_, err = f.payments.CreateSession(ctx, "walletless", 9)
	assert.ErrorIs(t, err, ErrWalletNotFound)

	assert.Empty(t, f.store.AllTransactions())
}

func TestVerify_Approved(t *testing.T) {
	gw := new(mockGateway)
	f := newPaymentFixture(t, gw, nil)
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	gw.On("Verify", mock.Anything, s.Authority, int64(400)).Return(gateway.Decision{Approved: true}, nil).Once()

	res, err := f.payments.Verify(ctx, "buyer", s.Authority)
	require.NoError(t, err)
	assert.Equal(t, CodePurchaseSuccess, res.Code)
	assert.Equal(t, int64(600), res.Data.Balance)
	assert.Equal(t, int64(400), f.balance(t, "seller"))
	assert.True(t, f.sold(t, 9))

	txns := f.store.AllTransactions()
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnSuccess, txns[0].Status)
	assert.True(t, txns[0].IsProcessed)

	// a replayed callback is rejected before reaching the gateway
	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, int64(600), f.balance(t, "buyer"))
	assert.Equal(t, int64(400), f.balance(t, "seller"))
	gw.AssertExpectations(t)
}

func TestVerify_Declined(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: false}, nil)
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)

	res, err := f.payments.Verify(ctx, "buyer", s.Authority)
	require.NoError(t, err)
	assert.Equal(t, CodePaymentFailed, res.Code)
	assert.Equal(t, int64(1000), res.Data.Balance)

	txns := f.store.AllTransactions()
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnFailed, txns[0].Status)
	assert.Equal(t, s.Authority, *txns[0].Authority)
	assert.False(t, f.sold(t, 9))
	assert.Equal(t, int64(0), f.balance(t, "seller"))

	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestTransactions_SellerSeesOnlySettledSessions(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: false}, nil)
	ctx := context.Background()
	history := func(user string) []models.Transaction {
		t.Helper()
		txns, err := f.wallets.Transactions(ctx, user, 50, 0)
		require.NoError(t, err)
		return txns
	}

	declined, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	assert.Empty(t, history("seller"))
	assert.Len(t, history("buyer"), 1)

	_, err = f.payments.Verify(ctx, "buyer", declined.Authority)
	require.NoError(t, err)
	assert.Empty(t, history("seller"))
	assert.Len(t, history("buyer"), 1)

	f.payments.gw = gateway.Static{Approve: true}
	approved, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	assert.Empty(t, history("seller"))

	_, err = f.payments.Verify(ctx, "buyer", approved.Authority)
	require.NoError(t, err)
	sellerTxns := history("seller")
	require.Len(t, sellerTxns, 1)
	assert.Equal(t, models.TxnSuccess, sellerTxns[0].Status)
	assert.Equal(t, approved.Authority, *sellerTxns[0].Authority)
	assert.Len(t, history("buyer"), 2)
}

func TestVerify_GatewayError(t *testing.T) {
	gw := new(mockGateway)
	f := newPaymentFixture(t, gw, nil)
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	gw.On("Verify", mock.Anything, s.Authority, int64(400)).Return(gateway.Decision{}, errors.New("timeout")).Once()

	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	require.Error(t, err)
	assert.Equal(t, KindInternal, AsError("verify", err).Kind)
	assert.Equal(t, models.TxnPending, f.store.AllTransactions()[0].Status)

	// the payment can still be verified once the gateway answers
	gw.On("Verify", mock.Anything, s.Authority, int64(400)).Return(gateway.Decision{Approved: true}, nil).Once()
	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	require.NoError(t, err)
	assert.True(t, f.sold(t, 9))
}

func TestVerify_UnknownAuthority(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: true}, nil)
	ctx := context.Background()

	_, err := f.payments.Verify(ctx, "buyer", "")
	assert.ErrorIs(t, err, ErrInvalidAuthority)
	_, err = f.payments.Verify(ctx, "buyer", "no-such-authority")
	assert.ErrorIs(t, err, ErrInvalidAuthority)

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	_, err = f.payments.Verify(ctx, "seller", s.Authority)
	assert.ErrorIs(t, err, ErrInvalidAuthority)
}

func TestVerify_ItemSoldMeanwhile(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: true}, nil)
	f.store.AddUser(models.User{ID: "rival"})
	f.store.PutWallet("rival", 1000)
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	_, err = f.wallets.Purchase(ctx, "rival", 9)
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	assert.ErrorIs(t, err, ErrItemSold)
	assert.Equal(t, int64(1000), f.balance(t, "buyer"))
	assert.Equal(t, int64(400), f.balance(t, "seller"))
}

func TestVerify_InsufficientAtVerify(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: true}, nil)
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)
	_, err = f.wallets.Withdraw(ctx, "buyer", 700)
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.False(t, f.sold(t, 9))
	assert.Equal(t, int64(300), f.balance(t, "buyer"))
}

func TestVerify_ReplayGuardHeld(t *testing.T) {
	gw := new(mockGateway)
	f := newPaymentFixture(t, gw, heldGuard{})
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, "buyer", s.Authority)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	gw.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_ConcurrentSingleApplication(t *testing.T) {
	f := newPaymentFixture(t, gateway.Static{Approve: true}, nil)
	ctx := context.Background()

	s, err := f.payments.CreateSession(ctx, "buyer", 9)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.Verify(ctx, "buyer", s.Authority)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(600), f.balance(t, "buyer"))
	assert.Equal(t, int64(400), f.balance(t, "seller"))
}
