package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	"github.com/kasrafouladi/Elmosyar/internal/repository/memory"
)

type fixture struct {
	store   *memory.Store
	wallets *WalletService
	log     *slog.Logger
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	store := memory.NewStore()
	for _, u := range users {
		store.AddUser(models.User{ID: u, Username: u})
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := NewAuditor(store.AuditLogs(), nil, log)
	return &fixture{
		store:   store,
		wallets: NewWalletService(store, nil, audit, log, 0),
		log:     log,
	}
}

func (f *fixture) item(id int64, owner string, attrs map[string]any) {
	f.store.PutItem(models.Item{ID: id, OwnerID: owner, Attributes: attrs})
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	w, err := f.store.Wallets().Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("wallet %s: %v", userID, err)
	}
	return w.Balance
}

func (f *fixture) sold(t *testing.T, itemID int64) bool {
	t.Helper()
	it, err := f.store.Items().Get(context.Background(), itemID)
	if err != nil {
		t.Fatalf("item %d: %v", itemID, err)
	}
	v, _ := it.Attributes[models.AttrIsSoldOut].(bool)
	return v
}

func countType(txns []models.Transaction, typ models.TransactionType) int {
	n := 0
	for _, t := range txns {
		if t.Type == typ {
			n++
		}
	}
	return n
}
