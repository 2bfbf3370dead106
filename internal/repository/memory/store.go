// Package memory is an in-process repository.Store. WithTx admits one unit of
// work at a time and works on a private copy of the data, published only on
// commit, which gives the same all-or-nothing and mutual-exclusion behaviour
// the postgres store gets from row locks.
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

type state struct {
	users   map[string]models.User
	wallets map[string]models.Wallet // keyed by user id
	txns    map[string]models.Transaction
	txnSeq  map[string]int64
	items   map[int64]models.Item
	seq     int64
}

func newState() *state {
	return &state{
		users:   map[string]models.User{},
		wallets: map[string]models.Wallet{},
		txns:    map[string]models.Transaction{},
		txnSeq:  map[string]int64{},
		items:   map[int64]models.Item{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.txns {
		c.txns[k] = v
	}
	for k, v := range s.txnSeq {
		c.txnSeq[k] = v
	}
	for k, v := range s.items {
		c.items[k] = copyItem(v)
	}
	return c
}

func copyItem(it models.Item) models.Item {
	attrs := make(map[string]any, len(it.Attributes))
	for k, v := range it.Attributes {
		attrs[k] = v
	}
	it.Attributes = attrs
	return it
}

type Store struct {
	*repos
	mu   sync.Mutex
	data *state

	auditMu sync.Mutex
	audit   []models.AuditLog
}

var _ repo.Store = (*Store)(nil)

func NewStore() *Store {
	s := &Store{data: newState()}
	s.repos = &repos{lock: &s.mu, st: func() *state { return s.data }}
	return s
}

// WithTx must not call the Store's own pool-bound repos from inside fn; use
// the Repos it is given.
func (s *Store) WithTx(ctx context.Context, fn func(repo.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(&repos{lock: noLock{}, st: func() *state { return work }}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) AuditLogs() repo.AuditLogs { return auditLogs{s} }

// AddUser registers an account so wallets and items can reference it.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.data.users[u.ID] = u
}

// PutWallet creates or overwrites the wallet of userID with balance.
func (s *Store) PutWallet(userID string, balance int64) models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	w, ok := s.data.wallets[userID]
	if !ok {
		w = models.Wallet{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
	}
	w.Balance = balance
	w.UpdatedAt = now
	s.data.wallets[userID] = w
	return w
}

// PutItem stores a copy of it.
func (s *Store) PutItem(it models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.Attributes == nil {
		it.Attributes = map[string]any{}
	}
	s.data.items[it.ID] = copyItem(it)
}

// AllTransactions returns every committed row in insertion order.
func (s *Store) AllTransactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, 0, len(s.data.txns))
	for _, t := range s.data.txns {
		out = append(out, t)
	}
	seq := s.data.txnSeq
	sort.Slice(out, func(i, j int) bool { return seq[out[i].ID] < seq[out[j].ID] })
	return out
}

// AuditEntries returns the audit rows written so far.
func (s *Store) AuditEntries() []models.AuditLog {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return append([]models.AuditLog(nil), s.audit...)
}

type auditLogs struct{ s *Store }

func (a auditLogs) Create(_ context.Context, l models.AuditLog) error {
	a.s.auditMu.Lock()
	defer a.s.auditMu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	a.s.audit = append(a.s.audit, l)
	return nil
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}
