package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"custody_wallet/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Exact decimal amounts
)

// MemStore is a mutex-guarded in-memory Store. It is the embedded-store
// counterpart of GormStore: WithinTx serializes the whole critical section
// under one lock and restores a snapshot on error, which gives the same
// all-or-nothing and write-time-guard semantics the SQL version gets from
// database transactions and conditional updates.
type MemStore struct {
	mu sync.Mutex
	st memState
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		st: memState{
			users: make(map[uint]*domain.User),
			txns:  make(map[uint]*domain.Transaction),
		},
	}
}

// AddUser inserts a user, assigning an id if none is set, and returns the id.
func (m *MemStore) AddUser(u domain.User) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.st.nextUserID++
		u.ID = m.st.nextUserID
	} else if u.ID > m.st.nextUserID {
		m.st.nextUserID = u.ID
	}
	m.st.users[u.ID] = &u
	return u.ID
}

// WithinTx runs fn holding the store lock; on error the pre-fn snapshot is
// restored so partial writes never stick.
func (m *MemStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.st.clone()
	if err := fn(&memTx{st: &m.st}); err != nil {
		m.st = snap
		return err
	}
	return nil
}

// GetUser fetches a user by id
func (m *MemStore) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getUser(id)
}

// CreditBalance increments the user's balance
func (m *MemStore) CreditBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.creditBalance(id, amount)
}

// DebitBalance decrements the user's balance if sufficient
func (m *MemStore) DebitBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.debitBalance(id, amount)
}

// CreateTransaction inserts a new transaction record
func (m *MemStore) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createTransaction(txn)
}

// GetTransaction fetches a transaction by id
func (m *MemStore) GetTransaction(ctx context.Context, id uint) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getTransaction(id)
}

// ListTransactionsByUser returns the user's transactions newest first
func (m *MemStore) ListTransactionsByUser(ctx context.Context, userID uint, offset, limit int) ([]domain.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listTransactionsByUser(userID, offset, limit)
}

// MarkTerminal moves a transaction out of pending, re-checking the stored
// status at write time
func (m *MemStore) MarkTerminal(ctx context.Context, id uint, status domain.TxStatus, approvedAt *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.markTerminal(id, status, approvedAt)
}

// memTx is the view handed to a WithinTx closure; the outer lock is already
// held, so its methods hit the state directly. Nested WithinTx joins the
// ambient critical section.
type memTx struct {
	st *memState
}

func (t *memTx) WithinTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *memTx) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	return t.st.getUser(id)
}

func (t *memTx) CreditBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	return t.st.creditBalance(id, amount)
}

func (t *memTx) DebitBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	return t.st.debitBalance(id, amount)
}

func (t *memTx) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	return t.st.createTransaction(txn)
}

func (t *memTx) GetTransaction(ctx context.Context, id uint) (*domain.Transaction, error) {
	return t.st.getTransaction(id)
}

func (t *memTx) ListTransactionsByUser(ctx context.Context, userID uint, offset, limit int) ([]domain.Transaction, int64, error) {
	return t.st.listTransactionsByUser(userID, offset, limit)
}

func (t *memTx) MarkTerminal(ctx context.Context, id uint, status domain.TxStatus, approvedAt *int64) error {
	return t.st.markTerminal(id, status, approvedAt)
}

// memState holds the data; callers are responsible for locking.
type memState struct {
	users      map[uint]*domain.User
	txns       map[uint]*domain.Transaction
	nextUserID uint
	nextTxnID  uint
}

func (s *memState) clone() memState {
	cp := memState{
		users:      make(map[uint]*domain.User, len(s.users)),
		txns:       make(map[uint]*domain.Transaction, len(s.txns)),
		nextUserID: s.nextUserID,
		nextTxnID:  s.nextTxnID,
	}
	for id, u := range s.users {
		v := *u
		cp.users[id] = &v
	}
	for id, t := range s.txns {
		v := *t
		cp.txns[id] = &v
	}
	return cp
}

func (s *memState) getUser(id uint) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memState) creditBalance(id uint, amount decimal.Decimal) error {
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (s *memState) debitBalance(id uint, amount decimal.Decimal) error {
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (s *memState) createTransaction(txn *domain.Transaction) error {
	s.nextTxnID++
	txn.ID = s.nextTxnID
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().UnixMilli()
	}
	cp := *txn
	s.txns[txn.ID] = &cp
	return nil
}

func (s *memState) getTransaction(id uint) (*domain.Transaction, error) {
	t, ok := s.txns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memState) listTransactionsByUser(userID uint, offset, limit int) ([]domain.Transaction, int64, error) {
	var all []domain.Transaction
	for _, t := range s.txns {
		if t.UserID == userID {
			all = append(all, *t)
		}
	}
	// Newest first, id breaks same-millisecond ties
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Transaction{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *memState) markTerminal(id uint, status domain.TxStatus, approvedAt *int64) error {
	t, ok := s.txns[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != domain.TxPending {
		return ErrInvalidState
	}
	t.Status = status
	if approvedAt != nil {
		at := *approvedAt
		t.ApprovedAt = &at
	}
	return nil
}
