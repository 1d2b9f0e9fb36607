package bank

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory [Store] used for demos and tests.
// All operations are safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[int64]*memAccount
}

type memAccount struct {
	account      Account
	password     string
	transactions []Transaction // most recent first
}

// Compile-time interface assertion.
var _ Store = (*MemStore)(nil)

// NewMemStore creates a MemStore pre-loaded with the demo dataset.
func NewMemStore() *MemStore {
	s := &MemStore{accounts: make(map[int64]*memAccount)}
	for _, seed := range DemoSeed() {
		s.accounts[seed.Account.ID] = &memAccount{
			account:      seed.Account,
			password:     seed.Password,
			transactions: append([]Transaction(nil), seed.Transactions...),
		}
	}
	return s
}

// Account implements Store.
func (s *MemStore) Account(_ context.Context, id int64) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %d: %w", id, ErrNoAccount)
	}
	out := acc.account
	out.Contacts = make(map[string]int64, len(acc.account.Contacts))
	for k, v := range acc.account.Contacts {
		out.Contacts[k] = v
	}
	return out, nil
}

// Transactions implements Store.
func (s *MemStore) Transactions(_ context.Context, id int64, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, ErrNoAccount)
	}
	txs := acc.transactions
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return append([]Transaction(nil), txs...), nil
}

// VerifyPassword implements Store. The comparison is constant-time.
func (s *MemStore) VerifyPassword(_ context.Context, id int64, password string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %d: %w", id, ErrNoAccount)
	}
	if subtle.ConstantTimeCompare([]byte(acc.password), []byte(password)) != 1 {
		return ErrBadPassword
	}
	return nil
}

// Transfer implements Store.
func (s *MemStore) Transfer(_ context.Context, fromID, toID, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[fromID]
	if !ok {
		return 0, fmt.Errorf("account %d: %w", fromID, ErrNoAccount)
	}
	to, ok := s.accounts[toID]
	if !ok {
		return 0, fmt.Errorf("account %d: %w", toID, ErrNoAccount)
	}
	if from.account.Balance < amount {
		return 0, ErrInsufficientFunds
	}

	now := time.Now()
	from.account.Balance -= amount
	from.transactions = prependTx(from.transactions, Transaction{
		Type:         TxDebit,
		Amount:       amount,
		Description:  fmt.Sprintf("Sent ₹%d to %s", amount, to.account.Name),
		Timestamp:    now,
		BalanceAfter: from.account.Balance,
	})

	to.account.Balance += amount
	to.transactions = prependTx(to.transactions, Transaction{
		Type:         TxCredit,
		Amount:       amount,
		Description:  fmt.Sprintf("Received ₹%d from %s", amount, from.account.Name),
		Timestamp:    now,
		BalanceAfter: to.account.Balance,
	})

	return from.account.Balance, nil
}

// Ping implements Store. A MemStore is always reachable.
func (s *MemStore) Ping(context.Context) error { return nil }

func prependTx(txs []Transaction, tx Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}
