// Package bank defines the account and ledger storage used by the teller.
//
// A [Store] holds customer accounts, their saved contacts, and a per-account
// transaction log. Three implementations exist: the in-memory demo store in
// this package, bank/sqlite for single-node deployments, and bank/postgres.
//
// Every implementation must be safe for concurrent use.
package bank

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrNoAccount is returned when the referenced account does not exist.
	ErrNoAccount = errors.New("account not found")

	// ErrBadPassword is returned by VerifyPassword on a credential mismatch.
	ErrBadPassword = errors.New("password mismatch")

	// ErrInsufficientFunds is returned by Transfer when the sender's balance
	// does not cover the amount.
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// Transaction is one ledger entry. Amounts are whole rupees.
type Transaction struct {
	// Type is "credit" or "debit".
	Type string

	// Amount is the transaction value.
	Amount int64

	// Description is the human-readable summary spoken to the user.
	Description string

	// Timestamp is when the transaction was recorded.
	Timestamp time.Time

	// BalanceAfter is the account balance after this transaction.
	BalanceAfter int64
}

// Transaction types.
const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

// Account is a banking customer. Contacts maps a spoken contact name
// (lowercase) to the contact's account ID.
type Account struct {
	ID       int64
	Name     string
	Email    string
	Balance  int64
	Contacts map[string]int64
}

// Store is the account and ledger storage interface.
type Store interface {
	// Account returns the account with the given ID, including its contacts.
	// Returns ErrNoAccount when it does not exist.
	Account(ctx context.Context, id int64) (Account, error)

	// Transactions returns the account's ledger, most recent first. A positive
	// limit caps the number of entries; zero returns all.
	Transactions(ctx context.Context, id int64, limit int) ([]Transaction, error)

	// VerifyPassword checks the account credential. Returns nil on a match,
	// ErrBadPassword on a mismatch, ErrNoAccount when the account is missing.
	VerifyPassword(ctx context.Context, id int64, password string) error

	// Transfer moves amount from one account to another, recording a debit and
	// a credit ledger entry. It returns the sender's new balance. Fails with
	// ErrInsufficientFunds when the sender cannot cover the amount.
	Transfer(ctx context.Context, fromID, toID, amount int64) (int64, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
