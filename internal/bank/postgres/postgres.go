// Package postgres provides a PostgreSQL-backed implementation of bank.Store.
//
// All operations share a single [pgxpool.Pool]. [New] runs the schema
// migration and seeds the demo dataset into an empty database.
package postgres

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaanibank/vaani/internal/bank"
)

const ddl = `
CREATE TABLE IF NOT EXISTS accounts (
    id       BIGINT  PRIMARY KEY,
    name     TEXT    NOT NULL,
    email    TEXT    NOT NULL,
    password TEXT    NOT NULL,
    balance  BIGINT  NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    name       TEXT   NOT NULL,
    contact_id BIGINT NOT NULL REFERENCES accounts(id),
    PRIMARY KEY (account_id, name)
);

CREATE TABLE IF NOT EXISTS transactions (
    id            BIGSERIAL    PRIMARY KEY,
    account_id    BIGINT       NOT NULL REFERENCES accounts(id),
    type          TEXT         NOT NULL,
    amount        BIGINT       NOT NULL,
    description   TEXT         NOT NULL,
    timestamp     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    balance_after BIGINT       NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account
    ON transactions (account_id, timestamp DESC);
`

// Store implements bank.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time interface assertion.
var _ bank.Store = (*Store)(nil)

// New establishes a connection pool to the database at dsn, ensures the
// schema exists, and seeds the demo dataset into an empty database.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres bank: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres bank: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres bank: ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres bank: migrate: %w", err)
	}
	if err := s.seedIfEmpty(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres bank: seed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *Store) seedIfEmpty(ctx context.Context) error {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, seed := range bank.DemoSeed() {
		acc := seed.Account
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (id, name, email, password, balance) VALUES ($1, $2, $3, $4, $5)`,
			acc.ID, acc.Name, acc.Email, seed.Password, acc.Balance,
		); err != nil {
			return err
		}
		for name, contactID := range acc.Contacts {
			if _, err := tx.Exec(ctx,
				`INSERT INTO contacts (account_id, name, contact_id) VALUES ($1, $2, $3)`,
				acc.ID, name, contactID,
			); err != nil {
				return err
			}
		}
		for _, t := range seed.Transactions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO transactions (account_id, type, amount, description, timestamp, balance_after)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				acc.ID, t.Type, t.Amount, t.Description, t.Timestamp, t.BalanceAfter,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

// Account implements bank.Store.
func (s *Store) Account(ctx context.Context, id int64) (bank.Account, error) {
	var acc bank.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, balance FROM accounts WHERE id = $1`, id,
	).Scan(&acc.ID, &acc.Name, &acc.Email, &acc.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return bank.Account{}, fmt.Errorf("account %d: %w", id, bank.ErrNoAccount)
	}
	if err != nil {
		return bank.Account{}, fmt.Errorf("query account: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name, contact_id FROM contacts WHERE account_id = $1`, id)
	if err != nil {
		return bank.Account{}, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	acc.Contacts = make(map[string]int64)
	for rows.Next() {
		var name string
		var contactID int64
		if err := rows.Scan(&name, &contactID); err != nil {
			return bank.Account{}, fmt.Errorf("scan contact: %w", err)
		}
		acc.Contacts[name] = contactID
	}
	return acc, rows.Err()
}

// Transactions implements bank.Store.
func (s *Store) Transactions(ctx context.Context, id int64, limit int) ([]bank.Transaction, error) {
	if err := s.accountExists(ctx, id); err != nil {
		return nil, err
	}

	query := `SELECT type, amount, description, timestamp, balance_after
	          FROM transactions WHERE account_id = $1 ORDER BY timestamp DESC, id DESC`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []bank.Transaction
	for rows.Next() {
		var t bank.Transaction
		if err := rows.Scan(&t.Type, &t.Amount, &t.Description, &t.Timestamp, &t.BalanceAfter); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// VerifyPassword implements bank.Store. The comparison is constant-time.
func (s *Store) VerifyPassword(ctx context.Context, id int64, password string) error {
	var stored string
	err := s.pool.QueryRow(ctx,
		`SELECT password FROM accounts WHERE id = $1`, id).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("account %d: %w", id, bank.ErrNoAccount)
	}
	if err != nil {
		return fmt.Errorf("query password: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return bank.ErrBadPassword
	}
	return nil
}

// Transfer implements bank.Store. Both account rows are locked for the
// duration of the transaction, lower id first, so two concurrent
// opposite-direction transfers cannot deadlock.
func (s *Store) Transfer(ctx context.Context, fromID, toID, amount int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	type row struct {
		balance int64
		name    string
	}
	locked := make(map[int64]row, 2)
	for _, id := range lockOrder(fromID, toID) {
		var r row
		err = tx.QueryRow(ctx,
			`SELECT balance, name FROM accounts WHERE id = $1 FOR UPDATE`, id,
		).Scan(&r.balance, &r.name)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %d: %w", id, bank.ErrNoAccount)
		}
		if err != nil {
			return 0, fmt.Errorf("lock account %d: %w", id, err)
		}
		locked[id] = r
	}
	from, to := locked[fromID], locked[toID]
	fromName, toName := from.name, to.name

	if from.balance < amount {
		return 0, bank.ErrInsufficientFunds
	}

	newFrom := from.balance - amount
	newTo := to.balance + amount

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1 WHERE id = $2`, newFrom, fromID); err != nil {
		return 0, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1 WHERE id = $2`, newTo, toID); err != nil {
		return 0, fmt.Errorf("credit receiver: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (account_id, type, amount, description, balance_after)
		 VALUES ($1, $2, $3, $4, $5)`,
		fromID, bank.TxDebit, amount, fmt.Sprintf("Sent ₹%d to %s", amount, toName), newFrom,
	); err != nil {
		return 0, fmt.Errorf("record debit: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (account_id, type, amount, description, balance_after)
		 VALUES ($1, $2, $3, $4, $5)`,
		toID, bank.TxCredit, amount, fmt.Sprintf("Received ₹%d from %s", amount, fromName), newTo,
	); err != nil {
		return 0, fmt.Errorf("record credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transfer: %w", err)
	}
	return newFrom, nil
}

// Ping implements bank.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// lockOrder returns the two account ids in ascending order. Transfer always
// takes its row locks in this order.
func lockOrder(fromID, toID int64) [2]int64 {
	if toID < fromID {
		return [2]int64{toID, fromID}
	}
	return [2]int64{fromID, toID}
}

func (s *Store) accountExists(ctx context.Context, id int64) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM accounts WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("account %d: %w", id, bank.ErrNoAccount)
	}
	return err
}
