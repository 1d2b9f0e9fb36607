// Package sqlite provides a SQLite-backed implementation of bank.Store.
//
// The database file is created on first use and seeded with the demo dataset
// when the accounts table is empty. WAL mode keeps concurrent reads cheap.
package sqlite

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vaanibank/vaani/internal/bank"
)

// Store implements bank.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time interface assertion.
var _ bank.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath, ensures the schema exists,
// and seeds the demo dataset into an empty database.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := s.seedIfEmpty(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed demo data: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS accounts (
		id       INTEGER PRIMARY KEY,
		name     TEXT    NOT NULL,
		email    TEXT    NOT NULL,
		password TEXT    NOT NULL,
		balance  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		name       TEXT    NOT NULL,
		contact_id INTEGER NOT NULL REFERENCES accounts(id),
		PRIMARY KEY (account_id, name)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id    INTEGER NOT NULL REFERENCES accounts(id),
		type          TEXT    NOT NULL,
		amount        INTEGER NOT NULL,
		description   TEXT    NOT NULL,
		timestamp     INTEGER NOT NULL,
		balance_after INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id, timestamp DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) seedIfEmpty() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, seed := range bank.DemoSeed() {
		acc := seed.Account
		if _, err := tx.Exec(
			`INSERT INTO accounts (id, name, email, password, balance) VALUES (?, ?, ?, ?, ?)`,
			acc.ID, acc.Name, acc.Email, seed.Password, acc.Balance,
		); err != nil {
			return err
		}
		for name, contactID := range acc.Contacts {
			if _, err := tx.Exec(
				`INSERT INTO contacts (account_id, name, contact_id) VALUES (?, ?, ?)`,
				acc.ID, name, contactID,
			); err != nil {
				return err
			}
		}
		for _, t := range seed.Transactions {
			if _, err := tx.Exec(
				`INSERT INTO transactions (account_id, type, amount, description, timestamp, balance_after)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				acc.ID, t.Type, t.Amount, t.Description, t.Timestamp.Unix(), t.BalanceAfter,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Account implements bank.Store.
func (s *Store) Account(ctx context.Context, id int64) (bank.Account, error) {
	var acc bank.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, balance FROM accounts WHERE id = ?`, id,
	).Scan(&acc.ID, &acc.Name, &acc.Email, &acc.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return bank.Account{}, fmt.Errorf("account %d: %w", id, bank.ErrNoAccount)
	}
	if err != nil {
		return bank.Account{}, fmt.Errorf("query account: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, contact_id FROM contacts WHERE account_id = ?`, id)
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
	          FROM transactions WHERE account_id = ? ORDER BY timestamp DESC, id DESC`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []bank.Transaction
	for rows.Next() {
		var t bank.Transaction
		var unix int64
		if err := rows.Scan(&t.Type, &t.Amount, &t.Description, &unix, &t.BalanceAfter); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Timestamp = time.Unix(unix, 0).UTC()
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// VerifyPassword implements bank.Store. The comparison is constant-time.
func (s *Store) VerifyPassword(ctx context.Context, id int64, password string) error {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT password FROM accounts WHERE id = ?`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
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

// Transfer implements bank.Store. The debit, credit and both ledger entries
// commit in one transaction.
func (s *Store) Transfer(ctx context.Context, fromID, toID, amount int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	var fromBalance int64
	var fromName string
	err = tx.QueryRowContext(ctx,
		`SELECT balance, name FROM accounts WHERE id = ?`, fromID).Scan(&fromBalance, &fromName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %d: %w", fromID, bank.ErrNoAccount)
	}
	if err != nil {
		return 0, fmt.Errorf("query sender: %w", err)
	}

	var toBalance int64
	var toName string
	err = tx.QueryRowContext(ctx,
		`SELECT balance, name FROM accounts WHERE id = ?`, toID).Scan(&toBalance, &toName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %d: %w", toID, bank.ErrNoAccount)
	}
	if err != nil {
		return 0, fmt.Errorf("query receiver: %w", err)
	}

	if fromBalance < amount {
		return 0, bank.ErrInsufficientFunds
	}

	now := time.Now().Unix()
	newFrom := fromBalance - amount
	newTo := toBalance + amount

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, newFrom, fromID); err != nil {
		return 0, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, newTo, toID); err != nil {
		return 0, fmt.Errorf("credit receiver: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, type, amount, description, timestamp, balance_after)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fromID, bank.TxDebit, amount, fmt.Sprintf("Sent ₹%d to %s", amount, toName), now, newFrom,
	); err != nil {
		return 0, fmt.Errorf("record debit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, type, amount, description, timestamp, balance_after)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		toID, bank.TxCredit, amount, fmt.Sprintf("Received ₹%d from %s", amount, fromName), now, newTo,
	); err != nil {
		return 0, fmt.Errorf("record credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transfer: %w", err)
	}
	return newFrom, nil
}

// Ping implements bank.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) accountExists(ctx context.Context, id int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %d: %w", id, bank.ErrNoAccount)
	}
	return err
}
