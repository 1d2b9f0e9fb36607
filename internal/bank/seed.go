package bank

import "time"

// SeedAccount bundles everything needed to provision one demo account.
type SeedAccount struct {
	Account      Account
	Password     string
	Transactions []Transaction
}

func ts(day, hour, min int) time.Time {
	return time.Date(2025, time.November, day, hour, min, 0, 0, time.UTC)
}

// DemoSeed returns the demo dataset every driver loads into an empty store.
// Passwords are plaintext because the dataset is strictly for demos.
func DemoSeed() []SeedAccount {
	return []SeedAccount{
		{
			Account: Account{
				ID: 1, Name: "John Doe", Email: "john@example.com", Balance: 10000,
				Contacts: map[string]int64{"ravi": 3, "jane": 2, "mom": 4},
			},
			Password: "password123",
			Transactions: []Transaction{
				{Type: TxCredit, Amount: 5000, Description: "Received ₹5000 from Salary", Timestamp: ts(20, 9, 30), BalanceAfter: 10000},
				{Type: TxDebit, Amount: 2000, Description: "Paid ₹2000 for groceries", Timestamp: ts(19, 14, 15), BalanceAfter: 8000},
				{Type: TxDebit, Amount: 1000, Description: "Sent ₹1000 to Ravi", Timestamp: ts(18, 11, 45), BalanceAfter: 7000},
				{Type: TxCredit, Amount: 1500, Description: "Received ₹1500 from Mom", Timestamp: ts(17, 16, 20), BalanceAfter: 8500},
			},
		},
		{
			Account: Account{
				ID: 2, Name: "Jane Smith", Email: "jane@example.com", Balance: 7500,
				Contacts: map[string]int64{"john": 1, "mike": 5, "ravi": 3},
			},
			Password: "jane2024",
			Transactions: []Transaction{
				{Type: TxCredit, Amount: 3000, Description: "Received ₹3000 from Freelance", Timestamp: ts(20, 10, 0), BalanceAfter: 7500},
				{Type: TxDebit, Amount: 500, Description: "Paid ₹500 for electricity", Timestamp: ts(19, 12, 30), BalanceAfter: 7000},
				{Type: TxDebit, Amount: 2000, Description: "Sent ₹2000 to Mike", Timestamp: ts(18, 15, 45), BalanceAfter: 5000},
				{Type: TxDebit, Amount: 150, Description: "Paid ₹150 for coffee", Timestamp: ts(17, 9, 15), BalanceAfter: 4850},
			},
		},
		{
			Account: Account{
				ID: 3, Name: "Ravi", Email: "ravi@example.com", Balance: 3000,
				Contacts: map[string]int64{"john": 1, "jane": 2},
			},
			Password: "ravi123",
			Transactions: []Transaction{
				{Type: TxCredit, Amount: 1000, Description: "Received ₹1000 from John Doe", Timestamp: ts(18, 11, 45), BalanceAfter: 3000},
				{Type: TxDebit, Amount: 500, Description: "Paid ₹500 for mobile recharge", Timestamp: ts(17, 10, 20), BalanceAfter: 2500},
			},
		},
		{
			Account: Account{
				ID: 4, Name: "Mom", Email: "mom@example.com", Balance: 25000,
				Contacts: map[string]int64{"john": 1},
			},
			Password: "mom1234",
			Transactions: []Transaction{
				{Type: TxDebit, Amount: 1500, Description: "Sent ₹1500 to John Doe", Timestamp: ts(17, 16, 20), BalanceAfter: 25000},
			},
		},
		{
			Account: Account{
				ID: 5, Name: "Mike", Email: "mike@example.com", Balance: 5500,
				Contacts: map[string]int64{"jane": 2},
			},
			Password: "mike456",
			Transactions: []Transaction{
				{Type: TxCredit, Amount: 2000, Description: "Received ₹2000 from Jane Smith", Timestamp: ts(18, 15, 45), BalanceAfter: 5500},
			},
		},
	}
}
