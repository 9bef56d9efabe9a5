package models

import (
	"time"
)

const (
	AccountStatusActive = "active"
	AccountStatusFrozen = "frozen"
	AccountStatusClosed = "closed"
)

type Account struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	SortCode      string    `json:"sort_code" db:"sort_code"`
	AccountNumber string    `json:"account_number" db:"account_number"`
	HolderName    string    `json:"holder_name" db:"holder_name"`
	Balance       int64     `json:"balance" db:"balance"` // in pence
	Status        string    `json:"status" db:"status"`
	Version       int       `json:"version" db:"version"` // for optimistic locking
	OpenedAt      time.Time `json:"opened_at" db:"opened_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

type LedgerEntry struct {
	ID            int64     `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	Amount        int64     `json:"amount" db:"amount"`         // in pence
	EntryType     string    `json:"entry_type" db:"entry_type"` // DEBIT or CREDIT
	Balance       int64     `json:"balance" db:"balance"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// LedgerTransfer is a single balanced movement: Amount+Fee leaves the source,
// Amount reaches the destination and Fee reaches the fee account.
type LedgerTransfer struct {
	TransactionID    string
	UserID           string
	FromAccountID    string
	ToAccountID      string
	Amount           int64
	Fee              int64
	Rail             string
	Reference        string
	CounterpartyName string
}

// PaymentRecord is a completed outbound movement as seen by limits, fraud and AML.
type PaymentRecord struct {
	TransactionID    string    `json:"transaction_id" db:"transaction_id"`
	AccountID        string    `json:"account_id" db:"account_id"`
	Amount           int64     `json:"amount" db:"amount"`
	CounterpartyName string    `json:"counterparty_name" db:"counterparty_name"`
	Rail             string    `json:"rail" db:"rail"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
