package models

import "time"

type Party struct {
	Name          string `json:"name"`
	SortCode      string `json:"sortCode"`
	AccountNumber string `json:"accountNumber"`
}

// SettlementInstruction is handed to the clearing side after an external-rail
// payment has been booked against the clearing account.
type SettlementInstruction struct {
	TransactionID string    `json:"transactionId"`
	Rail          string    `json:"rail"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Debtor        Party     `json:"debtor"`
	Creditor      Party     `json:"creditor"`
	Reference     string    `json:"reference"`
	CreatedAt     time.Time `json:"createdAt"`
}
