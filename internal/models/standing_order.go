package models

import "time"

type Frequency string

const (
	FrequencyWeekly      Frequency = "weekly"
	FrequencyFortnightly Frequency = "fortnightly"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyQuarterly   Frequency = "quarterly"
	FrequencyAnnually    Frequency = "annually"
)

type Schedule struct {
	Frequency Frequency `json:"frequency" validate:"required,oneof=weekly fortnightly monthly quarterly annually"`
	StartDate time.Time `json:"startDate" validate:"required"`
}

// Next returns the run after t.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyFortnightly:
		return t.AddDate(0, 0, 14)
	case FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case FrequencyAnnually:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

type StandingOrder struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	FromAccountID string    `json:"from_account_id" db:"from_account_id"`
	PayeeID       string    `json:"payee_id" db:"payee_id"`
	Amount        int64     `json:"amount" db:"amount"`
	Reference     string    `json:"reference" db:"reference"`
	Frequency     Frequency `json:"frequency" db:"frequency"`
	Rail          string    `json:"rail" db:"rail"`
	StartDate     time.Time `json:"start_date" db:"start_date"`
	NextRunAt     time.Time `json:"next_run_at" db:"next_run_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
