package models

import "time"

// Payee is a saved destination. (OwnerID, SortCode, AccountNumber) is unique.
type Payee struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	Name          string     `json:"name" db:"name"`
	SortCode      string     `json:"sort_code" db:"sort_code"`
	AccountNumber string     `json:"account_number" db:"account_number"`
	Reference     string     `json:"reference" db:"reference"`
	Favourite     bool       `json:"favourite" db:"favourite"`
	FirstUsedAt   *time.Time `json:"first_used_at" db:"first_used_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// IsNew reports whether no payment to this payee has completed yet.
func (p *Payee) IsNew() bool {
	return p.FirstUsedAt == nil
}

// PayeeUpdate is a change-set; nil fields are left untouched.
type PayeeUpdate struct {
	Reference   *string    `json:"reference,omitempty" validate:"omitempty,max=18"`
	Favourite   *bool      `json:"favourite,omitempty"`
	FirstUsedAt *time.Time `json:"-"`
}

func (u PayeeUpdate) IsEmpty() bool {
	return u.Reference == nil && u.Favourite == nil && u.FirstUsedAt == nil
}
