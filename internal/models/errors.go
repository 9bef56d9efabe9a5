package models

import "errors"

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrConcurrentUpdate     = errors.New("account modified concurrently")
)
