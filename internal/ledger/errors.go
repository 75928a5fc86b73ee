package ledger

import "errors"

// Business-rule rejections. Every one of them leaves balances and
// transaction records untouched.
var (
	ErrValidation        = errors.New("invalid request")          // Bad amount, bad kind or bad address
	ErrNotFound          = errors.New("record not found")         // Unknown user or transaction
	ErrInsufficientFunds = errors.New("insufficient funds")       // Debit would push the balance below zero
	ErrInvalidState      = errors.New("transaction not pending")  // Approve/Deny on an already-terminal transaction
	ErrUserNotApproved   = errors.New("user awaiting approval")   // Transactions require an admin-approved account
)
