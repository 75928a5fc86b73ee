package ledger

import (
	"context"

	"custody_wallet/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Exact decimal amounts
)

// Store is the persistence surface the lifecycle manager runs on.
//
// DebitBalance and CreditBalance are the only balance-mutation paths in the
// whole system, and MarkTerminal is the only status-mutation path. Both are
// conditional writes: DebitBalance must refuse to take the balance negative,
// and MarkTerminal must refuse unless the stored status is still pending.
// WithinTx runs fn so that its writes apply all-or-nothing; fn receives a
// Store bound to that critical section.
type Store interface {
	WithinTx(ctx context.Context, fn func(Store) error) error

	GetUser(ctx context.Context, id uint) (*domain.User, error)
	// CreditBalance adds amount to the user's balance. Always succeeds for an
	// existing user.
	CreditBalance(ctx context.Context, id uint, amount decimal.Decimal) error
	// DebitBalance subtracts amount from the user's balance. Fails with
	// ErrInsufficientFunds unless balance >= amount at write time.
	DebitBalance(ctx context.Context, id uint, amount decimal.Decimal) error

	CreateTransaction(ctx context.Context, txn *domain.Transaction) error
	GetTransaction(ctx context.Context, id uint) (*domain.Transaction, error)
	// ListTransactionsByUser returns the user's transactions newest first,
	// plus the total count for pagination.
	ListTransactionsByUser(ctx context.Context, userID uint, offset, limit int) ([]domain.Transaction, int64, error)
	// MarkTerminal moves a transaction from pending to the given terminal
	// status, stamping approvedAt when non-nil. Fails with ErrInvalidState if
	// the stored status is no longer pending at write time.
	MarkTerminal(ctx context.Context, id uint, status domain.TxStatus, approvedAt *int64) error
}
