package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"custody_wallet/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Exact decimal amounts
	"github.com/sirupsen/logrus"    // Logging library
)

// MinAddressLen is the minimum accepted length of a withdrawal destination
// address after trimming surrounding whitespace.
const MinAddressLen = 6

// Service is the transaction lifecycle manager. It owns every balance
// mutation: a balance changes only as the single side effect of a lifecycle
// transition performed here.
type Service struct {
	store Store
}

// NewService returns a lifecycle manager backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create validates and records a new pending transaction for the user.
//
// Deposits and buys have no balance effect at creation. Withdrawals escrow
// immediately: the amount is debited before the record is written, so a user
// cannot submit several withdrawal requests against the same funds while an
// admin sits on them. The debit and the insert commit together or not at all.
func (s *Service) Create(ctx context.Context, userID uint, kind domain.TxKind, amount decimal.Decimal, address string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	address = strings.TrimSpace(address)
	switch kind {
	case domain.TxWithdraw:
		// Withdrawals need somewhere for the funds to go
		if len(address) < MinAddressLen {
			return nil, fmt.Errorf("%w: withdrawal address must be at least %d characters", ErrValidation, MinAddressLen)
		}
	case domain.TxDeposit, domain.TxBuy:
		if address != "" {
			return nil, fmt.Errorf("%w: address is only valid for withdrawals", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, kind)
	}

	var txn *domain.Transaction
	err := s.store.WithinTx(ctx, func(st Store) error {
		user, err := st.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		// Only admin-approved accounts may move funds
		if user.Status != domain.UserApproved {
			return ErrUserNotApproved
		}
		if kind == domain.TxWithdraw {
			// Escrow: fails the whole create on insufficient balance
			if err := st.DebitBalance(ctx, userID, amount); err != nil {
				return err
			}
		}
		txn = &domain.Transaction{
			UserID:  userID,          // Owning user
			Kind:    kind,            // deposit, buy or withdraw
			Amount:  amount,          // Immutable after creation
			Address: address,         // Empty unless withdraw
			Status:  domain.TxPending, // Every transaction starts pending
		}
		return st.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	// Log the created transaction
	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"user_id":        userID,
		"kind":           kind,
		"amount":         amount.String(),
	}).Info("Transaction created")
	return txn, nil
}

// Approve resolves a pending transaction as complete and applies its balance
// effect: deposits credit, buys check sufficiency and debit, withdrawals are
// a balance no-op because the funds were escrowed at creation.
//
// The status check is re-applied by MarkTerminal at write time inside the
// same critical section as the balance mutation, so two racing admins cannot
// both land their effect on one transaction. Returns the updated transaction
// and the user's resulting balance.
func (s *Service) Approve(ctx context.Context, txID uint) (*domain.Transaction, decimal.Decimal, error) {
	var (
		txn     *domain.Transaction
		balance decimal.Decimal
	)
	err := s.store.WithinTx(ctx, func(st Store) error {
		var err error
		txn, err = st.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if txn.Status != domain.TxPending {
			return ErrInvalidState
		}
		switch txn.Kind {
		case domain.TxDeposit:
			if err := st.CreditBalance(ctx, txn.UserID, txn.Amount); err != nil {
				return err
			}
		case domain.TxBuy:
			// Sufficiency is checked at approval time for buys; a rejection
			// here rolls everything back and the transaction stays pending
			if err := st.DebitBalance(ctx, txn.UserID, txn.Amount); err != nil {
				return err
			}
		case domain.TxWithdraw:
			// Already escrowed at creation; re-debiting here would charge the
			// user twice
		}
		now := time.Now().UnixMilli()
		if err := st.MarkTerminal(ctx, txn.ID, domain.TxComplete, &now); err != nil {
			return err
		}
		txn.Status = domain.TxComplete
		txn.ApprovedAt = &now
		user, err := st.GetUser(ctx, txn.UserID)
		if err != nil {
			return err
		}
		balance = user.Balance
		return nil
	})
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	// Log the approval
	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"user_id":        txn.UserID,
		"kind":           txn.Kind,
		"amount":         txn.Amount.String(),
		"balance":        balance.String(),
	}).Info("Transaction approved")
	return txn, balance, nil
}

// Deny resolves a pending transaction as failed. Denied withdrawals refund
// the escrowed amount, restoring the balance to its pre-creation value
// exactly; deposits and buys never held funds, so nothing moves.
func (s *Service) Deny(ctx context.Context, txID uint) (*domain.Transaction, decimal.Decimal, error) {
	var (
		txn     *domain.Transaction
		balance decimal.Decimal
	)
	err := s.store.WithinTx(ctx, func(st Store) error {
		var err error
		txn, err = st.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if txn.Status != domain.TxPending {
			return ErrInvalidState
		}
		if txn.Kind == domain.TxWithdraw {
			// Refund the escrow taken at creation
			if err := st.CreditBalance(ctx, txn.UserID, txn.Amount); err != nil {
				return err
			}
		}
		if err := st.MarkTerminal(ctx, txn.ID, domain.TxFailed, nil); err != nil {
			return err
		}
		txn.Status = domain.TxFailed
		user, err := st.GetUser(ctx, txn.UserID)
		if err != nil {
			return err
		}
		balance = user.Balance
		return nil
	})
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	// Log the denial
	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"user_id":        txn.UserID,
		"kind":           txn.Kind,
		"amount":         txn.Amount.String(),
		"balance":        balance.String(),
	}).Info("Transaction denied")
	return txn, balance, nil
}

// ListByUser returns the user's transactions newest first, plus the total
// count for pagination.
func (s *Service) ListByUser(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, 0, err
	}
	return s.store.ListTransactionsByUser(ctx, userID, (page-1)*pageSize, pageSize)
}
